package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// Control signals sent by the CLI to the running daemon.
var (
	SignalReload  os.Signal = syscall.SIGHUP
	SignalInhibit os.Signal = syscall.SIGUSR1
	SignalPause   os.Signal = syscall.SIGUSR2
)

// SignalSource turns control signals into router events.
type SignalSource struct {
	logger *zap.Logger
}

// NewSignalSource creates the control signal source.
func NewSignalSource(logger *zap.Logger) *SignalSource {
	return &SignalSource{logger: logger}
}

// Name implements domain.EventSource.
func (s *SignalSource) Name() string { return "signals" }

// Run implements domain.EventSource.
func (s *SignalSource) Run(ctx context.Context, sink domain.EventSink) error {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, SignalReload, SignalInhibit, SignalPause)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigCh:
			ev := EventForSignal(sig)
			if ev == nil {
				continue
			}
			s.logger.Info("received control signal",
				zap.String("signal", sig.String()),
				zap.String("event", domain.EventName(ev)))
			if err := sink.Push(ev); err != nil {
				return err
			}
		}
	}
}

// EventForSignal maps a control signal to its event, or nil.
func EventForSignal(sig os.Signal) domain.Event {
	switch sig {
	case SignalReload:
		return domain.ReloadConfig{}
	case SignalInhibit:
		return domain.Inhibit{}
	case SignalPause:
		return domain.TogglePause{}
	default:
		return nil
	}
}

// Ensure SignalSource implements domain.EventSource.
var _ domain.EventSource = (*SignalSource)(nil)
