package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/hypnos/internal/domain"
	"github.com/eliteGoblin/hypnos/internal/usecase"
)

// Config holds daemon tuning.
type Config struct {
	InhibitDuration time.Duration // How long an inhibit request holds
	QueueCapacity   int           // Router queue size
	EnqueueTimeout  time.Duration // Max wait on a full queue before declaring the router stalled
}

// DefaultConfig returns default daemon configuration.
func DefaultConfig() Config {
	return Config{
		InhibitDuration: usecase.DefaultInhibitDuration,
		QueueCapacity:   32,
		EnqueueTimeout:  2 * time.Second,
	}
}

// Daemon wires the dispatch loop, the router and the event sources.
type Daemon struct {
	config    Config
	protocol  domain.Protocol
	rules     domain.RuleSource
	runner    domain.CommandRunner
	sources   []domain.EventSource
	instances domain.InstanceRegistry
	info      domain.DaemonInfo
	logger    *zap.Logger

	state         *usecase.SharedState
	notifications *usecase.NotificationRegistry
}

// New creates the daemon. info is recorded in instances while it runs.
func New(
	config Config,
	protocol domain.Protocol,
	rules domain.RuleSource,
	runner domain.CommandRunner,
	sources []domain.EventSource,
	instances domain.InstanceRegistry,
	info domain.DaemonInfo,
	logger *zap.Logger,
) *Daemon {
	return &Daemon{
		config:        config,
		protocol:      protocol,
		rules:         rules,
		runner:        runner,
		sources:       sources,
		instances:     instances,
		info:          info,
		logger:        logger,
		state:         usecase.NewSharedState(),
		notifications: usecase.NewNotificationRegistry(),
	}
}

// State exposes the power and pause flags.
func (d *Daemon) State() *usecase.SharedState {
	return d.state
}

// Notifications exposes the live subscription registry.
func (d *Daemon) Notifications() *usecase.NotificationRegistry {
	return d.notifications
}

// Run blocks until ctx is canceled or a fatal error occurs: loss of the
// compositor connection or a stalled router.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.instances.Register(d.info); err != nil {
		return fmt.Errorf("failed to register instance: %w", err)
	}
	defer func() {
		if err := d.instances.Clear(d.info.PID); err != nil {
			d.logger.Warn("failed to clear instance record", zap.Error(err))
		}
	}()

	d.logger.Info("daemon started",
		zap.Int("pid", d.info.PID),
		zap.String("rules", d.rules.Path()))

	queue := usecase.NewEventQueue(d.config.QueueCapacity, d.config.EnqueueTimeout)
	dispatcher := NewDispatcher(d.protocol, d.notifications, d.state, queue, d.logger.Named("dispatch"))
	inhibitor := usecase.NewSleepInhibitor(dispatcher, d.config.InhibitDuration, d.logger.Named("inhibit"))
	router := NewRouter(queue.Events(), d.rules, dispatcher, d.runner, d.state, inhibitor, d.logger.Named("router"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return router.Run(gctx) })

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-queue.Stalled():
			d.logger.Error("router stalled, event queue full")
			return domain.ErrQueueFull
		}
	})

	g.Go(func() error { return queue.Push(domain.ReloadConfig{}) })

	for _, src := range d.sources {
		g.Go(func() error { return d.runSource(gctx, src, queue) })
	}

	err := g.Wait()
	inhibitor.Wait()

	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		d.logger.Info("daemon stopped")
		return nil
	}
	return err
}

// runSource runs one watcher. A watcher that fails is logged and dropped;
// only a full queue is fatal.
func (d *Daemon) runSource(ctx context.Context, src domain.EventSource, sink domain.EventSink) error {
	err := src.Run(ctx, sink)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, domain.ErrQueueFull):
		return err
	default:
		d.logger.Warn("event source stopped",
			zap.String("source", src.Name()),
			zap.Error(err))
		return nil
	}
}
