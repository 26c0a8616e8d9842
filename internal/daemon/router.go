package daemon

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/domain"
	"github.com/eliteGoblin/hypnos/internal/usecase"
)

// LoopControl is the part of the dispatch loop the router drives.
type LoopControl interface {
	ApplyRules(ctx context.Context, rules []domain.Rule) error
	Flush(ctx context.Context) error
}

// InhibitRequester starts a sleep inhibit period.
type InhibitRequester interface {
	Request(ctx context.Context) bool
}

// Router is the single consumer of the event queue. Events are handled one at
// a time in arrival order; this is the only place commands are spawned.
type Router struct {
	events    <-chan domain.Event
	rules     domain.RuleSource
	loop      LoopControl
	runner    domain.CommandRunner
	state     *usecase.SharedState
	inhibitor InhibitRequester
	logger    *zap.Logger

	lastDigest string
}

// NewRouter creates a router draining events.
func NewRouter(
	events <-chan domain.Event,
	rules domain.RuleSource,
	loop LoopControl,
	runner domain.CommandRunner,
	state *usecase.SharedState,
	inhibitor InhibitRequester,
	logger *zap.Logger,
) *Router {
	return &Router{
		events:    events,
		rules:     rules,
		loop:      loop,
		runner:    runner,
		state:     state,
		inhibitor: inhibitor,
		logger:    logger,
	}
}

// Run drains the queue until ctx is canceled. Returns an error only when the
// dispatch loop is gone.
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("router started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router stopping")
			return ctx.Err()
		case ev := <-r.events:
			if err := r.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (r *Router) handle(ctx context.Context, ev domain.Event) error {
	r.logger.Debug("handling event", zap.String("event", domain.EventName(ev)))

	switch e := ev.(type) {
	case domain.ReloadConfig:
		return r.reload(ctx)

	case domain.RunCommand:
		if err := r.runner.Run(ctx, e.Command); err != nil {
			r.logger.Warn("failed to run command",
				zap.String("command", e.Command),
				zap.Error(err))
		}

	case domain.PowerStateChanged:
		before := r.state.PowerState()
		r.state.SetOnBattery(e.OnBattery)
		if after := r.state.PowerState(); after != before {
			r.logger.Info("power source changed",
				zap.Stringer("from", before),
				zap.Stringer("to", after))
		}

	case domain.SessionEvent:
		r.logger.Info("session event", zap.String("name", e.Name))

	case domain.Inhibit:
		r.inhibitor.Request(ctx)

	case domain.Flush:
		return r.loopErr(r.loop.Flush(ctx))

	case domain.TogglePause:
		paused := r.state.TogglePaused()
		r.logger.Info("idle actions toggled", zap.Bool("paused", paused))

	default:
		r.logger.Warn("unknown event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
	return nil
}

// reload re-reads the rule file. A file that fails to load leaves the
// current rules in force; unchanged content is not reapplied.
func (r *Router) reload(ctx context.Context) error {
	rules, digest, err := r.rules.Load()
	if err != nil {
		r.logger.Warn("failed to reload rules, keeping current rules",
			zap.String("path", r.rules.Path()),
			zap.Error(err))
		return nil
	}

	if digest == r.lastDigest {
		r.logger.Debug("rule file unchanged", zap.String("path", r.rules.Path()))
		return nil
	}

	if err := r.loop.ApplyRules(ctx, rules); err != nil {
		return r.loopErr(err)
	}
	r.lastDigest = digest

	r.logger.Info("rules loaded",
		zap.String("path", r.rules.Path()),
		zap.Int("rules", len(rules)))
	return nil
}

func (r *Router) loopErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrConnectionLost) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	r.logger.Warn("dispatch loop request failed", zap.Error(err))
	return nil
}
