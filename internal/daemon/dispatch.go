// Package daemon implements the idle coordinator: the protocol dispatch loop,
// the command router and their wiring.
package daemon

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/domain"
	"github.com/eliteGoblin/hypnos/internal/usecase"
)

// taskBuffer bounds the tasks posted into the dispatch loop by other goroutines.
const taskBuffer = 64

// Dispatcher is the protocol dispatch loop. It owns the compositor connection
// and every protocol handle: capabilities, subscriptions and the inhibitor are
// fields only Run's goroutine touches. Other goroutines reach them by posting
// tasks through ApplyRules, Flush, AcquireInhibitor and ReleaseInhibitor.
type Dispatcher struct {
	protocol      domain.Protocol
	reconciler    *usecase.Reconciler
	notifications *usecase.NotificationRegistry
	state         *usecase.SharedState
	sink          domain.EventSink
	logger        *zap.Logger

	tasks chan func()
	done  chan struct{}

	// Loop-owned.
	caps        usecase.Capabilities
	rules       []domain.Rule
	rulesLoaded bool
	inhibitor   domain.Inhibitor
}

// NewDispatcher creates the dispatch loop. Idle actions are pushed to sink.
func NewDispatcher(
	protocol domain.Protocol,
	notifications *usecase.NotificationRegistry,
	state *usecase.SharedState,
	sink domain.EventSink,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		protocol:      protocol,
		reconciler:    usecase.NewReconciler(notifications, logger.Named("reconcile")),
		notifications: notifications,
		state:         state,
		sink:          sink,
		logger:        logger,
		tasks:         make(chan func(), taskBuffer),
		done:          make(chan struct{}),
	}
}

// Run processes protocol events and posted tasks until ctx is canceled or the
// connection fails. Connection loss returns an error wrapping
// domain.ErrConnectionLost; a stalled router returns domain.ErrQueueFull.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.done)
	defer d.teardown()

	d.logger.Info("dispatch loop started")

	events := d.protocol.Events()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatch loop stopping")
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				err := d.protocol.Err()
				d.logger.Error("compositor connection lost", zap.Error(err))
				if err == nil {
					return domain.ErrConnectionLost
				}
				return fmt.Errorf("%w: %w", domain.ErrConnectionLost, err)
			}
			if err := d.handleProtocolEvent(ev); err != nil {
				return err
			}

		case task := <-d.tasks:
			task()
		}
	}
}

// ApplyRules hands a freshly loaded rule set to the loop. The loop keeps it as
// the current set and reconciles, or defers until seat and notifier are bound.
func (d *Dispatcher) ApplyRules(ctx context.Context, rules []domain.Rule) error {
	rules = append([]domain.Rule(nil), rules...)
	return d.post(ctx, func() {
		d.rules = rules
		d.rulesLoaded = true
		d.reconcile()
	})
}

// Flush asks the loop to flush pending protocol requests.
func (d *Dispatcher) Flush(ctx context.Context) error {
	return d.post(ctx, func() {
		if err := d.protocol.Flush(); err != nil {
			d.logger.Warn("failed to flush protocol requests", zap.Error(err))
		}
	})
}

// AcquireInhibitor asks the loop to create the idle inhibitor. No-op when one
// exists or the inhibit manager or surface was never advertised.
func (d *Dispatcher) AcquireInhibitor(ctx context.Context) error {
	return d.post(ctx, func() {
		if d.inhibitor != nil {
			return
		}
		if !d.caps.CanInhibit() {
			d.logger.Debug("idle inhibit unavailable, holding without inhibitor")
			return
		}
		inh, err := d.caps.InhibitManager.CreateInhibitor(d.caps.Surface)
		if err != nil {
			d.logger.Warn("failed to create idle inhibitor", zap.Error(err))
			return
		}
		d.inhibitor = inh
	})
}

// ReleaseInhibitor asks the loop to destroy the idle inhibitor if one exists.
func (d *Dispatcher) ReleaseInhibitor(ctx context.Context) error {
	return d.post(ctx, d.destroyInhibitor)
}

// post queues fn for the loop without waiting for it to run.
func (d *Dispatcher) post(ctx context.Context, fn func()) error {
	select {
	case <-d.done:
		return domain.ErrConnectionLost
	default:
	}

	select {
	case d.tasks <- fn:
		return nil
	case <-d.done:
		return domain.ErrConnectionLost
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) handleProtocolEvent(ev domain.ProtocolEvent) error {
	switch e := ev.(type) {
	case domain.GlobalAdvertised:
		d.handleGlobal(e)
		return nil
	case domain.IdleStateChanged:
		return d.handleIdle(e)
	default:
		d.logger.Debug("ignoring protocol event", zap.String("type", fmt.Sprintf("%T", ev)))
		return nil
	}
}

func (d *Dispatcher) handleGlobal(g domain.GlobalAdvertised) {
	wasReady := d.caps.Ready()

	var err error
	switch g.Interface {
	case domain.InterfaceSeat:
		if d.caps.Seat != nil {
			return
		}
		d.caps.Seat, err = d.protocol.BindSeat(g)
	case domain.InterfaceIdleNotifier:
		if d.caps.Notifier != nil {
			return
		}
		d.caps.Notifier, err = d.protocol.BindIdleNotifier(g)
	case domain.InterfaceCompositor:
		if d.caps.Surface != nil {
			return
		}
		d.caps.Surface, err = d.protocol.BindSurface(g)
	case domain.InterfaceInhibitManager:
		if d.caps.InhibitManager != nil {
			return
		}
		d.caps.InhibitManager, err = d.protocol.BindInhibitManager(g)
	default:
		return
	}

	if err != nil {
		d.logger.Warn("failed to bind global",
			zap.String("interface", g.Interface),
			zap.Uint32("name", g.Name),
			zap.Error(err))
		return
	}

	d.logger.Debug("bound global",
		zap.String("interface", g.Interface),
		zap.Uint32("name", g.Name),
		zap.Uint32("version", g.Version))

	if !wasReady && d.caps.Ready() && d.rulesLoaded {
		d.reconcile()
	}
}

func (d *Dispatcher) reconcile() {
	result, err := d.reconciler.Reconcile(d.rules, d.caps)
	if errors.Is(err, domain.ErrNotReady) {
		d.logger.Debug("seat or idle notifier not bound yet, deferring rules",
			zap.Int("rules", len(d.rules)))
		return
	}
	if err != nil {
		d.logger.Error("reconcile failed", zap.Error(err))
		return
	}

	d.logger.Info("rules applied",
		zap.Int("subscriptions", result.Created),
		zap.Int("destroyed", result.Destroyed),
		zap.Int("skipped", len(result.Failures)))
}

func (d *Dispatcher) handleIdle(ev domain.IdleStateChanged) error {
	entry, ok := d.notifications.Lookup(ev.ID)
	if !ok {
		d.logger.Debug("idle event for superseded subscription",
			zap.Stringer("id", ev.ID),
			zap.Bool("idle", ev.Idle))
		return nil
	}

	if ev.Idle {
		if d.state.Paused() {
			d.logger.Debug("paused, skipping idle action", zap.String("action", entry.Action))
			return nil
		}
		if entry.OnBatteryOnly && !d.state.PowerState().OnBattery() {
			d.logger.Debug("not on battery, skipping idle action",
				zap.String("action", entry.Action),
				zap.Stringer("power", d.state.PowerState()))
			return nil
		}
		d.notifications.SetFired(ev.ID, true)
		return d.push(domain.RunCommand{Command: entry.Action})
	}

	if !entry.Fired {
		return nil
	}
	d.notifications.SetFired(ev.ID, false)
	if entry.Restore == "" {
		return nil
	}
	return d.push(domain.RunCommand{Command: entry.Restore})
}

func (d *Dispatcher) push(ev domain.Event) error {
	if err := d.sink.Push(ev); err != nil {
		d.logger.Error("failed to enqueue event",
			zap.String("event", domain.EventName(ev)),
			zap.Error(err))
		return fmt.Errorf("dispatch loop: %w", err)
	}
	return nil
}

func (d *Dispatcher) destroyInhibitor() {
	if d.inhibitor == nil {
		return
	}
	if err := d.inhibitor.Destroy(); err != nil {
		d.logger.Warn("failed to destroy idle inhibitor", zap.Error(err))
	}
	d.inhibitor = nil
}

// teardown destroys loop-owned objects and closes the connection.
func (d *Dispatcher) teardown() {
	d.destroyInhibitor()
	if d.caps.Ready() {
		if _, err := d.reconciler.Reconcile(nil, d.caps); err != nil {
			d.logger.Debug("failed to clear subscriptions", zap.Error(err))
		}
	}
	if err := d.protocol.Close(); err != nil {
		d.logger.Debug("failed to close protocol connection", zap.Error(err))
	}
}
