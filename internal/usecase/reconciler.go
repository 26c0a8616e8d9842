package usecase

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// ReconcileResult summarizes one reconcile pass.
type ReconcileResult struct {
	Destroyed int     // Subscriptions torn down from the previous rule set
	Created   int     // Subscriptions created for the new rule set
	Failures  []error // Per-rule failures; those rules were skipped
}

// Reconciler rebuilds the notification registry from a rule list.
// It destroys every existing subscription and creates a fresh set, so at any
// stable point the registry matches the last applied rules.
//
// Reconcile creates and destroys protocol objects: call it only from the
// dispatch loop goroutine.
type Reconciler struct {
	notifications *NotificationRegistry
	newID         func() domain.SubscriptionID
	logger        *zap.Logger
}

// NewReconciler creates a reconciler writing into notifications.
func NewReconciler(notifications *NotificationRegistry, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		notifications: notifications,
		newID:         domain.NewSubscriptionID,
		logger:        logger,
	}
}

// Reconcile replaces all subscriptions with one per rule, in rule order.
// Returns domain.ErrNotReady without touching the registry if the seat or
// idle notifier is missing; the caller retries when the capability arrives.
func (r *Reconciler) Reconcile(rules []domain.Rule, caps Capabilities) (ReconcileResult, error) {
	var result ReconcileResult

	if !caps.Ready() {
		return result, domain.ErrNotReady
	}

	for id, old := range r.notifications.takeAll() {
		if err := old.subscription.Destroy(); err != nil {
			r.logger.Warn("failed to destroy idle subscription",
				zap.Stringer("id", id),
				zap.Error(err))
		}
		result.Destroyed++
	}

	for i, rule := range rules {
		timeoutMs, err := TimeoutMillis(rule.TimeoutSeconds)
		if err != nil {
			r.skip(&result, i, rule, err)
			continue
		}

		id := r.newID()
		sub, err := caps.Notifier.Subscribe(caps.Seat, timeoutMs, id)
		if err != nil {
			r.skip(&result, i, rule, fmt.Errorf("failed to create idle subscription: %w", err))
			continue
		}

		r.notifications.insert(id, Entry{
			Action:        rule.Action,
			Restore:       rule.RestoreAction,
			OnBatteryOnly: rule.OnBatteryOnly,
			subscription:  sub,
		})
		result.Created++

		r.logger.Debug("registered rule",
			zap.Stringer("id", id),
			zap.Int("timeout_s", rule.TimeoutSeconds),
			zap.String("action", rule.Action),
			zap.Bool("on_battery_only", rule.OnBatteryOnly))
	}

	return result, nil
}

func (r *Reconciler) skip(result *ReconcileResult, index int, rule domain.Rule, err error) {
	r.logger.Warn("skipping rule",
		zap.Int("index", index),
		zap.Int("timeout_s", rule.TimeoutSeconds),
		zap.String("action", rule.Action),
		zap.Error(err))
	result.Failures = append(result.Failures, fmt.Errorf("rule %d: %w", index, err))
}

// TimeoutMillis converts a rule timeout to protocol milliseconds.
func TimeoutMillis(seconds int) (uint32, error) {
	if seconds < 0 || seconds > math.MaxUint32/1000 {
		return 0, fmt.Errorf("%w: %ds", domain.ErrTimeoutOverflow, seconds)
	}
	return uint32(seconds) * 1000, nil
}

// Err joins the per-rule failures, or returns nil.
func (r ReconcileResult) Err() error {
	return errors.Join(r.Failures...)
}
