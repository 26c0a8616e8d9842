package usecase

import "github.com/eliteGoblin/hypnos/internal/domain"

// Capabilities holds the protocol globals bound so far.
// Owned by the dispatch loop; never shared with other goroutines.
type Capabilities struct {
	Seat           domain.Seat
	Notifier       domain.IdleNotifier
	Surface        domain.Surface
	InhibitManager domain.InhibitManager
}

// Ready reports whether subscriptions can be created.
func (c *Capabilities) Ready() bool {
	return c.Seat != nil && c.Notifier != nil
}

// CanInhibit reports whether an idle inhibitor can be created.
func (c *Capabilities) CanInhibit() bool {
	return c.Surface != nil && c.InhibitManager != nil
}
