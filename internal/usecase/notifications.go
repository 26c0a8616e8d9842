// Package usecase contains application business logic.
package usecase

import (
	"sync"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// Entry is the registry value for one live subscription.
type Entry struct {
	Action        string
	Restore       string // empty = no restore command
	OnBatteryOnly bool

	// Fired is set when Action was dispatched for the current idle period.
	// A restore command only runs for a period whose action ran.
	Fired bool

	subscription domain.Subscription
}

// NotificationRegistry maps subscription identities to their rule data.
// Every live subscription has exactly one entry. The lock is held only for
// a single lookup/insert/remove; protocol calls happen outside it.
type NotificationRegistry struct {
	mu      sync.Mutex
	entries map[domain.SubscriptionID]Entry
}

// NewNotificationRegistry creates an empty registry.
func NewNotificationRegistry() *NotificationRegistry {
	return &NotificationRegistry{
		entries: make(map[domain.SubscriptionID]Entry),
	}
}

// Lookup returns the entry for id.
func (r *NotificationRegistry) Lookup(id domain.SubscriptionID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	return e, ok
}

// SetFired updates the fired flag of id. Returns false if id is unknown.
func (r *NotificationRegistry) SetFired(id domain.SubscriptionID, fired bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.Fired = fired
	r.entries[id] = e
	return true
}

// Len returns the number of live entries.
func (r *NotificationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a copy of all entries keyed by identity.
func (r *NotificationRegistry) Entries() map[domain.SubscriptionID]Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[domain.SubscriptionID]Entry, len(r.entries))
	for id, e := range r.entries {
		out[id] = e
	}
	return out
}

func (r *NotificationRegistry) insert(id domain.SubscriptionID, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = e
}

// takeAll empties the registry and returns what it held. The caller owns the
// returned subscriptions and must destroy them.
func (r *NotificationRegistry) takeAll() map[domain.SubscriptionID]Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.entries
	r.entries = make(map[domain.SubscriptionID]Entry, len(old))
	return old
}
