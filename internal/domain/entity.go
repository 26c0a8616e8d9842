// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies
// beyond the identity type.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rule is one validated entry of the rule file.
// Rules are immutable; a reload replaces the whole list.
type Rule struct {
	TimeoutSeconds int    // Idle time before Action runs (always > 0)
	Action         string // Shell command run when idle is reached
	RestoreAction  string // Shell command run on resume (empty = none)
	OnBatteryOnly  bool   // Only run Action while on battery power
}

// HasRestore reports whether the rule defines a restore command.
func (r Rule) HasRestore() bool {
	return r.RestoreAction != ""
}

// SubscriptionID identifies one idle subscription for the life of the process.
// A fresh ID is generated every time a subscription is created, so an event
// carrying an ID from a superseded rule set never matches a current entry.
type SubscriptionID = uuid.UUID

// NewSubscriptionID returns a fresh random identity.
func NewSubscriptionID() SubscriptionID {
	return uuid.New()
}

// PowerState is the last known power source.
type PowerState int

const (
	PowerUnknown PowerState = iota // No report from the power watcher yet
	PowerAC
	PowerBattery
)

// OnBattery reports whether the device is known to be running on battery.
// Unknown counts as "not on battery".
func (p PowerState) OnBattery() bool {
	return p == PowerBattery
}

func (p PowerState) String() string {
	switch p {
	case PowerAC:
		return "ac"
	case PowerBattery:
		return "battery"
	default:
		return "unknown"
	}
}

// Protocol interface names the dispatch loop binds.
const (
	InterfaceSeat           = "wl_seat"
	InterfaceIdleNotifier   = "ext_idle_notifier_v1"
	InterfaceCompositor     = "wl_compositor"
	InterfaceInhibitManager = "zwp_idle_inhibit_manager_v1"
)

// DaemonInfo is the instance record of a running daemon.
// Persisted to the runtime directory so CLI commands can find the daemon.
type DaemonInfo struct {
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	AppVersion string    `json:"app_version,omitempty"`
	RulesFile  string    `json:"rules_file"`
}
