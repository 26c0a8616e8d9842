package domain

import (
	"context"
	"os"
)

// Protocol is the compositor connection as seen by the dispatch loop.
// Implementation: go-wayland client (internal/infra/wayland).
//
// Every method except Events and Err creates, binds or flushes protocol
// objects and must only be called from the dispatch loop goroutine.
type Protocol interface {
	// Events delivers decoded protocol events. Closed when the connection fails.
	Events() <-chan ProtocolEvent

	// Err returns the transport error that closed Events.
	Err() error

	// BindSeat binds an advertised wl_seat.
	BindSeat(g GlobalAdvertised) (Seat, error)

	// BindIdleNotifier binds an advertised ext_idle_notifier_v1.
	BindIdleNotifier(g GlobalAdvertised) (IdleNotifier, error)

	// BindSurface binds an advertised wl_compositor and creates the surface
	// used for idle inhibitors.
	BindSurface(g GlobalAdvertised) (Surface, error)

	// BindInhibitManager binds an advertised zwp_idle_inhibit_manager_v1.
	BindInhibitManager(g GlobalAdvertised) (InhibitManager, error)

	// Flush writes any buffered requests to the compositor.
	Flush() error

	// Close tears down the connection.
	Close() error
}

// Seat is a bound wl_seat handle.
type Seat interface {
	ProtocolID() uint32
}

// Surface is a wl_surface handle owned by the daemon.
type Surface interface {
	ProtocolID() uint32
}

// IdleNotifier is a bound ext_idle_notifier_v1 handle.
type IdleNotifier interface {
	// Subscribe creates an idle notification for seat firing after timeoutMs of
	// inactivity. Idle and resume events carry id.
	Subscribe(seat Seat, timeoutMs uint32, id SubscriptionID) (Subscription, error)
}

// Subscription is a live ext_idle_notification_v1 object.
// It must be destroyed before being dropped.
type Subscription interface {
	Destroy() error
}

// InhibitManager is a bound zwp_idle_inhibit_manager_v1 handle.
type InhibitManager interface {
	CreateInhibitor(surface Surface) (Inhibitor, error)
}

// Inhibitor is a live zwp_idle_inhibitor_v1 object.
type Inhibitor interface {
	Destroy() error
}

// EventSink accepts router events from any goroutine.
type EventSink interface {
	// Push enqueues ev. Returns ErrQueueFull if the router is stalled.
	Push(ev Event) error
}

// EventSource is an external watcher feeding the router (power, session,
// rule file, OS signals).
type EventSource interface {
	// Name identifies the source in logs.
	Name() string

	// Run pushes events into sink until ctx is canceled.
	Run(ctx context.Context, sink EventSink) error
}

// CommandRunner spawns action commands.
type CommandRunner interface {
	// Run splits command into words and starts it without waiting for it to exit.
	Run(ctx context.Context, command string) error
}

// RuleSource loads the rule file.
type RuleSource interface {
	// Load reads and parses the rule file. Digest identifies the file content
	// so unchanged reloads can be skipped.
	Load() (rules []Rule, digest string, err error)

	// Path returns the rule file path.
	Path() string
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil.
type ProcessManager interface {
	// FindByName returns PIDs of processes whose name matches exactly.
	FindByName(name string) ([]int, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Signal delivers sig to pid.
	Signal(pid int, sig os.Signal) error

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// InstanceRegistry records the running daemon for CLI discovery.
// Implementation: JSON file in $XDG_RUNTIME_DIR guarded by flock.
type InstanceRegistry interface {
	// Register records info. Fails with ErrAlreadyRunning if another live
	// instance is recorded.
	Register(info DaemonInfo) error

	// Get returns the recorded instance, or ErrNotRunning.
	Get() (*DaemonInfo, error)

	// Clear removes the record if it belongs to pid.
	Clear(pid int) error

	// Path returns the instance file path (for tests and status output).
	Path() string
}

// UnitManager handles the systemd user unit.
type UnitManager interface {
	// Install writes the unit file and reloads the manager.
	Install(execPath string) error

	// Uninstall stops, disables and removes the unit file.
	Uninstall(ctx context.Context) error

	// IsInstalled checks if the unit file exists.
	IsInstalled() bool

	// NeedsUpdate checks if the unit file differs from the expected content.
	NeedsUpdate(execPath string) bool

	// Update rewrites the unit file and reloads the manager.
	Update(execPath string) error

	// UnitPath returns the unit file path.
	UnitPath() string

	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	IsEnabled(ctx context.Context) (bool, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	IsActive(ctx context.Context) (bool, error)
}
