package domain

// Event is a request for the command router.
// Producers: the dispatch loop, the external watchers and the signal source.
type Event interface {
	eventName() string
}

// EventName returns a short label for logging.
func EventName(ev Event) string {
	return ev.eventName()
}

// ReloadConfig asks the router to re-read the rule file.
type ReloadConfig struct{}

// RunCommand asks the router to spawn a shell command.
type RunCommand struct {
	Command string
}

// PowerStateChanged reports the current power source.
type PowerStateChanged struct {
	OnBattery bool
}

// SessionEvent reports a login session transition (Lock, Unlock, PrepareSleep, Wakeup).
type SessionEvent struct {
	Name string
}

// Inhibit asks for a temporary sleep inhibitor.
type Inhibit struct{}

// Flush asks the dispatch loop to flush pending protocol requests.
type Flush struct{}

// TogglePause flips the pause flag.
type TogglePause struct{}

func (ReloadConfig) eventName() string      { return "reload_config" }
func (RunCommand) eventName() string        { return "run_command" }
func (PowerStateChanged) eventName() string { return "power_state" }
func (SessionEvent) eventName() string      { return "session_event" }
func (Inhibit) eventName() string           { return "inhibit" }
func (Flush) eventName() string             { return "flush" }
func (TogglePause) eventName() string       { return "toggle_pause" }

// Session event names emitted by the session watcher.
const (
	SessionLock         = "Lock"
	SessionUnlock       = "Unlock"
	SessionPrepareSleep = "PrepareSleep"
	SessionWakeup       = "Wakeup"
)

// ProtocolEvent is decoded compositor traffic delivered to the dispatch loop.
type ProtocolEvent interface {
	protocolEvent()
}

// GlobalAdvertised is a registry global announcement.
type GlobalAdvertised struct {
	Name      uint32
	Interface string
	Version   uint32
}

// IdleStateChanged is an idled (Idle=true) or resumed (Idle=false) notification.
type IdleStateChanged struct {
	ID   SubscriptionID
	Idle bool
}

func (GlobalAdvertised) protocolEvent() {}
func (IdleStateChanged) protocolEvent() {}
