package domain

import "errors"

var (
	// ErrNotReady means the seat or idle notifier has not been advertised yet.
	ErrNotReady = errors.New("protocol capabilities not ready")

	// ErrQueueFull means the router stopped draining the event queue.
	ErrQueueFull = errors.New("event queue full: router stalled")

	// ErrConnectionLost means the compositor connection is gone.
	ErrConnectionLost = errors.New("compositor connection lost")

	// ErrTimeoutOverflow means a rule timeout does not fit the protocol's uint32 milliseconds.
	ErrTimeoutOverflow = errors.New("timeout exceeds protocol range")

	// ErrInvalidRule means a rule failed validation.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrEmptyCommand means a command string split into no words.
	ErrEmptyCommand = errors.New("empty command")

	// ErrAlreadyRunning means another daemon instance is alive.
	ErrAlreadyRunning = errors.New("daemon already running")

	// ErrNotRunning means no live daemon instance is recorded.
	ErrNotRunning = errors.New("daemon not running")
)
