package usecase

import (
	"sync"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// SharedState holds the flags read by the dispatch loop and written by the
// router: last known power source and the pause flag.
type SharedState struct {
	mu     sync.Mutex
	power  domain.PowerState
	paused bool
}

// NewSharedState creates state with unknown power and no pause.
func NewSharedState() *SharedState {
	return &SharedState{}
}

// SetOnBattery records a power watcher report.
func (s *SharedState) SetOnBattery(onBattery bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if onBattery {
		s.power = domain.PowerBattery
	} else {
		s.power = domain.PowerAC
	}
}

// PowerState returns the last known power source.
func (s *SharedState) PowerState() domain.PowerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.power
}

// SetPaused sets the pause flag.
func (s *SharedState) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

// TogglePaused flips the pause flag and returns the new value.
func (s *SharedState) TogglePaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = !s.paused
	return s.paused
}

// Paused reports whether idle actions are paused.
func (s *SharedState) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
