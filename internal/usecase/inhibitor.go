package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultInhibitDuration is how long a sleep inhibitor is held.
const DefaultInhibitDuration = 5 * time.Minute

// InhibitorHost creates and destroys the protocol inhibitor object.
// Implemented by the dispatch loop, which owns the protocol handles.
type InhibitorHost interface {
	// AcquireInhibitor creates the inhibitor. No-op if the compositor never
	// advertised the inhibit manager or the surface.
	AcquireInhibitor(ctx context.Context) error

	// ReleaseInhibitor destroys the inhibitor if one exists.
	ReleaseInhibitor(ctx context.Context) error
}

// SleepInhibitor holds a "prevent sleep" inhibitor for a fixed duration.
// Overlapping requests collapse into the one already in flight.
type SleepInhibitor struct {
	host     InhibitorHost
	duration time.Duration
	active   atomic.Bool
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewSleepInhibitor creates an inhibitor holding for duration.
func NewSleepInhibitor(host InhibitorHost, duration time.Duration, logger *zap.Logger) *SleepInhibitor {
	return &SleepInhibitor{
		host:     host,
		duration: duration,
		logger:   logger,
	}
}

// Request starts an inhibit period unless one is already active.
// Returns immediately; returns false if the request was deduplicated.
func (s *SleepInhibitor) Request(ctx context.Context) bool {
	if !s.active.CompareAndSwap(false, true) {
		s.logger.Debug("sleep already inhibited")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Store(false)
		s.hold(ctx)
	}()
	return true
}

func (s *SleepInhibitor) hold(ctx context.Context) {
	s.logger.Info("inhibiting sleep", zap.Duration("duration", s.duration))

	if err := s.host.AcquireInhibitor(ctx); err != nil {
		s.logger.Warn("failed to create idle inhibitor", zap.Error(err))
	}

	timer := time.NewTimer(s.duration)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}

	if err := s.host.ReleaseInhibitor(ctx); err != nil {
		s.logger.Debug("failed to release idle inhibitor", zap.Error(err))
	}
	s.logger.Info("sleep inhibit released")
}

// Active reports whether an inhibit period is in progress.
func (s *SleepInhibitor) Active() bool {
	return s.active.Load()
}

// Wait blocks until in-flight inhibit periods end.
func (s *SleepInhibitor) Wait() {
	s.wg.Wait()
}
