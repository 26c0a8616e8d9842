package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSleepInhibitor_AcquireAndRelease(t *testing.T) {
	host := &mockInhibitorHost{}
	s := NewSleepInhibitor(host, 20*time.Millisecond, zap.NewNop())

	assert.True(t, s.Request(context.Background()))
	assert.True(t, s.Active())

	s.Wait()

	acquired, released := host.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
	assert.False(t, s.Active())
}

func TestSleepInhibitor_DeduplicatesOverlappingRequests(t *testing.T) {
	host := &mockInhibitorHost{}
	s := NewSleepInhibitor(host, 50*time.Millisecond, zap.NewNop())

	assert.True(t, s.Request(context.Background()))
	assert.False(t, s.Request(context.Background()))
	assert.False(t, s.Request(context.Background()))

	s.Wait()

	acquired, released := host.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)

	// A new request after the period ends starts a fresh one
	assert.True(t, s.Request(context.Background()))
	s.Wait()
	acquired, _ = host.counts()
	assert.Equal(t, 2, acquired)
}

func TestSleepInhibitor_ReleasesOnCancel(t *testing.T) {
	host := &mockInhibitorHost{}
	s := NewSleepInhibitor(host, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Request(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("inhibitor did not release on cancel")
	}

	_, released := host.counts()
	assert.Equal(t, 1, released)
}

func TestSleepInhibitor_AcquireErrorStillHolds(t *testing.T) {
	host := &mockInhibitorHost{acquireErr: assert.AnError}
	s := NewSleepInhibitor(host, 10*time.Millisecond, zap.NewNop())

	assert.True(t, s.Request(context.Background()))
	s.Wait()

	_, released := host.counts()
	assert.Equal(t, 1, released)
}
