package usecase

import (
	"sync"
	"time"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// EventQueue is the bounded multi-producer queue drained by the router.
// Events are delivered in arrival order. A producer that cannot enqueue
// within the timeout marks the queue stalled instead of blocking forever.
type EventQueue struct {
	ch        chan domain.Event
	timeout   time.Duration
	stalled   chan struct{}
	stallOnce sync.Once
}

// NewEventQueue creates a queue holding up to capacity events.
func NewEventQueue(capacity int, enqueueTimeout time.Duration) *EventQueue {
	return &EventQueue{
		ch:      make(chan domain.Event, capacity),
		timeout: enqueueTimeout,
		stalled: make(chan struct{}),
	}
}

// Push enqueues ev. Returns domain.ErrQueueFull if the queue stayed full for
// the enqueue timeout or was already marked stalled.
func (q *EventQueue) Push(ev domain.Event) error {
	select {
	case q.ch <- ev:
		return nil
	default:
	}

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case q.ch <- ev:
		return nil
	case <-q.stalled:
		return domain.ErrQueueFull
	case <-timer.C:
		q.stallOnce.Do(func() { close(q.stalled) })
		return domain.ErrQueueFull
	}
}

// Events is the consumer side. Only the router reads it.
func (q *EventQueue) Events() <-chan domain.Event {
	return q.ch
}

// Stalled is closed once a producer gave up on a full queue.
func (q *EventQueue) Stalled() <-chan struct{} {
	return q.stalled
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	return len(q.ch)
}

// Ensure EventQueue implements domain.EventSink.
var _ domain.EventSink = (*EventQueue)(nil)
