package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// mockSeat implements domain.Seat for testing
type mockSeat struct{ id uint32 }

func (s *mockSeat) ProtocolID() uint32 { return s.id }

// mockSubscription implements domain.Subscription for testing
type mockSubscription struct {
	timeoutMs  uint32
	id         domain.SubscriptionID
	destroyed  int
	destroyErr error
}

func (s *mockSubscription) Destroy() error {
	s.destroyed++
	return s.destroyErr
}

// mockNotifier implements domain.IdleNotifier for testing
type mockNotifier struct {
	created []*mockSubscription
	// failTimeouts lists timeouts (ms) for which Subscribe fails
	failTimeouts map[uint32]bool
}

func (n *mockNotifier) Subscribe(seat domain.Seat, timeoutMs uint32, id domain.SubscriptionID) (domain.Subscription, error) {
	if n.failTimeouts[timeoutMs] {
		return nil, errors.New("protocol error")
	}
	sub := &mockSubscription{timeoutMs: timeoutMs, id: id}
	n.created = append(n.created, sub)
	return sub, nil
}

func (n *mockNotifier) live() int {
	count := 0
	for _, s := range n.created {
		if s.destroyed == 0 {
			count++
		}
	}
	return count
}

// mockInhibitorHost implements InhibitorHost for testing
type mockInhibitorHost struct {
	mu         sync.Mutex
	acquired   int
	released   int
	acquireErr error
}

func (h *mockInhibitorHost) AcquireInhibitor(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.acquired++
	return h.acquireErr
}

func (h *mockInhibitorHost) ReleaseInhibitor(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released++
	return nil
}

func (h *mockInhibitorHost) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acquired, h.released
}

func readyCaps(n *mockNotifier) Capabilities {
	return Capabilities{Seat: &mockSeat{id: 1}, Notifier: n}
}
