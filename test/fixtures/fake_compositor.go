// Package fixtures provides test helpers for unit and integration tests.
package fixtures

import (
	"errors"
	"sync"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

const syncInterface = "fixture_sync"

// SubscriptionRecord describes one subscription created on a FakeCompositor.
type SubscriptionRecord struct {
	ID        domain.SubscriptionID
	TimeoutMs uint32
	Destroyed int
}

// FakeCompositor is an in-memory domain.Protocol. Tests drive it by
// advertising globals and emitting idle/resume events. The event stream is
// unbuffered: each emit returns once the consumer has received it, so the
// consumer must be running before anything is emitted.
type FakeCompositor struct {
	mu         sync.Mutex
	events     chan domain.ProtocolEvent
	err        error
	closed     bool
	nextName   uint32
	nextObject uint32
	subs       []*fakeSubscription
	inhibitors []*fakeInhibitor
	flushes    int
	binds      map[string]int

	// FailSubscribe makes Subscribe fail for the given timeout (ms).
	FailSubscribe map[uint32]bool
}

// NewFakeCompositor creates a connected fake.
func NewFakeCompositor() *FakeCompositor {
	return &FakeCompositor{
		events:        make(chan domain.ProtocolEvent),
		binds:         make(map[string]int),
		FailSubscribe: make(map[uint32]bool),
	}
}

// Advertise announces a global with the given interface name.
func (c *FakeCompositor) Advertise(iface string) {
	c.mu.Lock()
	c.nextName++
	name := c.nextName
	c.mu.Unlock()

	c.events <- domain.GlobalAdvertised{Name: name, Interface: iface, Version: 1}
}

// AdvertiseAll announces seat, idle notifier, compositor and inhibit manager.
func (c *FakeCompositor) AdvertiseAll() {
	c.Advertise(domain.InterfaceSeat)
	c.Advertise(domain.InterfaceIdleNotifier)
	c.Advertise(domain.InterfaceCompositor)
	c.Advertise(domain.InterfaceInhibitManager)
}

// Idle emits an idled event for id.
func (c *FakeCompositor) Idle(id domain.SubscriptionID) {
	c.events <- domain.IdleStateChanged{ID: id, Idle: true}
}

// Resume emits a resumed event for id.
func (c *FakeCompositor) Resume(id domain.SubscriptionID) {
	c.events <- domain.IdleStateChanged{ID: id, Idle: false}
}

// Sync returns once every previously emitted event has been handled by a
// single-goroutine consumer.
func (c *FakeCompositor) Sync() {
	c.Advertise(syncInterface)
}

// Disconnect closes the event stream with err.
func (c *FakeCompositor) Disconnect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.err = err
	c.closed = true
	close(c.events)
}

// Subscriptions returns every subscription ever created, in creation order.
func (c *FakeCompositor) Subscriptions() []SubscriptionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SubscriptionRecord, 0, len(c.subs))
	for _, s := range c.subs {
		out = append(out, SubscriptionRecord{ID: s.id, TimeoutMs: s.timeoutMs, Destroyed: s.destroyed})
	}
	return out
}

// LiveSubscriptions returns subscriptions not yet destroyed, in creation order.
func (c *FakeCompositor) LiveSubscriptions() []SubscriptionRecord {
	var live []SubscriptionRecord
	for _, s := range c.Subscriptions() {
		if s.Destroyed == 0 {
			live = append(live, s)
		}
	}
	return live
}

// Inhibitors returns how many inhibitors were created and destroyed.
func (c *FakeCompositor) Inhibitors() (created, destroyed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, inh := range c.inhibitors {
		created++
		destroyed += inh.destroyed
	}
	return created, destroyed
}

// Flushes returns the number of Flush calls.
func (c *FakeCompositor) Flushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushes
}

// Binds returns how many times iface was bound.
func (c *FakeCompositor) Binds(iface string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binds[iface]
}

// Closed reports whether Close was called or the stream was disconnected.
func (c *FakeCompositor) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Events implements domain.Protocol.
func (c *FakeCompositor) Events() <-chan domain.ProtocolEvent {
	return c.events
}

// Err implements domain.Protocol.
func (c *FakeCompositor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// BindSeat implements domain.Protocol.
func (c *FakeCompositor) BindSeat(g domain.GlobalAdvertised) (domain.Seat, error) {
	return &fakeHandle{id: c.bind(g)}, nil
}

// BindIdleNotifier implements domain.Protocol.
func (c *FakeCompositor) BindIdleNotifier(g domain.GlobalAdvertised) (domain.IdleNotifier, error) {
	c.bind(g)
	return &fakeNotifier{c: c}, nil
}

// BindSurface implements domain.Protocol.
func (c *FakeCompositor) BindSurface(g domain.GlobalAdvertised) (domain.Surface, error) {
	return &fakeHandle{id: c.bind(g)}, nil
}

// BindInhibitManager implements domain.Protocol.
func (c *FakeCompositor) BindInhibitManager(g domain.GlobalAdvertised) (domain.InhibitManager, error) {
	c.bind(g)
	return &fakeInhibitManager{c: c}, nil
}

// Flush implements domain.Protocol.
func (c *FakeCompositor) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

// Close implements domain.Protocol.
func (c *FakeCompositor) Close() error {
	c.Disconnect(nil)
	return nil
}

func (c *FakeCompositor) bind(g domain.GlobalAdvertised) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.binds[g.Interface]++
	c.nextObject++
	return c.nextObject
}

type fakeHandle struct{ id uint32 }

func (h *fakeHandle) ProtocolID() uint32 { return h.id }

type fakeNotifier struct{ c *FakeCompositor }

func (n *fakeNotifier) Subscribe(seat domain.Seat, timeoutMs uint32, id domain.SubscriptionID) (domain.Subscription, error) {
	n.c.mu.Lock()
	defer n.c.mu.Unlock()

	if n.c.FailSubscribe[timeoutMs] {
		return nil, errors.New("fake: subscribe failed")
	}
	s := &fakeSubscription{c: n.c, id: id, timeoutMs: timeoutMs}
	n.c.subs = append(n.c.subs, s)
	return s, nil
}

type fakeSubscription struct {
	c         *FakeCompositor
	id        domain.SubscriptionID
	timeoutMs uint32
	destroyed int
}

func (s *fakeSubscription) Destroy() error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.destroyed++
	return nil
}

type fakeInhibitManager struct{ c *FakeCompositor }

func (m *fakeInhibitManager) CreateInhibitor(surface domain.Surface) (domain.Inhibitor, error) {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	inh := &fakeInhibitor{c: m.c}
	m.c.inhibitors = append(m.c.inhibitors, inh)
	return inh, nil
}

type fakeInhibitor struct {
	c         *FakeCompositor
	destroyed int
}

func (i *fakeInhibitor) Destroy() error {
	i.c.mu.Lock()
	defer i.c.mu.Unlock()
	i.destroyed++
	return nil
}

// Ensure FakeCompositor implements domain.Protocol.
var _ domain.Protocol = (*FakeCompositor)(nil)
