// Package wayland connects the daemon to a Wayland compositor with go-wayland
// and exposes the idle-notify and idle-inhibit globals as domain.Protocol.
package wayland

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// Highest interface versions this client speaks.
const (
	seatVersion           = 7
	compositorVersion     = 4
	idleNotifierVersion   = 1
	inhibitManagerVersion = 1
)

// eventBuffer absorbs registry bursts at startup.
const eventBuffer = 32

// ErrWrongHandle is returned when a handle from another connection is passed in.
var ErrWrongHandle = errors.New("protocol handle does not belong to this connection")

// Client is a compositor connection.
//
// go-wayland keeps its object table in an unguarded map, so every access to
// it goes through objects: proxy creation and binding on the caller's side,
// and lookup, dispatch and delete_id handling on the reader goroutine.
// Handlers run with objects held and only append to pending; the reader
// delivers pending events after releasing the lock.
type Client struct {
	display  *client.Display
	ctx      *client.Context
	registry *client.Registry
	logger   *zap.Logger

	objects sync.Mutex
	pending []domain.ProtocolEvent // reader goroutine only

	events chan domain.ProtocolEvent
	done   chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

var _ domain.Protocol = (*Client)(nil)

// Connect opens the compositor socket named by $WAYLAND_DISPLAY.
func Connect(logger *zap.Logger) (*Client, error) {
	return Dial("", logger)
}

// Dial opens the compositor socket at addr ("" for $WAYLAND_DISPLAY) and
// requests the registry. Globals arrive on Events.
func Dial(addr string, logger *zap.Logger) (*Client, error) {
	display, err := client.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("connect to wayland display: %w", err)
	}

	c := &Client{
		display: display,
		ctx:     display.Context(),
		logger:  logger,
		events:  make(chan domain.ProtocolEvent, eventBuffer),
		done:    make(chan struct{}),
	}

	display.SetErrorHandler(func(e client.DisplayErrorEvent) {
		c.setErr(fmt.Errorf("compositor error %d: %s", e.Code, e.Message))
		c.logger.Error("compositor protocol error",
			zap.Uint32("code", e.Code),
			zap.String("message", e.Message))
	})
	display.SetDeleteIdHandler(c.handleDeleteID)

	registry, err := display.GetRegistry()
	if err != nil {
		closeLogged(c.ctx, c.logger)
		return nil, fmt.Errorf("get registry: %w", err)
	}
	registry.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
		c.queue(domain.GlobalAdvertised{
			Name:      e.Name,
			Interface: e.Interface,
			Version:   e.Version,
		})
	})
	c.registry = registry

	go c.readLoop()

	return c, nil
}

// closeLogged closes conn on an error path, logging a failed close.
func closeLogged(conn io.Closer, logger *zap.Logger) {
	if err := conn.Close(); err != nil {
		logger.Debug("failed to close protocol connection", zap.Error(err))
	}
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		sender, opcode, fd, data, err := c.ctx.ReadMsg()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.setErr(fmt.Errorf("read message: %w", err))
			}
			return
		}

		c.dispatch(sender, opcode, fd, data)

		for _, ev := range c.pending {
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		}
		c.pending = c.pending[:0]
	}
}

// dispatch hands one message to its proxy. Messages for ids already released
// by delete_id are dropped.
func (c *Client) dispatch(sender, opcode uint32, fd int, data []byte) {
	c.objects.Lock()
	defer c.objects.Unlock()

	proxy, ok := c.ctx.GetProxy(sender).(client.Dispatcher)
	if !ok {
		c.logger.Debug("dropping message for unknown object",
			zap.Uint32("id", sender),
			zap.Uint32("opcode", opcode))
		if fd >= 0 {
			_ = unix.Close(fd)
		}
		return
	}
	proxy.Dispatch(opcode, fd, data)
}

// handleDeleteID releases an object id once the compositor acknowledges its
// destruction. Runs inside dispatch with objects held.
func (c *Client) handleDeleteID(e client.DisplayDeleteIdEvent) {
	if p := c.ctx.GetProxy(e.Id); p != nil {
		c.ctx.Unregister(p)
	}
}

// queue records an event produced by a handler. Runs inside dispatch.
func (c *Client) queue(ev domain.ProtocolEvent) {
	c.pending = append(c.pending, ev)
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Events implements domain.Protocol.
func (c *Client) Events() <-chan domain.ProtocolEvent {
	return c.events
}

// Err implements domain.Protocol.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return errors.New("connection closed")
	}
	return c.err
}

// BindSeat implements domain.Protocol.
func (c *Client) BindSeat(g domain.GlobalAdvertised) (domain.Seat, error) {
	c.objects.Lock()
	defer c.objects.Unlock()

	seat := client.NewSeat(c.ctx)
	if err := c.registry.Bind(g.Name, g.Interface, min(g.Version, seatVersion), seat); err != nil {
		return nil, fmt.Errorf("bind %s: %w", g.Interface, err)
	}
	return &seatHandle{seat: seat}, nil
}

// BindIdleNotifier implements domain.Protocol.
func (c *Client) BindIdleNotifier(g domain.GlobalAdvertised) (domain.IdleNotifier, error) {
	c.objects.Lock()
	defer c.objects.Unlock()

	notifier := NewExtIdleNotifierV1(c.ctx)
	if err := c.registry.Bind(g.Name, g.Interface, min(g.Version, idleNotifierVersion), notifier); err != nil {
		return nil, fmt.Errorf("bind %s: %w", g.Interface, err)
	}
	return &idleNotifier{client: c, notifier: notifier}, nil
}

// BindSurface implements domain.Protocol.
func (c *Client) BindSurface(g domain.GlobalAdvertised) (domain.Surface, error) {
	c.objects.Lock()
	defer c.objects.Unlock()

	compositor := client.NewCompositor(c.ctx)
	if err := c.registry.Bind(g.Name, g.Interface, min(g.Version, compositorVersion), compositor); err != nil {
		return nil, fmt.Errorf("bind %s: %w", g.Interface, err)
	}
	surface, err := compositor.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}
	return &surfaceHandle{surface: surface}, nil
}

// BindInhibitManager implements domain.Protocol.
func (c *Client) BindInhibitManager(g domain.GlobalAdvertised) (domain.InhibitManager, error) {
	c.objects.Lock()
	defer c.objects.Unlock()

	manager := NewZwpIdleInhibitManagerV1(c.ctx)
	if err := c.registry.Bind(g.Name, g.Interface, min(g.Version, inhibitManagerVersion), manager); err != nil {
		return nil, fmt.Errorf("bind %s: %w", g.Interface, err)
	}
	return &inhibitManager{client: c, manager: manager}, nil
}

// Flush implements domain.Protocol. Requests are written to the socket as
// they are made, so there is nothing buffered.
func (c *Client) Flush() error {
	return nil
}

// Close implements domain.Protocol.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ctx.Close()
	})
	return err
}

type seatHandle struct {
	seat *client.Seat
}

func (s *seatHandle) ProtocolID() uint32 { return s.seat.ID() }

type surfaceHandle struct {
	surface *client.Surface
}

func (s *surfaceHandle) ProtocolID() uint32 { return s.surface.ID() }

type idleNotifier struct {
	client   *Client
	notifier *ExtIdleNotifierV1
}

// Subscribe implements domain.IdleNotifier.
func (n *idleNotifier) Subscribe(seat domain.Seat, timeoutMs uint32, id domain.SubscriptionID) (domain.Subscription, error) {
	s, ok := seat.(*seatHandle)
	if !ok {
		return nil, ErrWrongHandle
	}

	c := n.client
	c.objects.Lock()
	defer c.objects.Unlock()

	notification := NewExtIdleNotificationV1(c.ctx)
	notification.SetIdledHandler(func(ExtIdleNotificationV1IdledEvent) {
		c.queue(domain.IdleStateChanged{ID: id, Idle: true})
	})
	notification.SetResumedHandler(func(ExtIdleNotificationV1ResumedEvent) {
		c.queue(domain.IdleStateChanged{ID: id, Idle: false})
	})

	if err := n.notifier.GetIdleNotification(notification, timeoutMs, s.seat); err != nil {
		c.ctx.Unregister(notification)
		return nil, fmt.Errorf("get idle notification: %w", err)
	}
	return notification, nil
}

type inhibitManager struct {
	client  *Client
	manager *ZwpIdleInhibitManagerV1
}

// CreateInhibitor implements domain.InhibitManager.
func (m *inhibitManager) CreateInhibitor(surface domain.Surface) (domain.Inhibitor, error) {
	s, ok := surface.(*surfaceHandle)
	if !ok {
		return nil, ErrWrongHandle
	}

	m.client.objects.Lock()
	defer m.client.objects.Unlock()

	inhibitor, err := m.manager.CreateInhibitor(s.surface)
	if err != nil {
		return nil, fmt.Errorf("create inhibitor: %w", err)
	}
	return inhibitor, nil
}
