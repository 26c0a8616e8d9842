package wayland

import "github.com/rajveermalviya/go-wayland/wayland/client"

// Bindings for ext-idle-notify-v1 (staging).

// ExtIdleNotifierV1InterfaceName is the name of the interface as it appears in the registry.
const ExtIdleNotifierV1InterfaceName = "ext_idle_notifier_v1"

// ExtIdleNotifierV1 : idle notification manager
type ExtIdleNotifierV1 struct {
	client.BaseProxy
}

// NewExtIdleNotifierV1 : idle notification manager
func NewExtIdleNotifierV1(ctx *client.Context) *ExtIdleNotifierV1 {
	p := &ExtIdleNotifierV1{}
	ctx.Register(p)
	return p
}

// Destroy : destroy the manager
//
// The proxy stays registered until the compositor acknowledges the id with
// wl_display.delete_id.
func (i *ExtIdleNotifierV1) Destroy() error {
	const opcode = 0
	const reqBufLen = 8
	var reqBuf [reqBufLen]byte
	l := 0
	client.PutUint32(reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(reqBuf[l:l+4], uint32(reqBufLen<<16|opcode&0x0000ffff))
	return i.Context().WriteMsg(reqBuf[:], nil)
}

// GetIdleNotification : create a notification object
//
// The notification proxy is created by the caller so its handlers are in
// place before the request reaches the compositor.
func (i *ExtIdleNotifierV1) GetIdleNotification(id *ExtIdleNotificationV1, timeout uint32, seat *client.Seat) error {
	const opcode = 1
	const reqBufLen = 8 + 4 + 4 + 4
	var reqBuf [reqBufLen]byte
	l := 0
	client.PutUint32(reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(reqBuf[l:l+4], uint32(reqBufLen<<16|opcode&0x0000ffff))
	l += 4
	client.PutUint32(reqBuf[l:l+4], id.ID())
	l += 4
	client.PutUint32(reqBuf[l:l+4], timeout)
	l += 4
	client.PutUint32(reqBuf[l:l+4], seat.ID())
	return i.Context().WriteMsg(reqBuf[:], nil)
}

// Dispatch implements client.Proxy. The manager has no events.
func (i *ExtIdleNotifierV1) Dispatch(opcode uint32, fd int, data []byte) {}

// ExtIdleNotificationV1InterfaceName is the name of the interface as it appears in the registry.
const ExtIdleNotificationV1InterfaceName = "ext_idle_notification_v1"

// ExtIdleNotificationV1 : idle notification
type ExtIdleNotificationV1 struct {
	client.BaseProxy
	idledHandler   ExtIdleNotificationV1IdledHandlerFunc
	resumedHandler ExtIdleNotificationV1ResumedHandlerFunc
}

// NewExtIdleNotificationV1 : idle notification
func NewExtIdleNotificationV1(ctx *client.Context) *ExtIdleNotificationV1 {
	p := &ExtIdleNotificationV1{}
	ctx.Register(p)
	return p
}

// Destroy : destroy the notification object
//
// Events already in flight may still arrive until wl_display.delete_id
// releases the id.
func (i *ExtIdleNotificationV1) Destroy() error {
	const opcode = 0
	const reqBufLen = 8
	var reqBuf [reqBufLen]byte
	l := 0
	client.PutUint32(reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(reqBuf[l:l+4], uint32(reqBufLen<<16|opcode&0x0000ffff))
	return i.Context().WriteMsg(reqBuf[:], nil)
}

// ExtIdleNotificationV1IdledEvent : notification object is idle
type ExtIdleNotificationV1IdledEvent struct{}
type ExtIdleNotificationV1IdledHandlerFunc func(ExtIdleNotificationV1IdledEvent)

// SetIdledHandler : sets handler for ExtIdleNotificationV1IdledEvent
func (i *ExtIdleNotificationV1) SetIdledHandler(f ExtIdleNotificationV1IdledHandlerFunc) {
	i.idledHandler = f
}

// ExtIdleNotificationV1ResumedEvent : notification object is no longer idle
type ExtIdleNotificationV1ResumedEvent struct{}
type ExtIdleNotificationV1ResumedHandlerFunc func(ExtIdleNotificationV1ResumedEvent)

// SetResumedHandler : sets handler for ExtIdleNotificationV1ResumedEvent
func (i *ExtIdleNotificationV1) SetResumedHandler(f ExtIdleNotificationV1ResumedHandlerFunc) {
	i.resumedHandler = f
}

// Dispatch implements client.Proxy.
func (i *ExtIdleNotificationV1) Dispatch(opcode uint32, fd int, data []byte) {
	switch opcode {
	case 0:
		if i.idledHandler == nil {
			return
		}
		i.idledHandler(ExtIdleNotificationV1IdledEvent{})
	case 1:
		if i.resumedHandler == nil {
			return
		}
		i.resumedHandler(ExtIdleNotificationV1ResumedEvent{})
	}
}
