package wayland

import "github.com/rajveermalviya/go-wayland/wayland/client"

// Bindings for idle-inhibit-unstable-v1.

// ZwpIdleInhibitManagerV1InterfaceName is the name of the interface as it appears in the registry.
const ZwpIdleInhibitManagerV1InterfaceName = "zwp_idle_inhibit_manager_v1"

// ZwpIdleInhibitManagerV1 : control behavior when display idles
type ZwpIdleInhibitManagerV1 struct {
	client.BaseProxy
}

// NewZwpIdleInhibitManagerV1 : control behavior when display idles
func NewZwpIdleInhibitManagerV1(ctx *client.Context) *ZwpIdleInhibitManagerV1 {
	p := &ZwpIdleInhibitManagerV1{}
	ctx.Register(p)
	return p
}

// Destroy : destroy the idle inhibitor object
func (i *ZwpIdleInhibitManagerV1) Destroy() error {
	const opcode = 0
	const reqBufLen = 8
	var reqBuf [reqBufLen]byte
	l := 0
	client.PutUint32(reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(reqBuf[l:l+4], uint32(reqBufLen<<16|opcode&0x0000ffff))
	return i.Context().WriteMsg(reqBuf[:], nil)
}

// CreateInhibitor : create a new inhibitor object
func (i *ZwpIdleInhibitManagerV1) CreateInhibitor(surface *client.Surface) (*ZwpIdleInhibitorV1, error) {
	id := NewZwpIdleInhibitorV1(i.Context())
	const opcode = 1
	const reqBufLen = 8 + 4 + 4
	var reqBuf [reqBufLen]byte
	l := 0
	client.PutUint32(reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(reqBuf[l:l+4], uint32(reqBufLen<<16|opcode&0x0000ffff))
	l += 4
	client.PutUint32(reqBuf[l:l+4], id.ID())
	l += 4
	client.PutUint32(reqBuf[l:l+4], surface.ID())
	err := i.Context().WriteMsg(reqBuf[:], nil)
	return id, err
}

// Dispatch implements client.Proxy. The manager has no events.
func (i *ZwpIdleInhibitManagerV1) Dispatch(opcode uint32, fd int, data []byte) {}

// ZwpIdleInhibitorV1InterfaceName is the name of the interface as it appears in the registry.
const ZwpIdleInhibitorV1InterfaceName = "zwp_idle_inhibitor_v1"

// ZwpIdleInhibitorV1 : context object for inhibiting idle behavior
type ZwpIdleInhibitorV1 struct {
	client.BaseProxy
}

// NewZwpIdleInhibitorV1 : context object for inhibiting idle behavior
func NewZwpIdleInhibitorV1(ctx *client.Context) *ZwpIdleInhibitorV1 {
	p := &ZwpIdleInhibitorV1{}
	ctx.Register(p)
	return p
}

// Destroy : destroy the idle inhibitor object
func (i *ZwpIdleInhibitorV1) Destroy() error {
	const opcode = 0
	const reqBufLen = 8
	var reqBuf [reqBufLen]byte
	l := 0
	client.PutUint32(reqBuf[l:4], i.ID())
	l += 4
	client.PutUint32(reqBuf[l:l+4], uint32(reqBufLen<<16|opcode&0x0000ffff))
	return i.Context().WriteMsg(reqBuf[:], nil)
}

// Dispatch implements client.Proxy. The inhibitor has no events.
func (i *ZwpIdleInhibitorV1) Dispatch(opcode uint32, fd int, data []byte) {}
