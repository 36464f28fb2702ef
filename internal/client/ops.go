package client

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/1broseidon/mss/internal/protocol"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func checkWindow(wid uint32) error {
	if wid == 0 {
		return invalid("window id must be non-zero")
	}
	return nil
}

func checkSpace(sid uint64) error {
	if sid == 0 {
		return invalid("space id must be non-zero")
	}
	return nil
}

func checkOpacity(v float32) error {
	if math.IsNaN(float64(v)) || v < 0 || v > 1 {
		return invalid("opacity %v outside [0, 1]", v)
	}
	return nil
}

func checkFrame(f protocol.Frame) error {
	if f.Width < 0 || f.Height < 0 {
		return invalid("negative frame size %vx%v", f.Width, f.Height)
	}
	return nil
}

func checkWindows(wids []uint32) error {
	if len(wids) == 0 {
		return invalid("window list is empty")
	}
	if len(wids) > (protocol.MaxPayload-16)/4 {
		return invalid("window list of %d exceeds the message size", len(wids))
	}
	for _, wid := range wids {
		if err := checkWindow(wid); err != nil {
			return err
		}
	}
	return nil
}

// FocusSpace switches to space sid.
func (c *Context) FocusSpace(ctx context.Context, sid uint64) error {
	if err := checkSpace(sid); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.SpaceRef{Op: protocol.OpSpaceFocus, SpaceID: sid})
}

// CreateSpace adds a space on the display that owns sid.
func (c *Context) CreateSpace(ctx context.Context, sid uint64) error {
	if err := checkSpace(sid); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.SpaceRef{Op: protocol.OpSpaceCreate, SpaceID: sid})
}

func (c *Context) DestroySpace(ctx context.Context, sid uint64) error {
	if err := checkSpace(sid); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.SpaceRef{Op: protocol.OpSpaceDestroy, SpaceID: sid})
}

// MoveSpace moves src to dst's display, after prev.
func (c *Context) MoveSpace(ctx context.Context, src, dst, prev uint64, focus bool) error {
	if err := checkSpace(src); err != nil {
		return err
	}
	if err := checkSpace(dst); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.SpaceMove{SourceID: src, DestID: dst, PrevID: prev, Focus: focus})
}

func (c *Context) MoveWindow(ctx context.Context, wid uint32, x, y int32) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowMove{WindowID: wid, X: x, Y: y})
}

func (c *Context) SetOpacity(ctx context.Context, wid uint32, opacity float32) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	if err := checkOpacity(opacity); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowOpacity{WindowID: wid, Opacity: opacity})
}

// FadeOpacity animates the window to opacity over d. The call returns once
// the fade has started.
func (c *Context) FadeOpacity(ctx context.Context, wid uint32, opacity float32, d time.Duration) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	if err := checkOpacity(opacity); err != nil {
		return err
	}
	if d < 0 {
		return invalid("negative fade duration %v", d)
	}
	return c.mutate(ctx, &protocol.WindowOpacityFade{WindowID: wid, Opacity: opacity, Duration: float32(d.Seconds())})
}

// SetLayer places the window below, with or above normal windows.
func (c *Context) SetLayer(ctx context.Context, wid uint32, layer int32) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	switch layer {
	case protocol.LayerBelow, protocol.LayerNormal, protocol.LayerAbove:
	default:
		return invalid("unknown layer %d", layer)
	}
	return c.mutate(ctx, &protocol.WindowLayer{WindowID: wid, Layer: layer})
}

func (c *Context) SetSticky(ctx context.Context, wid uint32, sticky bool) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowFlag{Op: protocol.OpWindowSticky, WindowID: wid, Value: sticky})
}

func (c *Context) SetShadow(ctx context.Context, wid uint32, shadow bool) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowFlag{Op: protocol.OpWindowShadow, WindowID: wid, Value: shadow})
}

func (c *Context) FocusWindow(ctx context.Context, wid uint32) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowRef{Op: protocol.OpWindowFocus, WindowID: wid})
}

// ScaleWindow renders the window inside f without resizing it. A zero frame
// restores normal rendering.
func (c *Context) ScaleWindow(ctx context.Context, wid uint32, f protocol.Frame) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	if err := checkFrame(f); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowGeometry{Op: protocol.OpWindowScale, WindowID: wid, Frame: f})
}

func (c *Context) SwapProxyIn(ctx context.Context, wid, proxy uint32) error {
	return c.swapProxy(ctx, protocol.OpWindowSwapProxyIn, wid, proxy)
}

func (c *Context) SwapProxyOut(ctx context.Context, wid, proxy uint32) error {
	return c.swapProxy(ctx, protocol.OpWindowSwapProxyOut, wid, proxy)
}

func (c *Context) swapProxy(ctx context.Context, op protocol.Opcode, wid, proxy uint32) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	if err := checkWindow(proxy); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowSwapProxy{Op: op, WindowID: wid, ProxyID: proxy})
}

// OrderWindow orders wid out, or above/below relative (0 for the whole
// stack).
func (c *Context) OrderWindow(ctx context.Context, wid uint32, order int32, relative uint32) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	switch order {
	case protocol.OrderOut, protocol.OrderAbove, protocol.OrderBelow:
	default:
		return invalid("unknown order %d", order)
	}
	return c.mutate(ctx, &protocol.WindowOrder{WindowID: wid, Order: order, RelativeID: relative})
}

func (c *Context) OrderWindowsIn(ctx context.Context, wids []uint32) error {
	if err := checkWindows(wids); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowOrderIn{WindowIDs: wids})
}

func (c *Context) MoveWindowsToSpace(ctx context.Context, sid uint64, wids []uint32) error {
	if err := checkSpace(sid); err != nil {
		return err
	}
	if err := checkWindows(wids); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowListToSpace{SpaceID: sid, WindowIDs: wids})
}

func (c *Context) MoveWindowToSpace(ctx context.Context, sid uint64, wid uint32) error {
	if err := checkSpace(sid); err != nil {
		return err
	}
	if err := checkWindow(wid); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowToSpace{SpaceID: sid, WindowID: wid})
}

func (c *Context) ResizeWindow(ctx context.Context, wid uint32, width, height float64) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return invalid("size %vx%v must be positive", width, height)
	}
	return c.mutate(ctx, &protocol.WindowResize{WindowID: wid, Width: width, Height: height})
}

func (c *Context) SetFrame(ctx context.Context, wid uint32, f protocol.Frame) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	if f.Width <= 0 || f.Height <= 0 {
		return invalid("frame size %vx%v must be positive", f.Width, f.Height)
	}
	return c.mutate(ctx, &protocol.WindowGeometry{Op: protocol.OpWindowSetFrame, WindowID: wid, Frame: f})
}

func (c *Context) Minimize(ctx context.Context, wid uint32) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowRef{Op: protocol.OpWindowMinimize, WindowID: wid})
}

func (c *Context) Unminimize(ctx context.Context, wid uint32) error {
	if err := checkWindow(wid); err != nil {
		return err
	}
	return c.mutate(ctx, &protocol.WindowRef{Op: protocol.OpWindowUnminimize, WindowID: wid})
}

func (c *Context) windowQuery(ctx context.Context, op protocol.Opcode, wid uint32) ([]byte, error) {
	if err := checkWindow(wid); err != nil {
		return nil, err
	}
	return c.query(ctx, &protocol.WindowRef{Op: op, WindowID: wid})
}

func malformed(op protocol.Opcode, err error) error {
	return fmt.Errorf("%w: %s reply: %v", ErrConnection, op, err)
}

func (c *Context) Opacity(ctx context.Context, wid uint32) (float32, error) {
	reply, err := c.windowQuery(ctx, protocol.OpWindowGetOpacity, wid)
	if err != nil {
		return 0, err
	}
	v, err := protocol.ParseFloat32(reply)
	if err != nil {
		return 0, malformed(protocol.OpWindowGetOpacity, err)
	}
	return v, nil
}

func (c *Context) Frame(ctx context.Context, wid uint32) (protocol.Frame, error) {
	reply, err := c.windowQuery(ctx, protocol.OpWindowGetFrame, wid)
	if err != nil {
		return protocol.Frame{}, err
	}
	f, err := protocol.ParseFrame(reply)
	if err != nil {
		return protocol.Frame{}, malformed(protocol.OpWindowGetFrame, err)
	}
	return f, nil
}

func (c *Context) Sticky(ctx context.Context, wid uint32) (bool, error) {
	reply, err := c.windowQuery(ctx, protocol.OpWindowIsSticky, wid)
	if err != nil {
		return false, err
	}
	v, err := protocol.ParseBool(reply)
	if err != nil {
		return false, malformed(protocol.OpWindowIsSticky, err)
	}
	return v, nil
}

func (c *Context) Layer(ctx context.Context, wid uint32) (int32, error) {
	reply, err := c.windowQuery(ctx, protocol.OpWindowGetLayer, wid)
	if err != nil {
		return 0, err
	}
	v, err := protocol.ParseInt32(reply)
	if err != nil {
		return 0, malformed(protocol.OpWindowGetLayer, err)
	}
	return v, nil
}

func (c *Context) Minimized(ctx context.Context, wid uint32) (bool, error) {
	reply, err := c.windowQuery(ctx, protocol.OpWindowIsMinimized, wid)
	if err != nil {
		return false, err
	}
	v, err := protocol.ParseBool(reply)
	if err != nil {
		return false, malformed(protocol.OpWindowIsMinimized, err)
	}
	return v, nil
}

func (c *Context) DisplayCount(ctx context.Context) (int, error) {
	reply, err := c.query(ctx, &protocol.Bare{Op: protocol.OpDisplayGetCount})
	if err != nil {
		return 0, err
	}
	v, err := protocol.ParseUint32(reply)
	if err != nil {
		return 0, malformed(protocol.OpDisplayGetCount, err)
	}
	return int(v), nil
}

// Displays returns the active display ids.
func (c *Context) Displays(ctx context.Context) ([]uint32, error) {
	reply, err := c.query(ctx, &protocol.Bare{Op: protocol.OpDisplayGetList})
	if err != nil {
		return nil, err
	}
	ids, err := protocol.ParseUint32s(reply)
	if err != nil {
		return nil, malformed(protocol.OpDisplayGetList, err)
	}
	return ids, nil
}
