//go:build linux

package platform

import (
	"fmt"
	"math"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/mss/internal/x11"
)

// LinuxBackend forwards window-server operations to an EWMH window manager.
// Spaces map to desktops: SpaceID n is desktop n-1.
type LinuxBackend struct {
	conn *x11.Connection
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &LinuxBackend{conn: conn}, nil
}

// Connection returns the underlying X11 connection.
func (b *LinuxBackend) Connection() *x11.Connection {
	if b == nil {
		return nil
	}
	return b.conn
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func desktopIndex(sid SpaceID) (int, error) {
	if sid == 0 || sid > math.MaxInt32 {
		return 0, fmt.Errorf("invalid space id %d", sid)
	}
	return int(sid - 1), nil
}

func (b *LinuxBackend) FocusSpace(sid SpaceID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	idx, err := desktopIndex(sid)
	if err != nil {
		return err
	}
	return conn.SetCurrentDesktop(idx)
}

// CreateSpace appends a desktop. X11 desktops are not bound to displays.
func (b *LinuxBackend) CreateSpace(SpaceID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	count, err := conn.GetDesktopCount()
	if err != nil {
		return err
	}
	return conn.SetDesktopCount(count + 1)
}

// DestroySpace removes the last desktop. EWMH can only shrink the desktop
// list from the end.
func (b *LinuxBackend) DestroySpace(sid SpaceID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	idx, err := desktopIndex(sid)
	if err != nil {
		return err
	}
	count, err := conn.GetDesktopCount()
	if err != nil {
		return err
	}
	if count <= 1 || idx != count-1 {
		return fmt.Errorf("%w: only the last of %d desktops can be removed", ErrUnsupported, count)
	}
	return conn.SetDesktopCount(count - 1)
}

func (b *LinuxBackend) MoveSpace(src, dst, prev SpaceID, focus bool) error {
	return ErrUnsupported
}

func (b *LinuxBackend) MoveWindow(wid WindowID, x, y int32) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.MoveWindow(xproto.Window(wid), int(x), int(y))
}

func (b *LinuxBackend) ResizeWindow(wid WindowID, width, height float64) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid size %vx%v", width, height)
	}
	return conn.ResizeWindow(xproto.Window(wid), int(width), int(height))
}

func (b *LinuxBackend) SetWindowFrame(wid WindowID, f Frame) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame %+v", f)
	}
	return conn.MoveResizeWindow(xproto.Window(wid), int(f.X), int(f.Y), int(f.Width), int(f.Height))
}

func (b *LinuxBackend) WindowFrame(wid WindowID) (Frame, error) {
	conn, err := b.connection()
	if err != nil {
		return Frame{}, err
	}
	g, err := conn.WindowGeometry(xproto.Window(wid))
	if err != nil {
		return Frame{}, err
	}
	return Frame{X: float64(g.X), Y: float64(g.Y), Width: float64(g.Width), Height: float64(g.Height)}, nil
}

// ScaleWindow has no compositor transform on X11; the window is fitted into
// the target frame instead.
func (b *LinuxBackend) ScaleWindow(wid WindowID, f Frame) error {
	return b.SetWindowFrame(wid, f)
}

func (b *LinuxBackend) SetWindowOpacity(wid WindowID, opacity float32) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetWindowOpacity(xproto.Window(wid), float64(opacity))
}

func (b *LinuxBackend) WindowOpacity(wid WindowID) (float32, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	v, err := conn.WindowOpacity(xproto.Window(wid))
	return float32(v), err
}

func (b *LinuxBackend) SetWindowLayer(wid WindowID, layer int32) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	win := xproto.Window(wid)
	switch layer {
	case LayerAbove:
		if err := conn.SetState(win, false, "_NET_WM_STATE_BELOW"); err != nil {
			return err
		}
		return conn.SetState(win, true, "_NET_WM_STATE_ABOVE")
	case LayerBelow:
		if err := conn.SetState(win, false, "_NET_WM_STATE_ABOVE"); err != nil {
			return err
		}
		return conn.SetState(win, true, "_NET_WM_STATE_BELOW")
	case LayerNormal:
		return conn.SetState(win, false, "_NET_WM_STATE_ABOVE", "_NET_WM_STATE_BELOW")
	}
	return fmt.Errorf("unknown layer %d", layer)
}

func (b *LinuxBackend) WindowLayer(wid WindowID) (int32, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	win := xproto.Window(wid)
	if above, err := conn.HasState(win, "_NET_WM_STATE_ABOVE"); err != nil {
		return 0, err
	} else if above {
		return LayerAbove, nil
	}
	if below, err := conn.HasState(win, "_NET_WM_STATE_BELOW"); err != nil {
		return 0, err
	} else if below {
		return LayerBelow, nil
	}
	return LayerNormal, nil
}

func (b *LinuxBackend) SetWindowSticky(wid WindowID, sticky bool) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetState(xproto.Window(wid), sticky, "_NET_WM_STATE_STICKY")
}

func (b *LinuxBackend) WindowSticky(wid WindowID) (bool, error) {
	conn, err := b.connection()
	if err != nil {
		return false, err
	}
	if desktop, err := conn.GetWindowDesktop(uint32(wid)); err == nil && desktop < 0 {
		return true, nil
	}
	return conn.HasState(xproto.Window(wid), "_NET_WM_STATE_STICKY")
}

func (b *LinuxBackend) SetWindowShadow(wid WindowID, shadow bool) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetShadow(xproto.Window(wid), shadow)
}

func (b *LinuxBackend) FocusWindow(wid WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.FocusWindow(uint32(wid))
}

// SwapProxyIn shows proxy above wid and hides wid behind it.
func (b *LinuxBackend) SwapProxyIn(wid, proxy WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	conn.MapWindow(xproto.Window(proxy))
	if err := conn.Restack(xproto.Window(proxy), xproto.Window(wid), true); err != nil {
		return err
	}
	return conn.SetWindowOpacity(xproto.Window(wid), 0)
}

// SwapProxyOut restores wid and hides proxy.
func (b *LinuxBackend) SwapProxyOut(wid, proxy WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if err := conn.SetWindowOpacity(xproto.Window(wid), 1); err != nil {
		return err
	}
	conn.UnmapWindow(xproto.Window(proxy))
	return nil
}

func (b *LinuxBackend) OrderWindow(wid WindowID, order int32, relative WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	switch order {
	case OrderOut:
		conn.UnmapWindow(xproto.Window(wid))
		return nil
	case OrderAbove, OrderBelow:
		conn.MapWindow(xproto.Window(wid))
		return conn.Restack(xproto.Window(wid), xproto.Window(relative), order == OrderAbove)
	}
	return fmt.Errorf("unknown order %d", order)
}

func (b *LinuxBackend) OrderWindowsIn(wids []WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	for _, wid := range wids {
		conn.MapWindow(xproto.Window(wid))
	}
	return nil
}

func (b *LinuxBackend) MoveWindowsToSpace(sid SpaceID, wids []WindowID) error {
	for _, wid := range wids {
		if err := b.MoveWindowToSpace(sid, wid); err != nil {
			return err
		}
	}
	return nil
}

func (b *LinuxBackend) MoveWindowToSpace(sid SpaceID, wid WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	idx, err := desktopIndex(sid)
	if err != nil {
		return err
	}
	return conn.SetWindowDesktop(uint32(wid), idx)
}

func (b *LinuxBackend) MinimizeWindow(wid WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.Iconify(xproto.Window(wid))
}

func (b *LinuxBackend) UnminimizeWindow(wid WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.Deiconify(xproto.Window(wid))
}

func (b *LinuxBackend) WindowMinimized(wid WindowID) (bool, error) {
	conn, err := b.connection()
	if err != nil {
		return false, err
	}
	return conn.Iconified(xproto.Window(wid))
}

// Displays returns the RandR CRTC of every active monitor.
func (b *LinuxBackend) Displays() ([]DisplayID, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	crtcs, err := conn.ActiveCRTCs()
	if err != nil {
		return nil, err
	}
	ids := make([]DisplayID, len(crtcs))
	for i, crtc := range crtcs {
		ids[i] = DisplayID(crtc)
	}
	return ids, nil
}
