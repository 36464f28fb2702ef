package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// _NET_WM_STATE actions.
const (
	stateRemove = 0
	stateAdd    = 1
)

// Geometry is a window rectangle in root coordinates.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

// MoveResizeWindow moves and resizes a window to the specified geometry
func (c *Connection) MoveResizeWindow(windowID xproto.Window, x, y, width, height int) error {
	// Maximized windows ignore geometry requests on most window managers.
	_ = c.unmaximizeWindow(windowID)

	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, x, y, width, height); err != nil {
		// Fallback to direct window manipulation
		xwindow.New(c.XUtil, windowID).MoveResize(x, y, width, height)
	}
	return nil
}

// MoveWindow moves a window without changing its size.
func (c *Connection) MoveWindow(windowID xproto.Window, x, y int) error {
	if err := ewmh.MoveWindow(c.XUtil, windowID, x, y); err != nil {
		xwindow.New(c.XUtil, windowID).Move(x, y)
	}
	return nil
}

// ResizeWindow resizes a window in place.
func (c *Connection) ResizeWindow(windowID xproto.Window, width, height int) error {
	_ = c.unmaximizeWindow(windowID)

	if err := ewmh.ResizeWindow(c.XUtil, windowID, width, height); err != nil {
		xwindow.New(c.XUtil, windowID).Resize(width, height)
	}
	return nil
}

// unmaximizeWindow removes maximized state from a window
func (c *Connection) unmaximizeWindow(windowID xproto.Window) error {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return err
	}

	for _, state := range states {
		if state == "_NET_WM_STATE_MAXIMIZED_HORZ" || state == "_NET_WM_STATE_MAXIMIZED_VERT" {
			return c.setState(windowID, false, "_NET_WM_STATE_MAXIMIZED_HORZ", "_NET_WM_STATE_MAXIMIZED_VERT")
		}
	}
	return nil
}

// WindowGeometry returns the window rectangle translated to root coordinates.
func (c *Connection) WindowGeometry(windowID xproto.Window) (Geometry, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return Geometry{}, fmt.Errorf("failed to get geometry: %w", err)
	}

	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), windowID, c.Root, 0, 0).Reply()
	if err != nil {
		return Geometry{}, fmt.Errorf("failed to translate coordinates: %w", err)
	}

	return Geometry{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// WindowOpacity returns _NET_WM_WINDOW_OPACITY in [0, 1]. Windows without the
// property are fully opaque.
func (c *Connection) WindowOpacity(windowID xproto.Window) (float64, error) {
	opacity, err := ewmh.WmWindowOpacityGet(c.XUtil, windowID)
	if err != nil {
		return 1, nil
	}
	return opacity, nil
}

// SetWindowOpacity sets _NET_WM_WINDOW_OPACITY for the compositor.
func (c *Connection) SetWindowOpacity(windowID xproto.Window, opacity float64) error {
	if opacity < 0 || opacity > 1 {
		return fmt.Errorf("opacity %v out of range", opacity)
	}
	return ewmh.WmWindowOpacitySet(c.XUtil, windowID, opacity)
}

// HasState reports whether the window carries the given _NET_WM_STATE atom.
func (c *Connection) HasState(windowID xproto.Window, state string) (bool, error) {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return false, fmt.Errorf("failed to get window state: %w", err)
	}
	for _, s := range states {
		if s == state {
			return true, nil
		}
	}
	return false, nil
}

// SetState adds or removes up to two _NET_WM_STATE atoms.
func (c *Connection) SetState(windowID xproto.Window, enabled bool, states ...string) error {
	return c.setState(windowID, enabled, states...)
}

func (c *Connection) setState(windowID xproto.Window, enabled bool, states ...string) error {
	if len(states) == 0 || len(states) > 2 {
		return fmt.Errorf("expected one or two states, got %d", len(states))
	}
	action := uint32(stateRemove)
	if enabled {
		action = stateAdd
	}
	data := []uint32{action, 0, 0, sourceIndication}
	for i, name := range states {
		a, err := c.atom(name)
		if err != nil {
			return err
		}
		data[i+1] = uint32(a)
	}
	return c.sendRootMessage(windowID, "_NET_WM_STATE", data...)
}

// SetShadow sets the compositor shadow hint honoured by picom/compton.
func (c *Connection) SetShadow(windowID xproto.Window, enabled bool) error {
	var v uint
	if enabled {
		v = 1
	}
	return xprop.ChangeProp32(c.XUtil, windowID, "_COMPTON_SHADOW", "CARDINAL", v)
}

// Restack places windowID above or below sibling. A zero sibling restacks
// relative to the whole stack.
func (c *Connection) Restack(windowID, sibling xproto.Window, above bool) error {
	mode := xproto.StackModeBelow
	if above {
		mode = xproto.StackModeAbove
	}
	if err := ewmh.RestackWindowExtra(c.XUtil, windowID, int(mode), sibling, sourceIndication); err != nil {
		win := xwindow.New(c.XUtil, windowID)
		if sibling == 0 {
			win.Stack(byte(mode))
		} else {
			win.StackSibling(sibling, byte(mode))
		}
	}
	return nil
}

// MapWindow shows a window.
func (c *Connection) MapWindow(windowID xproto.Window) {
	xwindow.New(c.XUtil, windowID).Map()
}

// UnmapWindow hides a window without iconifying it.
func (c *Connection) UnmapWindow(windowID xproto.Window) {
	xwindow.New(c.XUtil, windowID).Unmap()
}

// Iconify minimizes a window via WM_CHANGE_STATE.
func (c *Connection) Iconify(windowID xproto.Window) error {
	return c.sendRootMessage(windowID, "WM_CHANGE_STATE", icccm.StateIconic)
}

// Deiconify maps and activates a minimized window.
func (c *Connection) Deiconify(windowID xproto.Window) error {
	c.MapWindow(windowID)
	return c.FocusWindow(uint32(windowID))
}

// Iconified reports whether the window is minimized.
func (c *Connection) Iconified(windowID xproto.Window) (bool, error) {
	if st, err := icccm.WmStateGet(c.XUtil, windowID); err == nil {
		return st.State == icccm.StateIconic, nil
	}
	return c.HasState(windowID, "_NET_WM_STATE_HIDDEN")
}

func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}
