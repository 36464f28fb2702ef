package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// allDesktops is the _NET_WM_DESKTOP value for windows shown on every desktop.
const allDesktops = 0xFFFFFFFF

// GetCurrentDesktop returns the current virtual desktop number (0-indexed).
func (c *Connection) GetCurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

// SetCurrentDesktop asks the window manager to switch desktops.
func (c *Connection) SetCurrentDesktop(desktop int) error {
	return c.sendRootMessage(c.Root, "_NET_CURRENT_DESKTOP", uint32(desktop), xproto.TimeCurrentTime)
}

// GetDesktopCount returns the number of virtual desktops.
func (c *Connection) GetDesktopCount() (int, error) {
	count, err := ewmh.NumberOfDesktopsGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get desktop count: %w", err)
	}
	return int(count), nil
}

// SetDesktopCount asks the window manager to change the number of desktops.
func (c *Connection) SetDesktopCount(count int) error {
	if count < 1 {
		return fmt.Errorf("desktop count must be positive, got %d", count)
	}
	return c.sendRootMessage(c.Root, "_NET_NUMBER_OF_DESKTOPS", uint32(count))
}

// GetWindowDesktop returns the desktop number a window is on.
// Returns -1 for "sticky" windows (visible on all desktops).
func (c *Connection) GetWindowDesktop(windowID uint32) (int, error) {
	desktop, err := ewmh.WmDesktopGet(c.XUtil, xproto.Window(windowID))
	if err != nil {
		return 0, fmt.Errorf("failed to get window desktop: %w", err)
	}
	if desktop == allDesktops {
		return -1, nil
	}
	return int(desktop), nil
}

// SetWindowDesktop moves a window to the specified virtual desktop. A
// negative desktop pins the window to all desktops.
func (c *Connection) SetWindowDesktop(windowID uint32, desktop int) error {
	value := uint32(allDesktops)
	if desktop >= 0 {
		value = uint32(desktop)
	}
	return c.sendRootMessage(xproto.Window(windowID), "_NET_WM_DESKTOP", value, sourceIndication)
}

// FocusWindow activates and raises a window using _NET_ACTIVE_WINDOW.
func (c *Connection) FocusWindow(windowID uint32) error {
	return c.sendRootMessage(xproto.Window(windowID), "_NET_ACTIVE_WINDOW", sourceIndication)
}
