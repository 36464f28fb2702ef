package platform

import "errors"

// ErrUnsupported is returned for operations the window server cannot perform.
var ErrUnsupported = errors.New("operation not supported by this window server")

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// SpaceID is a platform-neutral virtual desktop identifier.
type SpaceID uint64

// DisplayID is a platform-neutral display identifier.
type DisplayID uint32

// Frame describes a window rectangle in global screen coordinates.
type Frame struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Layer values accepted by SetWindowLayer.
const (
	LayerBelow  = -1
	LayerNormal = 0
	LayerAbove  = 1
)

// Order values accepted by OrderWindow.
const (
	OrderOut   = 0
	OrderAbove = 1
	OrderBelow = -1
)

// Backend abstracts the window-server calls the agent forwards. The agent
// keeps no window state of its own; every call goes straight through.
type Backend interface {
	FocusSpace(sid SpaceID) error
	CreateSpace(onDisplayOf SpaceID) error
	DestroySpace(sid SpaceID) error
	MoveSpace(src, dst, prev SpaceID, focus bool) error

	MoveWindow(wid WindowID, x, y int32) error
	ResizeWindow(wid WindowID, width, height float64) error
	SetWindowFrame(wid WindowID, f Frame) error
	WindowFrame(wid WindowID) (Frame, error)
	ScaleWindow(wid WindowID, f Frame) error

	SetWindowOpacity(wid WindowID, opacity float32) error
	WindowOpacity(wid WindowID) (float32, error)
	SetWindowLayer(wid WindowID, layer int32) error
	WindowLayer(wid WindowID) (int32, error)
	SetWindowSticky(wid WindowID, sticky bool) error
	WindowSticky(wid WindowID) (bool, error)
	SetWindowShadow(wid WindowID, shadow bool) error

	FocusWindow(wid WindowID) error
	SwapProxyIn(wid, proxy WindowID) error
	SwapProxyOut(wid, proxy WindowID) error
	OrderWindow(wid WindowID, order int32, relative WindowID) error
	OrderWindowsIn(wids []WindowID) error
	MoveWindowsToSpace(sid SpaceID, wids []WindowID) error
	MoveWindowToSpace(sid SpaceID, wid WindowID) error

	MinimizeWindow(wid WindowID) error
	UnminimizeWindow(wid WindowID) error
	WindowMinimized(wid WindowID) (bool, error)

	Displays() ([]DisplayID, error)
}
