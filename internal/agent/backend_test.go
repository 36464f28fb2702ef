package agent

import (
	"fmt"
	"sync"

	"github.com/1broseidon/mss/internal/platform"
)

// fakeBackend records every call and answers queries from its fields.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	opacity  map[platform.WindowID]float32
	frame    platform.Frame
	sticky   bool
	layer    int32
	displays []platform.DisplayID
	err      error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{opacity: make(map[platform.WindowID]float32)}
}

func (b *fakeBackend) record(format string, args ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
	return b.err
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) FocusSpace(sid platform.SpaceID) error {
	return b.record("focus_space %d", sid)
}

func (b *fakeBackend) CreateSpace(sid platform.SpaceID) error {
	return b.record("create_space %d", sid)
}

func (b *fakeBackend) DestroySpace(sid platform.SpaceID) error {
	return b.record("destroy_space %d", sid)
}

func (b *fakeBackend) MoveSpace(src, dst, prev platform.SpaceID, focus bool) error {
	return b.record("move_space %d %d %d %t", src, dst, prev, focus)
}

func (b *fakeBackend) MoveWindow(wid platform.WindowID, x, y int32) error {
	return b.record("move %d %d %d", wid, x, y)
}

func (b *fakeBackend) ResizeWindow(wid platform.WindowID, w, h float64) error {
	return b.record("resize %d %v %v", wid, w, h)
}

func (b *fakeBackend) SetWindowFrame(wid platform.WindowID, f platform.Frame) error {
	return b.record("set_frame %d %v", wid, f)
}

func (b *fakeBackend) WindowFrame(wid platform.WindowID) (platform.Frame, error) {
	err := b.record("frame %d", wid)
	return b.frame, err
}

func (b *fakeBackend) ScaleWindow(wid platform.WindowID, f platform.Frame) error {
	return b.record("scale %d %v", wid, f)
}

func (b *fakeBackend) SetWindowOpacity(wid platform.WindowID, v float32) error {
	if err := b.record("opacity %d %.2f", wid, v); err != nil {
		return err
	}
	b.mu.Lock()
	b.opacity[wid] = v
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) WindowOpacity(wid platform.WindowID) (float32, error) {
	err := b.record("get_opacity %d", wid)
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.opacity[wid]
	if !ok {
		v = 1
	}
	return v, err
}

func (b *fakeBackend) Opacity(wid platform.WindowID) float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opacity[wid]
}

func (b *fakeBackend) SetWindowLayer(wid platform.WindowID, layer int32) error {
	return b.record("layer %d %d", wid, layer)
}

func (b *fakeBackend) WindowLayer(wid platform.WindowID) (int32, error) {
	err := b.record("get_layer %d", wid)
	return b.layer, err
}

func (b *fakeBackend) SetWindowSticky(wid platform.WindowID, v bool) error {
	return b.record("sticky %d %t", wid, v)
}

func (b *fakeBackend) WindowSticky(wid platform.WindowID) (bool, error) {
	err := b.record("is_sticky %d", wid)
	return b.sticky, err
}

func (b *fakeBackend) SetWindowShadow(wid platform.WindowID, v bool) error {
	return b.record("shadow %d %t", wid, v)
}

func (b *fakeBackend) FocusWindow(wid platform.WindowID) error {
	return b.record("focus %d", wid)
}

func (b *fakeBackend) SwapProxyIn(wid, proxy platform.WindowID) error {
	return b.record("swap_in %d %d", wid, proxy)
}

func (b *fakeBackend) SwapProxyOut(wid, proxy platform.WindowID) error {
	return b.record("swap_out %d %d", wid, proxy)
}

func (b *fakeBackend) OrderWindow(wid platform.WindowID, order int32, rel platform.WindowID) error {
	return b.record("order %d %d %d", wid, order, rel)
}

func (b *fakeBackend) OrderWindowsIn(wids []platform.WindowID) error {
	return b.record("order_in %v", wids)
}

func (b *fakeBackend) MoveWindowsToSpace(sid platform.SpaceID, wids []platform.WindowID) error {
	return b.record("list_to_space %d %v", sid, wids)
}

func (b *fakeBackend) MoveWindowToSpace(sid platform.SpaceID, wid platform.WindowID) error {
	return b.record("to_space %d %d", sid, wid)
}

func (b *fakeBackend) MinimizeWindow(wid platform.WindowID) error {
	return b.record("minimize %d", wid)
}

func (b *fakeBackend) UnminimizeWindow(wid platform.WindowID) error {
	return b.record("unminimize %d", wid)
}

func (b *fakeBackend) WindowMinimized(wid platform.WindowID) (bool, error) {
	err := b.record("is_minimized %d", wid)
	return false, err
}

func (b *fakeBackend) Displays() ([]platform.DisplayID, error) {
	err := b.record("displays")
	return b.displays, err
}
