//go:build darwin

package platform

import (
	"fmt"

	"github.com/ebitengine/purego"
	"github.com/ebitengine/purego/objc"

	"github.com/1broseidon/mss/internal/probe"
	"github.com/1broseidon/mss/internal/protocol"
)

// spacesMaskAll selects current, other and user spaces.
const spacesMaskAll = 0x7

// SkyLightBackend drives the macOS window server from inside the Dock. Space
// operations call Dock methods resolved by the capability probe; window
// operations use SkyLight directly.
type SkyLightBackend struct {
	cid   int32
	sls   *skylight
	table *probe.Table
}

var _ Backend = (*SkyLightBackend)(nil)

// NewSkyLightBackend binds SkyLight and the resolved Dock symbols.
func NewSkyLightBackend(table *probe.Table) (*SkyLightBackend, error) {
	s, err := loadSkyLight()
	if err != nil {
		return nil, err
	}
	return &SkyLightBackend{cid: s.mainConnectionID(), sls: s, table: table}, nil
}

// send invokes a resolved Dock method on its receiver.
func (b *SkyLightBackend) send(c protocol.Capability, selector string, args ...uintptr) error {
	entry, ok := b.table.Lookup(c, selector)
	if !ok || entry.Method == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupported, selector)
	}
	call := append([]uintptr{uintptr(entry.Object), uintptr(objc.RegisterName(selector))}, args...)
	purego.SyscallN(uintptr(entry.Method), call...)
	return nil
}

// displayForSpace returns the managed display UUID (a CFString) owning sid.
// The caller releases it.
func (b *SkyLightBackend) displayForSpace(sid SpaceID) (uintptr, error) {
	if b.sls.copyManagedDisplayForSpace == nil {
		return 0, ErrUnsupported
	}
	uuid := b.sls.copyManagedDisplayForSpace(b.cid, uint64(sid))
	if uuid == 0 {
		return 0, fmt.Errorf("no display for space %d", sid)
	}
	return uuid, nil
}

func (b *SkyLightBackend) FocusSpace(sid SpaceID) error {
	return b.send(protocol.CapDockSpaces, "switchToSpace:", uintptr(sid))
}

func (b *SkyLightBackend) CreateSpace(onDisplayOf SpaceID) error {
	uuid, err := b.displayForSpace(onDisplayOf)
	if err != nil {
		return err
	}
	defer b.sls.release(uuid)
	return b.send(protocol.CapAddSpace, "addSpaceToDisplay:", uuid)
}

func (b *SkyLightBackend) DestroySpace(sid SpaceID) error {
	return b.send(protocol.CapRemoveSpace, "removeSpace:", uintptr(sid))
}

func (b *SkyLightBackend) MoveSpace(src, dst, prev SpaceID, focus bool) error {
	uuid, err := b.displayForSpace(dst)
	if err != nil {
		return err
	}
	defer b.sls.release(uuid)
	if err := b.send(protocol.CapMoveSpace, "moveSpace:toDisplay:after:", uintptr(src), uuid, uintptr(prev)); err != nil {
		return err
	}
	if focus {
		return b.FocusSpace(src)
	}
	return nil
}

func (b *SkyLightBackend) MoveWindow(wid WindowID, x, y int32) error {
	if b.sls.moveWindow == nil {
		return ErrUnsupported
	}
	p := cgPoint{X: float64(x), Y: float64(y)}
	return check("SLSMoveWindow", b.sls.moveWindow(b.cid, uint32(wid), &p))
}

// ResizeWindow and SetWindowFrame need the owning application's cooperation;
// the window server cannot resize foreign windows.
func (b *SkyLightBackend) ResizeWindow(WindowID, float64, float64) error {
	return ErrUnsupported
}

func (b *SkyLightBackend) SetWindowFrame(WindowID, Frame) error {
	return ErrUnsupported
}

func (b *SkyLightBackend) WindowFrame(wid WindowID) (Frame, error) {
	if b.sls.getWindowBounds == nil {
		return Frame{}, ErrUnsupported
	}
	var r cgRect
	if err := check("SLSGetWindowBounds", b.sls.getWindowBounds(b.cid, uint32(wid), &r)); err != nil {
		return Frame{}, err
	}
	return Frame{X: r.Origin.X, Y: r.Origin.Y, Width: r.Size.Width, Height: r.Size.Height}, nil
}

// ScaleWindow applies a transform so the window's current bounds render
// inside f. A zero frame resets the transform.
func (b *SkyLightBackend) ScaleWindow(wid WindowID, f Frame) error {
	if b.sls.setWindowTransform == nil {
		return ErrUnsupported
	}
	t := cgAffineTransform{A: 1, D: 1}
	if f.Width > 0 && f.Height > 0 {
		cur, err := b.WindowFrame(wid)
		if err != nil {
			return err
		}
		sx := cur.Width / f.Width
		sy := cur.Height / f.Height
		t = cgAffineTransform{A: sx, D: sy, Tx: cur.X - f.X*sx, Ty: cur.Y - f.Y*sy}
	}
	return check("SLSSetWindowTransform", b.sls.setWindowTransform(b.cid, uint32(wid), t))
}

func (b *SkyLightBackend) SetWindowOpacity(wid WindowID, opacity float32) error {
	if b.sls.setWindowAlpha == nil {
		return ErrUnsupported
	}
	return check("SLSSetWindowAlpha", b.sls.setWindowAlpha(b.cid, uint32(wid), opacity))
}

func (b *SkyLightBackend) WindowOpacity(wid WindowID) (float32, error) {
	if b.sls.getWindowAlpha == nil {
		return 0, ErrUnsupported
	}
	var alpha float32
	err := check("SLSGetWindowAlpha", b.sls.getWindowAlpha(b.cid, uint32(wid), &alpha))
	return alpha, err
}

func (b *SkyLightBackend) levelFor(layer int32) (int32, error) {
	if b.sls.windowLevelForKey == nil {
		return 0, ErrUnsupported
	}
	switch layer {
	case LayerBelow:
		return b.sls.windowLevelForKey(levelKeyBackstop), nil
	case LayerNormal:
		return b.sls.windowLevelForKey(levelKeyNormal), nil
	case LayerAbove:
		return b.sls.windowLevelForKey(levelKeyFloating), nil
	}
	return 0, fmt.Errorf("unknown layer %d", layer)
}

func (b *SkyLightBackend) SetWindowLayer(wid WindowID, layer int32) error {
	if b.sls.setWindowLevel == nil {
		return ErrUnsupported
	}
	level, err := b.levelFor(layer)
	if err != nil {
		return err
	}
	return check("SLSSetWindowLevel", b.sls.setWindowLevel(b.cid, uint32(wid), level))
}

func (b *SkyLightBackend) WindowLayer(wid WindowID) (int32, error) {
	if b.sls.getWindowLevel == nil {
		return 0, ErrUnsupported
	}
	var level int32
	if err := check("SLSGetWindowLevel", b.sls.getWindowLevel(b.cid, uint32(wid), &level)); err != nil {
		return 0, err
	}
	below, err := b.levelFor(LayerBelow)
	if err != nil {
		return 0, err
	}
	normal, _ := b.levelFor(LayerNormal)
	switch {
	case level <= below:
		return LayerBelow, nil
	case level <= normal:
		return LayerNormal, nil
	}
	return LayerAbove, nil
}

func (b *SkyLightBackend) setTag(wid WindowID, tag uint64, on bool) error {
	if b.sls.setWindowTags == nil || b.sls.clearWindowTags == nil {
		return ErrUnsupported
	}
	tags := tag
	if on {
		return check("SLSSetWindowTags", b.sls.setWindowTags(b.cid, uint32(wid), &tags, 64))
	}
	return check("SLSClearWindowTags", b.sls.clearWindowTags(b.cid, uint32(wid), &tags, 64))
}

func (b *SkyLightBackend) SetWindowSticky(wid WindowID, sticky bool) error {
	return b.setTag(wid, tagSticky, sticky)
}

// WindowSticky reports whether the window is present on more than one space.
func (b *SkyLightBackend) WindowSticky(wid WindowID) (bool, error) {
	if b.sls.copySpacesForWindows == nil || b.sls.arrayGetCount == nil {
		return false, ErrUnsupported
	}
	arr, err := b.sls.windowArray([]WindowID{wid})
	if err != nil {
		return false, err
	}
	defer b.sls.release(arr)
	spaces := b.sls.copySpacesForWindows(b.cid, spacesMaskAll, arr)
	if spaces == 0 {
		return false, fmt.Errorf("SLSCopySpacesForWindows returned nothing for %d", wid)
	}
	defer b.sls.release(spaces)
	return b.sls.arrayGetCount(spaces) > 1, nil
}

func (b *SkyLightBackend) SetWindowShadow(wid WindowID, shadow bool) error {
	return b.setTag(wid, tagNoShadow, !shadow)
}

func (b *SkyLightBackend) FocusWindow(wid WindowID) error {
	return b.send(protocol.CapSetWindow, "setFrontWindow:", uintptr(wid))
}

func (b *SkyLightBackend) SwapProxyIn(wid, proxy WindowID) error {
	if !b.table.Available(protocol.CapAnimationTime) {
		return ErrUnsupported
	}
	if err := b.OrderWindow(proxy, OrderAbove, wid); err != nil {
		return err
	}
	return b.SetWindowOpacity(wid, 0)
}

func (b *SkyLightBackend) SwapProxyOut(wid, proxy WindowID) error {
	if !b.table.Available(protocol.CapAnimationTime) {
		return ErrUnsupported
	}
	if err := b.SetWindowOpacity(wid, 1); err != nil {
		return err
	}
	return b.OrderWindow(proxy, OrderOut, 0)
}

func (b *SkyLightBackend) OrderWindow(wid WindowID, order int32, relative WindowID) error {
	if b.sls.orderWindow == nil {
		return ErrUnsupported
	}
	return check("SLSOrderWindow", b.sls.orderWindow(b.cid, uint32(wid), order, uint32(relative)))
}

func (b *SkyLightBackend) OrderWindowsIn(wids []WindowID) error {
	for _, wid := range wids {
		if err := b.OrderWindow(wid, OrderAbove, 0); err != nil {
			return err
		}
	}
	return nil
}

func (b *SkyLightBackend) MoveWindowsToSpace(sid SpaceID, wids []WindowID) error {
	if b.sls.moveWindowsToSpace == nil {
		return ErrUnsupported
	}
	arr, err := b.sls.windowArray(wids)
	if err != nil {
		return err
	}
	defer b.sls.release(arr)
	return check("SLSMoveWindowsToManagedSpace", b.sls.moveWindowsToSpace(b.cid, arr, uint64(sid)))
}

func (b *SkyLightBackend) MoveWindowToSpace(sid SpaceID, wid WindowID) error {
	return b.MoveWindowsToSpace(sid, []WindowID{wid})
}

func (b *SkyLightBackend) MinimizeWindow(wid WindowID) error {
	return b.OrderWindow(wid, OrderOut, 0)
}

func (b *SkyLightBackend) UnminimizeWindow(wid WindowID) error {
	return b.OrderWindow(wid, OrderAbove, 0)
}

func (b *SkyLightBackend) WindowMinimized(wid WindowID) (bool, error) {
	if b.sls.windowIsOrderedIn == nil {
		return false, ErrUnsupported
	}
	var in bool
	if err := check("SLSWindowIsOrderedIn", b.sls.windowIsOrderedIn(b.cid, uint32(wid), &in)); err != nil {
		return false, err
	}
	return !in, nil
}

func (b *SkyLightBackend) Displays() ([]DisplayID, error) {
	if b.sls.getActiveDisplayList == nil {
		return nil, ErrUnsupported
	}
	var count uint32
	if err := check("CGGetActiveDisplayList", b.sls.getActiveDisplayList(0, nil, &count)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	raw := make([]uint32, count)
	if err := check("CGGetActiveDisplayList", b.sls.getActiveDisplayList(count, &raw[0], &count)); err != nil {
		return nil, err
	}
	ids := make([]DisplayID, 0, count)
	for _, id := range raw[:count] {
		ids = append(ids, DisplayID(id))
	}
	return ids, nil
}
