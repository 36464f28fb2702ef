//go:build darwin

package platform

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

const (
	skyLightPath       = "/System/Library/PrivateFrameworks/SkyLight.framework/SkyLight"
	coreGraphicsPath   = "/System/Library/Frameworks/CoreGraphics.framework/CoreGraphics"
	coreFoundationPath = "/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation"
)

// Window tag bits.
const (
	tagNoShadow uint64 = 1 << 3
	tagSticky   uint64 = 1 << 11
)

// CGWindowLevelKey values used for layers.
const (
	levelKeyBackstop = 3
	levelKeyNormal   = 4
	levelKeyFloating = 5
)

const kCFNumberSInt64Type = 4

type cgPoint struct {
	X float64
	Y float64
}

type cgSize struct {
	Width  float64
	Height float64
}

type cgRect struct {
	Origin cgPoint
	Size   cgSize
}

type cgAffineTransform struct {
	A, B, C, D, Tx, Ty float64
}

// skylight holds the window-server entry points. Symbols missing on the
// running OS release stay nil and the operations using them report
// ErrUnsupported instead of crashing the host.
type skylight struct {
	mainConnectionID           func() int32
	setWindowAlpha             func(cid int32, wid uint32, alpha float32) int32
	getWindowAlpha             func(cid int32, wid uint32, alpha *float32) int32
	setWindowLevel             func(cid int32, wid uint32, level int32) int32
	getWindowLevel             func(cid int32, wid uint32, level *int32) int32
	moveWindow                 func(cid int32, wid uint32, origin *cgPoint) int32
	getWindowBounds            func(cid int32, wid uint32, frame *cgRect) int32
	orderWindow                func(cid int32, wid uint32, mode int32, relative uint32) int32
	setWindowTags              func(cid int32, wid uint32, tags *uint64, size int32) int32
	clearWindowTags            func(cid int32, wid uint32, tags *uint64, size int32) int32
	setWindowTransform         func(cid int32, wid uint32, t cgAffineTransform) int32
	windowIsOrderedIn          func(cid int32, wid uint32, value *bool) int32
	moveWindowsToSpace         func(cid int32, windows uintptr, sid uint64) int32
	copySpacesForWindows       func(cid int32, mask int32, windows uintptr) uintptr
	copyManagedDisplayForSpace func(cid int32, sid uint64) uintptr

	windowLevelForKey    func(key int32) int32
	getActiveDisplayList func(max uint32, ids *uint32, count *uint32) int32

	numberCreate   func(alloc uintptr, typ int32, value unsafe.Pointer) uintptr
	arrayCreate    func(alloc uintptr, values *uintptr, count int, callbacks uintptr) uintptr
	arrayGetCount  func(arr uintptr) int
	release        func(ref uintptr)
	arrayCallbacks uintptr
}

var (
	slsOnce sync.Once
	sls     *skylight
	slsErr  error
)

func bind(lib uintptr, fptr any, name string) {
	if _, err := purego.Dlsym(lib, name); err != nil {
		return
	}
	purego.RegisterLibFunc(fptr, lib, name)
}

func loadSkyLight() (*skylight, error) {
	slsOnce.Do(func() {
		sl, err := purego.Dlopen(skyLightPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			slsErr = fmt.Errorf("failed to load SkyLight: %w", err)
			return
		}
		cg, err := purego.Dlopen(coreGraphicsPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			slsErr = fmt.Errorf("failed to load CoreGraphics: %w", err)
			return
		}
		cf, err := purego.Dlopen(coreFoundationPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			slsErr = fmt.Errorf("failed to load CoreFoundation: %w", err)
			return
		}

		s := &skylight{}
		bind(sl, &s.mainConnectionID, "SLSMainConnectionID")
		bind(sl, &s.setWindowAlpha, "SLSSetWindowAlpha")
		bind(sl, &s.getWindowAlpha, "SLSGetWindowAlpha")
		bind(sl, &s.setWindowLevel, "SLSSetWindowLevel")
		bind(sl, &s.getWindowLevel, "SLSGetWindowLevel")
		bind(sl, &s.moveWindow, "SLSMoveWindow")
		bind(sl, &s.getWindowBounds, "SLSGetWindowBounds")
		bind(sl, &s.orderWindow, "SLSOrderWindow")
		bind(sl, &s.setWindowTags, "SLSSetWindowTags")
		bind(sl, &s.clearWindowTags, "SLSClearWindowTags")
		bind(sl, &s.setWindowTransform, "SLSSetWindowTransform")
		bind(sl, &s.windowIsOrderedIn, "SLSWindowIsOrderedIn")
		bind(sl, &s.moveWindowsToSpace, "SLSMoveWindowsToManagedSpace")
		bind(sl, &s.copySpacesForWindows, "SLSCopySpacesForWindows")
		bind(sl, &s.copyManagedDisplayForSpace, "SLSCopyManagedDisplayForSpace")
		bind(cg, &s.windowLevelForKey, "CGWindowLevelForKey")
		bind(cg, &s.getActiveDisplayList, "CGGetActiveDisplayList")
		bind(cf, &s.numberCreate, "CFNumberCreate")
		bind(cf, &s.arrayCreate, "CFArrayCreate")
		bind(cf, &s.arrayGetCount, "CFArrayGetCount")
		bind(cf, &s.release, "CFRelease")
		if addr, err := purego.Dlsym(cf, "kCFTypeArrayCallBacks"); err == nil {
			s.arrayCallbacks = addr
		}
		if s.mainConnectionID == nil {
			slsErr = fmt.Errorf("SkyLight is missing SLSMainConnectionID")
			return
		}
		sls = s
	})
	return sls, slsErr
}

// MainConnectionID returns this process's window-server connection.
func MainConnectionID() (int32, error) {
	s, err := loadSkyLight()
	if err != nil {
		return 0, err
	}
	return s.mainConnectionID(), nil
}

func check(name string, code int32) error {
	if code != 0 {
		return fmt.Errorf("%s failed: CGError %d", name, code)
	}
	return nil
}

// windowArray builds a CFArray of CFNumbers. The caller releases it.
func (s *skylight) windowArray(wids []WindowID) (uintptr, error) {
	if s.numberCreate == nil || s.arrayCreate == nil || s.release == nil || s.arrayCallbacks == 0 {
		return 0, ErrUnsupported
	}
	if len(wids) == 0 {
		return 0, fmt.Errorf("empty window list")
	}
	refs := make([]uintptr, len(wids))
	for i, wid := range wids {
		v := int64(wid)
		refs[i] = s.numberCreate(0, kCFNumberSInt64Type, unsafe.Pointer(&v))
	}
	arr := s.arrayCreate(0, &refs[0], len(refs), s.arrayCallbacks)
	for _, ref := range refs {
		s.release(ref)
	}
	if arr == 0 {
		return 0, fmt.Errorf("CFArrayCreate failed")
	}
	return arr, nil
}
