//go:build darwin

package probe

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/ebitengine/purego/objc"

	"github.com/1broseidon/mss/internal/protocol"
)

// DockSpec is the lookup table for the Dock process.
var DockSpec = Spec{
	Core: "Dock.Spaces",
	Symbols: []Symbol{
		{Capability: protocol.CapDockSpaces, Object: "Dock.Spaces"},
		{Capability: protocol.CapDockSpaces, Object: "Dock.Spaces", Selector: "switchToSpace:"},
		{Capability: protocol.CapDPPM, Object: "Dock.DesktopPictureManager"},
		{Capability: protocol.CapAddSpace, Object: "Dock.Spaces", Selector: "addSpaceToDisplay:"},
		{Capability: protocol.CapRemoveSpace, Object: "Dock.Spaces", Selector: "removeSpace:"},
		{Capability: protocol.CapMoveSpace, Object: "Dock.Spaces", Selector: "moveSpace:toDisplay:after:"},
		{Capability: protocol.CapSetWindow, Object: "Dock.Spaces", Selector: "setFrontWindow:"},
		{Capability: protocol.CapAnimationTime, Object: "Dock.Spaces", Selector: "animationDuration"},
	},
}

var (
	objcOnce sync.Once
	objcErr  error

	classGetInstanceMethod  func(cls objc.Class, sel objc.SEL) uintptr
	classGetClassMethod     func(cls objc.Class, sel objc.SEL) uintptr
	methodGetImplementation func(m uintptr) uintptr
)

func loadObjC() error {
	objcOnce.Do(func() {
		lib, err := purego.Dlopen("/usr/lib/libobjc.A.dylib", purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			objcErr = fmt.Errorf("failed to load objc runtime: %w", err)
			return
		}
		purego.RegisterLibFunc(&classGetInstanceMethod, lib, "class_getInstanceMethod")
		purego.RegisterLibFunc(&classGetClassMethod, lib, "class_getClassMethod")
		purego.RegisterLibFunc(&methodGetImplementation, lib, "method_getImplementation")
	})
	return objcErr
}

// ObjCRuntime resolves classes and method implementations through the
// Objective-C runtime of the current process.
type ObjCRuntime struct {
	shared objc.SEL
}

var _ Runtime = (*ObjCRuntime)(nil)

// NewObjCRuntime binds the Objective-C runtime.
func NewObjCRuntime() (*ObjCRuntime, error) {
	if err := loadObjC(); err != nil {
		return nil, err
	}
	return &ObjCRuntime{shared: objc.RegisterName("sharedInstance")}, nil
}

// LookupObject returns the shared instance of the named class when it has
// one, otherwise the class itself.
func (r *ObjCRuntime) LookupObject(name string) (Handle, bool) {
	cls := objc.GetClass(name)
	if cls == 0 {
		return 0, false
	}
	if classGetClassMethod(cls, r.shared) != 0 {
		if inst := objc.ID(cls).Send(r.shared); inst != 0 {
			return Handle(inst), true
		}
	}
	return Handle(cls), true
}

// LookupMethod returns the implementation of selector on obj's class.
func (r *ObjCRuntime) LookupMethod(obj Handle, selector string) (Handle, bool) {
	cls := objc.ID(obj).Class()
	if cls == 0 {
		return 0, false
	}
	// For a class handle cls is the metaclass, so this finds class methods.
	m := classGetInstanceMethod(cls, objc.RegisterName(selector))
	if m == 0 {
		return 0, false
	}
	imp := methodGetImplementation(m)
	return Handle(imp), imp != 0
}
