package probe

import (
	"errors"
	"testing"

	"github.com/1broseidon/mss/internal/protocol"
)

type fakeRuntime struct {
	objects map[string]Handle
	methods map[string]Handle
	calls   int
}

func (f *fakeRuntime) LookupObject(name string) (Handle, bool) {
	f.calls++
	h, ok := f.objects[name]
	return h, ok
}

func (f *fakeRuntime) LookupMethod(obj Handle, selector string) (Handle, bool) {
	f.calls++
	h, ok := f.methods[selector]
	return h, ok
}

var testSpec = Spec{
	Core: "Core",
	Symbols: []Symbol{
		{Capability: protocol.CapDockSpaces, Object: "Core"},
		{Capability: protocol.CapDockSpaces, Object: "Core", Selector: "focus:"},
		{Capability: protocol.CapDPPM, Object: "Pictures"},
		{Capability: protocol.CapAddSpace, Object: "Core", Selector: "add:"},
		{Capability: protocol.CapRemoveSpace, Object: "Core", Selector: "remove:"},
		{Capability: protocol.CapMoveSpace, Object: "Core", Selector: "move:"},
		{Capability: protocol.CapSetWindow, Object: "Core", Selector: "front:"},
		{Capability: protocol.CapAnimationTime, Object: "Core", Selector: "duration"},
	},
}

func fullRuntime() *fakeRuntime {
	return &fakeRuntime{
		objects: map[string]Handle{"Core": 0x1000, "Pictures": 0x2000},
		methods: map[string]Handle{
			"focus:": 0x10, "add:": 0x11, "remove:": 0x12,
			"move:": 0x13, "front:": 0x14, "duration": 0x15,
		},
	}
}

func TestResolveAllCapabilities(t *testing.T) {
	table, err := Resolve(fullRuntime(), testSpec, nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got := table.Capabilities(); got != protocol.FullCapabilities {
		t.Fatalf("Capabilities() = %#x, want %#x", uint32(got), uint32(protocol.FullCapabilities))
	}
	entry, ok := table.Lookup(protocol.CapAddSpace, "add:")
	if !ok {
		t.Fatal("Lookup(add:) failed")
	}
	if entry.Object != 0x1000 || entry.Method != 0x11 {
		t.Fatalf("Lookup(add:) = %+v", entry)
	}
	if table.Core != 0x1000 {
		t.Fatalf("Core = %#x", table.Core)
	}
}

func TestResolveMissingSelectorClearsOnlyItsBit(t *testing.T) {
	tests := []struct {
		name    string
		drop    func(*fakeRuntime)
		cleared protocol.Capability
	}{
		{
			name:    "add space selector",
			drop:    func(f *fakeRuntime) { delete(f.methods, "add:") },
			cleared: protocol.CapAddSpace,
		},
		{
			name:    "one of two dock space symbols",
			drop:    func(f *fakeRuntime) { delete(f.methods, "focus:") },
			cleared: protocol.CapDockSpaces,
		},
		{
			name:    "secondary object",
			drop:    func(f *fakeRuntime) { delete(f.objects, "Pictures") },
			cleared: protocol.CapDPPM,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := fullRuntime()
			tt.drop(rt)

			table, err := Resolve(rt, testSpec, nil)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			want := protocol.FullCapabilities &^ protocol.CapabilitySet(tt.cleared)
			if got := table.Capabilities(); got != want {
				t.Fatalf("Capabilities() = %#x, want %#x", uint32(got), uint32(want))
			}
			if table.Available(tt.cleared) {
				t.Fatalf("%v still available", tt.cleared)
			}
			if _, ok := table.Lookup(tt.cleared, ""); ok {
				t.Fatalf("Lookup(%v) succeeded for unavailable capability", tt.cleared)
			}
		})
	}
}

func TestResolveMissingCoreAborts(t *testing.T) {
	rt := fullRuntime()
	delete(rt.objects, "Core")

	table, err := Resolve(rt, testSpec, nil)
	if !errors.Is(err, ErrCoreNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrCoreNotFound", err)
	}
	if table != nil {
		t.Fatal("Resolve() returned a table without its core object")
	}
	if rt.calls != 1 {
		t.Fatalf("runtime called %d times, want 1", rt.calls)
	}
}

func TestNilTableHasNoCapabilities(t *testing.T) {
	var table *Table
	if table.Capabilities() != 0 || table.Available(protocol.CapDockSpaces) {
		t.Fatal("nil table reports capabilities")
	}
}
