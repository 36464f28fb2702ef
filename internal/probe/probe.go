// Package probe resolves the private runtime symbols the agent depends on and
// turns the outcome into a typed capability table.
package probe

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/1broseidon/mss/internal/protocol"
)

// ErrCoreNotFound means the host's core object is missing. Nothing else can
// work without it, so the agent must not start.
var ErrCoreNotFound = errors.New("core object not found")

// Handle is an opaque runtime reference: an object, class, method
// implementation or atom depending on the Runtime.
type Handle uintptr

// Runtime looks up named objects and their methods in the host.
type Runtime interface {
	LookupObject(name string) (Handle, bool)
	LookupMethod(obj Handle, selector string) (Handle, bool)
}

// Symbol declares one lookup a capability depends on. An empty Selector
// means the object itself is the requirement.
type Symbol struct {
	Capability protocol.Capability
	Object     string
	Selector   string
}

// Spec is the declared set of lookups for one host.
type Spec struct {
	Core    string
	Symbols []Symbol
}

// Entry is a resolved symbol.
type Entry struct {
	Object Handle
	Method Handle
}

// Table records which capabilities resolved and the handles behind them.
type Table struct {
	Core    Handle
	entries map[protocol.Capability]map[string]Entry
	caps    protocol.CapabilitySet
}

// Capabilities returns the mask reported by the handshake.
func (t *Table) Capabilities() protocol.CapabilitySet {
	if t == nil {
		return 0
	}
	return t.caps
}

// Available reports whether every symbol declared for c resolved.
func (t *Table) Available(c protocol.Capability) bool {
	return t.Capabilities().Has(c)
}

// Lookup returns the entry for c and selector. An empty selector returns the
// object-only entry. Lookups on unavailable capabilities fail.
func (t *Table) Lookup(c protocol.Capability, selector string) (Entry, bool) {
	if !t.Available(c) {
		return Entry{}, false
	}
	e, ok := t.entries[c][selector]
	return e, ok
}

// Resolve runs every lookup in spec against rt. A capability is set only when
// all of its symbols resolve; failures are logged and otherwise tolerated.
func Resolve(rt Runtime, spec Spec, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	core, ok := rt.LookupObject(spec.Core)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCoreNotFound, spec.Core)
	}

	t := &Table{
		Core:    core,
		entries: make(map[protocol.Capability]map[string]Entry),
	}
	missing := make(map[protocol.Capability]bool)
	objects := map[string]Handle{spec.Core: core}

	for _, sym := range spec.Symbols {
		obj, ok := objects[sym.Object]
		if !ok {
			obj, ok = rt.LookupObject(sym.Object)
			if !ok {
				logger.Warn("object not found", "object", sym.Object, "capability", sym.Capability)
				missing[sym.Capability] = true
				continue
			}
			objects[sym.Object] = obj
		}

		entry := Entry{Object: obj}
		if sym.Selector != "" {
			method, ok := rt.LookupMethod(obj, sym.Selector)
			if !ok {
				logger.Warn("method not found", "object", sym.Object, "selector", sym.Selector, "capability", sym.Capability)
				missing[sym.Capability] = true
				continue
			}
			entry.Method = method
		}

		if t.entries[sym.Capability] == nil {
			t.entries[sym.Capability] = make(map[string]Entry)
		}
		t.entries[sym.Capability][sym.Selector] = entry
	}

	for c := range t.entries {
		if !missing[c] {
			t.caps = t.caps.With(c)
		}
	}
	logger.Info("capabilities resolved", "mask", fmt.Sprintf("%#x", uint32(t.caps)), "set", t.caps.String())
	return t, nil
}
