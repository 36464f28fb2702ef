// Package protocol defines the binary messages exchanged between mss clients
// and the agent running inside the host process.
//
// Every request is framed as
//
//	[uint16 length][uint8 opcode][payload]
//
// where length covers the opcode byte and the payload. All integers and
// floats are fixed width, native endian and packed in declaration order.
// Replies are raw bytes with no framing.
package protocol

import (
	"fmt"
	"strings"
)

// Version is the agent/client compatibility string returned by the handshake.
const Version = "2.1.23"

// Opcode identifies a request type.
type Opcode uint8

const (
	OpHandshake          Opcode = 0x01
	OpSpaceFocus         Opcode = 0x02
	OpSpaceCreate        Opcode = 0x03
	OpSpaceDestroy       Opcode = 0x04
	OpSpaceMove          Opcode = 0x05
	OpWindowMove         Opcode = 0x06
	OpWindowOpacity      Opcode = 0x07
	OpWindowOpacityFade  Opcode = 0x08
	OpWindowLayer        Opcode = 0x09
	OpWindowSticky       Opcode = 0x0A
	OpWindowShadow       Opcode = 0x0B
	OpWindowFocus        Opcode = 0x0C
	OpWindowScale        Opcode = 0x0D
	OpWindowSwapProxyIn  Opcode = 0x0E
	OpWindowSwapProxyOut Opcode = 0x0F
	OpWindowOrder        Opcode = 0x10
	OpWindowOrderIn      Opcode = 0x11
	OpWindowListToSpace  Opcode = 0x12
	OpWindowToSpace      Opcode = 0x13
	OpWindowResize       Opcode = 0x14
	OpWindowSetFrame     Opcode = 0x15
	OpWindowGetOpacity   Opcode = 0x16
	OpWindowGetFrame     Opcode = 0x17
	OpWindowIsSticky     Opcode = 0x18
	OpWindowGetLayer     Opcode = 0x19
	OpWindowMinimize     Opcode = 0x1A
	OpWindowUnminimize   Opcode = 0x1B
	OpWindowIsMinimized  Opcode = 0x1C
	OpDisplayGetCount    Opcode = 0x1D
	OpDisplayGetList     Opcode = 0x1E
)

var opcodeNames = map[Opcode]string{
	OpHandshake:          "handshake",
	OpSpaceFocus:         "space_focus",
	OpSpaceCreate:        "space_create",
	OpSpaceDestroy:       "space_destroy",
	OpSpaceMove:          "space_move",
	OpWindowMove:         "window_move",
	OpWindowOpacity:      "window_opacity",
	OpWindowOpacityFade:  "window_opacity_fade",
	OpWindowLayer:        "window_layer",
	OpWindowSticky:       "window_sticky",
	OpWindowShadow:       "window_shadow",
	OpWindowFocus:        "window_focus",
	OpWindowScale:        "window_scale",
	OpWindowSwapProxyIn:  "window_swap_proxy_in",
	OpWindowSwapProxyOut: "window_swap_proxy_out",
	OpWindowOrder:        "window_order",
	OpWindowOrderIn:      "window_order_in",
	OpWindowListToSpace:  "window_list_to_space",
	OpWindowToSpace:      "window_to_space",
	OpWindowResize:       "window_resize",
	OpWindowSetFrame:     "window_set_frame",
	OpWindowGetOpacity:   "window_get_opacity",
	OpWindowGetFrame:     "window_get_frame",
	OpWindowIsSticky:     "window_is_sticky",
	OpWindowGetLayer:     "window_get_layer",
	OpWindowMinimize:     "window_minimize",
	OpWindowUnminimize:   "window_unminimize",
	OpWindowIsMinimized:  "window_is_minimized",
	OpDisplayGetCount:    "display_get_count",
	OpDisplayGetList:     "display_get_list",
}

// Valid reports whether op is part of the opcode table.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(0x%02x)", uint8(op))
}

// Capability is a single bit of the agent's capability mask.
type Capability uint32

const (
	CapDockSpaces    Capability = 0x01
	CapDPPM          Capability = 0x02
	CapAddSpace      Capability = 0x04
	CapRemoveSpace   Capability = 0x08
	CapMoveSpace     Capability = 0x10
	CapSetWindow     Capability = 0x20
	CapAnimationTime Capability = 0x40
)

// AllCapabilities lists every capability in bit order.
var AllCapabilities = []Capability{
	CapDockSpaces,
	CapDPPM,
	CapAddSpace,
	CapRemoveSpace,
	CapMoveSpace,
	CapSetWindow,
	CapAnimationTime,
}

var capabilityNames = map[Capability]string{
	CapDockSpaces:    "dock_spaces",
	CapDPPM:          "dppm",
	CapAddSpace:      "add_space",
	CapRemoveSpace:   "rem_space",
	CapMoveSpace:     "mov_space",
	CapSetWindow:     "set_window",
	CapAnimationTime: "anim_time",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("capability(0x%x)", uint32(c))
}

// CapabilitySet is the bitmask reported by the handshake.
type CapabilitySet uint32

// FullCapabilities has every known capability bit set.
const FullCapabilities CapabilitySet = 0x7F

// Has reports whether c is present in the set.
func (s CapabilitySet) Has(c Capability) bool {
	return uint32(s)&uint32(c) == uint32(c)
}

// With returns a copy of s with c set.
func (s CapabilitySet) With(c Capability) CapabilitySet {
	return s | CapabilitySet(c)
}

// Count returns the number of known capabilities present.
func (s CapabilitySet) Count() int {
	n := 0
	for _, c := range AllCapabilities {
		if s.Has(c) {
			n++
		}
	}
	return n
}

// Complete reports whether every known capability is present.
func (s CapabilitySet) Complete() bool {
	return s&FullCapabilities == FullCapabilities
}

func (s CapabilitySet) String() string {
	var names []string
	for _, c := range AllCapabilities {
		if s.Has(c) {
			names = append(names, c.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
