package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/1broseidon/mss/internal/probe"
	"github.com/1broseidon/mss/internal/protocol"
)

// wmCheck names the EWMH window manager check window, the core object of
// an X11 host.
const wmCheck = "_NET_SUPPORTING_WM_CHECK"

// EWMHSpec maps capabilities onto the hints an EWMH window manager must
// advertise in _NET_SUPPORTED.
var EWMHSpec = probe.Spec{
	Core: wmCheck,
	Symbols: []probe.Symbol{
		{Capability: protocol.CapDockSpaces, Object: wmCheck, Selector: "_NET_CURRENT_DESKTOP"},
		{Capability: protocol.CapDPPM, Object: wmCheck, Selector: "_NET_DESKTOP_VIEWPORT"},
		{Capability: protocol.CapAddSpace, Object: wmCheck, Selector: "_NET_NUMBER_OF_DESKTOPS"},
		{Capability: protocol.CapRemoveSpace, Object: wmCheck, Selector: "_NET_NUMBER_OF_DESKTOPS"},
		{Capability: protocol.CapMoveSpace, Object: wmCheck, Selector: "_NET_DESKTOP_LAYOUT"},
		{Capability: protocol.CapSetWindow, Object: wmCheck, Selector: "_NET_ACTIVE_WINDOW"},
		{Capability: protocol.CapAnimationTime, Object: wmCheck, Selector: "_NET_WM_SYNC_REQUEST"},
	},
}

// Runtime resolves probe lookups against the running window manager.
type Runtime struct {
	conn      *Connection
	supported map[string]xproto.Atom
}

var _ probe.Runtime = (*Runtime)(nil)

// NewRuntime returns a probe runtime over conn.
func NewRuntime(conn *Connection) *Runtime {
	return &Runtime{conn: conn}
}

// LookupObject resolves a root window property naming a window. Only the
// window manager check window is meaningful.
func (r *Runtime) LookupObject(name string) (probe.Handle, bool) {
	if name != wmCheck {
		return 0, false
	}
	win, err := ewmh.SupportingWmCheckGet(r.conn.XUtil, r.conn.Root)
	if err != nil || win == 0 {
		return 0, false
	}
	return probe.Handle(win), true
}

// LookupMethod reports whether the window manager advertises selector in
// _NET_SUPPORTED and returns its atom.
func (r *Runtime) LookupMethod(obj probe.Handle, selector string) (probe.Handle, bool) {
	if r.supported == nil {
		names, err := ewmh.SupportedGet(r.conn.XUtil)
		if err != nil {
			return 0, false
		}
		r.supported = make(map[string]xproto.Atom, len(names))
		for _, name := range names {
			r.supported[name] = 0
		}
	}
	if _, ok := r.supported[selector]; !ok {
		return 0, false
	}
	a, err := r.conn.atom(selector)
	if err != nil {
		return 0, false
	}
	r.supported[selector] = a
	return probe.Handle(a), true
}
