package agent

import (
	"fmt"
	"math"
	"time"

	"github.com/1broseidon/mss/internal/platform"
	"github.com/1broseidon/mss/internal/protocol"
)

// handler performs one request and returns the reply bytes.
type handler func(s *Server, p protocol.Payload) []byte

// route binds an opcode to its handler and the capability it needs. A zero
// capability means the request only needs the window server.
type route struct {
	requires protocol.Capability
	handle   handler
}

var routes = map[protocol.Opcode]route{
	protocol.OpHandshake: {handle: handleHandshake},

	protocol.OpSpaceFocus:   {requires: protocol.CapDockSpaces, handle: handleSpaceFocus},
	protocol.OpSpaceCreate:  {requires: protocol.CapAddSpace, handle: handleSpaceCreate},
	protocol.OpSpaceDestroy: {requires: protocol.CapRemoveSpace, handle: handleSpaceDestroy},
	protocol.OpSpaceMove:    {requires: protocol.CapMoveSpace, handle: handleSpaceMove},

	protocol.OpWindowMove:         {handle: handleWindowMove},
	protocol.OpWindowOpacity:      {handle: handleWindowOpacity},
	protocol.OpWindowOpacityFade:  {handle: handleWindowOpacityFade},
	protocol.OpWindowLayer:        {handle: handleWindowLayer},
	protocol.OpWindowSticky:       {handle: handleWindowSticky},
	protocol.OpWindowShadow:       {handle: handleWindowShadow},
	protocol.OpWindowFocus:        {requires: protocol.CapSetWindow, handle: handleWindowFocus},
	protocol.OpWindowScale:        {handle: handleWindowScale},
	protocol.OpWindowSwapProxyIn:  {requires: protocol.CapAnimationTime, handle: handleSwapProxy},
	protocol.OpWindowSwapProxyOut: {requires: protocol.CapAnimationTime, handle: handleSwapProxy},
	protocol.OpWindowOrder:        {handle: handleWindowOrder},
	protocol.OpWindowOrderIn:      {handle: handleWindowOrderIn},
	protocol.OpWindowListToSpace:  {handle: handleWindowListToSpace},
	protocol.OpWindowToSpace:      {handle: handleWindowToSpace},
	protocol.OpWindowResize:       {handle: handleWindowResize},
	protocol.OpWindowSetFrame:     {handle: handleWindowSetFrame},
	protocol.OpWindowGetOpacity:   {handle: handleWindowGetOpacity},
	protocol.OpWindowGetFrame:     {handle: handleWindowGetFrame},
	protocol.OpWindowIsSticky:     {handle: handleWindowIsSticky},
	protocol.OpWindowGetLayer:     {handle: handleWindowGetLayer},
	protocol.OpWindowMinimize:     {handle: handleWindowMinimize},
	protocol.OpWindowUnminimize:   {handle: handleWindowMinimize},
	protocol.OpWindowIsMinimized:  {handle: handleWindowIsMinimized},

	protocol.OpDisplayGetCount: {handle: handleDisplayCount},
	protocol.OpDisplayGetList:  {handle: handleDisplayList},
}

// dispatch decodes msg and runs its handler. Only a payload that fails to
// decode is an error; everything else produces a reply.
func (s *Server) dispatch(msg protocol.Message) ([]byte, error) {
	r, ok := routes[msg.Opcode]
	if !ok {
		s.logger.Warn("unknown opcode", "opcode", fmt.Sprintf("%#02x", uint8(msg.Opcode)))
		return protocol.StatusReply(false), nil
	}

	p := protocol.NewPayload(msg.Opcode)
	if err := protocol.Unmarshal(msg.Payload, p); err != nil {
		return nil, err
	}

	if r.requires != 0 && !s.caps.Has(r.requires) {
		s.logger.Debug("capability unavailable", "opcode", msg.Opcode.String(), "capability", r.requires.String())
		return protocol.StatusReply(false), nil
	}

	start := time.Now()
	reply := r.handle(s, p)
	s.logger.Debug("request served", "opcode", msg.Opcode.String(), "reply_len", len(reply), "elapsed", time.Since(start))
	return reply, nil
}

// status turns a backend error into the one-byte reply.
func (s *Server) status(op string, err error) []byte {
	if err != nil {
		s.logger.Warn("operation failed", "op", op, "error", err)
		return protocol.StatusReply(false)
	}
	return protocol.StatusReply(true)
}

func (s *Server) failed(op string, err error) []byte {
	s.logger.Warn("query failed", "op", op, "error", err)
	return protocol.StatusReply(false)
}

func windowIDs(ids []uint32) []platform.WindowID {
	out := make([]platform.WindowID, len(ids))
	for i, id := range ids {
		out[i] = platform.WindowID(id)
	}
	return out
}

func handleHandshake(s *Server, _ protocol.Payload) []byte {
	return protocol.EncodeHandshake(protocol.Version, s.caps)
}

func handleSpaceFocus(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.SpaceRef)
	return s.status("space_focus", s.backend.FocusSpace(platform.SpaceID(m.SpaceID)))
}

func handleSpaceCreate(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.SpaceRef)
	return s.status("space_create", s.backend.CreateSpace(platform.SpaceID(m.SpaceID)))
}

func handleSpaceDestroy(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.SpaceRef)
	return s.status("space_destroy", s.backend.DestroySpace(platform.SpaceID(m.SpaceID)))
}

func handleSpaceMove(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.SpaceMove)
	err := s.backend.MoveSpace(platform.SpaceID(m.SourceID), platform.SpaceID(m.DestID), platform.SpaceID(m.PrevID), m.Focus)
	return s.status("space_move", err)
}

func handleWindowMove(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowMove)
	return s.status("window_move", s.backend.MoveWindow(platform.WindowID(m.WindowID), m.X, m.Y))
}

// maxFadeSeconds keeps a fade duration inside time.Duration.
const maxFadeSeconds = float64(math.MaxInt64 / int64(time.Second))

// validOpacity rejects NaN along with values outside [0, 1].
func validOpacity(v float32) bool {
	return v >= 0 && v <= 1
}

func handleWindowOpacity(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowOpacity)
	if !validOpacity(m.Opacity) {
		return s.status("window_opacity", fmt.Errorf("opacity %v out of range", m.Opacity))
	}
	return s.status("window_opacity", s.fader.Set(platform.WindowID(m.WindowID), m.Opacity))
}

func handleWindowOpacityFade(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowOpacityFade)
	if !validOpacity(m.Opacity) {
		return s.status("window_opacity_fade", fmt.Errorf("opacity %v out of range", m.Opacity))
	}
	seconds := float64(m.Duration)
	if math.IsNaN(seconds) || seconds > maxFadeSeconds || seconds < -maxFadeSeconds {
		return s.status("window_opacity_fade", fmt.Errorf("fade duration %v out of range", m.Duration))
	}
	duration := time.Duration(seconds * float64(time.Second))
	return s.status("window_opacity_fade", s.fader.Start(platform.WindowID(m.WindowID), m.Opacity, duration))
}

func handleWindowLayer(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowLayer)
	return s.status("window_layer", s.backend.SetWindowLayer(platform.WindowID(m.WindowID), m.Layer))
}

func handleWindowSticky(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowFlag)
	return s.status("window_sticky", s.backend.SetWindowSticky(platform.WindowID(m.WindowID), m.Value))
}

func handleWindowShadow(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowFlag)
	return s.status("window_shadow", s.backend.SetWindowShadow(platform.WindowID(m.WindowID), m.Value))
}

func handleWindowFocus(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowRef)
	return s.status("window_focus", s.backend.FocusWindow(platform.WindowID(m.WindowID)))
}

func toFrame(f protocol.Frame) platform.Frame {
	return platform.Frame{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height}
}

func handleWindowScale(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowGeometry)
	return s.status("window_scale", s.backend.ScaleWindow(platform.WindowID(m.WindowID), toFrame(m.Frame)))
}

func handleSwapProxy(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowSwapProxy)
	wid, proxy := platform.WindowID(m.WindowID), platform.WindowID(m.ProxyID)
	if m.Op == protocol.OpWindowSwapProxyIn {
		return s.status("window_swap_proxy_in", s.backend.SwapProxyIn(wid, proxy))
	}
	return s.status("window_swap_proxy_out", s.backend.SwapProxyOut(wid, proxy))
}

func handleWindowOrder(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowOrder)
	switch m.Order {
	case protocol.OrderOut, protocol.OrderAbove, protocol.OrderBelow:
	default:
		return s.status("window_order", fmt.Errorf("unknown order %d", m.Order))
	}
	err := s.backend.OrderWindow(platform.WindowID(m.WindowID), m.Order, platform.WindowID(m.RelativeID))
	return s.status("window_order", err)
}

func handleWindowOrderIn(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowOrderIn)
	if len(m.WindowIDs) == 0 {
		return s.status("window_order_in", fmt.Errorf("empty window list"))
	}
	return s.status("window_order_in", s.backend.OrderWindowsIn(windowIDs(m.WindowIDs)))
}

func handleWindowListToSpace(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowListToSpace)
	if len(m.WindowIDs) == 0 {
		return s.status("window_list_to_space", fmt.Errorf("empty window list"))
	}
	err := s.backend.MoveWindowsToSpace(platform.SpaceID(m.SpaceID), windowIDs(m.WindowIDs))
	return s.status("window_list_to_space", err)
}

func handleWindowToSpace(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowToSpace)
	err := s.backend.MoveWindowToSpace(platform.SpaceID(m.SpaceID), platform.WindowID(m.WindowID))
	return s.status("window_to_space", err)
}

func handleWindowResize(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowResize)
	return s.status("window_resize", s.backend.ResizeWindow(platform.WindowID(m.WindowID), m.Width, m.Height))
}

func handleWindowSetFrame(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowGeometry)
	return s.status("window_set_frame", s.backend.SetWindowFrame(platform.WindowID(m.WindowID), toFrame(m.Frame)))
}

func handleWindowGetOpacity(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowRef)
	v, err := s.backend.WindowOpacity(platform.WindowID(m.WindowID))
	if err != nil {
		return s.failed("window_get_opacity", err)
	}
	return protocol.Float32Reply(v)
}

func handleWindowGetFrame(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowRef)
	f, err := s.backend.WindowFrame(platform.WindowID(m.WindowID))
	if err != nil {
		return s.failed("window_get_frame", err)
	}
	return protocol.FrameReply(protocol.Frame{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height})
}

func handleWindowIsSticky(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowRef)
	v, err := s.backend.WindowSticky(platform.WindowID(m.WindowID))
	if err != nil {
		return s.failed("window_is_sticky", err)
	}
	return protocol.BoolReply(v)
}

func handleWindowGetLayer(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowRef)
	v, err := s.backend.WindowLayer(platform.WindowID(m.WindowID))
	if err != nil {
		return s.failed("window_get_layer", err)
	}
	return protocol.Int32Reply(v)
}

func handleWindowMinimize(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowRef)
	wid := platform.WindowID(m.WindowID)
	if m.Op == protocol.OpWindowMinimize {
		return s.status("window_minimize", s.backend.MinimizeWindow(wid))
	}
	return s.status("window_unminimize", s.backend.UnminimizeWindow(wid))
}

func handleWindowIsMinimized(s *Server, p protocol.Payload) []byte {
	m := p.(*protocol.WindowRef)
	v, err := s.backend.WindowMinimized(platform.WindowID(m.WindowID))
	if err != nil {
		return s.failed("window_is_minimized", err)
	}
	return protocol.BoolReply(v)
}

func handleDisplayCount(s *Server, _ protocol.Payload) []byte {
	ids, err := s.backend.Displays()
	if err != nil {
		return s.failed("display_count", err)
	}
	return protocol.Uint32Reply(uint32(len(ids)))
}

func handleDisplayList(s *Server, _ protocol.Payload) []byte {
	ids, err := s.backend.Displays()
	if err != nil {
		return s.failed("display_list", err)
	}
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return protocol.Uint32sReply(out)
}
