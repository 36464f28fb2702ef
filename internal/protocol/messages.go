package protocol

// Payload is implemented by every typed request so the agent can decode it
// from a frame.
type Payload interface {
	Request
	UnmarshalFrom(r *Reader)
}

// Unmarshal decodes payload into p and requires it to be fully consumed.
func Unmarshal(payload []byte, p Payload) error {
	r := NewReader(payload)
	p.UnmarshalFrom(r)
	return r.Done()
}

// Frame is a window rectangle in global screen coordinates.
type Frame struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// FrameSize is the encoded size of a Frame.
const FrameSize = 32

func (f Frame) marshalTo(w *Writer) {
	w.Float64(f.X)
	w.Float64(f.Y)
	w.Float64(f.Width)
	w.Float64(f.Height)
}

func (f *Frame) unmarshalFrom(r *Reader) {
	f.X = r.Float64()
	f.Y = r.Float64()
	f.Width = r.Float64()
	f.Height = r.Float64()
}

// Bare is a request with no payload (handshake, display queries).
type Bare struct {
	Op Opcode
}

func (m *Bare) Opcode() Opcode          { return m.Op }
func (m *Bare) MarshalTo(w *Writer)     {}
func (m *Bare) UnmarshalFrom(r *Reader) {}

// WindowRef addresses a single window. It carries the window queries and the
// minimize/unminimize mutations.
type WindowRef struct {
	Op       Opcode
	WindowID uint32
}

func (m *WindowRef) Opcode() Opcode          { return m.Op }
func (m *WindowRef) MarshalTo(w *Writer)     { w.Uint32(m.WindowID) }
func (m *WindowRef) UnmarshalFrom(r *Reader) { m.WindowID = r.Uint32() }

// SpaceRef addresses a single space: focus, create (on the display owning
// the space) and destroy.
type SpaceRef struct {
	Op      Opcode
	SpaceID uint64
}

func (m *SpaceRef) Opcode() Opcode          { return m.Op }
func (m *SpaceRef) MarshalTo(w *Writer)     { w.Uint64(m.SpaceID) }
func (m *SpaceRef) UnmarshalFrom(r *Reader) { m.SpaceID = r.Uint64() }

type SpaceMove struct {
	SourceID uint64
	DestID   uint64
	PrevID   uint64
	Focus    bool
}

func (m *SpaceMove) Opcode() Opcode { return OpSpaceMove }

func (m *SpaceMove) MarshalTo(w *Writer) {
	w.Uint64(m.SourceID)
	w.Uint64(m.DestID)
	w.Uint64(m.PrevID)
	w.Bool(m.Focus)
}

func (m *SpaceMove) UnmarshalFrom(r *Reader) {
	m.SourceID = r.Uint64()
	m.DestID = r.Uint64()
	m.PrevID = r.Uint64()
	m.Focus = r.Bool()
}

type WindowMove struct {
	WindowID uint32
	X        int32
	Y        int32
}

func (m *WindowMove) Opcode() Opcode { return OpWindowMove }

func (m *WindowMove) MarshalTo(w *Writer) {
	w.Uint32(m.WindowID)
	w.Int32(m.X)
	w.Int32(m.Y)
}

func (m *WindowMove) UnmarshalFrom(r *Reader) {
	m.WindowID = r.Uint32()
	m.X = r.Int32()
	m.Y = r.Int32()
}

type WindowOpacity struct {
	WindowID uint32
	Opacity  float32
}

func (m *WindowOpacity) Opcode() Opcode { return OpWindowOpacity }

func (m *WindowOpacity) MarshalTo(w *Writer) {
	w.Uint32(m.WindowID)
	w.Float32(m.Opacity)
}

func (m *WindowOpacity) UnmarshalFrom(r *Reader) {
	m.WindowID = r.Uint32()
	m.Opacity = r.Float32()
}

// WindowOpacityFade animates opacity over Duration seconds.
type WindowOpacityFade struct {
	WindowID uint32
	Opacity  float32
	Duration float32
}

func (m *WindowOpacityFade) Opcode() Opcode { return OpWindowOpacityFade }

func (m *WindowOpacityFade) MarshalTo(w *Writer) {
	w.Uint32(m.WindowID)
	w.Float32(m.Opacity)
	w.Float32(m.Duration)
}

func (m *WindowOpacityFade) UnmarshalFrom(r *Reader) {
	m.WindowID = r.Uint32()
	m.Opacity = r.Float32()
	m.Duration = r.Float32()
}

type WindowLayer struct {
	WindowID uint32
	Layer    int32
}

func (m *WindowLayer) Opcode() Opcode { return OpWindowLayer }

func (m *WindowLayer) MarshalTo(w *Writer) {
	w.Uint32(m.WindowID)
	w.Int32(m.Layer)
}

func (m *WindowLayer) UnmarshalFrom(r *Reader) {
	m.WindowID = r.Uint32()
	m.Layer = r.Int32()
}

// WindowFlag toggles a boolean window attribute (sticky, shadow).
type WindowFlag struct {
	Op       Opcode
	WindowID uint32
	Value    bool
}

func (m *WindowFlag) Opcode() Opcode { return m.Op }

func (m *WindowFlag) MarshalTo(w *Writer) {
	w.Uint32(m.WindowID)
	w.Bool(m.Value)
}

func (m *WindowFlag) UnmarshalFrom(r *Reader) {
	m.WindowID = r.Uint32()
	m.Value = r.Bool()
}

// WindowGeometry carries a window and a frame: scale and set-frame.
type WindowGeometry struct {
	Op       Opcode
	WindowID uint32
	Frame    Frame
}

func (m *WindowGeometry) Opcode() Opcode { return m.Op }

func (m *WindowGeometry) MarshalTo(w *Writer) {
	w.Uint32(m.WindowID)
	m.Frame.marshalTo(w)
}

func (m *WindowGeometry) UnmarshalFrom(r *Reader) {
	m.WindowID = r.Uint32()
	m.Frame.unmarshalFrom(r)
}

// WindowSwapProxy exchanges a window with its animation proxy, in or out.
type WindowSwapProxy struct {
	Op       Opcode
	WindowID uint32
	ProxyID  uint32
}

func (m *WindowSwapProxy) Opcode() Opcode { return m.Op }

func (m *WindowSwapProxy) MarshalTo(w *Writer) {
	w.Uint32(m.WindowID)
	w.Uint32(m.ProxyID)
}

func (m *WindowSwapProxy) UnmarshalFrom(r *Reader) {
	m.WindowID = r.Uint32()
	m.ProxyID = r.Uint32()
}

// Window ordering modes.
const (
	OrderOut   int32 = 0
	OrderAbove int32 = 1
	OrderBelow int32 = -1
)

type WindowOrder struct {
	WindowID   uint32
	Order      int32
	RelativeID uint32
}

func (m *WindowOrder) Opcode() Opcode { return OpWindowOrder }

func (m *WindowOrder) MarshalTo(w *Writer) {
	w.Uint32(m.WindowID)
	w.Int32(m.Order)
	w.Uint32(m.RelativeID)
}

func (m *WindowOrder) UnmarshalFrom(r *Reader) {
	m.WindowID = r.Uint32()
	m.Order = r.Int32()
	m.RelativeID = r.Uint32()
}

type WindowOrderIn struct {
	WindowIDs []uint32
}

func (m *WindowOrderIn) Opcode() Opcode          { return OpWindowOrderIn }
func (m *WindowOrderIn) MarshalTo(w *Writer)     { w.Uint32s(m.WindowIDs) }
func (m *WindowOrderIn) UnmarshalFrom(r *Reader) { m.WindowIDs = r.Uint32s() }

type WindowListToSpace struct {
	SpaceID   uint64
	WindowIDs []uint32
}

func (m *WindowListToSpace) Opcode() Opcode { return OpWindowListToSpace }

func (m *WindowListToSpace) MarshalTo(w *Writer) {
	w.Uint64(m.SpaceID)
	w.Uint32s(m.WindowIDs)
}

func (m *WindowListToSpace) UnmarshalFrom(r *Reader) {
	m.SpaceID = r.Uint64()
	m.WindowIDs = r.Uint32s()
}

type WindowToSpace struct {
	SpaceID  uint64
	WindowID uint32
}

func (m *WindowToSpace) Opcode() Opcode { return OpWindowToSpace }

func (m *WindowToSpace) MarshalTo(w *Writer) {
	w.Uint64(m.SpaceID)
	w.Uint32(m.WindowID)
}

func (m *WindowToSpace) UnmarshalFrom(r *Reader) {
	m.SpaceID = r.Uint64()
	m.WindowID = r.Uint32()
}

type WindowResize struct {
	WindowID uint32
	Width    float64
	Height   float64
}

func (m *WindowResize) Opcode() Opcode { return OpWindowResize }

func (m *WindowResize) MarshalTo(w *Writer) {
	w.Uint32(m.WindowID)
	w.Float64(m.Width)
	w.Float64(m.Height)
}

func (m *WindowResize) UnmarshalFrom(r *Reader) {
	m.WindowID = r.Uint32()
	m.Width = r.Float64()
	m.Height = r.Float64()
}

// NewPayload returns an empty typed request for op, or nil for an opcode
// outside the table.
func NewPayload(op Opcode) Payload {
	switch op {
	case OpHandshake, OpDisplayGetCount, OpDisplayGetList:
		return &Bare{Op: op}
	case OpSpaceFocus, OpSpaceCreate, OpSpaceDestroy:
		return &SpaceRef{Op: op}
	case OpSpaceMove:
		return &SpaceMove{}
	case OpWindowMove:
		return &WindowMove{}
	case OpWindowOpacity:
		return &WindowOpacity{}
	case OpWindowOpacityFade:
		return &WindowOpacityFade{}
	case OpWindowLayer:
		return &WindowLayer{}
	case OpWindowSticky, OpWindowShadow:
		return &WindowFlag{Op: op}
	case OpWindowScale, OpWindowSetFrame:
		return &WindowGeometry{Op: op}
	case OpWindowSwapProxyIn, OpWindowSwapProxyOut:
		return &WindowSwapProxy{Op: op}
	case OpWindowOrder:
		return &WindowOrder{}
	case OpWindowOrderIn:
		return &WindowOrderIn{}
	case OpWindowListToSpace:
		return &WindowListToSpace{}
	case OpWindowToSpace:
		return &WindowToSpace{}
	case OpWindowResize:
		return &WindowResize{}
	case OpWindowFocus, OpWindowGetOpacity, OpWindowGetFrame, OpWindowIsSticky,
		OpWindowGetLayer, OpWindowMinimize, OpWindowUnminimize, OpWindowIsMinimized:
		return &WindowRef{Op: op}
	}
	return nil
}
