package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrMalformedMessage reports a frame whose declared length does not match
	// the bytes available, or a payload that cannot be decoded.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrPayloadTooLarge reports a payload that does not fit a uint16 frame.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// HeaderSize is the size of the length prefix.
const HeaderSize = 2

// MaxPayload is the largest payload a frame can carry.
const MaxPayload = math.MaxUint16 - 1

// FailureSentinel is the single-byte reply for a failed operation.
const FailureSentinel byte = 0x00

// SuccessByte is the single-byte reply for a successful mutation.
const SuccessByte byte = 0x01

var order = binary.NativeEndian

// Message is a decoded request frame.
type Message struct {
	Opcode  Opcode
	Payload []byte
}

// Request is implemented by every typed request.
type Request interface {
	Opcode() Opcode
	MarshalTo(w *Writer)
}

// Encode frames a typed request.
func Encode(req Request) ([]byte, error) {
	var w Writer
	req.MarshalTo(&w)
	return EncodeRaw(req.Opcode(), w.Bytes())
}

// EncodeRaw frames an opcode and an already encoded payload.
func EncodeRaw(op Opcode, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	buf := make([]byte, HeaderSize+1+len(payload))
	order.PutUint16(buf, uint16(1+len(payload)))
	buf[HeaderSize] = byte(op)
	copy(buf[HeaderSize+1:], payload)
	return buf, nil
}

// Decode parses a complete frame. The declared length must match the bytes
// that follow the header exactly.
func Decode(b []byte) (Message, error) {
	if len(b) < HeaderSize {
		return Message{}, fmt.Errorf("%w: short header (%d bytes)", ErrMalformedMessage, len(b))
	}
	length := int(order.Uint16(b))
	if length == 0 {
		return Message{}, fmt.Errorf("%w: zero length", ErrMalformedMessage)
	}
	if got := len(b) - HeaderSize; got != length {
		return Message{}, fmt.Errorf("%w: declared %d bytes, have %d", ErrMalformedMessage, length, got)
	}
	return Message{
		Opcode:  Opcode(b[HeaderSize]),
		Payload: b[HeaderSize+1:],
	}, nil
}

// ReadMessage reads exactly one frame from r. A stream that ends before the
// declared length is satisfied yields ErrMalformedMessage.
func ReadMessage(r io.Reader) (Message, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Message{}, fmt.Errorf("%w: reading header: %v", ErrMalformedMessage, err)
	}
	length := int(order.Uint16(hdr[:]))
	if length == 0 {
		return Message{}, fmt.Errorf("%w: zero length", ErrMalformedMessage)
	}
	body := make([]byte, length)
	if n, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("%w: declared %d bytes, read %d", ErrMalformedMessage, length, n)
	}
	return Message{Opcode: Opcode(body[0]), Payload: body[1:]}, nil
}

// Writer appends fixed-width fields in native byte order.
type Writer struct {
	buf []byte
}

func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

func (w *Writer) Uint32(v uint32) { w.buf = order.AppendUint32(w.buf, v) }

func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

func (w *Writer) Uint64(v uint64) { w.buf = order.AppendUint64(w.buf, v) }

func (w *Writer) Float32(v float32) { w.Uint32(math.Float32bits(v)) }

func (w *Writer) Float64(v float64) { w.Uint64(math.Float64bits(v)) }

// Uint32s writes an int32 element count followed by the elements.
func (w *Writer) Uint32s(vs []uint32) {
	w.Int32(int32(len(vs)))
	for _, v := range vs {
		w.Uint32(v)
	}
}

// Raw appends b unchanged.
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

// Bytes returns the encoded fields.
func (w *Writer) Bytes() []byte { return w.buf }

// Reader consumes fixed-width fields. The first short read is sticky: later
// calls return zero values and Err reports the failure.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformedMessage, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool { return r.Uint8() != 0 }

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return order.Uint32(b)
}

func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

func (r *Reader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return order.Uint64(b)
}

func (r *Reader) Float32() float32 { return math.Float32frombits(r.Uint32()) }

func (r *Reader) Float64() float64 { return math.Float64frombits(r.Uint64()) }

// Uint32s reads an int32 count followed by that many elements. Negative
// counts and counts larger than the remaining bytes are malformed.
func (r *Reader) Uint32s() []uint32 {
	count := r.Int32()
	if r.err != nil {
		return nil
	}
	if count < 0 || int(count) > (len(r.buf)-r.off)/4 {
		r.err = fmt.Errorf("%w: bad element count %d", ErrMalformedMessage, count)
		return nil
	}
	vs := make([]uint32, count)
	for i := range vs {
		vs[i] = r.Uint32()
	}
	return vs
}

// Err returns the first decoding failure, if any.
func (r *Reader) Err() error { return r.err }

// Done returns Err, or ErrMalformedMessage when bytes remain unconsumed.
func (r *Reader) Done() error {
	if r.err != nil {
		return r.err
	}
	if rest := len(r.buf) - r.off; rest != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedMessage, rest)
	}
	return nil
}
