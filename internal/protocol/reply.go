package protocol

import (
	"bytes"
	"fmt"
)

// Window layers.
const (
	LayerBelow  int32 = -1
	LayerNormal int32 = 0
	LayerAbove  int32 = 1
)

// Handshake is the decoded handshake reply.
type Handshake struct {
	Version      string
	Capabilities CapabilitySet
}

// EncodeHandshake returns version, a NUL terminator and the capability mask.
func EncodeHandshake(version string, caps CapabilitySet) []byte {
	var w Writer
	w.Raw([]byte(version))
	w.Uint8(0)
	w.Uint32(uint32(caps))
	return w.Bytes()
}

// ParseHandshake decodes a handshake reply.
func ParseHandshake(b []byte) (Handshake, error) {
	nul := bytes.IndexByte(b, 0)
	if nul < 0 {
		return Handshake{}, fmt.Errorf("%w: handshake missing version terminator", ErrMalformedMessage)
	}
	r := NewReader(b[nul+1:])
	caps := r.Uint32()
	if err := r.Done(); err != nil {
		return Handshake{}, fmt.Errorf("handshake capabilities: %w", err)
	}
	return Handshake{Version: string(b[:nul]), Capabilities: CapabilitySet(caps)}, nil
}

// StatusReply returns the one-byte mutation reply.
func StatusReply(ok bool) []byte {
	if ok {
		return []byte{SuccessByte}
	}
	return []byte{FailureSentinel}
}

// Succeeded reports whether a mutation reply signals success.
func Succeeded(reply []byte) bool {
	return len(reply) == 1 && reply[0] == SuccessByte
}

// Query results are always wider than the failure sentinel; booleans travel
// as uint32 for that reason.

func Float32Reply(v float32) []byte {
	var w Writer
	w.Float32(v)
	return w.Bytes()
}

func Int32Reply(v int32) []byte {
	var w Writer
	w.Int32(v)
	return w.Bytes()
}

func Uint32Reply(v uint32) []byte {
	var w Writer
	w.Uint32(v)
	return w.Bytes()
}

func BoolReply(v bool) []byte {
	if v {
		return Uint32Reply(1)
	}
	return Uint32Reply(0)
}

func FrameReply(f Frame) []byte {
	var w Writer
	f.marshalTo(&w)
	return w.Bytes()
}

func Uint32sReply(vs []uint32) []byte {
	var w Writer
	w.Uint32s(vs)
	return w.Bytes()
}

// ParseFrame decodes a frame query reply.
func ParseFrame(b []byte) (Frame, error) {
	var f Frame
	r := NewReader(b)
	f.unmarshalFrom(r)
	return f, r.Done()
}

// ParseFloat32 decodes a float32 query reply.
func ParseFloat32(b []byte) (float32, error) {
	r := NewReader(b)
	v := r.Float32()
	return v, r.Done()
}

// ParseInt32 decodes an int32 query reply.
func ParseInt32(b []byte) (int32, error) {
	r := NewReader(b)
	v := r.Int32()
	return v, r.Done()
}

// ParseUint32 decodes a uint32 query reply.
func ParseUint32(b []byte) (uint32, error) {
	r := NewReader(b)
	v := r.Uint32()
	return v, r.Done()
}

// ParseBool decodes a boolean query reply.
func ParseBool(b []byte) (bool, error) {
	v, err := ParseUint32(b)
	return v != 0, err
}

// ParseUint32s decodes a count-prefixed list reply.
func ParseUint32s(b []byte) ([]uint32, error) {
	r := NewReader(b)
	vs := r.Uint32s()
	return vs, r.Done()
}
