// Package bootstrap builds the machine code that runs first in the host
// process. The code starts on a bare thread, hands the agent path to a real
// pthread that calls dlopen, marks completion in the data page and parks.
package bootstrap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedArch is returned for architectures without a bootstrap.
	ErrUnsupportedArch = errors.New("unsupported architecture")
	// ErrInvalidParams is returned when an address or the image path is unusable.
	ErrInvalidParams = errors.New("invalid bootstrap parameters")
)

// Arch names a CPU architecture the injector can target.
type Arch string

const (
	AMD64 Arch = "amd64"
	ARM64 Arch = "arm64"
)

// PageSize is the size of each remote region: code, data and stack.
const PageSize = 0x4000

// Marker is written to the start of the data page once dlopen has been
// handed off.
const Marker uint32 = 0x4D53534C

// Data page layout.
const (
	MarkerOffset = 0
	PathOffset   = 8
)

// rtldNow is dlopen's RTLD_NOW on darwin.
const rtldNow = 2

var le = binary.LittleEndian

// Params are the remote addresses the bootstrap is linked against.
type Params struct {
	// Code and Data are the remote addresses of the code and data pages.
	Code uint64
	Data uint64
	// Dlopen is the address of dlopen in the target.
	Dlopen uint64
	// PthreadCreate is the address of pthread_create_from_mach_thread, which
	// is safe to call from a thread that has no pthread of its own.
	PthreadCreate uint64
	// ImagePath is the agent library handed to dlopen.
	ImagePath string
}

// Image is a linked bootstrap ready to be written to the target.
type Image struct {
	Arch Arch
	// Code starts with the thread entry point.
	Code []byte
	// Data holds the zeroed marker slot and the NUL-terminated image path.
	Data []byte
	// MarkerOffset is where Marker appears in Data on completion.
	MarkerOffset int
}

func (p Params) validate() error {
	switch {
	case p.Code == 0 || p.Data == 0:
		return fmt.Errorf("%w: code and data pages are required", ErrInvalidParams)
	case p.Dlopen == 0 || p.PthreadCreate == 0:
		return fmt.Errorf("%w: dlopen and pthread_create addresses are required", ErrInvalidParams)
	case p.ImagePath == "":
		return fmt.Errorf("%w: image path is empty", ErrInvalidParams)
	case bytes.IndexByte([]byte(p.ImagePath), 0) >= 0:
		return fmt.Errorf("%w: image path contains NUL", ErrInvalidParams)
	case PathOffset+len(p.ImagePath)+1 > PageSize:
		return fmt.Errorf("%w: image path is %d bytes, limit %d", ErrInvalidParams, len(p.ImagePath), PageSize-PathOffset-1)
	}
	return nil
}

// Build links the bootstrap for arch.
func Build(arch Arch, p Params) (*Image, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var code []byte
	switch arch {
	case AMD64:
		code = buildAMD64(p)
	case ARM64:
		if p.Code%4 != 0 {
			return nil, fmt.Errorf("%w: code page %#x is not 4-byte aligned", ErrInvalidParams, p.Code)
		}
		code = buildARM64(p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedArch, arch)
	}

	data := make([]byte, PathOffset+len(p.ImagePath)+1)
	copy(data[PathOffset:], p.ImagePath)

	return &Image{Arch: arch, Code: code, Data: data, MarkerOffset: MarkerOffset}, nil
}

// InitialSP returns the stack pointer a new thread should start with given
// the top of its stack. amd64 entry expects a return address slot below an
// aligned stack; arm64 keeps sp 16-byte aligned.
func InitialSP(arch Arch, top uint64) uint64 {
	top &^= 0xF
	if arch == AMD64 {
		return top - 8
	}
	return top
}

// Done reports whether data, read back from the target's data page, carries
// the completion marker.
func Done(data []byte) bool {
	if len(data) < MarkerOffset+4 {
		return false
	}
	return le.Uint32(data[MarkerOffset:]) == Marker
}
