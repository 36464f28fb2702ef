package install

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/1broseidon/mss/internal/protocol"
)

// State is where the bundle is in its lifecycle.
type State int

const (
	StateAbsent State = iota
	StateStaged
	StateSigned
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateStaged:
		return "staged"
	case StateSigned:
		return "signed"
	case StateLoaded:
		return "loaded"
	}
	return "unknown"
}

// Status is a snapshot of the bundle, the agent and the preconditions.
type Status struct {
	State   State
	Path    string
	Version string
	Digest  string
	// Handshake is set when the agent answered.
	Handshake *protocol.Handshake
	// HandshakeErr is why the agent did not answer.
	HandshakeErr error
	// Precondition is the first failing precondition, if any.
	Precondition error
}

// Installed reports whether a signed bundle is at the canonical path.
func (m *Manager) Installed() bool {
	return m.diskState() >= StateSigned
}

func (m *Manager) diskState() State {
	bundle := m.layout.BundlePath()
	if _, err := os.Stat(bundle); errors.Is(err, fs.ErrNotExist) {
		return StateAbsent
	}
	if _, err := os.Stat(filepath.Join(bundle, "Contents", signatureDir)); err != nil {
		return StateStaged
	}
	return StateSigned
}

// Status collects the bundle state. It never fails; what could not be read
// is left empty.
func (m *Manager) Status(ctx context.Context) Status {
	st := Status{
		State:        m.diskState(),
		Path:         m.layout.BundlePath(),
		Precondition: m.Check(),
	}
	if st.State != StateAbsent {
		if info, err := readInfoPlist(filepath.Join(st.Path, "Contents", "Info.plist")); err == nil {
			st.Version = info.ShortVersion
		} else {
			m.logger.Debug("manifest unreadable", "error", err)
		}
		if digest, err := m.Digest(); err == nil {
			st.Digest = digest
		} else {
			m.logger.Debug("digest failed", "error", err)
		}
	}

	if m.handshaker != nil {
		hctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		hs, err := m.handshaker.Handshake(hctx)
		if err != nil {
			st.HandshakeErr = err
		} else {
			st.Handshake = &hs
			if st.State == StateSigned {
				st.State = StateLoaded
			}
		}
	}
	return st
}
