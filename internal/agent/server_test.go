package agent

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/mss/internal/platform"
	"github.com/1broseidon/mss/internal/protocol"
)

func startServer(t *testing.T, backend *fakeBackend, caps protocol.CapabilitySet) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "mss")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "a.sock")

	srv, err := NewServer(Options{
		SocketPath:   path,
		Backend:      backend,
		Capabilities: caps,
		ReadTimeout:  time.Second,
		FadeInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return path
}

// exchange sends raw bytes as one request and returns everything the agent
// writes back before closing.
func exchange(t *testing.T, path string, frame []byte) []byte {
	t.Helper()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}
	conn.(*net.UnixConn).CloseWrite()

	reply, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return reply
}

func request(t *testing.T, path string, req protocol.Request) []byte {
	t.Helper()
	frame, err := protocol.Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return exchange(t, path, frame)
}

func TestHandshakeReportsCapabilities(t *testing.T) {
	backend := newFakeBackend()
	path := startServer(t, backend, protocol.FullCapabilities)

	want := protocol.EncodeHandshake("2.1.23", 0x7F)
	for i := 0; i < 2; i++ {
		reply := request(t, path, &protocol.Bare{Op: protocol.OpHandshake})
		if !bytes.Equal(reply, want) {
			t.Fatalf("handshake %d = %x, want %x", i, reply, want)
		}
	}
	if calls := backend.Calls(); len(calls) != 0 {
		t.Fatalf("handshake touched the backend: %v", calls)
	}
}

func TestOpacityIsForwarded(t *testing.T) {
	backend := newFakeBackend()
	path := startServer(t, backend, protocol.FullCapabilities)

	reply := request(t, path, &protocol.WindowOpacity{WindowID: 42, Opacity: 0.8})
	if !protocol.Succeeded(reply) {
		t.Fatalf("reply = %x, want success", reply)
	}
	calls := backend.Calls()
	if len(calls) != 1 || calls[0] != "opacity 42 0.80" {
		t.Fatalf("calls = %v, want [opacity 42 0.80]", calls)
	}
}

func TestMalformedFrameGetsNoReply(t *testing.T) {
	backend := newFakeBackend()
	path := startServer(t, backend, protocol.FullCapabilities)

	frame := binary.NativeEndian.AppendUint16(nil, 9000)
	frame = append(frame, byte(protocol.OpWindowOpacity), 0x01, 0x02)

	if reply := exchange(t, path, frame); len(reply) != 0 {
		t.Fatalf("reply = %x, want none", reply)
	}
	if calls := backend.Calls(); len(calls) != 0 {
		t.Fatalf("backend called for malformed frame: %v", calls)
	}

	// The agent keeps serving after a malformed request.
	reply := request(t, path, &protocol.Bare{Op: protocol.OpHandshake})
	if _, err := protocol.ParseHandshake(reply); err != nil {
		t.Fatalf("handshake after malformed frame: %v", err)
	}
}

func TestServeConnReturnsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"short body", append(binary.NativeEndian.AppendUint16(nil, 9000), 0x07, 0x01, 0x02)},
		{"zero length", binary.NativeEndian.AppendUint16(nil, 0)},
		{"truncated payload", mustRaw(t, protocol.OpWindowMove, []byte{1, 0, 0, 0})},
		{"trailing bytes", mustRaw(t, protocol.OpHandshake, []byte{0xFF})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			srv, err := NewServer(Options{SocketPath: "unused", Backend: backend, Capabilities: protocol.FullCapabilities})
			if err != nil {
				t.Fatalf("NewServer: %v", err)
			}

			server, client := net.Pipe()
			go func() {
				client.Write(tt.frame)
				client.Close()
			}()

			err = srv.ServeConn(server)
			if !errors.Is(err, protocol.ErrMalformedMessage) {
				t.Fatalf("ServeConn error = %v, want ErrMalformedMessage", err)
			}
			if calls := backend.Calls(); len(calls) != 0 {
				t.Fatalf("backend called: %v", calls)
			}
		})
	}
}

func mustRaw(t *testing.T, op protocol.Opcode, payload []byte) []byte {
	t.Helper()
	b, err := protocol.EncodeRaw(op, payload)
	if err != nil {
		t.Fatalf("EncodeRaw: %v", err)
	}
	return b
}

func TestGatedOpcodesReturnSentinel(t *testing.T) {
	tests := []struct {
		name    string
		missing protocol.Capability
		req     protocol.Request
	}{
		{"space focus", protocol.CapDockSpaces, &protocol.SpaceRef{Op: protocol.OpSpaceFocus, SpaceID: 3}},
		{"space create", protocol.CapAddSpace, &protocol.SpaceRef{Op: protocol.OpSpaceCreate, SpaceID: 3}},
		{"space destroy", protocol.CapRemoveSpace, &protocol.SpaceRef{Op: protocol.OpSpaceDestroy, SpaceID: 3}},
		{"space move", protocol.CapMoveSpace, &protocol.SpaceMove{SourceID: 1, DestID: 2, PrevID: 3}},
		{"window focus", protocol.CapSetWindow, &protocol.WindowRef{Op: protocol.OpWindowFocus, WindowID: 7}},
		{"swap proxy in", protocol.CapAnimationTime, &protocol.WindowSwapProxy{Op: protocol.OpWindowSwapProxyIn, WindowID: 7, ProxyID: 8}},
		{"swap proxy out", protocol.CapAnimationTime, &protocol.WindowSwapProxy{Op: protocol.OpWindowSwapProxyOut, WindowID: 7, ProxyID: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			caps := protocol.FullCapabilities &^ protocol.CapabilitySet(tt.missing)
			path := startServer(t, backend, caps)

			reply := request(t, path, tt.req)
			if !bytes.Equal(reply, []byte{protocol.FailureSentinel}) {
				t.Fatalf("reply = %x, want sentinel", reply)
			}
			if calls := backend.Calls(); len(calls) != 0 {
				t.Fatalf("gated request reached backend: %v", calls)
			}

			// Ungated requests still work.
			reply = request(t, path, &protocol.WindowMove{WindowID: 7, X: 10, Y: -20})
			if !protocol.Succeeded(reply) {
				t.Fatalf("window move reply = %x, want success", reply)
			}
		})
	}
}

func TestUnknownOpcodeReturnsSentinel(t *testing.T) {
	backend := newFakeBackend()
	path := startServer(t, backend, protocol.FullCapabilities)

	reply := exchange(t, path, mustRaw(t, protocol.Opcode(0x7E), nil))
	if !bytes.Equal(reply, []byte{protocol.FailureSentinel}) {
		t.Fatalf("reply = %x, want sentinel", reply)
	}
}

func TestBackendFailureReturnsSentinel(t *testing.T) {
	backend := newFakeBackend()
	backend.err = errors.New("window server said no")
	path := startServer(t, backend, protocol.FullCapabilities)

	tests := []protocol.Request{
		&protocol.WindowLayer{WindowID: 1, Layer: protocol.LayerAbove},
		&protocol.WindowRef{Op: protocol.OpWindowGetOpacity, WindowID: 1},
		&protocol.WindowRef{Op: protocol.OpWindowGetFrame, WindowID: 1},
		&protocol.Bare{Op: protocol.OpDisplayGetList},
	}
	for _, req := range tests {
		reply := request(t, path, req)
		if !bytes.Equal(reply, []byte{protocol.FailureSentinel}) {
			t.Errorf("%s reply = %x, want sentinel", req.Opcode(), reply)
		}
	}
}

func TestInvalidArgumentsReturnSentinel(t *testing.T) {
	backend := newFakeBackend()
	path := startServer(t, backend, protocol.FullCapabilities)

	tests := []protocol.Request{
		&protocol.WindowOpacity{WindowID: 1, Opacity: 1.5},
		&protocol.WindowOpacity{WindowID: 1, Opacity: float32(math.NaN())},
		&protocol.WindowOpacityFade{WindowID: 1, Opacity: float32(math.NaN()), Duration: 1},
		&protocol.WindowOpacityFade{WindowID: 1, Opacity: 0.5, Duration: float32(math.NaN())},
		&protocol.WindowOpacityFade{WindowID: 1, Opacity: 0.5, Duration: float32(math.Inf(1))},
		&protocol.WindowOpacityFade{WindowID: 1, Opacity: 0.5, Duration: float32(math.Inf(-1))},
		&protocol.WindowOpacityFade{WindowID: 1, Opacity: 0.5, Duration: 1e30},
		&protocol.WindowOrder{WindowID: 1, Order: 5},
		&protocol.WindowOrderIn{},
		&protocol.WindowListToSpace{SpaceID: 2},
	}
	for _, req := range tests {
		reply := request(t, path, req)
		if !bytes.Equal(reply, []byte{protocol.FailureSentinel}) {
			t.Errorf("%s reply = %x, want sentinel", req.Opcode(), reply)
		}
	}
	if calls := backend.Calls(); len(calls) != 0 {
		t.Fatalf("invalid requests reached backend: %v", calls)
	}
}

func TestQueryReplies(t *testing.T) {
	backend := newFakeBackend()
	backend.opacity[5] = 0.25
	backend.frame.X, backend.frame.Y, backend.frame.Width, backend.frame.Height = 1, 2, 300, 400
	backend.sticky = true
	backend.layer = protocol.LayerBelow
	backend.displays = []platform.DisplayID{1, 69734272}
	path := startServer(t, backend, protocol.FullCapabilities)

	reply := request(t, path, &protocol.WindowRef{Op: protocol.OpWindowGetOpacity, WindowID: 5})
	if v, err := protocol.ParseFloat32(reply); err != nil || v != 0.25 {
		t.Errorf("opacity = %v, %v; want 0.25", v, err)
	}

	reply = request(t, path, &protocol.WindowRef{Op: protocol.OpWindowGetFrame, WindowID: 5})
	want := protocol.Frame{X: 1, Y: 2, Width: 300, Height: 400}
	if f, err := protocol.ParseFrame(reply); err != nil || f != want {
		t.Errorf("frame = %+v, %v; want %+v", f, err, want)
	}

	reply = request(t, path, &protocol.WindowRef{Op: protocol.OpWindowIsSticky, WindowID: 5})
	if v, err := protocol.ParseBool(reply); err != nil || !v {
		t.Errorf("sticky = %v, %v; want true", v, err)
	}

	reply = request(t, path, &protocol.WindowRef{Op: protocol.OpWindowGetLayer, WindowID: 5})
	if v, err := protocol.ParseInt32(reply); err != nil || v != protocol.LayerBelow {
		t.Errorf("layer = %v, %v; want %d", v, err, protocol.LayerBelow)
	}

	reply = request(t, path, &protocol.Bare{Op: protocol.OpDisplayGetCount})
	if v, err := protocol.ParseUint32(reply); err != nil || v != 2 {
		t.Errorf("display count = %v, %v; want 2", v, err)
	}

	reply = request(t, path, &protocol.Bare{Op: protocol.OpDisplayGetList})
	ids, err := protocol.ParseUint32s(reply)
	if err != nil || len(ids) != 2 || ids[1] != 69734272 {
		t.Errorf("display list = %v, %v", ids, err)
	}
}

func TestMutationsReachBackend(t *testing.T) {
	tests := []struct {
		req  protocol.Request
		want string
	}{
		{&protocol.SpaceRef{Op: protocol.OpSpaceFocus, SpaceID: 4}, "focus_space 4"},
		{&protocol.SpaceMove{SourceID: 4, DestID: 5, PrevID: 6, Focus: true}, "move_space 4 5 6 true"},
		{&protocol.WindowFlag{Op: protocol.OpWindowSticky, WindowID: 9, Value: true}, "sticky 9 true"},
		{&protocol.WindowFlag{Op: protocol.OpWindowShadow, WindowID: 9}, "shadow 9 false"},
		{&protocol.WindowSwapProxy{Op: protocol.OpWindowSwapProxyOut, WindowID: 9, ProxyID: 10}, "swap_out 9 10"},
		{&protocol.WindowOrder{WindowID: 9, Order: protocol.OrderBelow, RelativeID: 3}, "order 9 -1 3"},
		{&protocol.WindowOrderIn{WindowIDs: []uint32{1, 2}}, "order_in [1 2]"},
		{&protocol.WindowListToSpace{SpaceID: 3, WindowIDs: []uint32{1, 2}}, "list_to_space 3 [1 2]"},
		{&protocol.WindowToSpace{SpaceID: 3, WindowID: 1}, "to_space 3 1"},
		{&protocol.WindowResize{WindowID: 1, Width: 640, Height: 480}, "resize 1 640 480"},
		{&protocol.WindowRef{Op: protocol.OpWindowMinimize, WindowID: 1}, "minimize 1"},
		{&protocol.WindowRef{Op: protocol.OpWindowUnminimize, WindowID: 1}, "unminimize 1"},
	}

	backend := newFakeBackend()
	path := startServer(t, backend, protocol.FullCapabilities)
	for _, tt := range tests {
		before := len(backend.Calls())
		reply := request(t, path, tt.req)
		if !protocol.Succeeded(reply) {
			t.Errorf("%s reply = %x, want success", tt.req.Opcode(), reply)
			continue
		}
		calls := backend.Calls()
		if len(calls) != before+1 || calls[before] != tt.want {
			t.Errorf("%s calls = %v, want %q appended", tt.req.Opcode(), calls[before:], tt.want)
		}
	}
}

func TestConcurrentClientsAreServed(t *testing.T) {
	backend := newFakeBackend()
	path := startServer(t, backend, protocol.FullCapabilities)

	const clients = 2
	const perClient = 20
	var wg sync.WaitGroup
	errs := make(chan error, clients*perClient)
	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perClient; i++ {
				conn, err := net.Dial("unix", path)
				if err != nil {
					errs <- err
					return
				}
				frame, _ := protocol.Encode(&protocol.Bare{Op: protocol.OpHandshake})
				conn.SetDeadline(time.Now().Add(5 * time.Second))
				conn.Write(frame)
				conn.(*net.UnixConn).CloseWrite()
				reply, err := io.ReadAll(conn)
				conn.Close()
				if err != nil {
					errs <- err
					continue
				}
				hs, err := protocol.ParseHandshake(reply)
				if err != nil {
					errs <- err
					continue
				}
				if hs.Capabilities != protocol.FullCapabilities {
					errs <- errors.New("wrong capabilities")
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestListenRefusesSecondAgent(t *testing.T) {
	backend := newFakeBackend()
	path := startServer(t, backend, protocol.FullCapabilities)

	second, err := NewServer(Options{SocketPath: path, Backend: backend})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := second.Listen(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Listen error = %v, want ErrAlreadyRunning", err)
	}
}

func TestListenRemovesStaleSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "mss")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "a.sock")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	srv, err := NewServer(Options{SocketPath: path, Backend: newFakeBackend()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	srv.Stop()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket still present after Stop: %v", err)
	}
}

func TestOpacityFadeOverSocket(t *testing.T) {
	backend := newFakeBackend()
	path := startServer(t, backend, protocol.FullCapabilities)

	reply := request(t, path, &protocol.WindowOpacityFade{WindowID: 3, Opacity: 0.5, Duration: 0.05})
	if !protocol.Succeeded(reply) {
		t.Fatalf("reply = %x, want success", reply)
	}

	deadline := time.Now().Add(5 * time.Second)
	for backend.Opacity(3) != 0.5 {
		if time.Now().After(deadline) {
			t.Fatalf("fade never reached target, opacity = %v", backend.Opacity(3))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// failingListener fails every Accept until closed.
type failingListener struct {
	mu      sync.Mutex
	accepts int
	closed  bool
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accepts++
	if l.closed {
		return nil, net.ErrClosed
	}
	return nil, errors.New("accept: too many open files")
}

func (l *failingListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *failingListener) Addr() net.Addr { return &net.UnixAddr{Name: "test", Net: "unix"} }

func (l *failingListener) Accepts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accepts
}

func TestRunBacksOffOnAcceptErrors(t *testing.T) {
	srv, err := NewServer(Options{
		SocketPath: filepath.Join(t.TempDir(), "a.sock"),
		Backend:    newFakeBackend(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ln := &failingListener{}
	srv.listener = ln

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := srv.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := ln.Accepts(); n > 20 {
		t.Fatalf("Accept called %d times in 100ms, want backoff", n)
	}
}

func TestNextAcceptDelay(t *testing.T) {
	var d time.Duration
	want := []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	for _, w := range want {
		d = nextAcceptDelay(d)
		if d != w {
			t.Fatalf("delay = %v, want %v", d, w)
		}
	}
	if got := nextAcceptDelay(800 * time.Millisecond); got != time.Second {
		t.Fatalf("delay = %v, want cap of 1s", got)
	}
}
