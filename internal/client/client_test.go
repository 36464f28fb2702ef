package client

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/mss/internal/protocol"
)

// fakeAgent answers each connection with reply(msg). A nil reply closes the
// connection without writing.
type fakeAgent struct {
	mu       sync.Mutex
	messages []protocol.Message
	reply    func(protocol.Message) []byte
}

func (a *fakeAgent) Messages() []protocol.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]protocol.Message(nil), a.messages...)
}

func startFakeAgent(t *testing.T, reply func(protocol.Message) []byte) (*fakeAgent, string) {
	t.Helper()

	dir, err := os.MkdirTemp("", "mss")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "a.sock")

	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	agent := &fakeAgent{reply: reply}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			msg, err := protocol.ReadMessage(conn)
			if err == nil {
				agent.mu.Lock()
				agent.messages = append(agent.messages, msg)
				agent.mu.Unlock()
				if out := agent.reply(msg); out != nil {
					conn.Write(out)
				}
			}
			conn.Close()
		}
	}()
	return agent, path
}

func newContext(t *testing.T, path string) *Context {
	t.Helper()
	c, err := New(WithSocketPath(path), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestHandshake(t *testing.T) {
	_, path := startFakeAgent(t, func(protocol.Message) []byte {
		return protocol.EncodeHandshake(protocol.Version, protocol.FullCapabilities)
	})
	c := newContext(t, path)

	hs, err := c.Handshake(context.Background())
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if hs.Version != "2.1.23" || hs.Capabilities != 0x7F {
		t.Fatalf("handshake = %+v", hs)
	}
}

func TestHandshakeVersionMismatch(t *testing.T) {
	_, path := startFakeAgent(t, func(protocol.Message) []byte {
		return protocol.EncodeHandshake("1.9.0", protocol.CapabilitySet(protocol.CapDockSpaces))
	})
	c := newContext(t, path)

	hs, err := c.Handshake(context.Background())
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
	if hs.Version != "1.9.0" {
		t.Fatalf("mismatched handshake not returned: %+v", hs)
	}
}

func TestMutationReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply []byte
		want  error
	}{
		{"success", []byte{protocol.SuccessByte}, nil},
		{"sentinel", []byte{protocol.FailureSentinel}, ErrOperationFailed},
		{"empty", nil, ErrOperationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, path := startFakeAgent(t, func(protocol.Message) []byte { return tt.reply })
			c := newContext(t, path)

			err := c.SetOpacity(context.Background(), 42, 0.8)
			if !errors.Is(err, tt.want) && !(tt.want == nil && err == nil) {
				t.Fatalf("SetOpacity err = %v, want %v", err, tt.want)
			}

			msgs := agent.Messages()
			if len(msgs) != 1 || msgs[0].Opcode != protocol.OpWindowOpacity {
				t.Fatalf("messages = %+v", msgs)
			}
			var m protocol.WindowOpacity
			if err := protocol.Unmarshal(msgs[0].Payload, &m); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if m.WindowID != 42 || m.Opacity != 0.8 {
				t.Fatalf("payload = %+v", m)
			}
		})
	}
}

func TestQueryTreatsShortReplyAsFailure(t *testing.T) {
	_, path := startFakeAgent(t, func(protocol.Message) []byte {
		return []byte{protocol.FailureSentinel}
	})
	c := newContext(t, path)
	ctx := context.Background()

	if _, err := c.Opacity(ctx, 1); !errors.Is(err, ErrOperationFailed) {
		t.Errorf("Opacity err = %v", err)
	}
	if _, err := c.Frame(ctx, 1); !errors.Is(err, ErrOperationFailed) {
		t.Errorf("Frame err = %v", err)
	}
	if _, err := c.Sticky(ctx, 1); !errors.Is(err, ErrOperationFailed) {
		t.Errorf("Sticky err = %v", err)
	}
	if _, err := c.Displays(ctx); !errors.Is(err, ErrOperationFailed) {
		t.Errorf("Displays err = %v", err)
	}
	if _, err := c.Handshake(ctx); !errors.Is(err, ErrOperationFailed) {
		t.Errorf("Handshake err = %v", err)
	}
}

func TestQueries(t *testing.T) {
	_, path := startFakeAgent(t, func(m protocol.Message) []byte {
		switch m.Opcode {
		case protocol.OpWindowGetOpacity:
			return protocol.Float32Reply(0.5)
		case protocol.OpWindowGetFrame:
			return protocol.FrameReply(protocol.Frame{X: 10, Y: 20, Width: 800, Height: 600})
		case protocol.OpWindowIsSticky:
			return protocol.BoolReply(true)
		case protocol.OpWindowIsMinimized:
			return protocol.BoolReply(false)
		case protocol.OpWindowGetLayer:
			return protocol.Int32Reply(protocol.LayerAbove)
		case protocol.OpDisplayGetCount:
			return protocol.Uint32Reply(2)
		case protocol.OpDisplayGetList:
			return protocol.Uint32sReply([]uint32{1, 2})
		}
		return []byte{protocol.FailureSentinel}
	})
	c := newContext(t, path)
	ctx := context.Background()

	if v, err := c.Opacity(ctx, 3); err != nil || v != 0.5 {
		t.Errorf("Opacity = %v, %v", v, err)
	}
	if f, err := c.Frame(ctx, 3); err != nil || f.Width != 800 || f.Y != 20 {
		t.Errorf("Frame = %+v, %v", f, err)
	}
	if v, err := c.Sticky(ctx, 3); err != nil || !v {
		t.Errorf("Sticky = %v, %v", v, err)
	}
	if v, err := c.Minimized(ctx, 3); err != nil || v {
		t.Errorf("Minimized = %v, %v", v, err)
	}
	if v, err := c.Layer(ctx, 3); err != nil || v != protocol.LayerAbove {
		t.Errorf("Layer = %v, %v", v, err)
	}
	if v, err := c.DisplayCount(ctx); err != nil || v != 2 {
		t.Errorf("DisplayCount = %v, %v", v, err)
	}
	if ids, err := c.Displays(ctx); err != nil || len(ids) != 2 {
		t.Errorf("Displays = %v, %v", ids, err)
	}
}

func TestInvalidArgumentsAreNotSent(t *testing.T) {
	agent, path := startFakeAgent(t, func(protocol.Message) []byte {
		return []byte{protocol.SuccessByte}
	})
	c := newContext(t, path)
	ctx := context.Background()

	calls := map[string]error{
		"opacity above one":  c.SetOpacity(ctx, 1, 1.5),
		"opacity negative":   c.SetOpacity(ctx, 1, -0.1),
		"zero window":        c.MoveWindow(ctx, 0, 1, 1),
		"zero space":         c.FocusSpace(ctx, 0),
		"unknown layer":      c.SetLayer(ctx, 1, 7),
		"unknown order":      c.OrderWindow(ctx, 1, 3, 0),
		"empty window list":  c.OrderWindowsIn(ctx, nil),
		"negative fade":      c.FadeOpacity(ctx, 1, 0.5, -time.Second),
		"zero resize":        c.ResizeWindow(ctx, 1, 0, 10),
		"empty frame":        c.SetFrame(ctx, 1, protocol.Frame{}),
		"list to zero space": c.MoveWindowsToSpace(ctx, 0, []uint32{1}),
	}
	for name, err := range calls {
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s: err = %v, want ErrInvalidArgument", name, err)
		}
	}
	if msgs := agent.Messages(); len(msgs) != 0 {
		t.Fatalf("invalid calls reached the agent: %d messages", len(msgs))
	}
}

func TestConnectionFailure(t *testing.T) {
	c := newContext(t, filepath.Join(t.TempDir(), "missing.sock"))

	err := c.FocusWindow(context.Background(), 5)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}

func TestCallHonoursContextDeadline(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	_, path := startFakeAgent(t, func(protocol.Message) []byte {
		<-block
		return nil
	})
	c := newContext(t, path)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Handshake(ctx)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("call blocked for %v", elapsed)
	}
}

func TestClosedContext(t *testing.T) {
	c := newContext(t, "unused")
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.Handshake(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if _, err := c.ConnectionID(); !errors.Is(err, ErrClosed) {
		t.Fatalf("ConnectionID err = %v, want ErrClosed", err)
	}
}

func TestSocketPathFromUser(t *testing.T) {
	t.Setenv("MSS_RUNTIME_DIR", "/var/run/test")
	c, err := New(WithUser("alice"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := c.SocketPath(), "/var/run/test/mss_alice.socket"; got != want {
		t.Fatalf("SocketPath = %q, want %q", got, want)
	}
}
