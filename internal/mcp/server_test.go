package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/mss/internal/protocol"
)

type fakeController struct {
	mu      sync.Mutex
	calls   []string
	active  int
	overlap bool
	err     error
	caps    protocol.CapabilitySet
}

func (f *fakeController) record(format string, args ...any) error {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return f.err
}

func (f *fakeController) Handshake(ctx context.Context) (protocol.Handshake, error) {
	if err := f.record("handshake"); err != nil {
		return protocol.Handshake{}, err
	}
	return protocol.Handshake{Version: protocol.Version, Capabilities: f.caps}, nil
}

func (f *fakeController) FocusSpace(ctx context.Context, sid uint64) error {
	return f.record("focus_space %d", sid)
}

func (f *fakeController) MoveWindow(ctx context.Context, wid uint32, x, y int32) error {
	return f.record("move %d %d,%d", wid, x, y)
}

func (f *fakeController) SetOpacity(ctx context.Context, wid uint32, opacity float32) error {
	return f.record("opacity %d %.2f", wid, opacity)
}

func (f *fakeController) FadeOpacity(ctx context.Context, wid uint32, opacity float32, d time.Duration) error {
	return f.record("fade %d %.2f %v", wid, opacity, d)
}

func (f *fakeController) SetLayer(ctx context.Context, wid uint32, layer int32) error {
	return f.record("layer %d %d", wid, layer)
}

func (f *fakeController) SetSticky(ctx context.Context, wid uint32, sticky bool) error {
	return f.record("sticky %d %t", wid, sticky)
}

func (f *fakeController) FocusWindow(ctx context.Context, wid uint32) error {
	return f.record("focus %d", wid)
}

func (f *fakeController) MoveWindowToSpace(ctx context.Context, sid uint64, wid uint32) error {
	return f.record("to_space %d %d", wid, sid)
}

func (f *fakeController) Displays(ctx context.Context) ([]uint32, error) {
	if err := f.record("displays"); err != nil {
		return nil, err
	}
	return []uint32{1, 5}, nil
}

func TestHandleStatus(t *testing.T) {
	ctl := &fakeController{caps: protocol.CapabilitySet(protocol.CapDockSpaces).With(protocol.CapSetWindow)}
	s := NewServer(ctl, nil)

	_, out, err := s.handleStatus(context.Background(), nil, StatusInput{})
	if err != nil {
		t.Fatalf("handleStatus: %v", err)
	}
	if out.Version != protocol.Version || out.Complete {
		t.Fatalf("status = %+v", out)
	}
	if got := strings.Join(out.Capabilities, ","); got != "dock_spaces,set_window" {
		t.Fatalf("capabilities = %q", got)
	}
}

func TestActionTools(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		call func(s *Server) (ActionOutput, error)
		want string
	}{
		{"space_focus", func(s *Server) (ActionOutput, error) {
			_, out, err := s.handleSpaceFocus(ctx, nil, SpaceFocusInput{SpaceID: 3})
			return out, err
		}, "focus_space 3"},
		{"window_move", func(s *Server) (ActionOutput, error) {
			_, out, err := s.handleWindowMove(ctx, nil, WindowMoveInput{WindowID: 42, X: -10, Y: 25})
			return out, err
		}, "move 42 -10,25"},
		{"window_opacity", func(s *Server) (ActionOutput, error) {
			_, out, err := s.handleWindowOpacity(ctx, nil, WindowOpacityInput{WindowID: 42, Opacity: 0.5})
			return out, err
		}, "opacity 42 0.50"},
		{"window_opacity fade", func(s *Server) (ActionOutput, error) {
			_, out, err := s.handleWindowOpacity(ctx, nil, WindowOpacityInput{WindowID: 42, Opacity: 0.25, DurationMS: 300})
			return out, err
		}, "fade 42 0.25 300ms"},
		{"window_layer", func(s *Server) (ActionOutput, error) {
			_, out, err := s.handleWindowLayer(ctx, nil, WindowLayerInput{WindowID: 42, Layer: "Above"})
			return out, err
		}, "layer 42 1"},
		{"window_sticky", func(s *Server) (ActionOutput, error) {
			_, out, err := s.handleWindowSticky(ctx, nil, WindowStickyInput{WindowID: 42, Sticky: true})
			return out, err
		}, "sticky 42 true"},
		{"window_focus", func(s *Server) (ActionOutput, error) {
			_, out, err := s.handleWindowFocus(ctx, nil, WindowFocusInput{WindowID: 42})
			return out, err
		}, "focus 42"},
		{"window_to_space", func(s *Server) (ActionOutput, error) {
			_, out, err := s.handleWindowToSpace(ctx, nil, WindowToSpaceInput{WindowID: 42, SpaceID: 7})
			return out, err
		}, "to_space 42 7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{}
			out, err := tt.call(NewServer(ctl, nil))
			if err != nil {
				t.Fatalf("tool error: %v", err)
			}
			if !out.OK {
				t.Fatalf("expected ok output")
			}
			if len(ctl.calls) != 1 || ctl.calls[0] != tt.want {
				t.Fatalf("calls = %v, want [%s]", ctl.calls, tt.want)
			}
		})
	}
}

func TestToolErrors(t *testing.T) {
	ctl := &fakeController{err: errors.New("operation failed in the agent")}
	s := NewServer(ctl, nil)
	ctx := context.Background()

	if _, out, err := s.handleWindowFocus(ctx, nil, WindowFocusInput{WindowID: 1}); err == nil || out.OK {
		t.Fatalf("expected failure, got %+v, %v", out, err)
	}
	if _, _, err := s.handleDisplayList(ctx, nil, DisplayListInput{}); err == nil {
		t.Fatalf("expected display_list failure")
	}

	if _, _, err := s.handleWindowLayer(ctx, nil, WindowLayerInput{WindowID: 1, Layer: "top"}); err == nil {
		t.Fatalf("expected unknown layer error")
	}
	if _, _, err := s.handleWindowOpacity(ctx, nil, WindowOpacityInput{WindowID: 1, Opacity: 1, DurationMS: -5}); err == nil {
		t.Fatalf("expected negative duration error")
	}
	if len(ctl.calls) != 2 {
		t.Fatalf("invalid inputs reached the controller: %v", ctl.calls)
	}
}

func TestHandleDisplayList(t *testing.T) {
	s := NewServer(&fakeController{}, nil)
	_, out, err := s.handleDisplayList(context.Background(), nil, DisplayListInput{})
	if err != nil {
		t.Fatalf("handleDisplayList: %v", err)
	}
	if len(out.Displays) != 2 || out.Displays[1] != 5 {
		t.Fatalf("displays = %v", out.Displays)
	}
}

func TestToolCallsAreSerialized(t *testing.T) {
	ctl := &fakeController{}
	s := NewServer(ctl, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.handleWindowFocus(ctx, nil, WindowFocusInput{WindowID: uint32(i + 1)})
		}(i)
	}
	wg.Wait()

	if ctl.overlap {
		t.Fatalf("controller was called concurrently")
	}
	if len(ctl.calls) != 8 {
		t.Fatalf("calls = %d, want 8", len(ctl.calls))
	}
}
