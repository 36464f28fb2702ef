package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/mss/internal/protocol"
)

// do runs fn with the controller held and logs the outcome.
func (s *Server) do(tool string, fn func(Controller) error) (*mcpsdk.CallToolResult, ActionOutput, error) {
	s.mu.Lock()
	err := fn(s.ctl)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("tool failed", "tool", tool, "error", err)
		return nil, ActionOutput{}, err
	}
	s.logger.Debug("tool succeeded", "tool", tool)
	return nil, ActionOutput{OK: true}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *mcpsdk.CallToolRequest, _ StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	s.mu.Lock()
	hs, err := s.ctl.Handshake(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, StatusOutput{}, err
	}
	out := StatusOutput{Version: hs.Version, Capabilities: []string{}, Complete: hs.Capabilities.Complete()}
	for _, c := range protocol.AllCapabilities {
		if hs.Capabilities.Has(c) {
			out.Capabilities = append(out.Capabilities, c.String())
		}
	}
	return nil, out, nil
}

func (s *Server) handleSpaceFocus(ctx context.Context, _ *mcpsdk.CallToolRequest, args SpaceFocusInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.do("space_focus", func(c Controller) error {
		return c.FocusSpace(ctx, args.SpaceID)
	})
}

func (s *Server) handleWindowMove(ctx context.Context, _ *mcpsdk.CallToolRequest, args WindowMoveInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.do("window_move", func(c Controller) error {
		return c.MoveWindow(ctx, args.WindowID, args.X, args.Y)
	})
}

func (s *Server) handleWindowOpacity(ctx context.Context, _ *mcpsdk.CallToolRequest, args WindowOpacityInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	if args.DurationMS < 0 {
		return nil, ActionOutput{}, fmt.Errorf("duration_ms must be >= 0")
	}
	return s.do("window_opacity", func(c Controller) error {
		if args.DurationMS > 0 {
			return c.FadeOpacity(ctx, args.WindowID, args.Opacity, time.Duration(args.DurationMS)*time.Millisecond)
		}
		return c.SetOpacity(ctx, args.WindowID, args.Opacity)
	})
}

func parseLayer(name string) (int32, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "below":
		return protocol.LayerBelow, nil
	case "normal":
		return protocol.LayerNormal, nil
	case "above":
		return protocol.LayerAbove, nil
	}
	return 0, fmt.Errorf("unknown layer %q; use below, normal or above", name)
}

func (s *Server) handleWindowLayer(ctx context.Context, _ *mcpsdk.CallToolRequest, args WindowLayerInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	layer, err := parseLayer(args.Layer)
	if err != nil {
		return nil, ActionOutput{}, err
	}
	return s.do("window_layer", func(c Controller) error {
		return c.SetLayer(ctx, args.WindowID, layer)
	})
}

func (s *Server) handleWindowSticky(ctx context.Context, _ *mcpsdk.CallToolRequest, args WindowStickyInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.do("window_sticky", func(c Controller) error {
		return c.SetSticky(ctx, args.WindowID, args.Sticky)
	})
}

func (s *Server) handleWindowFocus(ctx context.Context, _ *mcpsdk.CallToolRequest, args WindowFocusInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.do("window_focus", func(c Controller) error {
		return c.FocusWindow(ctx, args.WindowID)
	})
}

func (s *Server) handleWindowToSpace(ctx context.Context, _ *mcpsdk.CallToolRequest, args WindowToSpaceInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.do("window_to_space", func(c Controller) error {
		return c.MoveWindowToSpace(ctx, args.SpaceID, args.WindowID)
	})
}

func (s *Server) handleDisplayList(ctx context.Context, _ *mcpsdk.CallToolRequest, _ DisplayListInput) (*mcpsdk.CallToolResult, DisplayListOutput, error) {
	s.mu.Lock()
	ids, err := s.ctl.Displays(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, DisplayListOutput{}, err
	}
	if ids == nil {
		ids = []uint32{}
	}
	return nil, DisplayListOutput{Displays: ids}, nil
}
