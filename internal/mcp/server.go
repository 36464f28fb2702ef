// Package mcp exposes agent operations as MCP tools over stdio.
package mcp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/mss/internal/protocol"
)

const (
	ServerName    = "mss"
	ServerVersion = protocol.Version
)

// Controller is the part of client.Context the tools call.
type Controller interface {
	Handshake(ctx context.Context) (protocol.Handshake, error)
	FocusSpace(ctx context.Context, sid uint64) error
	MoveWindow(ctx context.Context, wid uint32, x, y int32) error
	SetOpacity(ctx context.Context, wid uint32, opacity float32) error
	FadeOpacity(ctx context.Context, wid uint32, opacity float32, d time.Duration) error
	SetLayer(ctx context.Context, wid uint32, layer int32) error
	SetSticky(ctx context.Context, wid uint32, sticky bool) error
	FocusWindow(ctx context.Context, wid uint32) error
	MoveWindowToSpace(ctx context.Context, sid uint64, wid uint32) error
	Displays(ctx context.Context) ([]uint32, error)
}

// Server is the MCP server. Tool calls may arrive concurrently; the
// controller is not safe for concurrent use, so every call holds mu.
type Server struct {
	mcpServer *mcpsdk.Server
	logger    *slog.Logger

	mu  sync.Mutex
	ctl Controller
}

// NewServer creates an MCP server that forwards tool calls to ctl.
func NewServer(ctl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{ctl: ctl, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mss_status",
		Description: "Handshake with the mss agent in the Dock. Returns the agent version and which capabilities resolved on this macOS build.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "space_focus",
		Description: "Switch to a space (virtual desktop) by id. Requires the dock_spaces capability.",
	}, s.handleSpaceFocus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "window_move",
		Description: "Move a window's top-left corner to global screen coordinates.",
	}, s.handleWindowMove)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "window_opacity",
		Description: "Set a window's opacity between 0 and 1. With duration_ms the change is animated by the agent.",
	}, s.handleWindowOpacity)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "window_layer",
		Description: "Place a window below, with, or above normal windows.",
	}, s.handleWindowLayer)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "window_sticky",
		Description: "Show a window on every space, or only on its own.",
	}, s.handleWindowSticky)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "window_focus",
		Description: "Give a window keyboard focus and bring its application forward.",
	}, s.handleWindowFocus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "window_to_space",
		Description: "Move a window to another space without switching to it.",
	}, s.handleWindowToSpace)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "display_list",
		Description: "List the ids of the active displays.",
	}, s.handleDisplayList)
}
