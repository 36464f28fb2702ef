// Package client talks to the agent. Every call opens the user's socket,
// sends one request, reads one reply and closes.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/1broseidon/mss/internal/platform"
	"github.com/1broseidon/mss/internal/protocol"
	"github.com/1broseidon/mss/internal/runtimepath"
)

var (
	// ErrConnection means the agent socket could not be reached or the
	// exchange was cut short.
	ErrConnection = errors.New("cannot reach the mss agent")
	// ErrInvalidArgument is returned before anything is sent.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrVersionMismatch means the agent speaks a different protocol version.
	ErrVersionMismatch = errors.New("agent version mismatch")
	// ErrClosed is returned by every method of a closed Context.
	ErrClosed = errors.New("client context is closed")
	// ErrOperationFailed means the agent answered with the failure sentinel.
	ErrOperationFailed = errors.New("operation failed in the agent")
)

// DefaultTimeout bounds a call when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Second

// Context is a per-client handle. It is not safe for concurrent use.
type Context struct {
	socketPath string
	user       string
	timeout    time.Duration
	logger     *slog.Logger

	closed bool
	cid    int32
	cidSet bool
}

// Option configures a Context.
type Option func(*Context)

// WithSocketPath overrides the socket derived from the invoking user.
func WithSocketPath(path string) Option {
	return func(c *Context) { c.socketPath = path }
}

// WithUser derives the socket from username instead of the invoking user.
func WithUser(username string) Option {
	return func(c *Context) { c.user = username }
}

// WithTimeout sets the per-call timeout applied when ctx has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Context) { c.timeout = d }
}

// WithLogger sets the logger for transport diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// New creates a Context for the invoking user's agent.
func New(opts ...Option) (*Context, error) {
	c := &Context{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.socketPath == "" {
		if c.user == "" {
			u, err := runtimepath.InvokingUser()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve invoking user: %w", err)
			}
			c.user = u
		}
		c.socketPath = runtimepath.SocketPath(c.user)
	}
	return c, nil
}

// SocketPath returns the agent socket this context talks to.
func (c *Context) SocketPath() string {
	return c.socketPath
}

// Close releases the context. Later calls return ErrClosed.
func (c *Context) Close() error {
	c.closed = true
	return nil
}

// ConnectionID returns this process's window-server connection, looked up
// on first use.
func (c *Context) ConnectionID() (int32, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if !c.cidSet {
		cid, err := platform.MainConnectionID()
		if err != nil {
			return 0, err
		}
		c.cid, c.cidSet = cid, true
	}
	return c.cid, nil
}

// Call sends req and returns the raw reply.
func (c *Context) Call(ctx context.Context, req protocol.Request) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	frame, err := protocol.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v (is the agent loaded?)", ErrConnection, c.socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("%w: sending %s: %v", ErrConnection, req.Opcode(), err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s reply: %v", ErrConnection, req.Opcode(), err)
	}
	c.logger.Debug("call", "opcode", req.Opcode().String(), "reply_len", len(reply))
	return reply, nil
}

// mutate sends a mutation and maps its status byte to an error.
func (c *Context) mutate(ctx context.Context, req protocol.Request) error {
	reply, err := c.Call(ctx, req)
	if err != nil {
		return err
	}
	if !protocol.Succeeded(reply) {
		return fmt.Errorf("%w: %s", ErrOperationFailed, req.Opcode())
	}
	return nil
}

// query sends a query and fails on the sentinel or any short reply.
func (c *Context) query(ctx context.Context, req protocol.Request) ([]byte, error) {
	reply, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(reply) <= 1 {
		return nil, fmt.Errorf("%w: %s", ErrOperationFailed, req.Opcode())
	}
	return reply, nil
}

// Handshake returns the agent's version and capabilities. On a version
// mismatch the handshake is returned along with ErrVersionMismatch.
func (c *Context) Handshake(ctx context.Context) (protocol.Handshake, error) {
	reply, err := c.query(ctx, &protocol.Bare{Op: protocol.OpHandshake})
	if err != nil {
		return protocol.Handshake{}, err
	}
	hs, err := protocol.ParseHandshake(reply)
	if err != nil {
		return protocol.Handshake{}, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if hs.Version != protocol.Version {
		return hs, fmt.Errorf("%w: agent %s, client %s", ErrVersionMismatch, hs.Version, protocol.Version)
	}
	return hs, nil
}
