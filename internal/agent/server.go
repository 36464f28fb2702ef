// Package agent is the command dispatcher that runs inside the host process.
// It serves one request per connection on a per-user unix socket and
// forwards each request to the window server through a platform.Backend.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/mss/internal/platform"
	"github.com/1broseidon/mss/internal/protocol"
)

// ErrAlreadyRunning is returned by Listen when another agent answers on the
// socket.
var ErrAlreadyRunning = errors.New("an agent is already listening on this socket")

// DefaultReadTimeout bounds how long a connection may take to deliver its
// request.
const DefaultReadTimeout = 2 * time.Second

// Options configures a Server.
type Options struct {
	SocketPath   string
	Backend      platform.Backend
	Capabilities protocol.CapabilitySet
	ReadTimeout  time.Duration
	FadeInterval time.Duration
	Logger       *slog.Logger
}

// Server accepts client connections and dispatches their requests.
type Server struct {
	socketPath  string
	backend     platform.Backend
	caps        protocol.CapabilitySet
	readTimeout time.Duration
	fader       *Fader
	logger      *slog.Logger
	uid         int

	listener     net.Listener
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a server. Call Listen before Run.
func NewServer(opts Options) (*Server, error) {
	if opts.SocketPath == "" {
		return nil, fmt.Errorf("socket path is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Server{
		socketPath:  opts.SocketPath,
		backend:     opts.Backend,
		caps:        opts.Capabilities,
		readTimeout: readTimeout,
		fader:       NewFader(opts.Backend, opts.FadeInterval, logger),
		logger:      logger,
		uid:         os.Getuid(),
	}, nil
}

// Capabilities returns the mask reported on every handshake.
func (s *Server) Capabilities() protocol.CapabilitySet {
	return s.caps
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Listen binds the socket. A socket file that no longer answers is left over
// from a dead agent and is removed; one that answers means another agent
// owns it.
func (s *Server) Listen() error {
	if _, err := os.Lstat(s.socketPath); err == nil {
		conn, err := net.DialTimeout("unix", s.socketPath, 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.socketPath)
		}
		s.logger.Info("removing stale socket", "path", s.socketPath)
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	s.listener = listener
	s.logger.Info("agent listening", "path", s.socketPath, "capabilities", s.caps.String())
	return nil
}

// Run accepts connections until ctx is done or Stop is called. Connections
// are served one at a time; the fade worker is the only other goroutine.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening")
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.fader.Run(ctx)
	}()

	var delay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopping() {
				return nil
			}
			delay = nextAcceptDelay(delay)
			s.logger.Warn("accept failed", "error", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		if err := s.ServeConn(conn); err != nil {
			s.logger.Debug("connection ended with error", "error", err)
		}
	}
}

// ServeConn reads exactly one request from conn, dispatches it and writes
// the reply. A malformed request is answered with nothing: the connection is
// closed and ErrMalformedMessage returned.
func (s *Server) ServeConn(conn net.Conn) error {
	defer conn.Close()

	if !s.peerAllowed(conn) {
		return fmt.Errorf("peer rejected")
	}

	if s.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}

	msg, err := protocol.ReadMessage(conn)
	if err != nil {
		s.logger.Warn("malformed request", "error", err)
		return err
	}

	reply, err := s.dispatch(msg)
	if err != nil {
		s.logger.Warn("malformed request", "opcode", msg.Opcode.String(), "error", err)
		return err
	}

	if _, err := conn.Write(reply); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// peerAllowed admits connections from the agent's own user and from root.
func (s *Server) peerAllowed(conn net.Conn) bool {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return true
	}
	uid, err := peerUID(uc)
	if err != nil {
		s.logger.Debug("peer credentials unavailable", "error", err)
		return true
	}
	if uid == 0 || int(uid) == s.uid {
		return true
	}
	s.logger.Warn("rejecting connection from another user", "uid", uid)
	return false
}

// Accept retry delays double from minAcceptDelay up to maxAcceptDelay.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	return min(2*d, maxAcceptDelay)
}

func (s *Server) stopping() bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	return s.shuttingDown
}

// Stop closes the listener and removes the socket file.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if s.shuttingDown {
		return
	}
	s.shuttingDown = true
	if s.listener != nil {
		s.listener.Close()
		os.Remove(s.socketPath)
	}
}
