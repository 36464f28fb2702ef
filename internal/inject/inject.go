// Package inject gets the agent running inside the host process: it writes
// the bootstrap into the target task and starts a thread on it.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/1broseidon/mss/internal/bootstrap"
	"github.com/1broseidon/mss/internal/protocol"
)

var (
	// ErrInvalidArgument is returned before the target is touched.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInjectionFailure wraps every failure after the target was touched.
	ErrInjectionFailure = errors.New("injection failed")
	// ErrUnsupported is returned where no task backend exists.
	ErrUnsupported = errors.New("injection is not supported on this platform")
)

// Protection is a page protection mask.
type Protection int32

const (
	ProtRead    Protection = 0x1
	ProtWrite   Protection = 0x2
	ProtExecute Protection = 0x4
)

// Target identifies the host process for one load attempt.
type Target struct {
	PID  int
	Arch bootstrap.Arch
}

// Task is a handle on another process's address space and threads.
type Task interface {
	Allocate(size uint64) (uint64, error)
	Deallocate(addr, size uint64) error
	Write(addr uint64, data []byte) error
	Read(addr uint64, n int) ([]byte, error)
	Protect(addr, size uint64, prot Protection) error
	CreateThread(arch bootstrap.Arch, pc, sp uint64) (uint64, error)
	TerminateThread(thread uint64) error
	Close() error
}

// Opener acquires a Task for a pid.
type Opener interface {
	Open(pid int) (Task, error)
}

// Symbols resolves function addresses valid in the target.
type Symbols interface {
	Lookup(name string) (uint64, error)
}

// Symbol names the bootstrap links against.
const (
	SymbolDlopen        = "dlopen"
	SymbolPthreadCreate = "pthread_create_from_mach_thread"
)

// Failure is an injection failure with the step that failed and what the
// user can do about it.
type Failure struct {
	Stage       string
	Err         error
	Remediation string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("injection failed at %s: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() []error {
	return []error{ErrInjectionFailure, f.Err}
}

func fail(stage string, err error, remediation string) error {
	return &Failure{Stage: stage, Err: err, Remediation: remediation}
}

const (
	remedyTaskPort = "run as root with debugger protection relaxed (from Recovery: csrutil enable --without debug)"
	remedyAgentLog = "check the agent log in the runtime directory and that the agent image matches the host architecture"
)

// Defaults for Injector.
const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultTimeout      = 5 * time.Second
)

// Injector loads an agent image into a target process.
type Injector struct {
	opener       Opener
	symbols      Symbols
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger
}

// Option configures an Injector.
type Option func(*Injector)

// WithTimeout bounds the wait for the bootstrap to report completion.
func WithTimeout(d time.Duration) Option {
	return func(in *Injector) { in.timeout = d }
}

// WithPollInterval sets how often the completion marker is read.
func WithPollInterval(d time.Duration) Option {
	return func(in *Injector) { in.pollInterval = d }
}

// WithLogger sets the injector's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Injector) { in.logger = logger }
}

// New returns an injector over opener and symbols.
func New(opener Opener, symbols Symbols, opts ...Option) *Injector {
	in := &Injector{
		opener:       opener,
		symbols:      symbols,
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = slog.New(slog.DiscardHandler)
	}
	return in
}

func validateImage(path string) error {
	if path == "" {
		return fmt.Errorf("%w: agent image path is empty", ErrInvalidArgument)
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: agent image path %q is not absolute", ErrInvalidArgument, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: agent image: %v", ErrInvalidArgument, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: agent image %s is not a regular file", ErrInvalidArgument, path)
	}
	return nil
}

// Inject writes the bootstrap into target and waits until it has handed the
// agent image to dlopen. Success here does not mean the agent is serving;
// confirm with Verify.
func (in *Injector) Inject(ctx context.Context, target Target, imagePath string) error {
	if target.PID <= 0 {
		return fmt.Errorf("%w: pid %d", ErrInvalidArgument, target.PID)
	}
	if err := validateImage(imagePath); err != nil {
		return err
	}

	dlopen, err := in.symbols.Lookup(SymbolDlopen)
	if err != nil {
		return fail("symbol lookup", err, remedyAgentLog)
	}
	pthreadCreate, err := in.symbols.Lookup(SymbolPthreadCreate)
	if err != nil {
		return fail("symbol lookup", err, remedyAgentLog)
	}

	task, err := in.opener.Open(target.PID)
	if err != nil {
		return fail("task acquisition", err, remedyTaskPort)
	}
	defer task.Close()
	in.logger.Debug("acquired task", "pid", target.PID, "arch", target.Arch)

	var allocated []uint64
	release := func() {
		for _, addr := range allocated {
			task.Deallocate(addr, bootstrap.PageSize)
		}
	}
	alloc := func() (uint64, error) {
		addr, err := task.Allocate(bootstrap.PageSize)
		if err == nil {
			allocated = append(allocated, addr)
		}
		return addr, err
	}

	code, err := alloc()
	if err != nil {
		release()
		return fail("code allocation", err, remedyTaskPort)
	}
	data, err := alloc()
	if err != nil {
		release()
		return fail("data allocation", err, remedyTaskPort)
	}
	stack, err := alloc()
	if err != nil {
		release()
		return fail("stack allocation", err, remedyTaskPort)
	}

	img, err := bootstrap.Build(target.Arch, bootstrap.Params{
		Code:          code,
		Data:          data,
		Dlopen:        dlopen,
		PthreadCreate: pthreadCreate,
		ImagePath:     imagePath,
	})
	if err != nil {
		release()
		return fail("bootstrap", err, remedyAgentLog)
	}

	steps := []struct {
		stage string
		run   func() error
	}{
		{"code write", func() error { return task.Write(code, img.Code) }},
		{"data write", func() error { return task.Write(data, img.Data) }},
		{"code protection", func() error { return task.Protect(code, bootstrap.PageSize, ProtRead|ProtExecute) }},
		{"data protection", func() error { return task.Protect(data, bootstrap.PageSize, ProtRead|ProtWrite) }},
		{"stack protection", func() error { return task.Protect(stack, bootstrap.PageSize, ProtRead|ProtWrite) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			release()
			return fail(step.stage, err, remedyTaskPort)
		}
	}

	sp := bootstrap.InitialSP(target.Arch, stack+bootstrap.PageSize)
	thread, err := task.CreateThread(target.Arch, code, sp)
	if err != nil {
		release()
		return fail("thread creation", err, remedyTaskPort)
	}
	in.logger.Debug("bootstrap thread started", "pid", target.PID, "code", fmt.Sprintf("%#x", code))

	// From here the new pthread may still be reading the path, so the pages
	// stay mapped whatever happens.
	err = in.waitForMarker(ctx, task, data+uint64(img.MarkerOffset))
	if termErr := task.TerminateThread(thread); termErr != nil {
		in.logger.Warn("failed to terminate bootstrap thread", "error", termErr)
	}
	if err != nil {
		return fail("bootstrap completion", err, remedyAgentLog)
	}
	in.logger.Info("agent image handed to dlopen", "pid", target.PID, "image", imagePath)
	return nil
}

func (in *Injector) waitForMarker(ctx context.Context, task Task, addr uint64) error {
	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	ticker := time.NewTicker(in.pollInterval)
	defer ticker.Stop()
	for {
		b, err := task.Read(addr, 4)
		if err != nil {
			return fmt.Errorf("reading completion marker: %w", err)
		}
		if bootstrap.Done(b) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("bootstrap did not complete: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Handshaker is the part of the client the injector needs to confirm that
// the agent answers.
type Handshaker interface {
	Handshake(ctx context.Context) (protocol.Handshake, error)
}

// Verify polls the agent's handshake until it answers or timeout elapses.
// A version mismatch ends the wait immediately.
func Verify(ctx context.Context, h Handshaker, timeout, interval time.Duration) (protocol.Handshake, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastErr error
	for {
		hs, err := h.Handshake(ctx)
		if err == nil {
			return hs, nil
		}
		if hs.Version != "" {
			return hs, fail("handshake", err, "reinstall so the agent and the client come from the same build")
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return protocol.Handshake{}, fail("handshake", lastErr, remedyAgentLog)
		case <-ticker.C:
		}
	}
}
