// Package install stages the scripting addition bundle, checks that the
// system allows loading it, and drives a load into the host process.
package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/1broseidon/mss/internal/bootstrap"
	"github.com/1broseidon/mss/internal/inject"
)

var (
	// ErrPrivilegeRequired means the command must run as root.
	ErrPrivilegeRequired = errors.New("root privileges required")
	// ErrEnvironmentNotReady means system protections or boot arguments do
	// not allow loading the agent.
	ErrEnvironmentNotReady = errors.New("system environment not ready")
	// ErrInstallFailure wraps every staging, signing and removal failure.
	ErrInstallFailure = errors.New("installation failed")
)

// PreconditionError is a failed precondition with a remediation the user
// can follow without further context.
type PreconditionError struct {
	Kind        error
	Reason      string
	Remediation string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *PreconditionError) Unwrap() error {
	return e.Kind
}

// Protections reports which system integrity protections are relaxed.
type Protections struct {
	Filesystem bool
	Debugger   bool
}

// Environment is the system state the preconditions read.
type Environment interface {
	Elevated() bool
	Protections() (Protections, error)
	BootArgs() (string, error)
	Arch() bootstrap.Arch
}

// Runner runs an external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec. A failing command's combined
// output is folded into the error.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, msg)
		}
		return fmt.Errorf("%s failed: %w", filepath.Base(name), err)
	}
	return nil
}

// Defaults for Layout.
const (
	DefaultRoot        = "/Library/ScriptingAdditions"
	DefaultBundleName  = "mss.osax"
	DefaultIdentifier  = "com.1broseidon.mss.osax"
	DefaultHostProcess = "Dock"
	DefaultLoadTimeout = 10 * time.Second
)

// PreviewABIBootArg must be set on arm64 so the host accepts unsigned
// arm64e code.
const PreviewABIBootArg = "-arm64e_preview_abi"

// Layout names the bundle on disk and the images it carries.
type Layout struct {
	Root          string
	BundleName    string
	Identifier    string
	HostProcess   string
	AgentImage    string
	InjectorImage string
	LoadTimeout   time.Duration
}

func (l Layout) withDefaults() Layout {
	if l.Root == "" {
		l.Root = DefaultRoot
	}
	if l.BundleName == "" {
		l.BundleName = DefaultBundleName
	}
	if l.Identifier == "" {
		l.Identifier = DefaultIdentifier
	}
	if l.HostProcess == "" {
		l.HostProcess = DefaultHostProcess
	}
	if l.LoadTimeout <= 0 {
		l.LoadTimeout = DefaultLoadTimeout
	}
	return l
}

// Manager owns the bundle at Layout's canonical path.
type Manager struct {
	layout       Layout
	env          Environment
	runner       Runner
	locator      inject.Locator
	handshaker   inject.Handshaker
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

func WithEnvironment(env Environment) Option {
	return func(m *Manager) { m.env = env }
}

func WithRunner(r Runner) Option {
	return func(m *Manager) { m.runner = r }
}

func WithLocator(l inject.Locator) Option {
	return func(m *Manager) { m.locator = l }
}

// WithHandshaker sets how Load and Status reach the agent.
func WithHandshaker(h inject.Handshaker) Option {
	return func(m *Manager) { m.handshaker = h }
}

// WithPollInterval sets how often Load polls for the host and the agent.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New returns a manager for layout. Zero layout fields take their defaults.
func New(layout Layout, opts ...Option) *Manager {
	m := &Manager{
		layout:       layout.withDefaults(),
		runner:       ExecRunner{},
		pollInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.env == nil {
		m.env = DefaultEnvironment()
	}
	if m.locator == nil {
		m.locator = inject.DefaultLocator()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// Layout returns the manager's layout with defaults applied.
func (m *Manager) Layout() Layout {
	return m.layout
}

func (m *Manager) requirePrivilege() error {
	if !m.env.Elevated() {
		return &PreconditionError{
			Kind:        ErrPrivilegeRequired,
			Reason:      "this command modifies system locations and the Dock process",
			Remediation: "re-run the command with sudo",
		}
	}
	return nil
}

// Check evaluates the preconditions in order and returns the first that
// fails: privileges, then system protections, then on arm64 the boot
// argument.
func (m *Manager) Check() error {
	if err := m.requirePrivilege(); err != nil {
		return err
	}

	prot, err := m.env.Protections()
	if err != nil {
		return &PreconditionError{
			Kind:        ErrEnvironmentNotReady,
			Reason:      fmt.Sprintf("cannot read the system integrity configuration: %v", err),
			Remediation: "run on macOS 11 or later",
		}
	}
	if !prot.Filesystem || !prot.Debugger {
		var locked []string
		if !prot.Filesystem {
			locked = append(locked, "filesystem")
		}
		if !prot.Debugger {
			locked = append(locked, "debugger")
		}
		return &PreconditionError{
			Kind:        ErrEnvironmentNotReady,
			Reason:      fmt.Sprintf("System Integrity Protection is enforcing %s protections", strings.Join(locked, " and ")),
			Remediation: "boot into Recovery and run: csrutil enable --without fs --without debug --without nvram",
		}
	}

	if m.env.Arch() == bootstrap.ARM64 {
		args, err := m.env.BootArgs()
		if err != nil {
			return &PreconditionError{
				Kind:        ErrEnvironmentNotReady,
				Reason:      fmt.Sprintf("cannot read boot arguments: %v", err),
				Remediation: "sudo nvram boot-args=" + PreviewABIBootArg + " and reboot",
			}
		}
		if !hasBootArg(args, PreviewABIBootArg) {
			return &PreconditionError{
				Kind:        ErrEnvironmentNotReady,
				Reason:      "boot argument " + PreviewABIBootArg + " is not set",
				Remediation: "sudo nvram boot-args=" + PreviewABIBootArg + " and reboot",
			}
		}
	}
	return nil
}

func hasBootArg(args, want string) bool {
	for _, arg := range strings.Fields(args) {
		if arg == want {
			return true
		}
	}
	return false
}
