package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1broseidon/mss/internal/runtimepath"
)

// ClientConfig holds client transport settings.
type ClientConfig struct {
	// Timeout bounds one request/reply exchange.
	Timeout time.Duration `yaml:"timeout"`
}

// AgentConfig holds settings read by the agent when it starts.
type AgentConfig struct {
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	FadeInterval time.Duration `yaml:"fade_interval"`
	// LogFile defaults to mss-agent_<user>.log in the socket directory.
	LogFile string `yaml:"log_file"`
}

// InstallConfig describes the bundle and the images it carries.
type InstallConfig struct {
	Root        string `yaml:"root"`
	BundleName  string `yaml:"bundle_name"`
	Identifier  string `yaml:"identifier"`
	HostProcess string `yaml:"host_process"`
	// AgentImage defaults to <exe dir>/../lib/mss/mss-agent.dylib.
	AgentImage string `yaml:"agent_image"`
	// InjectorImage defaults to the running executable.
	InjectorImage string        `yaml:"injector_image"`
	LoadTimeout   time.Duration `yaml:"load_timeout"`
}

// Config is the effective configuration.
type Config struct {
	SocketDir string        `yaml:"socket_dir"`
	LogLevel  string        `yaml:"log_level"`
	Client    ClientConfig  `yaml:"client"`
	Agent     AgentConfig   `yaml:"agent"`
	Install   InstallConfig `yaml:"install"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		SocketDir: runtimepath.Dir(),
		LogLevel:  "info",
		Client: ClientConfig{
			Timeout: 5 * time.Second,
		},
		Agent: AgentConfig{
			ReadTimeout:  2 * time.Second,
			FadeInterval: 16 * time.Millisecond,
		},
		Install: InstallConfig{
			Root:        "/Library/ScriptingAdditions",
			BundleName:  "mss.osax",
			Identifier:  "com.1broseidon.mss.osax",
			HostProcess: "Dock",
			LoadTimeout: 10 * time.Second,
		},
	}
}

// SocketPath returns the agent socket for username.
func (c *Config) SocketPath(username string) string {
	return runtimepath.SocketPathIn(c.SocketDir, username)
}

// AgentLogPath returns the agent log file for username.
func (c *Config) AgentLogPath(username string) string {
	if c.Agent.LogFile != "" {
		return c.Agent.LogFile
	}
	return filepath.Join(c.SocketDir, fmt.Sprintf("mss-agent_%s.log", username))
}

// SlogLevel maps log_level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AgentImagePath resolves install.agent_image.
func (c *Config) AgentImagePath() (string, error) {
	if c.Install.AgentImage != "" {
		return filepath.Abs(c.Install.AgentImage)
	}
	exe, err := executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(exe), "..", "lib", "mss", "mss-agent.dylib"), nil
}

// InjectorImagePath resolves install.injector_image.
func (c *Config) InjectorImagePath() (string, error) {
	if c.Install.InjectorImage != "" {
		return filepath.Abs(c.Install.InjectorImage)
	}
	return executable()
}

func executable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate the mss executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}

// Validate rejects settings the rest of the program cannot use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SocketDir) == "" {
		return &ValidationError{Path: "socket_dir", Err: fmt.Errorf("socket_dir must not be empty")}
	}
	if !filepath.IsAbs(c.SocketDir) {
		return &ValidationError{Path: "socket_dir", Err: fmt.Errorf("socket_dir must be an absolute path")}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}

	durations := []struct {
		path  string
		value time.Duration
	}{
		{"client.timeout", c.Client.Timeout},
		{"agent.read_timeout", c.Agent.ReadTimeout},
		{"agent.fade_interval", c.Agent.FadeInterval},
		{"install.load_timeout", c.Install.LoadTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			return &ValidationError{Path: d.path, Err: fmt.Errorf("%s must not be negative", d.path)}
		}
	}

	names := []struct {
		path  string
		value string
	}{
		{"install.root", c.Install.Root},
		{"install.bundle_name", c.Install.BundleName},
		{"install.identifier", c.Install.Identifier},
		{"install.host_process", c.Install.HostProcess},
	}
	for _, n := range names {
		if strings.TrimSpace(n.value) == "" {
			return &ValidationError{Path: n.path, Err: fmt.Errorf("%s must not be empty", n.path)}
		}
	}
	if strings.ContainsRune(c.Install.BundleName, filepath.Separator) {
		return &ValidationError{Path: "install.bundle_name", Err: fmt.Errorf("install.bundle_name must be a single path element")}
	}
	if !filepath.IsAbs(c.Install.Root) {
		return &ValidationError{Path: "install.root", Err: fmt.Errorf("install.root must be an absolute path")}
	}
	return nil
}
