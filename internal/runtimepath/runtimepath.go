package runtimepath

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

// DefaultDir is where per-user sockets and agent logs live. The agent runs
// inside a host process that does not share the client's environment, so
// both sides must agree on a fixed directory rather than XDG_RUNTIME_DIR.
const DefaultDir = "/tmp"

// Dir returns the runtime directory. MSS_RUNTIME_DIR overrides DefaultDir.
func Dir() string {
	if dir := os.Getenv("MSS_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return DefaultDir
}

// InvokingUser returns the name of the user the command is acting for. Under
// sudo that is SUDO_USER, not root.
func InvokingUser() (string, error) {
	return resolveUser(os.Geteuid(), os.Getenv, currentUsername)
}

func currentUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

func resolveUser(euid int, getenv func(string) string, current func() (string, error)) (string, error) {
	if euid == 0 {
		if name := getenv("SUDO_USER"); name != "" {
			return name, nil
		}
	}
	if name := getenv("USER"); name != "" && euid != 0 {
		return name, nil
	}
	name, err := current()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user: %w", err)
	}
	if name == "" {
		return "", fmt.Errorf("failed to resolve user: empty name")
	}
	return name, nil
}

// SocketPathIn returns the agent socket path for username inside dir.
func SocketPathIn(dir, username string) string {
	return filepath.Join(dir, fmt.Sprintf("mss_%s.socket", username))
}

// SocketPath returns the agent socket path for username.
func SocketPath(username string) string {
	return SocketPathIn(Dir(), username)
}

// AgentLogPath returns the default agent log file for username.
func AgentLogPath(username string) string {
	return filepath.Join(Dir(), fmt.Sprintf("mss-agent_%s.log", username))
}
