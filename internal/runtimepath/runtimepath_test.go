package runtimepath

import (
	"errors"
	"strings"
	"testing"
)

func TestDir_UsesOverrideWhenSet(t *testing.T) {
	td := t.TempDir()
	t.Setenv("MSS_RUNTIME_DIR", td)

	if got := Dir(); got != td {
		t.Fatalf("Dir() = %q, want %q", got, td)
	}
}

func TestDir_DefaultsToTmp(t *testing.T) {
	t.Setenv("MSS_RUNTIME_DIR", "")

	if got := Dir(); got != DefaultDir {
		t.Fatalf("Dir() = %q, want %q", got, DefaultDir)
	}
}

func TestSocketPathIsPerUser(t *testing.T) {
	t.Setenv("MSS_RUNTIME_DIR", "/run/test")

	if got := SocketPath("alice"); got != "/run/test/mss_alice.socket" {
		t.Fatalf("SocketPath() = %q", got)
	}
	if SocketPath("alice") == SocketPath("bob") {
		t.Fatal("distinct users share a socket path")
	}
	if got := AgentLogPath("alice"); !strings.HasSuffix(got, "/mss-agent_alice.log") {
		t.Fatalf("AgentLogPath() = %q", got)
	}
}

func TestResolveUser(t *testing.T) {
	env := func(vals map[string]string) func(string) string {
		return func(k string) string { return vals[k] }
	}
	current := func(name string, err error) func() (string, error) {
		return func() (string, error) { return name, err }
	}

	tests := []struct {
		name    string
		euid    int
		env     map[string]string
		current func() (string, error)
		want    string
		wantErr bool
	}{
		{
			name:    "root under sudo resolves invoking user",
			euid:    0,
			env:     map[string]string{"SUDO_USER": "alice", "USER": "root"},
			current: current("root", nil),
			want:    "alice",
		},
		{
			name:    "plain root",
			euid:    0,
			env:     map[string]string{"USER": "root"},
			current: current("root", nil),
			want:    "root",
		},
		{
			name:    "unprivileged uses USER",
			euid:    501,
			env:     map[string]string{"USER": "bob", "SUDO_USER": "mallory"},
			current: current("ignored", nil),
			want:    "bob",
		},
		{
			name:    "falls back to account lookup",
			euid:    501,
			env:     map[string]string{},
			current: current("carol", nil),
			want:    "carol",
		},
		{
			name:    "lookup failure",
			euid:    501,
			env:     map[string]string{},
			current: current("", errors.New("no passwd entry")),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveUser(tt.euid, env(tt.env), tt.current)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("resolveUser() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveUser() error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("resolveUser() = %q, want %q", got, tt.want)
			}
		})
	}
}
