package inject

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrHostNotRunning is returned when no process has the host's name.
var ErrHostNotRunning = errors.New("host process is not running")

// Locator finds a running process by its command name.
type Locator interface {
	Find(name string) (int, error)
}

// ProcfsLocator scans a procfs tree for a process whose comm matches.
type ProcfsLocator struct {
	Root string
}

// Find returns the lowest pid whose comm is name.
func (l ProcfsLocator) Find(name string) (int, error) {
	root := l.Root
	if root == "" {
		root = "/proc"
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", root, err)
	}

	best := 0
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(root, e.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(comm)) != name {
			continue
		}
		if best == 0 || pid < best {
			best = pid
		}
	}
	if best == 0 {
		return 0, fmt.Errorf("%w: %s", ErrHostNotRunning, name)
	}
	return best, nil
}
