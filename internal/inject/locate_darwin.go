//go:build darwin

package inject

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SysctlLocator lists processes through kern.proc.all.
type SysctlLocator struct{}

// Find returns the lowest pid whose command name is name.
func (SysctlLocator) Find(name string) (int, error) {
	procs, err := unix.SysctlKinfoProcSlice("kern.proc.all")
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}
	best := 0
	for i := range procs {
		p := &procs[i].Proc
		if unix.ByteSliceToString(p.P_comm[:]) != name {
			continue
		}
		pid := int(p.P_pid)
		if pid > 0 && (best == 0 || pid < best) {
			best = pid
		}
	}
	if best == 0 {
		return 0, fmt.Errorf("%w: %s", ErrHostNotRunning, name)
	}
	return best, nil
}

// DefaultLocator returns the process lookup for this platform.
func DefaultLocator() Locator {
	return SysctlLocator{}
}
