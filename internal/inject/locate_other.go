//go:build !darwin

package inject

// DefaultLocator returns the process lookup for this platform.
func DefaultLocator() Locator {
	return ProcfsLocator{Root: "/proc"}
}
