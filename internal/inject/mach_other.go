//go:build !darwin

package inject

import "fmt"

// DefaultOpener returns the task backend for this platform.
func DefaultOpener() (Opener, error) {
	return nil, ErrUnsupported
}

type noSymbols struct{}

func (noSymbols) Lookup(name string) (uint64, error) {
	return 0, fmt.Errorf("%w: cannot resolve %s", ErrUnsupported, name)
}

// DefaultSymbols returns the symbol resolver for this platform.
func DefaultSymbols() Symbols {
	return noSymbols{}
}
