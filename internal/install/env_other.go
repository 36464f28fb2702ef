//go:build !darwin

package install

import (
	"errors"
	"os"

	"github.com/1broseidon/mss/internal/bootstrap"
)

var errNotMacOS = errors.New("system integrity configuration is only available on macOS")

type systemEnvironment struct{}

// DefaultEnvironment reads the running system.
func DefaultEnvironment() Environment {
	return systemEnvironment{}
}

func (systemEnvironment) Elevated() bool {
	return os.Geteuid() == 0
}

func (systemEnvironment) Protections() (Protections, error) {
	return Protections{}, errNotMacOS
}

func (systemEnvironment) BootArgs() (string, error) {
	return "", errNotMacOS
}

func (systemEnvironment) Arch() bootstrap.Arch {
	return bootstrap.Native
}
