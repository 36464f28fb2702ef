//go:build darwin

package install

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"

	"github.com/1broseidon/mss/internal/bootstrap"
)

// csr_get_active_config bits.
const (
	csrAllowUnrestrictedFS = 1 << 1
	csrAllowTaskForPID     = 1 << 2
)

var (
	csrOnce            sync.Once
	csrGetActiveConfig func(config *uint32) int32
	csrErr             error
)

func loadCSR() error {
	csrOnce.Do(func() {
		lib, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			csrErr = fmt.Errorf("failed to load libSystem: %w", err)
			return
		}
		purego.RegisterLibFunc(&csrGetActiveConfig, lib, "csr_get_active_config")
	})
	return csrErr
}

type systemEnvironment struct{}

// DefaultEnvironment reads the running system.
func DefaultEnvironment() Environment {
	return systemEnvironment{}
}

func (systemEnvironment) Elevated() bool {
	return unix.Geteuid() == 0
}

func (systemEnvironment) Protections() (Protections, error) {
	if err := loadCSR(); err != nil {
		return Protections{}, err
	}
	var config uint32
	if rc := csrGetActiveConfig(&config); rc != 0 {
		return Protections{}, fmt.Errorf("csr_get_active_config returned %d", rc)
	}
	return Protections{
		Filesystem: config&csrAllowUnrestrictedFS != 0,
		Debugger:   config&csrAllowTaskForPID != 0,
	}, nil
}

func (systemEnvironment) BootArgs() (string, error) {
	args, err := unix.Sysctl("kern.bootargs")
	if err != nil {
		return "", fmt.Errorf("failed to read kern.bootargs: %w", err)
	}
	return args, nil
}

// Arch reports the hardware architecture, which under Rosetta differs from
// the one this binary was built for.
func (systemEnvironment) Arch() bootstrap.Arch {
	if v, err := unix.SysctlUint32("hw.optional.arm64"); err == nil && v == 1 {
		return bootstrap.ARM64
	}
	return bootstrap.AMD64
}
