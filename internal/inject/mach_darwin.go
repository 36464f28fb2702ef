//go:build darwin

package inject

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/1broseidon/mss/internal/bootstrap"
)

const libSystemPath = "/usr/lib/libSystem.B.dylib"

const vmFlagsAnywhere = 0x1

// Thread state flavors and their sizes in 32-bit words.
const (
	x86ThreadState64      = 4
	x86ThreadState64Count = 42
	armThreadState64      = 6
	armThreadState64Count = 68
)

type mach struct {
	lib uintptr

	taskSelfTrap        func() uint32
	taskForPid          func(self uint32, pid int32, task *uint32) int32
	vmAllocate          func(task uint32, addr *uint64, size uint64, flags int32) int32
	vmDeallocate        func(task uint32, addr uint64, size uint64) int32
	vmWrite             func(task uint32, addr uint64, data *byte, count uint32) int32
	vmReadOverwrite     func(task uint32, addr uint64, size uint64, data *byte, outSize *uint64) int32
	vmProtect           func(task uint32, addr uint64, size uint64, setMax int32, prot int32) int32
	threadCreateRunning func(task uint32, flavor int32, state *uint64, count uint32, thread *uint32) int32
	threadTerminate     func(thread uint32) int32
	portDeallocate      func(self uint32, name uint32) int32
}

var (
	machOnce sync.Once
	machLib  *mach
	machErr  error
)

func loadMach() (*mach, error) {
	machOnce.Do(func() {
		lib, err := purego.Dlopen(libSystemPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			machErr = fmt.Errorf("failed to load libSystem: %w", err)
			return
		}
		m := &mach{lib: lib}
		purego.RegisterLibFunc(&m.taskSelfTrap, lib, "task_self_trap")
		purego.RegisterLibFunc(&m.taskForPid, lib, "task_for_pid")
		purego.RegisterLibFunc(&m.vmAllocate, lib, "mach_vm_allocate")
		purego.RegisterLibFunc(&m.vmDeallocate, lib, "mach_vm_deallocate")
		purego.RegisterLibFunc(&m.vmWrite, lib, "mach_vm_write")
		purego.RegisterLibFunc(&m.vmReadOverwrite, lib, "mach_vm_read_overwrite")
		purego.RegisterLibFunc(&m.vmProtect, lib, "mach_vm_protect")
		purego.RegisterLibFunc(&m.threadCreateRunning, lib, "thread_create_running")
		purego.RegisterLibFunc(&m.threadTerminate, lib, "thread_terminate")
		purego.RegisterLibFunc(&m.portDeallocate, lib, "mach_port_deallocate")
		machLib = m
	})
	return machLib, machErr
}

func kern(call string, kr int32) error {
	if kr != 0 {
		return fmt.Errorf("%s failed: kern_return %d", call, kr)
	}
	return nil
}

// MachOpener opens tasks with task_for_pid.
type MachOpener struct{}

// Open returns the task port for pid. It needs root and relaxed debugger
// protection.
func (MachOpener) Open(pid int) (Task, error) {
	m, err := loadMach()
	if err != nil {
		return nil, err
	}
	self := m.taskSelfTrap()
	var port uint32
	if err := kern("task_for_pid", m.taskForPid(self, int32(pid), &port)); err != nil {
		return nil, err
	}
	return &machTask{m: m, self: self, port: port}, nil
}

type machTask struct {
	m    *mach
	self uint32
	port uint32
}

func (t *machTask) Allocate(size uint64) (uint64, error) {
	var addr uint64
	if err := kern("mach_vm_allocate", t.m.vmAllocate(t.port, &addr, size, vmFlagsAnywhere)); err != nil {
		return 0, err
	}
	return addr, nil
}

func (t *machTask) Deallocate(addr, size uint64) error {
	return kern("mach_vm_deallocate", t.m.vmDeallocate(t.port, addr, size))
}

func (t *machTask) Write(addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return kern("mach_vm_write", t.m.vmWrite(t.port, addr, &data[0], uint32(len(data))))
}

func (t *machTask) Read(addr uint64, n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	var got uint64
	if err := kern("mach_vm_read_overwrite", t.m.vmReadOverwrite(t.port, addr, uint64(n), &buf[0], &got)); err != nil {
		return nil, err
	}
	return buf[:got], nil
}

func (t *machTask) Protect(addr, size uint64, prot Protection) error {
	return kern("mach_vm_protect", t.m.vmProtect(t.port, addr, size, 0, int32(prot)))
}

func (t *machTask) CreateThread(arch bootstrap.Arch, pc, sp uint64) (uint64, error) {
	var (
		state  [34]uint64
		flavor int32
		count  uint32
	)
	switch arch {
	case bootstrap.AMD64:
		state[7] = sp  // rsp
		state[6] = sp  // rbp
		state[16] = pc // rip
		flavor, count = x86ThreadState64, x86ThreadState64Count
	case bootstrap.ARM64:
		state[31] = sp // sp
		state[32] = pc // pc
		flavor, count = armThreadState64, armThreadState64Count
	default:
		return 0, fmt.Errorf("%w: %q", bootstrap.ErrUnsupportedArch, arch)
	}

	var thread uint32
	if err := kern("thread_create_running", t.m.threadCreateRunning(t.port, flavor, &state[0], count, &thread)); err != nil {
		return 0, err
	}
	return uint64(thread), nil
}

func (t *machTask) TerminateThread(thread uint64) error {
	return kern("thread_terminate", t.m.threadTerminate(uint32(thread)))
}

func (t *machTask) Close() error {
	return kern("mach_port_deallocate", t.m.portDeallocate(t.self, t.port))
}

// DlsymSymbols resolves symbols in this process. libSystem lives in the
// shared cache, so its addresses are the same in every process of a boot.
type DlsymSymbols struct{}

func (DlsymSymbols) Lookup(name string) (uint64, error) {
	m, err := loadMach()
	if err != nil {
		return 0, err
	}
	addr, err := purego.Dlsym(m.lib, name)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	return uint64(addr), nil
}

// DefaultOpener returns the task backend for this platform.
func DefaultOpener() (Opener, error) {
	return MachOpener{}, nil
}

// DefaultSymbols returns the symbol resolver for this platform.
func DefaultSymbols() Symbols {
	return DlsymSymbols{}
}
