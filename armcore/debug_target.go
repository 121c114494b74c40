package armcore

import "fmt"

// Debug-register numbering for ReadRegister/WriteRegister: r0-r15 occupy
// 0x0000-0x000F, CPSR is a synthetic register at 0x0010. There is no CSR
// space on this ISA, unlike riscv's debug_target.go.
const (
	regnoCPSR = 0x0010
)

// Halted reports whether the VM is parked for debugger inspection. Both
// StateHalted and StateBreakpoint count as halted from the debug
// transport's point of view; StateRunning and StateError do not (a VM
// that errored out needs a reset, not a resume).
func (vm *VM) Halted() bool {
	return vm.State == StateHalted || vm.State == StateBreakpoint
}

// RequestHalt parks the VM at its current PC without altering register
// or memory state, mirroring riscv.Hart.RequestHalt.
func (vm *VM) RequestHalt() {
	vm.State = StateHalted
}

// Resume un-parks the VM so the next Run/Step call executes again.
func (vm *VM) Resume() {
	vm.State = StateRunning
}

// HaveReset and AckReset track whether this VM has been through Reset
// since the debugger last acknowledged it, matching dmstatus.havereset
// semantics on the riscv side (riscv.Hart.haveReset).
func (vm *VM) HaveReset() bool {
	return vm.haveReset
}

func (vm *VM) AckReset() {
	vm.haveReset = false
}

// Unavailable is always false: this VM has no notion of a hart that can
// be powered down independently of the process running it.
func (vm *VM) Unavailable() bool {
	return false
}

// ReadRegister and WriteRegister expose r0-r15 and CPSR through the
// debug-spec register-number convention dmi.Target expects.
func (vm *VM) ReadRegister(regno uint32) (uint64, error) {
	if regno == regnoCPSR {
		return uint64(vm.CPU.CPSR.ToUint32()), nil
	}
	if regno > 15 {
		return 0, fmt.Errorf("armcore: register number 0x%x out of range", regno)
	}
	return uint64(vm.CPU.GetRegister(int(regno))), nil
}

func (vm *VM) WriteRegister(regno uint32, value uint64) error {
	if regno == regnoCPSR {
		vm.CPU.CPSR.FromUint32(uint32(value))
		return nil
	}
	if regno > 15 {
		return fmt.Errorf("armcore: register number 0x%x out of range", regno)
	}
	vm.CPU.SetRegister(int(regno), uint32(value))
	return nil
}

// ReadMemory and WriteMemory adapt Memory's byte/halfword/word accessors
// to the uniform (addr, size) shape dmi.Target requires; size must be
// 1, 2, or 4.
func (vm *VM) ReadMemory(addr uint64, size uint8) (uint64, error) {
	switch size {
	case 1:
		v, err := vm.Memory.ReadByteAt(uint32(addr))
		return uint64(v), err
	case 2:
		v, err := vm.Memory.ReadHalfword(uint32(addr))
		return uint64(v), err
	case 4:
		v, err := vm.Memory.ReadWord(uint32(addr))
		return uint64(v), err
	default:
		return 0, fmt.Errorf("armcore: unsupported debug access size %d", size)
	}
}

func (vm *VM) WriteMemory(addr uint64, size uint8, value uint64) error {
	switch size {
	case 1:
		return vm.Memory.WriteByteAt(uint32(addr), byte(value))
	case 2:
		return vm.Memory.WriteHalfword(uint32(addr), uint16(value))
	case 4:
		return vm.Memory.WriteWord(uint32(addr), uint32(value))
	default:
		return fmt.Errorf("armcore: unsupported debug access size %d", size)
	}
}

// RunProgramBuffer executes a sequence of raw instruction words against
// the VM's current register/memory state, used by the Debug Module's
// abstract-command postexec and quick-access paths. Words are staged
// into a scratch region above the loaded program, executed one Step at a
// time, and the PC is restored afterward so program-buffer execution is
// invisible to the resumed program.
func (vm *VM) RunProgramBuffer(words []uint32) error {
	savedPC := vm.CPU.PC
	savedState := vm.State
	defer func() {
		vm.CPU.PC = savedPC
		vm.State = savedState
	}()

	for i, word := range words {
		addr := DebugScratchStart + uint32(i)*4
		if err := vm.Memory.WriteWord(addr, word); err != nil {
			return fmt.Errorf("armcore: staging program buffer word %d: %w", i, err)
		}
	}
	vm.CPU.PC = DebugScratchStart
	vm.State = StateRunning
	for i := 0; i < len(words); i++ {
		if err := vm.Step(); err != nil {
			return fmt.Errorf("armcore: program buffer word %d: %w", i, err)
		}
	}
	return nil
}
