package armcore

import "fmt"

// ExceptionIndex identifies an ARM exception vector-table entry.
type ExceptionIndex int

const (
	ExcReset ExceptionIndex = iota
	ExcUndefined
	ExcSWI
	ExcPrefetchAbort
	ExcDataAbort
	_reservedVector
	ExcIRQ
	ExcFIQ
)

// ExcReturnMagic is the EXC_RETURN value placed in LR on exception
// entry; executing a branch to this value triggers unstacking, per
// spec.md §4.4 Exceptions (ARM).
const ExcReturnMagic uint32 = 0xFFFFFFF9

// VectorTableBase is the default location of the 8-entry, 4-byte-wide
// exception vector table consulted by RaiseException.
const VectorTableBase uint32 = 0x00000000

// RaiseException implements spec.md §4.4's Exceptions (ARM) stacking
// model verbatim: push {CPSR, return-address|Thumb-bit, LR, R12, R3,
// R2, R1, R0} to the current SP, load PC from the vector table entry
// 4*idx, set LR to ExcReturnMagic, and restore Thumb state from the
// LSB of the fetched vector word.
//
// This is the source's own (Cortex-M-style) exception convention as
// specified; it intentionally does not perform the classic A/R-profile
// banked-mode switch on exception entry (see SPEC_FULL.md §9 — the
// spec's §3 ProgramStatus banked-mode-switch invariant governs explicit
// MSR-driven mode changes, not the exception path, which spec.md §4.4
// defines independently).
func (vm *VM) RaiseException(idx ExceptionIndex) error {
	cpu := vm.CPU
	returnAddr := cpu.PC
	if cpu.CPSR.T {
		returnAddr |= 1
	}

	stack := []uint32{
		cpu.CPSR.ToUint32(),
		returnAddr,
		cpu.GetLR(),
		cpu.R[R12],
		cpu.R[R3],
		cpu.R[R2],
		cpu.R[R1],
		cpu.R[R0],
	}

	sp := cpu.GetSP()
	for _, word := range stack {
		sp -= 4
		if err := vm.Memory.WriteWord(sp, word); err != nil {
			return fmt.Errorf("exception entry: stacking failed: %w", err)
		}
	}
	if err := cpu.SetSPWithTrace(vm, sp, cpu.PC); err != nil {
		return err
	}

	cpu.SetLR(ExcReturnMagic)

	vectorAddr := VectorTableBase + uint32(idx)*4
	vectorWord, err := vm.Memory.ReadWord(vectorAddr)
	if err != nil {
		return fmt.Errorf("exception entry: vector fetch failed: %w", err)
	}
	cpu.CPSR.T = vectorWord&1 != 0
	cpu.Mode = thumbOrARM(cpu.CPSR.T)
	cpu.PC = vectorWord &^ 1

	return nil
}

// ReturnFromException implements the unstacking half of §4.4: pops the
// same 8 words pushed by RaiseException, in reverse order, restoring
// R0-R3, R12, LR, PC (with Thumb bit), and CPSR. Callers detect the
// EXC_RETURN condition (a branch target equal to ExcReturnMagic) and
// invoke this instead of performing an ordinary branch.
func (vm *VM) ReturnFromException() error {
	cpu := vm.CPU
	sp := cpu.GetSP()

	pop := func() (uint32, error) {
		v, err := vm.Memory.ReadWord(sp)
		sp += 4
		return v, err
	}

	r0, err := pop()
	if err != nil {
		return fmt.Errorf("exception return: unstacking failed: %w", err)
	}
	r1, err := pop()
	if err != nil {
		return err
	}
	r2, err := pop()
	if err != nil {
		return err
	}
	r3, err := pop()
	if err != nil {
		return err
	}
	r12, err := pop()
	if err != nil {
		return err
	}
	lr, err := pop()
	if err != nil {
		return err
	}
	retAddr, err := pop()
	if err != nil {
		return err
	}
	cpsrWord, err := pop()
	if err != nil {
		return err
	}

	cpu.R[R0], cpu.R[R1], cpu.R[R2], cpu.R[R3] = r0, r1, r2, r3
	cpu.R[R12] = r12
	cpu.SetLR(lr)
	cpu.CPSR.FromUint32(cpsrWord)
	cpu.CPSR.T = retAddr&1 != 0
	cpu.Mode = thumbOrARM(cpu.CPSR.T)
	cpu.PC = retAddr &^ 1

	return cpu.SetSPWithTrace(vm, sp, cpu.PC)
}

func thumbOrARM(t bool) InstructionMode {
	if t {
		return ModeThumb
	}
	return ModeARM32
}

// IsExceptionReturn reports whether target is the EXC_RETURN sentinel
// written to LR by RaiseException, used by BX-class handlers to decide
// between an ordinary interworking branch and unstacking.
func IsExceptionReturn(target uint32) bool {
	return target&0xFFFFFFF0 == 0xFFFFFFF0
}
