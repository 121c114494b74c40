package armcore

import "fmt"

// CPU represents the ARMv7 processor state (ARM + Thumb-2 mixed mode).
type CPU struct {
	// General purpose registers R0-R14 (current mode's view; banked
	// registers for FIQ/IRQ/SVC/ABT/UND/SYS live in Banks, see banked.go)
	R [15]uint32

	// Program Counter (R15)
	PC uint32

	// Current Program Status Register
	CPSR CPSR

	// Banked register sets, one per privileged mode, plus a banked SPSR
	// per mode (spec.md §3 ProgramStatus: "writes to M[4:0] ... swap
	// banked SP/LR/SPSR").
	Banks Banks

	// IT-block state (Thumb-2 If-Then predication), spec.md §3/§4.4/§4.5.
	IT ITState

	// InstructionMode mirrors CPSR.T as a first-class field per spec.md
	// §9's redesign note, read by the fetch stage to choose ARM vs
	// Thumb decode without recomputing it from CPSR every time.
	Mode InstructionMode

	// Cycle counter for statistics
	Cycles uint64
}

// InstructionMode selects which decoder the fetch stage uses.
type InstructionMode int

const (
	ModeARM32 InstructionMode = iota
	ModeThumb
)

// CPSR represents the Current Program Status Register.
//
// spec.md §3 ProgramStatus: a 32-bit record with bit-fields N, Z, C, V,
// Q, J, GE[3:0], E, A, I, F, T, M[4:0]. The four condition flags existed
// in the teacher's ARM2-only CPSR; the remaining fields are added here
// to support ARMv7's Thumb state bit, banked-mode selector, and
// interrupt/abort masks.
type CPSR struct {
	N bool // Negative flag (bit 31 of result)
	Z bool // Zero flag (result == 0)
	C bool // Carry flag (unsigned overflow for arithmetic, last bit shifted out for shifts)
	V bool // Overflow flag (signed overflow)
	Q bool // Sticky saturation flag
	J bool // Jazelle state bit (decoded but not executed; no Jazelle support)
	GE [4]bool // SIMD greater-than-or-equal flags (bits 19:16)
	E bool // Endianness bit (1 = big-endian data accesses)
	A bool // Imprecise-abort mask
	I bool // IRQ mask
	F bool // FIQ mask
	T bool // Thumb state bit
	M Mode // Current processor mode (bits 4:0)
}

// Mode is the 5-bit CPSR.M processor-mode field.
type Mode uint8

const (
	ModeUser       Mode = 0b10000
	ModeFIQ        Mode = 0b10001
	ModeIRQ        Mode = 0b10010
	ModeSupervisor Mode = 0b10011
	ModeAbort      Mode = 0b10111
	ModeUndefined  Mode = 0b11011
	ModeSystem     Mode = 0b11111
)

func (m Mode) String() string {
	switch m {
	case ModeUser:
		return "usr"
	case ModeFIQ:
		return "fiq"
	case ModeIRQ:
		return "irq"
	case ModeSupervisor:
		return "svc"
	case ModeAbort:
		return "abt"
	case ModeUndefined:
		return "und"
	case ModeSystem:
		return "sys"
	default:
		return "unknown"
	}
}

// ToUint32 converts CPSR to its 32-bit wire representation.
// Layout: N(31) Z(30) C(29) V(28) Q(27) J(24) GE(19:16) E(9) A(8) I(7)
// F(6) T(5) M(4:0).
func (c *CPSR) ToUint32() uint32 {
	var result uint32
	if c.N {
		result |= 1 << 31
	}
	if c.Z {
		result |= 1 << 30
	}
	if c.C {
		result |= 1 << 29
	}
	if c.V {
		result |= 1 << 28
	}
	if c.Q {
		result |= 1 << 27
	}
	if c.J {
		result |= 1 << 24
	}
	for i, set := range c.GE {
		if set {
			result |= 1 << (16 + i)
		}
	}
	if c.E {
		result |= 1 << 9
	}
	if c.A {
		result |= 1 << 8
	}
	if c.I {
		result |= 1 << 7
	}
	if c.F {
		result |= 1 << 6
	}
	if c.T {
		result |= 1 << 5
	}
	result |= uint32(c.M) & 0x1F
	return result
}

// FromUint32 sets every CPSR field from its 32-bit wire representation.
func (c *CPSR) FromUint32(value uint32) {
	c.N = (value & (1 << 31)) != 0
	c.Z = (value & (1 << 30)) != 0
	c.C = (value & (1 << 29)) != 0
	c.V = (value & (1 << 28)) != 0
	c.Q = (value & (1 << 27)) != 0
	c.J = (value & (1 << 24)) != 0
	for i := range c.GE {
		c.GE[i] = (value & (1 << (16 + i))) != 0
	}
	c.E = (value & (1 << 9)) != 0
	c.A = (value & (1 << 8)) != 0
	c.I = (value & (1 << 7)) != 0
	c.F = (value & (1 << 6)) != 0
	c.T = (value & (1 << 5)) != 0
	c.M = Mode(value & 0x1F)
}

// Register aliases for convenience
const (
	R0  = 0
	R1  = 1
	R2  = 2
	R3  = 3
	R4  = 4
	R5  = 5
	R6  = 6
	R7  = 7
	R8  = 8
	R9  = 9
	R10 = 10
	R11 = 11
	R12 = 12
	SP  = 13 // Stack Pointer
	LR  = 14 // Link Register
	// PC is stored separately as a field
)

// NewCPU creates and initializes a new CPU instance, reset into System
// mode / ARM state with interrupts masked, matching a cold-reset ARMv7
// core before the boot code lowers I/F or switches to Thumb.
func NewCPU() *CPU {
	c := &CPU{}
	c.Reset()
	return c
}

// Reset resets the CPU to initial state
func (c *CPU) Reset() {
	for i := range c.R {
		c.R[i] = 0
	}
	c.PC = 0
	c.CPSR = CPSR{M: ModeSystem, I: true, F: true}
	c.Banks = NewBanks()
	c.IT = ITState{}
	c.Mode = ModeARM32
	c.Cycles = 0
}

// GetSP returns the stack pointer value
func (c *CPU) GetSP() uint32 {
	return c.R[SP]
}

// SetSP sets the stack pointer value
func (c *CPU) SetSP(value uint32) {
	c.R[SP] = value
}

// SetSPWithTrace sets the stack pointer value and records it for stack
// tracing. It returns an error if stack-overflow guarding is enabled and
// value has moved SP below the configured stack guard boundary.
func (c *CPU) SetSPWithTrace(vm *VM, value uint32, pc uint32) error {
	oldSP := c.R[SP]
	c.R[SP] = value

	if vm.StackTrace != nil {
		vm.StackTrace.RecordSPMove(vm.CPU.Cycles, pc, oldSP, value)
		if vm.StackTrace.HaltOnOverflow && vm.StackTrace.checkOverflow(value) {
			return fmt.Errorf("stack guard: SP=0x%08X moved below stack top 0x%08X", value, vm.StackTrace.StackTop)
		}
	}
	return nil
}

// GetLR returns the link register value
func (c *CPU) GetLR() uint32 {
	return c.R[LR]
}

// SetLR sets the link register value
func (c *CPU) SetLR(value uint32) {
	c.R[LR] = value
}

// GetRegister returns the value of a register (R0-R14 or PC). When
// reading R15 (PC), returns the pipelined value: PC+8 in ARM state
// (two 4-byte instructions ahead), PC+4 in Thumb state (two 2-byte
// instructions ahead), per spec.md §3 ProgramStatus fetch-width rules.
func (c *CPU) GetRegister(reg int) uint32 {
	if reg == 15 {
		if c.CPSR.T {
			return c.PC + 4
		}
		return c.PC + 8
	}
	if reg < 0 || reg > 14 {
		return 0
	}
	return c.R[reg]
}

// SetRegister sets the value of a register (R0-R14 or PC)
func (c *CPU) SetRegister(reg int, value uint32) {
	if reg == 15 {
		c.PC = value
	} else if reg >= 0 && reg <= 14 {
		c.R[reg] = value
	}
}

// IncrementPC increments the program counter by 4 (one instruction)
func (c *CPU) IncrementPC() {
	c.PC += 4
}

// IncrementPCBy advances the program counter by n bytes, used by Thumb
// fetch (2 bytes for a 16-bit instruction, 4 for a 32-bit Thumb-2
// instruction) where a fixed 4-byte increment does not apply.
func (c *CPU) IncrementPCBy(n uint32) {
	c.PC += n
}

// Branch sets the program counter to a new address
func (c *CPU) Branch(address uint32) {
	c.PC = address
}

// BranchWithLink saves the return address in LR and branches
func (c *CPU) BranchWithLink(address uint32) {
	c.SetLR(c.PC + 4) // Save return address
	c.PC = address
}

// IncrementCycles increments the cycle counter
func (c *CPU) IncrementCycles(cycles uint64) {
	c.Cycles += cycles
}

// getRegisterName maps a register index (0-15) to its assembler name,
// used by RegisterTrace entries.
func getRegisterName(reg int) string {
	switch reg {
	case SP:
		return "SP"
	case LR:
		return "LR"
	case 15:
		return "PC"
	default:
		return fmt.Sprintf("R%d", reg)
	}
}
