// Package dmi implements the RISC-V external-debug Debug Module: the
// DMI register file, the two-state request FSM that backs it, and the
// five-state abstract-command FSM that drives register/memory access on
// a selected hart, per spec.md §4.8.
package dmi

// Target is the per-hart surface the Debug Module drives. Both ISA
// cores in this repository (armcore.VM, riscv.Hart) can be adapted to
// this interface; the DMI layer itself is ISA-agnostic, matching
// spec.md §4.8's "core debug port" wording.
type Target interface {
	// Halted reports whether the hart is currently halted (not fetching).
	Halted() bool
	// RequestHalt latches a halt request, observed at the hart's next
	// instruction boundary (spec.md §5's suspension-point rule).
	RequestHalt()
	// Resume clears any pending halt and lets the hart run freely.
	Resume()
	// Step single-steps one instruction and halts again immediately.
	Step() error
	// HaveReset reports whether the hart has been reset since the last
	// acknowledgement, for dmstatus.allhavereset/anyhavereset.
	HaveReset() bool
	// AckReset clears the HaveReset latch.
	AckReset()
	// Unavailable reports whether the hart cannot currently be debugged
	// (e.g. powered down); always false for the harts this repo models,
	// kept so dmstatus.anyunavail/allunavail have a real source.
	Unavailable() bool

	// ReadRegister/WriteRegister implement the "register access" abstract
	// command's quick GPR/CSR path. regno follows the debug spec's
	// numbering: 0x1000-0x101F are GPRs x0-x31, 0x0000-0x0FFF are CSRs.
	ReadRegister(regno uint32) (uint64, error)
	WriteRegister(regno uint32, value uint64) error

	// ReadMemory/WriteMemory implement the "memory access" abstract
	// command, sized in bytes (1, 2, 4, or 8).
	ReadMemory(addr uint64, size uint8) (uint64, error)
	WriteMemory(addr uint64, size uint8, value uint64) error

	// RunProgramBuffer executes the instructions currently staged in the
	// shared progbuf as if fetched in place, for "quick access" (type 1)
	// and the optional progbuf-follow-up of type 0.
	RunProgramBuffer(words []uint32) error
}
