package riscv

import "fmt"

// This file adapts *Hart to dmi.Target (dmi does not import riscv, to
// avoid a package cycle with the debug-transport layer; satisfied by
// structural typing instead).

// gprRegnoBase is the debug spec's register-number base for GPRs x0-x31
// (0x1000-0x101F); CSRs occupy regno 0x0000-0x0FFF directly.
const gprRegnoBase = 0x1000

// Halted reports whether the hart is currently halted.
func (h *Hart) Halted() bool { return h.halted }

// RequestHalt latches a halt, observed at the hart's next instruction
// boundary per spec.md §5.
func (h *Hart) RequestHalt() {
	h.halted = true
	h.Running = false
}

// Resume clears a latched halt and lets the hart run freely again.
func (h *Hart) Resume() {
	h.halted = false
	h.Running = true
}

// HaveReset reports whether the hart has been reset since the last
// AckReset, for dmstatus.anyhavereset/allhavereset.
func (h *Hart) HaveReset() bool { return h.haveReset }

// AckReset clears the reset-latch.
func (h *Hart) AckReset() { h.haveReset = false }

// Unavailable is always false: every hart modeled here is addressable.
func (h *Hart) Unavailable() bool { return false }

// ReadRegister implements the abstract-command register-access path's
// quick GPR/CSR read: regno in [0x1000,0x101F] selects a GPR, anything
// else is read as a CSR.
func (h *Hart) ReadRegister(regno uint32) (uint64, error) {
	if regno >= gprRegnoBase && regno <= gprRegnoBase+31 {
		return h.Regs.Get(int(regno - gprRegnoBase)), nil
	}
	if regno > 0xFFF {
		return 0, fmt.Errorf("riscv: register number 0x%x not addressable", regno)
	}
	return h.CSR.Read(uint16(regno)), nil
}

// WriteRegister is ReadRegister's write counterpart.
func (h *Hart) WriteRegister(regno uint32, value uint64) error {
	if regno >= gprRegnoBase && regno <= gprRegnoBase+31 {
		h.Regs.Set(int(regno-gprRegnoBase), value)
		return nil
	}
	if regno > 0xFFF {
		return fmt.Errorf("riscv: register number 0x%x not addressable", regno)
	}
	h.CSR.Write(uint16(regno), value)
	return nil
}

// ReadMemory implements the abstract-command memory-access path.
func (h *Hart) ReadMemory(addr uint64, size uint8) (uint64, error) {
	return readXU(h.Fabric, addr, size, uint8(h.ID))
}

// WriteMemory is ReadMemory's write counterpart.
func (h *Hart) WriteMemory(addr uint64, size uint8, value uint64) error {
	return writeXU(h.Fabric, addr, size, value, uint8(h.ID))
}

// RunProgramBuffer executes a sequence of 32-bit-encoded instructions
// staged by the debugger in progbuf, as if fetched in place; used by
// quick-access (type 1) and type-0's optional progbuf follow-up.
// Progbuf contents are always uncompressed per the debug spec, so each
// word is decoded directly rather than routed through Hart.Step's
// compressed/32-bit fetch discrimination.
func (h *Hart) RunProgramBuffer(words []uint32) error {
	for _, word := range words {
		decoded, err := Decode(h.Table, word)
		if err != nil {
			return err
		}
		if err := h.execute(decoded); err != nil {
			return err
		}
	}
	return nil
}
