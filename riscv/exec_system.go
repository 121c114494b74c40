package riscv

// execSystem implements the SYSTEM opcode: ECALL, EBREAK, MRET, and the
// six CSR instructions (CSRRW/S/C and their immediate forms).
//
// SPEC_FULL.md §9 resolves the Open Question of whether EBREAK and the
// MSIP software interrupt share one "software interrupt" source: they
// do not. EBREAK always raises the synchronous excBreakpoint exception
// through raiseTrap; mip.MSIP delivery is handled independently by
// CheckInterrupts. They are never conflated here.
func (h *Hart) execSystem(d *Decoded) error {
	if d.Funct3 == 0 {
		switch d.ImmI {
		case 0: // ECALL
			return h.raiseTrap(excEnvCallMMode, 0)
		case 1: // EBREAK
			return h.raiseTrap(excBreakpoint, h.Regs.PC)
		case 0x302: // MRET
			h.mret()
			return nil
		default:
			// WFI and other privileged no-ops.
			h.Regs.PC += 4
			return nil
		}
	}

	addr := uint16(d.ImmI) & 0xFFF
	var operand uint64
	var suppressWrite bool

	switch d.Funct3 {
	case 0x1, 0x2, 0x3: // CSRRW, CSRRS, CSRRC (register operand)
		operand = h.Regs.Get(d.Rs1)
		suppressWrite = d.Funct3 != 0x1 && d.Rs1 == 0
	case 0x5, 0x6, 0x7: // CSRRWI, CSRRSI, CSRRCI (5-bit immediate operand)
		operand = uint64(d.Rs1) // rs1 field doubles as the zimm operand
		suppressWrite = d.Funct3 != 0x5 && d.Rs1 == 0
	}

	var op RMWOp
	switch d.Funct3 {
	case 0x1, 0x5:
		op = RMWWrite
	case 0x2, 0x6:
		op = RMWSet
	case 0x3, 0x7:
		op = RMWClear
	}

	old, err := h.CSR.ReadModifyWrite(addr, op, operand, suppressWrite)
	if err != nil {
		return err
	}
	h.Regs.Set(d.Rd, old)
	h.Regs.PC += 4
	return nil
}
