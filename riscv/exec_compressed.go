package riscv

// executeCompressed implements the RVC subset named in SPEC_FULL.md's
// domain stack: C.ADDI, C.LI, C.MV, C.J, C.BEQZ/C.BNEZ, C.LW/C.SW,
// C.LWSP/C.SWSP, C.JR/C.JALR, and C.EBREAK. Each handler expands the
// 16-bit encoding to the RV64I semantics it aliases, then advances PC
// by 2 (one compressed instruction) unless it branched.
func (h *Hart) executeCompressed(w uint16) error {
	quadrant := w & 0x3
	funct3 := (w >> 13) & 0x7
	pcBefore := h.Regs.PC
	branched := false

	switch {
	case quadrant == 0x0 && funct3 == 0x2: // C.LW
		rdp := crs(w, 2) + 8
		rs1p := crs(w, 7) + 8
		imm := cLwImm(w)
		addr := h.Regs.Get(rs1p) + imm
		v, err := readXU(h.Fabric, addr, 4, uint8(h.ID))
		if err != nil {
			return h.raiseTrap(excLoadAccessFault, addr)
		}
		h.Regs.Set(rdp, uint64(int64(int32(v))))

	case quadrant == 0x0 && funct3 == 0x6: // C.SW
		rs1p := crs(w, 7) + 8
		rs2p := crs(w, 2) + 8
		imm := cLwImm(w)
		addr := h.Regs.Get(rs1p) + imm
		h.Reservations.InvalidateAll()
		if err := writeXU(h.Fabric, addr, 4, h.Regs.Get(rs2p), uint8(h.ID)); err != nil {
			return h.raiseTrap(excStoreAccessFault, addr)
		}

	case quadrant == 0x1 && funct3 == 0x0: // C.ADDI (incl. C.NOP when rd=0)
		rd := int((w >> 7) & 0x1F)
		imm := cImm6(w)
		h.Regs.Set(rd, h.Regs.Get(rd)+uint64(imm))

	case quadrant == 0x1 && funct3 == 0x2: // C.LI
		rd := int((w >> 7) & 0x1F)
		imm := cImm6(w)
		h.Regs.Set(rd, uint64(imm))

	case quadrant == 0x1 && funct3 == 0x5: // C.J
		imm := cJImm(w)
		h.Regs.PC = uint64(int64(pcBefore) + imm)
		branched = true

	case quadrant == 0x1 && funct3 == 0x6: // C.BEQZ
		rs1p := crs(w, 7) + 8
		imm := cBImm(w)
		if h.Regs.Get(rs1p) == 0 {
			h.Regs.PC = uint64(int64(pcBefore) + imm)
			branched = true
		}

	case quadrant == 0x1 && funct3 == 0x7: // C.BNEZ
		rs1p := crs(w, 7) + 8
		imm := cBImm(w)
		if h.Regs.Get(rs1p) != 0 {
			h.Regs.PC = uint64(int64(pcBefore) + imm)
			branched = true
		}

	case quadrant == 0x2 && funct3 == 0x2: // C.LWSP
		rd := int((w >> 7) & 0x1F)
		imm := cLwspImm(w)
		addr := h.Regs.Get(2) + imm
		v, err := readXU(h.Fabric, addr, 4, uint8(h.ID))
		if err != nil {
			return h.raiseTrap(excLoadAccessFault, addr)
		}
		h.Regs.Set(rd, uint64(int64(int32(v))))

	case quadrant == 0x2 && funct3 == 0x6: // C.SWSP
		rs2 := int((w >> 2) & 0x1F)
		imm := cSwspImm(w)
		addr := h.Regs.Get(2) + imm
		h.Reservations.InvalidateAll()
		if err := writeXU(h.Fabric, addr, 4, h.Regs.Get(rs2), uint8(h.ID)); err != nil {
			return h.raiseTrap(excStoreAccessFault, addr)
		}

	case quadrant == 0x2 && funct3 == 0x4: // C.MV / C.ADD / C.JR / C.JALR / C.EBREAK
		rd := int((w >> 7) & 0x1F)
		rs2 := int((w >> 2) & 0x1F)
		bit12 := (w >> 12) & 1

		switch {
		case bit12 == 0 && rs2 == 0: // C.JR
			h.Regs.PC = h.Regs.Get(rd) &^ 1
			branched = true
		case bit12 == 0: // C.MV
			h.Regs.Set(rd, h.Regs.Get(rs2))
		case rd == 0 && rs2 == 0: // C.EBREAK
			return h.raiseTrap(excBreakpoint, pcBefore)
		case rs2 == 0: // C.JALR
			target := h.Regs.Get(rd) &^ 1
			h.Regs.Set(1, pcBefore+2)
			h.Regs.PC = target
			branched = true
		default: // C.ADD
			h.Regs.Set(rd, h.Regs.Get(rd)+h.Regs.Get(rs2))
		}

	default:
		return h.raiseTrap(excIllegalInstruction, uint64(w))
	}

	if !branched {
		h.Regs.PC = pcBefore + 2
	}
	return nil
}

func crs(w uint16, shift int) int {
	return int((w >> uint(shift)) & 0x7)
}

// cImm6 extracts C.ADDI/C.LI's 6-bit signed immediate (bits [12]|[6:2]).
func cImm6(w uint16) int64 {
	raw := ((w >> 12) & 1 << 5) | ((w >> 2) & 0x1F)
	return signExtend(uint32(raw), 6)
}

// cLwImm extracts C.LW/C.SW's zero-extended word offset.
func cLwImm(w uint16) uint64 {
	imm := ((w >> 5) & 1 << 6) | ((w >> 10) & 0x7 << 3) | ((w >> 6) & 1 << 2)
	return uint64(imm)
}

// cJImm extracts C.J's 11-bit signed jump offset.
func cJImm(w uint16) int64 {
	b := func(bit, pos uint16) uint16 { return ((w >> bit) & 1) << pos }
	raw := b(12, 11) | b(11, 4) | b(10, 9) | b(9, 8) | b(8, 10) | b(7, 6) | b(6, 7) | b(5, 3) | b(4, 2) | b(3, 1) | b(2, 5)
	return signExtend(uint32(raw), 11)
}

// cBImm extracts C.BEQZ/C.BNEZ's 8-bit signed branch offset.
func cBImm(w uint16) int64 {
	b := func(bit, pos uint16) uint16 { return ((w >> bit) & 1) << pos }
	raw := b(12, 8) | b(11, 4) | b(10, 3) | b(6, 7) | b(5, 6) | b(4, 2) | b(3, 1) | b(2, 5)
	return signExtend(uint32(raw), 9)
}

// cLwspImm extracts C.LWSP's zero-extended stack-relative word offset.
func cLwspImm(w uint16) uint64 {
	imm := ((w >> 2) & 0x3 << 6) | ((w >> 12) & 1 << 5) | ((w >> 4) & 0x7 << 2)
	return uint64(imm)
}

// cSwspImm extracts C.SWSP's zero-extended stack-relative word offset.
func cSwspImm(w uint16) uint64 {
	imm := ((w >> 7) & 0x3 << 6) | ((w >> 9) & 0xF << 2)
	return uint64(imm)
}
