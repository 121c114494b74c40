package riscv

import "fmt"

// execAtomic implements the A-extension subset described in
// SPEC_FULL.md: LR.W/D, SC.W/D, and the AMO read-modify-write family
// (SWAP/ADD/XOR/AND/OR/MIN/MAX/MINU/MAXU), each in 32- and 64-bit form
// selected by Funct3 bit 0 (0x2=word, 0x3=doubleword).
func (h *Hart) execAtomic(d *Decoded) error {
	is32 := d.Funct3 == 0x2
	size := uint8(8)
	if is32 {
		size = 4
	}
	addr := h.Regs.Get(d.Rs1)
	funct5 := d.Funct7 >> 2

	switch funct5 {
	case 0x02: // LR
		v, err := readXU(h.Fabric, addr, size, uint8(h.ID))
		if err != nil {
			return err
		}
		h.Reservations.Acquire(h.ID, addr)
		h.Regs.Set(d.Rd, signExtendLoad(v, is32))
		return nil

	case 0x03: // SC
		ok := h.Reservations.Check(h.ID, addr)
		if ok {
			if err := writeXU(h.Fabric, addr, size, h.Regs.Get(d.Rs2), uint8(h.ID)); err != nil {
				return err
			}
			h.Regs.Set(d.Rd, 0) // success
		} else {
			h.Regs.Set(d.Rd, 1) // failure
		}
		return nil
	}

	// Generic AMO<op>: read-modify-write, return the pre-op value in rd.
	old, err := readXU(h.Fabric, addr, size, uint8(h.ID))
	if err != nil {
		return err
	}
	oldSigned := signExtendLoad(old, is32)
	operand := h.Regs.Get(d.Rs2)

	var result uint64
	switch funct5 {
	case 0x00: // AMOADD
		result = oldSigned + operand
	case 0x01: // AMOSWAP
		result = operand
	case 0x04: // AMOXOR
		result = oldSigned ^ operand
	case 0x0C: // AMOAND
		result = oldSigned & operand
	case 0x08: // AMOOR
		result = oldSigned | operand
	case 0x10: // AMOMIN
		if int64(oldSigned) < int64(operand) {
			result = oldSigned
		} else {
			result = operand
		}
	case 0x14: // AMOMAX
		if int64(oldSigned) > int64(operand) {
			result = oldSigned
		} else {
			result = operand
		}
	case 0x18: // AMOMINU
		if oldSigned < operand {
			result = oldSigned
		} else {
			result = operand
		}
	case 0x1C: // AMOMAXU
		if oldSigned > operand {
			result = oldSigned
		} else {
			result = operand
		}
	default:
		return fmt.Errorf("unimplemented AMO funct5 0x%02X", funct5)
	}

	if is32 {
		result = uint64(int64(int32(result)))
	}
	if err := writeXU(h.Fabric, addr, size, result, uint8(h.ID)); err != nil {
		return err
	}
	h.Reservations.InvalidateAll()
	h.Regs.Set(d.Rd, oldSigned)
	return nil
}

func signExtendLoad(v uint64, is32 bool) uint64 {
	if is32 {
		return uint64(int64(int32(v)))
	}
	return v
}
