package riscv

import (
	"fmt"
	"math/bits"
)

// execute runs one decoded 32-bit instruction and advances PC by 4
// unless the instruction itself redirected control flow (branches,
// jumps, traps).
func (h *Hart) execute(d *Decoded) error {
	pcBefore := h.Regs.PC
	branched := false

	switch d.Opcode {
	case OpLUI:
		h.Regs.Set(d.Rd, uint64(int64(int32(d.ImmU))))

	case OpAUIPC:
		h.Regs.Set(d.Rd, h.Regs.PC+uint64(int64(int32(d.ImmU))))

	case OpJAL:
		h.Regs.Set(d.Rd, h.Regs.PC+4)
		h.Regs.PC = uint64(int64(h.Regs.PC) + d.ImmJ)
		branched = true

	case OpJALR:
		target := uint64(int64(h.Regs.Get(d.Rs1)) + d.ImmI)
		target &^= 1
		h.Regs.Set(d.Rd, h.Regs.PC+4)
		h.Regs.PC = target
		branched = true

	case OpBranch:
		if h.branchTaken(d) {
			h.Regs.PC = uint64(int64(pcBefore) + d.ImmB)
			branched = true
		}

	case OpLoad:
		if err := h.execLoad(d); err != nil {
			return h.raiseTrap(excLoadAccessFault, h.Regs.Get(d.Rs1))
		}

	case OpStore:
		if err := h.execStore(d); err != nil {
			return h.raiseTrap(excStoreAccessFault, h.Regs.Get(d.Rs1))
		}

	case OpLoadFP: // FLW
		addr := uint64(int64(h.Regs.Get(d.Rs1)) + d.ImmI)
		v, err := readXU(h.Fabric, addr, 4, uint8(h.ID))
		if err != nil {
			return h.raiseTrap(excLoadAccessFault, addr)
		}
		h.FRegs.SetSingle(d.Rd, uint32(v))

	case OpStoreFP: // FSW
		addr := uint64(int64(h.Regs.Get(d.Rs1)) + d.ImmS)
		if err := writeXU(h.Fabric, addr, 4, uint64(h.FRegs.GetSingle(d.Rs2)), uint8(h.ID)); err != nil {
			return h.raiseTrap(excStoreAccessFault, addr)
		}

	case OpOpImm:
		h.execOpImm(d, false)
	case OpOpImm32:
		h.execOpImm(d, true)

	case OpOp:
		if d.Funct7 == 0x01 {
			h.execMulDiv(d, false)
		} else {
			h.execOp(d, false)
		}
	case OpOp32:
		if d.Funct7 == 0x01 {
			h.execMulDiv(d, true)
		} else {
			h.execOp(d, true)
		}

	case OpMiscMem:
		// FENCE/FENCE.I: single-hart in-order core, no-op.

	case OpAMO:
		if err := h.execAtomic(d); err != nil {
			return h.raiseTrap(excStoreAccessFault, h.Regs.Get(d.Rs1))
		}

	case OpSystem:
		return h.execSystem(d)

	case OpOpFP, OpFMADD, OpFMSUB, OpFNMSUB, OpFNMADD:
		if err := h.execFP(d); err != nil {
			return err
		}

	default:
		return h.raiseTrap(excIllegalInstruction, uint64(d.Raw))
	}

	if !branched {
		h.Regs.PC = pcBefore + 4
	}
	return nil
}

func (h *Hart) branchTaken(d *Decoded) bool {
	a, b := h.Regs.Get(d.Rs1), h.Regs.Get(d.Rs2)
	switch d.Funct3 {
	case 0x0: // BEQ
		return a == b
	case 0x1: // BNE
		return a != b
	case 0x4: // BLT
		return int64(a) < int64(b)
	case 0x5: // BGE
		return int64(a) >= int64(b)
	case 0x6: // BLTU
		return a < b
	case 0x7: // BGEU
		return a >= b
	}
	return false
}

func (h *Hart) execLoad(d *Decoded) error {
	addr := uint64(int64(h.Regs.Get(d.Rs1)) + d.ImmI)
	switch d.Funct3 {
	case 0x0: // LB
		v, err := readXU(h.Fabric, addr, 1, uint8(h.ID))
		if err != nil {
			return err
		}
		h.Regs.Set(d.Rd, uint64(int64(int8(v))))
	case 0x1: // LH
		v, err := readXU(h.Fabric, addr, 2, uint8(h.ID))
		if err != nil {
			return err
		}
		h.Regs.Set(d.Rd, uint64(int64(int16(v))))
	case 0x2: // LW
		v, err := readXU(h.Fabric, addr, 4, uint8(h.ID))
		if err != nil {
			return err
		}
		h.Regs.Set(d.Rd, uint64(int64(int32(v))))
	case 0x3: // LD
		v, err := readXU(h.Fabric, addr, 8, uint8(h.ID))
		if err != nil {
			return err
		}
		h.Regs.Set(d.Rd, v)
	case 0x4: // LBU
		v, err := readXU(h.Fabric, addr, 1, uint8(h.ID))
		if err != nil {
			return err
		}
		h.Regs.Set(d.Rd, v)
	case 0x5: // LHU
		v, err := readXU(h.Fabric, addr, 2, uint8(h.ID))
		if err != nil {
			return err
		}
		h.Regs.Set(d.Rd, v)
	case 0x6: // LWU
		v, err := readXU(h.Fabric, addr, 4, uint8(h.ID))
		if err != nil {
			return err
		}
		h.Regs.Set(d.Rd, v)
	default:
		return fmt.Errorf("unknown load funct3 %d", d.Funct3)
	}
	return nil
}

func (h *Hart) execStore(d *Decoded) error {
	addr := uint64(int64(h.Regs.Get(d.Rs1)) + d.ImmS)
	value := h.Regs.Get(d.Rs2)
	h.Reservations.InvalidateAll()
	switch d.Funct3 {
	case 0x0:
		return writeXU(h.Fabric, addr, 1, value, uint8(h.ID))
	case 0x1:
		return writeXU(h.Fabric, addr, 2, value, uint8(h.ID))
	case 0x2:
		return writeXU(h.Fabric, addr, 4, value, uint8(h.ID))
	case 0x3:
		return writeXU(h.Fabric, addr, 8, value, uint8(h.ID))
	}
	return fmt.Errorf("unknown store funct3 %d", d.Funct3)
}

func (h *Hart) execOpImm(d *Decoded, is32 bool) {
	a := h.Regs.Get(d.Rs1)
	imm := uint64(d.ImmI)
	var result uint64

	shamtMask := uint64(0x3F)
	if is32 {
		shamtMask = 0x1F
	}
	shamt := imm & shamtMask

	switch d.Funct3 {
	case 0x0: // ADDI/ADDIW
		result = a + imm
	case 0x1: // SLLI/SLLIW
		result = a << shamt
	case 0x2: // SLTI
		result = boolToU64(int64(a) < int64(imm))
	case 0x3: // SLTIU
		result = boolToU64(a < imm)
	case 0x4: // XORI
		result = a ^ imm
	case 0x5: // SRLI/SRAI
		if d.Funct7&0x20 != 0 {
			if is32 {
				result = uint64(int64(int32(a) >> shamt))
			} else {
				result = uint64(int64(a) >> shamt)
			}
		} else {
			if is32 {
				result = uint64(uint32(a) >> shamt)
			} else {
				result = a >> shamt
			}
		}
	case 0x6: // ORI
		result = a | imm
	case 0x7: // ANDI
		result = a & imm
	}

	if is32 {
		result = uint64(int64(int32(result)))
	}
	h.Regs.Set(d.Rd, result)
}

func (h *Hart) execOp(d *Decoded, is32 bool) {
	a, b := h.Regs.Get(d.Rs1), h.Regs.Get(d.Rs2)
	if is32 {
		a, b = uint64(int32(a)), uint64(int32(b))
	}
	var result uint64

	switch {
	case d.Funct3 == 0x0 && d.Funct7 == 0x00: // ADD/ADDW
		result = a + b
	case d.Funct3 == 0x0 && d.Funct7 == 0x20: // SUB/SUBW
		result = a - b
	case d.Funct3 == 0x1: // SLL/SLLW
		mask := uint64(0x3F)
		if is32 {
			mask = 0x1F
		}
		result = a << (b & mask)
	case d.Funct3 == 0x2: // SLT
		result = boolToU64(int64(h.Regs.Get(d.Rs1)) < int64(h.Regs.Get(d.Rs2)))
	case d.Funct3 == 0x3: // SLTU
		result = boolToU64(h.Regs.Get(d.Rs1) < h.Regs.Get(d.Rs2))
	case d.Funct3 == 0x4: // XOR
		result = a ^ b
	case d.Funct3 == 0x5 && d.Funct7 == 0x00: // SRL/SRLW
		mask := uint64(0x3F)
		if is32 {
			mask = 0x1F
			result = uint64(uint32(a) >> (b & mask))
		} else {
			result = a >> (b & mask)
		}
	case d.Funct3 == 0x5 && d.Funct7 == 0x20: // SRA/SRAW
		mask := uint64(0x3F)
		if is32 {
			mask = 0x1F
			result = uint64(int64(int32(a) >> (b & mask)))
		} else {
			result = uint64(int64(a) >> (b & mask))
		}
	case d.Funct3 == 0x6: // OR
		result = a | b
	case d.Funct3 == 0x7: // AND
		result = a & b
	}

	if is32 {
		result = uint64(int64(int32(result)))
	}
	h.Regs.Set(d.Rd, result)
}

// execMulDiv implements the M extension (MUL/MULH/MULHSU/MULHU/DIV/
// DIVU/REM/REMU and their *W 32-bit forms), per SPEC_FULL.md's domain
// stack.
func (h *Hart) execMulDiv(d *Decoded, is32 bool) {
	a, b := h.Regs.Get(d.Rs1), h.Regs.Get(d.Rs2)
	var result uint64

	switch d.Funct3 {
	case 0x0: // MUL/MULW
		if is32 {
			result = uint64(int64(int32(a) * int32(b)))
		} else {
			result = a * b
		}
	case 0x1: // MULH (signed x signed, high 64 bits)
		result = mulhSigned(int64(a), int64(b))
	case 0x2: // MULHSU (signed x unsigned)
		result = mulhSU(int64(a), b)
	case 0x3: // MULHU
		hi, _ := bits.Mul64(a, b)
		result = hi
	case 0x4: // DIV/DIVW
		result = divSigned(a, b, is32)
	case 0x5: // DIVU/DIVUW
		result = divUnsigned(a, b, is32)
	case 0x6: // REM/REMW
		result = remSigned(a, b, is32)
	case 0x7: // REMU/REMUW
		result = remUnsigned(a, b, is32)
	}

	if is32 {
		result = uint64(int64(int32(result)))
	}
	h.Regs.Set(d.Rd, result)
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func int64Abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// negate128 returns the two's-complement negation of the 128-bit value
// (hi:lo).
func negate128(hi, lo uint64) (uint64, uint64) {
	lo2, carry := bits.Add64(^lo, 1, 0)
	hi2, _ := bits.Add64(^hi, 0, carry)
	return hi2, lo2
}

// mulhSigned computes the high 64 bits of the full 128-bit signed
// product a*b.
func mulhSigned(a, b int64) uint64 {
	negA, negB := a < 0, b < 0
	ua, ub := uint64(int64Abs(a)), uint64(int64Abs(b))
	hi, lo := bits.Mul64(ua, ub)
	if negA != negB {
		hi, _ = negate128(hi, lo)
	}
	return hi
}

// mulhSU computes the high 64 bits of the full 128-bit product of
// signed a and unsigned b.
func mulhSU(a int64, b uint64) uint64 {
	if a >= 0 {
		hi, _ := bits.Mul64(uint64(a), b)
		return hi
	}
	hi, lo := bits.Mul64(uint64(-a), b)
	hi, _ = negate128(hi, lo)
	return hi
}

func divSigned(a, b uint64, is32 bool) uint64 {
	var sa, sb int64
	if is32 {
		sa, sb = int64(int32(a)), int64(int32(b))
	} else {
		sa, sb = int64(a), int64(b)
	}
	if sb == 0 {
		return ^uint64(0) // all-ones per RISC-V divide-by-zero convention
	}
	if sa == -1<<63 && sb == -1 {
		return uint64(sa) // overflow case: result is the dividend
	}
	return uint64(sa / sb)
}

func divUnsigned(a, b uint64, is32 bool) uint64 {
	if is32 {
		a, b = uint64(uint32(a)), uint64(uint32(b))
	}
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

func remSigned(a, b uint64, is32 bool) uint64 {
	var sa, sb int64
	if is32 {
		sa, sb = int64(int32(a)), int64(int32(b))
	} else {
		sa, sb = int64(a), int64(b)
	}
	if sb == 0 {
		return uint64(sa)
	}
	if sa == -1<<63 && sb == -1 {
		return 0
	}
	return uint64(sa % sb)
}

func remUnsigned(a, b uint64, is32 bool) uint64 {
	if is32 {
		a, b = uint64(uint32(a)), uint64(uint32(b))
	}
	if b == 0 {
		return a
	}
	return a % b
}
