package riscv

import (
	"fmt"
	"math"
)

// execFP implements the F-extension subset named in SPEC_FULL.md's
// domain stack: FADD.S/FSUB.S/FMUL.S/FDIV.S, FMV.X.W/FMV.W.X,
// FCVT.W.S/FCVT.S.W, and FMADD.S (the single fused op exercising the
// OP-FP-adjacent FMADD/FMSUB/FNMSUB/FNMADD opcode family). Results use
// Go's native float32 arithmetic rather than a software IEEE-754
// engine with explicit rounding-mode and exception-flag tracking — this
// core reports the IEEE *result* faithfully but not the fflags sticky
// exception bits, matching the float semantics scope spec.md already
// excludes ("no accuracy beyond IEEE result").
func (h *Hart) execFP(d *Decoded) error {
	switch d.Opcode {
	case OpFMADD:
		a := math.Float32frombits(h.FRegs.GetSingle(d.Rs1))
		b := math.Float32frombits(h.FRegs.GetSingle(d.Rs2))
		c := math.Float32frombits(h.FRegs.GetSingle(d.Rs3))
		h.FRegs.SetSingle(d.Rd, math.Float32bits(a*b+c))
		return nil
	case OpFMSUB:
		a := math.Float32frombits(h.FRegs.GetSingle(d.Rs1))
		b := math.Float32frombits(h.FRegs.GetSingle(d.Rs2))
		c := math.Float32frombits(h.FRegs.GetSingle(d.Rs3))
		h.FRegs.SetSingle(d.Rd, math.Float32bits(a*b-c))
		return nil
	case OpFNMSUB:
		a := math.Float32frombits(h.FRegs.GetSingle(d.Rs1))
		b := math.Float32frombits(h.FRegs.GetSingle(d.Rs2))
		c := math.Float32frombits(h.FRegs.GetSingle(d.Rs3))
		h.FRegs.SetSingle(d.Rd, math.Float32bits(-(a*b)+c))
		return nil
	case OpFNMADD:
		a := math.Float32frombits(h.FRegs.GetSingle(d.Rs1))
		b := math.Float32frombits(h.FRegs.GetSingle(d.Rs2))
		c := math.Float32frombits(h.FRegs.GetSingle(d.Rs3))
		h.FRegs.SetSingle(d.Rd, math.Float32bits(-(a*b) - c))
		return nil
	}

	if d.Opcode != OpOpFP {
		return fmt.Errorf("unsupported FP opcode family 0x%02X", d.Opcode)
	}

	funct7 := d.Funct7
	a := math.Float32frombits(h.FRegs.GetSingle(d.Rs1))
	b := math.Float32frombits(h.FRegs.GetSingle(d.Rs2))

	switch funct7 {
	case 0x00: // FADD.S
		h.FRegs.SetSingle(d.Rd, math.Float32bits(a+b))
	case 0x04: // FSUB.S
		h.FRegs.SetSingle(d.Rd, math.Float32bits(a-b))
	case 0x08: // FMUL.S
		h.FRegs.SetSingle(d.Rd, math.Float32bits(a*b))
	case 0x0C: // FDIV.S
		h.FRegs.SetSingle(d.Rd, math.Float32bits(a/b))
	case 0x10: // FSGNJ.S family
		bits := h.FRegs.GetSingle(d.Rs1) &^ (1 << 31)
		sign := uint32(0)
		switch d.Funct3 {
		case 0x0: // FSGNJ
			sign = h.FRegs.GetSingle(d.Rs2) & (1 << 31)
		case 0x1: // FSGNJN
			sign = (^h.FRegs.GetSingle(d.Rs2)) & (1 << 31)
		case 0x2: // FSGNJX
			sign = (h.FRegs.GetSingle(d.Rs1) ^ h.FRegs.GetSingle(d.Rs2)) & (1 << 31)
		}
		h.FRegs.SetSingle(d.Rd, bits|sign)
	case 0x14: // FMIN.S/FMAX.S
		if d.Funct3 == 0 {
			h.FRegs.SetSingle(d.Rd, math.Float32bits(minFloat32(a, b)))
		} else {
			h.FRegs.SetSingle(d.Rd, math.Float32bits(maxFloat32(a, b)))
		}
	case 0x60: // FCVT.W.S / FCVT.WU.S (float -> int)
		if d.Rs2 == 0 {
			h.Regs.Set(d.Rd, uint64(int64(int32(a))))
		} else {
			h.Regs.Set(d.Rd, uint64(uint32(a)))
		}
	case 0x68: // FCVT.S.W / FCVT.S.WU (int -> float)
		if d.Rs2 == 0 {
			h.FRegs.SetSingle(d.Rd, math.Float32bits(float32(int32(h.Regs.Get(d.Rs1)))))
		} else {
			h.FRegs.SetSingle(d.Rd, math.Float32bits(float32(uint32(h.Regs.Get(d.Rs1)))))
		}
	case 0x70: // FMV.X.W / FCLASS.S
		if d.Funct3 == 0x0 {
			h.Regs.Set(d.Rd, uint64(int64(int32(h.FRegs.GetSingle(d.Rs1)))))
		} else {
			h.Regs.Set(d.Rd, fclass(a))
		}
	case 0x78: // FMV.W.X
		h.FRegs.SetSingle(d.Rd, uint32(h.Regs.Get(d.Rs1)))
	case 0x50: // FEQ.S/FLT.S/FLE.S
		var result bool
		switch d.Funct3 {
		case 0x0:
			result = a == b
		case 0x1:
			result = a < b
		case 0x2:
			result = a <= b
		}
		h.Regs.Set(d.Rd, boolToU64(result))
	default:
		return fmt.Errorf("unimplemented OP-FP funct7 0x%02X", funct7)
	}
	return nil
}

func minFloat32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxFloat32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// fclass implements FCLASS.S's ten-bit classification mask.
func fclass(f float32) uint64 {
	bits := math.Float32bits(f)
	sign := bits&(1<<31) != 0
	switch {
	case math.IsNaN(float64(f)):
		if bits&(1<<22) != 0 {
			return 1 << 9 // quiet NaN
		}
		return 1 << 8 // signaling NaN
	case math.IsInf(float64(f), 1):
		return 1 << 7
	case math.IsInf(float64(f), -1):
		return 1 << 0
	case f == 0:
		if sign {
			return 1 << 3
		}
		return 1 << 4
	case sign:
		return 1 << 1
	default:
		return 1 << 6
	}
}
