package armcore

import "fmt"

// ThumbOp identifies which Thumb/Thumb-2 execution handler decodes and
// runs a fetched halfword (or halfword pair). Unlike the ARM32 decoder,
// which classifies into the small InstructionType set above, Thumb's
// format space is split finely enough that each handler owns its own
// field extraction; ThumbOp only routes to it.
type ThumbOp int

const (
	ThumbUnknown ThumbOp = iota
	ThumbShiftImm
	ThumbAddSubReg
	ThumbAddSubImm3
	ThumbMovCmpAddSubImm8
	ThumbALU
	ThumbHiRegOp
	ThumbBranchExchange
	ThumbPCRelLoad
	ThumbLoadStoreReg
	ThumbLoadStoreImm
	ThumbLoadStoreHalfword
	ThumbSPRelLoadStore
	ThumbLoadAddress
	ThumbAddSPImm
	ThumbPushPop
	ThumbMultipleLoadStore
	ThumbCondBranch
	ThumbSoftwareInterrupt
	ThumbUncondBranch
	ThumbLongBranchLink
	ThumbIT
	ThumbCBZ
	ThumbNOPHint
)

// ThumbInstruction is a decoded Thumb or Thumb-2 instruction. Word holds
// the first halfword; Word2 holds the second halfword of a 32-bit
// Thumb-2 encoding (Is32Bit true), zero otherwise.
type ThumbInstruction struct {
	Address uint32
	Word    uint16
	Word2   uint16
	Is32Bit bool
	Op      ThumbOp
}

// Is32BitThumb reports whether the first fetched halfword begins a
// 32-bit Thumb-2 instruction: bits [15:11] in {0b11101, 0b11110,
// 0b11111}, per the standard Thumb-2 encoding discriminator.
func Is32BitThumb(firstHalfword uint16) bool {
	top5 := firstHalfword >> 11
	return top5 == 0b11101 || top5 == 0b11110 || top5 == 0b11111
}

// DecodeThumb classifies a fetched Thumb halfword pair into a ThumbOp.
// Only the 16-bit formats plus BL/BLX's 32-bit long-branch-link pair are
// recognized; other Thumb-2 32-bit encodings return ThumbUnknown, which
// ExecuteThumb reports as an unsupported-instruction error rather than
// silently executing something else (spec.md's stated "faithful trap,
// not best-effort" error-handling stance, §7).
func DecodeThumb(address uint32, w1, w2 uint16, is32 bool) (*ThumbInstruction, error) {
	inst := &ThumbInstruction{Address: address, Word: w1, Word2: w2, Is32Bit: is32}

	if is32 {
		// BL/BLX T1/T2: bits [15:11]=11110 (w1), [15:14]=11 (w2).
		if w1>>11 == 0b11110 && w2>>14 == 0b11 {
			inst.Op = ThumbLongBranchLink
			return inst, nil
		}
		return inst, nil // Op stays ThumbUnknown; caller surfaces as error
	}

	switch {
	case w1>>13 == 0b000 && (w1>>11)&0x3 != 0b11:
		inst.Op = ThumbShiftImm
	case w1>>11 == 0b00011:
		if (w1>>9)&1 == 0 {
			inst.Op = ThumbAddSubReg
		} else {
			inst.Op = ThumbAddSubReg
		}
	case w1>>13 == 0b001:
		inst.Op = ThumbMovCmpAddSubImm8
	case w1>>10 == 0b010000:
		inst.Op = ThumbALU
	case w1>>10 == 0b010001:
		inst.Op = ThumbHiRegOp
	case w1>>11 == 0b01001:
		inst.Op = ThumbPCRelLoad
	case w1>>12 == 0b0101:
		inst.Op = ThumbLoadStoreReg
	case w1>>13 == 0b011:
		inst.Op = ThumbLoadStoreImm
	case w1>>12 == 0b1000:
		inst.Op = ThumbLoadStoreHalfword
	case w1>>12 == 0b1001:
		inst.Op = ThumbSPRelLoadStore
	case w1>>12 == 0b1010:
		inst.Op = ThumbLoadAddress
	case w1>>8 == 0b10110000:
		inst.Op = ThumbAddSPImm
	case w1>>12 == 0b1011 && (w1>>9)&0x3 == 0b10:
		inst.Op = ThumbPushPop
	case w1>>12 == 0b1011 && w1>>8 == 0b10111110:
		inst.Op = ThumbSoftwareInterrupt // BKPT, reuses the SWI-style trap path
	case w1>>12 == 0b1011 && (w1>>8)&0x5 == 0b0001:
		inst.Op = ThumbCBZ // CBZ/CBNZ: 1011 o0i1 (o = bit 11, i = bit 9)
	case w1>>8 == 0b10111111 && w1&0xF != 0:
		inst.Op = ThumbIT
	case w1 == 0xBF00:
		inst.Op = ThumbNOPHint
	case w1>>12 == 0b1100:
		inst.Op = ThumbMultipleLoadStore
	case w1>>12 == 0b1101 && (w1>>8)&0xF == 0b1111:
		inst.Op = ThumbSoftwareInterrupt
	case w1>>12 == 0b1101:
		inst.Op = ThumbCondBranch
	case w1>>11 == 0b11100:
		inst.Op = ThumbUncondBranch
	default:
		inst.Op = ThumbUnknown
	}

	if inst.Op == ThumbUnknown {
		return inst, fmt.Errorf("unrecognized Thumb opcode 0x%04X at 0x%08X", w1, address)
	}
	return inst, nil
}
