package debugger

import (
	"fmt"

	"github.com/corefleet/simdbg/armcore"
)

// armDisassembler formats ARM32 words directly from their raw bit
// layout rather than going through armcore.VM.Decode: that decoder's
// Instruction struct doesn't carry operands yet ("Operands will be
// added as we implement instructions" — armcore/executor.go), so a
// disassembler needs its own, independent field extraction, the same
// way riscvDisassembler leans on the real decode table where one
// exists and falls back to local bit math where it doesn't.
type armDisassembler struct{}

func newARMDisassembler() *armDisassembler { return &armDisassembler{} }

func regName(r uint32) string {
	switch r {
	case 13:
		return "sp"
	case 14:
		return "lr"
	case 15:
		return "pc"
	default:
		return fmt.Sprintf("r%d", r)
	}
}

// Disassemble renders one 32-bit ARM word; pc is used only for
// PC-relative branch target display.
func (d *armDisassembler) Disassemble(pc uint64, word uint32) (mnemonic string, length int) {
	cond := armcore.ConditionCode((word >> 28) & 0xF).String()
	switch {
	case word&0x0FFFFFF0 == 0x012FFF10: // BX
		return fmt.Sprintf("%-8s %s", condSuffix("bx", cond), regName(word&0xF)), 4
	case (word>>25)&0x7 == 0x5: // B/BL
		offset := int32(word&0xFFFFFF) << 8 >> 8
		target := int64(pc) + 8 + int64(offset)*4
		name := "b"
		if word&(1<<24) != 0 {
			name = "bl"
		}
		return fmt.Sprintf("%-8s 0x%x", condSuffix(name, cond), target), 4
	case (word>>26)&0x3 == 0x0: // Data processing
		return formatDataProcessing(word, cond), 4
	case (word>>26)&0x3 == 0x1: // Single data transfer
		return formatSingleDataTransfer(word, cond), 4
	case (word>>25)&0x7 == 0x4: // Block data transfer
		return formatBlockDataTransfer(word, cond), 4
	case (word>>24)&0xF == 0xF: // SWI
		return fmt.Sprintf("%-8s 0x%x", condSuffix("swi", cond), word&0xFFFFFF), 4
	default:
		return fmt.Sprintf(".word 0x%08x", word), 4
	}
}

func condSuffix(name, cond string) string {
	if cond == "AL" || cond == "" {
		return name
	}
	return name + cond
}

var dataProcessingMnemonics = [16]string{
	"and", "eor", "sub", "rsb", "add", "adc", "sbc", "rsc",
	"tst", "teq", "cmp", "cmn", "orr", "mov", "bic", "mvn",
}

func formatDataProcessing(word uint32, cond string) string {
	opcode := (word >> 21) & 0xF
	s := ""
	if word&(1<<20) != 0 {
		s = "s"
	}
	name := condSuffix(dataProcessingMnemonics[opcode]+s, cond)
	rd := regName((word >> 12) & 0xF)
	rn := regName((word >> 16) & 0xF)

	var operand2 string
	if word&(1<<25) != 0 { // immediate
		imm := word & 0xFF
		rot := (word >> 8) & 0xF * 2
		value := imm>>rot | imm<<(32-rot)
		operand2 = fmt.Sprintf("#0x%x", value)
	} else {
		rm := regName(word & 0xF)
		if word&(1<<4) != 0 {
			operand2 = fmt.Sprintf("%s, rs%d", rm, (word>>5)&0x3)
		} else {
			shiftAmt := (word >> 7) & 0x1F
			shiftType := (word >> 5) & 0x3
			if shiftAmt == 0 {
				operand2 = rm
			} else {
				operand2 = fmt.Sprintf("%s, %s #%d", rm, shiftTypeName(shiftType), shiftAmt)
			}
		}
	}

	switch opcode {
	case 0x8, 0x9, 0xA, 0xB: // TST/TEQ/CMP/CMN have no Rd
		return fmt.Sprintf("%-8s %s, %s", name, rn, operand2)
	case 0xD, 0xF: // MOV/MVN have no Rn
		return fmt.Sprintf("%-8s %s, %s", name, rd, operand2)
	default:
		return fmt.Sprintf("%-8s %s, %s, %s", name, rd, rn, operand2)
	}
}

func shiftTypeName(t uint32) string {
	switch t {
	case 0:
		return "lsl"
	case 1:
		return "lsr"
	case 2:
		return "asr"
	default:
		return "ror"
	}
}

func formatSingleDataTransfer(word uint32, cond string) string {
	load := word&(1<<20) != 0
	byteAccess := ""
	if word&(1<<22) != 0 {
		byteAccess = "b"
	}
	name := "str"
	if load {
		name = "ldr"
	}
	name = condSuffix(name+byteAccess, cond)
	rd := regName((word >> 12) & 0xF)
	rn := regName((word >> 16) & 0xF)

	var addr string
	if word&(1<<25) == 0 { // immediate offset
		offset := word & 0xFFF
		sign := ""
		if word&(1<<23) == 0 {
			sign = "-"
		}
		addr = fmt.Sprintf("[%s, #%s%d]", rn, sign, offset)
	} else {
		rm := regName(word & 0xF)
		addr = fmt.Sprintf("[%s, %s]", rn, rm)
	}
	return fmt.Sprintf("%-8s %s, %s", name, rd, addr)
}

func formatBlockDataTransfer(word uint32, cond string) string {
	load := word&(1<<20) != 0
	name := "stm"
	if load {
		name = "ldm"
	}
	name = condSuffix(name, cond)
	rn := regName((word >> 16) & 0xF)
	regs := word & 0xFFFF

	list := "{"
	first := true
	for i := 0; i < 16; i++ {
		if regs&(1<<uint(i)) != 0 {
			if !first {
				list += ", "
			}
			list += regName(uint32(i))
			first = false
		}
	}
	list += "}"
	return fmt.Sprintf("%-8s %s, %s", name, rn, list)
}
