package debugger

import (
	"fmt"

	"github.com/corefleet/simdbg/instrtab"
	"github.com/corefleet/simdbg/riscv"
)

// csrNames is a small name table for the CSRs this simulator implements;
// anything else falls back to a bare hex address, matching the
// "unsupported CSR" texture the teacher uses elsewhere for unknown
// opcodes rather than erroring out of a disassembly.
var csrNames = map[uint32]string{
	riscv.CSRMstatus:  "mstatus",
	riscv.CSRMisa:     "misa",
	riscv.CSRMie:      "mie",
	riscv.CSRMtvec:    "mtvec",
	riscv.CSRMscratch: "mscratch",
	riscv.CSRMepc:     "mepc",
	riscv.CSRMcause:   "mcause",
	riscv.CSRMtval:    "mtval",
	riscv.CSRMip:      "mip",
	riscv.CSRMhartid:  "mhartid",
}

func csrName(addr uint32) string {
	if name, ok := csrNames[addr]; ok {
		return name
	}
	return fmt.Sprintf("0x%03x", addr)
}

// riscvDisassembler formats RV64IMAFC(+privileged) words by decoding
// them through the real instruction table and rendering the resulting
// Decoded fields, so the mnemonics it prints can never drift from what
// the core actually executes.
type riscvDisassembler struct {
	table *instrtab.Table[uint32]
}

func newRISCVDisassembler() *riscvDisassembler {
	return &riscvDisassembler{table: riscv.NewDecodeTable()}
}

// Disassemble renders one instruction word at pc; length is 4 for every
// word this decoder accepts (16-bit compressed words are handled
// separately by DisassembleCompressed, matching riscv.Hart's own
// fetch-time quadrant check).
func (d *riscvDisassembler) Disassemble(pc uint64, word uint32) (mnemonic string, length int) {
	dec, err := riscv.Decode(d.table, word)
	if err != nil {
		return fmt.Sprintf(".word 0x%08x", word), 4
	}
	return formatRISCV(dec), 4
}

func formatRISCV(d *riscv.Decoded) string {
	rd, rs1, rs2 := riscv.Name(d.Rd), riscv.Name(d.Rs1), riscv.Name(d.Rs2)
	switch d.Opcode {
	case riscv.OpOpImm:
		return fmt.Sprintf("%-8s %s, %s, %d", opImmMnemonic(d), rd, rs1, d.ImmI)
	case riscv.OpOp:
		return fmt.Sprintf("%-8s %s, %s, %s", opMnemonic(d), rd, rs1, rs2)
	case riscv.OpLUI:
		return fmt.Sprintf("%-8s %s, 0x%x", "lui", rd, uint64(d.ImmU)>>12)
	case riscv.OpAUIPC:
		return fmt.Sprintf("%-8s %s, 0x%x", "auipc", rd, uint64(d.ImmU)>>12)
	case riscv.OpJAL:
		return fmt.Sprintf("%-8s %s, %d", "jal", rd, d.ImmJ)
	case riscv.OpJALR:
		return fmt.Sprintf("%-8s %s, %s, %d", "jalr", rd, rs1, d.ImmI)
	case riscv.OpBranch:
		return fmt.Sprintf("%-8s %s, %s, %d", branchMnemonic(d.Funct3), rs1, rs2, d.ImmB)
	case riscv.OpLoad:
		return fmt.Sprintf("%-8s %s, %d(%s)", loadMnemonic(d.Funct3), rd, d.ImmI, rs1)
	case riscv.OpStore:
		return fmt.Sprintf("%-8s %s, %d(%s)", storeMnemonic(d.Funct3), rs2, d.ImmS, rs1)
	case riscv.OpAMO:
		return fmt.Sprintf("%-8s %s, %s, (%s)", amoMnemonic(d.Funct7>>2), rd, rs2, rs1)
	case riscv.OpSystem:
		return formatSystem(d, rd, rs1)
	case riscv.OpMiscMem:
		return "fence"
	default:
		return fmt.Sprintf(".word 0x%08x", d.Raw)
	}
}

func opImmMnemonic(d *riscv.Decoded) string {
	switch d.Funct3 {
	case 0x0:
		return "addi"
	case 0x2:
		return "slti"
	case 0x3:
		return "sltiu"
	case 0x4:
		return "xori"
	case 0x6:
		return "ori"
	case 0x7:
		return "andi"
	case 0x1:
		return "slli"
	case 0x5:
		if d.Funct7&0x20 != 0 {
			return "srai"
		}
		return "srli"
	default:
		return "op-imm"
	}
}

func opMnemonic(d *riscv.Decoded) string {
	if d.Funct7 == 0x01 { // M extension
		switch d.Funct3 {
		case 0x0:
			return "mul"
		case 0x1:
			return "mulh"
		case 0x2:
			return "mulhsu"
		case 0x3:
			return "mulhu"
		case 0x4:
			return "div"
		case 0x5:
			return "divu"
		case 0x6:
			return "rem"
		case 0x7:
			return "remu"
		}
	}
	switch d.Funct3 {
	case 0x0:
		if d.Funct7&0x20 != 0 {
			return "sub"
		}
		return "add"
	case 0x1:
		return "sll"
	case 0x2:
		return "slt"
	case 0x3:
		return "sltu"
	case 0x4:
		return "xor"
	case 0x5:
		if d.Funct7&0x20 != 0 {
			return "sra"
		}
		return "srl"
	case 0x6:
		return "or"
	case 0x7:
		return "and"
	default:
		return "op"
	}
}

func branchMnemonic(funct3 uint32) string {
	switch funct3 {
	case 0x0:
		return "beq"
	case 0x1:
		return "bne"
	case 0x4:
		return "blt"
	case 0x5:
		return "bge"
	case 0x6:
		return "bltu"
	case 0x7:
		return "bgeu"
	default:
		return "branch"
	}
}

func loadMnemonic(funct3 uint32) string {
	switch funct3 {
	case 0x0:
		return "lb"
	case 0x1:
		return "lh"
	case 0x2:
		return "lw"
	case 0x3:
		return "ld"
	case 0x4:
		return "lbu"
	case 0x5:
		return "lhu"
	case 0x6:
		return "lwu"
	default:
		return "load"
	}
}

func storeMnemonic(funct3 uint32) string {
	switch funct3 {
	case 0x0:
		return "sb"
	case 0x1:
		return "sh"
	case 0x2:
		return "sw"
	case 0x3:
		return "sd"
	default:
		return "store"
	}
}

func amoMnemonic(funct5 uint32) string {
	switch funct5 {
	case 0x00:
		return "amoadd.w"
	case 0x01:
		return "amoswap.w"
	case 0x02:
		return "lr.w"
	case 0x03:
		return "sc.w"
	case 0x0C:
		return "amoand.w"
	case 0x08:
		return "amoor.w"
	default:
		return "amo"
	}
}

// DisassembleCompressed formats a 16-bit RVC word; callers (the fetch
// path's quadrant check, same as riscv.Hart's own dispatch) are expected
// to already know the word is compressed before calling this rather
// than the 32-bit Disassemble above.
func (d *riscvDisassembler) DisassembleCompressed(pc uint64, w uint16) (mnemonic string, length int) {
	quadrant := w & 0x3
	funct3 := (w >> 13) & 0x7
	rd := int((w >> 7) & 0x1F)

	switch {
	case quadrant == 0x0 && funct3 == 0x2:
		return fmt.Sprintf("%-8s %s, (%s)", "c.lw", riscv.Name(crsName(w, 2)+8), riscv.Name(crsName(w, 7)+8)), 2
	case quadrant == 0x0 && funct3 == 0x6:
		return fmt.Sprintf("%-8s %s, (%s)", "c.sw", riscv.Name(crsName(w, 2)+8), riscv.Name(crsName(w, 7)+8)), 2
	case quadrant == 0x1 && funct3 == 0x0:
		if rd == 0 {
			return "c.nop", 2
		}
		return fmt.Sprintf("%-8s %s", "c.addi", riscv.Name(rd)), 2
	case quadrant == 0x1 && funct3 == 0x2:
		return fmt.Sprintf("%-8s %s", "c.li", riscv.Name(rd)), 2
	case quadrant == 0x1 && funct3 == 0x5:
		return "c.j", 2
	case quadrant == 0x1 && funct3 == 0x6:
		return fmt.Sprintf("%-8s %s", "c.beqz", riscv.Name(crsName(w, 7)+8)), 2
	case quadrant == 0x1 && funct3 == 0x7:
		return fmt.Sprintf("%-8s %s", "c.bnez", riscv.Name(crsName(w, 7)+8)), 2
	case quadrant == 0x2 && funct3 == 0x2:
		return fmt.Sprintf("%-8s %s", "c.lwsp", riscv.Name(rd)), 2
	case quadrant == 0x2 && funct3 == 0x6:
		return fmt.Sprintf("%-8s %s", "c.swsp", riscv.Name(int((w>>2)&0x1F))), 2
	case quadrant == 0x2 && funct3 == 0x4:
		rs2 := int((w >> 2) & 0x1F)
		bit12 := (w >> 12) & 1
		switch {
		case bit12 == 0 && rs2 == 0:
			return fmt.Sprintf("%-8s %s", "c.jr", riscv.Name(rd)), 2
		case bit12 == 0:
			return fmt.Sprintf("%-8s %s, %s", "c.mv", riscv.Name(rd), riscv.Name(rs2)), 2
		case rd == 0 && rs2 == 0:
			return "c.ebreak", 2
		case rs2 == 0:
			return fmt.Sprintf("%-8s %s", "c.jalr", riscv.Name(rd)), 2
		default:
			return fmt.Sprintf("%-8s %s, %s", "c.add", riscv.Name(rd), riscv.Name(rs2)), 2
		}
	default:
		return fmt.Sprintf(".half 0x%04x", w), 2
	}
}

func crsName(w uint16, shift int) int {
	return int((w >> uint(shift)) & 0x7)
}

func formatSystem(d *riscv.Decoded, rd, rs1 string) string {
	if d.Funct3 == 0 {
		switch d.ImmI {
		case 0:
			return "ecall"
		case 1:
			return "ebreak"
		case 0x302:
			return "mret"
		default:
			return "system"
		}
	}
	csr := csrName(uint32(d.ImmI) & 0xFFF)
	switch d.Funct3 {
	case 0x1:
		return fmt.Sprintf("%-8s %s, %s, %s", "csrrw", rd, csr, rs1)
	case 0x2:
		return fmt.Sprintf("%-8s %s, %s, %s", "csrrs", rd, csr, rs1)
	case 0x3:
		return fmt.Sprintf("%-8s %s, %s, %s", "csrrc", rd, csr, rs1)
	case 0x5:
		return fmt.Sprintf("%-8s %s, %s, %d", "csrrwi", rd, csr, d.Rs1)
	case 0x6:
		return fmt.Sprintf("%-8s %s, %s, %d", "csrrsi", rd, csr, d.Rs1)
	case 0x7:
		return fmt.Sprintf("%-8s %s, %s, %d", "csrrci", rd, csr, d.Rs1)
	default:
		return "system"
	}
}
