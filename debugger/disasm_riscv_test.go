package debugger

import "testing"

func TestDisassembleAddi(t *testing.T) {
	rv := newRISCVDisassembler()
	// addi x6, x5, -3
	word := encodeITypeForTest(-3, 5, 0x0, 6, 0x13)
	mnemonic, length := rv.Disassemble(0, word)
	if length != 4 {
		t.Errorf("length = %d, want 4", length)
	}
	if mnemonic != "addi     t1, t0, -3" {
		t.Errorf("mnemonic = %q", mnemonic)
	}
}

func TestDisassembleEbreak(t *testing.T) {
	rv := newRISCVDisassembler()
	mnemonic, _ := rv.Disassemble(0, 0x00100073)
	if mnemonic != "ebreak" {
		t.Errorf("mnemonic = %q, want ebreak", mnemonic)
	}
}

func TestDisassembleCSRRW(t *testing.T) {
	rv := newRISCVDisassembler()
	// csrrw x1, mstatus, x2: opcode=SYSTEM(0x73), funct3=1, rd=1, rs1=2, imm=0x300
	word := uint32(0x300)<<20 | uint32(2)<<15 | uint32(1)<<12 | uint32(1)<<7 | 0x73
	mnemonic, _ := rv.Disassemble(0, word)
	if mnemonic != "csrrw    ra, mstatus, sp" {
		t.Errorf("mnemonic = %q", mnemonic)
	}
}

func TestDisassembleCompressedEBreak(t *testing.T) {
	rv := newRISCVDisassembler()
	mnemonic, length := rv.DisassembleCompressed(0, 0x9002)
	if length != 2 {
		t.Errorf("length = %d, want 2", length)
	}
	if mnemonic != "c.ebreak" {
		t.Errorf("mnemonic = %q, want c.ebreak", mnemonic)
	}
}

func TestDisassembleUnimplementedOpcodeFallsBackToWord(t *testing.T) {
	rv := newRISCVDisassembler()
	mnemonic, _ := rv.Disassemble(0, 0x0000007F) // opcode bits all 1s, unimplemented
	if mnemonic[:6] != ".word " {
		t.Errorf("mnemonic = %q, want a .word fallback", mnemonic)
	}
}

// encodeITypeForTest mirrors riscv's own I-type encoding (duplicated
// here rather than imported, since it is unexported test scaffolding in
// the riscv package).
func encodeITypeForTest(imm int32, rs1, funct3, rd int, opcode uint32) uint32 {
	return uint32(imm)<<20&0xFFF00000 | uint32(rs1)<<15 | uint32(funct3)<<12 | uint32(rd)<<7 | opcode
}
