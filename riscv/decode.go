package riscv

import (
	"fmt"

	"github.com/corefleet/simdbg/instrtab"
)

// Opcode is the 7-bit RV32I/RV64I major opcode field (bits [6:0]).
type Opcode uint32

const (
	OpLoad    Opcode = 0x03
	OpLoadFP  Opcode = 0x07
	OpMiscMem Opcode = 0x0F
	OpOpImm   Opcode = 0x13
	OpAUIPC   Opcode = 0x17
	OpOpImm32 Opcode = 0x1B
	OpStore   Opcode = 0x23
	OpStoreFP Opcode = 0x27
	OpAMO     Opcode = 0x2F
	OpOp      Opcode = 0x33
	OpLUI     Opcode = 0x37
	OpOp32    Opcode = 0x3B
	OpFMADD   Opcode = 0x43
	OpFMSUB   Opcode = 0x47
	OpFNMSUB  Opcode = 0x4B
	OpFNMADD  Opcode = 0x4F
	OpOpFP    Opcode = 0x53
	OpBranch  Opcode = 0x63
	OpJALR    Opcode = 0x67
	OpJAL     Opcode = 0x6F
	OpSystem  Opcode = 0x73
)

// Decoded is the generic field extraction shared by every RV32/64
// base-ISA instruction format (R/I/S/B/U/J); individual execute
// handlers interpret whichever of these fields their format defines.
type Decoded struct {
	Raw     uint32
	Opcode  Opcode
	Rd      int
	Rs1     int
	Rs2     int
	Rs3     int // FMADD-family 4th operand
	Funct3  uint32
	Funct7  uint32
	RM      uint32 // FP rounding mode, aliases Funct3 for OP-FP
	ImmI    int64
	ImmS    int64
	ImmB    int64
	ImmU    int64
	ImmJ    int64
	IsAtomicAQ bool
	IsAtomicRL bool
}

func signExtend(value uint32, bit int) int64 {
	shift := 32 - bit
	return int64(int32(value<<shift)) >> shift
}

func decodeFields(word uint32) Decoded {
	d := Decoded{
		Raw:    word,
		Opcode: Opcode(word & 0x7F),
		Rd:     int((word >> 7) & 0x1F),
		Funct3: (word >> 12) & 0x7,
		Rs1:    int((word >> 15) & 0x1F),
		Rs2:    int((word >> 20) & 0x1F),
		Funct7: (word >> 25) & 0x7F,
	}
	d.Rs3 = int((word >> 27) & 0x1F)
	d.RM = d.Funct3
	d.IsAtomicAQ = word&(1<<26) != 0
	d.IsAtomicRL = word&(1<<25) != 0

	d.ImmI = signExtend(word>>20, 12)
	d.ImmS = signExtend(((word>>25)<<5)|((word>>7)&0x1F), 12)
	d.ImmB = signExtend(
		(((word>>31)&1)<<12)|(((word>>7)&1)<<11)|(((word>>25)&0x3F)<<5)|(((word>>8)&0xF)<<1),
		13,
	)
	d.ImmU = int64(int32(word & 0xFFFFF000))
	d.ImmJ = signExtend(
		(((word>>31)&1)<<20)|(((word>>12)&0xFF)<<12)|(((word>>20)&1)<<11)|(((word>>21)&0x3FF)<<1),
		21,
	)
	return d
}

// NewDecodeTable builds the opcode-bucketed table described by spec.md
// §3/§4.2, keyed on the low 7 bits (the full RV32/64 major-opcode
// field), with 128 buckets so each major opcode has a bucket of its own.
func NewDecodeTable() *instrtab.Table[uint32] {
	t := instrtab.New[uint32](128, func(opcodeBits, careMask uint32) int {
		return int(opcodeBits) % 128
	})

	register := func(op Opcode) {
		t.Register(&instrtab.Descriptor[uint32]{
			Name:       fmt.Sprintf("opcode-0x%02X", op),
			OpcodeBits: uint32(op),
			CareMask:   0x7F,
			Decode: func(word uint32) any {
				fields := decodeFields(word)
				return &fields
			},
		})
	}

	for _, op := range []Opcode{
		OpLoad, OpLoadFP, OpMiscMem, OpOpImm, OpAUIPC, OpOpImm32, OpStore,
		OpStoreFP, OpAMO, OpOp, OpLUI, OpOp32, OpFMADD, OpFMSUB, OpFNMSUB,
		OpFNMADD, OpOpFP, OpBranch, OpJALR, OpJAL, OpSystem,
	} {
		register(op)
	}

	return t
}

// Decode looks up word's major opcode in table and returns its
// generically-extracted fields, or an error if the opcode is
// unimplemented (bits [1:0] != 11 would mean a compressed instruction;
// callers must route those to executeCompressed instead).
func Decode(table *instrtab.Table[uint32], word uint32) (*Decoded, error) {
	d := table.Lookup(word)
	if d == nil {
		return nil, fmt.Errorf("unimplemented RV64 opcode 0x%02X (word=0x%08X)", word&0x7F, word)
	}
	fields, ok := d.Decode(word).(*Decoded)
	if !ok {
		return nil, fmt.Errorf("internal: decode table entry %q returned wrong type", d.Name)
	}
	return fields, nil
}
