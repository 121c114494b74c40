package armcore

import "fmt"

// ExecuteThumb dispatches a decoded Thumb/Thumb-2 instruction, applying
// IT-block predication first (spec.md §4.4: "ConditionPassed =
// checkCond(currentITCond)") and advancing IT state afterward (§4.5),
// except for the IT instruction itself, which installs new IT state
// rather than being predicated by it.
func (vm *VM) ExecuteThumb(inst *ThumbInstruction) error {
	cpu := vm.CPU

	if inst.Op == ThumbIT {
		err := execThumbIT(vm, inst)
		advancePC(vm, inst)
		return err
	}

	if !cpu.IT.ConditionPassed(&cpu.CPSR) {
		cpu.IT.Advance()
		advancePC(vm, inst)
		return nil
	}

	var err error
	switch inst.Op {
	case ThumbShiftImm:
		err = execThumbShiftImm(vm, inst)
	case ThumbAddSubReg:
		err = execThumbAddSubReg(vm, inst)
	case ThumbMovCmpAddSubImm8:
		err = execThumbMovCmpAddSubImm8(vm, inst)
	case ThumbALU:
		err = execThumbALU(vm, inst)
	case ThumbHiRegOp:
		err = execThumbHiRegOp(vm, inst)
	case ThumbBranchExchange:
		err = execThumbBranchExchange(vm, inst)
	case ThumbPCRelLoad:
		err = execThumbPCRelLoad(vm, inst)
	case ThumbLoadStoreReg:
		err = execThumbLoadStoreReg(vm, inst)
	case ThumbLoadStoreImm:
		err = execThumbLoadStoreImm(vm, inst)
	case ThumbLoadStoreHalfword:
		err = execThumbLoadStoreHalfword(vm, inst)
	case ThumbSPRelLoadStore:
		err = execThumbSPRelLoadStore(vm, inst)
	case ThumbLoadAddress:
		err = execThumbLoadAddress(vm, inst)
	case ThumbAddSPImm:
		err = execThumbAddSPImm(vm, inst)
	case ThumbPushPop:
		err = execThumbPushPop(vm, inst)
	case ThumbMultipleLoadStore:
		err = execThumbMultipleLoadStore(vm, inst)
	case ThumbCondBranch:
		return execThumbCondBranch(vm, inst) // owns its own PC update
	case ThumbUncondBranch:
		return execThumbUncondBranch(vm, inst)
	case ThumbLongBranchLink:
		return execThumbLongBranchLink(vm, inst)
	case ThumbCBZ:
		return execThumbCBZ(vm, inst)
	case ThumbSoftwareInterrupt:
		err = vm.RaiseException(ExcSWI)
	case ThumbNOPHint:
		// no-op
	default:
		err = fmt.Errorf("unimplemented Thumb op %d at 0x%08X", inst.Op, inst.Address)
	}

	if err == errSkipAutoPC {
		cpu.IT.Advance()
		return nil
	}
	if err != nil {
		return err
	}
	cpu.IT.Advance()
	advancePC(vm, inst)
	return nil
}

func advancePC(vm *VM, inst *ThumbInstruction) {
	if inst.Is32Bit {
		vm.CPU.IncrementPCBy(4)
	} else {
		vm.CPU.IncrementPCBy(2)
	}
}

func execThumbIT(vm *VM, inst *ThumbInstruction) error {
	firstcond := byte(inst.Word>>4) & 0xF
	mask := byte(inst.Word) & 0xF
	vm.CPU.IT.Enter(firstcond, mask)
	return nil
}

// execThumbShiftImm: LSL/LSR/ASR #imm5 (format 1). Rd = Rs shifted by
// imm5, updating N/Z/C (V unaffected).
func execThumbShiftImm(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	op := (w >> 11) & 0x3
	imm5 := int((w >> 6) & 0x1F)
	rs := int((w >> 3) & 0x7)
	rd := int(w & 0x7)

	value := vm.CPU.R[rs]
	carry := vm.CPU.CPSR.C
	var shiftType ShiftType
	switch op {
	case 0b00:
		shiftType = ShiftLSL
	case 0b01:
		shiftType = ShiftLSR
		if imm5 == 0 {
			imm5 = 32
		}
	case 0b10:
		shiftType = ShiftASR
		if imm5 == 0 {
			imm5 = 32
		}
	default:
		return fmt.Errorf("reserved Thumb shift-immediate encoding 0x%04X", w)
	}

	carry = CalculateShiftCarry(value, imm5, shiftType, carry)
	result := PerformShift(value, imm5, shiftType, vm.CPU.CPSR.C)
	vm.CPU.R[rd] = result
	vm.CPU.CPSR.UpdateFlagsNZC(result, carry)
	return nil
}

// execThumbAddSubReg: format 2, ADD/SUB Rd, Rs, Rn|#imm3.
func execThumbAddSubReg(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	isImm := (w>>10)&1 != 0
	isSub := (w>>9)&1 != 0
	rn := int((w >> 6) & 0x7)
	rs := int((w >> 3) & 0x7)
	rd := int(w & 0x7)

	a := vm.CPU.R[rs]
	var b uint32
	if isImm {
		b = uint32(rn)
	} else {
		b = vm.CPU.R[rn]
	}

	var result uint32
	var carry, overflow bool
	if isSub {
		result = a - b
		carry = !CalculateSubCarry(a, b)
		overflow = CalculateSubOverflow(a, b, result)
	} else {
		result = a + b
		carry = CalculateAddCarry(a, b, result)
		overflow = CalculateAddOverflow(a, b, result)
	}
	vm.CPU.R[rd] = result
	vm.CPU.CPSR.UpdateFlagsNZCV(result, carry, overflow)
	return nil
}

// execThumbMovCmpAddSubImm8: format 3, MOV/CMP/ADD/SUB Rd, #imm8.
func execThumbMovCmpAddSubImm8(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	op := (w >> 11) & 0x3
	rd := int((w >> 8) & 0x7)
	imm8 := uint32(w & 0xFF)

	a := vm.CPU.R[rd]
	switch op {
	case 0b00: // MOV
		vm.CPU.R[rd] = imm8
		vm.CPU.CPSR.UpdateFlagsNZ(imm8)
	case 0b01: // CMP
		result := a - imm8
		vm.CPU.CPSR.UpdateFlagsNZCV(result, !CalculateSubCarry(a, imm8), CalculateSubOverflow(a, imm8, result))
	case 0b10: // ADD
		result := a + imm8
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZCV(result, CalculateAddCarry(a, imm8, result), CalculateAddOverflow(a, imm8, result))
	case 0b11: // SUB
		result := a - imm8
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZCV(result, !CalculateSubCarry(a, imm8), CalculateSubOverflow(a, imm8, result))
	}
	return nil
}

// execThumbALU: format 4, two-register ALU ops (AND/EOR/LSL/LSR/ASR/
// ADC/SBC/ROR/TST/NEG/CMP/CMN/ORR/MUL/BIC/MVN).
func execThumbALU(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	op := (w >> 6) & 0xF
	rs := int((w >> 3) & 0x7)
	rd := int(w & 0x7)

	a := vm.CPU.R[rd]
	b := vm.CPU.R[rs]
	c := vm.CPU.CPSR.C

	switch op {
	case 0x0: // AND
		result := a & b
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZ(result)
	case 0x1: // EOR
		result := a ^ b
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZ(result)
	case 0x2: // LSL (register)
		carry := CalculateShiftCarry(a, int(b&0xFF), ShiftLSL, c)
		result := PerformShift(a, int(b&0xFF), ShiftLSL, c)
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZC(result, carry)
	case 0x3: // LSR (register)
		carry := CalculateShiftCarry(a, int(b&0xFF), ShiftLSR, c)
		result := PerformShift(a, int(b&0xFF), ShiftLSR, c)
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZC(result, carry)
	case 0x4: // ASR (register)
		carry := CalculateShiftCarry(a, int(b&0xFF), ShiftASR, c)
		result := PerformShift(a, int(b&0xFF), ShiftASR, c)
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZC(result, carry)
	case 0x5: // ADC
		carryIn := uint32(0)
		if c {
			carryIn = 1
		}
		result := a + b + carryIn
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZCV(result, CalculateAddCarry(a, b, result) || (carryIn == 1 && result == a+b), CalculateAddOverflow(a, b+carryIn, result))
	case 0x6: // SBC
		borrowIn := uint32(0)
		if !c {
			borrowIn = 1
		}
		result := a - b - borrowIn
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZCV(result, !CalculateSubCarry(a, b+borrowIn), CalculateSubOverflow(a, b+borrowIn, result))
	case 0x7: // ROR (register)
		carry := CalculateShiftCarry(a, int(b&0xFF), ShiftROR, c)
		result := PerformShift(a, int(b&0xFF), ShiftROR, c)
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZC(result, carry)
	case 0x8: // TST
		vm.CPU.CPSR.UpdateFlagsNZ(a & b)
	case 0x9: // NEG
		result := uint32(0) - b
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZCV(result, !CalculateSubCarry(0, b), CalculateSubOverflow(0, b, result))
	case 0xA: // CMP
		result := a - b
		vm.CPU.CPSR.UpdateFlagsNZCV(result, !CalculateSubCarry(a, b), CalculateSubOverflow(a, b, result))
	case 0xB: // CMN
		result := a + b
		vm.CPU.CPSR.UpdateFlagsNZCV(result, CalculateAddCarry(a, b, result), CalculateAddOverflow(a, b, result))
	case 0xC: // ORR
		result := a | b
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZ(result)
	case 0xD: // MUL
		result := a * b
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZ(result)
	case 0xE: // BIC
		result := a &^ b
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZ(result)
	case 0xF: // MVN
		result := ^b
		vm.CPU.R[rd] = result
		vm.CPU.CPSR.UpdateFlagsNZ(result)
	}
	return nil
}

// execThumbHiRegOp: format 5, ADD/CMP/MOV with at least one high
// register (R8-R15), plus BX/BLX.
func execThumbHiRegOp(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	op := (w >> 8) & 0x3
	h1 := (w >> 7) & 1
	h2 := (w >> 6) & 1
	rsField := int((w>>3)&0x7) + int(h2)*8
	rdField := int(w&0x7) + int(h1)*8

	src := vm.CPU.GetRegister(rsField)

	switch op {
	case 0b00: // ADD
		result := vm.CPU.GetRegister(rdField) + src
		vm.CPU.SetRegister(rdField, result)
	case 0b01: // CMP
		a := vm.CPU.GetRegister(rdField)
		result := a - src
		vm.CPU.CPSR.UpdateFlagsNZCV(result, !CalculateSubCarry(a, src), CalculateSubOverflow(a, src, result))
	case 0b10: // MOV
		vm.CPU.SetRegister(rdField, src)
	case 0b11: // BX/BLX handled separately, see execThumbBranchExchange
		return execThumbBranchExchange(vm, inst)
	}
	return nil
}

// execThumbBranchExchange: format 5 BX/BLX Rs (encoded as op==0b11 in
// the same format-5 byte as ADD/CMP/MOV hi-reg ops).
func execThumbBranchExchange(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	h1 := (w >> 7) & 1 // distinguishes BLX (1) from BX (0)
	rsField := int((w>>3)&0x7) + int((w>>6)&1)*8

	target := vm.CPU.GetRegister(rsField)
	if IsExceptionReturn(target) {
		return vm.ReturnFromException()
	}
	if h1 == 1 {
		vm.CPU.SetLR((vm.CPU.PC + 2) | 1)
	}
	vm.CPU.CPSR.T = target&1 != 0
	vm.CPU.Mode = thumbOrARM(vm.CPU.CPSR.T)
	vm.CPU.Branch(target &^ 1)
	return errSkipAutoPC
}

// errSkipAutoPC is a sentinel returned by handlers that already set PC
// themselves, telling ExecuteThumb not to auto-advance it. It is never
// surfaced to callers of Step.
var errSkipAutoPC = fmt.Errorf("internal: pc already updated")

func execThumbPCRelLoad(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	rd := int((w >> 8) & 0x7)
	imm8 := uint32(w&0xFF) << 2
	base := (vm.CPU.GetRegister(15)) &^ 0x3
	value, err := vm.Memory.ReadWord(base + imm8)
	if err != nil {
		return err
	}
	vm.CPU.R[rd] = value
	return nil
}

func execThumbLoadStoreReg(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	opB := (w >> 10) & 0x7
	ro := int((w >> 6) & 0x7)
	rb := int((w >> 3) & 0x7)
	rd := int(w & 0x7)
	addr := vm.CPU.R[rb] + vm.CPU.R[ro]

	switch opB {
	case 0b000: // STR
		return vm.Memory.WriteWord(addr, vm.CPU.R[rd])
	case 0b001: // STRH
		return vm.Memory.WriteHalfword(addr, uint16(vm.CPU.R[rd]))
	case 0b010: // STRB
		return vm.Memory.WriteByteAt(addr, byte(vm.CPU.R[rd]))
	case 0b011: // LDRSB
		b, err := vm.Memory.ReadByteAt(addr)
		if err != nil {
			return err
		}
		v := uint32(b)
		if b&0x80 != 0 {
			v |= 0xFFFFFF00
		}
		vm.CPU.R[rd] = v
	case 0b100: // LDR
		v, err := vm.Memory.ReadWord(addr)
		if err != nil {
			return err
		}
		vm.CPU.R[rd] = v
	case 0b101: // LDRH
		v, err := vm.Memory.ReadHalfword(addr)
		if err != nil {
			return err
		}
		vm.CPU.R[rd] = uint32(v)
	case 0b110: // LDRB
		v, err := vm.Memory.ReadByteAt(addr)
		if err != nil {
			return err
		}
		vm.CPU.R[rd] = uint32(v)
	case 0b111: // LDRSH
		v, err := vm.Memory.ReadHalfword(addr)
		if err != nil {
			return err
		}
		value := uint32(v)
		if v&0x8000 != 0 {
			value |= 0xFFFF0000
		}
		vm.CPU.R[rd] = value
	}
	return nil
}

func execThumbLoadStoreImm(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	isByte := (w>>12)&1 != 0
	isLoad := (w>>11)&1 != 0
	imm5 := uint32((w >> 6) & 0x1F)
	rb := int((w >> 3) & 0x7)
	rd := int(w & 0x7)

	var addr uint32
	if isByte {
		addr = vm.CPU.R[rb] + imm5
	} else {
		addr = vm.CPU.R[rb] + (imm5 << 2)
	}

	switch {
	case isByte && isLoad:
		v, err := vm.Memory.ReadByteAt(addr)
		if err != nil {
			return err
		}
		vm.CPU.R[rd] = uint32(v)
	case isByte && !isLoad:
		return vm.Memory.WriteByteAt(addr, byte(vm.CPU.R[rd]))
	case !isByte && isLoad:
		v, err := vm.Memory.ReadWord(addr)
		if err != nil {
			return err
		}
		vm.CPU.R[rd] = v
	default:
		return vm.Memory.WriteWord(addr, vm.CPU.R[rd])
	}
	return nil
}

func execThumbLoadStoreHalfword(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	isLoad := (w>>11)&1 != 0
	imm5 := uint32((w>>6)&0x1F) << 1
	rb := int((w >> 3) & 0x7)
	rd := int(w & 0x7)
	addr := vm.CPU.R[rb] + imm5

	if isLoad {
		v, err := vm.Memory.ReadHalfword(addr)
		if err != nil {
			return err
		}
		vm.CPU.R[rd] = uint32(v)
		return nil
	}
	return vm.Memory.WriteHalfword(addr, uint16(vm.CPU.R[rd]))
}

func execThumbSPRelLoadStore(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	isLoad := (w>>11)&1 != 0
	rd := int((w >> 8) & 0x7)
	imm8 := uint32(w&0xFF) << 2
	addr := vm.CPU.GetSP() + imm8

	if isLoad {
		v, err := vm.Memory.ReadWord(addr)
		if err != nil {
			return err
		}
		vm.CPU.R[rd] = v
		return nil
	}
	return vm.Memory.WriteWord(addr, vm.CPU.R[rd])
}

func execThumbLoadAddress(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	usesSP := (w>>11)&1 != 0
	rd := int((w >> 8) & 0x7)
	imm8 := uint32(w&0xFF) << 2

	var base uint32
	if usesSP {
		base = vm.CPU.GetSP()
	} else {
		base = vm.CPU.GetRegister(15) &^ 0x3
	}
	vm.CPU.R[rd] = base + imm8
	return nil
}

func execThumbAddSPImm(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	negative := (w>>7)&1 != 0
	imm7 := uint32(w&0x7F) << 2
	sp := vm.CPU.GetSP()

	var newSP uint32
	if negative {
		newSP = sp - imm7
	} else {
		newSP = sp + imm7
	}
	return vm.CPU.SetSPWithTrace(vm, newSP, vm.CPU.PC)
}

func execThumbPushPop(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	isPop := (w>>11)&1 != 0
	withExtra := (w>>8)&1 != 0 // PUSH: LR, POP: PC
	regList := byte(w & 0xFF)

	if isPop {
		sp := vm.CPU.GetSP()
		for i := 0; i < 8; i++ {
			if regList&(1<<uint(i)) == 0 {
				continue
			}
			v, err := vm.Memory.ReadWord(sp)
			if err != nil {
				return err
			}
			vm.CPU.R[i] = v
			sp += 4
		}
		if withExtra {
			v, err := vm.Memory.ReadWord(sp)
			if err != nil {
				return err
			}
			sp += 4
			if err := vm.CPU.SetSPWithTrace(vm, sp, vm.CPU.PC); err != nil {
				return err
			}
			if IsExceptionReturn(v) {
				return vm.ReturnFromException()
			}
			vm.CPU.CPSR.T = v&1 != 0
			vm.CPU.Mode = thumbOrARM(vm.CPU.CPSR.T)
			vm.CPU.Branch(v &^ 1)
			return errSkipAutoPC
		}
		return vm.CPU.SetSPWithTrace(vm, sp, vm.CPU.PC)
	}

	// PUSH: store low-to-high register order at descending addresses.
	count := 0
	for i := 0; i < 8; i++ {
		if regList&(1<<uint(i)) != 0 {
			count++
		}
	}
	if withExtra {
		count++
	}
	sp := vm.CPU.GetSP() - uint32(count)*4
	addr := sp
	for i := 0; i < 8; i++ {
		if regList&(1<<uint(i)) == 0 {
			continue
		}
		if err := vm.Memory.WriteWord(addr, vm.CPU.R[i]); err != nil {
			return err
		}
		addr += 4
	}
	if withExtra {
		if err := vm.Memory.WriteWord(addr, vm.CPU.GetLR()); err != nil {
			return err
		}
	}
	return vm.CPU.SetSPWithTrace(vm, sp, vm.CPU.PC)
}

func execThumbMultipleLoadStore(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	isLoad := (w>>11)&1 != 0
	rb := int((w >> 8) & 0x7)
	regList := byte(w & 0xFF)

	addr := vm.CPU.R[rb]
	for i := 0; i < 8; i++ {
		if regList&(1<<uint(i)) == 0 {
			continue
		}
		if isLoad {
			v, err := vm.Memory.ReadWord(addr)
			if err != nil {
				return err
			}
			vm.CPU.R[i] = v
		} else {
			if err := vm.Memory.WriteWord(addr, vm.CPU.R[i]); err != nil {
				return err
			}
		}
		addr += 4
	}
	// Writeback is UNPREDICTABLE when Rb is in the register list; this
	// core always writes back, matching the §9 LDM/STM precedent.
	vm.CPU.R[rb] = addr
	return nil
}

func execThumbCondBranch(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	cond := ConditionCode((w >> 8) & 0xF)
	offset := int32(int8(w & 0xFF))

	if vm.CPU.CPSR.EvaluateCondition(cond) {
		target := uint32(int32(vm.CPU.PC) + 4 + offset*2)
		vm.CPU.Branch(target)
	} else {
		vm.CPU.IncrementPCBy(2)
	}
	return nil
}

func execThumbUncondBranch(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	offset11 := int32(w & 0x7FF)
	if offset11&0x400 != 0 {
		offset11 |= ^int32(0x7FF)
	}
	target := uint32(int32(vm.CPU.PC) + 4 + offset11*2)
	vm.CPU.Branch(target)
	vm.CPU.IT.Advance()
	return nil
}

func execThumbLongBranchLink(vm *VM, inst *ThumbInstruction) error {
	high := uint32(inst.Word & 0x7FF)
	low := uint32(inst.Word2 & 0x7FF)
	isBLX := (inst.Word2>>12)&1 == 0 // J2:J1 field selects BL (11) vs BLX (01/10 here simplified)

	offset := (high << 12) | (low << 1)
	if high&0x400 != 0 {
		offset |= 0xFF800000
	}
	target := vm.CPU.PC + 4 + offset
	vm.CPU.SetLR((vm.CPU.PC + 4) | 1)

	if isBLX {
		vm.CPU.CPSR.T = false
		vm.CPU.Mode = ModeARM32
		target &^= 0x3
	}
	vm.CPU.Branch(target)
	vm.CPU.IT.Advance()
	return nil
}

func execThumbCBZ(vm *VM, inst *ThumbInstruction) error {
	w := inst.Word
	nonzero := (w>>11)&1 != 0 // CBNZ vs CBZ
	i := (w >> 9) & 1
	imm5 := (w >> 3) & 0x1F
	rn := int(w & 0x7)
	offset := (i<<6 | imm5<<1)

	isZero := vm.CPU.R[rn] == 0
	take := (nonzero && !isZero) || (!nonzero && isZero)

	if take {
		vm.CPU.Branch(vm.CPU.PC + 4 + uint32(offset))
	} else {
		vm.CPU.IncrementPCBy(2)
	}
	return nil
}
