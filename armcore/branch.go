package armcore

import ()

// ExecuteBranch executes branch instructions (B, BL, BX)
func ExecuteBranch(vm *VM, inst *Instruction) error {
	link := (inst.Opcode >> 24) & 0x1 // L bit: 1=BL (branch with link), 0=B (branch)

	// Extract 24-bit signed offset and sign-extend to 32 bits
	offset := inst.Opcode & 0x00FFFFFF

	// Sign extend if bit 23 is set
	if (offset & 0x00800000) != 0 {
		offset |= 0xFF000000
	}

	// Offset is in words, shift left by 2 to get byte offset
	// Add 8 to account for PC being 2 instructions ahead (ARM pipeline)
	targetAddr := vm.CPU.PC + 8 + (offset << 2)

	// If this is a branch with link, save return address
	if link == 1 {
		vm.CPU.BranchWithLink(targetAddr)
	} else {
		vm.CPU.Branch(targetAddr)
	}

	return nil
}

// ExecuteBranchExchange executes BX/BLX(register), ARMv7's ARM/Thumb
// interworking branch: bit 0 of the target selects Thumb (1) or ARM (0)
// state, per spec.md §3's CPSR.T and §4.4/§4.5's mode-switch behavior.
// A target equal to the EXC_RETURN sentinel instead triggers exception
// unstacking (spec.md §4.4).
func ExecuteBranchExchange(vm *VM, inst *Instruction) error {
	rm := int(inst.Opcode & 0xF)
	targetAddr := vm.CPU.GetRegister(rm)

	if IsExceptionReturn(targetAddr) {
		return vm.ReturnFromException()
	}

	// BLX(register): bit 5 set distinguishes BLX from BX in our encoding
	// check (bits [27:4] == 0x12FFF3 vs 0x12FFF1).
	isLink := (inst.Opcode & 0x0FFFFFF0) == 0x012FFF30
	if isLink {
		vm.CPU.SetLR(vm.CPU.PC + 4)
	}

	vm.CPU.CPSR.T = targetAddr&1 != 0
	vm.CPU.Mode = thumbOrARM(vm.CPU.CPSR.T)
	vm.CPU.Branch(targetAddr &^ 1)

	return nil
}
