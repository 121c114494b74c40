package armcore

import (
	"fmt"
)

// ExecutePSRTransfer executes PSR transfer instructions (MRS, MSR)
func ExecutePSRTransfer(vm *VM, inst *Instruction) error {
	// MRS/MSR instruction format:
	// Bits [27:26] = 00
	// Bit [25] = 1 (distinguishes from other instructions)
	// Bit [22] = PSR type (0=CPSR, 1=SPSR) - we only support CPSR for now
	// Bit [21] = Direction (0=MRS read PSR, 1=MSR write PSR)

	isMSR := (inst.Opcode >> MultiplyAShift) & Mask1Bit // 1=MSR, 0=MRS

	if isMSR == 0 {
		return executeMRS(vm, inst)
	}
	return executeMSR(vm, inst)
}

// executeMRS implements MRS (Move PSR to Register)
// Syntax: MRS{cond} Rd, PSR
// Reads CPSR into a general-purpose register
func executeMRS(vm *VM, inst *Instruction) error {
	rd := int((inst.Opcode >> RdShift) & Mask4Bit) // Destination register

	// R15 (PC) should not be used as destination
	if rd == PCRegister {
		return fmt.Errorf("MRS: R15 (PC) cannot be used as destination register")
	}

	// Read CPSR value
	cpsrValue := vm.CPU.CPSR.ToUint32()

	// Store in destination register - if destination is SP, use SetSPWithTrace for bounds validation
	if rd == SP {
		if err := vm.CPU.SetSPWithTrace(vm, cpsrValue, inst.Address); err != nil {
			vm.State = StateError
			vm.LastError = err
			return err
		}
	} else {
		vm.CPU.SetRegister(rd, cpsrValue)
	}

	// Increment PC
	vm.CPU.IncrementPC()
	// Note: IncrementCycles is called by Step() in executor.go

	return nil
}

// executeMSR implements MSR (Move Register/Immediate to PSR)
// Syntax: MSR{cond} PSR, Rm
// Writes a general-purpose register value to CPSR
func executeMSR(vm *VM, inst *Instruction) error {
	// Check if immediate or register source
	immediateBit := (inst.Opcode >> IBitShift) & Mask1Bit

	var sourceValue uint32

	if immediateBit == 1 {
		// Immediate value (rare for MSR, but supported)
		immediate := inst.Opcode & ImmediateValueMask
		rotate := ((inst.Opcode >> RotationShift) & RotationMask) * RotationMultiplier
		// Rotate right
		if rotate == 0 {
			sourceValue = immediate
		} else {
			sourceValue = (immediate >> rotate) | (immediate << (BitsInWord - rotate))
		}
	} else {
		// Register source
		rm := int(inst.Opcode & Mask4Bit)

		// R15 (PC) should not be used as source
		if rm == PCRegister {
			return fmt.Errorf("MSR: R15 (PC) cannot be used as source register")
		}

		sourceValue = vm.CPU.GetRegister(rm)
	}

	// Field mask bits [19:16]: f=flags(31:24), s=status(23:16), x=extension(15:8),
	// c=control(7:0). Only the masked bytes of CPSR are replaced; unprivileged
	// (User-mode) code is additionally restricted to the f field only, per the
	// ARM architecture reference's MSR field-mask rules.
	fieldMask := (inst.Opcode >> 16) & 0xF
	writableMask := fieldMask
	if vm.CPU.CPSR.M == ModeUser {
		writableMask &= 0x8 // User mode may only touch the flags byte
	}

	current := vm.CPU.CPSR.ToUint32()
	var byteMask uint32
	if writableMask&0x1 != 0 {
		byteMask |= 0x000000FF // c: control (mode, T, I, F, A)
	}
	if writableMask&0x2 != 0 {
		byteMask |= 0x0000FF00 // x: extension (J)
	}
	if writableMask&0x4 != 0 {
		byteMask |= 0x00FF0000 // s: status (GE, E)
	}
	if writableMask&0x8 != 0 {
		byteMask |= 0xFF000000 // f: flags (N, Z, C, V, Q)
	}

	merged := (current &^ byteMask) | (sourceValue & byteMask)
	targetMode := Mode(merged & 0x1F)
	oldMode := vm.CPU.CPSR.M

	vm.CPU.CPSR.FromUint32(merged)
	if byteMask&0xFF != 0 && targetMode != oldMode {
		// FromUint32 already wrote CPSR.M = targetMode; restore oldMode
		// momentarily so SwitchMode's bank-out logic sees the mode we're
		// actually leaving, then let it bank in targetMode.
		vm.CPU.CPSR.M = oldMode
		vm.CPU.SwitchMode(targetMode)
	}
	vm.CPU.Mode = thumbOrARM(vm.CPU.CPSR.T)

	// Increment PC
	vm.CPU.IncrementPC()
	// Note: IncrementCycles is called by Step() in executor.go

	return nil
}
