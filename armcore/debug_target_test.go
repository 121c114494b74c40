package armcore

import "testing"

func TestHaltedReflectsHaltedAndBreakpointStates(t *testing.T) {
	vm := NewVM()
	vm.State = StateRunning
	if vm.Halted() {
		t.Error("StateRunning reported as halted")
	}
	vm.State = StateHalted
	if !vm.Halted() {
		t.Error("StateHalted not reported as halted")
	}
	vm.State = StateBreakpoint
	if !vm.Halted() {
		t.Error("StateBreakpoint not reported as halted")
	}
}

func TestRequestHaltAndResume(t *testing.T) {
	vm := NewVM()
	vm.State = StateRunning
	vm.RequestHalt()
	if !vm.Halted() {
		t.Error("RequestHalt did not halt the VM")
	}
	vm.Resume()
	if vm.Halted() {
		t.Error("Resume did not un-halt the VM")
	}
}

func TestHaveResetAckReset(t *testing.T) {
	vm := NewVM()
	if !vm.HaveReset() {
		t.Error("a fresh VM should report haveReset until acknowledged")
	}
	vm.AckReset()
	if vm.HaveReset() {
		t.Error("AckReset did not clear haveReset")
	}
	vm.Reset()
	if !vm.HaveReset() {
		t.Error("Reset did not set haveReset again")
	}
}

func TestReadWriteRegisterGPR(t *testing.T) {
	vm := NewVM()
	if err := vm.WriteRegister(3, 0xDEADBEEF); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	v, err := vm.ReadRegister(3)
	if err != nil {
		t.Fatalf("ReadRegister: %v", err)
	}
	if v != 0xDEADBEEF {
		t.Errorf("r3 = 0x%x, want 0xDEADBEEF", v)
	}
}

func TestReadWriteRegisterCPSR(t *testing.T) {
	vm := NewVM()
	if err := vm.WriteRegister(regnoCPSR, 0xF0000010); err != nil {
		t.Fatalf("WriteRegister(CPSR): %v", err)
	}
	v, err := vm.ReadRegister(regnoCPSR)
	if err != nil {
		t.Fatalf("ReadRegister(CPSR): %v", err)
	}
	if uint32(v) != 0xF0000010 {
		t.Errorf("CPSR round trip = 0x%x, want 0xF0000010", v)
	}
}

func TestReadRegisterOutOfRange(t *testing.T) {
	vm := NewVM()
	if _, err := vm.ReadRegister(17); err == nil {
		t.Error("expected an error reading register 17")
	}
}

func TestReadWriteMemoryBySizes(t *testing.T) {
	vm := NewVM()
	addr := uint64(DataSegmentStart)

	if err := vm.WriteMemory(addr, 4, 0x11223344); err != nil {
		t.Fatalf("WriteMemory(4): %v", err)
	}
	v, err := vm.ReadMemory(addr, 4)
	if err != nil {
		t.Fatalf("ReadMemory(4): %v", err)
	}
	if v != 0x11223344 {
		t.Errorf("word round trip = 0x%x, want 0x11223344", v)
	}

	if err := vm.WriteMemory(addr, 1, 0xAB); err != nil {
		t.Fatalf("WriteMemory(1): %v", err)
	}
	v, _ = vm.ReadMemory(addr, 1)
	if v != 0xAB {
		t.Errorf("byte round trip = 0x%x, want 0xAB", v)
	}
}

// TestRunProgramBufferMovesRegisterAndRestoresPC stages a single "MOV
// r0, #0x2A" word and confirms it executes against live register state
// without disturbing the VM's resumed PC.
func TestRunProgramBufferMovesRegisterAndRestoresPC(t *testing.T) {
	vm := NewVM()
	vm.CPU.PC = CodeSegmentStart
	vm.State = StateHalted

	const movR0Imm2A = 0xE3A0002A // MOV r0, #0x2A
	if err := vm.RunProgramBuffer([]uint32{movR0Imm2A}); err != nil {
		t.Fatalf("RunProgramBuffer: %v", err)
	}

	if got := vm.CPU.GetRegister(0); got != 0x2A {
		t.Errorf("r0 = 0x%x, want 0x2A", got)
	}
	if vm.CPU.PC != CodeSegmentStart {
		t.Errorf("PC = 0x%x, want restored to 0x%x", vm.CPU.PC, CodeSegmentStart)
	}
	if vm.State != StateHalted {
		t.Errorf("State = %v, want restored to StateHalted", vm.State)
	}
}
