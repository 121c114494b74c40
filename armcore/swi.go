package armcore

// ExecuteSWI executes a software interrupt (SWI/SVC) in ARM state.
//
// SWI #0 is this simulator's own debug-exit convention, carried over
// from the ARM2 interpreter this package began as: it halts the VM
// without touching the exception vector table, so a bare program with
// no installed handlers can still signal completion. Any other SWI
// number is delivered through the standard exception path (matching
// ThumbSoftwareInterrupt in thumb_exec.go), so guest code that installs
// a vector-table handler at ExcSWI sees the same stacking/dispatch
// Thumb SVC does.
func ExecuteSWI(vm *VM, inst *Instruction) error {
	swiNum := inst.Opcode & SWIMask

	if swiNum == SWIHalt {
		vm.State = StateHalted
		vm.CPU.IncrementPC()
		return nil
	}

	return vm.RaiseException(ExcSWI)
}
