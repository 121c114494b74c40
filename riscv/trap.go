package riscv

// Exception cause codes (mcause with the interrupt bit clear), the
// subset this core can actually raise.
const (
	excInstructionAccessFault = 1
	excIllegalInstruction     = 2
	excBreakpoint             = 3
	excLoadAccessFault        = 5
	excStoreAccessFault       = 7
	excEnvCallMMode           = 11
)

// interruptCauseBit marks mcause as an interrupt rather than an
// exception, per the privileged spec's mcause encoding (MSB set).
const interruptCauseBit = uint64(1) << 63

// raiseTrap implements the machine-mode trap-entry sequence: save mepc/
// mcause/mtval, push mstatus.MIE into MPIE and clear MIE, set MPP to
// the trapping privilege (always Machine here), and vector through
// mtvec. Direct mode (mtvec[1:0]==0) jumps to the base address for
// every cause; vectored mode (mtvec[1:0]==1) adds 4*cause for
// interrupts only, per the privileged architecture.
func (h *Hart) raiseTrap(cause uint64, tval uint64) error {
	mstatus := h.CSR.Read(CSRMstatus)
	mie := mstatus&mstatusMIE != 0
	mstatus &^= mstatusMPIE
	if mie {
		mstatus |= mstatusMPIE
	}
	mstatus &^= mstatusMIE
	mstatus &^= (mstatusMPP0 | mstatusMPP1)
	mstatus |= (mstatusMPP0 | mstatusMPP1) // MPP = Machine (11)
	h.CSR.Write(CSRMstatus, mstatus)

	h.CSR.Write(CSRMepc, h.Regs.PC)
	h.CSR.Write(CSRMcause, cause)
	h.CSR.Write(CSRMtval, tval)

	mtvec := h.CSR.Read(CSRMtvec)
	base := mtvec &^ 0x3
	mode := mtvec & 0x3
	if mode == 1 && cause&interruptCauseBit != 0 {
		base += 4 * (cause &^ interruptCauseBit)
	}
	h.Regs.PC = base
	return nil
}

// mret implements the MRET instruction: restore mstatus.MIE from MPIE,
// set MPIE, drop MPP back to User (this core only ever traps from and
// returns to Machine mode, but the field is still cleared per spec),
// and jump to mepc.
func (h *Hart) mret() {
	mstatus := h.CSR.Read(CSRMstatus)
	mpie := mstatus&mstatusMPIE != 0
	mstatus &^= mstatusMIE
	if mpie {
		mstatus |= mstatusMIE
	}
	mstatus |= mstatusMPIE
	h.CSR.Write(CSRMstatus, mstatus)
	h.Regs.PC = h.CSR.Read(CSRMepc)
}

// CheckInterrupts raises the highest-priority pending-and-enabled
// interrupt (external > software > timer, per the privileged spec's
// fixed priority order) if mstatus.MIE is set. Called once per Step
// from the hart's Run loop driver (hart/controller.go).
func (h *Hart) CheckInterrupts() {
	mstatus := h.CSR.Read(CSRMstatus)
	if mstatus&mstatusMIE == 0 {
		return
	}
	mie := h.CSR.Read(CSRMie)
	mip := h.CSR.Read(CSRMip)
	pending := mie & mip

	switch {
	case pending&MIPMEIP != 0:
		h.raiseTrap(interruptCauseBit|11, 0)
	case pending&MIPMSIP != 0:
		h.raiseTrap(interruptCauseBit|3, 0)
	case pending&MIPMTIP != 0:
		h.raiseTrap(interruptCauseBit|7, 0)
	}
}
