package armcore

// Banks holds the banked register sets ARMv7 swaps in on a mode change.
// Per spec.md §3 ProgramStatus: "writes to M[4:0] select one of seven CPU
// modes and swap banked SP/LR/SPSR." FIQ additionally banks R8-R12; every
// other privileged mode banks only SP (R13) and LR (R14).
type Banks struct {
	// fiqR8_12 holds FIQ's private R8-R12, used only while CPSR.M==ModeFIQ.
	fiqR8_12 [5]uint32
	// userR8_12 holds the User/System-mode R8-R12, restored on leaving FIQ.
	userR8_12 [5]uint32

	sp   map[Mode]uint32
	lr   map[Mode]uint32
	spsr map[Mode]CPSR
}

// NewBanks returns a zeroed bank set for all seven modes.
func NewBanks() Banks {
	return Banks{
		sp:   make(map[Mode]uint32, 7),
		lr:   make(map[Mode]uint32, 7),
		spsr: make(map[Mode]CPSR, 7),
	}
}

// spsrBank maps a mode to the bank its SPSR is stored under. User and
// System modes have no SPSR (there is nothing to return from); callers
// must not read/write SPSR while in those modes.
func spsrBank(m Mode) (Mode, bool) {
	switch m {
	case ModeUser, ModeSystem:
		return 0, false
	default:
		return m, true
	}
}

// SwitchMode banks out the current mode's SP/LR/R8-12(FIQ only) and banks
// in the target mode's, then updates CPSR.M. It is the single helper
// spec.md §9 asks for to centralize mode-switch bookkeeping.
func (c *CPU) SwitchMode(target Mode) {
	current := c.CPSR.M
	if current == target {
		return
	}

	// Bank out SP/LR for the mode we're leaving.
	c.Banks.sp[current] = c.R[SP]
	c.Banks.lr[current] = c.R[LR]

	if current == ModeFIQ {
		copy(c.Banks.fiqR8_12[:], c.R[R8:R12+1])
		copy(c.R[R8:R12+1], c.Banks.userR8_12[:])
	} else if target == ModeFIQ {
		copy(c.Banks.userR8_12[:], c.R[R8:R12+1])
		copy(c.R[R8:R12+1], c.Banks.fiqR8_12[:])
	}

	// Bank in SP/LR for the mode we're entering (defaults to zero until
	// that mode's boot code has initialized its own stack).
	c.R[SP] = c.Banks.sp[target]
	c.R[LR] = c.Banks.lr[target]

	c.CPSR.M = target
}

// WriteSPSR stores value as the SPSR of the current mode. A no-op in
// User/System mode, which have no SPSR, matching real hardware (writes
// there are UNPREDICTABLE; we simply drop them).
func (c *CPU) WriteSPSR(value CPSR) {
	if bank, ok := spsrBank(c.CPSR.M); ok {
		c.Banks.spsr[bank] = value
	}
}

// ReadSPSR returns the current mode's SPSR and whether one exists.
func (c *CPU) ReadSPSR() (CPSR, bool) {
	bank, ok := spsrBank(c.CPSR.M)
	if !ok {
		return CPSR{}, false
	}
	spsr, exists := c.Banks.spsr[bank]
	return spsr, exists
}

// RestoreCPSR copies the current mode's SPSR into CPSR, switching to the
// mode it records (exception return). A no-op when no SPSR exists.
func (c *CPU) RestoreCPSR() {
	if spsr, ok := c.ReadSPSR(); ok {
		c.SwitchMode(spsr.M)
		c.CPSR = spsr
	}
}
