package dmi

import "fmt"

// abstractState is the five-state FSM spec.md §4.8 names for executing
// a `command` write: Idle, Init, Request, Response, WaitHalted.
type abstractState int

const (
	absIdle abstractState = iota
	absInit
	absRequest
	absResponse
	absWaitHalted
)

// abstractFSM holds the in-flight-command bookkeeping; runCommand below
// walks it through Init, Request and Response back to Idle synchronously
// and never enters WaitHalted (this simulator has no
// reason to model the two-tick Request/Response latency as real wall
// time, unlike the CDC handshake, since nothing here crosses a clock
// domain — spec.md §5 only requires a core to be able to suspend between
// the two phases, not that it always do so).
type abstractFSM struct {
	state abstractState
}

// command field layout (cmdtype in bits [31:24]); only cmdtype 0/1/2 are
// implemented, per spec.md §4.8.
const (
	cmdTypeRegister = 0
	cmdTypeQuick    = 1
	cmdTypeMemory   = 2
)

// control0 (register-access) sub-fields.
const (
	ctrl0PostExec     = 1 << 18
	ctrl0Write        = 1 << 16
	ctrl0TransferBit  = 1 << 17
	ctrl0RegnoMask    = 0xFFFF
)

// control2 (memory-access) sub-fields.
const (
	ctrl2Write     = 1 << 16
	ctrl2SizeShift = 20
	ctrl2SizeMask  = 0x7 << ctrl2SizeShift
	ctrl2PostInc   = 1 << 19
)

// runCommand executes d.regs.Command against the currently selected
// hart, per spec.md §4.8. A command that arrives while busy=1 sets
// cmderr=BUSY and is ignored outright (checked first, before the FSM
// even starts).
func (d *DM) runCommand() {
	if d.regs.Busy() {
		d.regs.SetCmdErr(CmdErrBusy)
		return
	}

	d.abstract.state = absInit
	d.regs.SetBusy(true)
	defer func() {
		d.regs.SetBusy(false)
		d.abstract.state = absIdle
	}()

	h := d.selectedHart()
	if h == nil {
		d.regs.SetCmdErr(CmdErrNotSupp)
		return
	}

	d.abstract.state = absRequest
	cmd := d.regs.Command
	cmdType := cmd >> 24

	var err error
	switch cmdType {
	case cmdTypeRegister:
		err = d.runRegisterAccess(h, cmd)
	case cmdTypeQuick:
		err = d.runQuickAccess(h)
	case cmdTypeMemory:
		err = d.runMemoryAccess(h, cmd)
	default:
		err = fmt.Errorf("dmi: unsupported command type %d", cmdType)
	}

	d.abstract.state = absResponse
	if err != nil {
		d.regs.SetCmdErr(classifyErr(err))
	}
}

// classifyErr maps an internal error into the cmderr value the debug
// spec expects the host to see; everything this layer doesn't have a
// more specific code for becomes "other".
func classifyErr(err error) CmdErr {
	if err == errBusFault {
		return CmdErrBusError
	}
	if err == errNotHalted {
		return CmdErrHaltResume
	}
	return CmdErrOther
}

var (
	errBusFault   = fmt.Errorf("dmi: underlying bus transaction failed")
	errNotHalted  = fmt.Errorf("dmi: hart not halted for abstract access")
)

// runRegisterAccess implements command type 0: quick CSR/GPR access via
// the core debug port, optionally followed by progbuf execution, per
// spec.md §4.8.
func (d *DM) runRegisterAccess(h Target, cmd uint32) error {
	if !h.Halted() {
		return errNotHalted
	}
	regno := cmd & ctrl0RegnoMask
	write := cmd&ctrl0Write != 0
	transfer := cmd&ctrl0TransferBit != 0

	if transfer {
		if write {
			if err := h.WriteRegister(regno, uint64(d.regs.Data[0])|uint64(d.regs.Data[1])<<32); err != nil {
				return errBusFault
			}
		} else {
			v, err := h.ReadRegister(regno)
			if err != nil {
				return errBusFault
			}
			d.regs.Data[0] = uint32(v)
			d.regs.Data[1] = uint32(v >> 32)
		}
	}

	if cmd&ctrl0PostExec != 0 {
		if err := h.RunProgramBuffer(d.regs.ProgBuf[:]); err != nil {
			return errBusFault
		}
	}
	return nil
}

// runQuickAccess implements command type 1: a transient halt, progbuf
// execution, then resume, per spec.md §4.8.
func (d *DM) runQuickAccess(h Target) error {
	wasHalted := h.Halted()
	h.RequestHalt()
	err := h.RunProgramBuffer(d.regs.ProgBuf[:])
	if !wasHalted {
		h.Resume()
	}
	if err != nil {
		return errBusFault
	}
	return nil
}

// runMemoryAccess implements command type 2: data2/data3 form the
// address, data0/data1 the value, with post-increment of the address by
// the access size. Per this repository's Open-Question-3 resolution
// (see DESIGN.md), the post-increment is rolled back if the underlying
// bus transaction reports an error, so a failed access never leaves
// data2/data3 pointing past the byte that actually failed — the host's
// cmderr=buserror retry path depends on the address still being correct.
func (d *DM) runMemoryAccess(h Target, cmd uint32) error {
	size := uint8(1) << ((cmd & ctrl2SizeMask) >> ctrl2SizeShift)
	write := cmd&ctrl2Write != 0
	postInc := cmd&ctrl2PostInc != 0

	addr := uint64(d.regs.Data[2]) | uint64(d.regs.Data[3])<<32

	var accessErr error
	if write {
		value := uint64(d.regs.Data[0]) | uint64(d.regs.Data[1])<<32
		accessErr = h.WriteMemory(addr, size, value)
	} else {
		v, err := h.ReadMemory(addr, size)
		accessErr = err
		if err == nil {
			d.regs.Data[0] = uint32(v)
			d.regs.Data[1] = uint32(v >> 32)
		}
	}

	if accessErr != nil {
		return errBusFault
	}

	if postInc {
		addr += uint64(size)
		d.regs.Data[2] = uint32(addr)
		d.regs.Data[3] = uint32(addr >> 32)
	}
	return nil
}
