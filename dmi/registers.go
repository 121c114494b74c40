package dmi

// DMI register addresses implemented, per the RISC-V external debug
// specification and spec.md §4.8.
const (
	RegData0        = 0x04
	RegData11       = 0x0F
	RegDMControl    = 0x10
	RegDMStatus     = 0x11
	RegHartInfo     = 0x12
	RegAbstractCS   = 0x16
	RegCommand      = 0x17
	RegAbstractAuto = 0x18
	RegProgBuf0     = 0x20
	RegProgBuf15    = 0x2F
	RegHaltSum0     = 0x40
)

// dmcontrol bit positions.
const (
	dmcontrolDMActive   = 1 << 0
	dmcontrolAckHavereset = 1 << 28
	dmcontrolHaltReq    = 1 << 31
	dmcontrolResumeReq  = 1 << 30
	dmcontrolHartSelLo  = 6  // bits [15:6]
	dmcontrolHartSelHi  = 16 // bits [25:16]
)

// dmstatus bit positions (read-only, aggregated from the hart array).
const (
	dmstatusAllHalted     = 1 << 9
	dmstatusAnyHalted     = 1 << 8
	dmstatusAllRunning    = 1 << 11
	dmstatusAnyRunning    = 1 << 10
	dmstatusAllUnavail    = 1 << 13
	dmstatusAnyUnavail    = 1 << 12
	dmstatusAllHaveReset  = 1 << 19
	dmstatusAnyHaveReset  = 1 << 18
	dmstatusVersion       = 2 // version field value: debug spec 0.13/1.0
)

// abstractcs bit layout.
const (
	abstractcsBusy     = 1 << 12
	abstractcsCmdErrShift = 8
	abstractcsCmdErrMask  = 0x7 << abstractcsCmdErrShift
	abstractcsDataCount   = 12 // progbufsize/datacount fields, fixed here
)

// CmdErr values for abstractcs.cmderr, sticky until explicitly cleared
// by writing 1 to the field.
type CmdErr uint32

const (
	CmdErrNone       CmdErr = 0
	CmdErrBusy       CmdErr = 1
	CmdErrNotSupp    CmdErr = 2
	CmdErrException  CmdErr = 3
	CmdErrHaltResume CmdErr = 4
	CmdErrBusError   CmdErr = 5
	CmdErrOther      CmdErr = 7
)

// RegisterFile holds every DMI-addressable register: dmcontrol,
// abstractcs, command, abstractauto, the data/progbuf windows, and
// dmstatus/haltsum0's aggregation inputs (the hart array itself, held
// by *DM rather than here).
type RegisterFile struct {
	DMControl    uint32
	AbstractCS   uint32
	Command      uint32
	AbstractAuto uint32
	Data         [12]uint32
	ProgBuf      [16]uint32
	HartSel      int
}

// CmdErr extracts abstractcs.cmderr.
func (r *RegisterFile) CmdErr() CmdErr {
	return CmdErr((r.AbstractCS & abstractcsCmdErrMask) >> abstractcsCmdErrShift)
}

// SetCmdErr latches cmderr if it is not already set (sticky: the first
// error wins until explicitly acknowledged).
func (r *RegisterFile) SetCmdErr(e CmdErr) {
	if r.CmdErr() != CmdErrNone {
		return
	}
	r.AbstractCS = (r.AbstractCS &^ uint32(abstractcsCmdErrMask)) | (uint32(e) << abstractcsCmdErrShift)
}

// ClearCmdErr acknowledges the sticky cmderr field (host writes 1 to
// abstractcs.cmderr to clear it, per the debug spec).
func (r *RegisterFile) ClearCmdErr() {
	r.AbstractCS &^= uint32(abstractcsCmdErrMask)
}

// SetBusy sets or clears abstractcs.busy.
func (r *RegisterFile) SetBusy(busy bool) {
	if busy {
		r.AbstractCS |= abstractcsBusy
	} else {
		r.AbstractCS &^= abstractcsBusy
	}
}

// Busy reports abstractcs.busy.
func (r *RegisterFile) Busy() bool {
	return r.AbstractCS&abstractcsBusy != 0
}

// hartSelFromDMControl extracts the hartsel field (hasel=0 only, per
// spec.md §4.8: "lower hasel is not supported").
func hartSelFromDMControl(dmcontrol uint32) int {
	lo := (dmcontrol >> dmcontrolHartSelLo) & 0x3FF
	hi := (dmcontrol >> dmcontrolHartSelHi) & 0x3FF
	return int(hi<<10 | lo)
}
