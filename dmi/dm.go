package dmi

import (
	"fmt"
	"log/slog"
)

// dmState is the Debug Module's two-state request FSM (spec.md §4.8).
type dmState int

const (
	dmIdle dmState = iota
	dmAccess
)

// DM is the Debug Module: the DMI register file plus the array of harts
// it controls. One DM instance serves every DBUS scan the JTAG TAP
// forwards through OnDMIRequest.
type DM struct {
	regs  RegisterFile
	harts []Target
	state dmState

	abstract abstractFSM

	// log receives one structured record per DBUS scan when non-nil
	// (set via SetLogger); nil by default so unit tests and callers
	// that never opt in pay no logging cost at all.
	log *slog.Logger
}

// New returns a Debug Module driving harts, indexed as DMI's hartsel
// selects them.
func New(harts []Target) *DM {
	return &DM{harts: harts}
}

// SetLogger attaches a structured logger (obslog.New or any
// *slog.Logger) that HandleDMI reports every DBUS transaction to at
// debug level. Pass nil to stop logging.
func (d *DM) SetLogger(log *slog.Logger) {
	d.log = log
}

// HandleDMI services one DBUS scan: op 1=read, 2=write, per spec.md §6.
// It is wired directly as a jtag.TAP's OnDMIRequest callback.
func (d *DM) HandleDMI(addr uint32, data uint32, op uint8) (result uint32, status uint8) {
	d.state = dmAccess
	defer func() { d.state = dmIdle }()

	switch op {
	case 1: // read
		v, err := d.read(addr)
		if err != nil {
			d.logDMI("dmi read failed", addr, data, op, err)
			return 0, 2 // failed
		}
		d.logDMI("dmi read", addr, v, op, nil)
		return v, 0
	case 2: // write
		if err := d.write(addr, data); err != nil {
			d.logDMI("dmi write failed", addr, data, op, err)
			return 0, 2
		}
		d.logDMI("dmi write", addr, data, op, nil)
		return data, 0
	default:
		return 0, 1 // reserved
	}
}

func (d *DM) logDMI(msg string, addr, data uint32, op uint8, err error) {
	if d.log == nil {
		return
	}
	if err != nil {
		d.log.Debug(msg, "addr", addr, "data", data, "op", op, "err", err)
		return
	}
	d.log.Debug(msg, "addr", addr, "data", data, "op", op)
}

// Read returns the current value of DMI register addr, used both by
// HandleDMI's read path and directly by tests/CLI tooling.
func (d *DM) Read(addr uint32) (uint32, error) {
	return d.read(addr)
}

// Write commits value into DMI register addr, used both by HandleDMI's
// write path and directly by tests/CLI tooling.
func (d *DM) Write(addr uint32, value uint32) error {
	return d.write(addr, value)
}

func (d *DM) read(addr uint32) (uint32, error) {
	switch {
	case addr == RegDMControl:
		return d.regs.DMControl, nil
	case addr == RegDMStatus:
		return d.dmstatus(), nil
	case addr == RegAbstractCS:
		return d.regs.AbstractCS, nil
	case addr == RegCommand:
		return d.regs.Command, nil
	case addr == RegAbstractAuto:
		return d.regs.AbstractAuto, nil
	case addr == RegHaltSum0:
		return d.haltsum0(), nil
	case addr >= RegData0 && addr <= RegData11:
		i := addr - RegData0
		v := d.regs.Data[i]
		d.maybeAutoExec(autoExecData, int(i))
		return v, nil
	case addr >= RegProgBuf0 && addr <= RegProgBuf15:
		i := addr - RegProgBuf0
		v := d.regs.ProgBuf[i]
		d.maybeAutoExec(autoExecProgBuf, int(i))
		return v, nil
	default:
		return 0, fmt.Errorf("dmi: register 0x%x not implemented", addr)
	}
}

func (d *DM) write(addr uint32, value uint32) error {
	switch {
	case addr == RegDMControl:
		d.regs.DMControl = value
		d.regs.HartSel = hartSelFromDMControl(value)
		d.applyDMControl(value)
		return nil
	case addr == RegAbstractCS:
		if value&uint32(abstractcsCmdErrMask) != 0 {
			d.regs.ClearCmdErr()
		}
		return nil
	case addr == RegCommand:
		d.regs.Command = value
		d.runCommand()
		return nil
	case addr == RegAbstractAuto:
		d.regs.AbstractAuto = value
		return nil
	case addr >= RegData0 && addr <= RegData11:
		i := addr - RegData0
		d.regs.Data[i] = value
		d.maybeAutoExec(autoExecData, int(i))
		return nil
	case addr >= RegProgBuf0 && addr <= RegProgBuf15:
		i := addr - RegProgBuf0
		d.regs.ProgBuf[i] = value
		d.maybeAutoExec(autoExecProgBuf, int(i))
		return nil
	default:
		return fmt.Errorf("dmi: register 0x%x not implemented", addr)
	}
}

// applyDMControl actions dmcontrol's request bits against the currently
// selected hart(s) (hasel unsupported, so always exactly one hart).
func (d *DM) applyDMControl(value uint32) {
	h := d.selectedHart()
	if h == nil {
		return
	}
	if value&dmcontrolHaltReq != 0 {
		h.RequestHalt()
	}
	if value&dmcontrolResumeReq != 0 {
		h.Resume()
	}
	if value&dmcontrolAckHavereset != 0 {
		h.AckReset()
	}
}

func (d *DM) selectedHart() Target {
	if d.regs.HartSel < 0 || d.regs.HartSel >= len(d.harts) {
		return nil
	}
	return d.harts[d.regs.HartSel]
}

// dmstatus aggregates the selected hart's state into the bit layout
// spec.md §4.8 names; with hasel unsupported, "all" and "any" always
// agree (exactly one hart is ever selected).
func (d *DM) dmstatus() uint32 {
	v := uint32(dmstatusVersion)
	h := d.selectedHart()
	if h == nil {
		v |= dmstatusAllUnavail | dmstatusAnyUnavail
		return v
	}
	if h.Halted() {
		v |= dmstatusAllHalted | dmstatusAnyHalted
	} else {
		v |= dmstatusAllRunning | dmstatusAnyRunning
	}
	if h.Unavailable() {
		v |= dmstatusAllUnavail | dmstatusAnyUnavail
	}
	if h.HaveReset() {
		v |= dmstatusAllHaveReset | dmstatusAnyHaveReset
	}
	return v
}

// haltsum0 surfaces the halted bitmap across the first 32 harts.
func (d *DM) haltsum0() uint32 {
	var bitmap uint32
	for i, h := range d.harts {
		if i >= 32 {
			break
		}
		if h.Halted() {
			bitmap |= 1 << uint(i)
		}
	}
	return bitmap
}

// autoExecKind distinguishes which register window a write/read landed
// in, for abstractauto's bit layout (data[11:0] then progbuf[15:0]).
type autoExecKind int

const (
	autoExecData autoExecKind = iota
	autoExecProgBuf
)

// maybeAutoExec re-fires the last command if abstractauto's bit for the
// touched data[i]/progbuf[i] register is set and no sticky error is
// pending, per spec.md §4.8's "Auto-exec" rule.
func (d *DM) maybeAutoExec(kind autoExecKind, index int) {
	if d.regs.CmdErr() != CmdErrNone {
		return
	}
	var bit uint32
	switch kind {
	case autoExecData:
		bit = 1 << uint(index)
	case autoExecProgBuf:
		bit = 1 << uint(12+index)
	}
	if d.regs.AbstractAuto&bit == 0 {
		return
	}
	d.runCommand()
}
