package riscv

import (
	"fmt"
	"sync"

	"github.com/corefleet/simdbg/bus"
	"github.com/corefleet/simdbg/instrtab"
)

// PrivilegeLevel is the RISC-V privilege mode; only Machine mode is
// implemented (spec's stated Non-goal excludes MMU/TLB-backed S-mode).
type PrivilegeLevel int

const (
	PrivMachine PrivilegeLevel = 3
)

// Control messages a debug transport (DMI) or CLI sends to a running
// Hart goroutine, mirrored on rcornwell-S370's emu/core master-packet
// channel.
type ControlMsg int

const (
	CtrlRun ControlMsg = iota
	CtrlHalt
	CtrlStep
)

// Hart is one RISC-V hardware thread: register state, CSR file, and
// the bus fabric it shares with its sibling harts (spec.md §5).
type Hart struct {
	Regs  Registers
	FRegs FRegisters
	CSR   *CSRFile
	ID    uint64

	Fabric *bus.Fabric
	Table  *instrtab.Table[uint32]

	Reservations *ReservationSet

	Running bool
	halted  bool
	LastErr error

	Mcycle uint64

	haveReset bool

	done    chan struct{}
	control chan ControlMsg
	wg      sync.WaitGroup
}

// ReservationSet tracks the LR/SC reservation per hart, shared across a
// Core so an SC from hart B correctly invalidates hart A's reservation
// on the same address (spec.md §4's atomic semantics).
type ReservationSet struct {
	mu      sync.Mutex
	holders map[uint64]uint64 // address -> hart ID holding the reservation
}

// NewReservationSet returns an empty reservation tracker.
func NewReservationSet() *ReservationSet {
	return &ReservationSet{holders: make(map[uint64]uint64)}
}

// Acquire records hart as holding the reservation on addr (LR).
func (r *ReservationSet) Acquire(hart, addr uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holders[addr] = hart
}

// Check reports whether hart still holds the reservation on addr, and
// clears it regardless (SC always consumes any reservation it finds,
// successful or not, per the ISA).
func (r *ReservationSet) Check(hart, addr uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	holder, ok := r.holders[addr]
	delete(r.holders, addr)
	return ok && holder == hart
}

// InvalidateAll clears every reservation, used when any hart performs a
// plain (non-AMO) store that could alias a pending LR per the
// architecture's permissive-but-safe invalidation rule.
func (r *ReservationSet) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.holders {
		delete(r.holders, k)
	}
}

// NewHart returns a hart reset into machine mode with mstatus.MIE clear
// (interrupts masked until firmware enables them).
func NewHart(id uint64, fabric *bus.Fabric, table *instrtab.Table[uint32], reservations *ReservationSet) *Hart {
	h := &Hart{
		ID:           id,
		CSR:          NewCSRFile(),
		Fabric:       fabric,
		Table:        table,
		Reservations: reservations,
		haveReset:    true,
		done:         make(chan struct{}),
		control:      make(chan ControlMsg, 4),
	}
	h.CSR.Write(CSRMhartid, id)
	return h
}

// Step fetches, decodes, and executes one instruction (or, for a
// compressed 16-bit encoding, advances PC by 2 instead of 4).
func (h *Hart) Step() error {
	if h.halted {
		return fmt.Errorf("hart %d is halted", h.ID)
	}

	w16, err := readXU(h.Fabric, h.Regs.PC, 2, uint8(h.ID))
	if err != nil {
		h.halted = true
		h.LastErr = err
		return h.raiseTrap(excInstructionAccessFault, h.Regs.PC)
	}

	if uint16(w16)&0x3 != 0x3 {
		// Compressed 16-bit instruction.
		if err := h.executeCompressed(uint16(w16)); err != nil {
			h.halted = true
			h.LastErr = err
			return err
		}
		h.Mcycle++
		return nil
	}

	w32lo := uint32(w16)
	w16b, err := readXU(h.Fabric, h.Regs.PC+2, 2, uint8(h.ID))
	if err != nil {
		h.halted = true
		h.LastErr = err
		return h.raiseTrap(excInstructionAccessFault, h.Regs.PC)
	}
	word := w32lo | (uint32(w16b) << 16)

	decoded, err := Decode(h.Table, word)
	if err != nil {
		if rerr := h.raiseTrap(excIllegalInstruction, uint64(word)); rerr != nil {
			return rerr
		}
		return nil
	}

	if err := h.execute(decoded); err != nil {
		h.halted = true
		h.LastErr = err
		return err
	}
	h.Mcycle++
	return nil
}

// Run drives the hart's goroutine loop, grounded on the teacher's
// emu/core Start: a done channel for shutdown and a control channel for
// run/halt/step requests from a debug transport.
func (h *Hart) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			return
		case msg := <-h.control:
			switch msg {
			case CtrlRun:
				h.Running = true
			case CtrlHalt:
				h.Running = false
			case CtrlStep:
				h.Running = false
				if err := h.Step(); err != nil {
					h.LastErr = err
				}
			}
		default:
			if h.Running && !h.halted {
				if err := h.Step(); err != nil {
					h.Running = false
				}
			}
		}
	}
}

// Stop signals the hart's Run goroutine to exit and waits for it.
func (h *Hart) Stop() {
	close(h.done)
	h.wg.Wait()
}

// Send delivers a control message to a running hart.
func (h *Hart) Send(msg ControlMsg) {
	h.control <- msg
}
