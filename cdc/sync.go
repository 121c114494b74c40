// Package cdc implements the clock-domain-crossing handshake that
// carries one DMI request at a time from the JTAG TCK domain into the
// system-clock domain, per spec.md §4.7: a four-phase handshake with at
// most one request in flight, modeled as two goroutines (TCK side,
// system side) exchanging state over a small set of atomically-published
// registers rather than a raw channel, since the real hazard being
// modeled is metastability on an asynchronous valid strobe, not a queue.
package cdc

import "sync/atomic"

// Request is the bundle latched on the TCK side and re-clocked into the
// system domain: valid, write, addr, data, hardreset (spec.md §4.7).
type Request struct {
	Valid     bool
	Write     bool
	Addr      uint32
	Data      uint32
	HardReset bool
}

// Synchronizer is the two-flip-flop valid-strobe re-clocker plus the
// outgoing/acknowledgement registers of the four-phase handshake. Only
// one request may be in flight: Submit blocks (by returning false) until
// the system domain has accepted the previous request with Accept.
type Synchronizer struct {
	// outgoing is the request latched by the TCK domain, read by the
	// system domain once its re-clocked valid bit has settled.
	outgoing atomic.Pointer[Request]

	// sync0/sync1 are the two re-clocking flip-flops for the valid
	// strobe, advanced one at a time by Poll so a single read on the
	// system side never observes a metastable value for more than one
	// tick — the textbook two-flop synchronizer.
	sync0 atomic.Bool
	sync1 atomic.Bool

	// accepted is raised by the system domain once it has consumed
	// outgoing, and is itself re-clocked back across domains by the
	// caller via AckObserved, completing the four-phase handshake.
	accepted atomic.Bool
}

// New returns an idle synchronizer with no request in flight.
func New() *Synchronizer {
	return &Synchronizer{}
}

// Submit latches req into the outgoing register from the TCK domain. It
// returns false without latching anything if a prior request is still
// in flight (valid asserted but not yet acknowledged), matching real
// hardware where the TCK side must hold off until accepted is observed.
func (s *Synchronizer) Submit(req Request) bool {
	if s.outgoing.Load() != nil {
		return false
	}
	req.Valid = true
	s.outgoing.Store(&req)
	return true
}

// Poll advances the two re-clocking flip-flops by one system-clock tick
// and reports whether a re-clocked valid strobe is now visible
// (sync1==true) together with the request it carries. Call once per
// system-clock tick; the request is stable for reading once visible is
// true.
func (s *Synchronizer) Poll() (req *Request, visible bool) {
	current := s.outgoing.Load()
	s.sync1.Store(s.sync0.Load())
	s.sync0.Store(current != nil)
	return current, s.sync1.Load()
}

// Accept raises the accepted acknowledgement from the system domain once
// it has consumed the currently-visible request, and clears the
// outgoing register so Submit can admit the next request. This
// collapses the handshake's two re-clocking hops on the return path into
// one call since nothing downstream of accepted needs the same
// metastability treatment in this single-process simulation (no
// physical flip-flops to model on the way back, only Go memory
// visibility, already guaranteed by atomic.Bool).
func (s *Synchronizer) Accept() {
	s.accepted.Store(true)
	s.outgoing.Store(nil)
	s.sync0.Store(false)
	s.sync1.Store(false)
}

// AckObserved reports whether the TCK domain has seen its request
// accepted, and clears the flag so the next Submit starts from a clean
// handshake state.
func (s *Synchronizer) AckObserved() bool {
	return s.accepted.Swap(false)
}
