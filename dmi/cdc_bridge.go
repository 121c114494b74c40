package dmi

import "github.com/corefleet/simdbg/cdc"

// NewCDCBridge returns a callback matching jtag.TAP.OnDMIRequest's
// signature that carries every DBUS scan across a cdc.Synchronizer
// before it reaches d, so the JTAG TCK domain and the DM's system-clock
// domain are never coupled directly (spec.md §4.7, §6). This simulator
// runs both domains on the same goroutine, so the crossing is driven
// synchronously here rather than by two independent Run loops: Submit
// latches the request, Poll is ticked until the re-clocked valid strobe
// settles, HandleDMI services it once visible, and Accept/AckObserved
// close out the four-phase handshake before the result is returned to
// the TAP. A concurrent JTAG driver could replace this function with
// two goroutines polling the same Synchronizer without changing dmi or
// jtag at all.
func NewCDCBridge(sync *cdc.Synchronizer, d *DM) func(addr uint32, data uint32, op uint8) (result uint32, status uint8) {
	return func(addr uint32, data uint32, op uint8) (result uint32, status uint8) {
		req := cdc.Request{Write: op == 2, Addr: addr, Data: data}
		for !sync.Submit(req) {
			// a prior request hasn't been acknowledged yet; drain it
			// before admitting this one, matching real hardware where
			// the TCK side must hold off until accepted is observed.
			if _, visible := sync.Poll(); visible {
				sync.Accept()
				sync.AckObserved()
			}
		}

		var crossed *cdc.Request
		var visible bool
		for !visible {
			crossed, visible = sync.Poll()
		}

		op2 := uint8(1)
		if crossed.Write {
			op2 = 2
		}
		result, status = d.HandleDMI(crossed.Addr, crossed.Data, op2)

		sync.Accept()
		sync.AckObserved()
		return result, status
	}
}
