package riscv

import (
	"fmt"

	"github.com/corefleet/simdbg/bus"
	"github.com/corefleet/simdbg/instrtab"
)

// Controller owns every hart in a simulated RISC-V system, the bus
// fabric they share, and the reservation set backing LR/SC across
// harts (SPEC_FULL.md §5).
type Controller struct {
	Harts  []*Hart
	Fabric *bus.Fabric
	Table  *instrtab.Table[uint32]

	reservations *ReservationSet
}

// NewController builds a Controller with nHarts harts sharing one
// fabric and decode table; harts are not started until Start is
// called.
func NewController(nHarts int, fabric *bus.Fabric) *Controller {
	c := &Controller{
		Fabric:       fabric,
		Table:        NewDecodeTable(),
		reservations: NewReservationSet(),
	}
	for i := 0; i < nHarts; i++ {
		c.Harts = append(c.Harts, NewHart(uint64(i), fabric, c.Table, c.reservations))
	}
	return c
}

// Start launches every hart's Run goroutine.
func (c *Controller) Start() {
	for _, h := range c.Harts {
		go h.Run()
	}
}

// Stop signals every hart to exit and waits for them.
func (c *Controller) Stop() {
	for _, h := range c.Harts {
		h.Stop()
	}
}

// Hart returns the hart with the given index, per DMI's hartsel field.
func (c *Controller) Hart(index int) (*Hart, error) {
	if index < 0 || index >= len(c.Harts) {
		return nil, fmt.Errorf("hart index %d out of range (have %d harts)", index, len(c.Harts))
	}
	return c.Harts[index], nil
}

// PostInterrupt sets the named mip bit on a hart, used by the debug
// transport and by simulated peripherals to request a software/timer/
// external interrupt.
func (c *Controller) PostInterrupt(hartIndex int, bit uint64) error {
	h, err := c.Hart(hartIndex)
	if err != nil {
		return err
	}
	h.CSR.Write(CSRMip, h.CSR.Read(CSRMip)|bit)
	return nil
}
