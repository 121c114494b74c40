package riscv

import (
	"fmt"

	"github.com/corefleet/simdbg/bus"
)

// Memory is a flat byte-addressed RAM segment implementing bus.Slave,
// the RISC-V side of the C1 Bus/Transaction abstraction shared with
// armcore (see SPEC_FULL.md §3). Unlike armcore's segmented Memory
// (code/data/stack with distinct permissions), a single hart's local
// memory here is one contiguous region; multi-region layouts are
// composed by attaching several Memory instances to one bus.Fabric at
// different base addresses.
type Memory struct {
	Base  uint64
	bytes []byte
}

// NewMemory allocates size bytes of RAM starting at base.
func NewMemory(base uint64, size int) *Memory {
	return &Memory{Base: base, bytes: make([]byte, size)}
}

// Contains implements bus.Slave.
func (m *Memory) Contains(addr uint64, size uint8) bool {
	if addr < m.Base {
		return false
	}
	end := addr - m.Base + uint64(size)
	return end <= uint64(len(m.bytes))
}

// Do implements bus.Slave: little-endian read/write of Xsize bytes.
func (m *Memory) Do(t *bus.Transaction) error {
	off := t.Addr - m.Base
	if off+uint64(t.Xsize) > uint64(len(m.bytes)) {
		return fmt.Errorf("riscv memory: address 0x%x out of range", t.Addr)
	}

	switch t.Action {
	case bus.Read:
		var v uint64
		for i := uint8(0); i < t.Xsize; i++ {
			v |= uint64(m.bytes[off+uint64(i)]) << (8 * i)
		}
		t.Payload = v
	case bus.Write:
		for i := uint8(0); i < t.Xsize; i++ {
			if t.Wstrb&(1<<i) == 0 {
				continue
			}
			m.bytes[off+uint64(i)] = byte(t.Payload >> (8 * i))
		}
	}
	return nil
}

// LoadBytes copies data into RAM starting at addr, for program loading.
func (m *Memory) LoadBytes(addr uint64, data []byte) error {
	off := addr - m.Base
	if off+uint64(len(data)) > uint64(len(m.bytes)) {
		return fmt.Errorf("riscv memory: load of %d bytes at 0x%x overruns segment", len(data), addr)
	}
	copy(m.bytes[off:], data)
	return nil
}

// readXU is a small convenience wrapper used by the execution engine's
// load/store handlers to route through the bus with a full wstrb.
func readXU(fabric *bus.Fabric, addr uint64, size uint8, source uint8) (uint64, error) {
	t := &bus.Transaction{Addr: addr, Action: bus.Read, Xsize: size, Source: source}
	if err := fabric.Do(t); err != nil {
		return 0, err
	}
	return t.Payload, nil
}

func writeXU(fabric *bus.Fabric, addr uint64, size uint8, value uint64, source uint8) error {
	t := &bus.Transaction{
		Addr:    addr,
		Action:  bus.Write,
		Xsize:   size,
		Wstrb:   (1 << size) - 1,
		Payload: value,
		Source:  source,
	}
	return fabric.Do(t)
}
