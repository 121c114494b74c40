package service

import "github.com/corefleet/simdbg/armcore"

// RegisterState represents a snapshot of CPU registers
type RegisterState struct {
	Registers [16]uint32
	CPSR      CPSRState
	PC        uint32
	Cycles    uint64
}

// CPSRState represents CPSR flags for serialization
type CPSRState struct {
	N bool // Negative
	Z bool // Zero
	C bool // Carry
	V bool // Overflow
}

// BreakpointInfo represents a breakpoint for UI display
type BreakpointInfo struct {
	Address   uint32 `json:"address"`
	Enabled   bool   `json:"enabled"`
	Condition string `json:"condition"` // Expression that must evaluate to true
}

// WatchpointInfo represents a watchpoint for UI display
type WatchpointInfo struct {
	ID      int    `json:"id"`
	Address uint32 `json:"address"`
	Type    string `json:"type"` // "read", "write", "readwrite"
	Enabled bool   `json:"enabled"`
}

// MemoryRegion represents a contiguous memory region
type MemoryRegion struct {
	Address uint32
	Data    []byte
	Size    uint32
}

// ExecutionState represents the current state of execution
type ExecutionState string

const (
	StateRunning    ExecutionState = "running"
	StateHalted     ExecutionState = "halted"
	StateBreakpoint ExecutionState = "breakpoint"
	StateError      ExecutionState = "error"
)

// VMStateToExecution converts armcore.ExecutionState to service.ExecutionState
func VMStateToExecution(state armcore.ExecutionState) ExecutionState {
	switch state {
	case armcore.StateRunning:
		return StateRunning
	case armcore.StateHalted:
		return StateHalted
	case armcore.StateBreakpoint:
		return StateBreakpoint
	case armcore.StateError:
		return StateError
	default:
		return StateHalted
	}
}

// SourceMapEntry maps a memory address to a line of source text, for
// debugger display; LineNumber is filled in when the caller's debug
// info carries line numbers (an ELF, a sidecar file), 0 otherwise.
type SourceMapEntry struct {
	Address    uint32 `json:"address"`
	LineNumber int    `json:"lineNumber"`
	Line       string `json:"line"`
}

// DisassemblyLine represents a single disassembled instruction
type DisassemblyLine struct {
	Address uint32 `json:"address"`
	Opcode  uint32 `json:"opcode"`
	Symbol  string `json:"symbol"` // Symbol at this address, if any
}

// StackEntry represents a single stack location
type StackEntry struct {
	Address uint32 `json:"address"`
	Value   uint32 `json:"value"`
	Symbol  string `json:"symbol"` // If value points to a symbol
}
