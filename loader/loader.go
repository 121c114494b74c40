// Package loader places a flat machine-code image into a target's
// memory and sets its entry point. The teacher's loader took a parsed
// assembly AST (parser.Program) and ran an encoder pass over it; this
// simulator has no on-board assembler, so the loader's only job is the
// part of that work which is genuinely multi-ISA: deciding which
// memory segment a raw image lands in and priming the program counter.
package loader

import (
	"fmt"
	"os"

	"github.com/corefleet/simdbg/armcore"
)

// LoadARMImage copies a flat little-endian ARM32 instruction/data image
// into machine's memory starting at entryPoint and sets the CPU to
// begin execution there. Most assembled images target the code segment
// at armcore.CodeSegmentStart; an entryPoint below that (e.g. a raw
// reset-vector image linked at 0x0) gets a dedicated low-memory segment
// the way the teacher's loader did for programs using `.org 0x0000`.
func LoadARMImage(machine *armcore.VM, image []byte, entryPoint uint32) error {
	if entryPoint < armcore.CodeSegmentStart {
		machine.Memory.AddSegment("low-memory", 0, armcore.CodeSegmentStart, armcore.PermRead|armcore.PermWrite|armcore.PermExecute)
	}

	for _, seg := range machine.Memory.Segments {
		if seg.Name == "code" {
			seg.Permissions |= armcore.PermWrite // MakeCodeReadOnly below drops it again
		}
	}

	if err := machine.Memory.LoadBytes(entryPoint, image); err != nil {
		return fmt.Errorf("load image at 0x%08X: %w", entryPoint, err)
	}

	machine.Memory.MakeCodeReadOnly()
	machine.CPU.PC = entryPoint
	machine.EntryPoint = entryPoint
	return nil
}

// LoadARMImageFile reads path and loads it via LoadARMImage.
func LoadARMImageFile(machine *armcore.VM, path string, entryPoint uint32) error {
	data, err := os.ReadFile(path) // #nosec G304 -- user-specified program path
	if err != nil {
		return fmt.Errorf("read image %s: %w", path, err)
	}
	return LoadARMImage(machine, data, entryPoint)
}
