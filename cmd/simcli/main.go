// Command simcli is the multi-ISA replacement for the teacher's
// flag-based root binary: one Cobra root command with subcommands
// for direct execution, the ARM CLI/TUI debugger, and the HTTP API
// server, grounded on oisee/z80-optimizer's cmd/z80opt (root command +
// RunE subcommands, each owning its own flag set).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corefleet/simdbg/api"
	"github.com/corefleet/simdbg/armcore"
	"github.com/corefleet/simdbg/bus"
	"github.com/corefleet/simdbg/cdc"
	"github.com/corefleet/simdbg/config"
	"github.com/corefleet/simdbg/debugger"
	"github.com/corefleet/simdbg/dmi"
	"github.com/corefleet/simdbg/jtag"
	"github.com/corefleet/simdbg/loader"
	"github.com/corefleet/simdbg/obslog"
	"github.com/corefleet/simdbg/riscv"
)

// Version, Commit, and Date are overridden at build time with
// -ldflags "-X main.Version=... -X main.Commit=... -X main.Date=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:   "simcli",
		Short: "Multi-architecture CPU simulator and debugger (ARMv7 + RISC-V)",
	}
	root.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newDebugCmd(),
		newTUICmd(),
		newAPIServerCmd(),
		newJTAGProbeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("simcli %s (commit %s, built %s)\n", Version, Commit, Date)
			return nil
		},
	}
}

// newRunCmd runs a program to completion with no debugger attached,
// generalized over both cores (the teacher's main.go only ever ran
// *armcore.VM directly; --isa selects riscv for the new core).
func newRunCmd() *cobra.Command {
	var (
		isa       string
		maxCycles uint64
		entryFlag string
		stackSize uint
		hartCount int
		memBase   uint64
		memSize   int
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a program to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch isa {
			case "arm", "armv7", "":
				return runARM(args[0], maxCycles, entryFlag, stackSize, verbose)
			case "riscv", "rv64":
				return runRISCV(args[0], maxCycles, hartCount, memBase, memSize, verbose)
			default:
				return fmt.Errorf("unknown --isa %q (want arm or riscv)", isa)
			}
		},
	}

	cfg := config.DefaultConfig()
	cmd.Flags().StringVar(&isa, "isa", "arm", "Core to run: arm or riscv")
	cmd.Flags().Uint64Var(&maxCycles, "max-cycles", cfg.Execution.MaxCycles, "Maximum cycles before halt")
	cmd.Flags().StringVar(&entryFlag, "entry", cfg.ARMv7.EntryPoint, "ARM entry point address (hex or decimal)")
	cmd.Flags().UintVar(&stackSize, "stack-size", cfg.ARMv7.StackSize, "ARM stack size in bytes")
	cmd.Flags().IntVar(&hartCount, "harts", cfg.RISCV.HartCount, "RISC-V hart count")
	cmd.Flags().Uint64Var(&memBase, "mem-base", cfg.RISCV.MemoryBase, "RISC-V memory base address")
	cmd.Flags().IntVar(&memSize, "mem-size", cfg.RISCV.MemorySize, "RISC-V memory size in bytes")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	return cmd
}

// parseEntryAddr accepts a hex ("0x8000") or decimal entry-point flag
// value; the teacher's parser resolved the entry from a `_start` label
// or `.org` directive, neither of which exists once the on-board
// assembler is gone, so --entry is now the sole source of truth.
func parseEntryAddr(entryFlag string) (uint32, error) {
	var addr uint32
	if _, err := fmt.Sscanf(entryFlag, "0x%x", &addr); err == nil {
		return addr, nil
	}
	if _, err := fmt.Sscanf(entryFlag, "%d", &addr); err == nil {
		return addr, nil
	}
	return 0, fmt.Errorf("invalid --entry %q (want hex 0x... or decimal)", entryFlag)
}

func runARM(imageFile string, maxCycles uint64, entryFlag string, stackSize uint, verbose bool) error {
	entryAddr, err := parseEntryAddr(entryFlag)
	if err != nil {
		return err
	}

	machine := armcore.NewVM()
	machine.CycleLimit = maxCycles

	stackTop := uint32(armcore.StackSegmentStart + stackSize)
	if err := machine.InitializeStack(stackTop); err != nil {
		return fmt.Errorf("initialize stack: %w", err)
	}

	if err := loader.LoadARMImageFile(machine, imageFile, entryAddr); err != nil {
		return fmt.Errorf("load image: %w", err)
	}

	machine.State = armcore.StateRunning
	for machine.State == armcore.StateRunning {
		if err := machine.Step(); err != nil {
			if machine.State == armcore.StateHalted {
				break
			}
			return fmt.Errorf("runtime error at PC=0x%08X: %w", machine.CPU.PC, err)
		}
	}

	if verbose {
		fmt.Printf("Instructions executed: %d\n", len(machine.InstructionLog))
	}
	os.Exit(int(machine.ExitCode))
	return nil
}

func runRISCV(binFile string, maxCycles uint64, hartCount int, memBase uint64, memSize int, verbose bool) error {
	data, err := os.ReadFile(binFile) // #nosec G304 -- user-specified program path
	if err != nil {
		return fmt.Errorf("read program: %w", err)
	}

	fabric := bus.NewFabric()
	mem := riscv.NewMemory(memBase, memSize)
	if err := mem.LoadBytes(memBase, data); err != nil {
		return fmt.Errorf("load program: %w", err)
	}
	fabric.Attach(mem)

	logger := obslog.New(os.Stderr, slog.LevelInfo, verbose)

	controller := riscv.NewController(hartCount, fabric)
	for _, h := range controller.Harts {
		for cycles := uint64(0); cycles < maxCycles; cycles++ {
			if err := h.Step(); err != nil {
				logger.Info("hart halted", "hart", h.ID, "err", err)
				break
			}
		}
	}

	if verbose {
		fmt.Printf("Ran %d hart(s) for up to %d cycles each\n", hartCount, maxCycles)
	}
	return nil
}

// newDebugCmd starts the teacher's ARM CLI debugger unchanged in
// behavior; multi-ISA debugging beyond ARM is exposed through the DMI
// abstract-command interface instead of this interactive shell (see
// SPEC_FULL.md §4.8), since debugger.RunCLI's command set is ARM-only.
func newDebugCmd() *cobra.Command {
	var tui bool
	cmd := &cobra.Command{
		Use:   "debug <file>",
		Short: "Start the interactive ARM debugger (CLI or --tui)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runARMDebugger(args[0], tui)
		},
	}
	cmd.Flags().BoolVar(&tui, "tui", false, "Use the text UI debugger instead of the line-oriented CLI")
	return cmd
}

func newTUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui <file>",
		Short: "Start the ARM TUI debugger (shorthand for 'debug --tui')",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runARMDebugger(args[0], true)
		},
	}
	return cmd
}

func runARMDebugger(imageFile string, tui bool) error {
	machine := armcore.NewVM()
	if err := machine.InitializeStack(armcore.StackSegmentStart + armcore.StackSegmentSize); err != nil {
		return fmt.Errorf("initialize stack: %w", err)
	}

	if err := loader.LoadARMImageFile(machine, imageFile, armcore.CodeSegmentStart); err != nil {
		return fmt.Errorf("load image: %w", err)
	}

	dbg := debugger.NewDebugger(machine)

	if tui {
		return debugger.RunTUI(dbg)
	}
	fmt.Println("simcli debugger - type 'help' for commands")
	return debugger.RunCLI(dbg)
}

// newAPIServerCmd starts the HTTP/WebSocket API server the teacher
// built for its GUI front ends, unchanged.
func newAPIServerCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "api-server",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPIServer(port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "API server listen port")
	return cmd
}

func runAPIServer(port int) error {
	server := api.NewServer(port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			fmt.Println("\nShutting down API server...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
			}
		})
	}

	monitor := api.NewProcessMonitor(shutdown)
	monitor.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-sigChan:
		shutdown()
		return nil
	case err := <-errCh:
		return err
	}
}

// newJTAGProbeCmd starts a RISC-V system with no ISA-level debugger
// attached and exercises the debug transport the way an external
// probe would: every DMI transaction crosses a real jtag.TAP and a
// real cdc.Synchronizer before it reaches the dmi.DM, the only path
// into a running hart from outside the simulated chip (spec.md §2,
// §4.6-§4.8). Useful as a smoke test and as a template for a real
// OpenOCD-speaking front end.
func newJTAGProbeCmd() *cobra.Command {
	var (
		hartCount int
		memBase   uint64
		memSize   int
	)
	cmd := &cobra.Command{
		Use:   "jtag-probe",
		Short: "Halt hart 0 and read a register through a simulated JTAG/CDC/DMI chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJTAGProbe(hartCount, memBase, memSize)
		},
	}
	cfg := config.DefaultConfig()
	cmd.Flags().IntVar(&hartCount, "harts", cfg.RISCV.HartCount, "RISC-V hart count")
	cmd.Flags().Uint64Var(&memBase, "mem-base", cfg.RISCV.MemoryBase, "RISC-V memory base address")
	cmd.Flags().IntVar(&memSize, "mem-size", cfg.RISCV.MemorySize, "RISC-V memory size in bytes")
	return cmd
}

// dmi register/bit-field values that jtagProbeScan needs but that dmi
// keeps unexported (they are DM-internal wire encodings, not part of
// its Go API): dmcontrol.dmactive and dmcontrol.haltreq, per the
// RISC-V external debug spec table 3.3.
const (
	probeDMControlActive  = 1 << 0
	probeDMControlHaltReq = 1 << 31
)

func runJTAGProbe(hartCount int, memBase uint64, memSize int) error {
	fabric := bus.NewFabric()
	mem := riscv.NewMemory(memBase, memSize)
	fabric.Attach(mem)
	controller := riscv.NewController(hartCount, fabric)

	targets := make([]dmi.Target, len(controller.Harts))
	for i, h := range controller.Harts {
		targets[i] = h
	}
	dm := dmi.New(targets)
	dm.SetLogger(obslog.New(os.Stderr, slog.LevelDebug, true))

	tap := jtag.New()
	sync := cdc.New()
	tap.OnDMIRequest = dmi.NewCDCBridge(sync, dm)

	resetTAP(tap)
	selectIR(tap, jtag.IRDBus)
	scanDBus(tap, dmi.RegDMControl, probeDMControlActive|probeDMControlHaltReq, 2)
	scanDBus(tap, dmi.RegDMStatus, 0, 1)

	// The read issued above lands in lastDMIData/lastDMIStatus during
	// its own Update-DR; a DTM only exposes that on the *next* scan's
	// Capture-DR, so a second (nop) scan is needed to shift it out.
	scanned := scanDBus(tap, 0, 0, 0)
	status := uint32((scanned >> 2) & 0xFFFFFFFF)
	fmt.Printf("dmstatus after haltreq = 0x%08X, hart 0 halted = %v\n", status, controller.Harts[0].Halted())
	return nil
}

// scanDBus, selectIR, and resetTAP drive tap's raw ClockTMS/ShiftBit
// pins exactly as an external probe's bit-banged or FTDI-driven JTAG
// link would; jtag deliberately exposes no higher-level "do a DBUS
// transaction" call; there is no wire to call one over.
func scanDBus(tap *jtag.TAP, addr, data uint32, op uint8) (scannedOut uint64) {
	const abits = 7
	const dbusWidth = abits + 32 + 2
	value := uint64(addr)<<34 | uint64(data)<<2 | uint64(op)
	tap.ClockTMS(true)
	tap.ClockTMS(false)
	tap.ClockTMS(false)
	var out uint64
	for i := 0; i < dbusWidth; i++ {
		bit := (value >> uint(i)) & 1
		if tap.ShiftBit(bit != 0) {
			out |= 1 << uint(i)
		}
		if i < dbusWidth-1 {
			tap.ClockTMS(false)
		}
	}
	tap.ClockTMS(true)
	tap.ClockTMS(true)
	tap.ClockTMS(false)
	return out
}

func selectIR(tap *jtag.TAP, ir jtag.IR) {
	const irWidth = 5
	tap.ClockTMS(true)
	tap.ClockTMS(true)
	tap.ClockTMS(false)
	tap.ClockTMS(false)
	for i := 0; i < irWidth; i++ {
		bit := (uint8(ir) >> uint(i)) & 1
		tap.ShiftBit(bit != 0)
		if i < irWidth-1 {
			tap.ClockTMS(false)
		}
	}
	tap.ClockTMS(true)
	tap.ClockTMS(true)
	tap.ClockTMS(false)
}

func resetTAP(tap *jtag.TAP) {
	for i := 0; i < 5; i++ {
		tap.ClockTMS(true)
	}
	tap.ClockTMS(false)
}
