// Command kernel wires together the boot sequence: trap vector install,
// block device init, idle/user process creation, file system load, and
// the first yield into the scheduler. Grounded on
// original_source/kernel/src/kernel.c's kernel_main and on the teacher's
// own small cmd/ entry points for the house style of a narrow main doing
// explicit, logged steps.
//
// This binary has no cross-compiler target in this exercise (see
// SPEC_FULL.md §3.12): it cannot itself run on real RISC-V hardware, and
// there is no real ecall path to a user-mode shell binary. What it does
// is perform every boot-sequence step a real target would — including
// installing the trap vector and paging through a genuine process table —
// against the host-side virtio model in internal/blk, and then hand
// console I/O to user/shell's host simulation of the bundled shell, which
// drives the same syscall dispatcher a real trap would.
package main

import (
	"os"

	"golang.org/x/term"

	"rv32kern/internal/blk"
	"rv32kern/internal/fs"
	"rv32kern/internal/kconfig"
	"rv32kern/internal/kernlog"
	"rv32kern/internal/proc"
	"rv32kern/internal/syscall"
	"rv32kern/internal/trap"
	"rv32kern/internal/vm"
	"rv32kern/user/shell"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var interactive bool
	var archivePath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-interactive":
			interactive = true
		case "-archive":
			if i+1 < len(args) {
				i++
				archivePath = args[i]
			}
		}
	}

	log := kernlog.New(os.Stdout)

	if interactive && term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			defer term.Restore(int(os.Stdin.Fd()), oldState)
		}
	}

	log.Info("Booting")
	log.Info("Initializing .bss")

	trap.InstallVector()
	log.Info("Initializing trap handler")

	disk, err := blk.NewModelDisk(64)
	if err != nil {
		log.Panic("virtio block: %s", err)
	}
	defer disk.Close()
	if archivePath != "" {
		data, err := os.ReadFile(archivePath)
		if err != nil {
			log.Failed("could not load archive %s: %s", archivePath, err)
		} else if err := disk.LoadImage(data); err != nil {
			log.Failed("could not load archive %s: %s", archivePath, err)
		}
	}

	log.Info("Initializing virtio block")
	dev, err := blk.Init(disk)
	if err != nil {
		log.Panic("virtio block: %s", err)
	}
	log.Info("virtio block: capacity is %d bytes", dev.Capacity()*kconfig.SectorSize)

	// Every process gets its own root page table, with the kernel region
	// and the virtio-blk MMIO range identity-mapped into it, matching
	// spec.md §4.2 even though this host run has no MMU to actually
	// enforce the translation.
	ram := vm.NewSimRAM(kconfig.FreeRAMPages)
	procs := proc.NewTable(nil)
	procs.SetAddrSpaceFactory(func() *vm.AddressSpace {
		as := vm.NewAddressSpaceOverSimRAM(ram)
		as.MapRange(0, 0, kconfig.FreeRAMPages*kconfig.PageSize, vm.PteR|vm.PteW|vm.PteX)
		as.MapPage(kconfig.VirtioBlkPAddr, kconfig.VirtioBlkPAddr, vm.PteR|vm.PteW)
		return as
	})

	log.Info("Initializing idle process")
	procs.InitIdleProcess(0)

	// No cross-compiled user binary exists to place at a real entry
	// point, so this slot is never reached via Yield; user/shell's host
	// simulation drives the syscall dispatcher directly instead. The
	// process table still gains a Runnable slot, matching the documented
	// "user process create" boot step.
	log.Info("Initializing user process")
	procs.CreateProcess(kconfig.UserBase)

	diskBytes := uint32(kconfig.AlignUp(kconfig.FilesMax*(512+kconfig.MaxFileData), kconfig.SectorSize))
	log.Info("Initializing file system")
	files := fs.NewTable(&blk.FSAdapter{Dev: dev, Log: log}, diskBytes)
	files.Load()

	disp := &syscall.Dispatcher{Files: files, Procs: procs}
	trap.SetHandler(disp.Handle)

	log.Ok("Booted successfully")
	log.Info("Switching to user shell")

	sh := shell.New(disp, os.Stdin, os.Stdout)
	sh.Run()

	files.Flush()
	return 0
}
