// Package trap defines the trap frame layout and dispatches traps taken
// from user mode. The vector itself is a naked, 4-byte-aligned assembly
// routine (trap_riscv.s) — Go has no equivalent of __attribute__((naked)),
// so it is declared here and linked in the way iansmith-mazarin's
// exceptions.go links its own assembly-defined exception entry points:
// a //go:linkname stub with no body, backed by a hand-written .s file.
package trap

import (
	"fmt"
	_ "unsafe" // for go:linkname
)

// Frame is the saved register state captured on trap entry, in exactly the
// order trampoline.c's prologue stores them: ra, gp, tp, t0-t6, a0-a7,
// s0-s11, and finally the trapped sp (recovered from sscratch). 31 words
// total. The field order must not change — the assembly vector writes
// into this layout by fixed offset.
type Frame struct {
	RA, GP, TP                                 uint32
	T0, T1, T2, T3, T4, T5, T6                 uint32
	A0, A1, A2, A3, A4, A5, A6, A7             uint32
	S0, S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11 uint32
	SP                                          uint32
}

// Cause values this kernel distinguishes. scause's top bit (interrupt vs.
// exception) is folded in by the caller; this kernel only ever expects an
// environment call from user mode, per spec.md's scope.
const (
	CauseUserEcall = 8
)

// InstallVector points stvec at the trap vector in direct mode. The
// vector's address must be 4-byte aligned (stvec's low 2 bits encode the
// mode; 00 is direct), enforced by the .s file's alignment directive
// rather than checked here.
//
//go:linkname installVector rv32kern_trap_installVector
//go:noescape
func installVector()

// InstallVector wires the trap vector into stvec. Call once during boot.
func InstallVector() {
	installVector()
}

// ReadSCause, ReadSTval and ReadSEPC wrap the corresponding CSR reads; they
// are asm stubs because Go has no csrr intrinsic.
//
//go:linkname readSCause rv32kern_trap_readSCause
//go:noescape
func readSCause() uint32

//go:linkname readSTval rv32kern_trap_readSTval
//go:noescape
func readSTval() uint32

//go:linkname readSEPC rv32kern_trap_readSEPC
//go:noescape
func readSEPC() uint32

//go:linkname writeSEPC rv32kern_trap_writeSEPC
//go:noescape
func writeSEPC(pc uint32)

// Dispatch is called by the assembly vector with the freshly saved frame.
// It mirrors handle_trap: decode scause/stval/sepc, and route a user ecall
// to the syscall handler; anything else is the documented fatal-abort
// path (spec.md §7 "unexpected trap").
//
// handle is the syscall dispatcher, injected so this package has no import
// on internal/syscall (which itself depends on trap.Frame) — avoids a
// cycle the same way the original's handle_trap / handle_syscall split
// keeps trampoline.c independent of the syscall table.
func Dispatch(f *Frame, handle func(*Frame) uint32) {
	scause := readSCause()
	stval := readSTval()
	epc := readSEPC()

	switch scause {
	case CauseUserEcall:
		f.A0 = handle(f)
		// ecall does not advance pc itself; skip past it so the user
		// process resumes after the instruction that trapped.
		writeSEPC(epc + 4)
	default:
		panic(fmt.Sprintf("unexpected trap scause=%#x stval=%#x sepc=%#x", scause, stval, epc))
	}
}

// handler is the syscall dispatcher the assembly vector invokes through
// dispatchFromAsm. SetHandler must be called during boot before traps are
// enabled.
var handler func(*Frame) uint32

// SetHandler registers the syscall dispatch function the trap vector
// calls on every user ecall.
func SetHandler(h func(*Frame) uint32) {
	handler = h
}

// dispatchFromAsm is the Go-side landing pad the assembly vector calls
// with a pointer to the freshly saved frame.
//
//go:linkname dispatchFromAsm rv32kern_trap_dispatchFromAsm
func dispatchFromAsm(f *Frame) {
	Dispatch(f, handler)
}
