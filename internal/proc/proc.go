// Package proc implements the fixed-size process table, cooperative
// round-robin scheduler, and context switch primitive. Grounded on
// original_source/kernel/src/proc.c; the context-switch routine is a
// naked asm island the same way it is in the original (and the same way
// iansmith-mazarin declares its own assembly-defined routines via
// go:linkname stubs).
package proc

import (
	_ "unsafe" // for go:linkname

	"rv32kern/internal/kconfig"
	"rv32kern/internal/vm"
)

// State is a process's scheduling state.
type State int

const (
	Unused State = iota
	Runnable
	Exited
)

// Process is one process control block. Stack is the fixed-size kernel
// stack original create_process carves the initial callee-saved frame out
// of; SP is the saved stack pointer used by switchContext.
type Process struct {
	PID       int
	State     State
	SP        uintptr
	Stack     [kconfig.ProcStackSize]byte
	AddrSpace *vm.AddressSpace
}

// Table is the fixed PROCS_MAX process table plus scheduler bookkeeping.
// There is one Table per kernel instance; it is not safe for concurrent
// use by design (spec.md's Non-goals exclude SMP).
type Table struct {
	procs   [kconfig.ProcsMax]Process
	current *Process
	idle    *Process

	// setSscratch sets the sscratch CSR to the top of a process's kernel
	// stack, used by the trap vector to recover it on entry. A function
	// field so host-side tests can observe/fake it without touching a CSR.
	setSscratch func(stackTop uintptr)

	// newAddrSpace builds a fresh per-process page table, mirroring
	// create_process's proc_init_pgtbl. Left nil by default so tests that
	// only care about scheduling bookkeeping don't have to wire up a
	// FrameSource; set via SetAddrSpaceFactory for a real boot.
	newAddrSpace func() *vm.AddressSpace
}

// SetAddrSpaceFactory installs the per-process page table constructor.
// Called once during boot wiring, before any CreateProcess call.
func (t *Table) SetAddrSpaceFactory(fn func() *vm.AddressSpace) {
	t.newAddrSpace = fn
}

// NewTable creates an empty process table. setSscratch, if non-nil, is
// called by Yield with the incoming process's kernel stack top.
func NewTable(setSscratch func(uintptr)) *Table {
	return &Table{setSscratch: setSscratch}
}

// InitIdleProcess claims slot 0 as PID 0, running idleEntry, and makes it
// current. idleEntry is the idle process's real entry point (see the Open
// Question resolution in DESIGN.md: idle never resumes a nil program
// counter). Boot runs on the idle process's own stack already — this call
// records that fact rather than switching to it.
func (t *Table) InitIdleProcess(idleEntry uintptr) {
	p := t.createProcessAt(0, idleEntry)
	p.PID = 0
	t.idle = p
	t.current = p
}

// CreateProcess finds a free slot and primes a new runnable process whose
// first context switch resumes execution at pc. It panics with "no free
// process slots" if the table is full, matching the original's PANIC.
func (t *Table) CreateProcess(pc uintptr) *Process {
	for i := range t.procs {
		if t.procs[i].State == Unused {
			p := t.createProcessAt(i, pc)
			p.PID = i + 1
			return p
		}
	}
	panic("no free process slots")
}

// createProcessAt primes slot i's stack with 12 zeroed callee-saved
// registers (s0-s11) and pc as the return address switchContext will pop
// on the first switch into this process, exactly as create_process does.
func (t *Table) createProcessAt(i int, pc uintptr) *Process {
	p := &t.procs[i]
	*p = Process{State: Runnable}
	if t.newAddrSpace != nil {
		p.AddrSpace = t.newAddrSpace()
	}

	// Build the initial 13-word frame switchContext expects: s11..s0
	// then ra, from high address to low, matching the C code's
	// *--sp = 0 repeated for s11 down to s0 then ra = pc. Register width
	// is fixed at 32 bits regardless of the host building this kernel.
	var words [13]uint32
	words[0] = uint32(pc) // ra, popped first on restore
	// s0..s11 all start zeroed; already the zero value.
	sp := uintptr(len(p.Stack))
	for i := len(words) - 1; i >= 0; i-- {
		sp -= wordSize
		writeStackWord(p.Stack[:], sp, words[i])
	}
	p.SP = stackBase(p) + sp
	return p
}

const wordSize = 4

// Yield implements cooperative round-robin scheduling: scan the table
// starting just after the current process, pick the first Runnable user
// process, default to idle if none is found, swap the active page table,
// and context-switch. A no-op switch (next == current) returns
// immediately without touching satp, sscratch, or the stack.
//
// The address-space swap runs strictly before sscratch and switchContext,
// per spec.md §4.3/§1: TLB invalidate, write satp, TLB invalidate again,
// then sscratch, then the register-level switch. A process with no
// AddrSpace (tests that never wire SetAddrSpaceFactory) skips the swap
// entirely rather than faulting on a nil dereference.
func (t *Table) Yield() {
	next := t.selectNext()
	if next == t.current {
		return
	}

	if next.AddrSpace != nil {
		next.AddrSpace.SwitchTo()
	}

	if t.setSscratch != nil {
		t.setSscratch(stackBase(next) + uintptr(len(next.Stack)))
	}

	prev := t.current
	t.current = next
	switchContext(&prev.SP, &next.SP)
}

// selectNext implements the round-robin scan: starting just after the
// current process's PID, return the first Runnable user process;
// default to idle if none is found. Pulled out of Yield so the selection
// policy can be tested without exercising the asm-backed context switch.
func (t *Table) selectNext() *Process {
	next := t.idle
	for i := 0; i < len(t.procs); i++ {
		candidate := &t.procs[(t.current.PID+i)%kconfig.ProcsMax]
		if candidate.State == Runnable && candidate.PID > 0 {
			next = candidate
			break
		}
	}
	return next
}

// Current returns the running process.
func (t *Table) Current() *Process {
	return t.current
}

// Exit marks the current process Exited. Per spec.md and the original's
// behavior, exited slots are never reclaimed — this is a one-way
// transition.
func (t *Table) Exit() {
	t.current.State = Exited
}

// switchContext is the naked context-switch primitive: save ra and
// s0-s11 onto the current stack, stash sp into *prevSP, load sp from
// *nextSP, restore ra/s0-s11, and return into the newly current process.
// Declared here with no body; switch_riscv.s supplies the real
// implementation, ported register-for-register from the original's
// inline assembly.
//
//go:linkname switchContext rv32kern_proc_switchContext
//go:noescape
func switchContext(prevSP, nextSP *uintptr)

// stackBase and writeStackWord are small helpers isolating the
// unsafe.Pointer casts this package needs to prime a stack from Go,
// mirroring the teacher's util.Writen byte-packing helper generalized to
// whole words instead of arbitrary widths.
func stackBase(p *Process) uintptr {
	return uintptrOf(&p.Stack[0])
}
