// Package mem implements the kernel's physical frame allocator: a
// monotonic bump allocator over a fixed free-RAM range, matching
// alloc_pages in the reference kernel. There is no free path — frames
// handed out are never reclaimed, which is the documented contract
// (spec.md's Non-goals exclude dynamic freeing).
package mem

import "rv32kern/internal/kconfig"

// PhysAddr is a physical address. Kept as its own type, mirroring the
// teacher's mem.Pa_t, so callers can't mix it up with a virtual address
// by accident.
type PhysAddr uintptr

// FrameAllocator hands out zero-filled, page-aligned physical frames from
// a fixed range. It is not safe for concurrent use; this kernel is
// single-hart and callers always hold the boot or trap context.
type FrameAllocator struct {
	next  PhysAddr
	end   PhysAddr
	zero  func(addr PhysAddr, n int)
	total int
}

// NewFrameAllocator creates an allocator over [start, end), the range the
// linker script's __free_ram/__free_ram_end symbols would otherwise mark.
// zero is called to clear each newly handed-out frame; tests supply a
// backing-slice zeroer, the real boot path zeroes physical memory directly.
func NewFrameAllocator(start, end PhysAddr, zero func(addr PhysAddr, n int)) *FrameAllocator {
	return &FrameAllocator{next: start, end: end, zero: zero}
}

// AllocFrames allocates n contiguous, zeroed pages and returns the physical
// address of the first one. It panics with "out of memory" on exhaustion,
// matching the original kernel's PANIC("out of memory") — frame exhaustion
// during boot is a fatal-abort condition, not a recoverable error.
func (a *FrameAllocator) AllocFrames(n int) PhysAddr {
	paddr := a.next
	size := PhysAddr(n * kconfig.PageSize)
	next := a.next + size
	if next > a.end {
		panic("out of memory")
	}
	a.next = next
	a.total += n
	if a.zero != nil {
		a.zero(paddr, n*kconfig.PageSize)
	}
	return paddr
}

// Remaining reports the number of whole pages still available. It exists
// only to let tests assert allocator exhaustion behavior without poking at
// unexported fields.
func (a *FrameAllocator) Remaining() int {
	return int(a.end-a.next) / kconfig.PageSize
}

// FramesAllocated reports how many frames have been handed out so far.
func (a *FrameAllocator) FramesAllocated() int {
	return a.total
}
