// Package vm implements Sv32 two-level paging: page table entry packing,
// page mapping, and address-space switch via satp. Grounded on
// original_source/kernel/src/vm.c's map_page, generalized from a bare
// function into an AddressSpace type the way the teacher's vm.Vm_t wraps
// pmap manipulation behind a lockable struct.
package vm

import (
	"fmt"
	"sync"
	_ "unsafe" // for go:linkname

	"rv32kern/internal/kconfig"
	"rv32kern/internal/mem"
)

// PTE flag bits, Sv32 layout (bits 31:10 PPN, 9:8 reserved, 7:0 flags).
const (
	PteV = 1 << 0 // Valid
	PteR = 1 << 1 // Readable
	PteW = 1 << 2 // Writable
	PteX = 1 << 3 // Executable
	PteU = 1 << 4 // Accessible from user mode
	PteG = 1 << 5 // Global
	PteA = 1 << 6 // Accessed
	PteD = 1 << 7 // Dirty
)

const (
	satpModeSv32 = 1 << 31
	vpnMask      = 0x3ff
	vpn1Shift    = 22
	vpn0Shift    = 12
)

// FrameSource is the narrow allocator interface AddressSpace depends on,
// so vm never imports the concrete allocator — it needs "give me n zeroed
// frames", not the allocator's own bookkeeping.
type FrameSource interface {
	AllocFrames(n int) mem.PhysAddr
}

// AddressSpace wraps a root Sv32 page table. The mutex exists for the same
// reason the teacher's Vm_t embeds one: a single choke point that can
// assert "pmap lock held" during development, even though this kernel has
// no second hart to actually race with.
type AddressSpace struct {
	sync.Mutex
	root  mem.PhysAddr
	alloc FrameSource
	// readWord/writeWord access a physical page's raw uint32 words. Real
	// boot code backs these with direct pointer casts over identity-mapped
	// physical memory; tests back them with a plain byte-addressable model
	// so page-table manipulation can be exercised without real RAM.
	readWord  func(paddr mem.PhysAddr, idx int) uint32
	writeWord func(paddr mem.PhysAddr, idx int, val uint32)
}

// NewAddressSpace allocates a fresh, zeroed root table.
func NewAddressSpace(alloc FrameSource, readWord func(mem.PhysAddr, int) uint32, writeWord func(mem.PhysAddr, int, uint32)) *AddressSpace {
	root := alloc.AllocFrames(1)
	return &AddressSpace{root: root, alloc: alloc, readWord: readWord, writeWord: writeWord}
}

// Root returns the physical address of the first-level table, the value
// SwitchTo (or a caller building its own satp) needs.
func (as *AddressSpace) Root() mem.PhysAddr {
	return as.root
}

// MapPage installs a mapping from vaddr to paddr with the given flags,
// allocating a second-level table on demand. vaddr and paddr must both be
// page-aligned; violating that is a fatal-abort condition in the original
// kernel (PANIC("Unaligned ...")), preserved here as a panic.
func (as *AddressSpace) MapPage(vaddr uintptr, paddr mem.PhysAddr, flags uint32) {
	if !kconfig.IsAligned(vaddr, uintptr(kconfig.PageSize)) {
		panic(fmt.Sprintf("vm: unaligned vaddr: %#x", vaddr))
	}
	if !kconfig.IsAligned(uintptr(paddr), uintptr(kconfig.PageSize)) {
		panic(fmt.Sprintf("vm: unaligned paddr: %#x", paddr))
	}

	as.Lock()
	defer as.Unlock()

	vpn1 := (vaddr >> vpn1Shift) & vpnMask
	vpn0 := (vaddr >> vpn0Shift) & vpnMask

	pte1 := as.readWord(as.root, int(vpn1))
	if pte1&PteV == 0 {
		childTable := as.alloc.AllocFrames(1)
		pte1 = uint32(childTable/kconfig.PageSize)<<10 | PteV
		as.writeWord(as.root, int(vpn1), pte1)
	}

	table0 := mem.PhysAddr((pte1 >> 10) * kconfig.PageSize)
	pte0 := uint32(paddr/kconfig.PageSize)<<10 | flags | PteV
	as.writeWord(table0, int(vpn0), pte0)
}

// MapRange maps every page covering [vaddr, vaddr+len) to the
// correspondingly offset physical frames starting at paddr. Both vaddr and
// paddr must be page-aligned; len is rounded up to a whole number of
// pages. Used for the identity maps; it installs mappings only and copies
// no data.
func (as *AddressSpace) MapRange(vaddr uintptr, paddr mem.PhysAddr, length int, flags uint32) {
	pages := kconfig.AlignUp(length, kconfig.PageSize) / kconfig.PageSize
	for i := 0; i < pages; i++ {
		off := uintptr(i * kconfig.PageSize)
		as.MapPage(vaddr+off, paddr+mem.PhysAddr(off), flags)
	}
}

// Satp computes the value to write to the satp CSR to activate this
// address space under Sv32 mode.
func (as *AddressSpace) Satp() uint32 {
	return satpModeSv32 | uint32(as.root/kconfig.PageSize)
}

// SwitchTo installs this address space as the active one: invalidate
// stale TLB entries, write satp, then invalidate again so no entry cached
// under the outgoing mapping survives into the incoming process. This is
// the ordering spec.md §5 requires ("TLB coherence is preserved by the
// sfence.vma pair around satp writes") and the pair Yield must run before
// the context switch proper.
func (as *AddressSpace) SwitchTo() {
	sfenceVMA()
	writeSatp(as.Satp())
	sfenceVMA()
}

// sfenceVMA is the TLB-invalidate primitive; backed by sfence.vma since
// Go has no such intrinsic.
//
//go:linkname sfenceVMA rv32kern_vm_sfenceVMA
//go:noescape
func sfenceVMA()

// writeSatp installs satp, switching the active first-level page table.
//
//go:linkname writeSatp rv32kern_vm_writeSatp
//go:noescape
func writeSatp(satp uint32)
