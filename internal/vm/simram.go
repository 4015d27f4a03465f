package vm

import (
	"rv32kern/internal/kconfig"
	"rv32kern/internal/mem"
)

// SimRAM models physical memory as a flat byte slice addressed directly
// by PhysAddr, standing in for the identity-mapped physical window real
// boot code would otherwise access through raw pointer casts. It backs
// both this package's own tests and cmd/kernel's host simulation, which
// has no real physical address space to walk page tables over.
type SimRAM struct {
	bytes []byte
	alloc *mem.FrameAllocator
}

// NewSimRAM allocates a simulated RAM of the given page count and a
// frame allocator over the whole thing.
func NewSimRAM(pages int) *SimRAM {
	r := &SimRAM{bytes: make([]byte, pages*kconfig.PageSize)}
	zero := func(addr mem.PhysAddr, n int) {
		for i := 0; i < n; i++ {
			r.bytes[int(addr)+i] = 0
		}
	}
	r.alloc = mem.NewFrameAllocator(0, mem.PhysAddr(len(r.bytes)), zero)
	return r
}

// AllocFrames implements FrameSource.
func (r *SimRAM) AllocFrames(n int) mem.PhysAddr {
	return r.alloc.AllocFrames(n)
}

// ReadWord reads the idx'th 32-bit word starting at paddr.
func (r *SimRAM) ReadWord(paddr mem.PhysAddr, idx int) uint32 {
	off := int(paddr) + idx*4
	b := r.bytes[off : off+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// WriteWord writes the idx'th 32-bit word starting at paddr.
func (r *SimRAM) WriteWord(paddr mem.PhysAddr, idx int, val uint32) {
	off := int(paddr) + idx*4
	b := r.bytes[off : off+4]
	b[0] = byte(val)
	b[1] = byte(val >> 8)
	b[2] = byte(val >> 16)
	b[3] = byte(val >> 24)
}

// NewAddressSpaceOverSimRAM builds an AddressSpace backed by ram,
// the convenience constructor hosts without real physical memory use.
func NewAddressSpaceOverSimRAM(ram *SimRAM) *AddressSpace {
	return NewAddressSpace(ram, ram.ReadWord, ram.WriteWord)
}
