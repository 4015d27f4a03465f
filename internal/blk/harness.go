// Host-side test harness for the virtio-blk driver: a software model of
// the MMIO register file plus a backing store, in the spirit of
// biscuit/src/ufs/driver.go's ahci_disk_t (a host-os.File standing in for
// real disk hardware so the filesystem layers can be exercised without
// it). Here the backing store is a temp file addressed with
// golang.org/x/sys/unix's pread/pwrite-at-offset primitives rather than
// Seek+Read/Write, matching the offset-addressed nature of the sector
// I/O this driver performs; the DMA-visible memory is a flat in-memory
// byte slice.
package blk

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"rv32kern/internal/kconfig"
)

// ModelDisk is a software model of a virtio-mmio block device plus its
// DMA-visible memory, backed by a temp file so the same pread/pwrite path
// a real disk image would use gets exercised in tests.
type ModelDisk struct {
	mem      []byte // simulated physical address space window starting at 0
	file     *os.File
	sectors  uint32
	nextPage uint32
	regs     [0x200]byte
}

// NewModelDisk creates a model device with the given sector capacity,
// backed by a temp file holding the sector data.
func NewModelDisk(sectors uint32) (*ModelDisk, error) {
	f, err := os.CreateTemp("", "rv32kern-blk-*.img")
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(sectors) * kconfig.SectorSize); err != nil {
		f.Close()
		return nil, err
	}
	d := &ModelDisk{
		mem:     make([]byte, 1<<20), // 1 MiB of simulated DMA-visible memory
		file:    f,
		sectors: sectors,
	}
	putLE32(d.regs[regMagic:], magicValue)
	putLE32(d.regs[regVersion:], 1)
	putLE32(d.regs[regDeviceID:], deviceBlk)
	putLE64(d.regs[regDeviceConfig:], uint64(sectors))
	return d, nil
}

// Close releases the backing temp file.
func (d *ModelDisk) Close() error {
	name := d.file.Name()
	err := d.file.Close()
	os.Remove(name)
	return err
}

// LoadImage seeds the backing store with a pre-built disk image, such as
// one produced by cmd/mkarchive. Data beyond the device's sector capacity
// is rejected rather than silently truncated.
func (d *ModelDisk) LoadImage(data []byte) error {
	if uint32(len(data)) > d.sectors*kconfig.SectorSize {
		return fmt.Errorf("image is %d bytes, disk holds only %d", len(data), d.sectors*kconfig.SectorSize)
	}
	_, err := d.file.WriteAt(data, 0)
	return err
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getLE16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func putLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func getLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func getLE64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// Read32 implements Regs.
func (d *ModelDisk) Read32(offset uint32) uint32 {
	if offset == regQueueNotify {
		d.serviceQueue()
		return 0
	}
	return getLE32(d.regs[offset:])
}

// Write32 implements Regs.
func (d *ModelDisk) Write32(offset uint32, v uint32) {
	putLE32(d.regs[offset:], v)
	if offset == regQueueNotify {
		d.serviceQueue()
	}
}

// Read64 implements Regs.
func (d *ModelDisk) Read64(offset uint32) uint64 {
	return getLE64(d.regs[offset:])
}

// ReadBytes implements Regs.
func (d *ModelDisk) ReadBytes(paddr uint32, n int) []byte {
	out := make([]byte, n)
	copy(out, d.mem[paddr:int(paddr)+n])
	return out
}

// WriteBytes implements Regs.
func (d *ModelDisk) WriteBytes(paddr uint32, data []byte) {
	copy(d.mem[paddr:], data)
}

// AllocPages implements Regs with a trivial bump allocator over the
// simulated physical window.
func (d *ModelDisk) AllocPages(n int) uint32 {
	addr := d.nextPage
	d.nextPage += uint32(n * kconfig.PageSize)
	return addr
}

// serviceQueue models the device side of one request: decode the
// descriptor chain the driver just built, perform the pread/pwrite
// against the backing file, write the status byte, and advance the used
// ring — the software equivalent of what real virtio-blk silicon does
// after a QueueNotify write.
func (d *ModelDisk) serviceQueue() {
	queuePFN := getLE32(d.regs[regQueuePFN:])
	vq := &virtqueue{base: queuePFN}

	desc0 := d.ReadBytes(vq.base+vq.descOffset(0), descEntrySize)
	reqAddr := uint32(getLE64(desc0[0:]))

	reqType := getLE32(d.ReadBytes(reqAddr+reqOffType, 4))
	sector := getLE64(d.ReadBytes(reqAddr+reqOffSector, 8))

	var ioErr error
	if reqType == reqTypeOut {
		data := d.ReadBytes(reqAddr+reqOffData, kconfig.SectorSize)
		_, ioErr = unix.Pwrite(int(d.file.Fd()), data, int64(sector)*kconfig.SectorSize)
	} else {
		buf := make([]byte, kconfig.SectorSize)
		_, ioErr = unix.Pread(int(d.file.Fd()), buf, int64(sector)*kconfig.SectorSize)
		d.WriteBytes(reqAddr+reqOffData, buf)
	}

	status := byte(0)
	if ioErr != nil {
		status = 1
	}
	d.WriteBytes(reqAddr+reqOffStatus, []byte{status})

	usedOff := vq.base + vq.usedOffset()
	usedIdx := getLE16(d.ReadBytes(usedOff+2, 2))
	elemOff := usedOff + 4 + uint32(usedIdx%virtqEntries)*usedElemSize
	elem := make([]byte, usedElemSize)
	putLE32(elem[0:], 0)
	putLE32(elem[4:], kconfig.SectorSize)
	d.WriteBytes(elemOff, elem)

	idxBuf := make([]byte, 2)
	putLE16(idxBuf, usedIdx+1)
	d.WriteBytes(usedOff+2, idxBuf)
}
