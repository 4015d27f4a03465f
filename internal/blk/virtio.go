// Package blk implements the virtio-mmio block device driver: the init
// handshake, a single 16-descriptor virtqueue, and synchronous
// single-outstanding request submission. Grounded directly on
// original_source/kernel/src/virtio_disk.c and kernel/include/virtio.h,
// kept single-outstanding and goroutine-free per spec.md's Non-goals
// (this kernel never has more than one request in flight).
package blk

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"rv32kern/internal/kconfig"
)

// MMIO register offsets, from kernel/include/virtio.h.
const (
	regMagic        = 0x00
	regVersion      = 0x04
	regDeviceID     = 0x08
	regQueueSel     = 0x30
	regQueueNumMax  = 0x34
	regQueueNum     = 0x38
	regQueueAlign   = 0x3c
	regQueuePFN     = 0x40
	regQueueReady   = 0x44
	regQueueNotify  = 0x50
	regDeviceStatus = 0x70
	regDeviceConfig = 0x100
)

const (
	magicValue = 0x74726976 // "virt"
	deviceBlk  = 2
)

// Device status bits.
const (
	statusReset     = 0
	statusAck       = 1
	statusDriver    = 2
	statusDriverOK  = 4
	statusFeatureOK = 8
)

// Descriptor flags.
const (
	descFNext  = 1
	descFWrite = 2
)

// Request types.
const (
	reqTypeIn  = 0
	reqTypeOut = 1
)

// Regs is the narrow MMIO register accessor this driver depends on.
// The real boot path backs it with a direct view over the identity-mapped
// physical window at kconfig.VirtioBlkPAddr; tests back it with a model
// device (see harness.go), matching the teacher's pattern of testing
// against a software double of the hardware (ufs.ahci_disk_t) instead of
// real silicon.
type Regs interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, v uint32)
	Read64(offset uint32) uint64
	// ReadBytes/WriteBytes access DMA-visible memory (the virtqueue and
	// the request record) by absolute physical address, standing in for
	// the raw pointer dereferences the C driver performs.
	ReadBytes(paddr uint32, n int) []byte
	WriteBytes(paddr uint32, data []byte)
	// AllocPages reserves n page-aligned, zeroed frames and returns the
	// physical base address, the role alloc_pages plays in the original.
	AllocPages(n int) uint32
}

const virtqEntries = kconfig.VirtqEntries

// virtqueue tracks the bookkeeping fields init_virtio_blk sets up:
// the physical base of the queue's descriptor/avail/used region, the
// notify queue index, and the driver's shadow of the used ring position.
type virtqueue struct {
	base             uint32
	index            int
	availIdx         uint16
	lastSeenUsedIdx  uint16
}

// Layout offsets within the virtqueue's backing page(s), mirroring
// struct virtio_virtq: descs[16] (16 bytes each), avail (4 + 2*16
// bytes), used padded to a page boundary, then used ring entries.
const (
	descEntrySize  = 16 // addr(8) + len(4) + flags(2) + next(2)
	availHeaderLen = 4
	availRingLen   = 2 * virtqEntries
	usedElemSize   = 8 // id(4) + len(4)
)

func (vq *virtqueue) descOffset(i int) uint32   { return uint32(i * descEntrySize) }
func (vq *virtqueue) availOffset() uint32       { return uint32(virtqEntries * descEntrySize) }
func (vq *virtqueue) usedOffset() uint32 {
	raw := vq.availOffset() + availHeaderLen + availRingLen
	return uint32(kconfig.AlignUp(int(raw), kconfig.PageSize))
}
func (vq *virtqueue) size() int {
	return int(vq.usedOffset()) + 4 + virtqEntries*usedElemSize
}

// Device is a fully initialized virtio-blk driver instance.
type Device struct {
	regs     Regs
	vq       *virtqueue
	reqPaddr uint32
	capacity uint32 // in sectors
}

// request layout: type(4) reserved(4) sector(8) data(512) status(1),
// matching struct virtio_blk_req exactly.
const (
	reqOffType   = 0
	reqOffSector = 8
	reqOffData   = 16
	reqOffStatus = 16 + kconfig.SectorSize
	reqSize      = reqOffStatus + 1
)

// Init performs the full device handshake from init_virtio_blk: validate
// magic/version/device-id, reset, negotiate no features, set up queue 0,
// mark the driver ready, and read capacity from config space.
func Init(regs Regs) (*Device, error) {
	if regs.Read32(regMagic) != magicValue {
		return nil, fmt.Errorf("blk: invalid magic value")
	}
	if regs.Read32(regVersion) != 1 {
		return nil, fmt.Errorf("blk: invalid version")
	}
	if regs.Read32(regDeviceID) != deviceBlk {
		return nil, fmt.Errorf("blk: invalid device id")
	}

	regs.Write32(regDeviceStatus, statusReset)
	regs.Write32(regDeviceStatus, regs.Read32(regDeviceStatus)|statusAck)
	regs.Write32(regDeviceStatus, regs.Read32(regDeviceStatus)|statusDriver)
	regs.Write32(regDeviceStatus, regs.Read32(regDeviceStatus)|statusFeatureOK)

	vq := initQueue(regs, 0)

	regs.Write32(regDeviceStatus, statusDriverOK)

	capacityBytes := regs.Read64(regDeviceConfig + 0)
	capacity := uint32(capacityBytes) // config reports sectors directly

	reqPaddr := regs.AllocPages(kconfig.AlignUp(reqSize, kconfig.PageSize) / kconfig.PageSize)

	return &Device{regs: regs, vq: vq, reqPaddr: reqPaddr, capacity: capacity}, nil
}

func initQueue(regs Regs, index int) *virtqueue {
	vq := &virtqueue{index: index}
	pages := kconfig.AlignUp(vq.size(), kconfig.PageSize) / kconfig.PageSize
	vq.base = regs.AllocPages(pages)

	regs.Write32(regQueueSel, uint32(index))
	regs.Write32(regQueueNum, virtqEntries)
	regs.Write32(regQueueAlign, 0)
	regs.Write32(regQueuePFN, vq.base)
	return vq
}

// Capacity returns the device's advertised capacity in sectors.
func (d *Device) Capacity() uint32 {
	return d.capacity
}

// ReadSector reads one 512-byte sector into buf.
func (d *Device) ReadSector(sector uint32, buf []byte) error {
	return d.readWrite(buf, sector, false)
}

// WriteSector writes one 512-byte sector from buf.
func (d *Device) WriteSector(sector uint32, buf []byte) error {
	return d.readWrite(buf, sector, true)
}

func (d *Device) readWrite(buf []byte, sector uint32, isWrite bool) error {
	if sector >= d.capacity {
		return fmt.Errorf("blk: tried to read/write sector=%d, but capacity is %d", sector, d.capacity)
	}

	reqType := uint32(reqTypeIn)
	if isWrite {
		reqType = reqTypeOut
		d.regs.WriteBytes(d.reqPaddr+reqOffData, buf[:kconfig.SectorSize])
	}
	d.writeReqHeader(reqType, sector)

	d.buildDescChain(isWrite)
	d.kick(0)

	for d.busy() {
	}

	status := d.regs.ReadBytes(d.reqPaddr+reqOffStatus, 1)[0]
	if status != 0 {
		return fmt.Errorf("blk: failed to read/write sector=%d status=%d", sector, status)
	}

	if !isWrite {
		copy(buf, d.regs.ReadBytes(d.reqPaddr+reqOffData, kconfig.SectorSize))
	}
	return nil
}

func (d *Device) writeReqHeader(reqType uint32, sector uint32) {
	hdr := make([]byte, reqOffData)
	binary.LittleEndian.PutUint32(hdr[reqOffType:], reqType)
	binary.LittleEndian.PutUint64(hdr[reqOffSector:], uint64(sector))
	d.regs.WriteBytes(d.reqPaddr, hdr)
}

func (d *Device) buildDescChain(isWrite bool) {
	vq := d.vq
	writeDesc(d.regs, vq, 0, uint64(d.reqPaddr), reqOffData, descFNext, 1)

	dataFlags := uint16(descFNext)
	if !isWrite {
		dataFlags |= descFWrite
	}
	writeDesc(d.regs, vq, 1, uint64(d.reqPaddr+reqOffData), kconfig.SectorSize, dataFlags, 2)

	writeDesc(d.regs, vq, 2, uint64(d.reqPaddr+reqOffStatus), 1, descFWrite, 0)
}

func writeDesc(regs Regs, vq *virtqueue, i int, addr uint64, length uint32, flags uint16, next uint16) {
	buf := make([]byte, descEntrySize)
	binary.LittleEndian.PutUint64(buf[0:], addr)
	binary.LittleEndian.PutUint32(buf[8:], length)
	binary.LittleEndian.PutUint16(buf[12:], flags)
	binary.LittleEndian.PutUint16(buf[14:], next)
	regs.WriteBytes(vq.base+vq.descOffset(i), buf)
}

// kick adds descIndex to the available ring, bumps the avail index,
// issues the memory barrier the real MMIO path needs before notifying,
// and writes QueueNotify. Grounded on virtq_kick.
func (d *Device) kick(descIndex uint16) {
	vq := d.vq
	ringOff := vq.availOffset() + availHeaderLen + uint32(vq.availIdx%virtqEntries)*2
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, descIndex)
	d.regs.WriteBytes(vq.base+ringOff, buf)

	vq.availIdx++
	idxBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(idxBuf, vq.availIdx)
	d.regs.WriteBytes(vq.base+vq.availOffset()+2, idxBuf)

	// Full barrier before the device-visible notify, the Go-native
	// substitute for __sync_synchronize() since Go has no volatile
	// qualifier for the MMIO write that follows.
	atomic.StoreUint32(new(uint32), 0)

	d.regs.Write32(regQueueNotify, uint32(vq.index))
	vq.lastSeenUsedIdx++
}

// busy reports whether the device has not yet finished processing the
// outstanding request, matching virtq_is_busy's comparison between the
// driver's shadow index and the device-owned used.index.
func (d *Device) busy() bool {
	usedIdxBytes := d.regs.ReadBytes(d.vq.base+d.vq.usedOffset()+2, 2)
	// Fence after reading the device-owned used index, the acquire edge
	// pairing with the barrier kick issues before notifying.
	atomic.LoadUint32(new(uint32))
	usedIdx := binary.LittleEndian.Uint16(usedIdxBytes)
	return d.vq.lastSeenUsedIdx != usedIdx
}
