package blk

import (
	"bytes"
	"testing"

	"rv32kern/internal/kconfig"
)

func TestInitValidatesAndReadsCapacity(t *testing.T) {
	disk, err := NewModelDisk(16)
	if err != nil {
		t.Fatalf("NewModelDisk: %v", err)
	}
	defer disk.Close()

	dev, err := Init(disk)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if dev.Capacity() != 16 {
		t.Errorf("Capacity() = %d, want 16", dev.Capacity())
	}
}

func TestWriteThenReadSectorRoundTrip(t *testing.T) {
	disk, err := NewModelDisk(4)
	if err != nil {
		t.Fatalf("NewModelDisk: %v", err)
	}
	defer disk.Close()

	dev, err := Init(disk)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	want := bytes.Repeat([]byte{0xAB}, kconfig.SectorSize)
	if err := dev.WriteSector(2, want); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}

	got := make([]byte, kconfig.SectorSize)
	if err := dev.ReadSector(2, got); err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("read back data does not match what was written")
	}
}

func TestReadSectorOutOfRange(t *testing.T) {
	disk, err := NewModelDisk(2)
	if err != nil {
		t.Fatalf("NewModelDisk: %v", err)
	}
	defer disk.Close()

	dev, err := Init(disk)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	buf := make([]byte, kconfig.SectorSize)
	if err := dev.ReadSector(5, buf); err == nil {
		t.Errorf("ReadSector with an out-of-range sector did not fail")
	}
}

func TestInitRejectsBadMagic(t *testing.T) {
	disk, err := NewModelDisk(1)
	if err != nil {
		t.Fatalf("NewModelDisk: %v", err)
	}
	defer disk.Close()
	putLE32(disk.regs[regMagic:], 0xdeadbeef)

	if _, err := Init(disk); err == nil {
		t.Errorf("Init accepted a bad magic value")
	}
}
