package fs

import (
	"bytes"
	"testing"

	"rv32kern/internal/kconfig"
)

// memDisk is a trivial sector-addressed Disk backed by a byte slice, the
// lightest possible test double for the Load/Flush round trip.
type memDisk struct {
	sectors [][kconfig.SectorSize]byte
}

func newMemDisk(n int) *memDisk {
	return &memDisk{sectors: make([][kconfig.SectorSize]byte, n)}
}

func (d *memDisk) ReadSector(sector uint32, buf []byte)  { copy(buf, d.sectors[sector][:]) }
func (d *memDisk) WriteSector(sector uint32, buf []byte) { copy(d.sectors[sector][:], buf) }
func (d *memDisk) Capacity() uint32                      { return uint32(len(d.sectors)) }

func TestFlushLoadRoundTrip(t *testing.T) {
	disk := newMemDisk(8)
	diskBytes := uint32(8 * kconfig.SectorSize)

	t1 := NewTable(disk, diskBytes)
	if _, err := t1.WriteFile("hello.txt", []byte("Hello from shell!\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t1.Flush()

	t2 := NewTable(disk, diskBytes)
	t2.Load()

	f, ok := t2.Lookup("hello.txt")
	if !ok {
		t.Fatalf("Lookup(hello.txt) after Load: not found")
	}
	if !bytes.Equal(f.Data, []byte("Hello from shell!\n")) {
		t.Errorf("data = %q", f.Data)
	}
}

func TestWriteFileOversizedIsCappedNotRejected(t *testing.T) {
	disk := newMemDisk(8)
	table := NewTable(disk, uint32(8*kconfig.SectorSize))
	big := make([]byte, kconfig.MaxFileData+1)
	for i := range big {
		big[i] = 'x'
	}

	n, err := table.WriteFile("big", big)
	if err != nil {
		t.Fatalf("WriteFile with oversized data: err = %v, want a capped success", err)
	}
	if n != kconfig.MaxFileData {
		t.Errorf("WriteFile reported %d bytes written, want %d", n, kconfig.MaxFileData)
	}

	f, ok := table.Lookup("big")
	if !ok {
		t.Fatalf("Lookup(big) after WriteFile: not found")
	}
	if len(f.Data) != kconfig.MaxFileData {
		t.Errorf("stored data length = %d, want %d", len(f.Data), kconfig.MaxFileData)
	}
}

func TestFileTableFull(t *testing.T) {
	disk := newMemDisk(8)
	table := NewTable(disk, uint32(8*kconfig.SectorSize))
	for i := 0; i < kconfig.FilesMax; i++ {
		name := string(rune('a' + i))
		if _, err := table.WriteFile(name, []byte("x")); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	if _, err := table.WriteFile("one-too-many", []byte("x")); err != ErrFull {
		t.Errorf("err = %v, want ErrFull", err)
	}
}

func TestLookupMiss(t *testing.T) {
	disk := newMemDisk(8)
	table := NewTable(disk, uint32(8*kconfig.SectorSize))
	if _, ok := table.Lookup("nope"); ok {
		t.Errorf("Lookup found a file in an empty table")
	}
}
