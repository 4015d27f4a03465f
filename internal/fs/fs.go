// Package fs implements the in-memory file table: a fixed FILES_MAX array
// of named byte buffers loaded from and flushed to the USTAR-subset
// archive on the block device. Grounded on
// original_source/kernel/src/fs.c's files[]/disk[] globals, wrapped in a
// narrow facade the way the teacher's ufs.Ufs_t wraps the lower fs layer
// instead of exposing the raw array.
package fs

import (
	"errors"

	"rv32kern/internal/archive"
	"rv32kern/internal/kconfig"
)

// ErrFull is returned when every file table slot is in use and a new name
// is written.
var ErrFull = errors.New("fs: file table full")

// File is one in-memory file entry.
type File struct {
	InUse bool
	Name  string
	Data  []byte
}

// Disk is the narrow block-device interface the file table reads from
// and flushes to, matching blk.FSAdapter's shape (which wraps blk.Device
// and logs sector errors) so fs never imports blk's MMIO internals
// directly.
type Disk interface {
	ReadSector(sector uint32, buf []byte)
	WriteSector(sector uint32, buf []byte)
	Capacity() uint32 // in sectors
}

// Table is the fixed-size in-memory file table.
type Table struct {
	files [kconfig.FilesMax]File
	disk  Disk
	// diskBytes is the size of the on-disk region this table occupies,
	// rounded up to a sector boundary the way DISK_MAX_SIZE is computed.
	diskBytes uint32
}

// NewTable creates a file table backed by disk, reserving diskBytes bytes
// (already sector-aligned) for Load/Flush.
func NewTable(disk Disk, diskBytes uint32) *Table {
	return &Table{disk: disk, diskBytes: diskBytes}
}

// Lookup finds a file by exact name, matching fs_lookup's linear scan.
func (t *Table) Lookup(name string) (*File, bool) {
	for i := range t.files {
		if t.files[i].InUse && t.files[i].Name == name {
			return &t.files[i], true
		}
	}
	return nil, false
}

// ReadFile returns up to maxLen bytes of name's content, or ErrNotExist-
// shaped failure via the bool, matching the syscall layer's ENOENT path.
func (t *Table) ReadFile(name string, maxLen int) ([]byte, bool) {
	f, ok := t.Lookup(name)
	if !ok {
		return nil, false
	}
	n := len(f.Data)
	if n > maxLen {
		n = maxLen
	}
	return f.Data[:n], true
}

// WriteFile creates or overwrites name with data, returning the number of
// bytes actually stored. Data beyond the fixed per-file buffer is capped
// to MaxFileData rather than rejected — spec.md §4.5/§7 places this under
// the truncation taxonomy ("silently capped... does not halt the
// kernel"), distinct from the −1 request-failure convention, mirroring
// how ReadFile already caps at the file's own size. It returns ErrFull if
// name is new and every slot is occupied.
func (t *Table) WriteFile(name string, data []byte) (int, error) {
	if len(data) > kconfig.MaxFileData {
		data = data[:kconfig.MaxFileData]
	}
	if f, ok := t.Lookup(name); ok {
		f.Data = append([]byte(nil), data...)
		return len(data), nil
	}
	for i := range t.files {
		if !t.files[i].InUse {
			t.files[i] = File{InUse: true, Name: name, Data: append([]byte(nil), data...)}
			return len(data), nil
		}
	}
	return 0, ErrFull
}

// Load reads the whole reserved disk region into memory and parses it as
// a USTAR-subset archive, populating the file table. Parsing stops at the
// first empty or invalid header, matching init_fs's loop termination.
func (t *Table) Load() {
	disk := t.readDiskImage()

	off := 0
	for i := 0; i < kconfig.FilesMax; i++ {
		if off+archive.HeaderSize > len(disk) {
			break
		}
		block := disk[off:]
		if archive.IsEmpty(block) {
			break
		}
		hdr, ok := archive.Parse(block)
		if !ok {
			break
		}

		data := make([]byte, hdr.Size)
		copy(data, block[archive.HeaderSize:archive.HeaderSize+hdr.Size])
		t.files[i] = File{InUse: true, Name: hdr.Name, Data: data}

		off += kconfig.AlignUp(archive.HeaderSize+hdr.Size, kconfig.SectorSize)
	}
}

// Flush serializes every in-use file as a USTAR-subset archive and writes
// it to the reserved disk region, matching flush_fs.
func (t *Table) Flush() {
	disk := make([]byte, t.diskBytes)

	off := 0
	for i := range t.files {
		f := &t.files[i]
		if !f.InUse {
			continue
		}
		entry := archive.Serialize(f.Name, f.Data)
		copy(disk[off:], entry)
		off += kconfig.AlignUp(len(entry), kconfig.SectorSize)
	}

	t.writeDiskImage(disk)
}

func (t *Table) readDiskImage() []byte {
	buf := make([]byte, t.diskBytes)
	sectors := t.diskBytes / kconfig.SectorSize
	for s := uint32(0); s < sectors; s++ {
		t.disk.ReadSector(s, buf[s*kconfig.SectorSize:(s+1)*kconfig.SectorSize])
	}
	return buf
}

func (t *Table) writeDiskImage(buf []byte) {
	sectors := t.diskBytes / kconfig.SectorSize
	for s := uint32(0); s < sectors; s++ {
		t.disk.WriteSector(s, buf[s*kconfig.SectorSize:(s+1)*kconfig.SectorSize])
	}
}
