package syscall

import (
	"bytes"
	"testing"

	"rv32kern/internal/fs"
	"rv32kern/internal/kconfig"
	"rv32kern/internal/proc"
	"rv32kern/internal/trap"
)

// flatMem models a user address space as a single flat byte slice, which
// is all the dispatcher's ReadFile/WriteFile path needs to exercise
// without a real Sv32 translation.
type flatMem struct {
	buf []byte
}

func (m *flatMem) ReadBytes(addr uint32, n int) []byte {
	out := make([]byte, n)
	copy(out, m.buf[addr:])
	return out
}

func (m *flatMem) WriteBytes(addr uint32, data []byte) {
	copy(m.buf[addr:], data)
}

type memDisk struct {
	sectors [][kconfig.SectorSize]byte
}

func (d *memDisk) ReadSector(s uint32, buf []byte)  { copy(buf, d.sectors[s][:]) }
func (d *memDisk) WriteSector(s uint32, buf []byte) { copy(d.sectors[s][:], buf) }
func (d *memDisk) Capacity() uint32                 { return uint32(len(d.sectors)) }

func newDispatcher() (*Dispatcher, *flatMem) {
	disk := &memDisk{sectors: make([][kconfig.SectorSize]byte, 4)}
	files := fs.NewTable(disk, uint32(4*kconfig.SectorSize))
	mem := &flatMem{buf: make([]byte, 4096)}
	procs := proc.NewTable(nil)
	procs.InitIdleProcess(0)
	return &Dispatcher{Files: files, Procs: procs, Mem: mem}, mem
}

func TestWriteFileThenReadFile(t *testing.T) {
	d, mem := newDispatcher()

	copy(mem.buf[0:], "hello.txt\x00")
	content := "hi there\n"
	copy(mem.buf[32:], content)

	f := &trap.Frame{A0: 0, A1: 32, A2: uint32(len(content)), A3: WriteFile}
	n := d.Handle(f)
	if int32(n) != int32(len(content)) {
		t.Fatalf("WriteFile returned %d, want %d", int32(n), len(content))
	}

	f = &trap.Frame{A0: 0, A1: 256, A2: 64, A3: ReadFile}
	n = d.Handle(f)
	if int32(n) != int32(len(content)) {
		t.Fatalf("ReadFile returned %d, want %d", int32(n), len(content))
	}
	got := mem.buf[256 : 256+len(content)]
	if !bytes.Equal(got, []byte(content)) {
		t.Errorf("read back content = %q, want %q", got, content)
	}
}

func TestReadFileMissingReturnsENOENT(t *testing.T) {
	d, mem := newDispatcher()
	copy(mem.buf[0:], "missing.txt\x00")

	f := &trap.Frame{A0: 0, A1: 64, A2: 64, A3: ReadFile}
	n := d.Handle(f)
	if int32(n) != int32(ENOENT) {
		t.Errorf("ReadFile on a missing file returned %d, want %d", int32(n), ENOENT)
	}
}

// fakeConsole reports "no byte yet" negative values a fixed number of
// times before finally producing a real byte, modeling a polled firmware
// console that hasn't been typed into yet.
type fakeConsole struct {
	missesLeft int
	ch         byte
}

func (c *fakeConsole) Putchar(byte) {}

func (c *fakeConsole) Getchar() int32 {
	if c.missesLeft > 0 {
		c.missesLeft--
		return -1
	}
	return int32(c.ch)
}

func (c *fakeConsole) Shutdown() {}

func TestGetcharRetriesUntilAByteArrives(t *testing.T) {
	d, _ := newDispatcher()
	console := &fakeConsole{missesLeft: 3, ch: 'A'}
	d.Console = console

	n := d.Handle(&trap.Frame{A3: Getchar})
	if int32(n) != 'A' {
		t.Errorf("Getchar returned %d, want %q", int32(n), 'A')
	}
	if console.missesLeft != 0 {
		t.Errorf("Handle returned before exhausting the simulated misses")
	}
}

func TestUnknownSyscallPanics(t *testing.T) {
	d, _ := newDispatcher()
	defer func() {
		if recover() == nil {
			t.Fatalf("an unknown syscall number did not panic")
		}
	}()
	d.Handle(&trap.Frame{A3: 99})
}
