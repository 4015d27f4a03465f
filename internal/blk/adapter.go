package blk

import "rv32kern/internal/kernlog"

// FSAdapter exposes a Device through the narrow, error-free Disk
// interface internal/fs depends on. A sector failure is a
// request-failure per spec.md's taxonomy — logged and swallowed here,
// not escalated to a panic — matching read_write_disk's own FAILED-and-
// return behavior rather than a fatal abort.
type FSAdapter struct {
	Dev *Device
	Log *kernlog.Logger
}

// ReadSector implements fs.Disk.
func (a *FSAdapter) ReadSector(sector uint32, buf []byte) {
	if err := a.Dev.ReadSector(sector, buf); err != nil && a.Log != nil {
		a.Log.Failed("%s", err)
	}
}

// WriteSector implements fs.Disk.
func (a *FSAdapter) WriteSector(sector uint32, buf []byte) {
	if err := a.Dev.WriteSector(sector, buf); err != nil && a.Log != nil {
		a.Log.Failed("%s", err)
	}
}

// Capacity implements fs.Disk.
func (a *FSAdapter) Capacity() uint32 {
	return a.Dev.Capacity()
}
