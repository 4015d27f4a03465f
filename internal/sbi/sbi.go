// Package sbi wraps the firmware calling convention this kernel uses for
// console I/O and power control: a single ecall with up to six arguments
// in a0-a5, a function id in a6, and an extension id in a7, returning
// (error, value) in a0/a1. Grounded directly on
// original_source/kernel/src/sbi.c's sbi_call/putchar.
package sbi

import _ "unsafe" // for go:linkname

// Extension/function ids this kernel's firmware interface uses. The
// reference kernel calls these "SYS_*" even though they are consumed on
// the supervisor side of an ecall, not the user side; kept as sbi package
// constants here since that's the layer that actually issues the ecall.
const (
	ExtPutchar  = 1
	ExtGetchar  = 2
	ExtShutdown = 8
)

// Ret is the (error, value) pair every SBI-style call returns.
type Ret struct {
	Error int32
	Value int32
}

// call is the raw ecall primitive; backed by an asm stub because Go has
// no way to pin six argument registers and fire `ecall` from Go source.
//
//go:linkname call rv32kern_sbi_call
//go:noescape
func call(a0, a1, a2, a3, a4, a5, fid, eid int32) (int32, int32)

// Call issues a firmware call with extension eid, function fid, and up to
// six arguments (missing arguments are zero-filled, matching the
// original's fixed six-argument sbi_call signature).
func Call(eid, fid int32, args ...int32) Ret {
	var a [6]int32
	copy(a[:], args)
	errv, val := call(a[0], a[1], a[2], a[3], a[4], a[5], fid, eid)
	return Ret{Error: errv, Value: val}
}

// Putchar writes a single character to the firmware console.
func Putchar(ch byte) {
	Call(ExtPutchar, 0, int32(ch))
}

// Getchar reads a single character from the firmware console, or a
// negative value if none is available.
func Getchar() int32 {
	return Call(ExtGetchar, 0).Error
}

// Shutdown powers the machine off via the firmware. Does not return.
func Shutdown() {
	Call(ExtShutdown, 0)
}

// FirmwareConsole adapts the package-level Putchar/Getchar/Shutdown calls
// to the syscall package's Console interface, so the real boot path can
// wire firmware I/O into the dispatcher without the dispatcher importing
// sbi directly.
type FirmwareConsole struct{}

func (FirmwareConsole) Putchar(ch byte) { Putchar(ch) }
func (FirmwareConsole) Getchar() int32  { return Getchar() }
func (FirmwareConsole) Shutdown()       { Shutdown() }
