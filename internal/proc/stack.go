package proc

import "unsafe"

// uintptrOf returns the address of a byte as a uintptr, the Go-native
// equivalent of the original's raw pointer-to-int casts when setting up a
// process's kernel stack.
func uintptrOf(b *byte) uintptr {
	return uintptr(unsafe.Pointer(b))
}

// writeStackWord writes val as a 32-bit register-width word at byte
// offset off within stack, the Go-native equivalent of the original's
// *--sp = val pointer arithmetic over a uint32 array. Generalizes the
// teacher's util.Writen byte-packing helper to the one width this package
// needs.
func writeStackWord(stack []byte, off uintptr, val uint32) {
	p := unsafe.Pointer(&stack[off])
	*(*uint32)(p) = val
}
