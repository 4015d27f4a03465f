// Package archive implements the USTAR-subset codec this kernel uses as
// its on-disk file format: fixed 512-byte headers immediately followed by
// file data, padded to a sector boundary. Grounded directly on
// original_source/kernel/src/fs.c's init_fs/flush_fs and on
// kernel/include/fs.h's tar_header layout. archive/tar is not
// format-compatible with this deliberately restricted subset (permissive
// digit-only size field, no GNU/PAX long-name extensions, fixed 100-byte
// name) so headers are packed by hand, the way the teacher's mkfs tool
// hand-packs its own on-disk format.
package archive

import (
	"fmt"
	"strconv"
	"strings"
)

// HeaderSize is the fixed USTAR header size in bytes.
const HeaderSize = 512

// Field byte offsets and widths within a header, per kernel/include/fs.h's
// struct tar_header.
const (
	offName     = 0
	lenName     = 100
	offMode     = 100
	lenMode     = 8
	offUID      = 108
	lenUID      = 8
	offGID      = 116
	lenGID      = 8
	offSize     = 124
	lenSize     = 12
	offMtime    = 136
	lenMtime    = 12
	offChecksum = 148
	lenChecksum = 8
	offType     = 156
	offLinkname = 157
	lenLinkname = 100
	offMagic    = 257
	lenMagic    = 6
	offVersion  = 263
	lenVersion  = 2
	offUname    = 265
	lenUname    = 32
	offGname    = 297
	lenGname    = 32
)

// Magic is the USTAR format signature this kernel recognizes.
const Magic = "ustar"

// TypeRegular marks a regular file entry.
const TypeRegular = '0'

// Header is a parsed view of one archive entry's metadata, the in-memory
// counterpart of struct tar_header.
type Header struct {
	Name string
	Size int
	Type byte
}

// IsEmpty reports whether the raw 512-byte block is a terminator entry,
// the condition init_fs checks via header->name[0] == '\0'. Only the first
// byte is examined; the rest of the block is not checked for zeros.
func IsEmpty(block []byte) bool {
	return len(block) == 0 || block[0] == 0
}

// Parse reads a header out of a 512-byte block. It reports ok=false if
// the block's magic field doesn't match "ustar", the same validation
// init_fs performs before trusting an entry.
func Parse(block []byte) (Header, bool) {
	if len(block) < HeaderSize {
		return Header{}, false
	}
	magic := string(trimField(block[offMagic : offMagic+lenMagic]))
	if magic != Magic {
		return Header{}, false
	}

	size, err := ParseSize(block[offSize : offSize+lenSize])
	if err != nil {
		return Header{}, false
	}

	return Header{
		Name: string(trimField(block[offName : offName+lenName])),
		Size: size,
		Type: block[offType],
	}, true
}

// ParseSize decodes a USTAR size field. The reference kernel builds this
// value by prepending the literal string "0o" and calling a generic atoi
// that sniffs a base from a prefix; that is an artifact of reusing one
// helper for one call site, not a format requirement. A USTAR size field
// is a bare run of octal digits (NUL- or space-padded), so this parser
// trims the padding and reads it directly in base 8.
func ParseSize(field []byte) (int, error) {
	trimmed := strings.TrimRight(string(trimField(field)), " ")
	trimmed = strings.TrimLeft(trimmed, "0")
	if trimmed == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(trimmed, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("archive: bad size field %q: %w", field, err)
	}
	return int(v), nil
}

// trimField trims trailing NUL bytes from a fixed-width field.
func trimField(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}

// Serialize writes a regular-file header plus its data into a fresh
// 512-byte-aligned block, computing the checksum the way flush_fs does:
// sum every byte of the header with the checksum field treated as eight
// ASCII spaces, then overwrite the checksum field with that sum as six
// octal digits followed by NUL and space.
func Serialize(name string, data []byte) []byte {
	block := make([]byte, HeaderSize)
	copy(block[offName:offName+lenName], name)
	copy(block[offMode:offMode+lenMode], "000644")
	copy(block[offMagic:offMagic+lenMagic], Magic)
	copy(block[offVersion:offVersion+lenVersion], "00")
	block[offType] = TypeRegular

	writeOctalField(block[offSize:offSize+lenSize], len(data))

	for i := offChecksum; i < offChecksum+lenChecksum; i++ {
		block[i] = ' '
	}
	sum := 0
	for _, b := range block {
		sum += int(b)
	}
	writeChecksumField(block[offChecksum:offChecksum+lenChecksum], sum)

	return append(block, data...)
}

// writeOctalField writes v right-aligned as zero-padded octal digits
// filling the whole field, matching flush_fs's per-digit loop over
// header->size.
func writeOctalField(field []byte, v int) {
	for i := len(field) - 1; i >= 0; i-- {
		field[i] = byte(v%8) + '0'
		v /= 8
	}
}

// writeChecksumField writes the six-octal-digit checksum followed by a
// NUL and a trailing space, matching flush_fs's header->checksum[6] =
// '\0'; header->checksum[7] = ' '.
func writeChecksumField(field []byte, sum int) {
	for i := 5; i >= 0; i-- {
		field[i] = byte(sum%8) + '0'
		sum /= 8
	}
	field[6] = 0
	field[7] = ' '
}
