// Command mkarchive builds a USTAR-subset disk image from a host
// directory, for use with cmd/kernel's -archive flag. Adapted from
// biscuit/src/mkfs/mkfs.go's addfiles/copydata WalkDir pattern, replacing
// the teacher's multi-file bootable-image assembly (bootloader + kernel +
// filesystem tree) with a single flat archive of regular files, matching
// spec.md's archive format (no directories, no nesting).
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"rv32kern/internal/archive"
	"rv32kern/internal/kconfig"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: mkarchive <output image> <skel dir>\n")
		os.Exit(1)
	}
	outPath := os.Args[1]
	skelDir := os.Args[2]

	image, err := buildImage(skelDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkarchive: %s\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, image, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "mkarchive: %s\n", err)
		os.Exit(1)
	}
}

// buildImage walks skelDir, archiving every regular file it finds as a
// flat USTAR-subset entry keyed by its path relative to skelDir.
func buildImage(skelDir string) ([]byte, error) {
	var image []byte

	err := filepath.WalkDir(skelDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("accessing %q: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(path, skelDir), "/")
		if rel == "" {
			return nil
		}

		data, err := readFile(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		if len(data) > kconfig.MaxFileData {
			return fmt.Errorf("%q is %d bytes, archive entries are capped at %d", rel, len(data), kconfig.MaxFileData)
		}

		entry := archive.Serialize(rel, data)
		image = append(image, entry...)
		padding := kconfig.AlignUp(len(entry), kconfig.SectorSize) - len(entry)
		image = append(image, make([]byte, padding)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return image, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
