// Package image reads host executables from disk: symbols, a build
// fingerprint and the bytes behind a virtual address.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// ErrUnmapped means a virtual address is not backed by file bytes.
var ErrUnmapped = errors.New("address not mapped by the image")

type rawFile interface {
	Format() string
	Symbols() (map[string]uintptr, error)
	// fileOffset maps a virtual address to an offset into the image bytes
	// and the number of bytes available from there
	fileOffset(addr uint64) (off uint64, avail uint64, ok bool)
	fingerprint(data []byte) uint32
}

var objType = []func(data []byte) (rawFile, error){
	openPE,
	openElf,
	openMacho,
}

// File is an executable image loaded in memory.
type File struct {
	raw  rawFile
	data []byte
	path string
}

// Open reads and parses the image at path.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	f.path = path
	return f, nil
}

// Parse recognizes an ELF, PE or Mach-O image.
func Parse(data []byte) (*File, error) {
	for _, try := range objType {
		if raw, err := try(data); err == nil {
			return &File{raw: raw, data: data}, nil
		}
	}
	return nil, errors.New("unrecognized object file")
}

func (f *File) Path() string   { return f.path }
func (f *File) Format() string { return f.raw.Format() }

// Symbols returns symbol names mapped to their addresses.
func (f *File) Symbols() (map[string]uintptr, error) {
	return f.raw.Symbols()
}

// Fingerprint returns the build fingerprint: the PE checksum for PE images,
// CRC-32 of the file otherwise.
func (f *File) Fingerprint() (uint32, error) {
	return f.raw.fingerprint(f.data), nil
}

// ReadVirtual returns n bytes stored at virtual address addr.
func (f *File) ReadVirtual(addr uintptr, n int) ([]byte, error) {
	off, avail, ok := f.raw.fileOffset(uint64(addr))
	if !ok || avail < uint64(n) || off+uint64(n) > uint64(len(f.data)) {
		return nil, fmt.Errorf("%w: 0x%08X+%d", ErrUnmapped, addr, n)
	}
	return bytes.Clone(f.data[off : off+uint64(n)]), nil
}

// ExecutableFingerprint fingerprints the image of the running executable.
func ExecutableFingerprint() (uint32, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}
	f, err := Open(exe)
	if err != nil {
		return 0, err
	}
	return f.Fingerprint()
}
