package image

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
)

type peFile struct {
	pe        *pe.File
	imageBase uint64
	// file offset of the optional header's CheckSum field
	checksumOff int
}

func openPE(data []byte) (rawFile, error) {
	if len(data) < 0x40 || data[0] != 'M' || data[1] != 'Z' {
		return nil, errors.New("no MZ header")
	}
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	out := &peFile{pe: f}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		out.imageBase = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		out.imageBase = oh.ImageBase
	}
	// e_lfanew + "PE\0\0" + COFF header + CheckSum offset
	lfanew := int(binary.LittleEndian.Uint32(data[0x3c:0x40]))
	out.checksumOff = lfanew + 4 + 20 + 64
	return out, nil
}

func (f *peFile) Format() string { return "pe" }

func (f *peFile) Symbols() (map[string]uintptr, error) {
	off := make(map[string]uintptr, len(f.pe.Symbols))
	for _, s := range f.pe.Symbols {
		if s.SectionNumber <= 0 || int(s.SectionNumber) > len(f.pe.Sections) {
			continue
		}
		sect := f.pe.Sections[s.SectionNumber-1]
		off[s.Name] = uintptr(f.imageBase + uint64(sect.VirtualAddress) + uint64(s.Value))
	}
	return off, nil
}

func (f *peFile) fileOffset(addr uint64) (uint64, uint64, bool) {
	if addr < f.imageBase {
		return 0, 0, false
	}
	rva := addr - f.imageBase
	for _, s := range f.pe.Sections {
		start := uint64(s.VirtualAddress)
		if rva >= start && rva < start+uint64(s.Size) {
			delta := rva - start
			return uint64(s.Offset) + delta, uint64(s.Size) - delta, true
		}
	}
	return 0, 0, false
}

func (f *peFile) fingerprint(data []byte) uint32 {
	return peChecksum(data, f.checksumOff)
}

// peChecksum is the image checksum the Windows loader computes: a folded
// 16-bit word sum skipping the CheckSum field, plus the file length.
func peChecksum(data []byte, checksumOff int) uint32 {
	var sum uint64
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		if i == checksumOff || i == checksumOff+2 {
			continue
		}
		sum += uint64(binary.LittleEndian.Uint16(data[i:]))
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	if n%2 == 1 {
		sum += uint64(data[n-1])
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	sum = (sum & 0xFFFF) + (sum >> 16)
	return uint32(sum) + uint32(n)
}
