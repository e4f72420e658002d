package image

import (
	"bytes"
	"debug/macho"
	"hash/crc32"
)

type machoFile struct {
	macho *macho.File
}

func openMacho(data []byte) (rawFile, error) {
	f, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &machoFile{f}, nil
}

func (f *machoFile) Format() string { return "macho" }

func (f *machoFile) Symbols() (map[string]uintptr, error) {
	if f.macho.Symtab == nil {
		return map[string]uintptr{}, nil
	}
	off := make(map[string]uintptr, len(f.macho.Symtab.Syms))
	for _, s := range f.macho.Symtab.Syms {
		off[s.Name] = uintptr(s.Value)
	}
	return off, nil
}

func (f *machoFile) fileOffset(addr uint64) (uint64, uint64, bool) {
	for _, l := range f.macho.Loads {
		seg, ok := l.(*macho.Segment)
		if !ok {
			continue
		}
		if addr >= seg.Addr && addr < seg.Addr+seg.Filesz {
			delta := addr - seg.Addr
			return seg.Offset + delta, seg.Filesz - delta, true
		}
	}
	return 0, 0, false
}

func (f *machoFile) fingerprint(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
