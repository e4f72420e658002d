package image

import (
	"bytes"
	"debug/elf"
	"hash/crc32"
)

type elfFile struct {
	elf *elf.File
}

func openElf(data []byte) (rawFile, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &elfFile{f}, nil
}

func (e *elfFile) Format() string { return "elf" }

func (e *elfFile) Symbols() (map[string]uintptr, error) {
	elfSyms, err := e.elf.Symbols()
	if err != nil {
		return nil, err
	}
	elfOff := make(map[string]uintptr, len(elfSyms))
	for _, k := range elfSyms {
		elfOff[k.Name] = uintptr(k.Value)
	}
	return elfOff, nil
}

func (e *elfFile) fileOffset(addr uint64) (uint64, uint64, bool) {
	for _, p := range e.elf.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if addr >= p.Vaddr && addr < p.Vaddr+p.Filesz {
			delta := addr - p.Vaddr
			return p.Off + delta, p.Filesz - delta, true
		}
	}
	return 0, 0, false
}

func (e *elfFile) fingerprint(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
