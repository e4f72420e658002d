package interpose

import (
	"fmt"
	"unsafe"
)

// Memory reads and writes code at absolute addresses of the host.
type Memory interface {
	Read(addr uintptr, n int) ([]byte, error)
	Write(addr uintptr, p []byte) error
	// Protect makes [addr, addr+size) writable and executable. The returned
	// func puts the previous protection back.
	Protect(addr, size uintptr) (restore func() error, err error)
}

// ProcessMemory is the memory of the running process.
var ProcessMemory Memory = processMemory{}

type processMemory struct{}

func (processMemory) Read(addr uintptr, n int) ([]byte, error) {
	if addr == 0 {
		return nil, fmt.Errorf("read %d bytes at null address", n)
	}
	out := make([]byte, n)
	copy(out, makeSlice(addr, uintptr(n)))
	return out, nil
}

func (processMemory) Write(addr uintptr, p []byte) error {
	if addr == 0 {
		return fmt.Errorf("write %d bytes at null address", len(p))
	}
	copy(makeSlice(addr, uintptr(len(p))), p)
	return nil
}

func (processMemory) Protect(addr, size uintptr) (func() error, error) {
	return protectPages(addr, size)
}

func makeSlice(addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(foreignPointer(addr)), size)
}

// foreignPointer converts a host address. The host owns the memory; the
// Go runtime never frees or moves it.
func foreignPointer(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

func pageSpan(addr, size uintptr) (start, length uintptr) {
	start = pageSize * (addr / pageSize)
	length = pageSize * ((addr + size + pageSize - 1 - start) / pageSize)
	return start, length
}

var pageSize uintptr
