package interpose

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// protectPages makes [addr, addr+size) RWX and restores the protection
// VirtualProtect reports as previous.
func protectPages(addr, size uintptr) (func() error, error) {
	var old uint32
	if err := windows.VirtualProtect(addr, size, windows.PAGE_EXECUTE_READWRITE, &old); err != nil {
		return nil, fmt.Errorf("VirtualProtect PAGE_EXECUTE_READWRITE failed for 0x%08X: %w", addr, err)
	}
	return func() error {
		var ignored uint32
		if err := windows.VirtualProtect(addr, size, old, &ignored); err != nil {
			return fmt.Errorf("VirtualProtect restore failed for 0x%08X: %w", addr, err)
		}
		return nil
	}, nil
}

func init() {
	pageSize = uintptr(windows.Getpagesize())
}
