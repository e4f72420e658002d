//go:build !windows

package interpose

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// codeProt is assumed for pages whose protection cannot be read back.
const codeProt = unix.PROT_READ | unix.PROT_EXEC

// protRange is a run of pages sharing one protection.
type protRange struct {
	start, length uintptr
	prot          int
}

// protectPages makes the pages spanning [addr, addr+size) RWX. Restore
// puts back the protection each page had before.
func protectPages(addr, size uintptr) (func() error, error) {
	start, length := pageSpan(addr, size)
	prev := pageProtections(start, length)
	if err := unix.Mprotect(makeSlice(start, length), unix.PROT_EXEC|unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return nil, fmt.Errorf("mprotect rwx 0x%X+0x%X: %w", start, length, err)
	}
	return func() error {
		for _, r := range prev {
			if err := unix.Mprotect(makeSlice(r.start, r.length), r.prot); err != nil {
				return fmt.Errorf("mprotect restore 0x%X+0x%X: %w", r.start, r.length, err)
			}
		}
		return nil
	}, nil
}

// parseMaps reads a /proc/<pid>/maps listing and returns the protection of
// every mapping overlapping [start, start+length) clipped to that span.
// ok is false unless the mappings cover the whole span.
func parseMaps(r io.Reader, start, length uintptr) (ranges []protRange, ok bool) {
	end := start + length
	covered := uintptr(0)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		lo, hi, found := strings.Cut(fields[0], "-")
		if !found {
			continue
		}
		from, err1 := strconv.ParseUint(lo, 16, 64)
		to, err2 := strconv.ParseUint(hi, 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		a, b := max(uintptr(from), start), min(uintptr(to), end)
		if a >= b {
			continue
		}
		ranges = append(ranges, protRange{start: a, length: b - a, prot: parsePerms(fields[1])})
		covered += b - a
	}
	if sc.Err() != nil || covered != length {
		return nil, false
	}
	return ranges, true
}

func parsePerms(perms string) int {
	prot := unix.PROT_NONE
	for i, c := range perms {
		switch {
		case i == 0 && c == 'r':
			prot |= unix.PROT_READ
		case i == 1 && c == 'w':
			prot |= unix.PROT_WRITE
		case i == 2 && c == 'x':
			prot |= unix.PROT_EXEC
		}
	}
	return prot
}

func init() {
	pageSize = uintptr(unix.Getpagesize())
}
