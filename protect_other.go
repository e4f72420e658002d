//go:build !windows && !linux

package interpose

// mprotect cannot report the old protection here; code pages are RX.
func pageProtections(start, length uintptr) []protRange {
	return []protRange{{start: start, length: length, prot: codeProt}}
}
