package interpose

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

func TestProtect_RestoresPrevious(t *testing.T) {
	for _, prot := range []int{
		unix.PROT_READ | unix.PROT_EXEC,
		unix.PROT_READ | unix.PROT_WRITE,
		unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC,
	} {
		page, err := unix.Mmap(-1, 0, int(pageSize), prot, unix.MAP_PRIVATE|unix.MAP_ANON)
		if err != nil {
			t.Fatal(err)
		}
		addr := uintptr(unsafe.Pointer(&page[0]))

		restore, err := ProcessMemory.Protect(addr+0x10, JumpSize)
		if err != nil {
			t.Fatal(err)
		}
		if got := pageProtections(addr, pageSize); got[0].prot&unix.PROT_WRITE == 0 {
			t.Fatalf("expected writable page - got prot %d", got[0].prot)
		}
		if err := restore(); err != nil {
			t.Fatal(err)
		}
		got := pageProtections(addr, pageSize)
		if len(got) != 1 || got[0].prot != prot {
			t.Fatalf("expected prot %d restored - got %v", prot, got)
		}
		unix.Munmap(page)
	}
}
