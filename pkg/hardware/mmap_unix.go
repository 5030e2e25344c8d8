//go:build unix

package hardware

import (
	"golang.org/x/sys/unix"
)

// allocRegion maps anonymous shared memory. The kernel hands back
// page-aligned memory, which the status region relies on.
func allocRegion(size int) ([]byte, func() error, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return mem, func() error { return unix.Munmap(mem) }, nil
}
