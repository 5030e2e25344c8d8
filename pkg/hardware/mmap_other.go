//go:build !unix

package hardware

import "unsafe"

// allocRegion falls back to heap memory backed by uint64 words so the
// status region stays 8-byte aligned.
func allocRegion(size int) ([]byte, func() error, error) {
	words := make([]uint64, (size+7)/8)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
	return mem, func() error { return nil }, nil
}
