package hardware

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// StatusRegionSize is the size of the status region in bytes: a sequence
// word followed by the sample time and the host time.
const StatusRegionSize = 24

// StatusRegion is a view over shared status memory. The hardware is the
// only writer; it bumps the sequence to an odd value, stores both times,
// then bumps it back to even. Readers accept a pair only when the sequence
// was even and unchanged across both loads.
type StatusRegion struct {
	words []uint64
}

// NewStatusRegion wraps mem, which must be at least StatusRegionSize bytes
// and 8-byte aligned.
func NewStatusRegion(mem []byte) (*StatusRegion, error) {
	if len(mem) < StatusRegionSize {
		return nil, ErrShortRegion
	}
	if uintptr(unsafe.Pointer(&mem[0]))%8 != 0 {
		return nil, ErrMisaligned
	}
	words := unsafe.Slice((*uint64)(unsafe.Pointer(&mem[0])), StatusRegionSize/8)
	return &StatusRegion{words: words}, nil
}

// Publish stores a new (sampleTime, hostTime) pair. Only one goroutine may
// publish to a region.
func (s *StatusRegion) Publish(sampleTime, hostTime uint64) {
	atomic.AddUint64(&s.words[0], 1)
	atomic.StoreUint64(&s.words[1], sampleTime)
	atomic.StoreUint64(&s.words[2], hostTime)
	atomic.AddUint64(&s.words[0], 1)
}

// Snapshot returns a consistent pair, retrying up to maxAttempts times
// while the writer is mid-update. It never blocks.
func (s *StatusRegion) Snapshot(maxAttempts int) (sampleTime, hostTime uint64, err error) {
	for i := 0; i < maxAttempts; i++ {
		before := atomic.LoadUint64(&s.words[0])
		if before&1 == 0 {
			sampleTime = atomic.LoadUint64(&s.words[1])
			hostTime = atomic.LoadUint64(&s.words[2])
			if atomic.LoadUint64(&s.words[0]) == before {
				return sampleTime, hostTime, nil
			}
		}
		runtime.Gosched()
	}
	return 0, 0, ErrTimeStampUnstable
}

// Sequence returns the current sequence word.
func (s *StatusRegion) Sequence() uint64 {
	return atomic.LoadUint64(&s.words[0])
}
