package device

import "github.com/teslashibe/go-syncvoice/pkg/hardware"

// ringOffset returns the frame index of sampleTime in a ring of frames
// frames. Negative times wrap from the end.
func ringOffset(sampleTime int64, frames uint32) int {
	f := int64(frames)
	return int(((sampleTime % f) + f) % f)
}

// readRing copies frames frames starting at sampleTime out of ring into
// dst. A span crossing the end of the ring is copied in two parts.
func readRing(ring []byte, ringFrames uint32, sampleTime int64, dst []byte, frames int) {
	off := ringOffset(sampleTime, ringFrames) * hardware.FrameSize
	n := frames * hardware.FrameSize
	first := min(n, len(ring)-off)
	copy(dst[:first], ring[off:off+first])
	if first < n {
		copy(dst[first:n], ring[:n-first])
	}
}

// writeRing copies frames frames of src into ring starting at sampleTime.
func writeRing(ring []byte, ringFrames uint32, sampleTime int64, src []byte, frames int) {
	off := ringOffset(sampleTime, ringFrames) * hardware.FrameSize
	n := frames * hardware.FrameSize
	first := min(n, len(ring)-off)
	copy(ring[off:off+first], src[:first])
	if first < n {
		copy(ring[:n-first], src[first:n])
	}
}
