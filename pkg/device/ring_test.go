package device

import (
	"bytes"
	"testing"

	"github.com/teslashibe/go-syncvoice/pkg/hardware"
)

func TestRingOffset(t *testing.T) {
	tests := []struct {
		time   int64
		frames uint32
		want   int
	}{
		{0, 8, 0},
		{5, 8, 5},
		{8, 8, 0},
		{13, 8, 5},
		{-1, 8, 7},
		{-8, 8, 0},
		{-9, 8, 7},
		{1 << 40, 16384, 0},
	}
	for _, tt := range tests {
		if got := ringOffset(tt.time, tt.frames); got != tt.want {
			t.Errorf("ringOffset(%d, %d) = %d, want %d", tt.time, tt.frames, got, tt.want)
		}
	}
}

// pattern fills a ring where frame i holds bytes of value i.
func pattern(frames int) []byte {
	ring := make([]byte, frames*hardware.FrameSize)
	for i := range ring {
		ring[i] = byte(i / hardware.FrameSize)
	}
	return ring
}

func TestReadRing_AllSpans(t *testing.T) {
	for _, frames := range []uint32{1, 3, 8, 17} {
		ring := pattern(int(frames))
		for size := 1; size <= int(frames); size++ {
			for start := -2 * int64(frames); start <= 2*int64(frames); start++ {
				// Guard bytes catch writes past the transfer.
				dst := make([]byte, size*hardware.FrameSize+hardware.FrameSize)
				for i := range dst {
					dst[i] = 0xEE
				}
				readRing(ring, frames, start, dst, size)

				for i := 0; i < size; i++ {
					want := byte(ringOffset(start+int64(i), frames))
					got := dst[i*hardware.FrameSize : (i+1)*hardware.FrameSize]
					if !bytes.Equal(got, bytes.Repeat([]byte{want}, hardware.FrameSize)) {
						t.Fatalf("F=%d S=%d t=%d: frame %d = %v, want %d", frames, size, start, i, got, want)
					}
				}
				tail := dst[size*hardware.FrameSize:]
				if !bytes.Equal(tail, bytes.Repeat([]byte{0xEE}, hardware.FrameSize)) {
					t.Fatalf("F=%d S=%d t=%d: wrote past transfer", frames, size, start)
				}
			}
		}
	}
}

func TestWriteRing_AllSpans(t *testing.T) {
	for _, frames := range []uint32{1, 4, 9} {
		for size := 1; size <= int(frames); size++ {
			for start := -2 * int64(frames); start <= 2*int64(frames); start++ {
				ring := make([]byte, int(frames)*hardware.FrameSize)
				src := make([]byte, size*hardware.FrameSize)
				for i := range src {
					src[i] = byte(i/hardware.FrameSize + 1)
				}
				writeRing(ring, frames, start, src, size)

				written := 0
				for i := 0; i < int(frames); i++ {
					if ring[i*hardware.FrameSize] != 0 {
						written++
					}
				}
				if written != size {
					t.Fatalf("F=%d S=%d t=%d: wrote %d frames", frames, size, start, written)
				}
				for i := 0; i < size; i++ {
					off := ringOffset(start+int64(i), frames) * hardware.FrameSize
					if ring[off] != byte(i+1) {
						t.Fatalf("F=%d S=%d t=%d: frame %d at %d = %d", frames, size, start, i, off, ring[off])
					}
				}
			}
		}
	}
}
