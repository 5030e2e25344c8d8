// Package hardware models the connection to the audio hardware: a channel
// that can be opened, started and stopped, carries a sample rate and two
// volume controls, and exposes three shared memory regions (a status
// region and the input and output rings).
package hardware

import (
	"context"
	"fmt"
)

// FrameSize is the size of one stereo 16-bit frame in bytes.
const FrameSize = 4

// Channels and bit depth of the ring buffers.
const (
	ChannelsPerFrame = 2
	BitsPerChannel   = 16
)

// BufferKind selects a shared memory region.
type BufferKind uint32

const (
	BufferStatus BufferKind = 0
	BufferInput  BufferKind = 1
	BufferOutput BufferKind = 2
)

func (k BufferKind) String() string {
	switch k {
	case BufferStatus:
		return "status"
	case BufferInput:
		return "input"
	case BufferOutput:
		return "output"
	}
	return fmt.Sprintf("buffer(%d)", uint32(k))
}

// ControlID names a hardware control.
type ControlID uint32

const (
	ControlMasterInputVolume  ControlID = 0
	ControlMasterOutputVolume ControlID = 1
)

func (c ControlID) String() string {
	switch c {
	case ControlMasterInputVolume:
		return "master_input_volume"
	case ControlMasterOutputVolume:
		return "master_output_volume"
	}
	return fmt.Sprintf("control(%d)", uint32(c))
}

// Channel is the connection to one hardware endpoint. Calls are
// synchronous and may fail.
type Channel interface {
	// Open connects to the hardware.
	Open(ctx context.Context) error

	// Close disconnects. Mapped buffers become invalid.
	Close() error

	// IsAlive reports whether the hardware is still present.
	IsAlive() bool

	// DeviceUID returns the persistent identity of the endpoint.
	DeviceUID() string

	StartHardware() error
	StopHardware() error

	SampleRate() (uint64, error)
	SetSampleRate(rate uint64) error

	ControlValue(id ControlID) (int32, error)
	SetControlValue(id ControlID, value int32) error

	// MapBuffer returns the shared memory of a region. The slice stays
	// valid until UnmapBuffer or Close.
	MapBuffer(kind BufferKind) ([]byte, error)
	UnmapBuffer(kind BufferKind) error

	// RingBufferFrameCount returns the size of each ring in frames.
	RingBufferFrameCount() (uint32, error)
}
