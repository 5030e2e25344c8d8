package hardware

import "errors"

var (
	// ErrNotOpen is returned by operations that need an open channel.
	ErrNotOpen = errors.New("hardware: channel not open")

	// ErrAlreadyOpen is returned when opening an open channel.
	ErrAlreadyOpen = errors.New("hardware: channel already open")

	// ErrNotAlive is returned once the hardware has gone away.
	ErrNotAlive = errors.New("hardware: device not alive")

	// ErrUnsupportedRate is returned for sample rates the hardware rejects.
	ErrUnsupportedRate = errors.New("hardware: unsupported sample rate")

	// ErrUnknownControl is returned for an unknown control id.
	ErrUnknownControl = errors.New("hardware: unknown control")

	// ErrUnknownBuffer is returned for an unknown buffer kind.
	ErrUnknownBuffer = errors.New("hardware: unknown buffer")

	// ErrNotMapped is returned when unmapping a region that is not mapped.
	ErrNotMapped = errors.New("hardware: buffer not mapped")

	// ErrShortRegion is returned when a status region is too small.
	ErrShortRegion = errors.New("hardware: status region too small")

	// ErrMisaligned is returned when a status region is not 8-byte aligned.
	ErrMisaligned = errors.New("hardware: status region misaligned")

	// ErrTimeStampUnstable is returned when the status region never held a
	// consistent pair within the retry budget.
	ErrTimeStampUnstable = errors.New("hardware: zero timestamp unstable")

	// ErrUnsupportedWAV is returned for WAV files that are not 16-bit mono
	// or stereo.
	ErrUnsupportedWAV = errors.New("hardware: wav must be 16-bit mono or stereo PCM")
)
