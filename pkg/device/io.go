package device

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/hardware"
)

// IOOperation names one step of the host's IO cycle.
type IOOperation uint32

// IO cycle operations.
var (
	IOThread        = IOOperation(hal.FourCC("thrd"))
	IOCycle         = IOOperation(hal.FourCC("cycl"))
	IOReadInput     = IOOperation(hal.FourCC("read"))
	IOConvertInput  = IOOperation(hal.FourCC("cinp"))
	IOProcessInput  = IOOperation(hal.FourCC("pinp"))
	IOProcessOutput = IOOperation(hal.FourCC("pout"))
	IOMixOutput     = IOOperation(hal.FourCC("mixo"))
	IOProcessMix    = IOOperation(hal.FourCC("pmix"))
	IOConvertMix    = IOOperation(hal.FourCC("cmix"))
	IOWriteMix      = IOOperation(hal.FourCC("rite"))
)

func (op IOOperation) String() string { return hal.FourCCString(uint32(op)) }

// IOCycleInfo carries the times of the current IO cycle, in samples.
type IOCycleInfo struct {
	CurrentTime float64
	InputTime   float64
	OutputTime  float64
}

// StartIO adds one IO client. The hardware is started on the first.
func (d *Device) StartIO(client hal.ClientID) error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if !d.IsActive() {
		return errNotActive
	}
	if d.startCount == math.MaxUint64 {
		return errStartOverflow
	}
	if d.startCount == 0 {
		if err := d.channel.StartHardware(); err != nil {
			return hal.HardwareError("start", err)
		}
		d.logger.Info("io started", "client", client)
	}
	d.startCount++
	return nil
}

// StopIO removes one IO client. The hardware is stopped after the last.
func (d *Device) StopIO(client hal.ClientID) error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if d.startCount == 0 {
		return errNotStarted
	}
	d.startCount--
	if d.startCount == 0 {
		d.logger.Info("io stopped", "client", client)
		if err := d.channel.StopHardware(); err != nil {
			return hal.HardwareError("stop", err)
		}
	}
	return nil
}

// StartCount returns the number of IO clients.
func (d *Device) StartCount() uint64 {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.startCount
}

// GetZeroTimeStamp returns the last (sample time, host time) anchor the
// hardware published. The read is optimistic and retries a bounded number
// of times while the hardware is mid-update.
func (d *Device) GetZeroTimeStamp(client hal.ClientID) (sampleTime float64, hostTime uint64, seed uint64, err error) {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()

	if d.status == nil {
		return 0, 0, 0, errNotActive
	}
	st, ht, err := d.status.Snapshot(d.cfg.TimeStampRetries)
	if err != nil {
		return 0, 0, 0, hal.HardwareError("zero time stamp", err)
	}
	return float64(st), ht, 1, nil
}

// WillDoIOOperation reports whether the device takes part in op and
// whether it works in place.
func (d *Device) WillDoIOOperation(op IOOperation) (willDo, inPlace bool) {
	switch op {
	case IOReadInput, IOWriteMix:
		return true, true
	}
	return false, true
}

// BeginIOOperation is called before DoIOOperation.
func (d *Device) BeginIOOperation(op IOOperation, frames uint32) error { return nil }

// EndIOOperation is called after DoIOOperation.
func (d *Device) EndIOOperation(op IOOperation, frames uint32) error { return nil }

// DoIOOperation copies between buf and the rings. ReadInput fills buf
// from the input ring at the cycle's input time; WriteMix copies buf into
// the output ring at the output time.
func (d *Device) DoIOOperation(streamID hal.ObjectID, op IOOperation, frames uint32, cycle IOCycleInfo, buf []byte) error {
	need := int(frames) * hardware.FrameSize
	if len(buf) < need {
		return fmt.Errorf("%w: io buffer %d bytes, need %d", hal.ErrBadPropertySize, len(buf), need)
	}

	d.ioMu.Lock()
	defer d.ioMu.Unlock()

	if d.status == nil {
		return errNotActive
	}
	if frames > d.ioFrames {
		return errTooManyFrames
	}

	switch op {
	case IOReadInput:
		if streamID != d.ids.InputStream {
			return fmt.Errorf("%w: %d is not the input stream", hal.ErrBadObject, streamID)
		}
		readRing(d.inputRing, d.ioFrames, int64(math.Floor(cycle.InputTime)), buf, int(frames))
	case IOWriteMix:
		if streamID != d.ids.OutputStream {
			return fmt.Errorf("%w: %d is not the output stream", hal.ErrBadObject, streamID)
		}
		writeRing(d.outputRing, d.ioFrames, int64(math.Floor(cycle.OutputTime)), buf, int(frames))
	}
	return nil
}
