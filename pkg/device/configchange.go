package device

import (
	"math"

	"github.com/teslashibe/go-syncvoice/pkg/hal"
)

func (d *Device) setNominalSampleRate(r hal.Request, data []byte) error {
	v, err := hal.Float64(data)
	if err != nil {
		return err
	}
	if v <= 0 || v != math.Trunc(v) || !IsSupportedSampleRate(uint64(v)) {
		return errUnknownRate
	}
	return d.requestRate(uint64(v))
}

func (d *Device) setStreamFormat(r hal.Request, data []byte) error {
	f, err := hal.DecodeStreamBasicDescription(data)
	if err != nil {
		return err
	}
	rate, err := ValidateFormat(f)
	if err != nil {
		return err
	}
	return d.requestRate(rate)
}

// requestRate asks the host for a configuration change when rate differs
// from the shadow. The request is submitted from the dispatch queue.
func (d *Device) requestRate(rate uint64) error {
	if !d.IsActive() {
		return errNotActive
	}
	if d.sampleRateShadow() == rate {
		return nil
	}
	if d.host == nil {
		return nil
	}
	d.logger.Info("sample rate change requested", "rate", rate)
	return d.queue.Dispatch(func() {
		if err := d.host.RequestDeviceConfigurationChange(d.ids.Device, rate, nil); err != nil {
			d.logger.Warn("config change request failed", "rate", rate, "err", err)
		}
	})
}

// PerformConfigChange applies a change the host approved. IO is quiesced
// while it runs. The action is the new sample rate.
func (d *Device) PerformConfigChange(action uint64, info any) error {
	d.stateMu.Lock()
	if !IsSupportedSampleRate(action) {
		d.stateMu.Unlock()
		d.logger.Debug("ignoring config change", "action", action)
		return nil
	}
	if err := d.channel.SetSampleRate(action); err != nil {
		d.stateMu.Unlock()
		return hal.HardwareError("set sample rate", err)
	}
	d.sampleRate = action
	d.stateMu.Unlock()

	d.logger.Info("sample rate changed", "rate", action)
	d.notify(d.ids.Device, hal.GlobalAddr(hal.PropNominalSampleRate))
	d.notify(d.ids.InputStream, hal.GlobalAddr(hal.PropVirtualFormat), hal.GlobalAddr(hal.PropPhysicalFormat))
	d.notify(d.ids.OutputStream, hal.GlobalAddr(hal.PropVirtualFormat), hal.GlobalAddr(hal.PropPhysicalFormat))
	return nil
}

// AbortConfigChange drops a change the host declined. Nothing was applied
// at request time, so there is nothing to undo.
func (d *Device) AbortConfigChange(action uint64, info any) error {
	d.logger.Debug("config change aborted", "action", action)
	return nil
}
