package device

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/volume"
)

// Format constants of the one supported stream format.
const (
	channelsPerFrame = 2
	bitsPerChannel   = 16
	bytesPerFrame    = channelsPerFrame * bitsPerChannel / 8
)

// StreamFormat returns the supported format at rate.
func StreamFormat(rate uint64) hal.StreamBasicDescription {
	return hal.StreamBasicDescription{
		SampleRate:       float64(rate),
		FormatID:         hal.FormatLinearPCM,
		FormatFlags:      hal.FormatFlagIsSignedInteger | hal.FormatFlagIsPacked,
		BytesPerPacket:   bytesPerFrame,
		FramesPerPacket:  1,
		BytesPerFrame:    bytesPerFrame,
		ChannelsPerFrame: channelsPerFrame,
		BitsPerChannel:   bitsPerChannel,
	}
}

// ValidateFormat checks every field of f against the supported format and
// returns the requested rate.
func ValidateFormat(f hal.StreamBasicDescription) (uint64, error) {
	if f.SampleRate != math.Trunc(f.SampleRate) || f.SampleRate <= 0 {
		return 0, fmt.Errorf("%w: sample rate %v", hal.ErrUnsupportedFormat, f.SampleRate)
	}
	rate := uint64(f.SampleRate)
	if !IsSupportedSampleRate(rate) {
		return 0, fmt.Errorf("%w: sample rate %d", hal.ErrUnsupportedFormat, rate)
	}
	if f != StreamFormat(rate) {
		return 0, fmt.Errorf("%w: %+v", hal.ErrUnsupportedFormat, f)
	}
	return rate, nil
}

func availableFormats() []hal.RangedDescription {
	out := make([]hal.RangedDescription, 0, len(SupportedSampleRates))
	for _, rate := range SupportedSampleRates {
		out = append(out, hal.RangedDescription{
			Format:          StreamFormat(rate),
			SampleRateRange: hal.ValueRange{Min: float64(rate), Max: float64(rate)},
		})
	}
	return out
}

func availableRates() []hal.ValueRange {
	out := make([]hal.ValueRange, 0, len(SupportedSampleRates))
	for _, rate := range SupportedSampleRates {
		out = append(out, hal.ValueRange{Min: float64(rate), Max: float64(rate)})
	}
	return out
}

var stereoLayout = hal.ChannelLayout{
	Tag: hal.ChannelLayoutTagUseDescriptions,
	Descriptions: []hal.ChannelDescription{
		{Label: hal.ChannelLabelLeft},
		{Label: hal.ChannelLabelRight},
	},
}

func (d *Device) buildChains() map[role]hal.Chain {
	chains := map[role]hal.Chain{
		{kind: roleDevice}: {d.deviceTable(), d.Base.Table()},
	}
	for _, dir := range []direction{dirInput, dirOutput} {
		streamID, controlID := d.ids.OutputStream, d.ids.OutputVolume
		if dir == dirInput {
			streamID, controlID = d.ids.InputStream, d.ids.InputVolume
		}
		stream := hal.NewBase(streamID, hal.ClassStream, hal.ClassObject, d.ids.Device)
		control := hal.NewBase(controlID, hal.ClassVolumeControl, hal.ClassLevelControl, d.ids.Device)
		chains[role{kind: roleStream, dir: dir}] = hal.Chain{d.streamTable(dir), stream.Table()}
		chains[role{kind: roleControl, dir: dir}] = hal.Chain{d.controlTable(dir), control.Table()}
	}
	return chains
}

// scopedIDs picks the global list or one side of it.
func scopedIDs(scope hal.Scope, input, output []hal.ObjectID) []hal.ObjectID {
	switch scope {
	case hal.ScopeGlobal:
		return append(append([]hal.ObjectID{}, input...), output...)
	case hal.ScopeInput:
		return input
	case hal.ScopeOutput:
		return output
	}
	return nil
}

func (d *Device) deviceTable() hal.Table {
	sides := []hal.Scope{hal.ScopeInput, hal.ScopeOutput}
	return hal.Table{
		hal.PropName:         hal.ConstString(d.cfg.Name),
		hal.PropManufacturer: hal.ConstString(d.cfg.Manufacturer),
		hal.PropOwnedObjects: hal.ObjectIDsProp(func(r hal.Request) []hal.ObjectID {
			return scopedIDs(r.Address.Scope,
				[]hal.ObjectID{d.ids.InputStream, d.ids.InputVolume},
				[]hal.ObjectID{d.ids.OutputStream, d.ids.OutputVolume})
		}),
		hal.PropDeviceUID:     hal.StringProp(func(hal.Request) string { return d.channel.DeviceUID() }),
		hal.PropModelUID:      hal.ConstString(d.cfg.ModelUID),
		hal.PropTransportType: hal.ConstUint32(hal.TransportTypeVirtual),
		hal.PropRelatedDevices: hal.ObjectIDsProp(func(hal.Request) []hal.ObjectID {
			return []hal.ObjectID{d.ids.Device}
		}),
		hal.PropClockDomain:   hal.ConstUint32(0),
		hal.PropDeviceIsAlive: hal.BoolProp(func(hal.Request) bool { return d.IsActive() && d.channel.IsAlive() }),
		hal.PropDeviceIsRunning: hal.BoolProp(func(hal.Request) bool {
			d.stateMu.Lock()
			defer d.stateMu.Unlock()
			return d.startCount > 0
		}),
		hal.PropDeviceCanBeDefault:       hal.ConstUint32(1).In(sides...),
		hal.PropDeviceCanBeDefaultSystem: hal.ConstUint32(1).In(sides...),
		hal.PropLatency:                  hal.ConstUint32(0).In(sides...),
		hal.PropSafetyOffset:             hal.ConstUint32(0).In(sides...),
		hal.PropStreams: hal.ObjectIDsProp(func(r hal.Request) []hal.ObjectID {
			return scopedIDs(r.Address.Scope, []hal.ObjectID{d.ids.InputStream}, []hal.ObjectID{d.ids.OutputStream})
		}),
		hal.PropControlList: hal.ObjectIDsProp(func(r hal.Request) []hal.ObjectID {
			return scopedIDs(r.Address.Scope, []hal.ObjectID{d.ids.InputVolume}, []hal.ObjectID{d.ids.OutputVolume})
		}),
		hal.PropNominalSampleRate: hal.Float64Prop(func(hal.Request) float64 {
			return float64(d.sampleRateShadow())
		}).Settable(d.setNominalSampleRate),
		hal.PropAvailableNominalSampleRates: hal.ValueRangesProp(func(hal.Request) []hal.ValueRange {
			return availableRates()
		}),
		hal.PropIsHidden: hal.ConstUint32(0),
		hal.PropPreferredChannelsForStereo: hal.Uint32sProp(func(hal.Request) []uint32 {
			return []uint32{1, 2}
		}).In(sides...),
		hal.PropPreferredChannelLayout: hal.ChannelLayoutProp(func(hal.Request) hal.ChannelLayout {
			return stereoLayout
		}).In(sides...),
		hal.PropZeroTimeStampPeriod: hal.Uint32Prop(func(hal.Request) uint32 {
			d.stateMu.Lock()
			defer d.stateMu.Unlock()
			return d.ringFrames
		}),
	}
}

func (d *Device) streamTable(dir direction) hal.Table {
	streamID := d.ids.OutputStream
	terminal := hal.TerminalSpeaker
	var isInput uint32
	if dir == dirInput {
		streamID = d.ids.InputStream
		terminal = hal.TerminalMicrophone
		isInput = 1
	}
	format := hal.StreamFormatProp(func(hal.Request) hal.StreamBasicDescription {
		return StreamFormat(d.sampleRateShadow())
	}).Settable(d.setStreamFormat)
	formats := hal.RangedDescriptionsProp(func(hal.Request) []hal.RangedDescription {
		return availableFormats()
	})

	return hal.Table{
		hal.PropStreamIsActive: hal.BoolProp(func(hal.Request) bool {
			d.stateMu.Lock()
			defer d.stateMu.Unlock()
			return d.streamActive[dir]
		}).Settable(func(r hal.Request, data []byte) error {
			v, err := hal.Uint32(data)
			if err != nil {
				return err
			}
			d.stateMu.Lock()
			changed := d.streamActive[dir] != (v != 0)
			d.streamActive[dir] = v != 0
			d.stateMu.Unlock()
			if changed {
				d.notify(streamID, hal.GlobalAddr(hal.PropStreamIsActive))
			}
			return nil
		}),
		hal.PropStreamDirection:          hal.ConstUint32(isInput),
		hal.PropTerminalType:             hal.ConstUint32(terminal),
		hal.PropStartingChannel:          hal.ConstUint32(1),
		hal.PropLatency:                  hal.ConstUint32(0),
		hal.PropVirtualFormat:            format,
		hal.PropPhysicalFormat:           format,
		hal.PropAvailableVirtualFormats:  formats,
		hal.PropAvailablePhysicalFormats: formats,
	}
}

func (d *Device) controlTable(dir direction) hal.Table {
	controlID := d.ids.OutputVolume
	if dir == dirInput {
		controlID = d.ids.InputVolume
	}
	curve := d.curve
	raw := func() int32 {
		d.stateMu.Lock()
		defer d.stateMu.Unlock()
		return d.volumes[dir]
	}

	return hal.Table{
		hal.PropControlScope:   hal.ConstUint32(uint32(dir.scope())),
		hal.PropControlElement: hal.ConstUint32(uint32(hal.ElementMain)),
		hal.PropScalarValue: hal.Float32Prop(func(hal.Request) float32 {
			return float32(curve.RawToScalar(raw()))
		}).Settable(func(r hal.Request, data []byte) error {
			v, err := hal.Float32(data)
			if err != nil {
				return err
			}
			return d.setVolume(dir, controlID, curve.ScalarToRaw(volume.ClampScalar(float64(v))))
		}),
		hal.PropDecibelValue: hal.Float32Prop(func(hal.Request) float32 {
			return float32(curve.RawToDB(raw()))
		}).Settable(func(r hal.Request, data []byte) error {
			v, err := hal.Float32(data)
			if err != nil {
				return err
			}
			return d.setVolume(dir, controlID, curve.DBToRaw(curve.ClampDB(float64(v))))
		}),
		hal.PropDecibelRange: hal.ValueRangeProp(func(hal.Request) hal.ValueRange {
			return hal.ValueRange{Min: curve.MinDB(), Max: curve.MaxDB()}
		}),
		hal.PropConvertScalarToDecibels: convertProp(func(v float64) float64 {
			return curve.ScalarToDB(volume.ClampScalar(v))
		}),
		hal.PropConvertDecibelsToScalar: convertProp(func(v float64) float64 {
			return curve.DBToScalar(curve.ClampDB(v))
		}),
	}
}

// convertProp reads a float32 from the front of out, converts it and
// writes the result back in place.
func convertProp(convert func(float64) float64) hal.Property {
	return hal.Property{
		Size: func(hal.Request) (int, error) { return hal.SizeFloat32, nil },
		Get: func(r hal.Request, out []byte) (int, error) {
			if len(out) < hal.SizeFloat32 {
				return 0, fmt.Errorf("%w: have %d, need %d", hal.ErrBadPropertySize, len(out), hal.SizeFloat32)
			}
			in, err := hal.Float32(out[:hal.SizeFloat32])
			if err != nil {
				return 0, err
			}
			return hal.PutFloat32(out, float32(convert(float64(in))))
		},
	}
}

// setVolume writes a clamped raw value through to the hardware. The shadow
// only changes when the hardware accepted the value.
func (d *Device) setVolume(dir direction, controlID hal.ObjectID, value int32) error {
	value = d.curve.ClampRaw(value)

	d.stateMu.Lock()
	if !d.IsActive() {
		d.stateMu.Unlock()
		return errNotActive
	}
	if d.volumes[dir] == value {
		d.stateMu.Unlock()
		return nil
	}
	if err := d.channel.SetControlValue(dir.control(), value); err != nil {
		d.stateMu.Unlock()
		return hal.HardwareError("set control value", err)
	}
	d.volumes[dir] = value
	d.stateMu.Unlock()

	d.logger.Debug("volume changed", "direction", dir.String(), "raw", value)
	d.notify(controlID, hal.GlobalAddr(hal.PropScalarValue), hal.GlobalAddr(hal.PropDecibelValue))
	return nil
}

func (d *Device) sampleRateShadow() uint64 {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.sampleRate
}

// RawVolume returns the shadow raw value of the input or output volume.
func (d *Device) RawVolume(input bool) int32 {
	dir := dirOutput
	if input {
		dir = dirInput
	}
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	return d.volumes[dir]
}

// SampleRate returns the shadow nominal sample rate.
func (d *Device) SampleRate() uint64 {
	return d.sampleRateShadow()
}
