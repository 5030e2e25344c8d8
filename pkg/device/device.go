// Package device implements the virtual audio device: one object reachable
// under five ids (the device, its input and output streams, and the master
// input and output volume controls) backed by a hardware channel.
//
// Two locks guard a device. stateMu covers the shadows of hardware state
// (start count, sample rate, volumes, stream activity). ioMu covers the
// mapped regions. The IO path only takes ioMu, the control plane only
// takes stateMu, and Deactivate takes both in that order.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-syncvoice/internal/log"
	"github.com/teslashibe/go-syncvoice/pkg/dispatch"
	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/hardware"
	"github.com/teslashibe/go-syncvoice/pkg/objectmap"
	"github.com/teslashibe/go-syncvoice/pkg/volume"
)

// IDs are the five ids a device answers to.
type IDs struct {
	Device       hal.ObjectID `json:"device"`
	InputStream  hal.ObjectID `json:"input_stream"`
	OutputStream hal.ObjectID `json:"output_stream"`
	InputVolume  hal.ObjectID `json:"input_volume"`
	OutputVolume hal.ObjectID `json:"output_volume"`
}

// All returns the ids, device first.
func (ids IDs) All() []hal.ObjectID {
	return []hal.ObjectID{ids.Device, ids.InputStream, ids.OutputStream, ids.InputVolume, ids.OutputVolume}
}

type direction int

const (
	dirInput direction = iota
	dirOutput
)

func (d direction) String() string {
	if d == dirInput {
		return "input"
	}
	return "output"
}

func (d direction) scope() hal.Scope {
	if d == dirInput {
		return hal.ScopeInput
	}
	return hal.ScopeOutput
}

func (d direction) control() hardware.ControlID {
	if d == dirInput {
		return hardware.ControlMasterInputVolume
	}
	return hardware.ControlMasterOutputVolume
}

type roleKind int

const (
	roleDevice roleKind = iota
	roleStream
	roleControl
)

// role is the facet of the device a request addressed.
type role struct {
	kind roleKind
	dir  direction
}

// Device is the composite device object.
type Device struct {
	*hal.Base

	ids      IDs
	cfg      Config
	registry *objectmap.Registry
	channel  hardware.Channel
	host     Host
	curve    *volume.Curve
	queue    *dispatch.Queue
	logger   *slog.Logger

	roles  map[hal.ObjectID]role
	chains map[role]hal.Chain

	stateMu      sync.Mutex
	startCount   uint64
	sampleRate   uint64
	ringFrames   uint32
	volumes      [2]int32
	streamActive [2]bool

	ioMu       sync.Mutex
	ioFrames   uint32
	status     *hardware.StatusRegion
	inputRing  []byte
	outputRing []byte
}

// Option configures a Device.
type Option func(*Device)

// WithHost sets the host that receives notifications and config requests.
func WithHost(h Host) Option {
	return func(d *Device) { d.host = h }
}

// WithConfig sets the device description.
func WithConfig(cfg Config) Option {
	return func(d *Device) { d.cfg = cfg }
}

// WithCurve sets the volume curve.
func WithCurve(c *volume.Curve) Option {
	return func(d *Device) { d.curve = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.logger = l }
}

// New creates an inactive device with id, allocating ids for its streams
// and controls from registry. The caller registers id before Activate.
func New(id hal.ObjectID, registry *objectmap.Registry, channel hardware.Channel, opts ...Option) *Device {
	d := &Device{
		Base:     hal.NewBase(id, hal.ClassDevice, hal.ClassObject, hal.PlugInObject),
		cfg:      DefaultConfig(),
		registry: registry,
		channel:  channel,
		curve:    volume.Default(),
		ids: IDs{
			Device:       id,
			InputStream:  registry.NextID(),
			OutputStream: registry.NextID(),
			InputVolume:  registry.NextID(),
			OutputVolume: registry.NextID(),
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = log.Or(d.logger).With("component", "device", "device_id", id)
	d.queue = dispatch.New(fmt.Sprintf("device-%d", id), d.logger)

	d.roles = map[hal.ObjectID]role{
		d.ids.Device:       {kind: roleDevice},
		d.ids.InputStream:  {kind: roleStream, dir: dirInput},
		d.ids.OutputStream: {kind: roleStream, dir: dirOutput},
		d.ids.InputVolume:  {kind: roleControl, dir: dirInput},
		d.ids.OutputVolume: {kind: roleControl, dir: dirOutput},
	}
	d.chains = d.buildChains()
	return d
}

// IDs returns the five ids of the device.
func (d *Device) IDs() IDs { return d.ids }

// DeviceUID returns the hardware UID.
func (d *Device) DeviceUID() string { return d.channel.DeviceUID() }

// Name returns the configured device name.
func (d *Device) Name() string { return d.cfg.Name }

// Channel returns the hardware channel.
func (d *Device) Channel() hardware.Channel { return d.channel }

// Activate opens the channel, maps the three regions and registers the
// stream and control ids. On failure everything done so far is undone.
func (d *Device) Activate() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.OpenTimeout)
	defer cancel()

	if err := d.channel.Open(ctx); err != nil {
		return hal.HardwareError("open", err)
	}

	if err := d.loadHardwareState(); err != nil {
		d.closeChannel()
		return err
	}

	aliases := d.ids.All()[1:]
	for i, id := range aliases {
		if !d.registry.Register(id, d) {
			for _, done := range aliases[:i] {
				d.registry.Unregister(done, d)
			}
			d.unmapAll()
			d.closeChannel()
			return fmt.Errorf("%w: cannot register id %d", hal.ErrUnspecified, id)
		}
	}

	d.Base.Activate()
	d.logger.Info("device activated",
		"device_uid", d.channel.DeviceUID(),
		"sample_rate", d.sampleRateShadow(),
		"ids", d.ids.All(),
	)
	return nil
}

// loadHardwareState reads the shadows and maps the regions.
func (d *Device) loadHardwareState() error {
	rate, err := d.channel.SampleRate()
	if err != nil {
		return hal.HardwareError("sample rate", err)
	}
	frames, err := d.channel.RingBufferFrameCount()
	if err != nil {
		return hal.HardwareError("ring frames", err)
	}
	if frames == 0 {
		return fmt.Errorf("%w: empty ring buffer", hal.ErrHardware)
	}
	var volumes [2]int32
	for _, dir := range []direction{dirInput, dirOutput} {
		v, err := d.channel.ControlValue(dir.control())
		if err != nil {
			return hal.HardwareError("control value", err)
		}
		volumes[dir] = d.curve.ClampRaw(v)
	}

	statusMem, err := d.channel.MapBuffer(hardware.BufferStatus)
	if err != nil {
		return hal.HardwareError("map status", err)
	}
	status, err := hardware.NewStatusRegion(statusMem)
	if err != nil {
		d.channel.UnmapBuffer(hardware.BufferStatus)
		return hal.HardwareError("status region", err)
	}
	input, err := d.channel.MapBuffer(hardware.BufferInput)
	if err != nil {
		d.channel.UnmapBuffer(hardware.BufferStatus)
		return hal.HardwareError("map input", err)
	}
	output, err := d.channel.MapBuffer(hardware.BufferOutput)
	if err != nil {
		d.channel.UnmapBuffer(hardware.BufferStatus)
		d.channel.UnmapBuffer(hardware.BufferInput)
		return hal.HardwareError("map output", err)
	}
	ringBytes := int(frames) * hardware.FrameSize
	if len(input) < ringBytes || len(output) < ringBytes {
		d.channel.UnmapBuffer(hardware.BufferStatus)
		d.channel.UnmapBuffer(hardware.BufferInput)
		d.channel.UnmapBuffer(hardware.BufferOutput)
		return fmt.Errorf("%w: ring smaller than %d frames", hal.ErrHardware, frames)
	}

	d.stateMu.Lock()
	d.sampleRate = rate
	d.ringFrames = frames
	d.volumes = volumes
	d.streamActive = [2]bool{true, true}
	d.stateMu.Unlock()

	d.ioMu.Lock()
	d.ioFrames = frames
	d.status = status
	d.inputRing = input[:ringBytes]
	d.outputRing = output[:ringBytes]
	d.ioMu.Unlock()
	return nil
}

// Deactivate tears the device down once the hardware is gone: it takes
// both locks, unregisters all five ids, unmaps the regions and closes the
// channel. IO still running is stopped first.
func (d *Device) Deactivate() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	d.ioMu.Lock()
	defer d.ioMu.Unlock()

	if !d.IsActive() {
		return nil
	}
	d.Base.Deactivate()

	for _, id := range d.ids.All() {
		if err := d.registry.Unregister(id, d); err != nil {
			d.logger.Warn("unregister failed", "id", id, "err", err)
		}
	}

	if d.startCount > 0 {
		d.logger.Warn("deactivating with io running", "start_count", d.startCount)
		if err := d.channel.StopHardware(); err != nil {
			d.logger.Warn("stop hardware failed", "err", err)
		}
		d.startCount = 0
	}

	d.unmapAllLocked()
	d.closeChannel()
	d.logger.Info("device deactivated")
	return nil
}

// Destroy releases the dispatch queue after the last reference is gone.
func (d *Device) Destroy() {
	d.queue.Close()
	d.logger.Debug("device destroyed")
}

func (d *Device) unmapAll() {
	d.ioMu.Lock()
	defer d.ioMu.Unlock()
	d.unmapAllLocked()
}

func (d *Device) unmapAllLocked() {
	if d.status == nil {
		return
	}
	for _, kind := range []hardware.BufferKind{hardware.BufferStatus, hardware.BufferInput, hardware.BufferOutput} {
		if err := d.channel.UnmapBuffer(kind); err != nil {
			d.logger.Warn("unmap failed", "buffer", kind.String(), "err", err)
		}
	}
	d.status = nil
	d.inputRing = nil
	d.outputRing = nil
}

func (d *Device) closeChannel() {
	if err := d.channel.Close(); err != nil {
		d.logger.Warn("close channel failed", "err", err)
	}
}

// roleFor maps an addressed id to a role.
func (d *Device) roleFor(id hal.ObjectID) (role, error) {
	r, ok := d.roles[id]
	if !ok {
		return role{}, fmt.Errorf("%w: %d is not part of device %d", hal.ErrBadObject, id, d.ids.Device)
	}
	return r, nil
}

func (d *Device) chainFor(id hal.ObjectID) (hal.Chain, error) {
	r, err := d.roleFor(id)
	if err != nil {
		return nil, err
	}
	return d.chains[r], nil
}

// HasProperty reports whether the addressed facet has the property.
func (d *Device) HasProperty(id hal.ObjectID, client hal.ClientID, addr hal.Address) bool {
	chain, err := d.chainFor(id)
	if err != nil {
		return false
	}
	return chain.HasProperty(hal.Request{ObjectID: id, Client: client, Address: addr})
}

// IsPropertySettable reports whether the property can be set.
func (d *Device) IsPropertySettable(id hal.ObjectID, client hal.ClientID, addr hal.Address) (bool, error) {
	chain, err := d.chainFor(id)
	if err != nil {
		return false, err
	}
	return chain.IsPropertySettable(hal.Request{ObjectID: id, Client: client, Address: addr})
}

// GetPropertyDataSize returns the size of the property value.
func (d *Device) GetPropertyDataSize(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte) (int, error) {
	chain, err := d.chainFor(id)
	if err != nil {
		return 0, err
	}
	return chain.GetPropertyDataSize(hal.Request{ObjectID: id, Client: client, Address: addr, Qualifier: qualifier})
}

// GetPropertyData writes the property value into out.
func (d *Device) GetPropertyData(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte, out []byte) (int, error) {
	chain, err := d.chainFor(id)
	if err != nil {
		return 0, err
	}
	return chain.GetPropertyData(hal.Request{ObjectID: id, Client: client, Address: addr, Qualifier: qualifier}, out)
}

// SetPropertyData applies data to the property.
func (d *Device) SetPropertyData(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte, data []byte) error {
	chain, err := d.chainFor(id)
	if err != nil {
		return err
	}
	return chain.SetPropertyData(hal.Request{ObjectID: id, Client: client, Address: addr, Qualifier: qualifier}, data)
}

// notify schedules a PropertiesChanged on the dispatch queue.
func (d *Device) notify(objectID hal.ObjectID, addrs ...hal.Address) {
	if d.host == nil {
		return
	}
	if err := d.queue.Dispatch(func() { d.host.PropertiesChanged(objectID, addrs) }); err != nil {
		d.logger.Debug("notification dropped", "object_id", objectID, "err", err)
	}
}

// Flush waits until every queued notification and request has been
// handed to the host.
func (d *Device) Flush() error {
	return d.queue.Drain()
}

var (
	_ hal.Object          = (*Device)(nil)
	_ objectmap.Destroyer = (*Device)(nil)
)
