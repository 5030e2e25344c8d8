package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-syncvoice/internal/log"
	"github.com/teslashibe/go-syncvoice/pkg/device"
	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/hardware"
	"github.com/teslashibe/go-syncvoice/pkg/objectmap"
)

// Driver is the host-facing surface. Every call resolves its id through
// the registry, holds the reference for the duration of the call and
// reports failures as errors that map to a hal.Status.
type Driver struct {
	registry *objectmap.Registry
	plugin   *PlugIn
	logger   *slog.Logger
}

// NewDriver creates the plug-in root object in registry and wraps it.
func NewDriver(registry *objectmap.Registry, cfg Config, logger *slog.Logger) (*Driver, error) {
	logger = log.Or(logger)
	p, err := NewPlugIn(registry, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Driver{registry: registry, plugin: p, logger: logger.With("component", "driver")}, nil
}

// Initialize connects the driver to its host.
func (d *Driver) Initialize(host device.Host) error {
	if host == nil {
		return fmt.Errorf("%w: nil host", hal.ErrIllegalOperation)
	}
	d.plugin.SetHost(host)
	d.logger.Info("driver initialized")
	return nil
}

// PlugIn returns the root object.
func (d *Driver) PlugIn() *PlugIn { return d.plugin }

// Registry returns the object registry.
func (d *Driver) Registry() *objectmap.Registry { return d.registry }

// Run forwards hot-plug events from bus to the plug-in.
func (d *Driver) Run(ctx context.Context, bus hardware.Bus) error {
	return d.plugin.Run(ctx, bus)
}

// Close detaches every device and stops the plug-in queue.
func (d *Driver) Close() {
	d.plugin.DetachAll()
	d.plugin.Close()
}

func (d *Driver) lookup(id hal.ObjectID) (hal.Object, *objectmap.Ref, error) {
	ref, ok := d.registry.Lookup(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", hal.ErrBadObject, id)
	}
	return ref.Object(), ref, nil
}

func (d *Driver) lookupDevice(id hal.ObjectID) (*device.Device, *objectmap.Ref, error) {
	dev, ref, ok := objectmap.LookupAs[*device.Device](d.registry, id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d is not a device", hal.ErrBadObject, id)
	}
	if dev.ID() != id {
		ref.Release()
		return nil, nil, fmt.Errorf("%w: %d is not a device", hal.ErrBadObject, id)
	}
	return dev, ref, nil
}

func propErr(op string, id hal.ObjectID, addr hal.Address, err error) error {
	if err == nil {
		return nil
	}
	return &hal.PropertyError{Op: op, ObjectID: id, Address: addr, Err: err}
}

// HasProperty reports whether id has the property. Unknown ids report false.
func (d *Driver) HasProperty(id hal.ObjectID, client hal.ClientID, addr hal.Address) bool {
	obj, ref, err := d.lookup(id)
	if err != nil {
		return false
	}
	defer ref.Release()
	return obj.HasProperty(id, client, addr)
}

// IsPropertySettable reports whether the property can be set.
func (d *Driver) IsPropertySettable(id hal.ObjectID, client hal.ClientID, addr hal.Address) (bool, error) {
	obj, ref, err := d.lookup(id)
	if err != nil {
		return false, propErr("settable", id, addr, err)
	}
	defer ref.Release()
	ok, err := obj.IsPropertySettable(id, client, addr)
	return ok, propErr("settable", id, addr, err)
}

// GetPropertyDataSize returns the size of the property value.
func (d *Driver) GetPropertyDataSize(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte) (int, error) {
	obj, ref, err := d.lookup(id)
	if err != nil {
		return 0, propErr("size", id, addr, err)
	}
	defer ref.Release()
	n, err := obj.GetPropertyDataSize(id, client, addr, qualifier)
	return n, propErr("size", id, addr, err)
}

// GetPropertyData writes the property value into out and returns the
// bytes written.
func (d *Driver) GetPropertyData(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte, out []byte) (int, error) {
	obj, ref, err := d.lookup(id)
	if err != nil {
		return 0, propErr("get", id, addr, err)
	}
	defer ref.Release()
	n, err := obj.GetPropertyData(id, client, addr, qualifier, out)
	return n, propErr("get", id, addr, err)
}

// GetProperty sizes and fetches a property in one call.
func (d *Driver) GetProperty(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte) ([]byte, error) {
	size, err := d.GetPropertyDataSize(id, client, addr, qualifier)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	n, err := d.GetPropertyData(id, client, addr, qualifier, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// SetPropertyData applies data to the property.
func (d *Driver) SetPropertyData(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte, data []byte) error {
	obj, ref, err := d.lookup(id)
	if err != nil {
		return propErr("set", id, addr, err)
	}
	defer ref.Release()
	return propErr("set", id, addr, obj.SetPropertyData(id, client, addr, qualifier, data))
}

// StartIO starts IO on a device for client.
func (d *Driver) StartIO(deviceID hal.ObjectID, client hal.ClientID) error {
	dev, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return err
	}
	defer ref.Release()
	return dev.StartIO(client)
}

// StopIO stops IO on a device for client.
func (d *Driver) StopIO(deviceID hal.ObjectID, client hal.ClientID) error {
	dev, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return err
	}
	defer ref.Release()
	return dev.StopIO(client)
}

// GetZeroTimeStamp returns the device's current clock anchor.
func (d *Driver) GetZeroTimeStamp(deviceID hal.ObjectID, client hal.ClientID) (sampleTime float64, hostTime uint64, seed uint64, err error) {
	dev, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return 0, 0, 0, err
	}
	defer ref.Release()
	return dev.GetZeroTimeStamp(client)
}

// WillDoIOOperation reports whether the device takes part in op.
func (d *Driver) WillDoIOOperation(deviceID hal.ObjectID, client hal.ClientID, op device.IOOperation) (willDo, inPlace bool, err error) {
	dev, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return false, false, err
	}
	defer ref.Release()
	willDo, inPlace = dev.WillDoIOOperation(op)
	return willDo, inPlace, nil
}

// BeginIOOperation is called before each DoIOOperation.
func (d *Driver) BeginIOOperation(deviceID hal.ObjectID, client hal.ClientID, op device.IOOperation, frames uint32) error {
	dev, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return err
	}
	defer ref.Release()
	return dev.BeginIOOperation(op, frames)
}

// DoIOOperation moves one cycle of audio for streamID.
func (d *Driver) DoIOOperation(deviceID, streamID hal.ObjectID, client hal.ClientID, op device.IOOperation, frames uint32, cycle device.IOCycleInfo, buf []byte) error {
	dev, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return err
	}
	defer ref.Release()
	return dev.DoIOOperation(streamID, op, frames, cycle, buf)
}

// EndIOOperation is called after each DoIOOperation.
func (d *Driver) EndIOOperation(deviceID hal.ObjectID, client hal.ClientID, op device.IOOperation, frames uint32) error {
	dev, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return err
	}
	defer ref.Release()
	return dev.EndIOOperation(op, frames)
}

// PerformDeviceConfigurationChange applies a change the device requested.
func (d *Driver) PerformDeviceConfigurationChange(deviceID hal.ObjectID, action uint64, info any) error {
	dev, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return err
	}
	defer ref.Release()
	return dev.PerformConfigChange(action, info)
}

// AbortDeviceConfigurationChange drops a change the device requested.
func (d *Driver) AbortDeviceConfigurationChange(deviceID hal.ObjectID, action uint64, info any) error {
	dev, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return err
	}
	defer ref.Release()
	return dev.AbortConfigChange(action, info)
}

// AddDeviceClient accepts a new client of deviceID.
func (d *Driver) AddDeviceClient(deviceID hal.ObjectID, client hal.ClientID) error {
	_, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return err
	}
	ref.Release()
	return nil
}

// RemoveDeviceClient forgets a client of deviceID.
func (d *Driver) RemoveDeviceClient(deviceID hal.ObjectID, client hal.ClientID) error {
	_, ref, err := d.lookupDevice(deviceID)
	if err != nil {
		return err
	}
	ref.Release()
	return nil
}

// CreateDevice is not supported; devices come from hardware discovery.
func (d *Driver) CreateDevice(description map[string]any, client hal.ClientID) (hal.ObjectID, error) {
	return hal.UnknownObject, fmt.Errorf("%w: create device", hal.ErrUnsupportedOperation)
}

// DestroyDevice is not supported.
func (d *Driver) DestroyDevice(deviceID hal.ObjectID) error {
	return fmt.Errorf("%w: destroy device", hal.ErrUnsupportedOperation)
}
