// Package plugin holds the driver root object and the host-facing entry
// points. The PlugIn owns the device list and reacts to hot-plug events;
// the Driver resolves ids through the registry and forwards each call to
// the object that owns it.
package plugin

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-syncvoice/internal/log"
	"github.com/teslashibe/go-syncvoice/pkg/device"
	"github.com/teslashibe/go-syncvoice/pkg/dispatch"
	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/objectmap"
)

// Config describes the plug-in and the devices it creates.
type Config struct {
	Manufacturer string
	Device       device.Config
}

// DefaultConfig returns the default plug-in description.
func DefaultConfig() Config {
	return Config{
		Manufacturer: "SyncVoice",
		Device:       device.DefaultConfig(),
	}
}

// PlugIn is the root object, always registered as hal.PlugInObject.
type PlugIn struct {
	*hal.Base

	cfg      Config
	registry *objectmap.Registry
	queue    *dispatch.Queue
	logger   *slog.Logger
	chain    hal.Chain

	mu      sync.Mutex
	host    device.Host
	devices []*device.Device
}

// NewPlugIn creates the root object and registers it.
func NewPlugIn(registry *objectmap.Registry, cfg Config, logger *slog.Logger) (*PlugIn, error) {
	p := &PlugIn{
		Base:     hal.NewBase(hal.PlugInObject, hal.ClassPlugIn, hal.ClassObject, hal.UnknownObject),
		cfg:      cfg,
		registry: registry,
		logger:   log.Or(logger).With("component", "plugin"),
	}
	p.queue = dispatch.New("plugin", p.logger)
	p.chain = hal.Chain{p.table(), p.Base.Table()}

	if !registry.Register(hal.PlugInObject, p) {
		p.queue.Close()
		return nil, fmt.Errorf("%w: plug-in id already taken", hal.ErrUnspecified)
	}
	p.Base.Activate()
	return p, nil
}

func (p *PlugIn) table() hal.Table {
	ids := hal.ObjectIDsProp(func(hal.Request) []hal.ObjectID { return p.DeviceIDs() })
	return hal.Table{
		hal.PropManufacturer: hal.ConstString(p.cfg.Manufacturer),
		hal.PropOwnedObjects: ids,
		hal.PropDeviceList:   ids,
		hal.PropTranslateUIDToDevice: hal.Property{
			Size: func(hal.Request) (int, error) { return hal.SizeObjectID, nil },
			Get: func(r hal.Request, out []byte) (int, error) {
				if len(r.Qualifier) == 0 {
					return 0, fmt.Errorf("%w: device uid qualifier missing", hal.ErrIllegalOperation)
				}
				return hal.PutUint32(out, uint32(p.TranslateUID(string(r.Qualifier))))
			},
		},
		hal.PropResourceBundle: hal.ConstString(""),
	}
}

// SetHost sets the host handed to devices created from now on and used
// for plug-in notifications.
func (p *PlugIn) SetHost(h device.Host) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.host = h
}

func (p *PlugIn) currentHost() device.Host {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.host
}

// DeviceIDs returns the ids of the listed devices in the order they were added.
func (p *PlugIn) DeviceIDs() []hal.ObjectID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]hal.ObjectID, len(p.devices))
	for i, d := range p.devices {
		ids[i] = d.ID()
	}
	return ids
}

// Devices returns the listed devices.
func (p *PlugIn) Devices() []*device.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*device.Device(nil), p.devices...)
}

// TranslateUID returns the id of the device with uid, or hal.UnknownObject.
func (p *PlugIn) TranslateUID(uid string) hal.ObjectID {
	if d := p.deviceByUID(uid); d != nil {
		return d.ID()
	}
	return hal.UnknownObject
}

func (p *PlugIn) deviceByUID(uid string) *device.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.devices {
		if d.DeviceUID() == uid {
			return d
		}
	}
	return nil
}

// AddDevice appends d to the device list.
func (p *PlugIn) AddDevice(d *device.Device) {
	p.mu.Lock()
	p.devices = append(p.devices, d)
	p.mu.Unlock()
	p.notifyDeviceList()
}

// RemoveDevice drops d from the device list. It reports whether d was listed.
func (p *PlugIn) RemoveDevice(d *device.Device) bool {
	p.mu.Lock()
	found := false
	for i, cur := range p.devices {
		if cur == d {
			p.devices = append(p.devices[:i], p.devices[i+1:]...)
			found = true
			break
		}
	}
	p.mu.Unlock()
	if found {
		p.notifyDeviceList()
	}
	return found
}

func (p *PlugIn) notifyDeviceList() {
	host := p.currentHost()
	if host == nil {
		return
	}
	addrs := []hal.Address{hal.GlobalAddr(hal.PropOwnedObjects), hal.GlobalAddr(hal.PropDeviceList)}
	if err := p.queue.Dispatch(func() { host.PropertiesChanged(hal.PlugInObject, addrs) }); err != nil {
		p.logger.Debug("notification dropped", "err", err)
	}
}

// Flush waits for queued plug-in notifications.
func (p *PlugIn) Flush() error {
	return p.queue.Drain()
}

// Close stops the notification queue.
func (p *PlugIn) Close() {
	p.queue.Close()
}

func (p *PlugIn) checkID(id hal.ObjectID) error {
	if id != hal.PlugInObject {
		return fmt.Errorf("%w: %d", hal.ErrBadObject, id)
	}
	return nil
}

// HasProperty reports whether the plug-in has the property.
func (p *PlugIn) HasProperty(id hal.ObjectID, client hal.ClientID, addr hal.Address) bool {
	if p.checkID(id) != nil {
		return false
	}
	return p.chain.HasProperty(hal.Request{ObjectID: id, Client: client, Address: addr})
}

// IsPropertySettable reports whether the property can be set.
func (p *PlugIn) IsPropertySettable(id hal.ObjectID, client hal.ClientID, addr hal.Address) (bool, error) {
	if err := p.checkID(id); err != nil {
		return false, err
	}
	return p.chain.IsPropertySettable(hal.Request{ObjectID: id, Client: client, Address: addr})
}

// GetPropertyDataSize returns the size of the property value.
func (p *PlugIn) GetPropertyDataSize(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte) (int, error) {
	if err := p.checkID(id); err != nil {
		return 0, err
	}
	return p.chain.GetPropertyDataSize(hal.Request{ObjectID: id, Client: client, Address: addr, Qualifier: qualifier})
}

// GetPropertyData writes the property value into out.
func (p *PlugIn) GetPropertyData(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte, out []byte) (int, error) {
	if err := p.checkID(id); err != nil {
		return 0, err
	}
	return p.chain.GetPropertyData(hal.Request{ObjectID: id, Client: client, Address: addr, Qualifier: qualifier}, out)
}

// SetPropertyData fails: the plug-in has no settable properties.
func (p *PlugIn) SetPropertyData(id hal.ObjectID, client hal.ClientID, addr hal.Address, qualifier []byte, data []byte) error {
	if err := p.checkID(id); err != nil {
		return err
	}
	return p.chain.SetPropertyData(hal.Request{ObjectID: id, Client: client, Address: addr, Qualifier: qualifier}, data)
}

var _ hal.Object = (*PlugIn)(nil)
