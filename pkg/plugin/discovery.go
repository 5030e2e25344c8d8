package plugin

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-syncvoice/pkg/device"
	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/hardware"
	"github.com/teslashibe/go-syncvoice/pkg/objectmap"
)

// Run consumes hot-plug events until ctx is done or the bus closes.
func (p *PlugIn) Run(ctx context.Context, bus hardware.Bus) error {
	p.logger.Info("watching for hardware")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-bus.Events():
			if !ok {
				p.logger.Info("hardware bus closed")
				return nil
			}
			switch ev.Kind {
			case hardware.Arrived:
				if _, err := p.Attach(ev.Channel); err != nil {
					p.logger.Error("device add failed", "device_uid", ev.UID, "err", err)
				}
			case hardware.Terminated:
				if err := p.Detach(ev.UID); err != nil {
					p.logger.Warn("device remove failed", "device_uid", ev.UID, "err", err)
				}
			}
		}
	}
}

// Attach creates a device for ch, registers it, lists it and activates
// it. Any failure undoes what was done so the device never shows up half
// alive.
func (p *PlugIn) Attach(ch hardware.Channel) (*device.Device, error) {
	if existing := p.deviceByUID(ch.DeviceUID()); existing != nil {
		return nil, fmt.Errorf("%w: device %s already attached", hal.ErrIllegalOperation, ch.DeviceUID())
	}

	id := p.registry.NextID()
	dev := device.New(id, p.registry, ch,
		device.WithConfig(p.cfg.Device),
		device.WithHost(p.currentHost()),
		device.WithLogger(p.logger),
	)
	if !p.registry.Register(id, dev) {
		dev.Destroy()
		return nil, fmt.Errorf("%w: cannot register device %d", hal.ErrUnspecified, id)
	}
	p.AddDevice(dev)

	if err := dev.Activate(); err != nil {
		p.RemoveDevice(dev)
		if uerr := p.registry.Unregister(id, dev); uerr != nil {
			p.logger.Warn("unwind unregister failed", "device_id", id, "err", uerr)
		}
		return nil, err
	}

	p.logger.Info("device added", "device_id", id, "device_uid", ch.DeviceUID())
	return dev, nil
}

// Detach tears down the device whose hardware went away.
func (p *PlugIn) Detach(uid string) error {
	found := p.deviceByUID(uid)
	if found == nil {
		return fmt.Errorf("%w: no device with uid %s", hal.ErrBadObject, uid)
	}
	dev, ref, ok := objectmap.LookupAs[*device.Device](p.registry, found.ID())
	if !ok {
		p.RemoveDevice(found)
		return fmt.Errorf("%w: device %d not registered", hal.ErrBadObject, found.ID())
	}
	defer ref.Release()

	p.RemoveDevice(dev)
	if err := dev.Deactivate(); err != nil {
		return err
	}
	p.logger.Info("device removed", "device_id", dev.ID(), "device_uid", uid)
	return nil
}

// DetachAll tears down every device. Used at shutdown.
func (p *PlugIn) DetachAll() {
	for _, d := range p.Devices() {
		if err := p.Detach(d.DeviceUID()); err != nil {
			p.logger.Warn("detach failed", "device_id", d.ID(), "err", err)
		}
	}
}
