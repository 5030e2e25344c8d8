package device

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-syncvoice/pkg/dispatch"
	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/hardware"
	"github.com/teslashibe/go-syncvoice/pkg/objectmap"
)

type fixture struct {
	dev      *Device
	channel  *hardware.MockChannel
	host     *MockHost
	registry *objectmap.Registry
	destroy  *dispatch.Queue
}

// newFixture builds a registered, active device over a small mock ring.
func newFixture(t *testing.T, opts ...hardware.MockOption) *fixture {
	t.Helper()
	destroy := dispatch.New("destroy", nil)
	t.Cleanup(destroy.Close)

	f := &fixture{
		channel:  hardware.NewMockChannel(append([]hardware.MockOption{hardware.WithRingBufferFrames(64)}, opts...)...),
		host:     NewMockHost(),
		registry: objectmap.New(objectmap.WithDestroyQueue(destroy)),
		destroy:  destroy,
	}
	f.dev = New(f.registry.NextID(), f.registry, f.channel, WithHost(f.host))
	if !f.registry.Register(f.dev.ID(), f.dev) {
		t.Fatal("Register() = false")
	}
	if err := f.dev.Activate(); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	t.Cleanup(func() { f.dev.Deactivate() })
	return f
}

func TestDevice_ActivateRegistersAliases(t *testing.T) {
	f := newFixture(t)

	ids := f.dev.IDs().All()
	if len(ids) != 5 {
		t.Fatalf("IDs() = %v", ids)
	}
	seen := map[hal.ObjectID]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %d", id)
		}
		seen[id] = true

		ref, ok := f.registry.Lookup(id)
		if !ok {
			t.Fatalf("Lookup(%d) failed", id)
		}
		if ref.Object() != f.dev {
			t.Errorf("Lookup(%d) returned another object", id)
		}
		ref.Release()
	}
	if got := f.registry.RefCount(f.dev); got != 5 {
		t.Errorf("RefCount() = %d, want 5", got)
	}
	if !f.dev.IsActive() {
		t.Error("device should be active")
	}
	if !f.channel.IsOpen() {
		t.Error("channel should be open")
	}
	if f.dev.SampleRate() != 44100 {
		t.Errorf("SampleRate() = %d", f.dev.SampleRate())
	}
}

func TestDevice_ActivateUnwindsOnMapFailure(t *testing.T) {
	channel := hardware.NewMockChannel(hardware.WithRingBufferFrames(64))
	channel.MapBufferFunc = func(kind hardware.BufferKind) error {
		if kind == hardware.BufferOutput {
			return errors.New("no memory")
		}
		return nil
	}
	registry := objectmap.New()
	dev := New(registry.NextID(), registry, channel)
	registry.Register(dev.ID(), dev)

	err := dev.Activate()
	if !errors.Is(err, hal.ErrHardware) {
		t.Fatalf("Activate() = %v, want ErrHardware", err)
	}
	if channel.IsOpen() {
		t.Error("channel should be closed after failed Activate")
	}
	if dev.IsActive() {
		t.Error("device should not be active")
	}
	if got := registry.RefCount(dev); got != 1 {
		t.Errorf("RefCount() = %d, want 1 (only the device id)", got)
	}
	if _, ok := registry.Lookup(dev.IDs().InputStream); ok {
		t.Error("stream id should not be registered")
	}
}

func TestDevice_DeactivateTearsDown(t *testing.T) {
	f := newFixture(t)
	if err := f.dev.StartIO(1); err != nil {
		t.Fatalf("StartIO() error = %v", err)
	}

	ref, ok := f.registry.Lookup(f.dev.ID())
	if !ok {
		t.Fatal("Lookup() failed")
	}

	if err := f.dev.Deactivate(); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	for _, id := range f.dev.IDs().All() {
		if _, ok := f.registry.Lookup(id); ok {
			t.Errorf("id %d still registered", id)
		}
	}
	if f.channel.IsOpen() {
		t.Error("channel should be closed")
	}
	if f.channel.StopCalls() != 1 {
		t.Errorf("StopCalls() = %d, want 1", f.channel.StopCalls())
	}
	if f.dev.StartCount() != 0 {
		t.Errorf("StartCount() = %d", f.dev.StartCount())
	}

	// Zombie: still referenced, rejects active operations.
	if err := f.dev.StartIO(1); !errors.Is(err, hal.ErrIllegalOperation) {
		t.Errorf("StartIO() on zombie = %v", err)
	}
	if _, _, _, err := f.dev.GetZeroTimeStamp(1); err == nil {
		t.Error("GetZeroTimeStamp() on zombie should fail")
	}

	ref.Release()
	if got := f.registry.RefCount(f.dev); got != 0 {
		t.Errorf("RefCount() after release = %d", got)
	}
	f.destroy.Drain()

	if err := f.dev.Deactivate(); err != nil {
		t.Errorf("second Deactivate() = %v", err)
	}
}

func TestDevice_RoutesByRole(t *testing.T) {
	f := newFixture(t)
	ids := f.dev.IDs()

	tests := []struct {
		id    hal.ObjectID
		class hal.ClassID
	}{
		{ids.Device, hal.ClassDevice},
		{ids.InputStream, hal.ClassStream},
		{ids.OutputStream, hal.ClassStream},
		{ids.InputVolume, hal.ClassVolumeControl},
		{ids.OutputVolume, hal.ClassVolumeControl},
	}
	for _, tt := range tests {
		out := make([]byte, 4)
		if _, err := f.dev.GetPropertyData(tt.id, 0, hal.GlobalAddr(hal.PropClass), nil, out); err != nil {
			t.Fatalf("GetPropertyData(%d, class) error = %v", tt.id, err)
		}
		v, _ := hal.Uint32(out)
		if hal.ClassID(v) != tt.class {
			t.Errorf("class of %d = %s, want %s", tt.id, hal.ClassID(v), tt.class)
		}
	}

	_, err := f.dev.GetPropertyDataSize(9999, 0, hal.GlobalAddr(hal.PropClass), nil)
	if !errors.Is(err, hal.ErrBadObject) {
		t.Errorf("unknown id error = %v, want ErrBadObject", err)
	}
	if f.dev.HasProperty(9999, 0, hal.GlobalAddr(hal.PropClass)) {
		t.Error("HasProperty on unknown id should be false")
	}
}

func TestDevice_DestroyClosesQueue(t *testing.T) {
	f := newFixture(t)
	f.dev.Destroy()
	if err := f.dev.Flush(); err == nil {
		t.Error("Flush() after Destroy should fail")
	}
}
