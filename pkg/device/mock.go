package device

import (
	"sync"

	"github.com/teslashibe/go-syncvoice/pkg/hal"
)

// MockHost implements Host for testing and records every call.
type MockHost struct {
	// RequestFunc is called by RequestDeviceConfigurationChange.
	// If nil, the request is recorded and nil is returned.
	RequestFunc func(deviceID hal.ObjectID, action uint64, info any) error

	mu       sync.Mutex
	changes  []PropertyChange
	requests []ConfigRequest
}

// PropertyChange records one PropertiesChanged call.
type PropertyChange struct {
	ObjectID hal.ObjectID
	Addrs    []hal.Address
}

// ConfigRequest records one configuration change request.
type ConfigRequest struct {
	DeviceID hal.ObjectID
	Action   uint64
	Info     any
}

// NewMockHost creates a mock host.
func NewMockHost() *MockHost {
	return &MockHost{}
}

// PropertiesChanged records the call.
func (m *MockHost) PropertiesChanged(objectID hal.ObjectID, addrs []hal.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, PropertyChange{ObjectID: objectID, Addrs: addrs})
}

// RequestDeviceConfigurationChange records the request and calls RequestFunc.
func (m *MockHost) RequestDeviceConfigurationChange(deviceID hal.ObjectID, action uint64, info any) error {
	m.mu.Lock()
	m.requests = append(m.requests, ConfigRequest{DeviceID: deviceID, Action: action, Info: info})
	fn := m.RequestFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(deviceID, action, info)
	}
	return nil
}

// Changes returns the recorded property changes.
func (m *MockHost) Changes() []PropertyChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PropertyChange, len(m.changes))
	copy(out, m.changes)
	return out
}

// Requests returns the recorded configuration requests.
func (m *MockHost) Requests() []ConfigRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ConfigRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Reset clears recorded calls.
func (m *MockHost) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = nil
	m.requests = nil
}

var _ Host = (*MockHost)(nil)
