package device

import (
	"github.com/teslashibe/go-syncvoice/pkg/hal"
)

// Host is the environment the driver runs in. Calls into it are always
// made from the device's dispatch queue, never under a device lock.
type Host interface {
	// PropertiesChanged tells the host that properties of objectID changed.
	PropertiesChanged(objectID hal.ObjectID, addrs []hal.Address)

	// RequestDeviceConfigurationChange asks the host to quiesce IO on
	// deviceID and then call PerformConfigChange or AbortConfigChange
	// with the same action and info.
	RequestDeviceConfigurationChange(deviceID hal.ObjectID, action uint64, info any) error
}
