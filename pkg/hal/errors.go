package hal

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every object. Callers compare with errors.Is and
// map to a wire status with StatusOf.
var (
	// ErrBadObject means the id is unknown or names the wrong kind of object.
	ErrBadObject = errors.New("hal: bad object")

	// ErrUnknownProperty means the object does not have the property.
	ErrUnknownProperty = errors.New("hal: unknown property")

	// ErrBadPropertySize means the buffer is too small or not the exact size.
	ErrBadPropertySize = errors.New("hal: bad property size")

	// ErrUnsupportedOperation means the property is read-only or the
	// operation is not implemented for this object.
	ErrUnsupportedOperation = errors.New("hal: unsupported operation")

	// ErrIllegalOperation means the call was malformed, e.g. a missing
	// qualifier or a counter overflow.
	ErrIllegalOperation = errors.New("hal: illegal operation")

	// ErrUnsupportedFormat means a stream format did not match the
	// supported format.
	ErrUnsupportedFormat = errors.New("hal: unsupported format")

	// ErrHardware wraps a failure reported by the hardware channel.
	ErrHardware = errors.New("hal: hardware error")

	// ErrUnspecified covers anything else.
	ErrUnspecified = errors.New("hal: unspecified error")
)

// Status is the four-char result code returned to the host.
type Status uint32

// Status codes.
var (
	StatusOK                   Status = 0
	StatusBadObject                   = Status(FourCC("!obj"))
	StatusUnknownProperty             = Status(FourCC("who?"))
	StatusBadPropertySize             = Status(FourCC("!siz"))
	StatusUnsupportedOperation        = Status(FourCC("unop"))
	StatusIllegalOperation            = Status(FourCC("nope"))
	StatusUnsupportedFormat           = Status(FourCC("!dat"))
	StatusHardware                    = Status(FourCC("!dev"))
	StatusUnspecified                 = Status(FourCC("what"))
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return FourCCString(uint32(s))
}

var statusTable = []struct {
	err    error
	status Status
}{
	{ErrBadObject, StatusBadObject},
	{ErrUnknownProperty, StatusUnknownProperty},
	{ErrBadPropertySize, StatusBadPropertySize},
	{ErrUnsupportedOperation, StatusUnsupportedOperation},
	{ErrIllegalOperation, StatusIllegalOperation},
	{ErrUnsupportedFormat, StatusUnsupportedFormat},
	{ErrHardware, StatusHardware},
	{ErrUnspecified, StatusUnspecified},
}

// StatusOf maps an error to its status code. Errors outside the taxonomy
// report StatusUnspecified.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return StatusUnspecified
}

// HardwareError wraps a channel failure so it matches both ErrHardware and err.
func HardwareError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrHardware, err)
}

// PropertyError records which property access failed.
type PropertyError struct {
	Op       string
	ObjectID ObjectID
	Address  Address
	Err      error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("%s object %d %s: %v", e.Op, e.ObjectID, e.Address, e.Err)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}
