package device

import (
	"fmt"

	"github.com/teslashibe/go-syncvoice/pkg/hal"
)

var (
	errNotActive     = fmt.Errorf("%w: device not active", hal.ErrIllegalOperation)
	errStartOverflow = fmt.Errorf("%w: start count overflow", hal.ErrIllegalOperation)
	errNotStarted    = fmt.Errorf("%w: io not started", hal.ErrIllegalOperation)
	errUnknownRate   = fmt.Errorf("%w: unsupported sample rate", hal.ErrIllegalOperation)
	errTooManyFrames = fmt.Errorf("%w: transfer larger than ring", hal.ErrIllegalOperation)
)
