package objectmap

import "errors"

var (
	// ErrNotRegistered is returned when retaining or releasing an object
	// the registry does not hold.
	ErrNotRegistered = errors.New("objectmap: object not registered")

	// ErrOverRelease is returned when a release would drop the count below
	// the number of ids still mapped to the object.
	ErrOverRelease = errors.New("objectmap: reference count would drop below alias count")

	// ErrIDMismatch is returned when unregistering an id that maps to a
	// different object.
	ErrIDMismatch = errors.New("objectmap: id is not mapped to this object")
)
