package protocol

import "github.com/teslashibe/go-syncvoice/pkg/hal"

// AddressOf converts a property address to its wire form.
func AddressOf(a hal.Address) Address {
	return Address{
		Selector: a.Selector.String(),
		Scope:    a.Scope.String(),
		Element:  uint32(a.Element),
	}
}

// AddressesOf converts a list of property addresses.
func AddressesOf(addrs []hal.Address) []Address {
	out := make([]Address, len(addrs))
	for i, a := range addrs {
		out[i] = AddressOf(a)
	}
	return out
}

// HAL parses the wire address. Selector accepts a four-char code or a
// property name known to hal.ParseSelector.
func (a Address) HAL() (hal.Address, error) {
	sel, err := hal.ParseSelector(a.Selector)
	if err != nil {
		return hal.Address{}, err
	}
	scope, err := hal.ParseScope(a.Scope)
	if err != nil {
		return hal.Address{}, err
	}
	return hal.Address{Selector: sel, Scope: scope, Element: hal.Element(a.Element)}, nil
}
