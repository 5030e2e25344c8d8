package hal

import "fmt"

// Request carries the arguments common to every property call.
type Request struct {
	ObjectID  ObjectID
	Client    ClientID
	Address   Address
	Qualifier []byte
}

// Property is one entry of a property table.
type Property struct {
	// Has narrows availability by address, e.g. to the input and output
	// scopes. Nil means every address.
	Has func(Address) bool

	Size func(Request) (int, error)
	Get  func(Request, []byte) (int, error)

	// Set is nil for read-only properties.
	Set func(Request, []byte) error
}

// Settable returns a copy of p with a setter.
func (p Property) Settable(set func(Request, []byte) error) Property {
	p.Set = set
	return p
}

// In returns a copy of p limited to the given scopes.
func (p Property) In(scopes ...Scope) Property {
	p.Has = func(a Address) bool {
		for _, s := range scopes {
			if a.Scope == s {
				return true
			}
		}
		return false
	}
	return p
}

// Table maps selectors to properties.
type Table map[Selector]Property

// Chain is an ordered list of tables. The first table holding a selector
// answers for it, so more specific tables go first.
type Chain []Table

func (c Chain) find(addr Address) (Property, bool) {
	for _, t := range c {
		if p, ok := t[addr.Selector]; ok {
			if p.Has != nil && !p.Has(addr) {
				return Property{}, false
			}
			return p, true
		}
	}
	return Property{}, false
}

func (c Chain) lookup(req Request) (Property, error) {
	p, ok := c.find(req.Address)
	if !ok {
		return Property{}, fmt.Errorf("%w: %s", ErrUnknownProperty, req.Address)
	}
	return p, nil
}

// HasProperty reports whether any table answers for the address.
func (c Chain) HasProperty(req Request) bool {
	_, ok := c.find(req.Address)
	return ok
}

// IsPropertySettable reports whether the property has a setter.
func (c Chain) IsPropertySettable(req Request) (bool, error) {
	p, err := c.lookup(req)
	if err != nil {
		return false, err
	}
	return p.Set != nil, nil
}

// GetPropertyDataSize returns the encoded size of the property.
func (c Chain) GetPropertyDataSize(req Request) (int, error) {
	p, err := c.lookup(req)
	if err != nil {
		return 0, err
	}
	return p.Size(req)
}

// GetPropertyData encodes the property into out and returns the bytes written.
func (c Chain) GetPropertyData(req Request, out []byte) (int, error) {
	p, err := c.lookup(req)
	if err != nil {
		return 0, err
	}
	return p.Get(req, out)
}

// SetPropertyData applies data to the property.
func (c Chain) SetPropertyData(req Request, data []byte) error {
	p, err := c.lookup(req)
	if err != nil {
		return err
	}
	if p.Set == nil {
		return fmt.Errorf("%w: %s is read-only", ErrUnsupportedOperation, req.Address)
	}
	return p.Set(req, data)
}

func fixed(n int) func(Request) (int, error) {
	return func(Request) (int, error) { return n, nil }
}

// Uint32Prop is a read-only uint32 property.
func Uint32Prop(get func(Request) uint32) Property {
	return Property{
		Size: fixed(SizeUInt32),
		Get:  func(r Request, out []byte) (int, error) { return PutUint32(out, get(r)) },
	}
}

// BoolProp is a read-only boolean property encoded as a uint32.
func BoolProp(get func(Request) bool) Property {
	return Property{
		Size: fixed(SizeUInt32),
		Get:  func(r Request, out []byte) (int, error) { return PutBool(out, get(r)) },
	}
}

// ConstUint32 is a read-only property with a fixed value.
func ConstUint32(v uint32) Property {
	return Uint32Prop(func(Request) uint32 { return v })
}

// Float32Prop is a read-only float32 property.
func Float32Prop(get func(Request) float32) Property {
	return Property{
		Size: fixed(SizeFloat32),
		Get:  func(r Request, out []byte) (int, error) { return PutFloat32(out, get(r)) },
	}
}

// Float64Prop is a read-only float64 property.
func Float64Prop(get func(Request) float64) Property {
	return Property{
		Size: fixed(SizeFloat64),
		Get:  func(r Request, out []byte) (int, error) { return PutFloat64(out, get(r)) },
	}
}

// StringProp is a read-only string property.
func StringProp(get func(Request) string) Property {
	return Property{
		Size: func(r Request) (int, error) { return len(get(r)), nil },
		Get:  func(r Request, out []byte) (int, error) { return PutString(out, get(r)) },
	}
}

// ConstString is a read-only property with a fixed string.
func ConstString(s string) Property {
	return StringProp(func(Request) string { return s })
}

// ObjectIDsProp is a read-only id list. Get clamps to the buffer.
func ObjectIDsProp(get func(Request) []ObjectID) Property {
	return Property{
		Size: func(r Request) (int, error) { return len(get(r)) * SizeObjectID, nil },
		Get:  func(r Request, out []byte) (int, error) { return PutObjectIDs(out, get(r)), nil },
	}
}

// Uint32sProp is a read-only uint32 list. Get clamps to the buffer.
func Uint32sProp(get func(Request) []uint32) Property {
	return Property{
		Size: func(r Request) (int, error) { return len(get(r)) * SizeUInt32, nil },
		Get:  func(r Request, out []byte) (int, error) { return PutUint32s(out, get(r)), nil },
	}
}

// ValueRangeProp is a read-only single range.
func ValueRangeProp(get func(Request) ValueRange) Property {
	return Property{
		Size: fixed(SizeValueRange),
		Get:  func(r Request, out []byte) (int, error) { return PutValueRange(out, get(r)) },
	}
}

// ValueRangesProp is a read-only range list. Get clamps to the buffer.
func ValueRangesProp(get func(Request) []ValueRange) Property {
	return Property{
		Size: func(r Request) (int, error) { return len(get(r)) * SizeValueRange, nil },
		Get:  func(r Request, out []byte) (int, error) { return PutValueRanges(out, get(r)), nil },
	}
}

// StreamFormatProp is a read-only format.
func StreamFormatProp(get func(Request) StreamBasicDescription) Property {
	return Property{
		Size: fixed(SizeStreamBasicDescription),
		Get: func(r Request, out []byte) (int, error) {
			return PutStreamBasicDescription(out, get(r))
		},
	}
}

// RangedDescriptionsProp is a read-only ranged format list. Get clamps.
func RangedDescriptionsProp(get func(Request) []RangedDescription) Property {
	return Property{
		Size: func(r Request) (int, error) { return len(get(r)) * SizeRangedDescription, nil },
		Get: func(r Request, out []byte) (int, error) {
			return PutRangedDescriptions(out, get(r)), nil
		},
	}
}

// ChannelLayoutProp is a read-only channel layout.
func ChannelLayoutProp(get func(Request) ChannelLayout) Property {
	return Property{
		Size: func(r Request) (int, error) { return get(r).Size(), nil },
		Get:  func(r Request, out []byte) (int, error) { return PutChannelLayout(out, get(r)) },
	}
}
