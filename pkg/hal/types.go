// Package hal defines the object model shared by every addressable object in
// the driver: identifiers, property addresses, status codes and the binary
// encodings used for property values.
package hal

import "fmt"

// ObjectID names an addressable object or sub-object.
type ObjectID uint32

// Well-known object ids.
const (
	UnknownObject ObjectID = 0
	PlugInObject  ObjectID = 1

	// FirstDynamicID is the first id handed out by the registry allocator.
	FirstDynamicID ObjectID = 2
)

// ClientID identifies the host process making a request.
type ClientID int32

// FourCC packs four ASCII characters into a big-endian uint32.
func FourCC(s string) uint32 {
	if len(s) != 4 {
		panic(fmt.Sprintf("hal: fourcc %q must be 4 bytes", s))
	}
	return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])
}

// FourCCString renders a code as its four characters when printable and as
// hex otherwise.
func FourCCString(v uint32) string {
	b := []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", v)
		}
	}
	return string(b)
}

// ClassID is the four-char class of an object.
type ClassID uint32

func (c ClassID) String() string { return FourCCString(uint32(c)) }

// Object classes.
var (
	ClassObject        = ClassID(FourCC("aobj"))
	ClassPlugIn        = ClassID(FourCC("aplg"))
	ClassDevice        = ClassID(FourCC("adev"))
	ClassStream        = ClassID(FourCC("astr"))
	ClassControl       = ClassID(FourCC("actl"))
	ClassLevelControl  = ClassID(FourCC("levl"))
	ClassVolumeControl = ClassID(FourCC("vlme"))
)

// Selector names a property.
type Selector uint32

func (s Selector) String() string { return FourCCString(uint32(s)) }

// ParseSelector accepts either a four-char code or a known property name.
func ParseSelector(s string) (Selector, error) {
	if sel, ok := selectorNames[s]; ok {
		return sel, nil
	}
	if len(s) == 4 {
		return Selector(FourCC(s)), nil
	}
	return 0, fmt.Errorf("hal: unknown selector %q", s)
}

// Scope qualifies a property address by side.
type Scope uint32

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeInput:
		return "input"
	case ScopeOutput:
		return "output"
	}
	return FourCCString(uint32(s))
}

// Property scopes.
var (
	ScopeGlobal = Scope(FourCC("glob"))
	ScopeInput  = Scope(FourCC("inpt"))
	ScopeOutput = Scope(FourCC("outp"))
)

// ParseScope accepts "global", "input", "output" or a four-char code.
// The empty string is global.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "global", "glob":
		return ScopeGlobal, nil
	case "input", "inpt":
		return ScopeInput, nil
	case "output", "outp":
		return ScopeOutput, nil
	}
	return 0, fmt.Errorf("hal: unknown scope %q", s)
}

// Element indexes a channel. ElementMain addresses the whole object.
type Element uint32

// ElementMain is the master element.
const ElementMain Element = 0

// Address identifies one property of an object.
type Address struct {
	Selector Selector
	Scope    Scope
	Element  Element
}

// Addr builds a main-element address.
func Addr(sel Selector, scope Scope) Address {
	return Address{Selector: sel, Scope: scope, Element: ElementMain}
}

// GlobalAddr builds a global main-element address.
func GlobalAddr(sel Selector) Address {
	return Addr(sel, ScopeGlobal)
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%s/%d", a.Selector, a.Scope, a.Element)
}
