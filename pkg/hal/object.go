package hal

import (
	"sync/atomic"
)

// Object is the capability set of everything the registry can hold.
//
// The id argument of the property methods is the id the host addressed. A
// composite object registered under several ids uses it to pick a role.
type Object interface {
	ID() ObjectID
	Class() ClassID
	BaseClass() ClassID
	Owner() ObjectID
	IsActive() bool

	Activate() error
	Deactivate() error

	HasProperty(id ObjectID, client ClientID, addr Address) bool
	IsPropertySettable(id ObjectID, client ClientID, addr Address) (bool, error)
	GetPropertyDataSize(id ObjectID, client ClientID, addr Address, qualifier []byte) (int, error)
	GetPropertyData(id ObjectID, client ClientID, addr Address, qualifier []byte, out []byte) (int, error)
	SetPropertyData(id ObjectID, client ClientID, addr Address, qualifier []byte, data []byte) error
}

// Base carries the identity shared by every object and answers the minimum
// property set. Embed a *Base and chain its Table after the object's own.
type Base struct {
	id        ObjectID
	class     ClassID
	baseClass ClassID
	owner     ObjectID
	active    atomic.Bool
}

// NewBase returns an inactive base.
func NewBase(id ObjectID, class, baseClass ClassID, owner ObjectID) *Base {
	return &Base{id: id, class: class, baseClass: baseClass, owner: owner}
}

func (b *Base) ID() ObjectID       { return b.id }
func (b *Base) Class() ClassID     { return b.class }
func (b *Base) BaseClass() ClassID { return b.baseClass }
func (b *Base) Owner() ObjectID    { return b.owner }
func (b *Base) IsActive() bool     { return b.active.Load() }

// Activate marks the object live.
func (b *Base) Activate() error {
	b.active.Store(true)
	return nil
}

// Deactivate marks the object as a zombie.
func (b *Base) Deactivate() error {
	b.active.Store(false)
	return nil
}

// Table returns the minimum property set: base class, class, owner, an
// empty name and an empty owned-object list.
func (b *Base) Table() Table {
	return Table{
		PropBaseClass:    Uint32Prop(func(Request) uint32 { return uint32(b.baseClass) }),
		PropClass:        Uint32Prop(func(Request) uint32 { return uint32(b.class) }),
		PropOwner:        Uint32Prop(func(Request) uint32 { return uint32(b.owner) }),
		PropName:         StringProp(func(Request) string { return "" }),
		PropOwnedObjects: ObjectIDsProp(func(Request) []ObjectID { return nil }),
	}
}
