// Package objectmap maps object ids to reference-counted objects.
//
// One object may be reachable under several ids. The first Register
// creates the record with a count of 1, each further alias adds one, and
// every Unregister or Release takes one away. When the count reaches zero
// the record is dropped and the object's Destroy runs outside the
// registry lock.
package objectmap

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-syncvoice/internal/log"
	"github.com/teslashibe/go-syncvoice/pkg/dispatch"
	"github.com/teslashibe/go-syncvoice/pkg/hal"
)

// Destroyer is implemented by objects that free resources once the last
// reference is gone.
type Destroyer interface {
	Destroy()
}

type record struct {
	obj      hal.Object
	refcount uint64
	aliases  map[hal.ObjectID]struct{}
}

// Registry is the id table. Create one per driver process with New.
type Registry struct {
	next atomic.Uint32

	mu    sync.Mutex
	byID  map[hal.ObjectID]*record
	byObj map[hal.Object]*record

	destroyQueue *dispatch.Queue
	logger       *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithDestroyQueue runs Destroy calls on q instead of a fresh goroutine.
func WithDestroyQueue(q *dispatch.Queue) Option {
	return func(r *Registry) { r.destroyQueue = q }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New returns an empty registry whose allocator starts at hal.FirstDynamicID.
func New(opts ...Option) *Registry {
	r := &Registry{
		byID:  make(map[hal.ObjectID]*record),
		byObj: make(map[hal.Object]*record),
	}
	r.next.Store(uint32(hal.FirstDynamicID))
	for _, opt := range opts {
		opt(r)
	}
	r.logger = log.Or(r.logger).With("component", "objectmap")
	return r
}

// NextID allocates a fresh id. Ids are never reused; exhausting the id
// space panics.
func (r *Registry) NextID() hal.ObjectID {
	id := r.next.Add(1) - 1
	if id < uint32(hal.FirstDynamicID) {
		panic("objectmap: object id space exhausted")
	}
	return hal.ObjectID(id)
}

// Register maps id to obj. A new object starts with a count of 1; an
// object already in the table gains id as an alias and one count. It
// returns false if id is already mapped to a different object.
func (r *Registry) Register(id hal.ObjectID, obj hal.Object) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.byID[id]; ok {
		return rec.obj == obj
	}

	rec, ok := r.byObj[obj]
	if !ok {
		rec = &record{obj: obj, aliases: make(map[hal.ObjectID]struct{})}
		r.byObj[obj] = rec
	} else if rec.refcount == math.MaxUint64 {
		return false
	}
	rec.aliases[id] = struct{}{}
	rec.refcount++
	r.byID[id] = rec
	return true
}

// Unregister removes id from obj's aliases and drops one count.
func (r *Registry) Unregister(id hal.ObjectID, obj hal.Object) error {
	r.mu.Lock()
	rec, ok := r.byID[id]
	if !ok || rec.obj != obj {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIDMismatch, id)
	}
	delete(r.byID, id)
	delete(rec.aliases, id)
	dead := r.decrementLocked(rec)
	r.mu.Unlock()

	if dead {
		r.destroy(obj)
	}
	return nil
}

// Lookup resolves id and takes a reference. Release the Ref when done.
// Unknown ids return false.
func (r *Registry) Lookup(id hal.ObjectID) (*Ref, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok || rec.refcount == math.MaxUint64 {
		return nil, false
	}
	rec.refcount++
	return &Ref{registry: r, obj: rec.obj}, true
}

// LookupAs resolves id to an object of type T. It returns false when the
// id is unknown or names an object of another type.
func LookupAs[T hal.Object](r *Registry, id hal.ObjectID) (T, *Ref, bool) {
	var zero T
	ref, ok := r.Lookup(id)
	if !ok {
		return zero, nil, false
	}
	obj, ok := ref.Object().(T)
	if !ok {
		ref.Release()
		return zero, nil, false
	}
	return obj, ref, true
}

// Retain adds a count to obj and returns the new count.
func (r *Registry) Retain(obj hal.Object) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byObj[obj]
	if !ok {
		return 0, ErrNotRegistered
	}
	if rec.refcount == math.MaxUint64 {
		return rec.refcount, fmt.Errorf("objectmap: reference count overflow")
	}
	rec.refcount++
	return rec.refcount, nil
}

// Release drops a count from obj and returns the new count. Reaching zero
// schedules Destroy.
func (r *Registry) Release(obj hal.Object) (uint64, error) {
	r.mu.Lock()
	rec, ok := r.byObj[obj]
	if !ok {
		r.mu.Unlock()
		return 0, ErrNotRegistered
	}
	if rec.refcount <= uint64(len(rec.aliases)) {
		count := rec.refcount
		r.mu.Unlock()
		r.logger.Error("over-release", "class", obj.Class(), "refcount", count)
		return count, ErrOverRelease
	}
	dead := r.decrementLocked(rec)
	count := rec.refcount
	r.mu.Unlock()

	if dead {
		r.destroy(obj)
	}
	return count, nil
}

// RefCount returns obj's current count, or 0 when it is not registered.
func (r *Registry) RefCount(obj hal.Object) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byObj[obj]; ok {
		return rec.refcount
	}
	return 0
}

func (r *Registry) decrementLocked(rec *record) bool {
	rec.refcount--
	if rec.refcount > 0 {
		return false
	}
	delete(r.byObj, rec.obj)
	return true
}

func (r *Registry) destroy(obj hal.Object) {
	d, ok := obj.(Destroyer)
	if !ok {
		return
	}
	if r.destroyQueue != nil {
		if err := r.destroyQueue.Dispatch(d.Destroy); err == nil {
			return
		}
	}
	go d.Destroy()
}

// Entry describes one registered object.
type Entry struct {
	ID       hal.ObjectID   `json:"id"`
	Class    hal.ClassID    `json:"class"`
	Owner    hal.ObjectID   `json:"owner"`
	Active   bool           `json:"active"`
	RefCount uint64         `json:"refcount"`
	Aliases  []hal.ObjectID `json:"aliases"`
}

// Enumerate returns every registered object, ordered by its own id.
func (r *Registry) Enumerate() []Entry {
	r.mu.Lock()
	recs := make([]record, 0, len(r.byObj))
	aliases := make([][]hal.ObjectID, 0, len(r.byObj))
	for _, rec := range r.byObj {
		ids := make([]hal.ObjectID, 0, len(rec.aliases))
		for id := range rec.aliases {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		recs = append(recs, record{obj: rec.obj, refcount: rec.refcount})
		aliases = append(aliases, ids)
	}
	r.mu.Unlock()

	// Object accessors run outside the lock.
	entries := make([]Entry, len(recs))
	for i, rec := range recs {
		entries[i] = Entry{
			ID:       rec.obj.ID(),
			Class:    rec.obj.Class(),
			Owner:    rec.obj.Owner(),
			Active:   rec.obj.IsActive(),
			RefCount: rec.refcount,
			Aliases:  aliases[i],
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Dump logs the table at debug level.
func (r *Registry) Dump() {
	for _, e := range r.Enumerate() {
		r.logger.Debug("object",
			"id", e.ID,
			"class", e.Class.String(),
			"refcount", e.RefCount,
			"aliases", e.Aliases,
		)
	}
}

// Ref is a counted reference returned by Lookup.
type Ref struct {
	registry *Registry
	obj      hal.Object
	once     sync.Once
}

// Object returns the referenced object.
func (ref *Ref) Object() hal.Object {
	return ref.obj
}

// Release drops the reference. Calling it more than once is a no-op.
func (ref *Ref) Release() {
	ref.once.Do(func() {
		if _, err := ref.registry.Release(ref.obj); err != nil {
			ref.registry.logger.Warn("release failed", "err", err)
		}
	})
}

// Clone takes an additional reference to the same object.
func (ref *Ref) Clone() (*Ref, error) {
	if _, err := ref.registry.Retain(ref.obj); err != nil {
		return nil, err
	}
	return &Ref{registry: ref.registry, obj: ref.obj}, nil
}
