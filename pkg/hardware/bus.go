package hardware

import "sync"

// EventKind distinguishes hot-plug events.
type EventKind int

const (
	// Arrived is sent when new hardware appears.
	Arrived EventKind = iota
	// Terminated is sent when hardware goes away.
	Terminated
)

func (k EventKind) String() string {
	if k == Arrived {
		return "arrived"
	}
	return "terminated"
}

// Event is one hot-plug notification. Channel is set for Arrived events.
type Event struct {
	Kind    EventKind
	UID     string
	Channel Channel
}

// Bus delivers hot-plug events. The channel is closed when the bus shuts
// down.
type Bus interface {
	Events() <-chan Event
}

// MockBus is a Bus driven by test or daemon code.
type MockBus struct {
	mu       sync.Mutex
	events   chan Event
	closed   bool
	channels map[string]Channel
}

// NewMockBus creates a bus whose event queue holds buffer events.
func NewMockBus(buffer int) *MockBus {
	return &MockBus{
		events:   make(chan Event, buffer),
		channels: make(map[string]Channel),
	}
}

// Events returns the event stream.
func (b *MockBus) Events() <-chan Event {
	return b.events
}

// Arrive announces ch. It blocks if the event queue is full.
func (b *MockBus) Arrive(ch Channel) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.channels[ch.DeviceUID()] = ch
	b.events <- Event{Kind: Arrived, UID: ch.DeviceUID(), Channel: ch}
	return true
}

// Terminate announces that the hardware with uid is gone. A MockChannel
// is marked not alive first. It returns false for unknown uids.
func (b *MockBus) Terminate(uid string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[uid]
	if !ok || b.closed {
		return false
	}
	delete(b.channels, uid)
	if m, ok := ch.(*MockChannel); ok {
		m.Terminate()
	}
	b.events <- Event{Kind: Terminated, UID: uid}
	return true
}

// UIDs returns the uids of present hardware.
func (b *MockBus) UIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	uids := make([]string, 0, len(b.channels))
	for uid := range b.channels {
		uids = append(uids, uid)
	}
	return uids
}

// Close ends the event stream.
func (b *MockBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
}
