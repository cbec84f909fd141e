package selector

import "github.com/ehrlich-b/sgxnet/internal/event"

// Event is a single readiness delivery: a completion kind paired with the
// token its source was last (re)registered with.
type Event struct {
	Kind  event.Kind
	Token event.Token
}

func (e Event) IsReadable() bool    { return e.Kind == event.KindReadable }
func (e Event) IsReadClosed() bool  { return e.Kind == event.KindReadClosed }
func (e Event) IsReadError() bool   { return e.Kind == event.KindReadError }
func (e Event) IsWritable() bool    { return e.Kind == event.KindWritable }
func (e Event) IsWriteClosed() bool { return e.Kind == event.KindWriteClosed }
func (e Event) IsWriteError() bool  { return e.Kind == event.KindWriteError }

// Events is the bounded vector Select fills on every call. Its capacity is
// fixed at construction; Select never grows it.
type Events struct {
	items []Event
	cap   int
}

// NewEvents allocates an Events buffer with room for capacity entries.
func NewEvents(capacity int) *Events {
	if capacity <= 0 {
		capacity = 1
	}
	return &Events{items: make([]Event, 0, capacity), cap: capacity}
}

func (e *Events) reset() {
	e.items = e.items[:0]
}

func (e *Events) push(ev Event) {
	e.items = append(e.items, ev)
}

// Len returns the number of events currently held.
func (e *Events) Len() int { return len(e.items) }

// Cap returns the fixed capacity of the buffer.
func (e *Events) Cap() int { return e.cap }

func (e *Events) full() bool { return len(e.items) >= e.cap }

// Get returns the i'th event. It panics if i is out of range, matching
// slice semantics.
func (e *Events) Get(i int) Event { return e.items[i] }

// All returns the events delivered by the most recent Select call. The
// returned slice is only valid until the next Select call on the same
// Events buffer.
func (e *Events) All() []Event { return e.items }
