// Package selector implements the event bus described by the spec: a
// per-instance map of live registrations, an event queue fed by completion
// callbacks, and a reference to the asynchronous usercall provider whose
// callback-handler poll is the selector's single suspension point.
package selector

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/sgxnet/internal/event"
	"github.com/ehrlich-b/sgxnet/internal/provider"
)

// Logger is the minimal logging surface the selector depends on. Debug
// takes key/value pairs (id, token, kind, ...) describing registration and
// drain activity rather than a printf format.
type Logger interface {
	Debug(msg string, args ...any)
	Debugf(format string, args ...any)
}

// Observer receives lifecycle counters the selector drives. All methods
// must be safe to call concurrently; a nil Observer is valid everywhere an
// Observer is accepted.
type Observer interface {
	ObserveRegistration()
	ObserveDeregistration()
	ObserveEventDelivered()
	ObserveEventDropped()
}

// Options configures a new Selector.
type Options struct {
	Logger   Logger
	Observer Observer
}

type sharedState struct {
	id       uint64
	regMu    sync.Mutex
	regs     map[event.ID]regEntry
	queue    eventQueue
	provider *provider.Provider
	observer Observer
	logger   Logger
}

var nextSelectorID uint64

// New constructs a Selector: a unique id, an empty registrations map, an
// empty event queue, and a fresh asynchronous usercall provider.
func New(opts Options) *Selector {
	id := atomic.AddUint64(&nextSelectorID, 1)
	var providerLogger provider.Logger
	if opts.Logger != nil {
		if pl, ok := opts.Logger.(provider.Logger); ok {
			providerLogger = pl
		}
	}
	return &Selector{shared: &sharedState{
		id:       id,
		regs:     make(map[event.ID]regEntry),
		provider: provider.New(providerLogger),
		observer: opts.Observer,
		logger:   opts.Logger,
	}}
}

// Selector is a handle to the shared event-bus state. Cloning (TryClone)
// yields a second handle over the same state: same registrations map, same
// event queue, same provider.
type Selector struct {
	shared *sharedState
}

// TryClone returns a second handle sharing this selector's state.
func (s *Selector) TryClone() *Selector {
	return &Selector{shared: s.shared}
}

// ID returns the selector's process-wide unique id.
func (s *Selector) ID() uint64 { return s.shared.id }

// Provider returns the selector's asynchronous usercall provider handle,
// used by sources to submit async operations.
func (s *Selector) Provider() *provider.Provider { return s.shared.provider }

// Register allocates a fresh Registration under this selector.
func (s *Selector) Register(token event.Token, interest event.Interest) *Registration {
	return NewRegistration(s, token, interest)
}

// Select is the selector's sole suspension point. timeout == nil blocks
// indefinitely; otherwise *timeout (which may be zero) bounds the wait.
//
// Behavior mirrors §4.C exactly:
//  1. Clear the provider's callback-handler latch.
//  2. If the event queue is already non-empty, force a zero wait so the
//     drain below runs without blocking.
//  3. Poll the provider (the single suspension point).
//  4. Reset the events buffer.
//  5. Under the registrations lock, drain the queue: skip dangling ids,
//     filter by current interest (errors always pass), stop once the
//     buffer is full (surplus stays queued for the next call).
func (s *Selector) Select(events *Events, timeout *time.Duration) {
	sh := s.shared

	sh.provider.ClearLatch()

	pollTimeout := time.Duration(-1)
	if timeout != nil {
		pollTimeout = *timeout
	}
	if sh.queue.nonEmpty() {
		pollTimeout = 0
	}
	sh.provider.Poll(pollTimeout)

	events.reset()

	sh.regMu.Lock()
	defer sh.regMu.Unlock()

	sh.queue.drain(func(p event.Pending) bool {
		entry, ok := sh.regs[p.ID]
		if !ok {
			return true // dangling: source already dropped/deregistered
		}
		if !p.Kind.MatchesInterest(entry.interest) {
			if sh.observer != nil {
				sh.observer.ObserveEventDropped()
			}
			if sh.logger != nil {
				sh.logger.Debug("event dropped by interest filter", "id", p.ID, "kind", p.Kind, "interest", entry.interest)
			}
			return true // consumed, filtered by current interest
		}
		if events.full() {
			return false // stop; leave this and later items queued
		}
		events.push(Event{Kind: p.Kind, Token: entry.token})
		if sh.observer != nil {
			sh.observer.ObserveEventDelivered()
		}
		return true
	})
}
