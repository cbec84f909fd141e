package sgxnet

import (
	"time"

	"github.com/ehrlich-b/sgxnet/internal/logging"
	"github.com/ehrlich-b/sgxnet/internal/provider"
	"github.com/ehrlich-b/sgxnet/internal/selector"
)

// PollMode selects the readiness delivery semantics requested at
// registration time. Only ModeEdge is implemented; the others exist so
// callers migrating from a kernel poller get a clear rejection instead of
// silently-wrong behavior.
type PollMode int

const (
	// ModeEdge delivers an event once per transition from "cannot make
	// progress" to "can make progress". The only supported mode.
	ModeEdge PollMode = iota
	// ModeOneshot would disable a source's interest after each delivery
	// until explicitly rearmed. Not supported in this environment.
	ModeOneshot
	// ModeLevelTriggered would redeliver readiness on every poll while the
	// condition holds. Not supported in this environment.
	ModeLevelTriggered
)

// Source is the interface every I/O source satisfies toward a Registry.
type Source interface {
	Register(registry *Registry, token Token, interest Interest) error
	Reregister(registry *Registry, token Token, interest Interest) error
	Deregister(registry *Registry) error
}

// Config configures a new Registry.
type Config struct {
	Logger   Logger
	Observer Observer
}

// Logger is the minimal logging surface a Registry and its sources depend
// on; *logging.Logger and any compatible type satisfy it. Debug takes
// key/value pairs, matching the registration/accept/connect/read/write
// lifecycle logging internal/selector and internal/provider actually emit.
type Logger interface {
	Debug(msg string, args ...any)
	Debugf(format string, args ...any)
	Printf(format string, args ...any)
}

// Observer receives lifecycle and I/O counters the Registry and its
// sources drive. A nil Observer is valid everywhere one is accepted. The
// first four methods mirror the internal selector's own (narrower)
// Observer interface; the remaining four are driven directly by
// TcpListener/TcpStream around their accept/connect/read/write
// submissions.
type Observer interface {
	ObserveRegistration()
	ObserveDeregistration()
	ObserveEventDelivered()
	ObserveEventDropped()

	ObserveAccept(success bool)
	ObserveConnect(success bool)
	ObserveRead(bytes uint64, success bool)
	ObserveWrite(bytes uint64, success bool)
}

// DefaultConfig returns a Registry configuration using the package's
// default logger and a no-op observer.
func DefaultConfig() Config {
	return Config{Logger: logging.Default(), Observer: NoOpObserver{}}
}

// Registry is the event bus sources register against. It wraps the
// internal selector (registrations map, event queue, asynchronous usercall
// provider) behind the public Source/Poll contract.
type Registry struct {
	sel *selector.Selector
	obs Observer
}

// NewRegistry constructs a Registry with the given configuration.
func NewRegistry(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = NoOpObserver{}
	}
	return &Registry{
		obs: cfg.Observer,
		sel: selector.New(selector.Options{
			Logger:   cfg.Logger,
			Observer: cfg.Observer,
		}),
	}
}

// TryClone returns a second Registry handle sharing this one's state,
// mirroring the internal selector's try_clone operation.
func (r *Registry) TryClone() *Registry {
	return &Registry{sel: r.sel.TryClone(), obs: r.obs}
}

// selectorHandle exposes the internal selector to sources in this package.
// It is unexported: Source implementations outside this package cannot be
// built directly against the internal selector, matching the spec's
// closed set of sources (TcpListener, TcpStream, Waker).
func (r *Registry) selectorHandle() *selector.Selector { return r.sel }

// Register attaches source to this registry under token/interest. Only
// ModeEdge is supported; any other mode is rejected before the source is
// ever touched.
func (r *Registry) Register(source Source, token Token, interest Interest, mode PollMode) error {
	if mode != ModeEdge {
		return ErrUnsupportedPollMode
	}
	return source.Register(r, token, interest)
}

// Reregister updates an already-registered source's token/interest.
func (r *Registry) Reregister(source Source, token Token, interest Interest) error {
	return source.Reregister(r, token, interest)
}

// Deregister detaches source from this registry.
func (r *Registry) Deregister(source Source) error {
	return source.Deregister(r)
}

// Events is the bounded buffer Poll fills on every call.
type Events struct {
	inner *selector.Events
}

// NewEvents allocates an Events buffer with room for capacity entries. A
// capacity of zero or less selects DefaultEventCapacity.
func NewEvents(capacity int) *Events {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &Events{inner: selector.NewEvents(capacity)}
}

// Len returns the number of events currently held.
func (e *Events) Len() int { return e.inner.Len() }

// Cap returns the fixed capacity of the buffer.
func (e *Events) Cap() int { return e.inner.Cap() }

// Get returns the i'th event.
func (e *Events) Get(i int) Event {
	inner := e.inner.Get(i)
	return Event{Token: inner.Token, kind: inner.Kind}
}

// All returns every event delivered by the most recent Poll call. The
// returned slice is only valid until the next Poll call on this buffer.
func (e *Events) All() []Event {
	items := e.inner.All()
	out := make([]Event, len(items))
	for i, it := range items {
		out[i] = Event{Token: it.Token, kind: it.Kind}
	}
	return out
}

// Poll is the registry's sole suspension point. A nil timeout blocks
// indefinitely; otherwise *timeout (which may be zero) bounds the wait.
func (r *Registry) Poll(events *Events, timeout *time.Duration) error {
	r.sel.Select(events.inner, timeout)
	return nil
}

// providerHandle returns the registry's asynchronous usercall provider,
// used by sources to submit async operations.
func (r *Registry) providerHandle() *provider.Provider { return r.sel.Provider() }

// observerHandle returns the registry's observer, used by sources to
// record accept/connect/read/write outcomes.
func (r *Registry) observerHandle() Observer { return r.obs }
