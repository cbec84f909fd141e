package sgxnet

import (
	"github.com/ehrlich-b/sgxnet/internal/event"
	"github.com/ehrlich-b/sgxnet/internal/provider"
	"github.com/ehrlich-b/sgxnet/internal/selector"
)

// Waker lets any goroutine interrupt a blocked Poll call from outside the
// polling thread, standing in for the enclave's insecure_time usercall
// trick: each Wake submits a trivial no-op asynchronous request whose
// completion is the only thing that ever touches the selector.
type Waker struct {
	registration *selector.Registration
	provider     *provider.Provider
}

// NewWaker registers a Waker against registry under token with a fixed
// Readable interest. Unlike TcpListener/TcpStream, registration happens at
// construction: a Waker has no state to build up before it and no use that
// makes sense unregistered.
func NewWaker(registry *Registry, token Token) *Waker {
	return &Waker{
		registration: registry.selectorHandle().Register(token, Readable),
		provider:     registry.providerHandle(),
	}
}

// Wake submits a no-op completion that pushes a single Readable event
// through the waker's registration, interrupting a Poll call blocked on
// another goroutine. Safe to call from any goroutine.
func (w *Waker) Wake() {
	w.provider.AsyncNoop(func() {
		w.registration.PushEvent(event.KindReadable)
	})
}

// Close deregisters the waker. Subsequent Wake calls still submit their
// no-op completion but have nothing left to push an event into.
func (w *Waker) Close() error {
	w.registration.Close()
	return nil
}
