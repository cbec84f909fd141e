package sgxnet

import (
	"sync"

	"github.com/ehrlich-b/sgxnet/internal/event"
)

// FakeProvider is a deterministic in-process Source: it registers,
// reregisters and deregisters against a Registry exactly like TcpListener
// or TcpStream, but its "completions" are synthesized directly by test code
// via the Push* methods instead of arriving from a real socket or the
// asynchronous usercall provider underneath one. Useful for exercising a
// Registry's contract (double-register rejection, interest filtering,
// reregister re-announcement) without standing up real TCP sockets.
type FakeProvider struct {
	mu  sync.Mutex
	reg registrar

	registerCalls   int
	reregisterCalls int
	deregisterCalls int
}

// registrar is the subset of *selector.Registration FakeProvider needs,
// named locally so this file doesn't have to import internal/selector just
// to spell the type out.
type registrar interface {
	ChangeDetails(token event.Token, interest event.Interest) bool
	PushEvent(kind event.Kind)
	Close()
}

// NewFakeProvider returns an unregistered FakeProvider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

// Register implements Source.
func (f *FakeProvider) Register(registry *Registry, token Token, interest Interest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.reg != nil {
		return ErrAlreadyRegistered
	}
	f.reg = registry.selectorHandle().Register(token, interest)
	return nil
}

// Reregister implements Source.
func (f *FakeProvider) Reregister(registry *Registry, token Token, interest Interest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reg == nil {
		return ErrNotRegistered
	}
	f.reg.ChangeDetails(token, interest)
	f.reregisterCalls++
	return nil
}

// Deregister implements Source.
func (f *FakeProvider) Deregister(registry *Registry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reg == nil {
		return ErrNotRegistered
	}
	f.reg.Close()
	f.reg = nil
	f.deregisterCalls++
	return nil
}

func (f *FakeProvider) push(kind event.Kind) {
	f.mu.Lock()
	reg := f.reg
	f.mu.Unlock()
	if reg != nil {
		reg.PushEvent(kind)
	}
}

// PushReadable synthesizes a Readable completion through this fake
// source's current registration, as if a real provider callback had just
// run. A no-op if the source isn't registered.
func (f *FakeProvider) PushReadable() { f.push(event.KindReadable) }

// PushReadClosed synthesizes a ReadClosed completion.
func (f *FakeProvider) PushReadClosed() { f.push(event.KindReadClosed) }

// PushReadError synthesizes a ReadError completion.
func (f *FakeProvider) PushReadError() { f.push(event.KindReadError) }

// PushWritable synthesizes a Writable completion.
func (f *FakeProvider) PushWritable() { f.push(event.KindWritable) }

// PushWriteClosed synthesizes a WriteClosed completion.
func (f *FakeProvider) PushWriteClosed() { f.push(event.KindWriteClosed) }

// PushWriteError synthesizes a WriteError completion.
func (f *FakeProvider) PushWriteError() { f.push(event.KindWriteError) }

// RegisterCalls reports how many times Register has been called, including
// calls rejected with ErrAlreadyRegistered.
func (f *FakeProvider) RegisterCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registerCalls
}

// ReregisterCalls reports how many times Reregister has been called.
func (f *FakeProvider) ReregisterCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reregisterCalls
}

// DeregisterCalls reports how many times Deregister has been called.
func (f *FakeProvider) DeregisterCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deregisterCalls
}

// Registered reports whether the fake currently has a live registration.
func (f *FakeProvider) Registered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reg != nil
}

var _ Source = (*FakeProvider)(nil)
