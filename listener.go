package sgxnet

import (
	"net"
	"sync"

	"github.com/ehrlich-b/sgxnet/internal/event"
	"github.com/ehrlich-b/sgxnet/internal/provider"
	"github.com/ehrlich-b/sgxnet/internal/selector"
	"github.com/ehrlich-b/sgxnet/internal/state"

	"golang.org/x/sys/unix"
)

// acceptResult is the Ready payload of a TcpListener's accept state: the
// accepted connection and its peer address, captured at completion time so
// Accept never has to touch the connection under the listener's lock.
type acceptResult struct {
	conn *net.TCPConn
	addr net.Addr
}

type acceptState = state.State[struct{}, *provider.CancelHandle, acceptResult]

func newAcceptState() acceptState {
	return state.New[struct{}, *provider.CancelHandle, acceptResult](struct{}{})
}

// tcpListenerInner holds everything Accept, Register and Close touch. It is
// split from TcpListener so the exported type stays a thin handle: copying
// a TcpListener value yields a second handle to the same listener, since
// all mutable state lives behind this one pointer.
type tcpListenerInner struct {
	mu           sync.Mutex
	ln           *net.TCPListener
	localAddr    net.Addr
	accept       acceptState
	registration *selector.Registration
	provider     *provider.Provider
	observer     Observer
	closed       bool
}

// TcpListener is an edge-triggered TCP listener. It has no OS-level
// non-blocking accept of its own: every Accept call is served from a single
// outstanding asynchronous accept submission, resubmitted each time the
// previous one is consumed.
type TcpListener struct {
	inner *tcpListenerInner
}

// ListenTCP binds address ("host:port") and returns a TcpListener with no
// accept submitted yet; the first accept is scheduled when the listener is
// registered against a Registry.
func ListenTCP(address string) (*TcpListener, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, WrapError("bind", err)
	}
	return ListenTCPAddr(addr)
}

// ListenTCPAddr binds a parsed address, mirroring ListenTCP for callers that
// already have a *net.TCPAddr.
func ListenTCPAddr(addr *net.TCPAddr) (*TcpListener, error) {
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, WrapError("bind", err)
	}
	return &TcpListener{inner: &tcpListenerInner{
		ln:        ln,
		localAddr: ln.Addr(),
		accept:    newAcceptState(),
	}}, nil
}

// LocalAddr returns the address the listener is bound to.
func (l *TcpListener) LocalAddr() net.Addr { return l.inner.localAddr }

// SetTTL sets the socket's IP_TTL option. Unlike TcpStream.TTL, this is a
// real syscall: a listening socket has no fake-provider ambiguity since it
// never leaves the host kernel's TCP stack.
func (l *TcpListener) SetTTL(ttl int) error {
	raw, err := l.inner.ln.SyscallConn()
	if err != nil {
		return WrapError("set_ttl", err)
	}
	var sockErr error
	if ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, ttl)
	}); ctrlErr != nil {
		return WrapError("set_ttl", ctrlErr)
	}
	if sockErr != nil {
		return WrapError("set_ttl", sockErr)
	}
	return nil
}

// TTL reads back the socket's IP_TTL option.
func (l *TcpListener) TTL() (int, error) {
	raw, err := l.inner.ln.SyscallConn()
	if err != nil {
		return 0, WrapError("ttl", err)
	}
	var ttl int
	var sockErr error
	if ctrlErr := raw.Control(func(fd uintptr) {
		ttl, sockErr = unix.GetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL)
	}); ctrlErr != nil {
		return 0, WrapError("ttl", ctrlErr)
	}
	if sockErr != nil {
		return 0, WrapError("ttl", sockErr)
	}
	return ttl, nil
}

// Accept returns the most recently completed connection, if any. It never
// blocks: New or Pending yields ErrWouldBlock, Ready yields the connection,
// and Error yields (and clears) the latched accept failure. Either way, a
// fresh accept is scheduled before Accept returns so the listener always
// has at most one outstanding submission.
func (l *TcpListener) Accept() (*TcpStream, net.Addr, error) {
	in := l.inner
	in.mu.Lock()
	var stream *TcpStream
	var addr net.Addr
	var retErr error
	switch {
	case in.accept.IsReady():
		r, _ := in.accept.ReadyValue()
		in.accept = newAcceptState()
		stream = newTcpStreamFromConn(r.conn)
		addr = r.addr
	case in.accept.IsError():
		retErr = in.accept.TakeError(newAcceptState())
	default:
		retErr = ErrWouldBlock
	}
	in.mu.Unlock()

	l.scheduleAccept()

	if retErr != nil {
		return nil, nil, retErr
	}
	return stream, addr, nil
}

// scheduleAccept submits a new accept if the accept state is New, the
// listener is registered, and the listener hasn't been closed. It is called
// after Register and after every Accept, matching the spec's
// resubmit-on-consume invariant.
func (l *TcpListener) scheduleAccept() {
	in := l.inner
	in.mu.Lock()
	if !in.accept.IsNew() || in.provider == nil || in.closed {
		in.mu.Unlock()
		return
	}
	in.accept = state.Pending[struct{}, *provider.CancelHandle, acceptResult](nil)
	ln := in.ln
	in.mu.Unlock()

	cancel := in.provider.AsyncAccept(ln, func(conn *net.TCPConn, addr net.Addr, err error) {
		in.mu.Lock()
		if err != nil {
			in.accept = state.Errored[struct{}, *provider.CancelHandle, acceptResult](WrapError("accept", err))
		} else {
			in.accept = state.Ready[struct{}, *provider.CancelHandle, acceptResult](acceptResult{conn: conn, addr: addr})
		}
		reg := in.registration
		obs := in.observer
		in.mu.Unlock()

		if obs != nil {
			obs.ObserveAccept(err == nil)
		}
		if reg == nil {
			return
		}
		if err != nil {
			reg.PushEvent(event.KindReadError)
		} else {
			reg.PushEvent(event.KindReadable)
		}
	})

	in.mu.Lock()
	if in.accept.IsPending() {
		in.accept = state.Pending[struct{}, *provider.CancelHandle, acceptResult](cancel)
	}
	in.mu.Unlock()
}

// TakeError returns and clears a latched accept failure without waiting for
// the next Accept call to surface it.
func (l *TcpListener) TakeError() error {
	in := l.inner
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.accept.TakeError(newAcceptState())
}

// Register attaches the listener to registry and schedules its first
// accept. It returns ErrAlreadyRegistered if the listener already has a
// live registration, on this registry or another.
func (l *TcpListener) Register(registry *Registry, token Token, interest Interest) error {
	in := l.inner
	in.mu.Lock()
	if in.registration != nil {
		in.mu.Unlock()
		return ErrAlreadyRegistered
	}
	in.registration = registry.selectorHandle().Register(token, interest)
	in.provider = registry.providerHandle()
	in.observer = registry.observerHandle()
	in.mu.Unlock()

	l.scheduleAccept()
	return nil
}

// Reregister updates the listener's token/interest and, if a connection is
// already sitting in Ready or an error is latched, re-announces it so the
// new interest isn't missed.
func (l *TcpListener) Reregister(registry *Registry, token Token, interest Interest) error {
	in := l.inner
	in.mu.Lock()
	if in.registration == nil {
		in.mu.Unlock()
		return ErrNotRegistered
	}
	in.registration.ChangeDetails(token, interest)
	var reannounce event.Kind
	var shouldReannounce bool
	switch {
	case in.accept.IsReady():
		reannounce, shouldReannounce = event.KindReadable, true
	case in.accept.IsError():
		reannounce, shouldReannounce = event.KindReadError, true
	}
	reg := in.registration
	in.mu.Unlock()

	if shouldReannounce {
		reg.PushEvent(reannounce)
	}
	return nil
}

// Deregister detaches the listener from registry. Any accept already
// completing continues to mutate the listener's state, but its completion
// has nothing left to push an event into.
func (l *TcpListener) Deregister(registry *Registry) error {
	in := l.inner
	in.mu.Lock()
	if in.registration == nil {
		in.mu.Unlock()
		return ErrNotRegistered
	}
	reg := in.registration
	in.registration = nil
	in.provider = nil
	in.mu.Unlock()

	reg.Close()
	return nil
}

// Close cancels any outstanding accept and closes the listening socket. It
// does not deregister: callers that registered the listener should
// Deregister separately if they want queued accept events silenced rather
// than merely stopped at the source.
func (l *TcpListener) Close() error {
	in := l.inner
	in.mu.Lock()
	in.closed = true
	if p, ok := in.accept.PendingValue(); ok {
		p.Cancel()
	}
	in.mu.Unlock()
	return in.ln.Close()
}
