package sgxnet

import (
	"net"
	"sync"

	"github.com/ehrlich-b/sgxnet/internal/event"
	"github.com/ehrlich-b/sgxnet/internal/provider"
	"github.com/ehrlich-b/sgxnet/internal/selector"
	"github.com/ehrlich-b/sgxnet/internal/state"
)

type connectState = state.State[string, *provider.CancelHandle, *net.TCPConn]

// readResult is the Ready payload of a read completion: buf is the
// full-capacity buffer submitted to the provider, data is the still-unread
// prefix of it. Read reslices data as it copies into the caller's buffer
// and hands buf back for reuse once data is exhausted.
type readResult struct {
	buf  []byte
	data []byte
}

type readState = state.State[struct{}, *provider.CancelHandle, readResult]
type writeState = state.State[struct{}, *provider.CancelHandle, struct{}]

func newConnectState(addr string) connectState {
	return state.New[string, *provider.CancelHandle, *net.TCPConn](addr)
}
func newReadState() readState {
	return state.New[struct{}, *provider.CancelHandle, readResult](struct{}{})
}
func newWriteState() writeState {
	return state.New[struct{}, *provider.CancelHandle, struct{}](struct{}{})
}

// errWriteZero mirrors io's ErrShortWrite/WriteZero class of failure: the
// provider's write usercall returned (0, nil), which a Writer must treat as
// an error rather than a legitimate zero-progress success.
var errWriteZero = NewError("write", ErrCodeWriteZero, "write returned zero bytes with no error")

// tcpStreamInner holds every mutable field behind one mutex, shared by the
// connect, read and write state machines. They share a lock rather than
// three because Register, Reregister and Close all need to reason about
// more than one machine atomically.
type tcpStreamInner struct {
	mu      sync.Mutex
	conn    *net.TCPConn
	local   net.Addr
	peer    net.Addr
	connect connectState

	read    readState
	readBuf []byte // idle buffer owned by the stream between reads
	readEOF bool   // sticky: once true, scheduleRead never resubmits

	write    writeState
	writeBuf []byte

	registration    *selector.Registration
	provider        *provider.Provider
	observer        Observer
	closed          bool
	closeAfterWrite bool
}

// TcpStream is an edge-triggered TCP connection with a bounded internal
// write buffer standing in for the kernel's socket send buffer: Write
// enqueues into it and returns immediately, and a background asynchronous
// write drains it whenever connect has completed.
type TcpStream struct {
	inner *tcpStreamInner
}

// Connect begins an asynchronous connection to address ("host:port"). The
// dial itself is not submitted until the stream is registered with a
// Registry, since only then does it have a provider to submit against.
func Connect(address string) (*TcpStream, error) {
	return &TcpStream{inner: &tcpStreamInner{
		connect: newConnectState(address),
		read:    newReadState(),
		write:   newWriteState(),
	}}, nil
}

// ConnectTCP is Connect for callers that already have a parsed address.
func ConnectTCP(addr *net.TCPAddr) (*TcpStream, error) {
	return Connect(addr.String())
}

// FromStdConn wraps an already-connected *net.TCPConn (for example, one
// accepted outside this package) as a TcpStream whose connect state starts
// Ready.
func FromStdConn(conn *net.TCPConn) *TcpStream {
	return newTcpStreamFromConn(conn)
}

func newTcpStreamFromConn(conn *net.TCPConn) *TcpStream {
	return &TcpStream{inner: &tcpStreamInner{
		conn:    conn,
		local:   conn.LocalAddr(),
		peer:    conn.RemoteAddr(),
		connect: state.Ready[string, *provider.CancelHandle, *net.TCPConn](conn),
		read:    newReadState(),
		write:   newWriteState(),
	}}
}

// LocalAddr returns the stream's local address, cached at connect/accept
// time. It is the zero net.Addr until connect completes.
func (s *TcpStream) LocalAddr() net.Addr {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	return s.inner.local
}

// PeerAddr returns the stream's remote address, cached at connect/accept
// time.
func (s *TcpStream) PeerAddr() net.Addr {
	s.inner.mu.Lock()
	defer s.inner.mu.Unlock()
	return s.inner.peer
}

// Nodelay always reports false: TCP_NODELAY has no effect on a write path
// that already batches through an internal buffer rather than calling
// write() per application Write.
func (s *TcpStream) Nodelay() (bool, error) { return false, nil }

// SetNodelay is a no-op for the same reason Nodelay always reports false.
func (s *TcpStream) SetNodelay(bool) error { return nil }

// TTL returns a fixed value: the stream has no real socket to query until
// connect completes, and querying the live socket afterward would make TTL
// behave differently before and after connect for no benefit to callers
// that only use it for diagnostics.
func (s *TcpStream) TTL() (int, error) { return FakeTTL, nil }

// SetTTL is a no-op, for the same reason TTL is fixed.
func (s *TcpStream) SetTTL(int) error { return nil }

// Shutdown is a no-op: half-close has no distinct representation in this
// model's state machines, which track "done" per direction via ReadClosed
// and WriteClosed events instead.
func (s *TcpStream) Shutdown() error { return nil }

// Peek always returns (0, nil): there is no socket-level MSG_PEEK in this
// model, since reads are consumed destructively out of the provider buffer.
func (s *TcpStream) Peek([]byte) (int, error) { return 0, nil }

// Flush is a no-op: Write already submits against the internal buffer
// asynchronously: there is no separate buffering layer above it to flush.
func (s *TcpStream) Flush() error { return nil }

// Read copies from the most recently completed read into p. It never
// blocks: WouldBlock covers "connect not yet Ready" and "no read completion
// ready yet", a latched read error is returned once and cleared, and a
// zero-byte, nil-error return means EOF (sticky: every subsequent Read also
// returns (0, nil) without resubmitting a read).
func (s *TcpStream) Read(p []byte) (int, error) {
	in := s.inner
	in.mu.Lock()

	if rerr, ok := in.read.ErrorValue(); ok {
		in.read = newReadState()
		in.mu.Unlock()
		s.scheduleRead()
		return 0, rerr
	}
	if in.readEOF && in.read.IsNew() {
		in.mu.Unlock()
		return 0, nil
	}
	if !in.connect.IsReady() {
		in.mu.Unlock()
		return 0, ErrWouldBlock
	}

	res, ok := in.read.ReadyValue()
	if !ok {
		in.mu.Unlock()
		return 0, ErrWouldBlock
	}

	n := copy(p, res.data)
	res.data = res.data[n:]
	if len(res.data) > 0 {
		in.read = state.Ready[struct{}, *provider.CancelHandle, readResult](res)
		in.mu.Unlock()
		return n, nil
	}

	in.readBuf = res.buf
	in.read = newReadState()
	in.mu.Unlock()

	s.scheduleRead()
	return n, nil
}

// scheduleRead submits a new read if the read state is New, connect is
// Ready, the stream is registered and open, and EOF hasn't already been
// observed.
func (s *TcpStream) scheduleRead() {
	in := s.inner
	in.mu.Lock()
	if !in.read.IsNew() || !in.connect.IsReady() || in.provider == nil || in.closed || in.readEOF {
		in.mu.Unlock()
		return
	}
	buf := in.readBuf
	if buf == nil {
		buf = make([]byte, ReadBufferSize)
	} else {
		buf = buf[:ReadBufferSize]
	}
	in.readBuf = nil
	in.read = state.Pending[struct{}, *provider.CancelHandle, readResult](nil)
	conn := in.conn
	in.mu.Unlock()

	cancel := in.provider.AsyncRead(conn, buf, func(n int, err error) {
		in.mu.Lock()
		reg := in.registration
		obs := in.observer
		switch {
		case err != nil:
			in.readBuf = buf
			wrapped := WrapError("read", err)
			in.read = state.Errored[struct{}, *provider.CancelHandle, readResult](wrapped)
			closedClass := IsClosed(wrapped)
			in.mu.Unlock()
			if obs != nil {
				obs.ObserveRead(0, false)
			}
			if reg == nil {
				return
			}
			if closedClass {
				reg.PushEvent(event.KindReadClosed)
			} else {
				reg.PushEvent(event.KindReadError)
			}
		case n == 0:
			in.readBuf = buf
			in.readEOF = true
			in.read = newReadState()
			in.mu.Unlock()
			if obs != nil {
				obs.ObserveRead(0, true)
			}
			if reg != nil {
				reg.PushEvent(event.KindReadClosed)
			}
		default:
			in.read = state.Ready[struct{}, *provider.CancelHandle, readResult](readResult{buf: buf, data: buf[:n]})
			in.mu.Unlock()
			if obs != nil {
				obs.ObserveRead(uint64(n), true)
			}
			if reg != nil {
				reg.PushEvent(event.KindReadable)
			}
		}
	})

	in.mu.Lock()
	if in.read.IsPending() {
		in.read = state.Pending[struct{}, *provider.CancelHandle, readResult](cancel)
	}
	in.mu.Unlock()
}

// Write appends up to len(p) bytes to the stream's internal send buffer and
// schedules a write submission. It returns WouldBlock if connect hasn't
// completed or the buffer is already full. If the previous write failed and
// its error hasn't been taken yet, Write buffers nothing and returns that
// latched error (clearing it) rather than silently discarding it.
func (s *TcpStream) Write(p []byte) (int, error) {
	in := s.inner
	in.mu.Lock()

	if werr, ok := in.write.ErrorValue(); ok {
		in.write = newWriteState()
		in.mu.Unlock()
		return 0, werr
	}
	if !in.connect.IsReady() {
		in.mu.Unlock()
		return 0, ErrWouldBlock
	}

	avail := WriteBufferSize - len(in.writeBuf)
	if avail <= 0 {
		in.mu.Unlock()
		return 0, ErrWouldBlock
	}
	n := len(p)
	if n > avail {
		n = avail
	}
	in.writeBuf = append(in.writeBuf, p[:n]...)
	in.mu.Unlock()

	s.scheduleWrite()
	return n, nil
}

// scheduleWrite submits the entire current write buffer if the write state
// is New, connect is Ready, and there is anything queued. Unlike
// scheduleConnect/scheduleRead, this does not check closed: per the
// module's weak/strong-reference contract (see Close), a write already
// queued before Close must still be delivered.
func (s *TcpStream) scheduleWrite() {
	in := s.inner
	in.mu.Lock()
	if !in.write.IsNew() || !in.connect.IsReady() || in.provider == nil || len(in.writeBuf) == 0 {
		in.mu.Unlock()
		return
	}
	chunk := in.writeBuf
	in.write = state.Pending[struct{}, *provider.CancelHandle, struct{}](nil)
	conn := in.conn
	in.mu.Unlock()

	cancel := in.provider.AsyncWrite(conn, chunk, func(n int, err error) {
		in.mu.Lock()
		reg := in.registration
		obs := in.observer

		if err != nil {
			wrapped := WrapError("write", err)
			in.write = state.Errored[struct{}, *provider.CancelHandle, struct{}](wrapped)
			closedClass := IsClosed(wrapped)
			closeNow := in.closeAfterWrite
			c := in.conn
			in.mu.Unlock()
			if obs != nil {
				obs.ObserveWrite(0, false)
			}
			if reg != nil {
				if closedClass {
					reg.PushEvent(event.KindWriteClosed)
				} else {
					reg.PushEvent(event.KindWriteError)
				}
			}
			if closeNow && c != nil {
				_ = c.Close()
			}
			return
		}
		if n == 0 {
			in.write = state.Errored[struct{}, *provider.CancelHandle, struct{}](errWriteZero)
			closeNow := in.closeAfterWrite
			c := in.conn
			in.mu.Unlock()
			if obs != nil {
				obs.ObserveWrite(0, false)
			}
			if reg != nil {
				reg.PushEvent(event.KindWriteClosed)
			}
			if closeNow && c != nil {
				_ = c.Close()
			}
			return
		}

		in.writeBuf = in.writeBuf[n:]
		in.write = newWriteState()
		remaining := len(in.writeBuf) > 0
		closeNow := in.closeAfterWrite && !remaining
		c := in.conn
		in.mu.Unlock()

		if obs != nil {
			obs.ObserveWrite(uint64(n), true)
		}
		if remaining {
			s.scheduleWrite()
			return
		}
		if reg != nil {
			reg.PushEvent(event.KindWritable)
		}
		if closeNow && c != nil {
			_ = c.Close()
		}
	})

	in.mu.Lock()
	if in.write.IsPending() {
		in.write = state.Pending[struct{}, *provider.CancelHandle, struct{}](cancel)
	}
	in.mu.Unlock()
}

// TakeError returns and clears whichever machine currently has a latched
// error, checked in connect, read, write order. Connect's Error variant is
// otherwise sticky: nothing else ever clears it, since a stream whose
// connect failed has no retry path of its own (callers reconnect by
// constructing a new TcpStream).
func (s *TcpStream) TakeError() error {
	in := s.inner
	in.mu.Lock()
	if err := in.connect.TakeError(newConnectState("")); err != nil {
		in.mu.Unlock()
		return err
	}
	if err := in.read.TakeError(newReadState()); err != nil {
		in.mu.Unlock()
		s.scheduleRead()
		return err
	}
	if err := in.write.TakeError(newWriteState()); err != nil {
		in.mu.Unlock()
		return err
	}
	in.mu.Unlock()
	return nil
}

// Register attaches the stream to registry. If connect already completed
// (a stream built with FromStdConn), the first read is scheduled
// immediately; otherwise the connect itself is scheduled. Either way, any
// bytes already queued by a Write before Register are scheduled too.
func (s *TcpStream) Register(registry *Registry, token Token, interest Interest) error {
	in := s.inner
	in.mu.Lock()
	if in.registration != nil {
		in.mu.Unlock()
		return ErrAlreadyRegistered
	}
	in.registration = registry.selectorHandle().Register(token, interest)
	in.provider = registry.providerHandle()
	in.observer = registry.observerHandle()
	connectReady := in.connect.IsReady()
	in.mu.Unlock()

	if connectReady {
		s.scheduleRead()
	} else {
		s.scheduleConnect()
	}
	s.scheduleWrite()
	return nil
}

func (s *TcpStream) scheduleConnect() {
	in := s.inner
	in.mu.Lock()
	addr, isNew := in.connect.NewValue()
	if !isNew || in.provider == nil || in.closed {
		in.mu.Unlock()
		return
	}
	in.connect = state.Pending[string, *provider.CancelHandle, *net.TCPConn](nil)
	in.mu.Unlock()

	cancel := in.provider.AsyncConnect(addr, func(conn *net.TCPConn, err error) {
		in.mu.Lock()
		if err != nil {
			in.connect = state.Errored[string, *provider.CancelHandle, *net.TCPConn](WrapError("connect", err))
		} else {
			in.connect = state.Ready[string, *provider.CancelHandle, *net.TCPConn](conn)
			in.conn = conn
			in.local = conn.LocalAddr()
			in.peer = conn.RemoteAddr()
		}
		reg := in.registration
		obs := in.observer
		in.mu.Unlock()

		if obs != nil {
			obs.ObserveConnect(err == nil)
		}
		if err != nil {
			if reg != nil {
				reg.PushEvent(event.KindWriteError)
			}
			return
		}
		if reg != nil {
			reg.PushEvent(event.KindWritable)
		}
		s.scheduleRead()
		s.scheduleWrite()
	})

	in.mu.Lock()
	if in.connect.IsPending() {
		in.connect = state.Pending[string, *provider.CancelHandle, *net.TCPConn](cancel)
	}
	in.mu.Unlock()
}

// Reregister updates the stream's token/interest and re-announces any
// already-completed work the new interest might otherwise miss: a pending
// connect failure, buffered unread bytes, a read-side close, or idle
// writability.
func (s *TcpStream) Reregister(registry *Registry, token Token, interest Interest) error {
	in := s.inner
	in.mu.Lock()
	if in.registration == nil {
		in.mu.Unlock()
		return ErrNotRegistered
	}
	in.registration.ChangeDetails(token, interest)

	var kinds []event.Kind
	if in.connect.IsError() {
		kinds = append(kinds, event.KindWriteError)
	} else if in.connect.IsReady() && in.write.IsNew() && len(in.writeBuf) == 0 {
		kinds = append(kinds, event.KindWritable)
	}
	if res, ok := in.read.ReadyValue(); ok && len(res.data) > 0 {
		kinds = append(kinds, event.KindReadable)
	}
	if in.read.IsError() {
		kinds = append(kinds, event.KindReadError)
	}
	if in.readEOF {
		kinds = append(kinds, event.KindReadClosed)
	}
	reg := in.registration
	in.mu.Unlock()

	for _, k := range kinds {
		reg.PushEvent(k)
	}
	return nil
}

// Deregister detaches the stream from registry.
func (s *TcpStream) Deregister(registry *Registry) error {
	in := s.inner
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

// Close cancels any outstanding connect/read submission and closes the
// socket. A write already in flight, or still sitting in the internal
// buffer, is deliberately left alone: closing the socket underneath it
// would corrupt delivery of bytes the caller already handed to Write and
// got a success return for. The socket is closed once that last write
// finishes draining instead.
func (s *TcpStream) Close() error {
	in := s.inner
	in.mu.Lock()
	in.closed = true
	if p, ok := in.connect.PendingValue(); ok {
		p.Cancel()
	}
	if p, ok := in.read.PendingValue(); ok {
		p.Cancel()
	}
	writeOutstanding := in.write.IsPending() || len(in.writeBuf) > 0
	conn := in.conn
	if writeOutstanding {
		in.closeAfterWrite = true
		in.mu.Unlock()
		return nil
	}
	in.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
