// Package integration exercises sgxnet's public API against real TCP
// sockets end to end, the way a caller actually uses Registry/TcpListener/
// TcpStream/Waker together rather than unit-testing each in isolation.
package integration

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/sgxnet"
)

func waitForEvents(t *testing.T, r *sgxnet.Registry, events *sgxnet.Events, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = 0
		}
		require.NoError(t, r.Poll(events, &remaining))
		if events.Len() > 0 {
			return
		}
	}
}

func TestAcceptLiveness(t *testing.T) {
	ln, err := sgxnet.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	r := sgxnet.NewRegistry(sgxnet.DefaultConfig())
	require.NoError(t, r.Register(ln, sgxnet.Token(1), sgxnet.Readable, sgxnet.ModeEdge))

	client, err := net.Dial("tcp", ln.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	events := sgxnet.NewEvents(4)
	waitForEvents(t, r, events, 2*time.Second)
	require.Equal(t, 1, events.Len())
	assert.True(t, events.Get(0).IsReadable())

	stream, _, err := ln.Accept()
	require.NoError(t, err)
	defer stream.Close()
}

func TestMetricsObserverRecordsAcceptConnectReadWrite(t *testing.T) {
	ln, err := sgxnet.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	metrics := sgxnet.NewMetrics()
	serverRegistry := sgxnet.NewRegistry(sgxnet.Config{Observer: sgxnet.NewMetricsObserver(metrics)})
	require.NoError(t, serverRegistry.Register(ln, sgxnet.Token(1), sgxnet.Readable, sgxnet.ModeEdge))

	clientRegistry := sgxnet.NewRegistry(sgxnet.Config{Observer: sgxnet.NewMetricsObserver(metrics)})
	client, err := sgxnet.Connect(ln.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, clientRegistry.Register(client, sgxnet.Token(2), sgxnet.Readable|sgxnet.Writable, sgxnet.ModeEdge))

	serverEvents := sgxnet.NewEvents(4)
	waitForEvents(t, serverRegistry, serverEvents, 2*time.Second)
	require.Equal(t, 1, serverEvents.Len())

	server, _, err := ln.Accept()
	require.NoError(t, err)
	defer server.Close()
	require.NoError(t, serverRegistry.Register(server, sgxnet.Token(3), sgxnet.Readable|sgxnet.Writable, sgxnet.ModeEdge))

	clientEvents := sgxnet.NewEvents(4)
	waitForEvents(t, clientRegistry, clientEvents, 2*time.Second)

	n, werr := client.Write([]byte("hello"))
	require.NoError(t, werr)
	require.Equal(t, 5, n)

	deadline := time.Now().Add(2 * time.Second)
	buf := make([]byte, 64)
	read := 0
	for read == 0 && time.Now().Before(deadline) {
		timeout := 200 * time.Millisecond
		_ = serverRegistry.Poll(serverEvents, &timeout)
		rn, rerr := server.Read(buf)
		if rn > 0 {
			read = rn
		}
		_ = rerr
	}
	require.Equal(t, 5, read)
	assert.Equal(t, "hello", string(buf[:read]))

	snap := metrics.Snapshot()
	assert.GreaterOrEqual(t, snap.AcceptOps, uint64(1))
	assert.GreaterOrEqual(t, snap.ConnectOps, uint64(1))
	assert.GreaterOrEqual(t, snap.ReadOps, uint64(1))
	assert.GreaterOrEqual(t, snap.WriteOps, uint64(1))
	assert.GreaterOrEqual(t, snap.WriteBytes, uint64(5))
	assert.Equal(t, uint64(0), snap.AcceptErrors)
	assert.Equal(t, uint64(0), snap.ConnectErrors)
}

func TestBindTwiceOnSamePortFails(t *testing.T) {
	ln, err := sgxnet.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = sgxnet.ListenTCP(ln.LocalAddr().String())
	assert.Error(t, err)
}

func TestBulkWriteThenReadThroughInternalBuffer(t *testing.T) {
	ln, err := sgxnet.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverRegistry := sgxnet.NewRegistry(sgxnet.DefaultConfig())
	require.NoError(t, serverRegistry.Register(ln, sgxnet.Token(1), sgxnet.Readable, sgxnet.ModeEdge))

	clientRegistry := sgxnet.NewRegistry(sgxnet.DefaultConfig())
	client, err := sgxnet.Connect(ln.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, clientRegistry.Register(client, sgxnet.Token(2), sgxnet.Readable|sgxnet.Writable, sgxnet.ModeEdge))

	serverEvents := sgxnet.NewEvents(4)
	waitForEvents(t, serverRegistry, serverEvents, 2*time.Second)
	require.Equal(t, 1, serverEvents.Len())

	server, _, err := ln.Accept()
	require.NoError(t, err)
	defer server.Close()
	require.NoError(t, serverRegistry.Register(server, sgxnet.Token(3), sgxnet.Readable|sgxnet.Writable, sgxnet.ModeEdge))

	const total = 1 << 20 // 1 MiB, larger than the 16 KiB internal write buffer
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i)
	}

	sent := 0
	go func() {
		for sent < total {
			n, werr := client.Write(payload[sent:])
			if werr == nil {
				sent += n
				continue
			}
			if werr == sgxnet.ErrWouldBlock {
				clientEvents := sgxnet.NewEvents(4)
				timeout := 100 * time.Millisecond
				_ = clientRegistry.Poll(clientEvents, &timeout)
				continue
			}
			return
		}
	}()

	received := make([]byte, 0, total)
	deadline := time.Now().Add(10 * time.Second)
	buf := make([]byte, 64*1024)
	for len(received) < total && time.Now().Before(deadline) {
		timeout := 200 * time.Millisecond
		_ = serverRegistry.Poll(serverEvents, &timeout)
		for {
			n, rerr := server.Read(buf)
			if n > 0 {
				received = append(received, buf[:n]...)
			}
			if rerr != nil || n == 0 {
				break
			}
		}
	}

	require.Equal(t, total, len(received))
	assert.Equal(t, payload, received)
}

func TestWakerWakesBlockedPollWithNoSpuriousRedelivery(t *testing.T) {
	r := sgxnet.NewRegistry(sgxnet.DefaultConfig())
	w := sgxnet.NewWaker(r, sgxnet.Token(42))
	defer w.Close()

	events := sgxnet.NewEvents(4)
	done := make(chan struct{})
	go func() {
		_ = r.Poll(events, nil)
		close(done)
	}()

	start := time.Now()
	time.Sleep(10 * time.Millisecond)
	w.Wake()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waker did not interrupt blocked poll within 1s")
	}
	assert.Less(t, time.Since(start), time.Second)
	require.Equal(t, 1, events.Len())

	// A second, timed-out poll with no further Wake call must see nothing.
	zero := time.Duration(0)
	require.NoError(t, r.Poll(events, &zero))
	assert.Equal(t, 0, events.Len())
}

func TestInterestChangeReannouncesCurrentState(t *testing.T) {
	ln, err := sgxnet.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	r := sgxnet.NewRegistry(sgxnet.DefaultConfig())
	// Register with no matching interest so the first accept's Readable
	// event is filtered out.
	require.NoError(t, r.Register(ln, sgxnet.Token(1), sgxnet.Writable, sgxnet.ModeEdge))

	client, err := net.Dial("tcp", ln.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	time.Sleep(100 * time.Millisecond)
	events := sgxnet.NewEvents(4)
	zero := time.Duration(0)
	require.NoError(t, r.Poll(events, &zero))
	assert.Equal(t, 0, events.Len(), "accept completion should have been filtered out")

	require.NoError(t, r.Reregister(ln, sgxnet.Token(1), sgxnet.Readable))
	waitForEvents(t, r, events, 2*time.Second)
	require.Equal(t, 1, events.Len())
	assert.True(t, events.Get(0).IsReadable())

	stream, _, err := ln.Accept()
	require.NoError(t, err)
	defer stream.Close()
}
