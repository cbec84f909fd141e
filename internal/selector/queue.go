package selector

import (
	"sync"

	"github.com/ehrlich-b/sgxnet/internal/event"
)

// eventQueue is the selector's event channel: a growable FIFO fed by
// completion callbacks (push, called from any goroutine) and drained only
// by Select (drain, never blocking). It stands in for the spec's
// "unbounded multi-producer multi-consumer channel" — Go has no literal
// unbounded channel type, so a mutex-guarded slice gives the same FIFO,
// at-most-once-delivery semantics without an artificial capacity limit.
type eventQueue struct {
	mu  sync.Mutex
	buf []event.Pending
}

func (q *eventQueue) push(p event.Pending) {
	q.mu.Lock()
	q.buf = append(q.buf, p)
	q.mu.Unlock()
}

func (q *eventQueue) nonEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) > 0
}

// drain calls consume for each queued item in FIFO order. consume returns
// true to have the item removed from the queue (whether or not it was
// actually delivered to the caller), or false to stop: the current item
// and everything after it is left queued for the next drain.
func (q *eventQueue) drain(consume func(event.Pending) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := 0
	for ; i < len(q.buf); i++ {
		if !consume(q.buf[i]) {
			break
		}
	}
	if i == 0 {
		return
	}
	remaining := copy(q.buf, q.buf[i:])
	q.buf = q.buf[:remaining]
}
