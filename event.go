package sgxnet

import "github.com/ehrlich-b/sgxnet/internal/event"

// Token is an opaque application-chosen identifier copied into every event
// delivered for a source.
type Token = event.Token

// Interest is a bit set of the directions ({Readable, Writable}) an
// application wants readiness edges for.
type Interest = event.Interest

const (
	Readable Interest = event.Readable
	Writable Interest = event.Writable
)

// Event is a single readiness delivery: a completion kind paired with the
// token its source was last (re)registered with.
type Event struct {
	Token Token
	kind  event.Kind
}

func (e Event) IsReadable() bool    { return e.kind == event.KindReadable }
func (e Event) IsReadClosed() bool  { return e.kind == event.KindReadClosed }
func (e Event) IsReadError() bool   { return e.kind == event.KindReadError }
func (e Event) IsWritable() bool    { return e.kind == event.KindWritable }
func (e Event) IsWriteClosed() bool { return e.kind == event.KindWriteClosed }
func (e Event) IsWriteError() bool  { return e.kind == event.KindWriteError }

// IsPriority, IsAio, and IsLio exist for cross-platform interface parity
// with host implementations that model priority/AIO/LIO readiness; none of
// them is meaningful in this environment and all are always false.
func (e Event) IsPriority() bool { return false }
func (e Event) IsAio() bool      { return false }
func (e Event) IsLio() bool      { return false }
