package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/sgxnet/internal/event"
)

func TestRegistration_ChangeDetailsReportsChange(t *testing.T) {
	sel := New(Options{})
	reg := sel.Register(event.Token(1), event.Readable)

	assert.False(t, reg.ChangeDetails(event.Token(1), event.Readable), "idempotent update reports no change")
	assert.True(t, reg.ChangeDetails(event.Token(2), event.Readable), "token change reported")
	assert.True(t, reg.ChangeDetails(event.Token(2), event.Writable), "interest change reported")
	assert.False(t, reg.ChangeDetails(event.Token(2), event.Writable), "now idempotent again")
}

func TestRegistration_UniqueIDs(t *testing.T) {
	sel := New(Options{})
	a := sel.Register(event.Token(1), event.Readable)
	b := sel.Register(event.Token(1), event.Readable)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestRegistration_CloseRemovesEntry(t *testing.T) {
	sel := New(Options{})
	reg := sel.Register(event.Token(1), event.Readable)
	reg.Close()

	reg.PushEvent(event.KindReadable) // should be a no-op now

	events := NewEvents(4)
	zero := time.Duration(0)
	sel.Select(events, &zero)
	require.Equal(t, 0, events.Len())
}

func TestRegistration_PushEventRequiresMatchingInterest(t *testing.T) {
	sel := New(Options{})
	reg := sel.Register(event.Token(1), event.Readable)

	reg.PushEvent(event.KindWritable) // not in interest
	events := NewEvents(4)
	zero := time.Duration(0)
	sel.Select(events, &zero)
	assert.Equal(t, 0, events.Len())
}
