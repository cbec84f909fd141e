package sgxnet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterRejectsDoubleRegistration(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	src := NewFakeProvider()

	require.NoError(t, r.Register(src, Token(1), Readable, ModeEdge))
	err := r.Register(src, Token(1), Readable, ModeEdge)

	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeAlreadyRegistered))
}

func TestRegistry_RegisterRejectsUnsupportedPollMode(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	src := NewFakeProvider()

	err := r.Register(src, Token(1), Readable, ModeOneshot)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeUnsupportedMode))
	assert.False(t, src.Registered())

	err = r.Register(src, Token(1), Readable, ModeLevelTriggered)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeUnsupportedMode))
}

func TestRegistry_ReregisterWithoutRegisterFails(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	src := NewFakeProvider()

	err := r.Reregister(src, Token(1), Readable)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeNotRegistered))
}

func TestRegistry_DeregisterWithoutRegisterFails(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	src := NewFakeProvider()

	err := r.Deregister(src)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeNotRegistered))
}

func TestRegistry_ReregisterIsIdempotent(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	src := NewFakeProvider()
	require.NoError(t, r.Register(src, Token(1), Readable, ModeEdge))

	require.NoError(t, r.Reregister(src, Token(1), Readable))
	require.NoError(t, r.Reregister(src, Token(2), Readable|Writable))
	assert.Equal(t, 2, src.ReregisterCalls())
}

func TestRegistry_PollDeliversPushedEvent(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	src := NewFakeProvider()
	require.NoError(t, r.Register(src, Token(5), Readable, ModeEdge))

	src.PushReadable()

	events := NewEvents(8)
	zero := time.Duration(0)
	require.NoError(t, r.Poll(events, &zero))

	require.Equal(t, 1, events.Len())
	got := events.Get(0)
	assert.Equal(t, Token(5), got.Token)
	assert.True(t, got.IsReadable())
	assert.False(t, got.IsPriority())
	assert.False(t, got.IsAio())
	assert.False(t, got.IsLio())
}

func TestRegistry_PollFiltersByInterest(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	src := NewFakeProvider()
	require.NoError(t, r.Register(src, Token(1), Writable, ModeEdge))

	src.PushReadable() // not in interest

	events := NewEvents(8)
	zero := time.Duration(0)
	require.NoError(t, r.Poll(events, &zero))
	assert.Equal(t, 0, events.Len())
}

func TestRegistry_ErrorEventBypassesInterest(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	src := NewFakeProvider()
	require.NoError(t, r.Register(src, Token(1), Writable, ModeEdge))

	src.PushReadError()

	events := NewEvents(8)
	zero := time.Duration(0)
	require.NoError(t, r.Poll(events, &zero))
	require.Equal(t, 1, events.Len())
	assert.True(t, events.Get(0).IsReadError())
}

func TestRegistry_DeregisterSilencesFurtherEvents(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	src := NewFakeProvider()
	require.NoError(t, r.Register(src, Token(1), Readable, ModeEdge))
	require.NoError(t, r.Deregister(src))

	src.PushReadable() // no-op, no live registration

	events := NewEvents(8)
	zero := time.Duration(0)
	require.NoError(t, r.Poll(events, &zero))
	assert.Equal(t, 0, events.Len())
}

func TestRegistry_TryCloneSharesState(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	clone := r.TryClone()
	src := NewFakeProvider()
	require.NoError(t, r.Register(src, Token(9), Readable, ModeEdge))

	src.PushReadable()

	events := NewEvents(4)
	zero := time.Duration(0)
	require.NoError(t, clone.Poll(events, &zero))
	require.Equal(t, 1, events.Len())
}
