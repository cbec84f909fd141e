package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCancel struct {
	called bool
}

func (f *fakeCancel) Cancel() { f.called = true }

type triple = State[string, *fakeCancel, int]

func TestState_Variants(t *testing.T) {
	n := New[string, *fakeCancel, int]("addr")
	require.True(t, n.IsNew())
	v, ok := n.NewValue()
	require.True(t, ok)
	assert.Equal(t, "addr", v)

	c := &fakeCancel{}
	p := Pending[string, *fakeCancel, int](c)
	require.True(t, p.IsPending())
	pv, ok := p.PendingValue()
	require.True(t, ok)
	assert.Same(t, c, pv)

	r := Ready[string, *fakeCancel, int](7)
	require.True(t, r.IsReady())
	rv, ok := r.ReadyValue()
	require.True(t, ok)
	assert.Equal(t, 7, rv)

	errVal := errors.New("boom")
	e := Errored[string, *fakeCancel, int](errVal)
	require.True(t, e.IsError())
	ev, ok := e.ErrorValue()
	require.True(t, ok)
	assert.Equal(t, errVal, ev)
}

func TestState_TakeError(t *testing.T) {
	errVal := errors.New("boom")
	s := Errored[string, *fakeCancel, int](errVal)

	replacement := New[string, *fakeCancel, int]("addr")
	got := s.TakeError(replacement)

	assert.Equal(t, errVal, got)
	assert.True(t, s.IsNew())

	// Taking again on a non-error state returns nil and leaves state intact.
	got2 := s.TakeError(Pending[string, *fakeCancel, int](&fakeCancel{}))
	assert.Nil(t, got2)
	assert.True(t, s.IsNew(), "non-error state must not be replaced by TakeError")
}

func TestState_CancelOnlyAffectsPending(t *testing.T) {
	c := &fakeCancel{}
	p := Pending[string, *fakeCancel, int](c)
	p.Cancel()
	assert.True(t, c.called)

	c2 := &fakeCancel{}
	n := New[string, *fakeCancel, int]("x")
	n.Cancel() // would dereference a nil *fakeCancel if New forwarded Cancel
	// Cancel on New is only meaningful through the Pending variant; a New
	// state has no cancel handle to invoke.
	assert.False(t, c2.called)
}
