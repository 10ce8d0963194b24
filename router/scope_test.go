package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_CloseRunsReleaseOnce(t *testing.T) {
	calls := 0
	s := NewScope("x", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, calls)
}

func TestScope_ClosePropagatesReleaseFailure(t *testing.T) {
	boom := errors.New("boom")
	s := NewScope("x", func(context.Context) error { return boom })

	require.ErrorIs(t, s.Close(), boom)
	// the failure is reported once, not masked and not repeated
	require.NoError(t, s.Close())
}

func TestScope_NoOpScope(t *testing.T) {
	s := NewScope("noop", nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestScope_ReleaseRunsOnPanic(t *testing.T) {
	released := false

	func() {
		defer func() {
			require.NotNil(t, recover())
		}()

		s := NewScope("x", func(context.Context) error {
			released = true
			return nil
		})
		defer s.Close()

		panic("scope body failed")
	}()

	assert.True(t, released)
}

func TestScope_ReleaseGetsFreshContext(t *testing.T) {
	// even when the scope body's context is long dead, the release runs
	// under a live deadline of its own
	var releaseCtxErr error
	s := NewScope("x", func(ctx context.Context) error {
		releaseCtxErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	<-ctx.Done()

	require.NoError(t, s.Close())
	assert.NoError(t, releaseCtxErr)
}

func TestScopeStack_ReverseOrder(t *testing.T) {
	var order []string
	stack := &ScopeStack{}
	for _, name := range []string{"a", "b", "c"} {
		name := name
		stack.Push(NewScope(name, func(context.Context) error {
			order = append(order, name)
			return nil
		}))
	}

	require.NoError(t, stack.Close())
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestScopeStack_FailureIsolation(t *testing.T) {
	boomB := errors.New("b failed")
	var order []string
	stack := &ScopeStack{}

	stack.Push(NewScope("a", func(context.Context) error {
		order = append(order, "a")
		return nil
	}))
	stack.Push(NewScope("b", func(context.Context) error {
		order = append(order, "b")
		return boomB
	}))
	stack.Push(NewScope("c", func(context.Context) error {
		order = append(order, "c")
		return nil
	}))

	err := stack.Close()
	require.ErrorIs(t, err, boomB)
	// one failed release never blocks the others
	assert.Equal(t, []string{"c", "b", "a"}, order)

	// idempotent, everything already released
	require.NoError(t, stack.Close())
}
