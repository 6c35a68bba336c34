package initguard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExecutesSetupExactlyOnce(t *testing.T) {
	g := New("test@once")

	var calls atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Run(context.Background(), func(context.Context) error {
				calls.Add(1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Ready, g.State())
}

func TestRunMemoizesFailure(t *testing.T) {
	g := New("test@failure")
	setupErr := errors.New("ddl exploded")

	var calls atomic.Int32
	run := func() error {
		return g.Run(context.Background(), func(context.Context) error {
			calls.Add(1)
			return setupErr
		})
	}

	err := run()
	require.ErrorIs(t, err, setupErr)
	require.Equal(t, Failed, g.State())

	// Later callers get the same memoized error without re-running setup.
	err = run()
	require.ErrorIs(t, err, setupErr)
	assert.Equal(t, int32(1), calls.Load())
	assert.Same(t, setupErr, g.Err())
}

func TestWaitersObserveTheSettledOutcome(t *testing.T) {
	g := New("test@waiters")

	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = g.Run(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	require.Equal(t, Initializing, g.State())

	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			results <- g.Run(context.Background(), func(context.Context) error {
				t.Error("setup ran in a waiter")
				return nil
			})
		}()
	}

	close(release)
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-results)
	}
	assert.Equal(t, Ready, g.State())
}

func TestWaiterHonorsItsOwnContext(t *testing.T) {
	g := New("test@waiter-ctx")

	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = g.Run(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Run(ctx, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.Canceled)

	// Abandoning the wait must not disturb the running setup.
	close(release)
	require.NoError(t, g.Run(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, Ready, g.State())
}

func TestSetupIgnoresCallerCancellation(t *testing.T) {
	g := New("test@detached")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.Run(ctx, func(setupCtx context.Context) error {
		// The setup context is detached from the caller's cancellation.
		return setupCtx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, Ready, g.State())
}

func TestForReturnsOneGuardPerVariantAndTarget(t *testing.T) {
	a := For("base", "sqlite:/tmp/for-test.db")
	b := For("base", "sqlite:/tmp/for-test.db")
	c := For("extended", "sqlite:/tmp/for-test.db")
	d := For("base", "sqlite:/tmp/other.db")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.NotSame(t, a, d)
}

func TestPeekDoesNotCreateGuards(t *testing.T) {
	assert.Equal(t, Uninitialized, Peek("never-opened", "nowhere"))

	registryMu.Lock()
	_, exists := guards[guardKey{variant: "never-opened", target: "nowhere"}]
	registryMu.Unlock()
	assert.False(t, exists)
}

func TestAllowedTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{Uninitialized, Initializing, true},
		{Initializing, Ready, true},
		{Initializing, Failed, true},
		{Uninitialized, Ready, false},
		{Ready, Initializing, false},
		{Failed, Initializing, false},
		{Ready, Failed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, allowedTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "initializing", Initializing.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "failed", Failed.String())
}
