// Package initguard serializes one-time schema setup per schema variant.
//
// Each (variant, target) pair owns one Guard. The first caller to Run
// executes the setup routine; concurrent callers wait for its outcome; the
// outcome is memoized for the life of the process. A failed setup stays
// failed until the process restarts.
package initguard

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// State is the lifecycle state of one guard.
type State int

const (
	// Uninitialized means no caller has requested setup yet.
	Uninitialized State = iota

	// Initializing means one caller is running the setup routine.
	Initializing

	// Ready means setup completed; query handles may be constructed.
	Ready

	// Failed means setup returned an error. Terminal for this process.
	Failed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// allowedTransition reports whether a guard may move from one state to
// another. Ready and Failed are terminal.
func allowedTransition(from, to State) bool {
	switch from {
	case Uninitialized:
		return to == Initializing
	case Initializing:
		return to == Ready || to == Failed
	default:
		return false
	}
}

// Guard runs a setup routine at most once and memoizes the outcome.
// The zero value is not usable; create guards with New or For.
type Guard struct {
	name string

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

// New creates a guard in the Uninitialized state. name appears in logs
// and panics only.
func New(name string) *Guard {
	return &Guard{name: name, state: Uninitialized}
}

// Run executes setup exactly once across all callers of this guard.
//
// The first caller moves the guard to Initializing and runs setup to
// completion; setup receives a context detached from cancellation because
// a half-applied schema is worse than a slow one. Concurrent callers wait
// until the guard settles, or until their own context is done, in which
// case they return the context error without affecting the guard.
//
// Once settled, Run returns the memoized outcome: nil after Ready, the
// original setup error after Failed.
func (g *Guard) Run(ctx context.Context, setup func(context.Context) error) error {
	g.mu.Lock()
	switch g.state {
	case Ready:
		g.mu.Unlock()
		return nil
	case Failed:
		err := g.err
		g.mu.Unlock()
		return err
	case Initializing:
		done := g.done
		g.mu.Unlock()
		select {
		case <-done:
			return g.outcome()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.transition(Initializing)
	g.done = make(chan struct{})
	done := g.done
	g.mu.Unlock()
	log.Printf("[GUARD] %s: initializing", g.name)

	err := setup(context.WithoutCancel(ctx))

	g.mu.Lock()
	if err != nil {
		g.transition(Failed)
		g.err = err
		log.Printf("[GUARD] %s: failed: %v", g.name, err)
	} else {
		g.transition(Ready)
		log.Printf("[GUARD] %s: ready", g.name)
	}
	close(done)
	g.mu.Unlock()
	return err
}

// State returns the guard's current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Err returns the memoized setup error, or nil if the guard has not
// failed.
func (g *Guard) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// outcome reads the settled result on behalf of a woken waiter.
func (g *Guard) outcome() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Failed {
		return g.err
	}
	return nil
}

// transition moves the guard to the next state. The caller must hold mu.
func (g *Guard) transition(to State) {
	if !allowedTransition(g.state, to) {
		panic(fmt.Sprintf("initguard: guard %s: illegal transition %s -> %s", g.name, g.state, to))
	}
	g.state = to
}
