// Package activity serializes the two things that take over a page: a click
// run and an element pick. At most one of them is active at a time.
package activity

import (
	"errors"
	"fmt"
	"sync"
)

// Kind identifies who holds the page.
type Kind int

const (
	None Kind = iota
	Run
	Pick
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Run:
		return "run"
	case Pick:
		return "pick"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ErrBusy is returned when a different activity already holds the page.
var ErrBusy = errors.New("another activity is in progress")

// Guard is the process-wide activity lock. The zero value is ready to use.
type Guard struct {
	mu     sync.Mutex
	holder Kind
}

// Acquire takes the page for k. It fails with ErrBusy when another kind holds
// it, and returns (false, nil) when k already holds it.
func (g *Guard) Acquire(k Kind) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.holder {
	case None:
		g.holder = k
		return true, nil
	case k:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s is active", ErrBusy, g.holder)
	}
}

// Release gives the page back if k holds it.
func (g *Guard) Release(k Kind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder == k {
		g.holder = None
	}
}

// Holder reports the current holder.
func (g *Guard) Holder() Kind {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder
}
