package schemas

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoTargets      = errors.New("run configuration has no targets")
	ErrInvalidDelay   = errors.New("delay must be positive")
	ErrInvalidRepeats = errors.New("repeat count must be at least 1")
)

// RepeatPolicy is either a finite number of repetitions or an infinite loop.
// The zero value is invalid; build one with Finite or Infinite.
type RepeatPolicy struct {
	infinite bool
	count    int
}

// Finite repeats the target list n times.
func Finite(n int) RepeatPolicy { return RepeatPolicy{count: n} }

// Infinite repeats the target list until stopped.
func Infinite() RepeatPolicy { return RepeatPolicy{infinite: true} }

func (p RepeatPolicy) IsInfinite() bool { return p.infinite }

// Count is the number of repetitions for a finite policy, 0 for an infinite one.
func (p RepeatPolicy) Count() int {
	if p.infinite {
		return 0
	}
	return p.count
}

// Allows reports whether repetition index i (0-based) may start.
func (p RepeatPolicy) Allows(i int) bool {
	return p.infinite || i < p.count
}

func (p RepeatPolicy) String() string {
	if p.infinite {
		return "infinite"
	}
	return fmt.Sprintf("%d", p.count)
}

// RunConfiguration is everything the engine needs for one run.
type RunConfiguration struct {
	Targets []Target
	Delay   time.Duration
	Repeat  RepeatPolicy
}

// Validate checks the configuration before a run is started.
func (c RunConfiguration) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTargets
	}
	if c.Delay <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidDelay, c.Delay)
	}
	if !c.Repeat.IsInfinite() && c.Repeat.Count() < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidRepeats, c.Repeat.Count())
	}
	return nil
}

// -- Run outcomes --

// RunOutcome is the terminal state of a run.
type RunOutcome string

const (
	OutcomeFinished RunOutcome = "finished"
	OutcomeStopped  RunOutcome = "stopped"
)

func (o RunOutcome) String() string { return string(o) }

// RunReport is published exactly once per started run.
type RunReport struct {
	RunID       string        `json:"runId"`
	Outcome     RunOutcome    `json:"outcome"`
	Attempted   int           `json:"attempted"`
	Failed      int           `json:"failed"`
	Repetitions int           `json:"repetitions"`
	Duration    time.Duration `json:"duration"`
}
