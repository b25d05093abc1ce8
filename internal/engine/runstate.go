// internal/engine/runstate.go
package engine

import (
	"fmt"
	"sync"
	"time"
)

// Phase is the lifecycle position of a run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseFinished
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// RunState is the run lifecycle: Idle -> Running -> Finished | Stopped, and
// back to Running on the next Begin. Every transition happens under mu, so
// exactly one of Finish or RequestStop wins for a given run.
type RunState struct {
	mu    sync.Mutex
	phase Phase
	// wake is closed when the current run is stopped, releasing Sleep.
	wake chan struct{}
}

// NewRunState returns an idle state.
func NewRunState() *RunState {
	return &RunState{phase: PhaseIdle}
}

// Phase reports the current phase.
func (s *RunState) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Running is the cooperative checkpoint polled by the run loop.
func (s *RunState) Running() bool {
	return s.Phase() == PhaseRunning
}

// Begin enters Running. It returns false, changing nothing, if a run is
// already in progress.
func (s *RunState) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseRunning {
		return false
	}
	s.phase = PhaseRunning
	s.wake = make(chan struct{})
	return true
}

// RequestStop moves Running to Stopped. It returns false in any other phase.
func (s *RunState) RequestStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRunning {
		return false
	}
	s.phase = PhaseStopped
	close(s.wake)
	return true
}

// Finish ends the run and returns its terminal phase: Finished if it was
// still running, Stopped if a stop got there first.
func (s *RunState) Finish() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseRunning {
		s.phase = PhaseFinished
		close(s.wake)
	}
	return s.phase
}

// Sleep waits for d, returning early if the run is stopped. It reports
// whether the run is still going.
func (s *RunState) Sleep(d time.Duration) bool {
	s.mu.Lock()
	if s.phase != PhaseRunning {
		s.mu.Unlock()
		return false
	}
	wake := s.wake
	s.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return s.Running()
	case <-wake:
		return false
	}
}
