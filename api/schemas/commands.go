package schemas

import (
	"fmt"
	"time"
)

// -- Control Protocol --

// CommandAction names an inbound request.
type CommandAction string

const (
	ActionStartClicking CommandAction = "start_clicking"
	ActionStopClicking  CommandAction = "stop_clicking"
	ActionStartPicking  CommandAction = "start_picking"
)

// DefaultDelay applies when a start command carries no usable delay.
const DefaultDelay = 1000 * time.Millisecond

// Command is one inbound control message.
type Command struct {
	Action    CommandAction `json:"action"`
	Selectors []string      `json:"selectors,omitempty"`
	DelayMs   int           `json:"delay,omitempty"`
	Loop      bool          `json:"loop,omitempty"`
	Repeats   int           `json:"repeats,omitempty"`
	Smart     bool          `json:"smart,omitempty"`
}

// RunConfiguration converts a start command. Non-positive delay and repeat
// values fall back to the defaults before validation.
func (c Command) RunConfiguration() (RunConfiguration, error) {
	if c.Action != ActionStartClicking {
		return RunConfiguration{}, fmt.Errorf("command %q does not start a run", c.Action)
	}

	delay := DefaultDelay
	if c.DelayMs > 0 {
		delay = time.Duration(c.DelayMs) * time.Millisecond
	}

	repeat := Finite(1)
	switch {
	case c.Loop:
		repeat = Infinite()
	case c.Repeats > 0:
		repeat = Finite(c.Repeats)
	}

	cfg := RunConfiguration{
		Targets: ParseTargetLines(c.Selectors),
		Delay:   delay,
		Repeat:  repeat,
	}
	if err := cfg.Validate(); err != nil {
		return RunConfiguration{}, err
	}
	return cfg, nil
}

// EventAction names an outbound notification.
type EventAction string

const (
	EventClickingFinished EventAction = "clicking_finished"
	EventClickingStopped  EventAction = "clicking_stopped"
	EventSelectorPicked   EventAction = "selector_picked"
	EventPickCancelled    EventAction = "pick_cancelled"
	EventError            EventAction = "error"
)

// Event is one outbound notification.
type Event struct {
	Action   EventAction `json:"action"`
	RunID    string      `json:"runId,omitempty"`
	Selector string      `json:"selector,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// EventForOutcome maps a terminal run outcome to its notification.
func EventForOutcome(report RunReport) Event {
	action := EventClickingStopped
	if report.Outcome == OutcomeFinished {
		action = EventClickingFinished
	}
	return Event{Action: action, RunID: report.RunID}
}

// PickResult is published when a pick ends. Selector is empty when cancelled.
type PickResult struct {
	Selector  string   `json:"selector,omitempty"`
	Mode      PickMode `json:"mode"`
	Cancelled bool     `json:"cancelled"`
}
