package schemas

import (
	"fmt"
	"strconv"
	"strings"
)

// -- Targets --

// Target is a single step of a run. It is either a SelectorTarget or a
// CoordinateTarget; the set is closed.
type Target interface {
	isTarget()
	String() string
}

// SelectorTarget clicks the first element matching Selector.
type SelectorTarget struct {
	Selector string `json:"selector"`
}

// CoordinateTarget clicks whatever is rendered at viewport position (X, Y).
type CoordinateTarget struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (SelectorTarget) isTarget()   {}
func (CoordinateTarget) isTarget() {}

func (t SelectorTarget) String() string   { return t.Selector }
func (t CoordinateTarget) String() string { return fmt.Sprintf("%d,%d", t.X, t.Y) }

// ParseTarget classifies one line of user input. Parsing never fails: a line
// is a coordinate only when splitting on the first comma leaves exactly two
// trimmed halves that are both complete base-10 integers. Everything else,
// including "1,2,3" and ".btn, primary", is kept verbatim as a selector.
func ParseTarget(line string) Target {
	line = strings.TrimSpace(line)
	left, right, found := strings.Cut(line, ",")
	if !found {
		return SelectorTarget{Selector: line}
	}

	x, errX := strconv.Atoi(strings.TrimSpace(left))
	y, errY := strconv.Atoi(strings.TrimSpace(right))
	if errX != nil || errY != nil {
		return SelectorTarget{Selector: line}
	}
	return CoordinateTarget{X: x, Y: y}
}

// ParseTargets splits a newline separated blob, drops blank lines and
// classifies the rest in order.
func ParseTargets(blob string) []Target {
	return ParseTargetLines(strings.Split(blob, "\n"))
}

// ParseTargetLines is ParseTargets for input that is already split.
func ParseTargetLines(lines []string) []Target {
	targets := make([]Target, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		targets = append(targets, ParseTarget(line))
	}
	return targets
}

// FormatTargets renders targets back into the newline separated form.
func FormatTargets(targets []Target) string {
	lines := make([]string, len(targets))
	for i, t := range targets {
		lines[i] = t.String()
	}
	return strings.Join(lines, "\n")
}
