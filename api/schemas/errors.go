package schemas

import "errors"

// Step failure taxonomy shared by the executors and the engine.
var (
	// ErrTargetNotFound means a selector matched nothing (or failed to parse in the page).
	ErrTargetNotFound = errors.New("no element matches selector")
	// ErrNoElementAtPoint means hit-testing the viewport coordinate returned nothing.
	ErrNoElementAtPoint = errors.New("no element at point")
	// ErrDispatch means the element was found but the synthetic events could not be delivered.
	ErrDispatch = errors.New("event dispatch failed")
)

// IsLookupFailure reports whether err means the step had nothing to click.
func IsLookupFailure(err error) bool {
	return errors.Is(err, ErrTargetNotFound) || errors.Is(err, ErrNoElementAtPoint)
}
