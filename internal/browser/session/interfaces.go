// internal/browser/session/interfaces.go
package session

import (
	"context"

	"github.com/chromedp/chromedp"
)

// ActionExecutor runs chromedp actions against the live tab. Implementations
// combine ctx with the long-lived session context so the actions carry the
// CDP target.
type ActionExecutor interface {
	RunActions(ctx context.Context, actions ...chromedp.Action) error
}

// ScriptRunner evaluates a script in the current document and unmarshals the
// result into res. A nil res discards the result.
type ScriptRunner interface {
	ExecuteScript(ctx context.Context, script string, res interface{}) error
}

// Page is everything the picker surface needs from a tab.
type Page interface {
	ActionExecutor
	ScriptRunner
	// Listen registers fn for every CDP event of the tab, for the life of
	// the session.
	Listen(fn func(ev interface{}))
}
