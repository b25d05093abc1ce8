// internal/browser/session/context_utils.go
package session

import (
	"context"
)

// CombineContext returns a context derived from primary that is also cancelled
// when secondary is done. Values, including the chromedp target, come from
// primary; secondary usually carries the operation deadline. context.Cause on
// the result reports why secondary ended.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(primary)
	stop := context.AfterFunc(secondary, func() {
		cancel(context.Cause(secondary))
	})
	return combined, func() {
		stop()
		cancel(context.Canceled)
	}
}
