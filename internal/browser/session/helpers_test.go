// internal/browser/session/helpers_test.go
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
)

// fakePage records scripts and answers them with canned JSON. A reply is
// chosen by the first key contained in the script.
type fakePage struct {
	mu       sync.Mutex
	scripts  []string
	actions  int
	replies  map[string]string
	err      error
	listener func(ev interface{})
}

func newFakePage() *fakePage {
	return &fakePage{replies: map[string]string{}}
}

func (f *fakePage) reply(contains, result string) *fakePage {
	f.replies[contains] = result
	return f
}

func (f *fakePage) ExecuteScript(_ context.Context, script string, res interface{}) error {
	f.mu.Lock()
	f.scripts = append(f.scripts, script)
	f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if res == nil {
		return nil
	}
	for key, result := range f.replies {
		if strings.Contains(script, key) {
			return json.Unmarshal([]byte(result), res)
		}
	}
	return json.Unmarshal([]byte("null"), res)
}

func (f *fakePage) RunActions(_ context.Context, actions ...chromedp.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions += len(actions)
	return f.err
}

func (f *fakePage) Listen(fn func(ev interface{})) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = fn
}

func (f *fakePage) lastScript() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scripts) == 0 {
		return ""
	}
	return f.scripts[len(f.scripts)-1]
}

// scriptArg extracts the JSON argument of an invoked script.
func scriptArg(script string) map[string]interface{} {
	i := strings.LastIndex(script, ")(")
	if i < 0 {
		return nil
	}
	var arg map[string]interface{}
	if err := json.Unmarshal([]byte(script[i+2:len(script)-1]), &arg); err != nil {
		return nil
	}
	return arg
}
