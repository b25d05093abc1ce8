// internal/browser/session/surface.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/browser/dom"
)

const (
	// PickerBinding is the page function the observers report through.
	PickerBinding = "clickseqPicker"
	// RefAttr tags elements the observers have reported.
	RefAttr = "data-clickseq-ref"
	// ToastID is the element id of the notification toast.
	ToastID = "clickseq-toast"

	eventBuffer = 64
)

// ErrNotAttached is returned by Resolve when no picking session is active.
var ErrNotAttached = errors.New("picker surface is not attached")

// PageSurface connects the picker to a live tab: it installs the page
// observers, forwards their reports, and marks elements.
type PageSurface struct {
	page   Page
	logger *zap.Logger

	mu        sync.Mutex
	events    chan schemas.PickerEvent
	bound     bool
	listening bool
}

// NewPageSurface creates a surface over page.
func NewPageSurface(page Page, logger *zap.Logger) *PageSurface {
	return &PageSurface{
		page:   page,
		logger: logger.Named("surface"),
	}
}

// Attach installs the observers and returns the channel their reports arrive
// on. The channel is closed by Detach.
func (s *PageSurface) Attach(ctx context.Context) (<-chan schemas.PickerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events != nil {
		return nil, errors.New("picker surface is already attached")
	}

	if !s.bound {
		if err := s.page.RunActions(ctx, runtime.AddBinding(PickerBinding)); err != nil {
			return nil, fmt.Errorf("failed to add picker binding: %w", err)
		}
		s.bound = true
	}
	if !s.listening {
		s.page.Listen(s.onEvent)
		s.listening = true
	}

	script, err := invoke(pickerInstallScript, map[string]string{"binding": PickerBinding, "refAttr": RefAttr})
	if err != nil {
		return nil, err
	}
	if err := s.page.ExecuteScript(ctx, script, nil); err != nil {
		return nil, fmt.Errorf("failed to install picker observers: %w", err)
	}

	s.events = make(chan schemas.PickerEvent, eventBuffer)
	s.logger.Debug("Picker observers installed.")
	return s.events, nil
}

// Detach removes the observers and closes the event channel. Detaching an
// unattached surface does nothing.
func (s *PageSurface) Detach(ctx context.Context) error {
	s.mu.Lock()
	if s.events == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.events)
	s.events = nil
	s.mu.Unlock()

	if err := s.page.ExecuteScript(ctx, pickerRemoveScript+"()", nil); err != nil {
		return fmt.Errorf("failed to remove picker observers: %w", err)
	}
	s.logger.Debug("Picker observers removed.")
	return nil
}

// Outline sets the outline of the element tagged ref. An empty style
// restores the element's own outline.
func (s *PageSurface) Outline(ctx context.Context, ref, style string) error {
	script, err := invoke(outlineScript, map[string]string{"refAttr": RefAttr, "ref": ref, "style": style})
	if err != nil {
		return err
	}
	var found bool
	if err := s.page.ExecuteScript(ctx, script, &found); err != nil {
		return fmt.Errorf("failed to outline element: %w", err)
	}
	if !found {
		s.logger.Debug("Outline target is gone.", zap.String("ref", ref))
	}
	return nil
}

// Notify shows text as a toast for d. A zero d keeps it on screen.
func (s *PageSurface) Notify(ctx context.Context, text string, d time.Duration) error {
	script, err := invoke(toastScript, struct {
		ID         string `json:"id"`
		Text       string `json:"text"`
		DurationMs int64  `json:"durationMs"`
	}{ToastID, text, millis(d)})
	if err != nil {
		return err
	}
	if err := s.page.ExecuteScript(ctx, script, nil); err != nil {
		return fmt.Errorf("failed to show toast: %w", err)
	}
	return nil
}

// Resolve snapshots the page and returns the snapshot together with the
// element tagged ref. The ref attributes are stripped from the snapshot.
func (s *PageSurface) Resolve(ctx context.Context, ref string) (*dom.Document, *html.Node, error) {
	s.mu.Lock()
	attached := s.events != nil
	s.mu.Unlock()
	if !attached {
		return nil, nil, ErrNotAttached
	}

	var markup string
	if err := s.page.ExecuteScript(ctx, snapshotScript+"()", &markup); err != nil {
		return nil, nil, fmt.Errorf("failed to snapshot page: %w", err)
	}

	doc, err := dom.ParseDocument(strings.NewReader(markup))
	if err != nil {
		return nil, nil, err
	}
	node, err := doc.FindByAttr(RefAttr, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("picked element %q not in snapshot: %w", ref, err)
	}
	doc.RemoveAttr(RefAttr)
	return doc, node, nil
}

// onEvent runs on the chromedp event goroutine and must not block.
func (s *PageSurface) onEvent(ev interface{}) {
	called, ok := ev.(*runtime.EventBindingCalled)
	if !ok || called.Name != PickerBinding {
		return
	}
	s.Deliver(called.Payload)
}

// Deliver decodes one observer report and forwards it if attached.
func (s *PageSurface) Deliver(payload string) {
	var pe schemas.PickerEvent
	if err := json.Unmarshal([]byte(payload), &pe); err != nil {
		s.logger.Warn("Malformed picker report.", zap.String("payload", payload), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events == nil {
		return
	}
	select {
	case s.events <- pe:
	default:
		s.logger.Debug("Picker event buffer full, dropping report.", zap.String("kind", string(pe.Kind)))
	}
}
