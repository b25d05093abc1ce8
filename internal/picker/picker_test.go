package picker

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/activity"
	"github.com/xkilldash9x/clickseq/internal/browser/dom"
	"github.com/xkilldash9x/clickseq/internal/config"
	"github.com/xkilldash9x/clickseq/internal/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const pickerPage = `<html><body>
<form><input name="email"><button id="submit">Go</button></form>
<ul><li>a</li><li>b</li></ul>
</body></html>`

// -- Fakes --

type outlineCall struct {
	ref, style string
}

// fakeSurface treats refs as CSS selectors into pickerPage.
type fakeSurface struct {
	mu         sync.Mutex
	reports    chan schemas.PickerEvent
	attachErr  error
	resolveErr error
	attaches   int
	detaches   int
	outlines   []outlineCall
	toasts     []string
}

func (f *fakeSurface) Attach(context.Context) (<-chan schemas.PickerEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	f.attaches++
	f.reports = make(chan schemas.PickerEvent, 8)
	return f.reports, nil
}

func (f *fakeSurface) Detach(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reports != nil {
		close(f.reports)
		f.reports = nil
	}
	f.detaches++
	return nil
}

func (f *fakeSurface) Outline(_ context.Context, ref, style string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outlines = append(f.outlines, outlineCall{ref, style})
	return nil
}

func (f *fakeSurface) Notify(_ context.Context, text string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, text)
	return nil
}

func (f *fakeSurface) Resolve(_ context.Context, ref string) (*dom.Document, *html.Node, error) {
	if f.resolveErr != nil {
		return nil, nil, f.resolveErr
	}
	doc, err := dom.ParseDocument(strings.NewReader(pickerPage))
	if err != nil {
		return nil, nil, err
	}
	node, err := doc.FindFirst(ref)
	return doc, node, err
}

func (f *fakeSurface) send(ev schemas.PickerEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reports != nil {
		f.reports <- ev
	}
}

func (f *fakeSurface) snapshot() (attaches, detaches int, outlines []outlineCall, toasts []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attaches, f.detaches, append([]outlineCall(nil), f.outlines...), append([]string(nil), f.toasts...)
}

type fakeSink struct {
	mu        sync.Mutex
	selectors []string
	err       error
}

func (s *fakeSink) AppendSelector(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectors = append(s.selectors, selector)
	return s.err
}

func (s *fakeSink) saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selectors...)
}

type resultPublisher struct {
	ch chan schemas.PickResult
}

func (p *resultPublisher) Post(_ context.Context, msgType events.MessageType, payload interface{}) error {
	if msgType == events.TypePickResult {
		p.ch <- payload.(schemas.PickResult)
	}
	return nil
}

func (p *resultPublisher) await(t *testing.T) schemas.PickResult {
	t.Helper()
	select {
	case r := <-p.ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pick result")
		return schemas.PickResult{}
	}
}

type harness struct {
	picker    *Picker
	surface   *fakeSurface
	sink      *fakeSink
	publisher *resultPublisher
	guard     *activity.Guard
}

func testPickerConfig() config.PickerConfig {
	return config.PickerConfig{
		OutlineStyle:        "2px dashed #f39c12",
		CancelKey:           "Escape",
		SavedToastDuration:  2 * time.Second,
		CancelToastDuration: time.Second,
	}
}

func newHarness(t *testing.T, cfg config.PickerConfig) *harness {
	t.Helper()
	h := &harness{
		surface:   &fakeSurface{},
		sink:      &fakeSink{},
		publisher: &resultPublisher{ch: make(chan schemas.PickResult, 4)},
		guard:     &activity.Guard{},
	}
	p, err := New(cfg, h.surface, h.sink, h.publisher, h.guard, zaptest.NewLogger(t))
	require.NoError(t, err)
	h.picker = p
	t.Cleanup(func() {
		p.Cancel(context.Background())
		p.Wait()
	})
	return h
}

// -- Tests --

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(testPickerConfig(), nil, &fakeSink{}, &resultPublisher{}, &activity.Guard{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestStart(t *testing.T) {
	h := newHarness(t, testPickerConfig())

	require.NoError(t, h.picker.Start(context.Background(), schemas.ModeSmart))
	assert.Equal(t, StatePicking, h.picker.State())
	assert.Equal(t, activity.Pick, h.guard.Holder())

	require.NoError(t, h.picker.Start(context.Background(), schemas.ModeSimple), "start while picking is a no-op")

	attaches, _, _, toasts := h.surface.snapshot()
	assert.Equal(t, 1, attaches)
	assert.Equal(t, []string{"Picker Active (Smart). Click element. ESC to cancel."}, toasts)
}

func TestStart_BlockedByRun(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	_, err := h.guard.Acquire(activity.Run)
	require.NoError(t, err)

	err = h.picker.Start(context.Background(), schemas.ModeSmart)
	assert.ErrorIs(t, err, activity.ErrBusy)
	assert.Equal(t, StateIdle, h.picker.State())
	attaches, _, _, _ := h.surface.snapshot()
	assert.Zero(t, attaches)
}

func TestStart_BlockedByForeignPickHolder(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	_, err := h.guard.Acquire(activity.Pick)
	require.NoError(t, err)

	err = h.picker.Start(context.Background(), schemas.ModeSmart)
	assert.ErrorIs(t, err, activity.ErrBusy)
	assert.Equal(t, StateIdle, h.picker.State())
	assert.Equal(t, activity.Pick, h.guard.Holder(), "the existing holder keeps the page")
	attaches, _, _, _ := h.surface.snapshot()
	assert.Zero(t, attaches)
}

func TestExit_GuardFreeOnceIdle(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, h.picker.Start(ctx, schemas.ModeSmart))

		observed := make(chan activity.Kind, 1)
		go func() {
			for h.picker.State() != StateIdle {
				runtime.Gosched()
			}
			observed <- h.guard.Holder()
		}()

		h.picker.Cancel(ctx)
		h.publisher.await(t)
		h.picker.Wait()
		require.Equal(t, activity.None, <-observed, "an idle picker must not hold the page")
	}
}

func TestStart_AttachFailureReleasesGuard(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	h.surface.attachErr = errors.New("page gone")

	err := h.picker.Start(context.Background(), schemas.ModeSmart)
	assert.ErrorContains(t, err, "page gone")
	assert.Equal(t, activity.None, h.guard.Holder())
	assert.Equal(t, StateIdle, h.picker.State())
}

func TestHover_MovesOutline(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	require.NoError(t, h.picker.Start(context.Background(), schemas.ModeSmart))
	ctx := context.Background()

	h.picker.HandleEvent(ctx, schemas.PickerEvent{Kind: schemas.PickerHover, Ref: "#submit"})
	h.picker.HandleEvent(ctx, schemas.PickerEvent{Kind: schemas.PickerHover, Ref: "#submit"})
	h.picker.HandleEvent(ctx, schemas.PickerEvent{Kind: schemas.PickerHover, Ref: "input"})

	_, _, outlines, _ := h.surface.snapshot()
	assert.Equal(t, []outlineCall{
		{"#submit", "2px dashed #f39c12"},
		{"#submit", ""},
		{"input", "2px dashed #f39c12"},
	}, outlines)
}

func TestClick_SavesAndExits(t *testing.T) {
	tests := []struct {
		name string
		mode schemas.PickMode
		ref  string
		want string
	}{
		{"smart uses id", schemas.ModeSmart, "#submit", "#submit"},
		{"smart uses name", schemas.ModeSmart, "input", `[name="email"]`},
		{"simple uses full path", schemas.ModeSimple, "li:nth-of-type(2)", "html > body > ul > li:nth-of-type(2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testPickerConfig())
			require.NoError(t, h.picker.Start(context.Background(), tt.mode))

			h.surface.send(schemas.PickerEvent{Kind: schemas.PickerHover, Ref: tt.ref})
			h.surface.send(schemas.PickerEvent{Kind: schemas.PickerClick, Ref: tt.ref})

			result := h.publisher.await(t)
			h.picker.Wait()

			assert.Equal(t, schemas.PickResult{Selector: tt.want, Mode: tt.mode}, result)
			assert.Equal(t, []string{tt.want}, h.sink.saved())
			assert.Equal(t, StateIdle, h.picker.State())
			assert.Equal(t, activity.None, h.guard.Holder())

			_, detaches, outlines, toasts := h.surface.snapshot()
			assert.Equal(t, 1, detaches)
			assert.Equal(t, outlineCall{tt.ref, ""}, outlines[len(outlines)-1], "outline cleared on exit")
			assert.Equal(t, "Saved: "+tt.want, toasts[len(toasts)-1])
		})
	}
}

func TestCancelKey(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	require.NoError(t, h.picker.Start(context.Background(), schemas.ModeSimple))

	h.surface.send(schemas.PickerEvent{Kind: schemas.PickerKey, Key: "a"})
	h.surface.send(schemas.PickerEvent{Kind: schemas.PickerHover, Ref: "#submit"})
	h.surface.send(schemas.PickerEvent{Kind: schemas.PickerKey, Key: "Escape"})

	result := h.publisher.await(t)
	h.picker.Wait()

	assert.True(t, result.Cancelled)
	assert.Empty(t, result.Selector)
	assert.Empty(t, h.sink.saved())
	assert.Equal(t, StateIdle, h.picker.State())

	_, _, outlines, toasts := h.surface.snapshot()
	assert.Equal(t, outlineCall{"#submit", ""}, outlines[len(outlines)-1])
	assert.Equal(t, "Picker Cancelled", toasts[len(toasts)-1])
}

func TestClick_ResolveFailureCancels(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	h.surface.resolveErr = errors.New("snapshot failed")
	require.NoError(t, h.picker.Start(context.Background(), schemas.ModeSmart))

	h.surface.send(schemas.PickerEvent{Kind: schemas.PickerClick, Ref: "#submit"})

	result := h.publisher.await(t)
	h.picker.Wait()
	assert.True(t, result.Cancelled)
	assert.Empty(t, h.sink.saved())
	assert.Equal(t, activity.None, h.guard.Holder())
}

func TestClick_SinkFailureStillReportsSelector(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	h.sink.err = errors.New("disk full")
	require.NoError(t, h.picker.Start(context.Background(), schemas.ModeSmart))

	h.surface.send(schemas.PickerEvent{Kind: schemas.PickerClick, Ref: "#submit"})

	result := h.publisher.await(t)
	h.picker.Wait()
	assert.Equal(t, "#submit", result.Selector)
}

func TestContextCancelEndsPick(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.picker.Start(ctx, schemas.ModeSmart))

	cancel()
	result := h.publisher.await(t)
	h.picker.Wait()
	assert.True(t, result.Cancelled)
	assert.Equal(t, StateIdle, h.picker.State())
}

func TestTimeoutEndsPick(t *testing.T) {
	cfg := testPickerConfig()
	cfg.Timeout = 20 * time.Millisecond
	h := newHarness(t, cfg)
	require.NoError(t, h.picker.Start(context.Background(), schemas.ModeSmart))

	result := h.publisher.await(t)
	h.picker.Wait()
	assert.True(t, result.Cancelled)
}

func TestRestartAfterPick(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	ctx := context.Background()

	require.NoError(t, h.picker.Start(ctx, schemas.ModeSmart))
	h.picker.Cancel(ctx)
	h.publisher.await(t)
	h.picker.Wait()

	require.NoError(t, h.picker.Start(ctx, schemas.ModeSimple))
	assert.Equal(t, StatePicking, h.picker.State())
	attaches, _, _, toasts := h.surface.snapshot()
	assert.Equal(t, 2, attaches)
	assert.Equal(t, "Picker Active (Simple). Click element. ESC to cancel.", toasts[len(toasts)-1])
}

func TestEventsIgnoredWhenIdle(t *testing.T) {
	h := newHarness(t, testPickerConfig())
	h.picker.HandleEvent(context.Background(), schemas.PickerEvent{Kind: schemas.PickerClick, Ref: "#submit"})
	h.picker.HandleEvent(context.Background(), schemas.PickerEvent{Kind: schemas.PickerHover, Ref: "#submit"})

	assert.Empty(t, h.sink.saved())
	_, _, outlines, _ := h.surface.snapshot()
	assert.Empty(t, outlines)
}
