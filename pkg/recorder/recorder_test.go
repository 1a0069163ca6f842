package recorder

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/unlist/pkg/types"
)

// fakePage simulates a browser page: it tracks the current URL, counts
// capture script injections, and hands queued action batches to the
// extract script the way a real page buffer would.
type fakePage struct {
	mu      sync.Mutex
	url     string
	navErr  error
	evalErr error
	injects int
	pending []interface{}
	closed  bool
}

func (p *fakePage) Navigate(url string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navErr != nil {
		return p.navErr
	}
	p.url = url
	return nil
}

func (p *fakePage) Evaluate(script string) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.evalErr != nil {
		return nil, p.evalErr
	}
	switch script {
	case "window.location.href":
		return p.url, nil
	case captureScript:
		p.injects++
		return nil, nil
	case extractScript:
		batch := p.pending
		p.pending = nil
		return batch, nil
	}
	return nil, fmt.Errorf("unexpected script: %.40s", script)
}

func (p *fakePage) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *fakePage) setURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

func (p *fakePage) queue(actions ...interface{}) {
	p.mu.Lock()
	p.pending = append(p.pending, actions...)
	p.mu.Unlock()
}

func (p *fakePage) injectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.injects
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func newTestRecorder(t *testing.T, page *fakePage) *Recorder {
	t.Helper()
	r, err := New(func() (Page, error) { return page, nil }, time.Second, nil)
	require.NoError(t, err)
	return r
}

func TestRecorderLifecycle(t *testing.T) {
	page := &fakePage{}
	r := newTestRecorder(t, page)

	require.False(t, r.Active())
	require.NoError(t, r.Start("spokeo", "Spokeo", "https://spokeo.example.com/optout"))
	require.True(t, r.Active())
	assert.Equal(t, 1, page.injectCount())

	// Only one capture session at a time.
	assert.ErrorIs(t, r.Start("whitepages", "Whitepages", "https://wp.example.com"), ErrRecordingActive)

	actions, err := r.Stop()
	require.NoError(t, err)
	assert.Empty(t, actions)
	assert.False(t, r.Active())
	assert.True(t, page.isClosed())

	_, err = r.Stop()
	assert.ErrorIs(t, err, ErrNoRecording)
}

func TestRecorderDecodesCapturedActions(t *testing.T) {
	page := &fakePage{}
	r := newTestRecorder(t, page)
	require.NoError(t, r.Start("spokeo", "Spokeo", "https://spokeo.example.com/optout"))

	// Raw page-side objects, shaped as the capture script buffers them.
	page.queue(
		map[string]interface{}{
			"action":       "click",
			"selector":     "button.search",
			"element_text": "Search",
			"timestamp":    float64(200),
		},
		map[string]interface{}{
			"action":      "fill",
			"selector":    "#email",
			"profile_key": "email",
			"label":       "Email address",
			"timestamp":   float64(100),
		},
	)

	actions, err := r.Stop()
	require.NoError(t, err)
	require.Len(t, actions, 2)

	// Stop orders by capture time regardless of drain order.
	assert.Equal(t, types.ActionFill, actions[0].Action)
	assert.Equal(t, "#email", actions[0].Selector)
	assert.Equal(t, "email", actions[0].ProfileKey)
	assert.Equal(t, "Email address", actions[0].Label)
	assert.Empty(t, actions[0].Value)

	assert.Equal(t, types.ActionClick, actions[1].Action)
	assert.Equal(t, "Search", actions[1].ElementText)
}

func TestRecorderMarks(t *testing.T) {
	page := &fakePage{}
	r := newTestRecorder(t, page)

	assert.ErrorIs(t, r.MarkCaptcha(), ErrNoRecording)
	assert.ErrorIs(t, r.MarkUserPrompt(), ErrNoRecording)

	require.NoError(t, r.Start("spokeo", "Spokeo", "https://spokeo.example.com/optout"))
	require.NoError(t, r.MarkCaptcha())
	require.NoError(t, r.MarkUserPrompt())

	snapshot, err := r.Actions()
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	actions, err := r.Stop()
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, types.ActionCaptcha, actions[0].Action)
	assert.Equal(t, types.ActionUserPrompt, actions[1].Action)
}

func TestRecorderActionsRequiresSession(t *testing.T) {
	r := newTestRecorder(t, &fakePage{})
	_, err := r.Actions()
	assert.ErrorIs(t, err, ErrNoRecording)
}

func TestRecorderNavigateFailureAbortsStart(t *testing.T) {
	page := &fakePage{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	r := newTestRecorder(t, page)

	err := r.Start("spokeo", "Spokeo", "https://spokeo.example.com/optout")
	require.Error(t, err)
	assert.False(t, r.Active())
	assert.True(t, page.isClosed())
}

func TestRecorderTracksNavigationAcrossPages(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the 2s navigation poll")
	}

	page := &fakePage{}
	r := newTestRecorder(t, page)
	require.NoError(t, r.Start("spokeo", "Spokeo", "https://spokeo.example.com/optout"))

	// Let the poll observe the starting URL, then move to a second page.
	time.Sleep(pollInterval + 500*time.Millisecond)
	page.setURL("https://spokeo.example.com/optout/confirm")
	time.Sleep(pollInterval + 500*time.Millisecond)

	actions, err := r.Stop()
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, types.ActionNavigate, actions[0].Action)
	assert.Equal(t, "https://spokeo.example.com/optout/confirm", actions[0].Value)

	// Initial inject, plus one after each observed URL change.
	assert.GreaterOrEqual(t, page.injectCount(), 3)
}
