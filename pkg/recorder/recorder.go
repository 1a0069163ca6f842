// Package recorder captures a user's walkthrough of a broker's opt-out flow
// as an ordered action log. An injected script records which elements were
// interacted with; typed values never leave the page. For recognized PII
// fields the script records a profile key guess instead, so the resulting
// draft playbook fills the field from whatever profile replays it.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/entrhq/unlist/pkg/logging"
	"github.com/entrhq/unlist/pkg/types"
)

var (
	// ErrRecordingActive is returned by Start while another recording is
	// in flight.
	ErrRecordingActive = errors.New("a recording session is already active")
	// ErrNoRecording is returned when no recording is in flight.
	ErrNoRecording = errors.New("no active recording session")
)

const (
	pollInterval = 2 * time.Second
	injectSettle = 2 * time.Second
)

// Page is the slice of the browser driver the recorder uses.
type Page interface {
	Navigate(url string, timeout time.Duration) error
	Evaluate(script string) (interface{}, error)
	Close()
}

// PageFactory opens a fresh browser page for one recording session.
type PageFactory func() (Page, error)

// recording is one in-flight capture session.
type recording struct {
	brokerID   string
	brokerName string
	page       Page
	cancelPoll context.CancelFunc
	pollDone   chan struct{}

	mu      sync.Mutex
	actions []types.RecordedAction
}

func (r *recording) append(actions ...types.RecordedAction) {
	r.mu.Lock()
	r.actions = append(r.actions, actions...)
	r.mu.Unlock()
}

func (r *recording) snapshot() []types.RecordedAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.RecordedAction, len(r.actions))
	copy(out, r.actions)
	return out
}

// Recorder manages capture sessions. At most one session is active
// process-wide; Start fails while another is in flight.
type Recorder struct {
	newPage PageFactory
	timeout time.Duration
	log     *logging.Logger

	mu     sync.Mutex
	active *recording
}

// New creates a Recorder that opens pages through the given factory.
func New(newPage PageFactory, operationTimeout time.Duration, log *logging.Logger) (*Recorder, error) {
	if newPage == nil {
		return nil, errors.New("recorder: page factory is required")
	}
	if operationTimeout <= 0 {
		operationTimeout = 10 * time.Second
	}
	if log == nil {
		var err error
		log, err = logging.NewLogger("recorder")
		if err != nil {
			return nil, fmt.Errorf("failed to create recorder logger: %w", err)
		}
	}
	return &Recorder{newPage: newPage, timeout: operationTimeout, log: log}, nil
}

// Start opens a browser at the broker's opt-out page and begins capturing.
func (r *Recorder) Start(brokerID, brokerName, optOutURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return ErrRecordingActive
	}

	page, err := r.newPage()
	if err != nil {
		return fmt.Errorf("failed to open browser for recording: %w", err)
	}
	if err := page.Navigate(optOutURL, r.timeout); err != nil {
		page.Close()
		return fmt.Errorf("failed to open opt-out page: %w", err)
	}
	time.Sleep(injectSettle)
	if _, err := page.Evaluate(captureScript); err != nil {
		page.Close()
		return fmt.Errorf("failed to inject capture script: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recording{
		brokerID:   brokerID,
		brokerName: brokerName,
		page:       page,
		cancelPoll: cancel,
		pollDone:   make(chan struct{}),
	}
	r.active = rec
	r.log.Infof("recording started for %s", brokerID)
	go r.poll(ctx, rec)
	return nil
}

// poll watches the page for navigations and drains captured actions. When
// the URL changes it records a navigate action and re-injects the capture
// script, since the fresh document lost it.
func (r *Recorder) poll(ctx context.Context, rec *recording) {
	defer close(rec.pollDone)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastURL := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		raw, err := rec.page.Evaluate("window.location.href")
		if err != nil {
			// Page or browser closed out from under us.
			r.log.Debugf("recording poll stopped: %v", err)
			return
		}
		currentURL, _ := raw.(string)

		if currentURL != "" && currentURL != lastURL {
			if lastURL != "" {
				rec.append(types.RecordedAction{
					Action:    types.ActionNavigate,
					Value:     currentURL,
					URL:       currentURL,
					Timestamp: time.Now().UnixMilli(),
				})
			}
			lastURL = currentURL
			if _, err := rec.page.Evaluate(captureScript); err != nil {
				r.log.Warnf("failed to re-inject capture script: %v", err)
			}
		}

		r.drain(rec)
	}
}

// drain moves any actions buffered on the page into the session log. The
// extract script clears the page buffer atomically, so each action is
// collected exactly once.
func (r *Recorder) drain(rec *recording) {
	raw, err := rec.page.Evaluate(extractScript)
	if err != nil {
		return
	}
	actions, err := decodeActions(raw)
	if err != nil {
		r.log.Warnf("failed to decode captured actions: %v", err)
		return
	}
	if len(actions) > 0 {
		rec.append(actions...)
	}
}

// decodeActions converts the page's raw action array into typed records.
func decodeActions(raw interface{}) ([]types.RecordedAction, error) {
	if raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var actions []types.RecordedAction
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// MarkCaptcha records that the user solved a CAPTCHA at this point, so the
// replayed playbook suspends here too.
func (r *Recorder) MarkCaptcha() error {
	return r.mark(types.RecordedAction{
		Action:    types.ActionCaptcha,
		Label:     "User solved CAPTCHA",
		Timestamp: time.Now().UnixMilli(),
	})
}

// MarkUserPrompt records a manual step at this point in the recording.
func (r *Recorder) MarkUserPrompt() error {
	return r.mark(types.RecordedAction{
		Action:    types.ActionUserPrompt,
		Label:     "Manual step",
		Timestamp: time.Now().UnixMilli(),
	})
}

func (r *Recorder) mark(action types.RecordedAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ErrNoRecording
	}
	r.active.append(action)
	return nil
}

// Actions returns a snapshot of the actions captured so far without
// stopping the session.
func (r *Recorder) Actions() ([]types.RecordedAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, ErrNoRecording
	}
	return r.active.snapshot(), nil
}

// Active reports whether a recording session is in flight.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Stop ends the session and returns the full action log ordered by capture
// time. The poll loop is stopped before the final drain so no action is
// collected twice or lost.
func (r *Recorder) Stop() ([]types.RecordedAction, error) {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.mu.Unlock()
	if rec == nil {
		return nil, ErrNoRecording
	}

	rec.cancelPoll()
	<-rec.pollDone

	r.drain(rec)
	rec.page.Close()

	actions := rec.snapshot()
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Timestamp < actions[j].Timestamp
	})
	r.log.Infof("recording stopped for %s with %d action(s)", rec.brokerID, len(actions))
	return actions, nil
}
