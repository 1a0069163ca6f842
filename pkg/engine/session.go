// Package engine implements the opt-out run state machine: it resolves each
// broker in a worklist to a concrete playbook, replays the playbook's steps
// against a browser session, suspends at human-gated boundaries, and emits
// an ordered stream of progress events. At most one run is active
// process-wide.
package engine

import "time"

// Session is the subset of the browser driver the executor drives. One
// session maps to one browser instance and one page; the engine opens a
// fresh session per broker so no page state leaks across broker origins.
type Session interface {
	Navigate(url string, timeout time.Duration) error
	Fill(selector, value string, timeout time.Duration) error
	Select(selector, value string, timeout time.Duration) error
	Check(selector string, checked bool, timeout time.Duration) error
	Click(selector string, timeout time.Duration) error
	FindAndClick(selector, text string, timeout time.Duration) error
	ScrollTo(selector string, timeout time.Duration) error
	WaitFor(selector string, timeout time.Duration) error
	Close()
}

// SessionFactory opens a fresh browser session. It is called once per
// broker; the returned session is closed before the next broker starts.
type SessionFactory func() (Session, error)
