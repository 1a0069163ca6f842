package browser

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the driver's failure taxonomy. Callers branch with
// errors.Is; the wrapped message keeps the protocol-level detail.
var (
	// ErrBrowserUnavailable means no compatible browser binary could be
	// found or launched. Fatal to the run, no retry.
	ErrBrowserUnavailable = errors.New("browser unavailable")

	// ErrNavigation covers navigation failures, including timeouts.
	ErrNavigation = errors.New("navigation failed")

	// ErrElementNotFound means a selector resolved to zero nodes within the
	// operation's poll window.
	ErrElementNotFound = errors.New("element not found")

	// ErrElementNotInteractable means the element was found but could not be
	// clicked, filled, or otherwise acted on.
	ErrElementNotInteractable = errors.New("element not interactable")

	// ErrWaitTimeout means a wait-for condition did not hold within the
	// caller's timeout.
	ErrWaitTimeout = errors.New("wait timed out")

	// ErrNoSession means an operation was attempted before Launch or after
	// Close.
	ErrNoSession = errors.New("no active browser session")
)

// classifyActErr maps a protocol error from an element operation onto the
// driver's taxonomy. Playwright reports both "no such element" and "element
// never became actionable" as timeouts, so the distinction comes from the
// message text.
func classifyActErr(selector string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Timeout") && actionabilityTimeout(msg):
		// The element was located but never became actionable before the
		// deadline; the timeout log names the unmet condition.
		return fmt.Errorf("%w: %s: %v", ErrElementNotInteractable, selector, err)
	case strings.Contains(msg, "Timeout"):
		return fmt.Errorf("%w: %s: %v", ErrElementNotFound, selector, err)
	case strings.Contains(msg, "not visible"), strings.Contains(msg, "intercepts pointer events"),
		strings.Contains(msg, "disabled"), strings.Contains(msg, "not an <input>"):
		return fmt.Errorf("%w: %s: %v", ErrElementNotInteractable, selector, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrElementNotInteractable, selector, err)
	}
}

func actionabilityTimeout(msg string) bool {
	for _, phrase := range []string{
		"to be visible",
		"to be enabled",
		"to be editable",
		"to receive pointer events",
		"element is not stable",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
