// Package playbook holds the shared playbook machinery: the static step
// validator applied before any sequence is persisted or shared, Ed25519
// signature verification for community playbooks, the catalog client, and
// the local draft store.
package playbook

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/entrhq/unlist/pkg/types"
)

// Structural limits for a step sequence. These are enforced before a
// playbook can leave the machine or be executed, independent of execution.
const (
	MaxSteps           = 100
	MaxSelectorLen     = 500
	MaxValueLen        = 2000
	MaxDescriptionLen  = 500
	MaxInstructionsLen = 2000
	MaxWaitMS          = 30_000
)

// blockedURLSchemes are URL schemes a navigate step must never use.
var blockedURLSchemes = []string{
	"javascript:",
	"data:",
	"file:",
	"blob:",
	"vbscript:",
	"about:",
	"chrome:",
	"chrome-extension:",
}

// blockedSelectorPatterns are substrings that indicate an attempt to smuggle
// script content or event handlers through a CSS selector.
var blockedSelectorPatterns = []string{
	"javascript:",
	"<script",
	"onerror",
	"onload",
	"onclick",
	"onmouseover",
	"onfocus",
	"onblur",
	"onchange",
	"oninput",
	"onsubmit",
	"onkeydown",
	"onkeyup",
	"onkeypress",
	"onmousedown",
	"onmouseup",
	"ondblclick",
	"oncontextmenu",
	"expression(",
	"url(",
	"import(",
}

// PII shapes rejected in free-text fields. Playbooks describe a flow, never
// a specific person, so anything resembling an email, US phone number, or
// SSN fails validation outright.
var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	phonePattern = regexp.MustCompile(`\b\(?\d{3}\)?[-. ]?\d{3}[-. ]\d{4}\b`)
)

// Validate checks a full step sequence and returns an error itemizing every
// violation, or nil if the sequence is safe to persist, submit, or execute.
// A sequence is never partially accepted.
func Validate(steps []types.PlaybookStep) error {
	var problems []string

	if len(steps) == 0 {
		return fmt.Errorf("playbook must have at least one step")
	}
	if len(steps) > MaxSteps {
		return fmt.Errorf("playbook has %d steps, maximum allowed is %d", len(steps), MaxSteps)
	}

	for i, step := range steps {
		ctx := fmt.Sprintf("step %d", i+1)
		if step.Position != uint(i+1) {
			problems = append(problems, fmt.Sprintf("%s: position is %d, expected %d (positions must be dense and 1-based)", ctx, step.Position, i+1))
		}
		problems = append(problems, validateStep(step, ctx)...)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid playbook: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validateStep(step types.PlaybookStep, ctx string) []string {
	var problems []string

	if !step.Action.Valid() {
		problems = append(problems, fmt.Sprintf("%s: unknown action %q", ctx, step.Action))
		return problems
	}

	if step.Selector != "" {
		problems = append(problems, validateSelector(step.Selector, ctx)...)
	}
	if step.ProfileKey != "" && !types.KnownProfileKey(step.ProfileKey) {
		problems = append(problems, fmt.Sprintf("%s: unknown profile key %q", ctx, step.ProfileKey))
	}
	if len(step.Description) > MaxDescriptionLen {
		problems = append(problems, fmt.Sprintf("%s: description too long (%d chars, max %d)", ctx, len(step.Description), MaxDescriptionLen))
	}
	if len(step.Instructions) > MaxInstructionsLen {
		problems = append(problems, fmt.Sprintf("%s: instructions too long (%d chars, max %d)", ctx, len(step.Instructions), MaxInstructionsLen))
	}
	if step.WaitAfterMS > MaxWaitMS {
		problems = append(problems, fmt.Sprintf("%s: wait_after_ms is %d, maximum allowed is %d", ctx, step.WaitAfterMS, MaxWaitMS))
	}
	if len(step.Value) > MaxValueLen {
		problems = append(problems, fmt.Sprintf("%s: value too long (%d chars, max %d)", ctx, len(step.Value), MaxValueLen))
	}

	switch step.Action {
	case types.ActionNavigate:
		problems = append(problems, validateNavigateURL(step.Value, ctx)...)
	case types.ActionFill, types.ActionSelect, types.ActionCheck, types.ActionClick,
		types.ActionScrollTo, types.ActionFindAndClick, types.ActionWaitFor:
		if step.Selector == "" {
			problems = append(problems, fmt.Sprintf("%s: %q step requires a selector", ctx, step.Action))
		}
	}

	if step.Action != types.ActionNavigate && step.Value != "" {
		lower := strings.ToLower(step.Value)
		if strings.Contains(lower, "<script") || strings.Contains(lower, "javascript:") {
			problems = append(problems, fmt.Sprintf("%s: value contains blocked content", ctx))
		}
		problems = append(problems, scanPII(step.Value, ctx, "value")...)
	}
	problems = append(problems, scanPII(step.Description, ctx, "description")...)
	problems = append(problems, scanPII(step.Instructions, ctx, "instructions")...)

	return problems
}

func validateSelector(sel, ctx string) []string {
	var problems []string
	if len(sel) > MaxSelectorLen {
		problems = append(problems, fmt.Sprintf("%s: selector too long (%d chars, max %d)", ctx, len(sel), MaxSelectorLen))
	}
	lower := strings.ToLower(sel)
	for _, pattern := range blockedSelectorPatterns {
		if strings.Contains(lower, pattern) {
			problems = append(problems, fmt.Sprintf("%s: selector contains blocked pattern %q", ctx, pattern))
			break
		}
	}
	return problems
}

func validateNavigateURL(url, ctx string) []string {
	if url == "" {
		return []string{fmt.Sprintf("%s: navigate step requires a URL value", ctx)}
	}

	lower := strings.ToLower(strings.TrimSpace(url))
	for _, scheme := range blockedURLSchemes {
		if strings.HasPrefix(lower, scheme) {
			return []string{fmt.Sprintf("%s: navigate URL uses blocked scheme %q, only http:// and https:// are allowed", ctx, scheme)}
		}
	}
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return []string{fmt.Sprintf("%s: navigate URL must start with http:// or https://", ctx)}
	}

	host := lower[strings.Index(lower, "://")+3:]
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.HasPrefix(host, "[") {
		host = host[:i]
	}
	if isInternalHost(host) {
		return []string{fmt.Sprintf("%s: navigate URL points to a local/internal address", ctx)}
	}
	return nil
}

// isInternalHost rejects loopback, RFC1918, and mDNS hosts. Opt-out flows
// only ever target public broker sites.
func isInternalHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "0.0.0.0", "[::1]":
		return true
	}
	return strings.HasPrefix(host, "192.168.") ||
		strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "172.16.") ||
		strings.HasSuffix(host, ".local")
}

func scanPII(text, ctx, field string) []string {
	if text == "" {
		return nil
	}
	var problems []string
	if emailPattern.MatchString(text) {
		problems = append(problems, fmt.Sprintf("%s: %s contains an email address; reference it by profile key instead", ctx, field))
	}
	if ssnPattern.MatchString(text) {
		problems = append(problems, fmt.Sprintf("%s: %s contains an SSN-shaped value", ctx, field))
	}
	if phonePattern.MatchString(text) {
		problems = append(problems, fmt.Sprintf("%s: %s contains a phone-shaped value; reference it by profile key instead", ctx, field))
	}
	return problems
}
