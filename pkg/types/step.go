package types

import "time"

// ActionKind identifies the kind of browser interaction (or human-gated
// pause) a playbook step performs. The set is closed: anything outside it is
// rejected at validation time, never silently skipped at run time.
type ActionKind string

const (
	ActionNavigate     ActionKind = "navigate"       // ActionNavigate loads an absolute http(s) URL.
	ActionFill         ActionKind = "fill"           // ActionFill types a value into an input.
	ActionSelect       ActionKind = "select"         // ActionSelect picks an option in a <select>.
	ActionCheck        ActionKind = "check"          // ActionCheck sets a checkbox/radio state.
	ActionClick        ActionKind = "click"          // ActionClick clicks an element by selector.
	ActionWait         ActionKind = "wait"           // ActionWait sleeps for the step's wait duration.
	ActionWaitFor      ActionKind = "wait_for"       // ActionWaitFor blocks until a selector appears.
	ActionScrollTo     ActionKind = "scroll_to"      // ActionScrollTo scrolls an element into view.
	ActionFindAndClick ActionKind = "find_and_click" // ActionFindAndClick clicks the element whose text matches a profile value.
	ActionCaptcha      ActionKind = "captcha"        // ActionCaptcha hands control to the user for a CAPTCHA.
	ActionUserPrompt   ActionKind = "user_prompt"    // ActionUserPrompt hands control to the user for a manual step.
	ActionDone         ActionKind = "done"           // ActionDone marks successful playbook completion.
)

// AllActionKinds lists every member of the closed action set, in the order
// they typically appear in a playbook.
var AllActionKinds = []ActionKind{
	ActionNavigate, ActionFill, ActionSelect, ActionCheck, ActionClick,
	ActionWait, ActionWaitFor, ActionScrollTo, ActionFindAndClick,
	ActionCaptcha, ActionUserPrompt, ActionDone,
}

// Valid reports whether k is a member of the closed action set.
func (k ActionKind) Valid() bool {
	for _, a := range AllActionKinds {
		if k == a {
			return true
		}
	}
	return false
}

// HumanGated reports whether the action is a marker that suspends the run
// for user input instead of touching the DOM.
func (k ActionKind) HumanGated() bool {
	return k == ActionCaptcha || k == ActionUserPrompt
}

// DefaultWaitAfterMS is applied when a step does not specify its own
// post-step settle delay.
const DefaultWaitAfterMS = 500

// PlaybookStep is one unit of browser interaction within a playbook.
// Positions are a dense 1-based ordering. Steps reference user data by
// profile key only; a playbook never stores the user's actual data.
type PlaybookStep struct {
	Position    uint       `json:"position"`
	Action      ActionKind `json:"action"`
	Selector    string     `json:"selector,omitempty"`
	ProfileKey  string     `json:"profile_key,omitempty"`
	Value       string     `json:"value,omitempty"`
	Description string     `json:"description"`
	// Instructions optionally carries longer guidance shown to the user on
	// human-gated steps.
	Instructions string `json:"instructions,omitempty"`
	WaitAfterMS  int    `json:"wait_after_ms"`
	Optional     bool   `json:"optional"`
}

// WaitAfter returns the settle delay to apply once the step completes.
func (s PlaybookStep) WaitAfter() time.Duration {
	ms := s.WaitAfterMS
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}

// Playbook is a versioned, ordered sequence of steps describing how to opt
// out of one broker. Community playbooks are immutable once signed and
// accepted by the catalog; local drafts are mutable until submitted.
type Playbook struct {
	ID           string         `json:"id"`
	BrokerID     string         `json:"broker_id"`
	BrokerName   string         `json:"broker_name"`
	Title        string         `json:"title,omitempty"`
	Version      int            `json:"version"`
	Status       string         `json:"status"`
	Notes        string         `json:"notes,omitempty"`
	Steps        []PlaybookStep `json:"steps"`
	Signature    string         `json:"signature,omitempty"`
	Upvotes      int            `json:"upvotes"`
	Downvotes    int            `json:"downvotes"`
	SuccessCount int            `json:"success_count"`
	FailureCount int            `json:"failure_count"`
	CreatedAt    string         `json:"created_at"`
}

// StatusLocal marks a playbook loaded from the local draft store rather
// than the community catalog. Local playbooks carry no signature.
const StatusLocal = "local"

// IsLocal reports whether the playbook came from the local draft store.
func (p *Playbook) IsLocal() bool {
	return p.Status == StatusLocal
}

// RecordedAction is one raw capture record produced by the recorder,
// strictly ordered by capture time. For fill/select on PII-bearing fields
// it carries a profile key guess, never the literal value that was typed.
type RecordedAction struct {
	Action      ActionKind `json:"action"`
	Selector    string     `json:"selector,omitempty"`
	ProfileKey  string     `json:"profile_key,omitempty"`
	Value       string     `json:"value,omitempty"`
	URL         string     `json:"url,omitempty"`
	ElementText string     `json:"element_text,omitempty"`
	Label       string     `json:"label,omitempty"`
	// Timestamp is capture time in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}
