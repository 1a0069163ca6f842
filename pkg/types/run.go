package types

// RunStatus is the lifecycle state of an opt-out run.
type RunStatus string

const (
	RunIdle           RunStatus = "idle"             // RunIdle means no run has started.
	RunRunning        RunStatus = "running"          // RunRunning means steps are executing.
	RunWaitingForUser RunStatus = "waiting_for_user" // RunWaitingForUser means the run is suspended on a human-gated step.
	RunCompleted      RunStatus = "completed"        // RunCompleted means every broker reached a terminal outcome.
	RunFailed         RunStatus = "failed"           // RunFailed means the run was cancelled or could not start.
)

// Active reports whether the status allows no second run to start.
func (s RunStatus) Active() bool {
	return s == RunRunning || s == RunWaitingForUser
}

// ActionRequiredType classifies what the user must do before the run can
// resume.
type ActionRequiredType string

const (
	ActionSolveCaptcha ActionRequiredType = "solve_captcha"
	ActionVerifyEmail  ActionRequiredType = "verify_email"
	ActionVerifyPhone  ActionRequiredType = "verify_phone"
	ActionManualStep   ActionRequiredType = "manual_step"
	ActionStepFailed   ActionRequiredType = "step_failed"
)

// ActionRequired is a typed request for human input, carried on progress
// events while the run is suspended.
type ActionRequired struct {
	Type    ActionRequiredType `json:"type"`
	Message string             `json:"message"`
	// StepPosition and StepDescription identify the offending step for
	// step_failed requests; zero/empty otherwise.
	StepPosition    uint   `json:"step_position,omitempty"`
	StepDescription string `json:"step_description,omitempty"`
}

// GateResponse is the user's answer to an ActionRequired suspension.
type GateResponse string

const (
	GateProceed GateResponse = "proceed" // GateProceed resumes at the next step (captcha/verification/manual cases).
	GateRetry   GateResponse = "retry"   // GateRetry re-executes the failed step.
	GateSkip    GateResponse = "skip"    // GateSkip treats the failed step as optional and moves on.
	GateAbort   GateResponse = "abort"   // GateAbort fails the current broker and advances to the next.
)

// BrokerOutcome records the terminal result for one broker in a run.
type BrokerOutcome struct {
	BrokerID   string `json:"broker_id"`
	BrokerName string `json:"broker_name"`
	Success    bool   `json:"success"`
	LastStep   string `json:"last_step,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Progress is the per-step progress payload emitted after every step and
// every state transition.
type Progress struct {
	RunID            string          `json:"run_id"`
	BrokerID         string          `json:"broker_id"`
	BrokerName       string          `json:"broker_name"`
	Status           RunStatus       `json:"status"`
	CurrentStep      string          `json:"current_step"`
	BrokersCompleted int             `json:"brokers_completed"`
	BrokersTotal     int             `json:"brokers_total"`
	ActionRequired   *ActionRequired `json:"action_required,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// Completion is the terminal summary payload, emitted exactly once per run
// after every broker has reached an outcome.
type Completion struct {
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// EventType discriminates engine event payloads.
type EventType string

const (
	EventRunProgress EventType = "run_progress" // EventRunProgress carries a Progress payload.
	EventRunComplete EventType = "run_complete" // EventRunComplete carries a Completion payload.
)

// Event is one entry in the engine's ordered event stream. Exactly one of
// Progress or Completion is set, matching Type.
type Event struct {
	Type       EventType   `json:"type"`
	Progress   *Progress   `json:"progress,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
}

// NewProgressEvent creates a run progress event.
func NewProgressEvent(p Progress) *Event {
	return &Event{Type: EventRunProgress, Progress: &p}
}

// NewCompletionEvent creates a terminal run completion event.
func NewCompletionEvent(c Completion) *Event {
	return &Event{Type: EventRunComplete, Completion: &c}
}

// IsTerminal reports whether the event ends its run's event stream.
func (e *Event) IsTerminal() bool {
	return e.Type == EventRunComplete
}
