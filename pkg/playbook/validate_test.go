package playbook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/unlist/pkg/types"
)

// validSteps is a small but complete opt-out flow.
func validSteps() []types.PlaybookStep {
	return []types.PlaybookStep{
		{Position: 1, Action: types.ActionNavigate, Value: "https://broker.example.com/opt-out", Description: "Open the opt-out page", WaitAfterMS: 500},
		{Position: 2, Action: types.ActionFill, Selector: "#email", ProfileKey: "email", Description: "Fill in your email", WaitAfterMS: 500},
		{Position: 3, Action: types.ActionCaptcha, Description: "Solve the CAPTCHA", WaitAfterMS: 500},
		{Position: 4, Action: types.ActionClick, Selector: "button[type=submit]", Description: "Submit the form", WaitAfterMS: 500},
		{Position: 5, Action: types.ActionDone, Description: "Opt-out complete", WaitAfterMS: 500},
	}
}

func TestValidateAcceptsCompleteFlow(t *testing.T) {
	require.NoError(t, Validate(validSteps()))
}

func TestValidateRejectsEmpty(t *testing.T) {
	assert.Error(t, Validate(nil))
}

func TestValidateRejectsTooManySteps(t *testing.T) {
	steps := make([]types.PlaybookStep, MaxSteps+1)
	for i := range steps {
		steps[i] = types.PlaybookStep{
			Position:    uint(i + 1),
			Action:      types.ActionClick,
			Selector:    "#next",
			Description: "Click next",
		}
	}
	err := Validate(steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum allowed is 100")
}

func TestValidateStepProblems(t *testing.T) {
	tests := []struct {
		name string
		step types.PlaybookStep
		want string
	}{
		{
			name: "unknown action",
			step: types.PlaybookStep{Position: 1, Action: "eval"},
			want: "unknown action",
		},
		{
			name: "javascript navigate URL",
			step: types.PlaybookStep{Position: 1, Action: types.ActionNavigate, Value: "javascript:alert(1)"},
			want: "blocked scheme",
		},
		{
			name: "file navigate URL",
			step: types.PlaybookStep{Position: 1, Action: types.ActionNavigate, Value: "file:///etc/passwd"},
			want: "blocked scheme",
		},
		{
			name: "relative navigate URL",
			step: types.PlaybookStep{Position: 1, Action: types.ActionNavigate, Value: "broker.example.com"},
			want: "must start with http",
		},
		{
			name: "localhost navigate URL",
			step: types.PlaybookStep{Position: 1, Action: types.ActionNavigate, Value: "http://localhost:8080/admin"},
			want: "local/internal address",
		},
		{
			name: "rfc1918 navigate URL",
			step: types.PlaybookStep{Position: 1, Action: types.ActionNavigate, Value: "https://192.168.1.1/router"},
			want: "local/internal address",
		},
		{
			name: "event handler in selector",
			step: types.PlaybookStep{Position: 1, Action: types.ActionClick, Selector: "img[onerror=alert(1)]"},
			want: "blocked pattern",
		},
		{
			name: "selector too long",
			step: types.PlaybookStep{Position: 1, Action: types.ActionClick, Selector: strings.Repeat("a", MaxSelectorLen+1)},
			want: "selector too long",
		},
		{
			name: "missing selector",
			step: types.PlaybookStep{Position: 1, Action: types.ActionFill},
			want: "requires a selector",
		},
		{
			name: "unknown profile key",
			step: types.PlaybookStep{Position: 1, Action: types.ActionFill, Selector: "#ssn", ProfileKey: "ssn"},
			want: "unknown profile key",
		},
		{
			name: "email literal in value",
			step: types.PlaybookStep{Position: 1, Action: types.ActionFill, Selector: "#email", Value: "user@example.com"},
			want: "email address",
		},
		{
			name: "phone literal in description",
			step: types.PlaybookStep{Position: 1, Action: types.ActionClick, Selector: "#go", Description: "Call 555-123-4567 if stuck"},
			want: "phone-shaped",
		},
		{
			name: "script content in value",
			step: types.PlaybookStep{Position: 1, Action: types.ActionFill, Selector: "#q", Value: "<script>alert(1)</script>"},
			want: "blocked content",
		},
		{
			name: "instructions too long",
			step: types.PlaybookStep{Position: 1, Action: types.ActionCaptcha, Instructions: strings.Repeat("a", MaxInstructionsLen+1)},
			want: "instructions too long",
		},
		{
			name: "email literal in instructions",
			step: types.PlaybookStep{Position: 1, Action: types.ActionCaptcha, Instructions: "Use owner@example.com for the verification mail"},
			want: "instructions contains an email address",
		},
		{
			name: "phone literal in instructions",
			step: types.PlaybookStep{Position: 1, Action: types.ActionUserPrompt, Instructions: "Enter 555-123-4567 when prompted"},
			want: "instructions contains a phone-shaped value",
		},
		{
			name: "wait too long",
			step: types.PlaybookStep{Position: 1, Action: types.ActionWait, WaitAfterMS: 40_000},
			want: "wait_after_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]types.PlaybookStep{tt.step})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateRejectsSparsePositions(t *testing.T) {
	steps := validSteps()
	steps[2].Position = 7
	err := Validate(steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dense")
}

func TestValidateItemizesEveryProblem(t *testing.T) {
	steps := []types.PlaybookStep{
		{Position: 1, Action: types.ActionNavigate, Value: "javascript:void(0)"},
		{Position: 2, Action: types.ActionFill, Selector: "", ProfileKey: "ssn"},
	}
	err := Validate(steps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked scheme")
	assert.Contains(t, err.Error(), "requires a selector")
	assert.Contains(t, err.Error(), "unknown profile key")
}

func TestValidateNavigateValueExemptFromPIIScan(t *testing.T) {
	// URLs legitimately contain @-like sequences in query strings; only
	// non-navigate values are scanned.
	steps := []types.PlaybookStep{
		{Position: 1, Action: types.ActionNavigate, Value: "https://broker.example.com/opt-out?next=account@settings.page", Description: "Open"},
	}
	assert.NoError(t, Validate(steps))
}
