package recorder

import (
	"fmt"
	"strings"

	"github.com/entrhq/unlist/pkg/types"
)

// Convert turns a captured action log into draft playbook steps with dense
// 1-based positions. The log must already be ordered by capture time, which
// Stop guarantees. A terminal done step is appended so replay has an
// explicit end marker.
func Convert(actions []types.RecordedAction) []types.PlaybookStep {
	steps := make([]types.PlaybookStep, 0, len(actions)+1)
	for _, a := range actions {
		step, ok := convertAction(a)
		if !ok {
			continue
		}
		step.Position = uint(len(steps) + 1)
		step.WaitAfterMS = types.DefaultWaitAfterMS
		steps = append(steps, step)
	}
	steps = append(steps, types.PlaybookStep{
		Position:    uint(len(steps) + 1),
		Action:      types.ActionDone,
		Description: "Opt-out complete",
		WaitAfterMS: types.DefaultWaitAfterMS,
	})
	return steps
}

func convertAction(a types.RecordedAction) (types.PlaybookStep, bool) {
	switch a.Action {
	case types.ActionNavigate:
		return types.PlaybookStep{
			Action:      types.ActionNavigate,
			Value:       a.Value,
			Description: "Navigate to " + a.Value,
		}, true

	case types.ActionFill:
		return types.PlaybookStep{
			Action:      types.ActionFill,
			Selector:    a.Selector,
			ProfileKey:  a.ProfileKey,
			Description: describeField("Fill in", a),
		}, true

	case types.ActionSelect:
		return types.PlaybookStep{
			Action:      types.ActionSelect,
			Selector:    a.Selector,
			ProfileKey:  a.ProfileKey,
			Description: describeField("Select", a),
		}, true

	case types.ActionCheck:
		return types.PlaybookStep{
			Action:      types.ActionCheck,
			Selector:    a.Selector,
			Value:       a.Value,
			Description: describeField("Set", a),
		}, true

	case types.ActionClick:
		desc := "Click"
		if text := strings.TrimSpace(a.ElementText); text != "" {
			desc = fmt.Sprintf("Click %q", text)
		}
		return types.PlaybookStep{
			Action:      types.ActionClick,
			Selector:    a.Selector,
			Description: desc,
		}, true

	case types.ActionCaptcha:
		return types.PlaybookStep{
			Action:      types.ActionCaptcha,
			Description: "Solve the CAPTCHA",
		}, true

	case types.ActionUserPrompt:
		return types.PlaybookStep{
			Action:      types.ActionUserPrompt,
			Description: "Complete the manual step",
		}, true

	default:
		return types.PlaybookStep{}, false
	}
}

// describeField builds a step description from the field's label, profile
// key guess, or selector, in that order of preference.
func describeField(verb string, a types.RecordedAction) string {
	if label := strings.TrimSpace(a.Label); label != "" {
		return verb + " " + label
	}
	if a.ProfileKey != "" {
		return verb + " " + a.ProfileKey
	}
	return verb + " " + a.Selector
}
