package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/unlist/pkg/types"
)

// ResultKind classifies what a single step execution produced.
type ResultKind int

const (
	// StepSuccess means the step ran to completion (or was optional and
	// downgraded after failing).
	StepSuccess ResultKind = iota
	// StepNeedsAction means the step requires the user to act in the
	// browser before the run can continue.
	StepNeedsAction
	// StepFailed means the step failed and the failure was not absorbed.
	StepFailed
)

// StepResult is the outcome of executing one playbook step.
type StepResult struct {
	Kind ResultKind

	// Action describes what the user must do. Set when Kind is
	// StepNeedsAction.
	Action *types.ActionRequired

	// Err is the underlying failure. Set when Kind is StepFailed.
	Err error

	// Terminal is true when the step marks the end of the playbook.
	Terminal bool
}

func success() StepResult                     { return StepResult{Kind: StepSuccess} }
func failed(err error) StepResult             { return StepResult{Kind: StepFailed, Err: err} }
func needs(a types.ActionRequired) StepResult { return StepResult{Kind: StepNeedsAction, Action: &a} }

// executeStep runs one playbook step against the session. Profile values
// are resolved here and handed straight to the browser; only the profile
// key ever reaches a log line or an error message.
func executeStep(ctx context.Context, sess Session, step types.PlaybookStep, profile *types.Profile, timeout time.Duration) StepResult {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	res := runAction(ctx, sess, step, profile, timeout)
	if res.Kind == StepFailed && step.Optional {
		return StepResult{Kind: StepSuccess}
	}
	return res
}

func runAction(ctx context.Context, sess Session, step types.PlaybookStep, profile *types.Profile, timeout time.Duration) StepResult {
	switch step.Action {
	case types.ActionDone:
		return StepResult{Kind: StepSuccess, Terminal: true}

	case types.ActionCaptcha:
		return needs(types.ActionRequired{
			Type:            types.ActionSolveCaptcha,
			Message:         gateMessage(step, "Please solve the CAPTCHA in the browser window, then continue."),
			StepPosition:    step.Position,
			StepDescription: step.Description,
		})

	case types.ActionUserPrompt:
		return needs(types.ActionRequired{
			Type:            types.ActionManualStep,
			Message:         gateMessage(step, "Complete the highlighted step in the browser window, then continue."),
			StepPosition:    step.Position,
			StepDescription: step.Description,
		})

	case types.ActionWait:
		return sleepStep(ctx, step.WaitAfter())

	case types.ActionNavigate:
		if err := sess.Navigate(step.Value, timeout); err != nil {
			return failed(err)
		}
		return success()

	case types.ActionFill:
		value, res := resolveValue(step, profile)
		if res != nil {
			return *res
		}
		if value == "" {
			// Nothing to type and no profile key: the field needs input
			// only the user can provide. Bring it into view so the user
			// sees where to type; the gate opens even if the scroll fails.
			_ = sess.ScrollTo(step.Selector, timeout)
			return needs(types.ActionRequired{
				Type:            types.ActionManualStep,
				Message:         gateMessage(step, "Please fill in this field in the browser window, then continue."),
				StepPosition:    step.Position,
				StepDescription: step.Description,
			})
		}
		if err := sess.Fill(step.Selector, value, timeout); err != nil {
			return failed(err)
		}
		return success()

	case types.ActionSelect:
		value, res := resolveValue(step, profile)
		if res != nil {
			return *res
		}
		if err := sess.Select(step.Selector, value, timeout); err != nil {
			return failed(err)
		}
		return success()

	case types.ActionCheck:
		checked := step.Value != "false"
		if err := sess.Check(step.Selector, checked, timeout); err != nil {
			return failed(err)
		}
		return success()

	case types.ActionClick:
		if err := sess.Click(step.Selector, timeout); err != nil {
			return failed(err)
		}
		return success()

	case types.ActionFindAndClick:
		text, res := resolveValue(step, profile)
		if res != nil {
			return *res
		}
		if err := sess.FindAndClick(step.Selector, text, timeout); err != nil {
			return failed(err)
		}
		return success()

	case types.ActionScrollTo:
		if err := sess.ScrollTo(step.Selector, timeout); err != nil {
			return failed(err)
		}
		return success()

	case types.ActionWaitFor:
		if err := sess.WaitFor(step.Selector, timeout); err != nil {
			return failed(err)
		}
		return success()

	default:
		return failed(fmt.Errorf("unknown action %q at step %d", step.Action, step.Position))
	}
}

// resolveValue picks the literal value for a step: the profile field named
// by the step's profile key when one is set, the step's own value
// otherwise. A second non-nil return short-circuits the step.
func resolveValue(step types.PlaybookStep, profile *types.Profile) (string, *StepResult) {
	if step.ProfileKey == "" {
		return step.Value, nil
	}
	if profile == nil {
		r := failed(fmt.Errorf("step %d needs profile key %q but no profile is loaded", step.Position, step.ProfileKey))
		return "", &r
	}
	value, ok := profile.Resolve(step.ProfileKey)
	if !ok {
		r := failed(fmt.Errorf("unknown profile key %q at step %d", step.ProfileKey, step.Position))
		return "", &r
	}
	return value, nil
}

func gateMessage(step types.PlaybookStep, fallback string) string {
	if step.Instructions != "" {
		return step.Instructions
	}
	if step.Description != "" {
		return step.Description
	}
	return fallback
}

func sleepStep(ctx context.Context, d time.Duration) StepResult {
	select {
	case <-ctx.Done():
		return failed(ctx.Err())
	case <-time.After(d):
		return success()
	}
}
