package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/unlist/pkg/playbook"
	"github.com/entrhq/unlist/pkg/registry"
	"github.com/entrhq/unlist/pkg/types"
)

// Settle delays give the page a moment to react after navigation and after
// the user resolves a gate.
const (
	navigateSettle = 2 * time.Second
	captchaSettle  = 2 * time.Second
	promptSettle   = time.Second
)

// brokerResult is the terminal outcome of one broker's playbook.
type brokerResult struct {
	success     bool
	failureStep uint
	failureMsg  string
}

// run drives one run to completion. It is the only goroutine that mutates
// run state while the run is active.
func (e *Engine) run(ctx context.Context, runID string, brokers []registry.Broker, selections map[string]string, profile *types.Profile) {
	total := len(brokers)
	succeeded, failed := 0, 0
	cancelled := false

	for idx, broker := range brokers {
		if ctx.Err() != nil {
			cancelled = true
			e.recordFailure(broker, runID, "Run cancelled by user")
			failed++
			continue
		}

		res, ok := e.runBroker(ctx, runID, idx, total, broker, selections[broker.ID], profile)
		if !ok {
			// Cancelled mid-broker. Count it failed and fall through so
			// the remaining brokers are accounted for.
			cancelled = true
			e.recordFailure(broker, runID, "Run cancelled by user")
			failed++
			continue
		}

		if res.success {
			succeeded++
			e.recordSuccess(broker, runID)
			e.emitProgress(runID, broker, "Opt-out submitted", idx+1, total, types.RunRunning, nil, "")
		} else {
			failed++
			msg := res.failureMsg
			if msg == "" {
				msg = "Playbook execution failed"
			}
			e.recordFailure(broker, runID, msg)
		}
	}

	final := types.RunCompleted
	if cancelled {
		final = types.RunFailed
	}
	e.mu.Lock()
	e.status = final
	e.cancel = nil
	e.gate = nil
	e.mu.Unlock()

	e.log.Infof("run %s finished: %d succeeded, %d failed of %d", runID, succeeded, failed, total)
	e.emit(types.NewCompletionEvent(types.Completion{
		RunID:     runID,
		Total:     total,
		Succeeded: succeeded,
		Failed:    failed,
	}))
}

// runBroker resolves and replays one broker's playbook in a fresh browser
// session. The second return is false when the run was cancelled.
func (e *Engine) runBroker(ctx context.Context, runID string, idx, total int, broker registry.Broker, selection string, profile *types.Profile) (brokerResult, bool) {
	e.emitProgress(runID, broker, "Resolving playbook...", idx, total, types.RunRunning, nil, "")

	pb, err := e.cfg.Resolver.Resolve(ctx, broker, selection)
	if err != nil {
		msg := err.Error()
		e.log.Warnf("run %s: %s: %s", runID, broker.ID, msg)
		e.emitProgress(runID, broker, "Playbook unavailable", idx, total, types.RunRunning, nil, msg)
		return brokerResult{failureMsg: msg}, true
	}

	label := "community playbook v" + fmt.Sprint(pb.Version)
	if pb.IsLocal() {
		label = "local playbook"
	}
	e.emitProgress(runID, broker, "Using "+label+"...", idx, total, types.RunRunning, nil, "")

	e.emitProgress(runID, broker, "Preparing browser session...", idx, total, types.RunRunning, nil, "")
	sess, err := e.cfg.Sessions()
	if err != nil {
		msg := fmt.Sprintf("Failed to launch browser: %s", err)
		e.log.Errorf("run %s: %s", runID, msg)
		e.emitProgress(runID, broker, msg, idx, total, types.RunRunning, nil, msg)
		return brokerResult{failureMsg: msg}, true
	}
	defer sess.Close()

	if broker.OptOutURL != "" {
		if !e.navigationAllowed(broker.OptOutURL) {
			msg := fmt.Sprintf("Navigation to %s is blocked by policy", broker.OptOutURL)
			e.emitProgress(runID, broker, msg, idx, total, types.RunRunning, nil, msg)
			return brokerResult{failureMsg: msg}, true
		}
		e.emitProgress(runID, broker, "Navigating to opt-out page...", idx, total, types.RunRunning, nil, "")
		if err := sess.Navigate(broker.OptOutURL, e.cfg.OperationTimeout); err != nil {
			msg := fmt.Sprintf("Failed to open opt-out page: %s", err)
			e.emitProgress(runID, broker, msg, idx, total, types.RunRunning, nil, msg)
			return brokerResult{failureMsg: msg}, true
		}
		if !sleepCtx(ctx, navigateSettle) {
			return brokerResult{}, false
		}
	}

	res, ok := e.runSteps(ctx, runID, idx, total, broker, sess, pb, profile)
	if ok {
		e.report(runID, pb, res)
	}
	return res, ok
}

// runSteps replays the playbook's steps in order, suspending at gates. The
// index only advances on success or an explicit skip, so a retried step
// runs again verbatim.
func (e *Engine) runSteps(ctx context.Context, runID string, idx, total int, broker registry.Broker, sess Session, pb *types.Playbook, profile *types.Profile) (brokerResult, bool) {
	steps := pb.Steps
	i := 0
	for i < len(steps) {
		if ctx.Err() != nil {
			return brokerResult{}, false
		}
		step := steps[i]

		e.emitProgress(runID, broker, step.Description, idx, total, types.RunRunning, nil, "")
		var res StepResult
		if step.Action == types.ActionNavigate && !e.navigationAllowed(step.Value) {
			res = failed(fmt.Errorf("navigation to %s is blocked by policy", step.Value))
		} else {
			res = executeStep(ctx, sess, step, profile, e.cfg.OperationTimeout)
		}

		if res.Terminal {
			return brokerResult{success: true}, true
		}

		switch res.Kind {
		case StepSuccess:
			// The wait action already slept for its duration.
			if step.Action != types.ActionWait {
				if !sleepCtx(ctx, step.WaitAfter()) {
					return brokerResult{}, false
				}
			}
			i++

		case StepNeedsAction:
			g := e.armGate()
			e.emitProgress(runID, broker, res.Action.Message, idx, total, types.RunWaitingForUser, res.Action, "")
			resp, ok := e.awaitGate(ctx, g)
			if !ok {
				return brokerResult{}, false
			}
			if resp == types.GateAbort {
				return brokerResult{
					failureStep: step.Position,
					failureMsg:  "Aborted by user",
				}, true
			}
			settle := promptSettle
			if res.Action.Type == types.ActionSolveCaptcha {
				settle = captchaSettle
			}
			if !sleepCtx(ctx, settle) {
				return brokerResult{}, false
			}
			if !sleepCtx(ctx, step.WaitAfter()) {
				return brokerResult{}, false
			}
			i++

		case StepFailed:
			if ctx.Err() != nil {
				return brokerResult{}, false
			}
			msg := res.Err.Error()
			e.log.Warnf("run %s: step %d failed for %s: %s", runID, step.Position, broker.ID, msg)
			action := &types.ActionRequired{
				Type:            types.ActionStepFailed,
				Message:         fmt.Sprintf("Step %d failed: %s", step.Position, msg),
				StepPosition:    step.Position,
				StepDescription: step.Description,
			}
			g := e.armGate()
			e.emitProgress(runID, broker, action.Message, idx, total, types.RunWaitingForUser, action, msg)
			resp, ok := e.awaitGate(ctx, g)
			if !ok {
				return brokerResult{}, false
			}
			switch resp {
			case types.GateSkip:
				i++
			case types.GateAbort:
				return brokerResult{
					failureStep: step.Position,
					failureMsg:  msg,
				}, true
			default:
				// Retry, or plain continuation after the user fixed the
				// page by hand. The step runs again as written.
			}
		}
	}
	return brokerResult{success: true}, true
}

// navigationAllowed checks a navigate target against the configured domain
// policy. No policy means every target is allowed.
func (e *Engine) navigationAllowed(url string) bool {
	if e.cfg.Navigation == nil {
		return true
	}
	return e.cfg.Navigation.AllowsURL(url)
}

// sleepCtx sleeps for d unless the context is cancelled first. It returns
// false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (e *Engine) recordSuccess(broker registry.Broker, runID string) {
	if e.cfg.History == nil {
		return
	}
	if err := e.cfg.History.RecordSuccess(broker, runID); err != nil {
		e.log.Warnf("failed to record outcome for %s: %v", broker.ID, err)
	}
}

func (e *Engine) recordFailure(broker registry.Broker, runID, msg string) {
	if e.cfg.History == nil {
		return
	}
	if err := e.cfg.History.RecordFailure(broker, runID, msg); err != nil {
		e.log.Warnf("failed to record outcome for %s: %v", broker.ID, err)
	}
}

// report sends anonymous telemetry for community playbooks.
func (e *Engine) report(runID string, pb *types.Playbook, res brokerResult) {
	if e.cfg.Reporter == nil || pb.IsLocal() {
		return
	}
	outcome := "success"
	if !res.success {
		outcome = "failure"
	}
	rep := playbook.OutcomeReport{
		Outcome:     outcome,
		FailureStep: res.failureStep,
		Error:       res.failureMsg,
		AppVersion:  e.cfg.AppVersion,
	}
	go e.cfg.Reporter.ReportOutcome(context.Background(), pb.ID, rep)
}
