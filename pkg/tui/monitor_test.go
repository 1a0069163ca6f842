package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/unlist/pkg/types"
)

type fakeController struct {
	events    chan *types.Event
	responses []types.GateResponse
	cancelled bool
}

func newFakeController() *fakeController {
	return &fakeController{events: make(chan *types.Event, 8)}
}

func (c *fakeController) Events() <-chan *types.Event { return c.events }

func (c *fakeController) Continue(resp types.GateResponse) error {
	c.responses = append(c.responses, resp)
	return nil
}

func (c *fakeController) Cancel() error {
	c.cancelled = true
	return nil
}

func keyMsg(key string) tea.KeyMsg {
	if key == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func waitingProgress(actionType types.ActionRequiredType) *types.Event {
	return types.NewProgressEvent(types.Progress{
		RunID:        "r-1",
		BrokerName:   "Spokeo",
		Status:       types.RunWaitingForUser,
		CurrentStep:  "Waiting",
		BrokersTotal: 1,
		ActionRequired: &types.ActionRequired{
			Type:    actionType,
			Message: "Do the thing",
		},
	})
}

func TestMonitorTracksProgress(t *testing.T) {
	ctrl := newFakeController()
	m := NewMonitor(ctrl)

	model, _ := m.Update(eventMsg{event: types.NewProgressEvent(types.Progress{
		BrokerName:   "Spokeo",
		Status:       types.RunRunning,
		CurrentStep:  "Filling the form",
		BrokersTotal: 2,
	})})
	m = model.(*Monitor)

	view := m.View()
	assert.Contains(t, view, "Spokeo")
	assert.Contains(t, view, "Filling the form")
}

func TestMonitorQuitsOnCompletion(t *testing.T) {
	ctrl := newFakeController()
	m := NewMonitor(ctrl)

	model, cmd := m.Update(eventMsg{event: types.NewCompletionEvent(types.Completion{
		RunID: "r-1", Total: 2, Succeeded: 1, Failed: 1,
	})})
	m = model.(*Monitor)

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Contains(t, m.View(), "1 succeeded")
	assert.Contains(t, m.View(), "1 failed")
}

func TestMonitorGateKeys(t *testing.T) {
	tests := []struct {
		key  string
		want types.GateResponse
	}{
		{"enter", types.GateProceed},
		{"c", types.GateProceed},
		{"r", types.GateRetry},
		{"s", types.GateSkip},
		{"a", types.GateAbort},
	}
	for _, tt := range tests {
		ctrl := newFakeController()
		m := NewMonitor(ctrl)
		model, _ := m.Update(eventMsg{event: waitingProgress(types.ActionStepFailed)})
		m = model.(*Monitor)

		m.Update(keyMsg(tt.key))
		require.Len(t, ctrl.responses, 1, "key %q", tt.key)
		assert.Equal(t, tt.want, ctrl.responses[0], "key %q", tt.key)
	}
}

func TestMonitorIgnoresGateKeysWhileRunning(t *testing.T) {
	ctrl := newFakeController()
	m := NewMonitor(ctrl)
	model, _ := m.Update(eventMsg{event: types.NewProgressEvent(types.Progress{
		Status: types.RunRunning, CurrentStep: "Clicking",
	})})
	m = model.(*Monitor)

	m.Update(keyMsg("r"))
	assert.Empty(t, ctrl.responses)
}

func TestMonitorCancelKeepsDraining(t *testing.T) {
	ctrl := newFakeController()
	m := NewMonitor(ctrl)

	model, cmd := m.Update(keyMsg("q"))
	m = model.(*Monitor)
	assert.True(t, ctrl.cancelled)
	// No quit yet; the completion event ends the program.
	assert.Nil(t, cmd)
	assert.True(t, m.cancelled)
}

func TestMonitorGateViewShowsFailureKeys(t *testing.T) {
	ctrl := newFakeController()
	m := NewMonitor(ctrl)
	model, _ := m.Update(eventMsg{event: waitingProgress(types.ActionStepFailed)})
	m = model.(*Monitor)

	view := m.View()
	assert.Contains(t, view, "Do the thing")
	assert.Contains(t, view, "retry")
	assert.Contains(t, view, "skip")
	assert.Contains(t, view, "abort")
}
