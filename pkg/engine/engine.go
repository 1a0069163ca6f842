package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/unlist/pkg/config"
	"github.com/entrhq/unlist/pkg/logging"
	"github.com/entrhq/unlist/pkg/playbook"
	"github.com/entrhq/unlist/pkg/registry"
	"github.com/entrhq/unlist/pkg/types"
)

var (
	// ErrRunActive is returned when a run is started while another is
	// still in flight.
	ErrRunActive = errors.New("a run is already active")
	// ErrNoRun is returned by Continue and Cancel when nothing is running.
	ErrNoRun = errors.New("no active run")
	// ErrNotWaiting is returned by Continue when the run is not suspended
	// at a gate.
	ErrNotWaiting = errors.New("run is not waiting for user action")
)

// ProfileSource supplies the profile snapshot a run fills forms from. The
// snapshot is taken once at run start so edits mid-run do not bleed in.
type ProfileSource interface {
	Snapshot() (*types.Profile, error)
}

// OutcomeSink records per-broker outcomes, typically the submission
// history store.
type OutcomeSink interface {
	RecordSuccess(broker registry.Broker, runID string) error
	RecordFailure(broker registry.Broker, runID, message string) error
}

// OutcomeReporter receives anonymous success/failure telemetry for
// community playbooks.
type OutcomeReporter interface {
	ReportOutcome(ctx context.Context, playbookID string, report playbook.OutcomeReport)
}

// Config wires an Engine's collaborators. Sessions and Resolver are
// required; the rest degrade gracefully when nil.
type Config struct {
	Sessions SessionFactory
	Resolver Resolver
	Profiles ProfileSource
	History  OutcomeSink
	Reporter OutcomeReporter

	// Navigation, when set, bounds which domains navigate actions may
	// reach.
	Navigation *config.NavigationPolicy

	// OperationTimeout bounds each browser operation. Defaults to 10s.
	OperationTimeout time.Duration

	// AppVersion is attached to outcome reports.
	AppVersion string

	Logger *logging.Logger
}

// gate is one suspension point. The response channel is buffered so the
// delivering goroutine never blocks, and the once guarantees at most one
// response is accepted per suspension.
type gate struct {
	ch   chan types.GateResponse
	once sync.Once
}

func newGate() *gate {
	return &gate{ch: make(chan types.GateResponse, 1)}
}

func (g *gate) deliver(resp types.GateResponse) {
	g.once.Do(func() { g.ch <- resp })
}

// Engine owns the run lifecycle. All public methods are safe for
// concurrent use; the run itself executes on a single goroutine.
type Engine struct {
	cfg    Config
	log    *logging.Logger
	events chan *types.Event

	mu     sync.Mutex
	status types.RunStatus
	runID  string
	gate   *gate
	cancel context.CancelFunc
}

// New creates an Engine. The returned engine is idle until StartRun.
func New(cfg Config) (*Engine, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("engine: session factory is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("engine: playbook resolver is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		var err error
		log, err = logging.NewLogger("engine")
		if err != nil {
			return nil, fmt.Errorf("failed to create engine logger: %w", err)
		}
	}
	return &Engine{
		cfg:    cfg,
		log:    log,
		events: make(chan *types.Event, 64),
		status: types.RunIdle,
	}, nil
}

// Events is the ordered stream of progress and completion events. The
// channel stays open across runs; consumers must drain it while a run is
// active.
func (e *Engine) Events() <-chan *types.Event {
	return e.events
}

// Status reports the current run status and run id ("" when idle).
func (e *Engine) Status() (types.RunStatus, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.runID
}

// StartRun begins a run over the given brokers. selections maps broker id
// to a playbook selection ("best", "local:<id>", or a catalog playbook
// id); missing entries default to "best". It returns the run id
// immediately; execution continues on a background goroutine.
func (e *Engine) StartRun(ctx context.Context, brokers []registry.Broker, selections map[string]string) (string, error) {
	if len(brokers) == 0 {
		return "", errors.New("no brokers selected")
	}

	var profile *types.Profile
	if e.cfg.Profiles != nil {
		var err error
		profile, err = e.cfg.Profiles.Snapshot()
		if err != nil {
			return "", fmt.Errorf("failed to load profile: %w", err)
		}
	}

	e.mu.Lock()
	if e.status.Active() {
		e.mu.Unlock()
		return "", ErrRunActive
	}
	runID := uuid.New().String()
	runCtx, cancel := context.WithCancel(ctx)
	e.status = types.RunRunning
	e.runID = runID
	e.cancel = cancel
	e.gate = nil
	e.mu.Unlock()

	e.log.Infof("run %s started with %d broker(s)", runID, len(brokers))
	go e.run(runCtx, runID, brokers, selections, profile)
	return runID, nil
}

// Continue resolves the pending gate with the given response. An empty
// response means plain continuation (GateProceed).
func (e *Engine) Continue(resp types.GateResponse) error {
	if resp == "" {
		resp = types.GateProceed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.status.Active() {
		return ErrNoRun
	}
	if e.status != types.RunWaitingForUser || e.gate == nil {
		return ErrNotWaiting
	}
	e.gate.deliver(resp)
	e.gate = nil
	return nil
}

// Cancel aborts the active run. The run tears down its browser session and
// finishes with a completion event; no further progress events follow.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.status.Active() || e.cancel == nil {
		return ErrNoRun
	}
	e.log.Infof("run %s cancelled", e.runID)
	e.cancel()
	return nil
}

func (e *Engine) setStatus(s types.RunStatus) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// armGate installs a fresh gate and flips the run to WaitingForUser. It is
// called only from the run goroutine.
func (e *Engine) armGate() *gate {
	g := newGate()
	e.mu.Lock()
	e.gate = g
	e.status = types.RunWaitingForUser
	e.mu.Unlock()
	return g
}

// awaitGate blocks until the user responds or the run is cancelled.
func (e *Engine) awaitGate(ctx context.Context, g *gate) (types.GateResponse, bool) {
	select {
	case <-ctx.Done():
		e.mu.Lock()
		if e.gate == g {
			e.gate = nil
		}
		e.mu.Unlock()
		return "", false
	case resp := <-g.ch:
		e.setStatus(types.RunRunning)
		return resp, true
	}
}

func (e *Engine) emit(ev *types.Event) {
	e.events <- ev
}

func (e *Engine) emitProgress(runID string, broker registry.Broker, step string, completed, total int, status types.RunStatus, action *types.ActionRequired, errMsg string) {
	e.emit(types.NewProgressEvent(types.Progress{
		RunID:            runID,
		BrokerID:         broker.ID,
		BrokerName:       broker.Name,
		Status:           status,
		CurrentStep:      step,
		BrokersCompleted: completed,
		BrokersTotal:     total,
		ActionRequired:   action,
		Error:            errMsg,
	}))
}
