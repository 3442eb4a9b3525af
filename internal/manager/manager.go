// Package manager owns the live execution registry. It admits at most one
// active execution at a time, drives the state machine for each execution,
// and fans out status snapshots to subscribers.
package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kekahyde/inferd/internal/model"
	"github.com/kekahyde/inferd/internal/store"
)

var (
	// ErrConflict is returned by Start while another execution is active.
	ErrConflict = errors.New("another execution is already active")
	// ErrNotFound is returned when no execution with the given id exists.
	ErrNotFound = errors.New("execution not found")
	// ErrInvalidState is returned by Cancel when the execution is not running.
	ErrInvalidState = errors.New("execution is not running")
)

// Handle is what Start gives the caller: enough to run the work and to
// observe cancellation. Ctx is cancelled when the execution is cancelled.
type Handle struct {
	ID     string
	Prompt string
	Policy model.Policy
	Ctx    context.Context
}

type execution struct {
	exec   *model.Execution
	cancel context.CancelFunc
}

// Manager tracks all executions for the lifetime of the daemon and enforces
// the single-flight rule. It is safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	executions map[string]*execution
	active     string

	broker *Broker
	store  store.Store
	logger *slog.Logger
}

// New creates a Manager. st may be nil, in which case no history is persisted.
func New(st store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		executions: make(map[string]*execution),
		broker:     NewBroker(),
		store:      st,
		logger:     logger,
	}
}

// Start admits a new execution. It fails with ErrConflict if another
// execution is still active; the check and the claim are one atomic step,
// so concurrent callers race for a single winner. The new execution starts
// in the Queued state.
func (m *Manager) Start(prompt string, policy model.Policy) (Handle, error) {
	exec := &model.Execution{
		ID:        model.NewID(),
		Prompt:    prompt,
		Policy:    policy,
		State:     model.StateQueued,
		CreatedAt: time.Now().UTC(),
	}
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.active != "" {
		m.mu.Unlock()
		cancel()
		return Handle{}, ErrConflict
	}
	m.active = exec.ID
	m.executions[exec.ID] = &execution{exec: exec, cancel: cancel}
	snap := exec.Snapshot()
	record := *exec
	m.mu.Unlock()

	m.logger.Info("execution admitted", "execution_id", exec.ID)
	m.persist(record, true)
	m.broker.Publish(snap)

	return Handle{ID: exec.ID, Prompt: prompt, Policy: policy, Ctx: ctx}, nil
}

// Get returns the current status snapshot for an execution.
func (m *Manager) Get(id string) (model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.executions[id]
	if !ok {
		return model.Snapshot{}, ErrNotFound
	}
	return e.exec.Snapshot(), nil
}

// Busy reports whether an execution is currently active.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != ""
}

// Active returns the id of the active execution, if any.
func (m *Manager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != ""
}

// Cancel requests cancellation of a running execution. Only the Running
// state is cancellable; terminal and queued executions report
// ErrInvalidState. The transition to Cancelled happens here, immediately,
// so a completion racing in from the worker loses and is discarded.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	e, ok := m.executions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if e.exec.State != model.StateRunning {
		m.mu.Unlock()
		return ErrInvalidState
	}
	e.exec.State = model.StateCancelled
	if m.active == id {
		m.active = ""
	}
	snap := e.exec.Snapshot()
	record := *e.exec
	cancel := e.cancel
	m.mu.Unlock()

	cancel()
	m.logger.Info("execution cancelled", "execution_id", id)
	m.persist(record, false)
	m.broker.Publish(snap)
	return nil
}

// Update transitions an execution to a new state, recording a result or an
// error message for terminal states. Invalid transitions, including any
// update after a terminal state, are silently discarded; this is what makes
// worker completions racing against Cancel safe to ignore.
func (m *Manager) Update(id, state, result, errMsg string) {
	m.mu.Lock()
	e, ok := m.executions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if !model.ValidTransition(e.exec.State, state) {
		m.mu.Unlock()
		return
	}
	e.exec.State = state
	e.exec.Result = result
	e.exec.Error = errMsg
	if state != model.StateRunning && m.active == id {
		m.active = ""
	}
	snap := e.exec.Snapshot()
	record := *e.exec
	m.mu.Unlock()

	m.logger.Info("execution state changed", "execution_id", id, "state", state)
	m.persist(record, false)
	m.broker.Publish(snap)
}

// Subscribe returns a channel of status snapshots and an unsubscribe
// function. See Broker for delivery semantics.
func (m *Manager) Subscribe() (<-chan model.Snapshot, func()) {
	return m.broker.Subscribe()
}

// persist writes the execution through to the history store. Persistence is
// best-effort; a store failure is logged and does not affect live state.
func (m *Manager) persist(e model.Execution, create bool) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if create {
		err = m.store.CreateExecution(ctx, &e)
	} else {
		err = m.store.UpdateExecution(ctx, &e)
	}
	if err != nil {
		m.logger.Error("failed to persist execution", "execution_id", e.ID, "error", err)
	}
}
