// Package registry is the in-memory, process-wide directory of running
// agents — orchestrators and workers — keyed for external control (status
// dashboards, kill/retry commands). It replaces a single mutable global
// status value with an explicit, constructed component every caller shares
// by holding a reference to it.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relay-labs/rumpbot/internal/domain"
)

// outputBufferBytes bounds each worker's retained output to the latest N
// kilobytes, per the spec's recommended default.
const outputBufferBytes = 64 * 1024

// CancelHandle aborts one running agent. It is satisfied by a
// context.CancelFunc wrapped as registry.CancelFunc.
type CancelHandle interface {
	Cancel()
}

// CancelFunc adapts a plain function to CancelHandle.
type CancelFunc func()

// Cancel implements CancelHandle.
func (f CancelFunc) Cancel() { f() }

// Entry is one Agent Registry Entry: an orchestrator or a worker, tracked
// from registration through completion.
type Entry struct {
	ID              string
	Role            domain.Role
	ChatID          string
	Description     string
	Phase           domain.Phase
	ParentID        string
	WorkerNumber    int
	LastActivityAt  time.Time
	StartedAt       time.Time
	FinishedAt      time.Time
	Success         bool
	CostUSD         float64
	TaskID          string
	TaskPrompt      string
	TaskDescription string

	cancel CancelHandle
	output *outputRing
}

// Snapshot is a read-only copy of an Entry safe to hand to a dashboard
// without holding the registry's lock.
type Snapshot = Entry

// Registry is the thread-safe directory of agent entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// RegisterOrchestrator adds a new orchestrator entry in the planning
// phase and returns its id.
func (r *Registry) RegisterOrchestrator(chatID, description string) string {
	return r.register(&Entry{
		Role:        domain.RoleOrchestrator,
		ChatID:      chatID,
		Description: description,
		Phase:       domain.PhasePlanning,
	})
}

// RegisterWorker adds a new worker entry under parentID at the given
// 1-based workerNumber and returns its id.
func (r *Registry) RegisterWorker(chatID, parentID string, workerNumber int, taskID, taskDescription, taskPrompt string) string {
	return r.register(&Entry{
		Role:            domain.RoleWorker,
		ChatID:          chatID,
		Description:     taskDescription,
		Phase:           domain.PhaseExecuting,
		ParentID:        parentID,
		WorkerNumber:    workerNumber,
		TaskID:          taskID,
		TaskDescription: taskDescription,
		TaskPrompt:      taskPrompt,
	})
}

func (r *Registry) register(e *Entry) string {
	e.ID = uuid.NewString()
	e.StartedAt = time.Now()
	e.LastActivityAt = e.StartedAt
	e.output = newOutputRing(outputBufferBytes)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.ID] = e
	return e.ID
}

// Update mutates an entry's phase, description, and last-activity
// timestamp. A zero phase or empty description leaves that field
// unchanged.
func (r *Registry) Update(id string, phase domain.Phase, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	if phase != "" {
		e.Phase = phase
	}
	if description != "" {
		e.Description = description
	}
	e.LastActivityAt = time.Now()
}

// Touch refreshes an entry's last-activity timestamp without changing any
// other field, used by heartbeat and activity callbacks.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.LastActivityAt = time.Now()
	}
}

// Complete marks an entry finished with its final success flag and cost.
func (r *Registry) Complete(id string, success bool, costUSD float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	e.Phase = domain.PhaseComplete
	e.Success = success
	e.CostUSD = costUSD
	e.FinishedAt = time.Now()
}

// ActiveOrchestratorForChat returns the id of the one orchestrator entry
// for chatID that has not yet completed, if any, per the invariant that at
// most one may be active per chat.
func (r *Registry) ActiveOrchestratorForChat(chatID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Role == domain.RoleOrchestrator && e.ChatID == chatID && e.Phase != domain.PhaseComplete {
			return e.ID, true
		}
	}
	return "", false
}

// WorkerByParentAndNumber looks up a worker entry by its parent
// orchestrator id and 1-based workerNumber.
func (r *Registry) WorkerByParentAndNumber(parentID string, workerNumber int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Role == domain.RoleWorker && e.ParentID == parentID && e.WorkerNumber == workerNumber {
			return e.ID, true
		}
	}
	return "", false
}

// WorkersForParent enumerates every worker entry registered under
// parentID, in no particular order.
func (r *Registry) WorkersForParent(parentID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Role == domain.RoleWorker && e.ParentID == parentID {
			out = append(out, *e)
		}
	}
	return out
}

// SetCancelHandle attaches a cancellation handle to an entry, replacing
// any prior one.
func (r *Registry) SetCancelHandle(id string, handle CancelHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.cancel = handle
	}
}

// CancelHandle returns the entry's cancellation handle, if any.
func (r *Registry) CancelHandle(id string) (CancelHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.cancel == nil {
		return nil, false
	}
	return e.cancel, true
}

// RemoveCancelHandle clears an entry's cancellation handle once the agent
// it guarded has finished.
func (r *Registry) RemoveCancelHandle(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.cancel = nil
	}
}

// AppendOutput appends a chunk to an entry's bounded output buffer.
func (r *Registry) AppendOutput(id string, chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.output.append(chunk)
	}
}

// Output returns the current contents of an entry's output buffer.
func (r *Registry) Output(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return ""
	}
	return e.output.String()
}

// Get returns a snapshot copy of one entry.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Snapshot{}, false
	}
	return *e, true
}

// Snapshot returns a copy of every entry currently tracked, for the
// dashboard to render without holding the registry's lock.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}
