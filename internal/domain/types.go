// Package domain holds the value types shared across the orchestration
// tiers: the chat agent, the orchestrator, the worker pool, and the
// supporting stores. None of these types carry behavior of their own —
// they are the nouns every component reads and writes.
package domain

import "time"

// Urgency classifies how quickly a Work Request should be handled.
type Urgency string

const (
	UrgencyQuick  Urgency = "quick"
	UrgencyNormal Urgency = "normal"
)

// WorkRequest is produced by the Chat Agent when a message requires the
// Orchestrator rather than a plain conversational reply.
type WorkRequest struct {
	Task    string
	Context string
	Urgency Urgency
}

// WorkerTask is one unit of an Orchestrator Plan.
type WorkerTask struct {
	ID          string
	Description string
	Prompt      string
	DependsOn   []string
}

// Plan is the Orchestrator's planning-phase output.
type Plan struct {
	Summary    string
	Workers    []WorkerTask
	Sequential bool
}

// WorkerResult is produced exactly once per worker execution attempt.
type WorkerResult struct {
	TaskID   string
	Success  bool
	Result   string
	CostUSD  float64
	Duration time.Duration
}

// Summary is the Orchestrator's final report for one Work Request.
type Summary struct {
	OverallSuccess bool
	Summary        string
	WorkerResults  []WorkerResult
	TotalCostUSD   float64
	NeedsRestart   bool
}

// Tier classifies the role of an assistant invocation.
type Tier string

const (
	TierChat         Tier = "chat"
	TierOrchestrator Tier = "orchestrator"
	TierWorker       Tier = "worker"
)

// SessionData is the opaque resume handle the assistant CLI issues for a
// (chatID, tier) pair.
type SessionData struct {
	SessionID  string
	ProjectDir string
	LastUsedAt time.Time
}

// MemoryNoteSource distinguishes how a Memory Note was created.
type MemoryNoteSource string

const (
	MemorySourceAuto   MemoryNoteSource = "auto"
	MemorySourceManual MemoryNoteSource = "manual"
)

// MemoryNote is a durable per-chat fact.
type MemoryNote struct {
	ID        string
	ChatID    string
	Text      string
	Source    MemoryNoteSource
	CreatedAt time.Time
}

// ModelUsage aggregates token counts for one model within an invocation.
type ModelUsage struct {
	InputTokens              int
	OutputTokens             int
	CacheReadInputTokens     int
	CacheCreationInputTokens int
}

// InvocationRecord is an append-only record of one assistant call.
type InvocationRecord struct {
	Timestamp     time.Time
	ChatID        string
	Tier          Tier
	DurationMs    int64
	DurationAPIMs int64
	CostUSD       float64
	NumTurns      int
	StopReason    string
	IsError       bool
	ModelUsage    map[string]ModelUsage
}

// StatusUpdateType classifies a status update emitted to the chat surface.
type StatusUpdateType string

const (
	StatusTypeStatus        StatusUpdateType = "status"
	StatusTypePlanBreakdown StatusUpdateType = "plan_breakdown"
	StatusTypeWorkerComplete StatusUpdateType = "worker_complete"
)

// StatusUpdate is emitted by the Orchestrator to report progress.
type StatusUpdate struct {
	Type      StatusUpdateType
	Message   string
	Progress  float64
	Important bool
}

// Phase is the lifecycle stage of an Agent Registry Entry.
type Phase string

const (
	PhasePlanning     Phase = "planning"
	PhaseExecuting    Phase = "executing"
	PhaseSummarizing  Phase = "summarizing"
	PhaseComplete     Phase = "complete"
)

// Role distinguishes the two kinds of agents tracked by the registry.
type Role string

const (
	RoleOrchestrator Role = "orchestrator"
	RoleWorker       Role = "worker"
)
