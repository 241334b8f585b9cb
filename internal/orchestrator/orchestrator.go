// Package orchestrator plans a Work Request into Worker Tasks, schedules
// and supervises their execution, and summarizes the outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relay-labs/rumpbot/internal/assistant"
	"github.com/relay-labs/rumpbot/internal/domain"
	"github.com/relay-labs/rumpbot/internal/governance"
	"github.com/relay-labs/rumpbot/internal/observability"
	"github.com/relay-labs/rumpbot/internal/registry"
	"github.com/relay-labs/rumpbot/internal/worker"
)

// Resource bounds and timers, per the orchestration design.
const (
	MaxWorkers      = 10
	MaxResultChars  = 8000
	WorkerTimeout   = 5 * time.Minute
	HeartbeatEvery  = 60 * time.Second
	StallCheckEvery = 30 * time.Second
	StallWarningAt  = 120 * time.Second
	StallKillAt     = 300 * time.Second
	OrchTimeout     = 60 * time.Minute
	SummaryTimeout  = 30 * time.Second
	RetryBackoff    = 3 * time.Second
)

// Sentinel errors the orchestrator surfaces.
var (
	ErrPlanParse = errors.New("orchestrator: plan parse failed")
	ErrDeadlock  = errors.New("orchestrator: dependency deadlock")
)

// caller is the subset of *assistant.Invoker the orchestrator needs for
// its own planning and summary calls.
type caller interface {
	Call(ctx context.Context, in assistant.CallInput) (assistant.Result, error)
}

// Callbacks are the independent effect channels the orchestrator emits to
// while running. Each is called synchronously and must not block; none
// are required.
type Callbacks struct {
	OnStatusUpdate func(domain.StatusUpdate)
	OnInvocation   func(domain.InvocationRecord)
}

func (cb Callbacks) status(u domain.StatusUpdate) {
	if cb.OnStatusUpdate != nil {
		cb.OnStatusUpdate(u)
	}
}

func (cb Callbacks) invocation(rec domain.InvocationRecord) {
	if cb.OnInvocation != nil {
		cb.OnInvocation(rec)
	}
}

// Config carries the orchestrator and summary tiers' model settings and
// the service-name tokens used to detect a needsRestart condition.
type Config struct {
	PlanningModel    string
	PlanningPrompt   string
	PlanningTimeout  time.Duration
	SummaryModel     string
	SummaryPrompt    string
	ServiceTokens    []string
}

// Orchestrator plans, schedules, supervises, and summarizes one Work
// Request at a time per chat.
type Orchestrator struct {
	invoker    caller
	workerExec *worker.Executor
	reg        *registry.Registry
	policy     governance.PolicyEngine
	logger     *observability.Logger
	config     Config
}

// New constructs an Orchestrator. policy may be nil, in which case every
// worker task is allowed. logger may be nil, in which case worker
// spawn/stall/kill and registry-completion events are simply not logged.
func New(invoker caller, workerExec *worker.Executor, reg *registry.Registry, policy governance.PolicyEngine, logger *observability.Logger, config Config) *Orchestrator {
	return &Orchestrator{invoker: invoker, workerExec: workerExec, reg: reg, policy: policy, logger: logger, config: config}
}

// Execute runs the full plan/schedule/summarize lifecycle for one Work
// Request. ctx cancellation aborts the whole run; the summary phase still
// runs best-effort against a short independent timeout.
func (o *Orchestrator) Execute(ctx context.Context, chatID string, req domain.WorkRequest, cwd string, cb Callbacks) domain.Summary {
	orchID := o.reg.RegisterOrchestrator(chatID, req.Task)

	orchCtx, cancelOrch := context.WithTimeout(ctx, OrchTimeout)
	defer cancelOrch()

	var totalCost float64
	var timedOut bool

	plan, planCost, err := o.plan(orchCtx, chatID, req, cwd, cb)
	totalCost += planCost
	if err != nil {
		summary := domain.Summary{
			OverallSuccess: false,
			Summary:        "Planning failed: " + err.Error(),
			WorkerResults:  nil,
			TotalCostUSD:   totalCost,
		}
		o.reg.Complete(orchID, false, totalCost)
		return summary
	}

	o.reg.Update(orchID, domain.PhaseExecuting, req.Task)
	cb.status(domain.StatusUpdate{
		Type:      domain.StatusTypePlanBreakdown,
		Message:   fmt.Sprintf("Plan: %d worker(s), %s mode", len(plan.Workers), modeLabel(plan.Sequential)),
		Important: true,
	})

	var results []domain.WorkerResult
	var failFastSkipped int
	var deadlocked bool

	if plan.Sequential {
		results, failFastSkipped = o.runSequential(orchCtx, chatID, orchID, plan, cwd, cb)
	} else {
		results, failFastSkipped, deadlocked = o.runParallel(orchCtx, chatID, orchID, plan, cwd, cb)
	}

	for _, r := range results {
		totalCost += r.CostUSD
	}

	if orchCtx.Err() == context.DeadlineExceeded {
		timedOut = true
	}

	o.reg.Update(orchID, domain.PhaseSummarizing, req.Task)
	summaryText, summaryCost := o.summarize(ctx, req, plan, results, totalCost, failFastSkipped, timedOut, deadlocked)
	totalCost += summaryCost

	overallSuccess := len(results) > 0 && !deadlocked
	for _, r := range results {
		if !r.Success {
			overallSuccess = false
		}
	}

	summary := domain.Summary{
		OverallSuccess: overallSuccess,
		Summary:        summaryText,
		WorkerResults:  results,
		TotalCostUSD:   totalCost,
		NeedsRestart:   needsRestart(plan.Summary, req.Task, results, o.config.ServiceTokens),
	}

	o.reg.Complete(orchID, overallSuccess, totalCost)
	return summary
}

// plan runs Phase 1: a tools-disabled, maxTurns=1 call whose output is
// parsed as a Plan.
func (o *Orchestrator) plan(ctx context.Context, chatID string, req domain.WorkRequest, cwd string, cb Callbacks) (domain.Plan, float64, error) {
	start := time.Now()
	prompt := planningPrompt(req)
	timeout := o.config.PlanningTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	result, err := o.invoker.Call(ctx, assistant.CallInput{
		Prompt:       prompt,
		SystemPrompt: o.config.PlanningPrompt,
		Model:        o.config.PlanningModel,
		MaxTurns:     1,
		AllowedTools: []string{},
		Cwd:          cwd,
		Timeout:      timeout,
	})
	duration := time.Since(start)

	if err != nil {
		return domain.Plan{}, 0, err
	}

	cb.invocation(domain.InvocationRecord{
		Timestamp:  start,
		ChatID:     chatID,
		Tier:       domain.TierOrchestrator,
		DurationMs: duration.Milliseconds(),
		CostUSD:    result.CostUSD,
		NumTurns:   result.NumTurns,
		StopReason: result.StopReason,
		IsError:    result.IsError,
	})

	plan, err := parsePlan(result.Text)
	if err != nil {
		return domain.Plan{}, result.CostUSD, err
	}
	return plan, result.CostUSD, nil
}

func planningPrompt(req domain.WorkRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", req.Task)
	if req.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", req.Context)
	}
	fmt.Fprintf(&b, "Urgency: %s\n", req.Urgency)
	return b.String()
}

func modeLabel(sequential bool) string {
	if sequential {
		return "sequential"
	}
	return "parallel"
}
