// Package worker runs a single Worker Task through the assistant CLI and
// normalizes the outcome into a Worker Result.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/relay-labs/rumpbot/internal/assistant"
	"github.com/relay-labs/rumpbot/internal/domain"
)

// caller is the subset of *assistant.Invoker the executor needs.
type caller interface {
	Call(ctx context.Context, in assistant.CallInput) (assistant.Result, error)
}

// RawInvocation is the raw payload one call produced, tagged with its
// originating tier so the orchestrator can forward it to the invocation
// logger without the executor knowing anything about logging.
type RawInvocation struct {
	Tier     string
	TaskID   string
	Result   assistant.Result
	Duration time.Duration
}

// Config is the worker tier's model, turn cap, and timeout.
type Config struct {
	Model    string
	MaxTurns int
	Timeout  time.Duration
}

// Executor runs Worker Tasks through the assistant CLI.
type Executor struct {
	invoker caller
	config  Config
}

// New constructs an Executor.
func New(invoker caller, config Config) *Executor {
	return &Executor{invoker: invoker, config: config}
}

// RunOpts carries the per-call collaborators a supervised run needs beyond
// the task itself: the working directory, an optional session to resume,
// and the independent activity/output/raw-invocation effect channels.
type RunOpts struct {
	Cwd        string
	SessionID  string
	OnActivity func()
	OnOutput   func(chunk string)
	OnRaw      func(RawInvocation)
}

// Run executes one task, using ctx as the worker's per-worker cancellation
// token.
func (e *Executor) Run(ctx context.Context, task domain.WorkerTask, opts RunOpts) domain.WorkerResult {
	start := time.Now()
	result, err := e.invoker.Call(ctx, assistant.CallInput{
		Prompt:     task.Prompt,
		Model:      e.config.Model,
		MaxTurns:   e.config.MaxTurns,
		SessionID:  opts.SessionID,
		Cwd:        opts.Cwd,
		Timeout:    e.config.Timeout,
		OnActivity: opts.OnActivity,
		OnOutput:   opts.OnOutput,
	})
	duration := time.Since(start)

	if opts.OnRaw != nil {
		opts.OnRaw(RawInvocation{Tier: "worker", TaskID: task.ID, Result: result, Duration: duration})
	}

	if err != nil {
		return domain.WorkerResult{
			TaskID:   task.ID,
			Success:  false,
			Result:   cancelledResultText(err),
			Duration: duration,
		}
	}

	return domain.WorkerResult{
		TaskID:   task.ID,
		Success:  !result.IsError,
		Result:   result.Text,
		CostUSD:  result.CostUSD,
		Duration: duration,
	}
}

// cancelledResultText distinguishes why a call did not complete: the
// caller's own per-worker cancellation ("killed by user"), a call-scoped
// timeout, or any other invoker-level failure.
func cancelledResultText(err error) string {
	switch {
	case errors.Is(err, assistant.ErrTimeout):
		return "timed out"
	case errors.Is(err, assistant.ErrCancelled):
		return "killed by user"
	default:
		return "worker error: " + err.Error()
	}
}
