package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/relay-labs/rumpbot/internal/assistant"
	"github.com/relay-labs/rumpbot/internal/domain"
	"github.com/relay-labs/rumpbot/internal/governance"
	"github.com/relay-labs/rumpbot/internal/registry"
	"github.com/relay-labs/rumpbot/internal/worker"
)

// runSupervisedWorker runs one worker task to completion, applying the
// automatic transient-error retry on top of runOnce's per-attempt
// supervision.
func (o *Orchestrator) runSupervisedWorker(ctx context.Context, chatID, parentID string, workerNumber int, task domain.WorkerTask, cwd string, cb Callbacks) domain.WorkerResult {
	result := o.runOnce(ctx, chatID, parentID, workerNumber, task, cwd, cb)

	if !result.Success && assistant.IsTransient(result.Result) && ctx.Err() == nil {
		if sleepOrDone(ctx, RetryBackoff) {
			firstAttemptCost := result.CostUSD
			retryTask := task
			retryTask.ID = task.ID + "-retry"
			result = o.runOnce(ctx, chatID, parentID, workerNumber, retryTask, cwd, cb)
			result.CostUSD += firstAttemptCost
		}
	}

	return result
}

// runOnce gates the task through the governance policy, registers it in
// the Agent Registry, and runs it under the full set of per-worker
// supervision timers.
func (o *Orchestrator) runOnce(ctx context.Context, chatID, parentID string, workerNumber int, task domain.WorkerTask, cwd string, cb Callbacks) domain.WorkerResult {
	if o.policy != nil {
		decision, err := o.policy.Evaluate(ctx, governance.Request{
			TaskID:      task.ID,
			Description: task.Description,
			Prompt:      task.Prompt,
			ChatID:      chatID,
		})
		if err == nil && decision.Effect == governance.EffectDeny {
			return domain.WorkerResult{
				TaskID:  task.ID,
				Success: false,
				Result:  "denied by policy: " + decision.Reason,
			}
		}
	}

	workerCtx, cancelWorker := context.WithTimeout(ctx, WorkerTimeout)
	defer cancelWorker()

	regID := o.reg.RegisterWorker(chatID, parentID, workerNumber, task.ID, task.Description, task.Prompt)
	o.reg.SetCancelHandle(regID, registry.CancelFunc(cancelWorker))
	defer o.reg.RemoveCancelHandle(regID)
	if o.logger != nil {
		o.logger.LogWorkerSpawn(chatID, task.ID, workerNumber, task.Description)
	}

	var lastActivity atomic.Int64
	lastActivity.Store(time.Now().UnixNano())

	onActivity := func() {
		lastActivity.Store(time.Now().UnixNano())
		o.reg.Touch(regID)
	}
	onOutput := func(chunk string) {
		o.reg.AppendOutput(regID, chunk)
	}

	done := make(chan domain.WorkerResult, 1)
	go func() {
		done <- o.workerExec.Run(workerCtx, task, worker.RunOpts{
			Cwd:        cwd,
			OnActivity: onActivity,
			OnOutput:   onOutput,
			OnRaw: func(raw worker.RawInvocation) {
				cb.invocation(rawToRecord(chatID, raw))
			},
		})
	}()

	heartbeat := time.NewTicker(HeartbeatEvery)
	defer heartbeat.Stop()
	stallCheck := time.NewTicker(StallCheckEvery)
	defer stallCheck.Stop()

	startedAt := time.Now()
	warned := false

	for {
		select {
		case result := <-done:
			o.reg.Complete(regID, result.Success, result.CostUSD)
			if o.logger != nil {
				o.logger.LogRegistry(chatID, regID, result.Success, result.CostUSD)
			}
			return result

		case <-heartbeat.C:
			o.reg.Touch(regID)
			cb.status(domain.StatusUpdate{
				Type:    domain.StatusTypeStatus,
				Message: fmt.Sprintf("worker %d still running (%s)", workerNumber, humanize.Time(startedAt)),
			})

		case <-stallCheck.C:
			idle := time.Since(time.Unix(0, lastActivity.Load()))
			switch {
			case idle >= StallKillAt:
				cb.status(domain.StatusUpdate{
					Type:      domain.StatusTypeStatus,
					Message:   fmt.Sprintf("worker %d stalled for %s, cancelling", workerNumber, idle.Round(time.Second)),
					Important: true,
				})
				if o.logger != nil {
					o.logger.LogWorkerKill(chatID, task.ID, fmt.Sprintf("stalled for %s", idle.Round(time.Second)))
				}
				cancelWorker()
			case idle >= StallWarningAt && !warned:
				warned = true
				cb.status(domain.StatusUpdate{
					Type:    domain.StatusTypeStatus,
					Message: fmt.Sprintf("worker %d has been quiet for %s", workerNumber, idle.Round(time.Second)),
				})
				if o.logger != nil {
					o.logger.LogWorkerStall(chatID, task.ID, idle.Seconds())
				}
			case idle < StallWarningAt:
				warned = false
			}
		}
	}
}

// sleepOrDone waits for d, returning false early if ctx is cancelled
// first so the retry backoff never outlives the run.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func rawToRecord(chatID string, raw worker.RawInvocation) domain.InvocationRecord {
	return domain.InvocationRecord{
		Timestamp:  time.Now(),
		ChatID:     chatID,
		Tier:       domain.TierWorker,
		DurationMs: raw.Duration.Milliseconds(),
		CostUSD:    raw.Result.CostUSD,
		NumTurns:   raw.Result.NumTurns,
		StopReason: raw.Result.StopReason,
		IsError:    raw.Result.IsError,
	}
}

// KillWorker cancels exactly the worker at (parentID, workerNumber) via
// its registry-held cancellation handle, without affecting the
// orchestrator or any other worker.
func (o *Orchestrator) KillWorker(parentID string, workerNumber int) error {
	id, ok := o.reg.WorkerByParentAndNumber(parentID, workerNumber)
	if !ok {
		return fmt.Errorf("orchestrator: no worker %d for run %s", workerNumber, parentID)
	}
	handle, ok := o.reg.CancelHandle(id)
	if !ok {
		return fmt.Errorf("orchestrator: worker %d for run %s is not cancellable", workerNumber, parentID)
	}
	if o.logger != nil {
		if entry, ok := o.reg.Get(id); ok {
			o.logger.LogWorkerKill(entry.ChatID, entry.TaskID, "killed by operator")
		}
	}
	handle.Cancel()
	return nil
}

// RetryWorker re-runs the worker at (parentID, workerNumber) under a
// fresh cancellation handle and returns its new Worker Result. It does
// not mutate a previously returned Summary; the caller is responsible for
// surfacing the updated result to the chat surface.
func (o *Orchestrator) RetryWorker(ctx context.Context, chatID, parentID string, workerNumber int, cwd string, cb Callbacks) (domain.WorkerResult, error) {
	id, ok := o.reg.WorkerByParentAndNumber(parentID, workerNumber)
	if !ok {
		return domain.WorkerResult{}, fmt.Errorf("orchestrator: no worker %d for run %s", workerNumber, parentID)
	}
	entry, ok := o.reg.Get(id)
	if !ok {
		return domain.WorkerResult{}, fmt.Errorf("orchestrator: worker %d for run %s vanished", workerNumber, parentID)
	}

	task := domain.WorkerTask{
		ID:          entry.TaskID + "-retry",
		Description: entry.TaskDescription,
		Prompt:      entry.TaskPrompt,
	}
	return o.runSupervisedWorker(ctx, chatID, parentID, workerNumber, task, cwd, cb), nil
}
