package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/relay-labs/rumpbot/internal/domain"
)

// runSequential runs plan.Workers one at a time in source order, stopping
// at the first failure (fail-fast). Each worker's prompt is prefixed with
// the plan summary and the truncated result of every worker that ran
// before it.
func (o *Orchestrator) runSequential(ctx context.Context, chatID, orchID string, plan domain.Plan, cwd string, cb Callbacks) ([]domain.WorkerResult, int) {
	var results []domain.WorkerResult

	for i, task := range plan.Workers {
		if ctx.Err() != nil {
			break
		}

		task.Prompt = buildWorkerPrompt(plan, task, results)
		result := o.runSupervisedWorker(ctx, chatID, orchID, i+1, task, cwd, cb)
		results = append(results, result)

		cb.status(domain.StatusUpdate{
			Type:    domain.StatusTypeWorkerComplete,
			Message: fmt.Sprintf("worker %d/%d: %s", i+1, len(plan.Workers), outcomeLabel(result)),
		})

		if !result.Success {
			return results, len(plan.Workers) - len(results)
		}
	}

	return results, 0
}

// runParallel runs plan.Workers in dependency-ordered rounds: every worker
// whose dependencies all completed in an earlier round runs concurrently
// with its round-mates. After each round, every pending worker that
// transitively depends on a failed worker is skipped (fail-fast) and
// produces no result. A round with no runnable worker, while unscheduled
// workers remain, is a deadlock. The returned int counts skipped workers.
func (o *Orchestrator) runParallel(ctx context.Context, chatID, orchID string, plan domain.Plan, cwd string, cb Callbacks) ([]domain.WorkerResult, int, bool) {
	pending := make(map[string]domain.WorkerTask, len(plan.Workers))
	order := make([]string, 0, len(plan.Workers))
	for _, w := range plan.Workers {
		pending[w.ID] = w
		order = append(order, w.ID)
	}

	done := make(map[string]domain.WorkerResult, len(plan.Workers))
	numbers := make(map[string]int, len(plan.Workers))
	for i, id := range order {
		numbers[id] = i + 1
	}

	var results []domain.WorkerResult
	failSkipped := make(map[string]bool)

	for len(pending) > 0 {
		if ctx.Err() != nil {
			break
		}

		runnable := readyTasks(pending, done)
		if len(runnable) == 0 {
			skipped := len(pending) + len(failSkipped)
			for _, id := range order {
				if task, ok := pending[id]; ok {
					results = append(results, domain.WorkerResult{
						TaskID:  task.ID,
						Success: false,
						Result:  "skipped: unresolved dependency (deadlock)",
					})
				}
			}
			return results, skipped, true
		}

		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, task := range runnable {
			task := task
			wg.Add(1)
			go func() {
				defer wg.Done()
				priorResults := priorResultsFor(done, task.DependsOn)
				fullTask := task
				fullTask.Prompt = buildWorkerPrompt(plan, task, priorResults)
				result := o.runSupervisedWorker(ctx, chatID, orchID, numbers[task.ID], fullTask, cwd, cb)

				mu.Lock()
				done[task.ID] = result
				delete(pending, task.ID)
				mu.Unlock()

				cb.status(domain.StatusUpdate{
					Type:    domain.StatusTypeWorkerComplete,
					Message: fmt.Sprintf("worker %d/%d: %s", numbers[task.ID], len(order), outcomeLabel(result)),
				})
			}()
		}
		wg.Wait()

		// Fail-fast: drop every pending worker that depends, directly or transitively, on a failed one.
		for changed := true; changed; {
			changed = false
			for id, task := range pending {
				for _, dep := range task.DependsOn {
					if r, ok := done[dep]; (ok && !r.Success) || failSkipped[dep] {
						delete(pending, id)
						failSkipped[id], changed = true, true
						break
					}
				}
			}
		}
	}

	for _, id := range order {
		if result, ok := done[id]; ok {
			results = append(results, result)
		}
	}
	return results, len(failSkipped), false
}

// readyTasks returns every pending task whose DependsOn ids have all
// already completed, in no particular order.
func readyTasks(pending map[string]domain.WorkerTask, done map[string]domain.WorkerResult) []domain.WorkerTask {
	var ready []domain.WorkerTask
	for _, task := range pending {
		satisfied := true
		for _, dep := range task.DependsOn {
			if _, ok := done[dep]; !ok {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, task)
		}
	}
	return ready
}

// priorResultsFor returns the completed results of exactly the given
// dependency ids, so a worker's prompt only ever sees its own declared
// dependencies rather than every worker that happens to have finished so
// far.
func priorResultsFor(done map[string]domain.WorkerResult, dependsOn []string) []domain.WorkerResult {
	out := make([]domain.WorkerResult, 0, len(dependsOn))
	for _, id := range dependsOn {
		if r, ok := done[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// buildWorkerPrompt prefixes a worker's own prompt with the plan summary
// and the truncated results in prior (every earlier worker in sequential
// mode, only the declared dependencies in parallel mode), so each worker
// sees the overall goal plus the results it builds on.
func buildWorkerPrompt(plan domain.Plan, task domain.WorkerTask, prior []domain.WorkerResult) string {
	var b strings.Builder
	if plan.Summary != "" {
		fmt.Fprintf(&b, "Overall plan: %s\n\n", plan.Summary)
	}
	if len(prior) > 0 {
		b.WriteString("Results so far:\n")
		for _, r := range prior {
			fmt.Fprintf(&b, "- %s: %s\n", r.TaskID, truncateResult(r.Result))
		}
		b.WriteString("\n")
	}
	b.WriteString(task.Prompt)
	return b.String()
}

// truncateResult bounds a prior worker's result text to MaxResultChars so
// a long chain of dependent workers can't blow up a later prompt.
func truncateResult(text string) string {
	if len(text) <= MaxResultChars {
		return text
	}
	return text[:MaxResultChars] + "... [truncated]"
}

// outcomeLabel is a short human-readable tag for a status update.
func outcomeLabel(r domain.WorkerResult) string {
	if r.Success {
		return "done"
	}
	return "failed (" + r.Result + ")"
}
