package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/relay-labs/rumpbot/internal/assistant"
	"github.com/relay-labs/rumpbot/internal/domain"
)

// summarize runs Phase 3: a short, tools-disabled call that turns the
// plan and worker results into a chat-facing summary. It uses a fresh
// independent timeout rather than the (possibly already expired)
// orchestration context, so a run that timed out mid-execution still gets
// a summary. If the call itself fails, summarize falls back to a
// deterministic synthesis built from the raw results.
func (o *Orchestrator) summarize(ctx context.Context, req domain.WorkRequest, plan domain.Plan, results []domain.WorkerResult, totalCost float64, skipped int, timedOut, deadlocked bool) (string, float64) {
	summaryCtx, cancel := context.WithTimeout(context.Background(), SummaryTimeout)
	defer cancel()

	prompt := summaryPrompt(req, plan, results, skipped, timedOut, deadlocked)
	result, err := o.invoker.Call(summaryCtx, assistant.CallInput{
		Prompt:       prompt,
		SystemPrompt: o.config.SummaryPrompt,
		Model:        o.config.SummaryModel,
		MaxTurns:     1,
		AllowedTools: []string{},
		Timeout:      SummaryTimeout,
	})
	if err != nil {
		return fallbackSummary(req, results, skipped, timedOut, deadlocked), 0
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return fallbackSummary(req, results, skipped, timedOut, deadlocked), result.CostUSD
	}
	return text, result.CostUSD
}

func summaryPrompt(req domain.WorkRequest, plan domain.Plan, results []domain.WorkerResult, skipped int, timedOut, deadlocked bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", req.Task)
	if plan.Summary != "" {
		fmt.Fprintf(&b, "Plan: %s\n", plan.Summary)
	}
	b.WriteString("Worker outcomes:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "- %s: %s - %s\n", r.TaskID, outcomeLabel(r), truncateResult(r.Result))
	}
	if skipped > 0 {
		fmt.Fprintf(&b, "%d worker(s) were skipped.\n", skipped)
	}
	if timedOut {
		b.WriteString("The run hit its overall time limit.\n")
	}
	if deadlocked {
		b.WriteString("The plan had an unresolved dependency cycle.\n")
	}
	b.WriteString("\nWrite a brief chat-facing summary of what happened.")
	return b.String()
}

// fallbackSummary deterministically synthesizes a summary when the
// summary call itself fails, so a broken summarizer never hides whether
// the underlying work succeeded.
func fallbackSummary(req domain.WorkRequest, results []domain.WorkerResult, skipped int, timedOut, deadlocked bool) string {
	var b strings.Builder
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	fmt.Fprintf(&b, "%s: %d/%d worker(s) succeeded", req.Task, succeeded, len(results))
	if skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", skipped)
	}
	if timedOut {
		b.WriteString(", run timed out")
	}
	if deadlocked {
		b.WriteString(", dependency deadlock")
	}
	b.WriteString(".")
	return b.String()
}

// needsRestart reports whether the orchestrator's output suggests a
// dependent service must be restarted: an explicit mention of "restart"
// alongside one of the configured service tokens, searched across the
// plan summary, the original task, and every worker result.
func needsRestart(planSummary, task string, results []domain.WorkerResult, serviceTokens []string) bool {
	if len(serviceTokens) == 0 {
		return false
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(planSummary))
	b.WriteString(" ")
	b.WriteString(strings.ToLower(task))
	for _, r := range results {
		b.WriteString(" ")
		b.WriteString(strings.ToLower(r.Result))
	}
	haystack := b.String()

	if !strings.Contains(haystack, "restart") {
		return false
	}
	for _, token := range serviceTokens {
		if token == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(token)) {
			return true
		}
	}
	return false
}
