package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/relay-labs/rumpbot/internal/assistant"
	"github.com/relay-labs/rumpbot/internal/domain"
)

// planJSON is the wire shape the planning call's output contract defines.
type planJSON struct {
	Type       string          `json:"type"`
	Summary    string          `json:"summary"`
	Workers    []planWorkerJSON `json:"workers"`
	Sequential bool            `json:"sequential"`
}

type planWorkerJSON struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Prompt      string   `json:"prompt"`
	DependsOn   []string `json:"dependsOn"`
}

// parsePlan recovers the plan JSON from free-form assistant text (applying
// the §4.1 fallback strategies), validates every worker, and caps the
// worker count at MaxWorkers, keeping the first MaxWorkers by source
// order.
func parsePlan(text string) (domain.Plan, error) {
	raw, ok := assistant.FindJSONObject(text)
	if !ok {
		return domain.Plan{}, fmt.Errorf("%w: no JSON object found in planning response", ErrPlanParse)
	}

	var p planJSON
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Plan{}, fmt.Errorf("%w: %v", ErrPlanParse, err)
	}

	if len(p.Workers) == 0 {
		return domain.Plan{}, fmt.Errorf("%w: plan has no workers", ErrPlanParse)
	}

	workers := make([]domain.WorkerTask, 0, len(p.Workers))
	for _, w := range p.Workers {
		if w.ID == "" || w.Prompt == "" {
			return domain.Plan{}, fmt.Errorf("%w: worker missing id or prompt", ErrPlanParse)
		}
		workers = append(workers, domain.WorkerTask{
			ID:          w.ID,
			Description: w.Description,
			Prompt:      w.Prompt,
			DependsOn:   w.DependsOn,
		})
	}

	if len(workers) > MaxWorkers {
		workers = workers[:MaxWorkers]
	}

	return domain.Plan{
		Summary:    p.Summary,
		Workers:    workers,
		Sequential: p.Sequential,
	}, nil
}
