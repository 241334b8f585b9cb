// Package governance gates a Worker Task before it is ever spawned,
// rejecting prompts or descriptions that match a configured denylist
// before the orchestrator hands them to a worker.
package governance

import (
	"context"
	"fmt"
	"regexp"
)

// Effect is the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes a Worker Task awaiting a spawn decision.
type Request struct {
	TaskID      string
	Description string
	Prompt      string
	ChatID      string
}

// Result is the outcome of one policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates worker tasks against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies a task when its prompt or description matches
// any configured pattern.
type DefaultPolicyEngine struct {
	DeniedRegex []*regexp.Regexp
}

// NewDefaultPolicyEngine returns a policy engine with no rules configured;
// every task is allowed until a pattern is added.
func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{DeniedRegex: make([]*regexp.Regexp, 0)}
}

// DenyPattern compiles pattern and adds it to the denylist. Use the `(?i)`
// regexp flag for case-insensitive matching.
func (e *DefaultPolicyEngine) DenyPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

// Evaluate checks req's prompt and description against the denylist.
func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	combined := req.Description + "\n" + req.Prompt
	for _, re := range e.DeniedRegex {
		if re.MatchString(combined) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("task matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "approved by default policy",
	}, nil
}

// DefaultDeniedPatterns are the destructive shell patterns a worker task
// is rejected for attempting, regardless of configuration.
var DefaultDeniedPatterns = []string{
	`rm\s+-rf\s+/`,
	`mkfs`,
	`shutdown`,
	`reboot`,
	`dd\s+if=.*of=/dev/`,
}

// NewEngineWithDefaults returns a policy engine preloaded with
// DefaultDeniedPatterns.
func NewEngineWithDefaults() (*DefaultPolicyEngine, error) {
	engine := NewDefaultPolicyEngine()
	for _, p := range DefaultDeniedPatterns {
		if err := engine.DenyPattern(p); err != nil {
			return nil, fmt.Errorf("governance: compile default pattern %q: %w", p, err)
		}
	}
	return engine, nil
}
