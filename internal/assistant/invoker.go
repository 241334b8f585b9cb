// Package assistant spawns the external AI coding assistant CLI as a child
// process, streams its output, and normalizes its structured JSON result
// into a Go value every other tier can consume without knowing anything
// about the CLI's wire format.
package assistant

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Result is the normalized outcome of one assistant CLI call.
type Result struct {
	Text          string
	IsError       bool
	SessionID     string
	CostUSD       float64
	DurationAPIMs int64
	NumTurns      int
	StopReason    string
	ModelUsage    map[string]domainModelUsage
	Raw           string
}

// CallInput describes one assistant invocation.
type CallInput struct {
	Prompt       string
	SystemPrompt string
	Model        string
	// AllowedTools nil means the CLI default; a non-nil empty slice
	// disables all tools by passing an empty --tools argument.
	AllowedTools []string
	MaxTurns     int
	SessionID    string
	Cwd          string
	Timeout      time.Duration

	OnActivity func()
	OnOutput   func(chunk string)
}

// Binary is the executable name of the assistant CLI. Exposed as a var so
// tests can point it at a stub.
var Binary = "claude"

// Invoker runs the assistant CLI and normalizes its output.
type Invoker struct {
	binary string
}

// New returns an Invoker using the configured CLI binary.
func New() *Invoker {
	return &Invoker{binary: Binary}
}

// Call spawns the assistant CLI for one input, waits for it to exit (or be
// cancelled/timed out), and returns the normalized Result.
//
// Session-resume failures are retried exactly once without the session
// handle, per the invoker's own retry contract (distinct from the
// orchestrator's transient-error retry).
func (inv *Invoker) Call(ctx context.Context, in CallInput) (Result, error) {
	res, err := inv.call(ctx, in)
	if err != nil && in.SessionID != "" && isSessionResumeError(err.Error()) {
		retryIn := in
		retryIn.SessionID = ""
		return inv.call(ctx, retryIn)
	}
	return res, err
}

func (inv *Invoker) call(ctx context.Context, in CallInput) (Result, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if in.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(callCtx, inv.binary, buildArgs(in)...)
	if in.Cwd != "" {
		cmd.Dir = in.Cwd
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("assistant: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("assistant: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("assistant: start: %w", err)
	}

	var stdout, stderr strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go streamPipe(&wg, stdoutPipe, &stdout, in.OnActivity, in.OnOutput)
	go streamPipe(&wg, stderrPipe, &stderr, in.OnActivity, nil)
	wg.Wait()

	waitErr := cmd.Wait()

	if callCtx.Err() == context.DeadlineExceeded {
		return Result{}, ErrTimeout
	}
	if ctx.Err() == context.Canceled {
		return Result{}, ErrCancelled
	}

	return normalizeExit(stdout.String(), stderr.String(), waitErr)
}

// streamPipe copies one pipe's output into buf, invoking onActivity and
// onOutput for each chunk read, until the pipe is closed.
func streamPipe(wg *sync.WaitGroup, r io.Reader, buf *strings.Builder, onActivity func(), onOutput func(string)) {
	defer wg.Done()
	reader := bufio.NewReader(r)
	chunk := make([]byte, 4096)
	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			s := string(chunk[:n])
			buf.WriteString(s)
			if onActivity != nil {
				onActivity()
			}
			if onOutput != nil {
				onOutput(s)
			}
		}
		if err != nil {
			return
		}
	}
}

// normalizeExit turns raw process output into a Result, applying the
// fallback parsing strategies and the exit-code/stderr error path.
func normalizeExit(stdout, stderr string, waitErr error) (Result, error) {
	payload, ok := parseStdout(stdout)
	if !ok {
		if strings.TrimSpace(stdout) != "" {
			return Result{Text: stdout, IsError: false, Raw: stdout}, nil
		}
		if waitErr != nil {
			if isRateLimit(stderr) {
				return Result{}, fmt.Errorf("assistant: rate limited: %s", strings.TrimSpace(stderr))
			}
			return Result{}, fmt.Errorf("assistant: %s", strings.TrimSpace(stderr))
		}
		return Result{Text: "", Raw: stdout}, nil
	}
	return normalizePayload(payload, stdout), nil
}

// normalizePayload applies the result-extraction contract: subtype
// classification, dual-key-cased field lookup, and the result/content
// fallback.
func normalizePayload(p rawPayload, raw string) Result {
	res := Result{
		SessionID:     p.getString("session_id"),
		CostUSD:       p.getCost(),
		DurationAPIMs: int64(p.getFloat("duration_api_ms")),
		NumTurns:      p.getInt("num_turns"),
		StopReason:    p.getString("stop_reason"),
		IsError:       p.getBool("is_error"),
		ModelUsage:    p.getModelUsage(),
		Raw:           raw,
	}

	if subtype := p.getString("subtype"); subtype != "" {
		switch {
		case subtype == "error_max_turns":
			res.Text = "reached the maximum number of turns without finishing"
			res.IsError = true
			return res
		case strings.HasPrefix(subtype, "error"):
			detail := p.getString("result")
			if detail == "" {
				detail = p.getString("content")
			}
			res.Text = strings.TrimSpace(fmt.Sprintf("assistant error (%s): %s", subtype, detail))
			res.IsError = true
			return res
		}
	}

	if result := p.getString("result"); result != "" {
		res.Text = result
		return res
	}
	if content := p.getString("content"); content != "" {
		res.Text = content
		return res
	}

	res.Text = "could not parse response"
	return res
}

// buildArgs assembles the CLI argument list in the order the assistant CLI
// expects: prompt, output format, max turns, verbose, permission bypass,
// then the optional arguments.
func buildArgs(in CallInput) []string {
	args := []string{
		"-p", in.Prompt,
		"--output-format", "json",
		"--max-turns", fmt.Sprintf("%d", in.MaxTurns),
		"--verbose",
		"--dangerously-skip-permissions",
	}
	if in.SystemPrompt != "" {
		args = append(args, "--system-prompt", in.SystemPrompt)
	}
	if in.Model != "" {
		args = append(args, "--model", in.Model)
	}
	if in.AllowedTools != nil {
		args = append(args, "--tools", strings.Join(in.AllowedTools, ","))
	}
	if in.SessionID != "" {
		args = append(args, "--resume", in.SessionID)
	}
	return args
}
