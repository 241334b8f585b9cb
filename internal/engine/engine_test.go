package engine

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/relay-labs/rumpbot/internal/assistant"
	"github.com/relay-labs/rumpbot/internal/chatagent"
	"github.com/relay-labs/rumpbot/internal/domain"
	"github.com/relay-labs/rumpbot/internal/governance"
	"github.com/relay-labs/rumpbot/internal/memory"
	"github.com/relay-labs/rumpbot/internal/orchestrator"
	"github.com/relay-labs/rumpbot/internal/registry"
	"github.com/relay-labs/rumpbot/internal/worker"
	"github.com/relay-labs/rumpbot/internal/workspace"
)

// fakeCaller returns a fixed chat-tier result regardless of input. It
// satisfies every tier's narrow caller interface.
type fakeCaller struct {
	result assistant.Result
	err    error
}

func (f *fakeCaller) Call(ctx context.Context, in assistant.CallInput) (assistant.Result, error) {
	return f.result, f.err
}

type fakeSessionStore struct{}

func (fakeSessionStore) Get(chatID string, tier domain.Tier) (domain.SessionData, bool) {
	return domain.SessionData{}, false
}
func (fakeSessionStore) Set(chatID, sessionID, cwd string, tier domain.Tier) {}

// fakeSender records every sent message and can signal a test goroutine
// once a expected number of sends have landed, since work requests run in
// the background.
type fakeSender struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
	want int
}

func newFakeSender(want int) *fakeSender {
	return &fakeSender{done: make(chan struct{}), want: want}
}

func (f *fakeSender) Send(chatID, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	n := len(f.sent)
	f.mu.Unlock()
	if n == f.want {
		close(f.done)
	}
	return nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSender) waitFor(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(d):
		t.Fatalf("timed out waiting for %d sends, got %v", f.want, f.messages())
	}
}

func newTestEngine(t *testing.T, chatResult assistant.Result, planResult, summaryResult assistant.Result) *Engine {
	t.Helper()

	chatCaller := &fakeCaller{result: chatResult}
	chatAgent := chatagent.New(chatCaller, fakeSessionStore{}, nil, nil, chatagent.Config{})

	planCaller := &scriptedCaller{results: []assistant.Result{planResult, summaryResult}}
	workerCaller := &fakeCaller{result: assistant.Result{Text: "done", CostUSD: 0.01}}
	workerExec := worker.New(workerCaller, worker.Config{Timeout: time.Second})

	reg := registry.New()
	policy, err := governance.NewEngineWithDefaults()
	if err != nil {
		t.Fatalf("governance.NewEngineWithDefaults: %v", err)
	}

	orch := orchestrator.New(planCaller, workerExec, reg, policy, nil, orchestrator.Config{
		PlanningPrompt: "plan",
		SummaryPrompt:  "summarize",
	})

	root, err := workspace.NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("workspace.NewRoot: %v", err)
	}

	return &Engine{
		Chat:         chatAgent,
		Orchestrator: orch,
		Memory:       memory.New(),
		Registry:     reg,
		Workspace:    root,
	}
}

// scriptedCaller returns canned results in call order, then repeats the
// last entry — mirrors the orchestrator package's own test helper since
// the Orchestrator here is a real, not faked, collaborator.
type scriptedCaller struct {
	mu      sync.Mutex
	results []assistant.Result
	calls   int
}

func (c *scriptedCaller) Call(ctx context.Context, in assistant.CallInput) (assistant.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.results) {
		i = len(c.results) - 1
	}
	c.calls++
	return c.results[i], nil
}

func TestHandleMessage_PlainChat(t *testing.T) {
	eng := newTestEngine(t, assistant.Result{Text: "hello yourself"}, assistant.Result{}, assistant.Result{})
	sender := newFakeSender(1)

	if err := eng.HandleMessage(context.Background(), "chat1", "hello", sender); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	sender.waitFor(t, time.Second)

	msgs := sender.messages()
	if len(msgs) != 1 || msgs[0] != "hello yourself" {
		t.Errorf("unexpected messages: %v", msgs)
	}
}

func TestHandleMessage_MemoryNoteStored(t *testing.T) {
	raw := "Noted.\n<TIFFBOT_MEMORY>  user prefers dark mode  </TIFFBOT_MEMORY>"
	eng := newTestEngine(t, assistant.Result{Text: raw}, assistant.Result{}, assistant.Result{})
	sender := newFakeSender(1)

	if err := eng.HandleMessage(context.Background(), "chat1", "remember this", sender); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	sender.waitFor(t, time.Second)

	notes := eng.Memory.Notes("chat1")
	if len(notes) != 1 || notes[0].Text != "user prefers dark mode" {
		t.Errorf("unexpected notes: %+v", notes)
	}
}

func TestHandleMessage_WorkRequest_RunsOrchestration(t *testing.T) {
	chatRaw := `On it.
<RUMPBOT_ACTION>{"type":"work_request","task":"fix the build","context":"","urgency":"normal"}</RUMPBOT_ACTION>`
	planJSON := `{"type":"plan","summary":"one step","workers":[{"id":"w1","description":"fix it","prompt":"fix it","dependsOn":[]}],"sequential":true}`

	eng := newTestEngine(t,
		assistant.Result{Text: chatRaw},
		assistant.Result{Text: planJSON},
		assistant.Result{Text: "all done"},
	)
	sender := newFakeSender(3)

	if err := eng.HandleMessage(context.Background(), "chat1", "fix the build", sender); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	sender.waitFor(t, 5*time.Second)

	msgs := sender.messages()
	if len(msgs) != 3 {
		t.Fatalf("expected chat reply + plan announcement + final summary, got %v", msgs)
	}
	if msgs[0] != "On it." {
		t.Errorf("unexpected chat reply: %q", msgs[0])
	}
	if msgs[2] != "all done" {
		t.Errorf("unexpected final summary: %q", msgs[2])
	}
}

func TestHandleMessage_AlreadyActive_RejectsDuplicate(t *testing.T) {
	chatRaw := `On it.
<RUMPBOT_ACTION>{"type":"work_request","task":"fix the build","context":"","urgency":"normal"}</RUMPBOT_ACTION>`
	eng := newTestEngine(t, assistant.Result{Text: chatRaw}, assistant.Result{}, assistant.Result{})
	eng.Registry.RegisterOrchestrator("chat1", "already running")

	sender := newFakeSender(2)
	if err := eng.HandleMessage(context.Background(), "chat1", "fix the build", sender); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	sender.waitFor(t, time.Second)

	msgs := sender.messages()
	found := false
	for _, m := range msgs {
		if m == "Already working on a previous request for this chat — please wait for it to finish." {
			found = true
		}
	}
	if !found {
		t.Errorf("expected duplicate-rejection message, got %v", msgs)
	}
}

func TestHandleMessage_WorkspacePrepareFailure(t *testing.T) {
	chatRaw := `On it.
<RUMPBOT_ACTION>{"type":"work_request","task":"fix the build","context":"","urgency":"normal"}</RUMPBOT_ACTION>`
	eng := newTestEngine(t, assistant.Result{Text: chatRaw}, assistant.Result{}, assistant.Result{})
	sender := newFakeSender(2)

	unsafeChatID := filepath.Join("..", "escape")
	if err := eng.HandleMessage(context.Background(), unsafeChatID, "fix the build", sender); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	sender.waitFor(t, time.Second)

	msgs := sender.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected chat reply + workspace-error message, got %v", msgs)
	}
	if !strings.Contains(msgs[1], "Couldn't prepare a workspace") {
		t.Errorf("expected workspace error message, got %q", msgs[1])
	}
}
