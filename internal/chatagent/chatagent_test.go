package chatagent

import (
	"context"
	"strings"
	"testing"

	"github.com/relay-labs/rumpbot/internal/assistant"
	"github.com/relay-labs/rumpbot/internal/domain"
)

type fakeCaller struct {
	result assistant.Result
	err    error
}

func (f *fakeCaller) Call(ctx context.Context, in assistant.CallInput) (assistant.Result, error) {
	return f.result, f.err
}

type fakeSessionStore struct {
	data map[domain.Tier]domain.SessionData
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{data: make(map[domain.Tier]domain.SessionData)}
}

func (f *fakeSessionStore) Get(chatID string, tier domain.Tier) (domain.SessionData, bool) {
	d, ok := f.data[tier]
	return d, ok
}

func (f *fakeSessionStore) Set(chatID, sessionID, cwd string, tier domain.Tier) {
	f.data[tier] = domain.SessionData{SessionID: sessionID, ProjectDir: cwd}
}

type fakeLogger struct {
	malformed []string
}

func (f *fakeLogger) LogMalformedAction(chatID, raw string) {
	f.malformed = append(f.malformed, raw)
}

// TestHandle_PlainChat covers S1: a reply with no delimited block yields a
// nil Work and the reply text verbatim.
func TestHandle_PlainChat(t *testing.T) {
	caller := &fakeCaller{result: assistant.Result{Text: "hello yourself"}}
	agent := New(caller, newFakeSessionStore(), nil, nil, Config{})

	reply, err := agent.Handle(context.Background(), "chat1", "hello")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Work != nil {
		t.Error("expected no Work Request for plain chat")
	}
	if reply.Text != "hello yourself" {
		t.Errorf("unexpected chat text: %q", reply.Text)
	}
}

// TestHandle_ActionRoundTrip covers P1: a reply with a valid action block
// yields a Work Request whose fields equal the JSON contents, and the
// returned chat text has the delimiters stripped.
func TestHandle_ActionRoundTrip(t *testing.T) {
	raw := `Sure, on it.
<RUMPBOT_ACTION>{"type":"work_request","task":"fix the build","context":"ci is red","urgency":"normal"}</RUMPBOT_ACTION>`
	caller := &fakeCaller{result: assistant.Result{Text: raw}}
	agent := New(caller, newFakeSessionStore(), nil, nil, Config{})

	reply, err := agent.Handle(context.Background(), "chat1", "fix the build")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Work == nil {
		t.Fatal("expected a Work Request")
	}
	if reply.Work.Task != "fix the build" || reply.Work.Context != "ci is red" || reply.Work.Urgency != domain.UrgencyNormal {
		t.Errorf("unexpected work request: %+v", reply.Work)
	}
	if containsDelimiters(reply.Text) {
		t.Errorf("expected delimiters stripped from chat text, got %q", reply.Text)
	}
}

// TestHandle_MemoryBlock covers P2's non-nil case.
func TestHandle_MemoryBlock(t *testing.T) {
	raw := `Noted.
<TIFFBOT_MEMORY>  user prefers dark mode  </TIFFBOT_MEMORY>`
	caller := &fakeCaller{result: assistant.Result{Text: raw}}
	agent := New(caller, newFakeSessionStore(), nil, nil, Config{})

	reply, err := agent.Handle(context.Background(), "chat1", "remember this")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.MemoryNote != "user prefers dark mode" {
		t.Errorf("unexpected memory note: %q", reply.MemoryNote)
	}
}

// TestHandle_NoMemoryBlock covers P2's nil case.
func TestHandle_NoMemoryBlock(t *testing.T) {
	caller := &fakeCaller{result: assistant.Result{Text: "just chatting"}}
	agent := New(caller, newFakeSessionStore(), nil, nil, Config{})

	reply, err := agent.Handle(context.Background(), "chat1", "hi")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.MemoryNote != "" {
		t.Errorf("expected empty memory note, got %q", reply.MemoryNote)
	}
}

// TestHandle_MalformedActionIsLoggedAndIgnored covers P2's malformed case
// for the action block: malformed JSON must not raise, and chat text still
// returns.
func TestHandle_MalformedActionIsLoggedAndIgnored(t *testing.T) {
	raw := `Here you go.
<RUMPBOT_ACTION>{not valid json</RUMPBOT_ACTION>`
	caller := &fakeCaller{result: assistant.Result{Text: raw}}
	logger := &fakeLogger{}
	agent := New(caller, newFakeSessionStore(), nil, logger, Config{})

	reply, err := agent.Handle(context.Background(), "chat1", "hi")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Work != nil {
		t.Error("expected no Work Request for malformed action")
	}
	if len(logger.malformed) != 1 {
		t.Fatalf("expected one malformed-action log, got %d", len(logger.malformed))
	}
}

// TestHandle_EmptyAfterStrippingUsesPlaceholder covers the placeholder
// substitution rule.
func TestHandle_EmptyAfterStrippingUsesPlaceholder(t *testing.T) {
	raw := `<RUMPBOT_ACTION>{"type":"work_request","task":"do it","context":"","urgency":"normal"}</RUMPBOT_ACTION>`
	caller := &fakeCaller{result: assistant.Result{Text: raw}}
	agent := New(caller, newFakeSessionStore(), nil, nil, Config{})

	reply, err := agent.Handle(context.Background(), "chat1", "do it")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Text != placeholderText {
		t.Errorf("expected placeholder text, got %q", reply.Text)
	}
}

func containsDelimiters(text string) bool {
	for _, tag := range []string{actionOpenTag, actionCloseTag, memoryOpenTag, memoryCloseTag} {
		if strings.Contains(text, tag) {
			return true
		}
	}
	return false
}
