package assistant

import (
	"strings"
	"testing"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Error: rate limit exceeded", true},
		{"HTTP 429 Too Many Requests", true},
		{"socket hang up", true},
		{"ECONNRESET", true},
		{"context deadline exceeded: timed out", true},
		{"permission denied", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsTransient(c.text); got != c.want {
			t.Errorf("IsTransient(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestIsSessionResumeError(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"session not found", true},
		{"invalid resume token", true},
		{"permission denied", false},
	}
	for _, c := range cases {
		if got := isSessionResumeError(c.text); got != c.want {
			t.Errorf("isSessionResumeError(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestParseStdout_WholeObject(t *testing.T) {
	payload, ok := parseStdout(`{"type":"result","result":"done","session_id":"abc"}`)
	if !ok {
		t.Fatal("expected ok")
	}
	if payload.getString("result") != "done" {
		t.Errorf("result = %q", payload.getString("result"))
	}
	if payload.getString("session_id") != "abc" {
		t.Errorf("session_id = %q", payload.getString("session_id"))
	}
}

func TestParseStdout_MarkdownFence(t *testing.T) {
	payload, ok := parseStdout("```json\n{\"type\":\"result\",\"result\":\"ok\"}\n```")
	if !ok {
		t.Fatal("expected ok")
	}
	if payload.getString("result") != "ok" {
		t.Errorf("result = %q", payload.getString("result"))
	}
}

func TestParseStdout_PrefixedNoise(t *testing.T) {
	stdout := "some log line before\n{\"type\":\"result\",\"result\":\"found me\"}\ntrailing noise"
	payload, ok := parseStdout(stdout)
	if !ok {
		t.Fatal("expected ok")
	}
	if payload.getString("result") != "found me" {
		t.Errorf("result = %q", payload.getString("result"))
	}
}

func TestParseStdout_Array(t *testing.T) {
	payload, ok := parseStdout(`[{"type":"system"},{"type":"result","result":"array result"}]`)
	if !ok {
		t.Fatal("expected ok")
	}
	if payload.getString("result") != "array result" {
		t.Errorf("result = %q", payload.getString("result"))
	}
}

func TestParseStdout_Empty(t *testing.T) {
	if _, ok := parseStdout("   "); ok {
		t.Error("expected not ok for empty stdout")
	}
}

func TestDualKeyCasing(t *testing.T) {
	snake := rawPayload{"session_id": "s1"}
	fused := rawPayload{"sessionid": "s2"}
	if snake.getString("session_id") != "s1" {
		t.Errorf("snake lookup failed")
	}
	if fused.getString("session_id") != "s2" {
		t.Errorf("fused lookup failed")
	}
}

func TestNormalizePayload_CostKeyVariants(t *testing.T) {
	cases := []struct {
		name string
		p    rawPayload
		want float64
	}{
		{"cost_usd", rawPayload{"cost_usd": 0.5}, 0.5},
		{"costusd", rawPayload{"costusd": 0.25}, 0.25},
		{"total_cost_usd", rawPayload{"total_cost_usd": 1.25}, 1.25},
		{"totalcostusd", rawPayload{"totalcostusd": 2.0}, 2.0},
		{"total_cost_usd takes precedence", rawPayload{"total_cost_usd": 1.0, "cost_usd": 9.0}, 1.0},
		{"neither present", rawPayload{}, 0},
	}
	for _, c := range cases {
		if got := normalizePayload(c.p, "").CostUSD; got != c.want {
			t.Errorf("%s: CostUSD = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNormalizePayload_ErrorMaxTurns(t *testing.T) {
	p := rawPayload{"subtype": "error_max_turns"}
	res := normalizePayload(p, "")
	if !res.IsError {
		t.Error("expected IsError")
	}
	if !strings.Contains(res.Text, "maximum number of turns") {
		t.Errorf("unexpected text: %q", res.Text)
	}
}

func TestNormalizePayload_OtherErrorSubtype(t *testing.T) {
	p := rawPayload{"subtype": "error_during_execution", "result": "boom"}
	res := normalizePayload(p, "")
	if !res.IsError {
		t.Error("expected IsError")
	}
	if !strings.Contains(res.Text, "boom") {
		t.Errorf("expected detail in text, got %q", res.Text)
	}
}

func TestNormalizePayload_NoResultOrContent(t *testing.T) {
	p := rawPayload{"type": "result"}
	res := normalizePayload(p, "")
	if res.Text != "could not parse response" {
		t.Errorf("unexpected fallback text: %q", res.Text)
	}
}

func TestBuildArgs_ToolsDisabled(t *testing.T) {
	args := buildArgs(CallInput{Prompt: "hi", MaxTurns: 1, AllowedTools: []string{}})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--tools ") {
		t.Errorf("expected --tools flag present, got %q", joined)
	}
}

func TestBuildArgs_ToolsOmittedByDefault(t *testing.T) {
	args := buildArgs(CallInput{Prompt: "hi", MaxTurns: 1})
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "--tools") {
		t.Errorf("did not expect --tools flag, got %q", joined)
	}
}

func TestBuildArgs_SessionResume(t *testing.T) {
	args := buildArgs(CallInput{Prompt: "hi", MaxTurns: 3, SessionID: "sess-1"})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--resume sess-1") {
		t.Errorf("expected --resume flag, got %q", joined)
	}
}
