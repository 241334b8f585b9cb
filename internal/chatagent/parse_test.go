package chatagent

import "testing"

func TestParseReply_NoBlocks(t *testing.T) {
	p := parseReply("just a normal reply", nil)
	if p.HasWork || p.HasMemory {
		t.Error("expected no work or memory")
	}
	if p.ChatText != "just a normal reply" {
		t.Errorf("unexpected chat text: %q", p.ChatText)
	}
}

func TestParseReply_WrongActionType(t *testing.T) {
	raw := `<RUMPBOT_ACTION>{"type":"note","task":"ignored"}</RUMPBOT_ACTION>ok`
	p := parseReply(raw, nil)
	if p.HasWork {
		t.Error("expected no work request for non-work_request type")
	}
}

func TestParseReply_EmptyTaskIgnored(t *testing.T) {
	raw := `<RUMPBOT_ACTION>{"type":"work_request","task":""}</RUMPBOT_ACTION>ok`
	p := parseReply(raw, nil)
	if p.HasWork {
		t.Error("expected no work request for empty task")
	}
}

func TestParseReply_MalformedMemoryIgnoredSilently(t *testing.T) {
	raw := `<TIFFBOT_MEMORY>   </TIFFBOT_MEMORY>chat text`
	p := parseReply(raw, nil)
	if p.HasMemory {
		t.Error("expected no memory note for blank payload")
	}
	if p.ChatText != "chat text" {
		t.Errorf("unexpected chat text: %q", p.ChatText)
	}
}
