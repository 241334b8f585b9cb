package memory

import (
	"strings"
	"testing"

	"github.com/relay-labs/rumpbot/internal/domain"
)

func TestContextBlock_NoNotesIsNil(t *testing.T) {
	s := New()
	if block := s.ContextBlock("chat1"); block != nil {
		t.Errorf("expected nil block, got %q", *block)
	}
}

func TestContextBlock_WithNotes(t *testing.T) {
	s := New()
	s.AddNote("chat1", "prefers dark mode", domain.MemorySourceManual)
	s.AddNote("chat1", "works in Go", domain.MemorySourceAuto)

	block := s.ContextBlock("chat1")
	if block == nil {
		t.Fatal("expected non-nil block")
	}
	if !strings.HasPrefix(*block, "[MEMORY CONTEXT]") {
		t.Errorf("expected bracketed header, got %q", *block)
	}
	if !strings.Contains(*block, "- prefers dark mode") || !strings.Contains(*block, "- works in Go") {
		t.Errorf("expected both notes as bullets, got %q", *block)
	}
}

func TestAddNote_BlankIsNoOp(t *testing.T) {
	s := New()
	s.AddNote("chat1", "   ", domain.MemorySourceAuto)
	if len(s.Notes("chat1")) != 0 {
		t.Error("expected blank note to be discarded")
	}
}

func TestNotesAreInsertionOrdered(t *testing.T) {
	s := New()
	s.AddNote("chat1", "first", domain.MemorySourceAuto)
	s.AddNote("chat1", "second", domain.MemorySourceAuto)
	notes := s.Notes("chat1")
	if len(notes) != 2 || notes[0].Text != "first" || notes[1].Text != "second" {
		t.Errorf("unexpected note order: %+v", notes)
	}
}

func TestNotesAreIsolatedPerChat(t *testing.T) {
	s := New()
	s.AddNote("chat1", "a", domain.MemorySourceAuto)
	s.AddNote("chat2", "b", domain.MemorySourceAuto)
	if len(s.Notes("chat1")) != 1 || len(s.Notes("chat2")) != 1 {
		t.Error("expected notes isolated per chat")
	}
}
