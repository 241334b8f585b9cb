// Package memory holds each chat's durable notes and renders them into the
// bracketed context block the chat agent prepends to a user prompt.
package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relay-labs/rumpbot/internal/domain"
)

// Store is a thread-safe per-chat ordered list of Memory Notes.
type Store struct {
	mu    sync.RWMutex
	notes map[string][]domain.MemoryNote
}

// New returns an empty Store.
func New() *Store {
	return &Store{notes: make(map[string][]domain.MemoryNote)}
}

// AddNote appends a trimmed, non-empty note for chatID. Blank text is a
// no-op; a note is never stored empty.
func (s *Store) AddNote(chatID, text string, source domain.MemoryNoteSource) domain.MemoryNote {
	trimmed := strings.TrimSpace(text)
	note := domain.MemoryNote{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Text:      trimmed,
		Source:    source,
		CreatedAt: time.Now(),
	}
	if trimmed == "" {
		return note
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[chatID] = append(s.notes[chatID], note)
	return note
}

// Notes returns chatID's notes in insertion order.
func (s *Store) Notes(chatID string) []domain.MemoryNote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notes := s.notes[chatID]
	out := make([]domain.MemoryNote, len(notes))
	copy(out, notes)
	return out
}

// ContextBlock renders chatID's notes as a bracketed "[MEMORY CONTEXT]"
// section with one bullet per note, suitable for prepending to a user
// prompt. Returns nil when the chat has no notes.
func (s *Store) ContextBlock(chatID string) *string {
	notes := s.Notes(chatID)
	if len(notes) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("[MEMORY CONTEXT]\n")
	for _, n := range notes {
		fmt.Fprintf(&b, "- %s\n", n.Text)
	}
	block := strings.TrimRight(b.String(), "\n")
	return &block
}
