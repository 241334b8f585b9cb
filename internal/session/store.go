// Package session maps (chatID, tier) pairs to the opaque session handles
// the assistant CLI issues, so a later call can resume the same
// conversation instead of starting cold.
package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relay-labs/rumpbot/internal/domain"
)

// key identifies one session slot.
type key struct {
	ChatID string
	Tier   domain.Tier
}

// Store is a thread-safe (chatID, tier) -> SessionData mapping. Reads take
// the read lock; every mutation is serialized under the write lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[key]domain.SessionData
}

// New returns an empty Store.
func New() *Store {
	return &Store{sessions: make(map[key]domain.SessionData)}
}

// normalizeTier defaults an empty tier to chat, preserving prior behavior
// for callers that never distinguished tiers.
func normalizeTier(tier domain.Tier) domain.Tier {
	if tier == "" {
		return domain.TierChat
	}
	return tier
}

// Get returns the session data for (chatID, tier), if any.
func (s *Store) Get(chatID string, tier domain.Tier) (domain.SessionData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.sessions[key{chatID, normalizeTier(tier)}]
	return data, ok
}

// GetSessionID is a convenience accessor over Get.
func (s *Store) GetSessionID(chatID string, tier domain.Tier) string {
	data, ok := s.Get(chatID, tier)
	if !ok {
		return ""
	}
	return data.SessionID
}

// Set records a new session handle for (chatID, tier), replacing any prior
// one and refreshing lastUsedAt.
func (s *Store) Set(chatID, sessionID, cwd string, tier domain.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key{chatID, normalizeTier(tier)}] = domain.SessionData{
		SessionID:  sessionID,
		ProjectDir: cwd,
		LastUsedAt: time.Now(),
	}
}

// Clear removes the session for (chatID, tier). If tier is empty, every
// tier recorded for chatID is removed.
func (s *Store) Clear(chatID string, tier domain.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tier != "" {
		delete(s.sessions, key{chatID, tier})
		return
	}
	for k := range s.sessions {
		if k.ChatID == chatID {
			delete(s.sessions, k)
		}
	}
}

// snapshotEntry is the on-disk shape of one session slot.
type snapshotEntry struct {
	ChatID     string    `yaml:"chatId"`
	Tier       string    `yaml:"tier"`
	SessionID  string    `yaml:"sessionId"`
	ProjectDir string    `yaml:"projectDir"`
	LastUsedAt time.Time `yaml:"lastUsedAt"`
}

// Save writes every session slot to a durable YAML snapshot file.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	entries := make([]snapshotEntry, 0, len(s.sessions))
	for k, v := range s.sessions {
		entries = append(entries, snapshotEntry{
			ChatID:     k.ChatID,
			Tier:       string(k.Tier),
			SessionID:  v.SessionID,
			ProjectDir: v.ProjectDir,
			LastUsedAt: v.LastUsedAt,
		})
	}
	s.mu.RUnlock()

	out, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("session: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("session: write snapshot: %w", err)
	}
	return nil
}

// Load replaces the Store's contents with a durable YAML snapshot. A
// missing file is not an error; the Store is simply left empty.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("session: read snapshot: %w", err)
	}

	var entries []snapshotEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("session: unmarshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[key]domain.SessionData, len(entries))
	for _, e := range entries {
		s.sessions[key{e.ChatID, domain.Tier(e.Tier)}] = domain.SessionData{
			SessionID:  e.SessionID,
			ProjectDir: e.ProjectDir,
			LastUsedAt: e.LastUsedAt,
		}
	}
	return nil
}
