// Package prompts assembles the system prompts handed to each tier from
// a directory of markdown files, in the teacher's identity/soul/
// capabilities/user concatenation order.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Manager loads and assembles prompt files from Directory.
type Manager struct {
	Directory string
}

// NewManager returns a Manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{Directory: dir}
}

// fileOrder pins the well-known persona files to a deterministic order;
// anything else is appended alphabetically after them.
var fileOrder = map[string]int{
	"identity.md":     1,
	"soul.md":         2,
	"capabilities.md": 3,
	"user.md":         4,
}

// ChatPrompt assembles the Chat Agent's system prompt from every .md file
// in the directory except planner.md and summary.md, in persona order.
func (m *Manager) ChatPrompt() (string, error) {
	return m.assemble(func(name string) bool {
		return name != "planner.md" && name != "summary.md"
	})
}

// PlanningPrompt reads the Orchestrator's planning-phase system prompt.
func (m *Manager) PlanningPrompt() (string, error) {
	return m.readFile("planner.md")
}

// SummaryPrompt reads the Orchestrator's summary-phase system prompt.
func (m *Manager) SummaryPrompt() (string, error) {
	return m.readFile("summary.md")
}

func (m *Manager) readFile(name string) (string, error) {
	path := filepath.Join(m.Directory, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("prompts: read %s: %w", name, err)
	}
	return string(data), nil
}

func (m *Manager) assemble(include func(name string) bool) (string, error) {
	entries, err := os.ReadDir(m.Directory)
	if err != nil {
		return "", fmt.Errorf("prompts: read directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		oi, okI := fileOrder[entries[i].Name()]
		oj, okJ := fileOrder[entries[j].Name()]
		switch {
		case okI && okJ:
			return oi < oj
		case okI:
			return true
		case okJ:
			return false
		default:
			return entries[i].Name() < entries[j].Name()
		}
	})

	var parts []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") || !include(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.Directory, e.Name()))
		if err != nil {
			continue
		}
		parts = append(parts, string(data))
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("prompts: no prompt files found in %s", m.Directory)
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}
