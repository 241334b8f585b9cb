// Package workspace validates and prepares a session's project directory
// before a worker is spawned into it, so a worker's assistant process
// never runs outside the directory tree it was handed.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Root is a validated workspace root every session's project directory
// must live under.
type Root struct {
	path string
}

// NewRoot resolves base to an absolute path and returns a Root.
func NewRoot(base string) (*Root, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	return &Root{path: abs}, nil
}

// Prepare resolves a relative project directory against the root,
// rejecting any path that would escape it, and creates it if absent.
func (r *Root) Prepare(projectDir string) (string, error) {
	target := filepath.Join(r.path, projectDir)

	rel, err := filepath.Rel(r.path, target)
	if err != nil || rel == ".." || (len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("workspace: unsafe project directory %q", projectDir)
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("workspace: create project directory: %w", err)
	}
	return target, nil
}

// Validate checks that an already-resolved directory still lives under
// the root, without creating anything. No caller in this module runs it
// when a session is resumed; the chat agent passes a session's recorded
// projectDir to the assistant unchecked.
func (r *Root) Validate(dir string) error {
	rel, err := filepath.Rel(r.path, dir)
	if err != nil || rel == ".." || (len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)) {
		return fmt.Errorf("workspace: directory %q escapes root", dir)
	}
	return nil
}
