package workspace

import (
	"path/filepath"
	"testing"
)

func TestPrepareWithinRoot(t *testing.T) {
	root, err := NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}

	dir, err := root.Prepare("chat1/session-a")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if filepath.Base(dir) != "session-a" {
		t.Errorf("unexpected prepared dir: %q", dir)
	}
}

func TestPrepareRejectsEscape(t *testing.T) {
	root, err := NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}

	if _, err := root.Prepare("../../etc"); err == nil {
		t.Error("expected error for path escaping root")
	}
}

func TestValidateRejectsOutsideRoot(t *testing.T) {
	root, err := NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	if err := root.Validate("/etc/passwd"); err == nil {
		t.Error("expected error validating a directory outside root")
	}
}

func TestValidateAcceptsInsideRoot(t *testing.T) {
	root, err := NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	dir, err := root.Prepare("proj")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := root.Validate(dir); err != nil {
		t.Errorf("expected valid directory, got error: %v", err)
	}
}
