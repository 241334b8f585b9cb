package governance

import (
	"context"
	"testing"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	req1 := Request{TaskID: "w1", Description: "list files", Prompt: "ls -la /tmp"}
	res1, err := engine.Evaluate(ctx, req1)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res1.Effect != EffectAllow {
		t.Errorf("expected EffectAllow, got %s", res1.Effect)
	}

	if err := engine.DenyPattern(`rm\s+-rf`); err != nil {
		t.Fatalf("DenyPattern: %v", err)
	}
	req2 := Request{TaskID: "w2", Description: "clean workspace", Prompt: "rm -rf /tmp/build"}
	res2, err := engine.Evaluate(ctx, req2)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res2.Effect != EffectDeny {
		t.Errorf("expected EffectDeny, got %s", res2.Effect)
	}
}

func TestDefaultDeniedPatterns(t *testing.T) {
	engine, err := NewEngineWithDefaults()
	if err != nil {
		t.Fatalf("NewEngineWithDefaults: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		prompt string
		deny   bool
	}{
		{"rm -rf /", true},
		{"sudo reboot now", true},
		{"mkfs.ext4 /dev/sda1", true},
		{"run the test suite", false},
	}
	for _, c := range cases {
		res, err := engine.Evaluate(ctx, Request{Prompt: c.prompt})
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", c.prompt, err)
		}
		gotDeny := res.Effect == EffectDeny
		if gotDeny != c.deny {
			t.Errorf("Evaluate(%q) deny=%v, want %v", c.prompt, gotDeny, c.deny)
		}
	}
}
