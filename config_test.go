package pacman

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigPassesInvariants(t *testing.T) {
	c := DefaultConfig()
	if err := c.assertInvariants(); err != nil {
		t.Fatalf("default config failed invariants: %v", err)
	}
}

func TestLoadConfigAppliesYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pacman.yaml")
	contents := "max_depth: 9\nconcurrent: 2\nuser_agent: TestAgent/1.0\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.MaxDepth != 9 {
		t.Errorf("MaxDepth = %d, want 9", c.MaxDepth)
	}
	if c.Concurrent != 2 {
		t.Errorf("Concurrent = %d, want 2", c.Concurrent)
	}
	if c.UserAgent != "TestAgent/1.0" {
		t.Errorf("UserAgent = %q, want TestAgent/1.0", c.UserAgent)
	}
}

func TestLoadConfigEnvOverlayTakesPrecedenceOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pacman.yaml")
	if err := os.WriteFile(path, []byte("user_agent: FromFile/1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("USER_AGENT", "FromEnv/1.0")

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.UserAgent != "FromEnv/1.0" {
		t.Errorf("UserAgent = %q, want FromEnv/1.0 (env should win over file)", c.UserAgent)
	}
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/pacman.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if ExitCode(err) != 2 {
		t.Errorf("ExitCode = %d, want 2 (config error)", ExitCode(err))
	}
}

func TestAssertInvariantsCatchesBadValues(t *testing.T) {
	c := DefaultConfig()
	c.Concurrent = 0
	c.MaxDepth = -1
	c.HTTPTimeout = "not-a-duration"

	err := c.assertInvariants()
	if err == nil {
		t.Fatal("expected invariant violation error")
	}
	if ExitCode(err) != 2 {
		t.Errorf("ExitCode = %d, want 2", ExitCode(err))
	}
}
