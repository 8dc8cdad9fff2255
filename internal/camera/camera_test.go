package camera

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoopbackCapturer_CopiesFixture(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "fixture.jpg")
	if err := os.WriteFile(fixture, []byte("fake jpeg bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	outDir := t.TempDir()

	c := NewLoopbackCapturer(fixture, outDir)
	path, err := c.Capture(context.Background(), 4)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read captured file: %v", err)
	}
	if string(got) != "fake jpeg bytes" {
		t.Errorf("captured content = %q, want the fixture's bytes", got)
	}
}

func TestLoopbackCapturer_ForcedFailure(t *testing.T) {
	c := NewLoopbackCapturer("/does/not/matter", t.TempDir())
	c.Fail = true
	if _, err := c.Capture(context.Background(), 1); err == nil {
		t.Error("expected Fail=true to force a capture error")
	}
}

func TestLoopbackCapturer_MissingFixtureIsError(t *testing.T) {
	c := NewLoopbackCapturer(filepath.Join(t.TempDir(), "missing.jpg"), t.TempDir())
	if _, err := c.Capture(context.Background(), 1); err == nil {
		t.Error("expected an error when the fixture file is missing")
	}
}
