package selectors

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSelectorsFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "selectors.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write selectors file: %v", err)
	}
	return path
}

func TestManagerEmbeddedOnly(t *testing.T) {
	m, err := NewManager("", false)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	if m.Get() != Get() {
		t.Error("Manager without external path should serve embedded selectors")
	}
}

func TestManagerExternalOverride(t *testing.T) {
	path := writeSelectorsFile(t, t.TempDir(), "post_text: 'div.custom-text'\n")

	m, err := NewManager(path, false)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	s := m.Get()
	if s.PostText != "div.custom-text" {
		t.Errorf("External post_text not applied, got %q", s.PostText)
	}
	// Fields absent from the override fall back to embedded values.
	if s.PostRoot != Get().PostRoot {
		t.Errorf("post_root should fall back to embedded, got %q", s.PostRoot)
	}
}

func TestManagerMissingExternalFile(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "nope.yaml"), false)
	if err != nil {
		t.Fatalf("NewManager should not fail on missing file: %v", err)
	}
	defer m.Close()

	if m.Get() != Get() {
		t.Error("Missing external file should leave embedded selectors in place")
	}
}

func TestManagerReloadRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSelectorsFile(t, dir, "post_text: 'div.v1'\n")

	m, err := NewManager(path, false)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	// An empty override must be rejected and the old selectors kept.
	writeSelectorsFile(t, dir, "# nothing here\n")
	if err := m.Reload(); err == nil {
		t.Error("Expected reload of empty selectors file to fail")
	}
	if m.Get().PostText != "div.v1" {
		t.Errorf("Failed reload clobbered selectors, got %q", m.Get().PostText)
	}

	stats := m.Stats()
	if stats.LastError == nil {
		t.Error("Expected stats to record the reload error")
	}
}

func TestManagerReloadWithoutPath(t *testing.T) {
	m, err := NewManager("", false)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	if err := m.Reload(); err == nil {
		t.Error("Reload without an external path should fail")
	}
}

func TestManagerHotReload(t *testing.T) {
	dir := t.TempDir()
	path := writeSelectorsFile(t, dir, "post_text: 'div.v1'\n")

	m, err := NewManager(path, true)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Close()

	writeSelectorsFile(t, dir, "post_text: 'div.v2'\n")

	// The watcher debounces, so poll briefly.
	deadline := time.Now().Add(3 * time.Second)
	for m.Get().PostText != "div.v2" {
		if time.Now().After(deadline) {
			t.Fatalf("Hot reload never applied, still %q", m.Get().PostText)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if m.Stats().ReloadCount < 1 {
		t.Error("Expected at least one recorded reload")
	}
}

func TestManagerCloseIdempotent(t *testing.T) {
	m, err := NewManager("", false)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("First Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}
