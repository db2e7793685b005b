package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbedded(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("move.vote", map[string]any{"Turn": "White", "SAN": "e4", "Votes": 3, "Total": 5})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "White plays e4 with 3 of 5 votes." {
		t.Fatalf("got %q", got)
	}
	got, err = c.Render("move.vote", map[string]any{"Turn": "Black", "SAN": "e5", "Votes": 0, "Total": 0})
	if err != nil || got != "Black plays e5." {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestRenderMissingKeyFails(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("round.open", map[string]any{"Round": 1}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := c.Render("no.such.key", nil); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
	if c.Has("no.such.key") || !c.Has("vote.rejected.not_legal_move") {
		t.Fatalf("Has mismatch")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "fault: \"halted ({{.Error}})\"\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("fault", map[string]any{"Error": "boom"})
	if err != nil || got != "halted (boom)" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if !c.Has("cmd.help") {
		t.Fatalf("embedded keys must survive overrides")
	}
}

func TestOverrideDirRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "cmd:\n  moves: \"a\"\n")
	writeFile(t, filepath.Join(dir, "b.yml"), "cmd:\n  moves: \"b\"\n")
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestNonStringValueRejected(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("round:\n  open: [1, 2]\n")); err == nil {
		t.Fatalf("expected error for list value")
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
