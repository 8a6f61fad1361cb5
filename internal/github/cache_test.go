package github

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/OlegWock/surek/internal/paths"
)

func TestCacheRoundTrip(t *testing.T) {
	p := paths.New(t.TempDir())

	if _, ok := CachedCommit(p, "demo"); ok {
		t.Error("CachedCommit on empty cache reported a hit")
	}

	if err := SaveCommit(p, "demo", "abc1234"); err != nil {
		t.Fatalf("SaveCommit() error: %v", err)
	}
	if err := SaveCommit(p, "other", "def5678"); err != nil {
		t.Fatalf("SaveCommit() error: %v", err)
	}

	commit, ok := CachedCommit(p, "demo")
	if !ok || commit != "abc1234" {
		t.Errorf("CachedCommit(demo) = %q, %v", commit, ok)
	}
	commit, ok = CachedCommit(p, "other")
	if !ok || commit != "def5678" {
		t.Errorf("CachedCommit(other) = %q, %v", commit, ok)
	}

	// Overwrite keeps the other entry.
	if err := SaveCommit(p, "demo", "newsha"); err != nil {
		t.Fatalf("SaveCommit() error: %v", err)
	}
	commit, _ = CachedCommit(p, "demo")
	if commit != "newsha" {
		t.Errorf("CachedCommit(demo) after update = %q", commit)
	}
	if _, ok := CachedCommit(p, "other"); !ok {
		t.Error("unrelated entry lost on update")
	}
}

func TestCacheFileFormat(t *testing.T) {
	p := paths.New(t.TempDir())
	if err := SaveCommit(p, "demo", "abc1234"); err != nil {
		t.Fatalf("SaveCommit() error: %v", err)
	}

	raw, err := os.ReadFile(p.CommitCachePath())
	if err != nil {
		t.Fatalf("reading cache file: %v", err)
	}
	var decoded map[string]map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("cache file is not a JSON object: %v", err)
	}
	if decoded["demo"]["commit"] != "abc1234" {
		t.Errorf("commit field = %q", decoded["demo"]["commit"])
	}
	if decoded["demo"]["updated_at"] == "" {
		t.Error("updated_at missing")
	}
}

func TestCacheCorruptedFileTolerated(t *testing.T) {
	p := paths.New(t.TempDir())
	if err := os.WriteFile(p.CommitCachePath(), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := CachedCommit(p, "demo"); ok {
		t.Error("corrupted cache reported a hit")
	}
	if err := SaveCommit(p, "demo", "abc"); err != nil {
		t.Errorf("SaveCommit over corrupted cache: %v", err)
	}
}
