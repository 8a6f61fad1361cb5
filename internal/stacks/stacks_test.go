package stacks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/paths"
)

func writeStack(t *testing.T, root, folder, content string) {
	t.Helper()
	dir := filepath.Join(root, "stacks", folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(paths.New(t.TempDir()))
	if !errdefs.IsKind(err, errdefs.KindStacks) {
		t.Errorf("Discover() = %v, want stacks error", err)
	}
}

func TestDiscoverMixedValidity(t *testing.T) {
	root := t.TempDir()
	writeStack(t, root, "good", "name: good\nsource:\n  type: local\n")
	writeStack(t, root, "bad", "name: bad\n") // missing source
	writeStack(t, root, "nested/deeper", "name: deeper\nsource:\n  type: local\n")

	records, err := Discover(paths.New(root))
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("found %d records, want 3", len(records))
	}

	// Sorted by path: bad, good, nested/deeper.
	if records[0].Valid || records[0].Err == "" {
		t.Errorf("bad stack record = %+v", records[0])
	}
	if records[0].Name() != "bad" {
		t.Errorf("invalid stack Name() = %q, want folder name", records[0].Name())
	}
	if !records[1].Valid || records[1].Config.Name != "good" {
		t.Errorf("good stack record = %+v", records[1])
	}
	if !records[2].Valid || records[2].Config.Name != "deeper" {
		t.Errorf("nested stack record = %+v", records[2])
	}
}

func TestDiscoverSorted(t *testing.T) {
	root := t.TempDir()
	writeStack(t, root, "zzz", "name: zzz\nsource:\n  type: local\n")
	writeStack(t, root, "aaa", "name: aaa\nsource:\n  type: local\n")

	records, err := Discover(paths.New(root))
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if records[0].Name() != "aaa" || records[1].Name() != "zzz" {
		t.Errorf("order = %q, %q", records[0].Name(), records[1].Name())
	}
}

func TestByName(t *testing.T) {
	root := t.TempDir()
	writeStack(t, root, "demo", "name: demo\nsource:\n  type: local\n")

	record, err := ByName(paths.New(root), "demo")
	if err != nil {
		t.Fatalf("ByName() error: %v", err)
	}
	if record.Config.Name != "demo" {
		t.Errorf("record = %+v", record)
	}
	if record.SourceDir() != filepath.Join(root, "stacks", "demo") {
		t.Errorf("SourceDir() = %q", record.SourceDir())
	}

	if _, err := ByName(paths.New(root), "missing"); err == nil {
		t.Error("ByName(missing) = nil error")
	}
	if _, err := ByName(paths.New(root), ""); err == nil {
		t.Error("ByName(empty) = nil error")
	}
}
