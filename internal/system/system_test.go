package system

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/paths"
)

func TestMaterialize(t *testing.T) {
	p := paths.New(t.TempDir())

	systemDir, err := Materialize(p)
	if err != nil {
		t.Fatalf("Materialize() error: %v", err)
	}

	for _, name := range []string{
		"surek.stack.yml",
		"docker-compose.yml",
		filepath.Join("conf.d", "backup-manual.env"),
	} {
		if _, err := os.Stat(filepath.Join(systemDir, name)); err != nil {
			t.Errorf("asset %s missing: %v", name, err)
		}
	}
}

func TestMaterializeOverwrites(t *testing.T) {
	p := paths.New(t.TempDir())
	systemDir, err := Materialize(p)
	if err != nil {
		t.Fatalf("Materialize() error: %v", err)
	}

	target := filepath.Join(systemDir, "docker-compose.yml")
	if err := os.WriteFile(target, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Materialize(p); err != nil {
		t.Fatalf("Materialize() second run error: %v", err)
	}
	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) == "tampered" {
		t.Error("on-disk copy not refreshed from the binary")
	}
}

func TestBundledStackConfigLoads(t *testing.T) {
	p := paths.New(t.TempDir())
	systemDir, err := Materialize(p)
	if err != nil {
		t.Fatalf("Materialize() error: %v", err)
	}

	cfg, err := config.LoadSystemStack(filepath.Join(systemDir, "surek.stack.yml"))
	if err != nil {
		t.Fatalf("LoadSystemStack() error: %v", err)
	}
	if cfg.Name != config.SystemStackName {
		t.Errorf("Name = %q", cfg.Name)
	}
	if len(cfg.Public) == 0 {
		t.Error("bundled config has no public endpoints")
	}
}
