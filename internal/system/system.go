// Package system carries the bundled system stack: the reverse proxy,
// optional sidecars and the backup container. Assets are embedded in the
// binary and materialized into the data directory so the compose engine
// can use them as a project.
package system

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/OlegWock/surek/internal/paths"
)

//go:embed all:assets
var assetsFS embed.FS

// Materialize writes the bundled system stack into the data directory
// and returns its path. Existing files are overwritten so the on-disk
// copy always matches the binary.
func Materialize(p paths.Paths) (string, error) {
	systemDir := p.SystemDir()

	err := fs.WalkDir(assetsFS, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel("assets", path)
		if err != nil {
			return err
		}
		target := filepath.Join(systemDir, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		content, err := assetsFS.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, content, 0o644)
	})
	if err != nil {
		return "", fmt.Errorf("materializing system stack: %w", err)
	}
	return systemDir, nil
}
