// Package paths computes the on-disk layout surek manages. A Paths value
// is anchored at an explicit root directory and passed down the call
// stack, so tests can point the whole tool at a temp dir.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDirName is the managed directory created next to surek.yml.
const DataDirName = "surek-data"

// StacksDirName holds the user-authored stack definitions.
const StacksDirName = "stacks"

// PatchedComposeFile is the name of the transformed compose file written
// into each project directory.
const PatchedComposeFile = "docker-compose.surek.yml"

// Paths resolves surek's directories relative to a root (normally the
// current working directory at startup).
type Paths struct {
	Root string
}

// New returns a Paths anchored at root.
func New(root string) Paths {
	return Paths{Root: root}
}

// FromWorkingDir anchors a Paths at the process working directory.
func FromWorkingDir() (Paths, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Paths{}, fmt.Errorf("resolving working directory: %w", err)
	}
	return New(cwd), nil
}

func (p Paths) ensure(dir string) string {
	// Lazy creation keeps `surek --help` from littering directories.
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// DataDir returns <root>/surek-data, creating it if missing.
func (p Paths) DataDir() string {
	return p.ensure(filepath.Join(p.Root, DataDirName))
}

// ProjectsDir returns the directory holding deployed project copies.
func (p Paths) ProjectsDir() string {
	return p.ensure(filepath.Join(p.DataDir(), "projects"))
}

// VolumesDir returns the directory holding bind-mount targets.
func (p Paths) VolumesDir() string {
	return p.ensure(filepath.Join(p.DataDir(), "volumes"))
}

// StacksDir returns <root>/stacks. Not created: its absence is a
// discovery error, not something to paper over.
func (p Paths) StacksDir() string {
	return filepath.Join(p.Root, StacksDirName)
}

// StackProjectDir returns the project directory for one stack. Not
// created here: its existence is what the commit-cache protocol checks.
func (p Paths) StackProjectDir(name string) string {
	return filepath.Join(p.ProjectsDir(), name)
}

// StackVolumesDir returns the volumes directory for one stack.
func (p Paths) StackVolumesDir(name string) string {
	return p.ensure(filepath.Join(p.VolumesDir(), name))
}

// PatchedComposePath returns the patched compose file path for one stack.
func (p Paths) PatchedComposePath(name string) string {
	return filepath.Join(p.StackProjectDir(name), PatchedComposeFile)
}

// CommitCachePath returns the commit cache file location.
func (p Paths) CommitCachePath() string {
	return filepath.Join(p.DataDir(), "github_cache.json")
}

// FailureLogPath returns the backup failure log location.
func (p Paths) FailureLogPath() string {
	return filepath.Join(p.DataDir(), "backup_failures.json")
}

// SystemDir returns the directory the bundled system stack assets are
// materialized into.
func (p Paths) SystemDir() string {
	return filepath.Join(p.DataDir(), "system")
}
