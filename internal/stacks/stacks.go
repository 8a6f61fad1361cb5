// Package stacks discovers stack definitions under the stacks/ directory.
package stacks

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/paths"
)

// ConfigFileName is the per-stack configuration file discovery looks for.
const ConfigFileName = "surek.stack.yml"

// Record describes one discovered stack. Invalid stacks keep their load
// error so listings can show what is wrong without aborting discovery.
type Record struct {
	Path   string
	Valid  bool
	Config *config.StackConfig
	Err    string
}

// Name returns the configured stack name, falling back to the folder
// name for invalid stacks.
func (r Record) Name() string {
	if r.Config != nil {
		return r.Config.Name
	}
	return filepath.Base(filepath.Dir(r.Path))
}

// SourceDir returns the folder the stack definition lives in.
func (r Record) SourceDir() string {
	return filepath.Dir(r.Path)
}

// Discover walks the stacks directory for surek.stack.yml files at any
// depth. One malformed stack never aborts enumeration. Results are
// sorted by path.
func Discover(p paths.Paths) ([]Record, error) {
	stacksDir := p.StacksDir()
	if _, err := os.Stat(stacksDir); err != nil {
		return nil, errdefs.Stacks("folder 'stacks' not found in current working directory")
	}

	var records []Record
	walkErr := filepath.WalkDir(stacksDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != ConfigFileName {
			return nil
		}
		cfg, loadErr := config.LoadStack(path)
		if loadErr != nil {
			records = append(records, Record{Path: path, Valid: false, Err: loadErr.Error()})
			return nil
		}
		records = append(records, Record{Path: path, Valid: true, Config: cfg})
		return nil
	})
	if walkErr != nil {
		return nil, errdefs.StacksWrap(walkErr, "scanning stacks directory")
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

// ByName finds a valid stack by its configured name.
func ByName(p paths.Paths, name string) (Record, error) {
	if name == "" {
		return Record{}, errdefs.Stacks("invalid stack name")
	}
	records, err := Discover(p)
	if err != nil {
		return Record{}, err
	}
	for _, record := range records {
		if record.Valid && record.Config.Name == name {
			return record, nil
		}
	}
	return Record{}, errdefs.Stacks("stack with name '" + name + "' not found")
}
