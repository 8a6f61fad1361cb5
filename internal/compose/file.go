// Package compose reads, transforms and writes Docker Compose documents.
// Documents are kept as dynamic trees (map[string]any) because the
// transformation must preserve whichever encodings the user chose —
// labels, networks and environment all permit both list and map forms.
package compose

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/OlegWock/surek/internal/errdefs"
)

// ReadFile parses a compose file into a dynamic tree.
func ReadFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errdefs.StackConfigf("compose file not found: %s", path)
		}
		return nil, errdefs.StackConfigWrap(err, "could not read compose file")
	}

	var spec map[string]any
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, errdefs.StackConfigWrap(err, "invalid YAML in compose file")
	}
	if spec == nil {
		return nil, errdefs.StackConfigf("compose file is empty: %s", path)
	}
	return spec, nil
}

// WriteFile serializes a compose tree to path.
func WriteFile(path string, spec map[string]any) error {
	encoded, err := yaml.Marshal(spec)
	if err != nil {
		return errdefs.StackConfigWrap(err, "encoding compose file")
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return errdefs.StackConfigWrap(err, "writing compose file")
	}
	return nil
}
