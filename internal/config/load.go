package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/vars"
)

// Load reads and validates the top-level configuration. When path is
// empty, surek.yml then surek.yaml in root are tried.
func Load(root, path string) (*SurekConfig, error) {
	if path == "" {
		found, err := findConfigFile(root)
		if err != nil {
			return nil, err
		}
		path = found
	}

	var cfg SurekConfig
	if err := decodeStrict(path, &cfg, errdefs.KindConfig); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, errdefs.ConfigWrap(err, path)
	}
	return &cfg, nil
}

// LoadStack reads and validates a surek.stack.yml.
func LoadStack(path string) (*StackConfig, error) {
	return loadStack(path, false)
}

// LoadSystemStack reads the bundled system stack config, which is allowed
// to use the reserved project name.
func LoadSystemStack(path string) (*StackConfig, error) {
	return loadStack(path, true)
}

func loadStack(path string, allowReserved bool) (*StackConfig, error) {
	var cfg StackConfig
	if err := decodeStrict(path, &cfg, errdefs.KindStackConfig); err != nil {
		return nil, err
	}
	if err := cfg.validate(allowReserved); err != nil {
		return nil, errdefs.StackConfigWrap(err, path)
	}
	return &cfg, nil
}

// decodeStrict parses a YAML file, expands environment references over
// the raw tree, then decodes into target rejecting unknown keys.
func decodeStrict(path string, target any, kind errdefs.Kind) error {
	newErr := errdefs.Config
	wrapErr := errdefs.ConfigWrap
	if kind == errdefs.KindStackConfig {
		newErr = errdefs.StackConfig
		wrapErr = errdefs.StackConfigWrap
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newErr(fmt.Sprintf("config file not found: %s", path))
		}
		return wrapErr(err, "could not read config file")
	}

	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return wrapErr(err, "invalid YAML in "+path)
	}
	if tree == nil {
		return newErr(fmt.Sprintf("config file is empty: %s", path))
	}

	expanded, err := vars.ExpandEnvTree(tree)
	if err != nil {
		return err
	}

	// Round-trip through YAML so KnownFields can reject unknown keys on
	// the env-expanded document.
	encoded, err := yaml.Marshal(expanded)
	if err != nil {
		return wrapErr(err, "re-encoding config")
	}

	decoder := yaml.NewDecoder(bytes.NewReader(encoded))
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil {
		return wrapErr(err, "invalid configuration in "+path)
	}
	return nil
}

func findConfigFile(root string) (string, error) {
	for _, name := range []string{"surek.yml", "surek.yaml"} {
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errdefs.Config("config file not found. Make sure you have surek.yml in current working directory")
}
