// Package vars implements surek's two-layer variable substitution:
// angle-bracket template variables sourced from config (<root>,
// <default_auth>, ...) followed by shell-style environment references
// (${NAME} and ${NAME:-default}).
//
// Substitution is single-pass: expanded output is not re-scanned. That
// keeps the transformation deterministic even when config values happen
// to contain something that looks like a variable.
package vars

import (
	"os"
	"regexp"
	"strings"

	"github.com/OlegWock/surek/internal/errdefs"
)

// envPattern matches ${VAR} or ${VAR:-default}.
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${NAME} and ${NAME:-default} references in value.
// A missing variable without a default is a config error naming it.
func ExpandEnv(value string) (string, error) {
	var expandErr error
	result := envPattern.ReplaceAllStringFunc(value, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name := groups[1]
		if env, ok := os.LookupEnv(name); ok {
			return env
		}
		// Distinguish "no default" from "empty default": ${VAR:-} is valid.
		if strings.HasPrefix(match, "${"+name+":-") {
			return groups[2]
		}
		if expandErr == nil {
			expandErr = errdefs.Configf("environment variable '%s' is not set", name)
		}
		return match
	})
	if expandErr != nil {
		return "", expandErr
	}
	return result, nil
}

// ExpandEnvTree walks a decoded YAML tree and expands environment
// references in every string leaf. Maps and slices are copied; other
// values pass through untouched.
func ExpandEnvTree(value any) (any, error) {
	return mapStrings(value, ExpandEnv)
}

// Expander performs template variable substitution followed by
// environment expansion. The replacement set comes from the top-level
// config; see config.TemplateVars.
type Expander struct {
	replacements map[string]string
}

// NewExpander builds an Expander over the given template replacements.
func NewExpander(replacements map[string]string) *Expander {
	return &Expander{replacements: replacements}
}

// ExpandTemplate replaces angle-bracket template variables only.
func (e *Expander) ExpandTemplate(value string) string {
	pairs := make([]string, 0, 2*len(e.replacements))
	for name, replacement := range e.replacements {
		pairs = append(pairs, name, replacement)
	}
	return strings.NewReplacer(pairs...).Replace(value)
}

// Expand applies both layers: template variables, then environment
// references.
func (e *Expander) Expand(value string) (string, error) {
	return ExpandEnv(e.ExpandTemplate(value))
}

// ExpandSlice expands every element of values.
func (e *Expander) ExpandSlice(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		expanded, err := e.Expand(v)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded)
	}
	return out, nil
}

// ExpandTree applies both layers to every string leaf of a decoded YAML
// tree, returning a new tree. Non-string leaves pass through.
func (e *Expander) ExpandTree(value any) (any, error) {
	return mapStrings(value, e.Expand)
}

func mapStrings(value any, fn func(string) (string, error)) (any, error) {
	switch v := value.(type) {
	case string:
		return fn(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			mapped, err := mapStrings(item, fn)
			if err != nil {
				return nil, err
			}
			out[key] = mapped
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			mapped, err := mapStrings(item, fn)
			if err != nil {
				return nil, err
			}
			out = append(out, mapped)
		}
		return out, nil
	default:
		return value, nil
	}
}
