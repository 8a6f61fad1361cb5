package config

import (
	"regexp"
	"strconv"
	"strings"
)

// SystemStackName is the reserved project name of the built-in system
// stack.
const SystemStackName = "surek-system"

// SourceLocal marks a stack whose files live in its own folder under
// stacks/.
const SourceLocal = "local"

// SourceGitHub marks a stack whose files are fetched as a repository
// archive.
const SourceGitHub = "github"

var stackNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

var reservedStackNames = map[string]struct{}{
	"system":        {},
	SystemStackName: {},
}

// Source is the tagged union of stack source kinds, discriminated by
// Type. GitHub sources carry a slug; derived fields are pure functions
// on it.
type Source struct {
	Type string `yaml:"type"`
	Slug string `yaml:"slug,omitempty"`
}

// Owner returns the repository owner of a github source.
func (s Source) Owner() string {
	owner, _, _ := strings.Cut(s.Slug, "/")
	return owner
}

// Repo returns the repository name of a github source, without the ref.
func (s Source) Repo() string {
	_, rest, _ := strings.Cut(s.Slug, "/")
	repo, _, _ := strings.Cut(rest, "#")
	return repo
}

// Ref returns the requested ref of a github source, defaulting to HEAD.
func (s Source) Ref() string {
	if _, ref, ok := strings.Cut(s.Slug, "#"); ok {
		return ref
	}
	return "HEAD"
}

// Pretty returns a human-readable description of the source.
func (s Source) Pretty() string {
	if s.Type == SourceGitHub {
		return "GitHub " + s.Slug
	}
	return "local"
}

func (s Source) validate(problems *validationProblems) {
	switch s.Type {
	case SourceLocal:
		if s.Slug != "" {
			problems.add("source.slug", "not allowed for local sources")
		}
	case SourceGitHub:
		parts := strings.Split(s.Slug, "/")
		if len(parts) != 2 {
			problems.add("source.slug", "must be in 'owner/repo' or 'owner/repo#ref' format")
			return
		}
		if parts[0] == "" {
			problems.add("source.slug", "owner cannot be empty")
		}
		if repo, _, _ := strings.Cut(parts[1], "#"); repo == "" {
			problems.add("source.slug", "repo cannot be empty")
		}
	case "":
		problems.add("source.type", "is required ('local' or 'github')")
	default:
		problems.add("source.type", "must be 'local' or 'github'")
	}
}

// PublicEndpoint maps a domain to a service port, optionally behind
// basic auth.
type PublicEndpoint struct {
	Domain string `yaml:"domain"`
	Target string `yaml:"target"`
	Auth   string `yaml:"auth,omitempty"`
}

// ServiceName returns the service part of the target.
func (e PublicEndpoint) ServiceName() string {
	name, _, _ := strings.Cut(e.Target, ":")
	return name
}

// Port returns the port part of the target, defaulting to 80.
func (e PublicEndpoint) Port() int {
	if _, portStr, ok := strings.Cut(e.Target, ":"); ok {
		if port, err := strconv.Atoi(portStr); err == nil {
			return port
		}
	}
	return 80
}

func (e PublicEndpoint) validate(loc string, problems *validationProblems) {
	if e.Domain == "" {
		problems.add(loc+".domain", "cannot be empty")
	}
	if e.ServiceName() == "" {
		problems.add(loc+".target", "must be in 'service' or 'service:port' format")
	}
	if _, portStr, ok := strings.Cut(e.Target, ":"); ok {
		if _, err := strconv.Atoi(portStr); err != nil {
			problems.add(loc+".target", "port must be a number")
		}
	}
}

// EnvConfig declares environment variables injected into services.
type EnvConfig struct {
	Shared      []string            `yaml:"shared,omitempty"`
	ByContainer map[string][]string `yaml:"by_container,omitempty"`
}

// BackupExcludeConfig lists volumes left out of managed backup.
type BackupExcludeConfig struct {
	ExcludeVolumes []string `yaml:"exclude_volumes,omitempty"`
}

// StackConfig is a per-stack configuration from surek.stack.yml.
type StackConfig struct {
	Name            string              `yaml:"name"`
	Source          Source              `yaml:"source"`
	ComposeFilePath string              `yaml:"compose_file_path,omitempty"`
	Public          []PublicEndpoint    `yaml:"public,omitempty"`
	Env             *EnvConfig          `yaml:"env,omitempty"`
	Backup          BackupExcludeConfig `yaml:"backup,omitempty"`
}

// validate checks the record and applies defaults. allowReserved is set
// for the bundled system stack only.
func (c *StackConfig) validate(allowReserved bool) error {
	var problems validationProblems

	switch {
	case strings.TrimSpace(c.Name) == "":
		problems.add("name", "cannot be empty")
	case !stackNamePattern.MatchString(c.Name):
		problems.add("name", "must start with alphanumeric and contain only alphanumeric, underscore, or hyphen characters")
	default:
		if _, reserved := reservedStackNames[strings.ToLower(c.Name)]; reserved && !allowReserved {
			problems.add("name", "'"+c.Name+"' is a reserved stack name and cannot be used")
		}
	}

	c.Source.validate(&problems)

	for i, endpoint := range c.Public {
		endpoint.validate("public["+strconv.Itoa(i)+"]", &problems)
	}

	if c.ComposeFilePath == "" {
		c.ComposeFilePath = "./docker-compose.yml"
	}

	return problems.err()
}

// ExcludesVolume reports whether a named volume is excluded from backup.
func (c *StackConfig) ExcludesVolume(name string) bool {
	for _, excluded := range c.Backup.ExcludeVolumes {
		if excluded == name {
			return true
		}
	}
	return false
}
