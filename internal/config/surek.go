// Package config defines the typed records for surek.yml and
// surek.stack.yml and their loaders.
package config

import (
	"fmt"
	"strings"
)

// BackupConfig holds the S3 target and the symmetric passphrase backup
// archives are encrypted with.
type BackupConfig struct {
	Password    string `yaml:"password"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
}

// GitHubConfig holds the personal access token used for private
// repository archive fetches.
type GitHubConfig struct {
	PAT string `yaml:"pat"`
}

// NotificationConfig is accepted for forward compatibility; delivery is
// not implemented.
type NotificationConfig struct {
	WebhookURL     string `yaml:"webhook_url,omitempty"`
	Email          string `yaml:"email,omitempty"`
	TelegramChatID string `yaml:"telegram_chat_id,omitempty"`
}

// SystemServicesConfig toggles the optional system stack sidecars.
// Pointers distinguish "omitted" (enabled) from an explicit false.
type SystemServicesConfig struct {
	Portainer *bool `yaml:"portainer,omitempty"`
	Netdata   *bool `yaml:"netdata,omitempty"`
}

// PortainerEnabled reports whether the portainer sidecar is enabled.
func (s *SystemServicesConfig) PortainerEnabled() bool {
	return s == nil || s.Portainer == nil || *s.Portainer
}

// NetdataEnabled reports whether the netdata sidecar is enabled.
func (s *SystemServicesConfig) NetdataEnabled() bool {
	return s == nil || s.Netdata == nil || *s.Netdata
}

// SurekConfig is the top-level configuration from surek.yml. Immutable
// after load; lifetime is a single command invocation.
type SurekConfig struct {
	RootDomain     string                `yaml:"root_domain"`
	DefaultAuth    string                `yaml:"default_auth"`
	Backup         *BackupConfig         `yaml:"backup,omitempty"`
	GitHub         *GitHubConfig         `yaml:"github,omitempty"`
	Notifications  *NotificationConfig   `yaml:"notifications,omitempty"`
	SystemServices *SystemServicesConfig `yaml:"system_services,omitempty"`

	// Parsed out of DefaultAuth during validation.
	DefaultUser     string `yaml:"-"`
	DefaultPassword string `yaml:"-"`
}

// validate checks the record and fills the derived fields. All problems
// are collected; the returned error lists one per line.
func (c *SurekConfig) validate() error {
	var problems validationProblems

	if c.RootDomain == "" {
		problems.add("root_domain", "cannot be empty")
	}

	switch strings.Count(c.DefaultAuth, ":") {
	case 0:
		problems.add("default_auth", "must be in 'user:password' format (missing ':')")
	case 1:
		user, password, _ := strings.Cut(c.DefaultAuth, ":")
		if user == "" {
			problems.add("default_auth", "username cannot be empty")
		}
		if password == "" {
			problems.add("default_auth", "password cannot be empty")
		}
		c.DefaultUser = user
		c.DefaultPassword = password
	default:
		problems.add("default_auth", "must be in 'user:password' format (multiple ':' found)")
	}

	if c.Backup != nil {
		for loc, value := range map[string]string{
			"backup.password":      c.Backup.Password,
			"backup.s3_endpoint":   c.Backup.S3Endpoint,
			"backup.s3_bucket":     c.Backup.S3Bucket,
			"backup.s3_access_key": c.Backup.S3AccessKey,
			"backup.s3_secret_key": c.Backup.S3SecretKey,
		} {
			if value == "" {
				problems.add(loc, "cannot be empty")
			}
		}
	}

	if c.GitHub != nil && c.GitHub.PAT == "" {
		problems.add("github.pat", "cannot be empty")
	}

	return problems.err()
}

// TemplateVars returns the angle-bracket replacement set for this config.
// Backup variables are only present when backup is configured, so an
// unexpanded <backup_*> literal survives intact otherwise.
func (c *SurekConfig) TemplateVars() map[string]string {
	replacements := map[string]string{
		"<root>":             c.RootDomain,
		"<default_auth>":     c.DefaultAuth,
		"<default_user>":     c.DefaultUser,
		"<default_password>": c.DefaultPassword,
	}
	if c.Backup != nil {
		replacements["<backup_password>"] = c.Backup.Password
		replacements["<backup_s3_endpoint>"] = c.Backup.S3Endpoint
		replacements["<backup_s3_bucket>"] = c.Backup.S3Bucket
		replacements["<backup_s3_access_key>"] = c.Backup.S3AccessKey
		replacements["<backup_s3_secret_key>"] = c.Backup.S3SecretKey
	}
	return replacements
}

// validationProblems accumulates `loc: message` lines.
type validationProblems []string

func (p *validationProblems) add(loc, msg string) {
	*p = append(*p, fmt.Sprintf("  - %s: %s", loc, msg))
}

func (p validationProblems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration:\n%s", strings.Join(p, "\n"))
}
