package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/logging"
	"github.com/OlegWock/surek/internal/paths"
	"github.com/OlegWock/surek/internal/vars"
)

// SharedNetwork is the external bridge network every managed service
// joins; the reverse proxy routes over it by container DNS name.
const SharedNetwork = "surek"

// ManagedLabel marks resources surek created.
const ManagedLabel = "surek.managed"

// BcryptCost is a contract with the proxy's hash verification. Changing
// it silently invalidates previously configured auths.
const BcryptCost = 14

// label is one key=value pair; a slice keeps merge order deterministic.
type label struct {
	key   string
	value string
}

// Transform rewrites a compose tree for surek: variables expanded, the
// shared network declared, named volumes turned into managed bind
// mounts, caddy labels added for public endpoints, configured
// environment injected, and every service attached to the shared
// network. The input tree is not mutated; queued bind-mount directories
// are created before returning.
func Transform(p paths.Paths, spec map[string]any, stack *config.StackConfig, surek *config.SurekConfig) (map[string]any, error) {
	expander := vars.NewExpander(surek.TemplateVars())

	// Expansion rebuilds the tree, which doubles as the deep copy that
	// keeps the caller's spec intact.
	expandedAny, err := expander.ExpandTree(spec)
	if err != nil {
		return nil, err
	}
	expanded := expandedAny.(map[string]any)

	var foldersToCreate []string

	networks, _ := expanded["networks"].(map[string]any)
	if networks == nil {
		networks = map[string]any{}
	}
	networks[SharedNetwork] = map[string]any{
		"name":     SharedNetwork,
		"external": true,
	}
	expanded["networks"] = networks

	if volumes, ok := expanded["volumes"].(map[string]any); ok {
		stackVolumesDir := p.StackVolumesDir(stack.Name)
		for volumeName, volumeConfig := range volumes {
			if stack.ExcludesVolume(volumeName) {
				continue
			}
			if preconfigured, ok := volumeConfig.(map[string]any); ok && len(preconfigured) > 0 {
				logging.Warning(fmt.Sprintf("Volume %s is pre-configured. This volume will be skipped on backup.", volumeName))
				continue
			}

			folderPath := filepath.Join(stackVolumesDir, volumeName)
			foldersToCreate = append(foldersToCreate, folderPath)

			volumes[volumeName] = map[string]any{
				"driver": "local",
				"driver_opts": map[string]any{
					"type":   "none",
					"o":      "bind",
					"device": folderPath,
				},
				"labels": map[string]any{ManagedLabel: "true"},
			}
		}
	}

	for _, endpoint := range stack.Public {
		if err := applyEndpoint(expanded, endpoint, expander); err != nil {
			return nil, err
		}
	}

	if stack.Env != nil {
		if err := injectEnv(expanded, stack.Env, expander); err != nil {
			return nil, err
		}
	}

	if services, ok := expanded["services"].(map[string]any); ok {
		for _, serviceAny := range services {
			service, ok := serviceAny.(map[string]any)
			if !ok {
				continue
			}
			attachNetwork(service)
		}
	}

	for _, folder := range foldersToCreate {
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return nil, fmt.Errorf("creating volume directory %s: %w", folder, err)
		}
	}

	return expanded, nil
}

// TransformSystem applies the system stack pre-pass: drop the backup
// service when backup is unconfigured and the sidecars that are toggled
// off. The input tree is not mutated.
func TransformSystem(spec map[string]any, surek *config.SurekConfig) map[string]any {
	copied := deepCopy(spec).(map[string]any)
	services, ok := copied["services"].(map[string]any)
	if !ok {
		return copied
	}
	if surek.Backup == nil {
		delete(services, "backup")
	}
	if !surek.SystemServices.PortainerEnabled() {
		delete(services, "portainer")
	}
	if !surek.SystemServices.NetdataEnabled() {
		delete(services, "netdata")
	}
	return copied
}

func applyEndpoint(spec map[string]any, endpoint config.PublicEndpoint, expander *vars.Expander) error {
	serviceName := endpoint.ServiceName()

	services, _ := spec["services"].(map[string]any)
	serviceAny, found := services[serviceName]
	if !found {
		return errdefs.StackConfigf("service '%s' not defined in docker-compose config", serviceName)
	}
	service, ok := serviceAny.(map[string]any)
	if !ok {
		return errdefs.StackConfigf("service '%s' is not a mapping", serviceName)
	}

	domain, err := expander.Expand(endpoint.Domain)
	if err != nil {
		return err
	}

	labels := []label{
		{ManagedLabel, "true"},
		{"caddy", domain},
		{"caddy.reverse_proxy", fmt.Sprintf("{{upstreams %d}}", endpoint.Port())},
	}

	// Local development has no public DNS, so the proxy signs its own
	// certificates.
	if os.Getenv("SUREK_ENV") == "development" {
		labels = append(labels, label{"caddy.tls", "internal"})
	}

	if endpoint.Auth != "" {
		authLabels, err := basicAuthLabels(endpoint.Auth, expander)
		if err != nil {
			return err
		}
		labels = append(labels, authLabels...)
	}

	mergeLabels(service, labels)
	return nil
}

func basicAuthLabels(auth string, expander *vars.Expander) ([]label, error) {
	expanded, err := expander.Expand(auth)
	if err != nil {
		return nil, err
	}
	user, password, ok := strings.Cut(expanded, ":")
	if !ok {
		return nil, errdefs.StackConfigf("auth must be in 'user:password' format")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing auth password: %w", err)
	}
	// The compose engine interpolates $ during project load; escaping
	// here keeps the stored hash intact.
	escaped := strings.ReplaceAll(string(hashed), "$", "$$")

	return []label{
		{"caddy.basic_auth", ""},
		{"caddy.basic_auth." + user, escaped},
	}, nil
}

// mergeLabels adds labels to a service, respecting whichever form the
// user wrote: list entries are appended as key=value, map entries are
// upserted.
func mergeLabels(service map[string]any, labels []label) {
	switch existing := service["labels"].(type) {
	case []any:
		for _, l := range labels {
			existing = append(existing, l.key+"="+l.value)
		}
		service["labels"] = existing
	case map[string]any:
		for _, l := range labels {
			existing[l.key] = l.value
		}
	default:
		merged := make(map[string]any, len(labels))
		for _, l := range labels {
			merged[l.key] = l.value
		}
		service["labels"] = merged
	}
}

// injectEnv appends the stack's shared and per-container environment to
// every service. Injected entries follow pre-existing ones; list-form
// duplicates are left for compose's last-wins rule.
func injectEnv(spec map[string]any, env *config.EnvConfig, expander *vars.Expander) error {
	services, ok := spec["services"].(map[string]any)
	if !ok {
		return nil
	}

	shared, err := expander.ExpandSlice(env.Shared)
	if err != nil {
		return err
	}

	for serviceName, serviceAny := range services {
		service, ok := serviceAny.(map[string]any)
		if !ok {
			continue
		}

		perContainer, err := expander.ExpandSlice(env.ByContainer[serviceName])
		if err != nil {
			return err
		}
		injected := append(append([]string{}, shared...), perContainer...)
		if len(injected) == 0 {
			continue
		}

		switch existing := service["environment"].(type) {
		case []any:
			for _, entry := range injected {
				existing = append(existing, entry)
			}
			service["environment"] = existing
		case map[string]any:
			for _, entry := range injected {
				key, value, found := strings.Cut(entry, "=")
				if found {
					existing[key] = value
				}
			}
		default:
			entries := make([]any, 0, len(injected))
			for _, entry := range injected {
				entries = append(entries, entry)
			}
			service["environment"] = entries
		}
	}
	return nil
}

// attachNetwork ensures the shared network appears in the service's
// networks, unless network_mode pins the service elsewhere.
func attachNetwork(service map[string]any) {
	if _, pinned := service["network_mode"]; pinned {
		return
	}

	switch networks := service["networks"].(type) {
	case []any:
		for _, name := range networks {
			if name == SharedNetwork {
				return
			}
		}
		service["networks"] = append(networks, SharedNetwork)
	case map[string]any:
		if _, attached := networks[SharedNetwork]; !attached {
			networks[SharedNetwork] = nil
		}
	default:
		service["networks"] = []any{SharedNetwork}
	}
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, deepCopy(item))
		}
		return out
	default:
		return value
	}
}
