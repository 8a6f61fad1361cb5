package compose

import (
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/paths"
)

func testConfigs(t *testing.T) (paths.Paths, *config.StackConfig, *config.SurekConfig) {
	t.Helper()
	p := paths.New(t.TempDir())
	stack := &config.StackConfig{
		Name:   "demo",
		Source: config.Source{Type: config.SourceLocal},
	}
	surek := &config.SurekConfig{
		RootDomain:      "example.com",
		DefaultAuth:     "admin:s3cret",
		DefaultUser:     "admin",
		DefaultPassword: "s3cret",
	}
	return p, stack, surek
}

func services(t *testing.T, spec map[string]any) map[string]any {
	t.Helper()
	out, ok := spec["services"].(map[string]any)
	if !ok {
		t.Fatal("services missing")
	}
	return out
}

func TestTransformDeclaresSharedNetwork(t *testing.T) {
	p, stack, surek := testConfigs(t)
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}

	network, ok := out["networks"].(map[string]any)[SharedNetwork].(map[string]any)
	if !ok {
		t.Fatal("shared network not declared")
	}
	if network["external"] != true || network["name"] != SharedNetwork {
		t.Errorf("network = %v", network)
	}
}

func TestTransformVolumeRewrite(t *testing.T) {
	p, stack, surek := testConfigs(t)
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
		"volumes":  map[string]any{"data": nil},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}

	device := filepath.Join(p.StackVolumesDir("demo"), "data")
	want := map[string]any{
		"driver": "local",
		"driver_opts": map[string]any{
			"type":   "none",
			"o":      "bind",
			"device": device,
		},
		"labels": map[string]any{ManagedLabel: "true"},
	}
	got := out["volumes"].(map[string]any)["data"]
	if !reflect.DeepEqual(got, want) {
		t.Errorf("volume = %#v, want %#v", got, want)
	}

	if info, err := os.Stat(device); err != nil || !info.IsDir() {
		t.Errorf("bind-mount directory not created: %v", err)
	}
}

func TestTransformVolumeExcluded(t *testing.T) {
	p, stack, surek := testConfigs(t)
	stack.Backup = config.BackupExcludeConfig{ExcludeVolumes: []string{"data"}}
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
		"volumes":  map[string]any{"data": nil},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}
	if out["volumes"].(map[string]any)["data"] != nil {
		t.Errorf("excluded volume rewritten: %v", out["volumes"].(map[string]any)["data"])
	}
}

func TestTransformVolumePreconfiguredSkipped(t *testing.T) {
	p, stack, surek := testConfigs(t)
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
		"volumes":  map[string]any{"data": map[string]any{"driver": "custom"}},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}
	got := out["volumes"].(map[string]any)["data"].(map[string]any)
	if got["driver"] != "custom" || len(got) != 1 {
		t.Errorf("pre-configured volume changed: %v", got)
	}
}

func TestTransformEndpointMissingService(t *testing.T) {
	p, stack, surek := testConfigs(t)
	stack.Public = []config.PublicEndpoint{{Domain: "a.<root>", Target: "nope:80"}}
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
	}

	_, err := Transform(p, spec, stack, surek)
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("Transform() = %v, want error naming the service", err)
	}
}

func TestTransformEndpointLabelsMapForm(t *testing.T) {
	p, stack, surek := testConfigs(t)
	stack.Public = []config.PublicEndpoint{{Domain: "a.<root>", Target: "web:8080"}}
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{
			"image":  "nginx",
			"labels": map[string]any{"existing": "kept"},
		}},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}

	labels := services(t, out)["web"].(map[string]any)["labels"].(map[string]any)
	if labels["existing"] != "kept" {
		t.Error("existing label lost")
	}
	if labels["caddy"] != "a.example.com" {
		t.Errorf("caddy = %v", labels["caddy"])
	}
	if labels["caddy.reverse_proxy"] != "{{upstreams 8080}}" {
		t.Errorf("caddy.reverse_proxy = %v", labels["caddy.reverse_proxy"])
	}
	if labels[ManagedLabel] != "true" {
		t.Errorf("%s = %v", ManagedLabel, labels[ManagedLabel])
	}
}

func TestTransformEndpointLabelsListForm(t *testing.T) {
	p, stack, surek := testConfigs(t)
	stack.Public = []config.PublicEndpoint{{Domain: "a.<root>", Target: "web"}}
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{
			"image":  "nginx",
			"labels": []any{"existing=kept"},
		}},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}

	labels, ok := services(t, out)["web"].(map[string]any)["labels"].([]any)
	if !ok {
		t.Fatal("list form not preserved")
	}
	if labels[0] != "existing=kept" {
		t.Error("existing entries must come first")
	}
	joined := make([]string, 0, len(labels))
	for _, l := range labels {
		joined = append(joined, l.(string))
	}
	all := strings.Join(joined, "\n")
	if !strings.Contains(all, "caddy=a.example.com") {
		t.Errorf("caddy label missing:\n%s", all)
	}
	if !strings.Contains(all, "caddy.reverse_proxy={{upstreams 80}}") {
		t.Errorf("reverse_proxy label missing:\n%s", all)
	}
}

func TestTransformBasicAuthLabels(t *testing.T) {
	p, stack, surek := testConfigs(t)
	stack.Public = []config.PublicEndpoint{{Domain: "a.<root>", Target: "web:8080", Auth: "admin:s3cret"}}
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}

	labels := services(t, out)["web"].(map[string]any)["labels"].(map[string]any)
	if labels["caddy.basic_auth"] != "" {
		t.Errorf("caddy.basic_auth = %v, want empty string", labels["caddy.basic_auth"])
	}

	escaped, ok := labels["caddy.basic_auth.admin"].(string)
	if !ok {
		t.Fatal("caddy.basic_auth.admin missing")
	}
	if strings.Contains(strings.ReplaceAll(escaped, "$$", ""), "$") {
		t.Errorf("unescaped $ in hash: %q", escaped)
	}
	unescaped := strings.ReplaceAll(escaped, "$$", "$")
	if !regexp.MustCompile(`^\$2[aby]\$14\$.+`).MatchString(unescaped) {
		t.Errorf("hash %q is not bcrypt cost 14", unescaped)
	}
}

func TestTransformDefaultAuthTemplate(t *testing.T) {
	p, stack, surek := testConfigs(t)
	stack.Public = []config.PublicEndpoint{{Domain: "a.<root>", Target: "web", Auth: "<default_auth>"}}
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}
	labels := services(t, out)["web"].(map[string]any)["labels"].(map[string]any)
	if _, ok := labels["caddy.basic_auth.admin"]; !ok {
		t.Error("default auth user not used for label key")
	}
}

func TestTransformEnvInjectionListForm(t *testing.T) {
	p, stack, surek := testConfigs(t)
	stack.Env = &config.EnvConfig{
		Shared:      []string{"SHARED=1", "DOMAIN=<root>"},
		ByContainer: map[string][]string{"web": {"ONLY_WEB=1"}},
	}
	spec := map[string]any{
		"services": map[string]any{
			"web":    map[string]any{"image": "nginx", "environment": []any{"EXISTING=1"}},
			"worker": map[string]any{"image": "worker"},
		},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}

	webEnv := services(t, out)["web"].(map[string]any)["environment"].([]any)
	want := []any{"EXISTING=1", "SHARED=1", "DOMAIN=example.com", "ONLY_WEB=1"}
	if !reflect.DeepEqual(webEnv, want) {
		t.Errorf("web env = %v, want %v", webEnv, want)
	}

	workerEnv := services(t, out)["worker"].(map[string]any)["environment"].([]any)
	if len(workerEnv) != 2 {
		t.Errorf("worker env = %v, want shared only", workerEnv)
	}
}

func TestTransformEnvInjectionMapForm(t *testing.T) {
	p, stack, surek := testConfigs(t)
	stack.Env = &config.EnvConfig{Shared: []string{"KEY=new", "OTHER=x"}}
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{
			"image":       "nginx",
			"environment": map[string]any{"KEY": "old"},
		}},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}

	env := services(t, out)["web"].(map[string]any)["environment"].(map[string]any)
	if env["KEY"] != "new" {
		t.Errorf("KEY = %v, want upserted value", env["KEY"])
	}
	if env["OTHER"] != "x" {
		t.Errorf("OTHER = %v", env["OTHER"])
	}
}

func TestTransformNetworkAttachment(t *testing.T) {
	p, stack, surek := testConfigs(t)
	spec := map[string]any{
		"services": map[string]any{
			"plain":  map[string]any{"image": "a"},
			"listed": map[string]any{"image": "b", "networks": []any{"private"}},
			"mapped": map[string]any{"image": "c", "networks": map[string]any{"private": nil}},
			"host":   map[string]any{"image": "d", "network_mode": "host"},
		},
	}

	out, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}
	svcs := services(t, out)

	plain := svcs["plain"].(map[string]any)["networks"].([]any)
	if !reflect.DeepEqual(plain, []any{SharedNetwork}) {
		t.Errorf("plain networks = %v", plain)
	}

	listed := svcs["listed"].(map[string]any)["networks"].([]any)
	if !reflect.DeepEqual(listed, []any{"private", SharedNetwork}) {
		t.Errorf("listed networks = %v", listed)
	}

	mapped := svcs["mapped"].(map[string]any)["networks"].(map[string]any)
	if _, ok := mapped[SharedNetwork]; !ok {
		t.Errorf("mapped networks = %v", mapped)
	}
	if _, ok := mapped["private"]; !ok {
		t.Error("user network lost")
	}

	if _, ok := svcs["host"].(map[string]any)["networks"]; ok {
		t.Error("network_mode service must not be attached")
	}
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	p, stack, surek := testConfigs(t)
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
		"volumes":  map[string]any{"data": nil},
	}

	if _, err := Transform(p, spec, stack, surek); err != nil {
		t.Fatalf("Transform() error: %v", err)
	}

	if _, ok := spec["networks"]; ok {
		t.Error("input gained networks")
	}
	if spec["volumes"].(map[string]any)["data"] != nil {
		t.Error("input volume rewritten")
	}
	if _, ok := spec["services"].(map[string]any)["web"].(map[string]any)["networks"]; ok {
		t.Error("input service modified")
	}
}

func TestTransformIdempotent(t *testing.T) {
	p, stack, surek := testConfigs(t)
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
		"volumes":  map[string]any{"data": nil},
	}

	once, err := Transform(p, spec, stack, surek)
	if err != nil {
		t.Fatalf("Transform() error: %v", err)
	}
	twice, err := Transform(p, once, stack, surek)
	if err != nil {
		t.Fatalf("Transform() second pass error: %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("not idempotent:\nonce:  %#v\ntwice: %#v", once, twice)
	}
}

func TestTransformSystem(t *testing.T) {
	surek := &config.SurekConfig{RootDomain: "example.com", DefaultAuth: "a:b"}
	disabled := false
	surek.SystemServices = &config.SystemServicesConfig{Netdata: &disabled}

	spec := map[string]any{
		"services": map[string]any{
			"caddy":     map[string]any{"image": "caddy"},
			"portainer": map[string]any{"image": "portainer"},
			"netdata":   map[string]any{"image": "netdata"},
			"backup":    map[string]any{"image": "backup"},
		},
	}

	out := TransformSystem(spec, surek)
	svcs := out["services"].(map[string]any)

	if _, ok := svcs["backup"]; ok {
		t.Error("backup kept without backup config")
	}
	if _, ok := svcs["netdata"]; ok {
		t.Error("disabled netdata kept")
	}
	if _, ok := svcs["portainer"]; !ok {
		t.Error("enabled portainer removed")
	}

	// Input untouched.
	if len(spec["services"].(map[string]any)) != 4 {
		t.Error("input mutated")
	}
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ReadFile(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("ReadFile(missing) = nil error")
	}

	empty := filepath.Join(dir, "empty.yml")
	os.WriteFile(empty, nil, 0o644)
	if _, err := ReadFile(empty); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("ReadFile(empty) = %v", err)
	}

	bad := filepath.Join(dir, "bad.yml")
	os.WriteFile(bad, []byte("services: [unclosed"), 0o644)
	if _, err := ReadFile(bad); err == nil || !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("ReadFile(bad) = %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docker-compose.surek.yml")
	spec := map[string]any{
		"services": map[string]any{"web": map[string]any{"image": "nginx"}},
	}

	if err := WriteFile(path, spec); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	back, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !reflect.DeepEqual(back, spec) {
		t.Errorf("round trip mismatch: %#v", back)
	}
}
