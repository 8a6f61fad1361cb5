// Package deploy runs the end-to-end stack pipeline: source acquisition,
// compose transformation, and container lifecycle through the compose
// engine.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"

	"github.com/OlegWock/surek/internal/compose"
	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/docker"
	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/github"
	"github.com/OlegWock/surek/internal/logging"
	"github.com/OlegWock/surek/internal/paths"
	"github.com/OlegWock/surek/internal/stacks"
	"github.com/OlegWock/surek/internal/system"
)

// Deployer wires the deploy pipeline's collaborators together for one
// invocation.
type Deployer struct {
	Paths  paths.Paths
	Config *config.SurekConfig
	GitHub *github.Client
}

// New builds a Deployer for the given invocation config.
func New(p paths.Paths, cfg *config.SurekConfig) *Deployer {
	return &Deployer{Paths: p, Config: cfg, GitHub: github.NewClient(cfg)}
}

// Deploy runs the full pipeline for one stack: acquire source into the
// project directory, overlay local files, transform the compose file,
// write the patched copy and start the containers.
func (d *Deployer) Deploy(ctx context.Context, record stacks.Record, pull bool) error {
	if !record.Valid || record.Config == nil {
		return errdefs.StackConfigf("cannot deploy invalid stack: %s", record.Err)
	}
	cfg := record.Config
	projectDir := d.Paths.StackProjectDir(cfg.Name)

	logging.Header("Deploying stack '" + cfg.Name + "'")

	reused := d.tryCacheHit(ctx, cfg, projectDir, pull)
	if !reused {
		if err := recreateDir(projectDir); err != nil {
			return err
		}
		if cfg.Source.Type == config.SourceGitHub {
			sha, err := d.GitHub.DownloadArchive(ctx, cfg.Source, projectDir)
			if err != nil {
				return err
			}
			if err := github.SaveCommit(d.Paths, cfg.Name, sha); err != nil {
				return fmt.Errorf("saving commit cache: %w", err)
			}
		}
	}

	// Local edits always win over remote content.
	logging.Log.Debug().Str("from", record.SourceDir()).Str("to", projectDir).Msg("overlaying stack files")
	if err := overlayDir(record.SourceDir(), projectDir); err != nil {
		return err
	}

	if err := d.transformAndWrite(projectDir, cfg, nil); err != nil {
		return err
	}
	return d.Start(cfg.Name, pull)
}

// tryCacheHit implements the commit-cache protocol: with pull disabled,
// a cached commit matching the remote ref's current SHA reuses the
// existing project directory untouched. Remote query failures fall
// through to a fresh download.
func (d *Deployer) tryCacheHit(ctx context.Context, cfg *config.StackConfig, projectDir string, pull bool) bool {
	if pull || cfg.Source.Type != config.SourceGitHub {
		return false
	}
	cached, ok := github.CachedCommit(d.Paths, cfg.Name)
	if !ok || !dirExists(projectDir) {
		return false
	}
	latest, err := d.GitHub.LatestCommit(ctx, cfg.Source)
	if err != nil || latest != cached {
		return false
	}
	logging.Dim("No changes detected, using cached version")
	return true
}

// DeploySystem deploys the built-in system stack: bundled assets,
// endpoint filtering by enabled sidecars, the system compose pre-pass,
// and the shared network. Prior system containers are always replaced.
func (d *Deployer) DeploySystem(ctx context.Context) error {
	systemDir, err := system.Materialize(d.Paths)
	if err != nil {
		return err
	}

	cfg, err := config.LoadSystemStack(filepath.Join(systemDir, stacks.ConfigFileName))
	if err != nil {
		return err
	}

	// Disabled sidecars lose their public endpoints along with their
	// services.
	var public []config.PublicEndpoint
	for _, endpoint := range cfg.Public {
		switch endpoint.ServiceName() {
		case "portainer":
			if !d.Config.SystemServices.PortainerEnabled() {
				continue
			}
		case "netdata":
			if !d.Config.SystemServices.NetdataEnabled() {
				continue
			}
		}
		public = append(public, endpoint)
	}
	cfg.Public = public

	logging.Header("Deploying system containers")

	cli, err := docker.Connect(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()
	if err := cli.EnsureNetwork(ctx); err != nil {
		return err
	}

	projectDir := d.Paths.StackProjectDir(cfg.Name)
	patchedPath := d.Paths.PatchedComposePath(cfg.Name)
	if _, err := os.Stat(patchedPath); err == nil {
		if _, err := docker.RunCompose(patchedPath, projectDir, "down", nil, docker.ComposeOptions{Silent: true}); err != nil {
			return err
		}
	}
	if err := recreateDir(projectDir); err != nil {
		return err
	}
	if err := overlayDir(systemDir, projectDir); err != nil {
		return err
	}

	prePass := func(spec map[string]any) map[string]any {
		return compose.TransformSystem(spec, d.Config)
	}
	if err := d.transformAndWrite(projectDir, cfg, prePass); err != nil {
		return err
	}
	return d.Start(cfg.Name, false)
}

func (d *Deployer) transformAndWrite(projectDir string, cfg *config.StackConfig, prePass func(map[string]any) map[string]any) error {
	composePath := filepath.Join(projectDir, cfg.ComposeFilePath)
	if _, err := os.Stat(composePath); err != nil {
		return errdefs.StackConfigf("couldn't find compose file at %s", composePath)
	}

	spec, err := compose.ReadFile(composePath)
	if err != nil {
		return err
	}
	if prePass != nil {
		spec = prePass(spec)
	}

	transformed, err := compose.Transform(d.Paths, spec, cfg, d.Config)
	if err != nil {
		return err
	}

	patchedPath := d.Paths.PatchedComposePath(cfg.Name)
	if err := compose.WriteFile(patchedPath, transformed); err != nil {
		return err
	}
	logging.Dim("Saved patched compose file at " + patchedPath)
	return nil
}

// Start brings a previously deployed stack up.
func (d *Deployer) Start(stackName string, pull bool) error {
	patchedPath := d.Paths.PatchedComposePath(stackName)
	if _, err := os.Stat(patchedPath); err != nil {
		return errdefs.StackConfigf("couldn't find compose file for stack '%s'. Deploy it first.", stackName)
	}

	logging.Info("Starting containers...")
	args := []string{"-d", "--build"}
	if pull {
		args = append(args, "--pull", "always")
	}
	if _, err := docker.RunCompose(patchedPath, d.Paths.StackProjectDir(stackName), "up", args, docker.ComposeOptions{}); err != nil {
		return err
	}
	logging.Success("Containers started")
	return nil
}

// Stop halts a stack's containers. With silent set, a missing patched
// file is tolerated and command echo is suppressed.
func (d *Deployer) Stop(stackName string, silent bool) error {
	patchedPath := d.Paths.PatchedComposePath(stackName)
	if _, err := os.Stat(patchedPath); err != nil {
		if silent {
			return nil
		}
		return errdefs.StackConfigf("couldn't find compose file for stack '%s'", stackName)
	}

	if !silent {
		logging.Info("Stopping containers...")
	}
	opts := docker.ComposeOptions{Silent: silent}
	if _, err := docker.RunCompose(patchedPath, d.Paths.StackProjectDir(stackName), "stop", nil, opts); err != nil {
		return err
	}
	if !silent {
		logging.Success("Containers stopped")
	}
	return nil
}

// Reset stops a stack and removes its project and volume directories.
// The system stack cannot be reset.
func (d *Deployer) Reset(stackName string) error {
	if stackName == config.SystemStackName || stackName == "system" {
		return errdefs.StackConfig("the system stack cannot be reset")
	}

	if err := d.Stop(stackName, true); err != nil {
		return err
	}
	if err := os.RemoveAll(d.Paths.StackProjectDir(stackName)); err != nil {
		return fmt.Errorf("removing project directory: %w", err)
	}
	if err := os.RemoveAll(d.Paths.StackVolumesDir(stackName)); err != nil {
		return fmt.Errorf("removing volumes directory: %w", err)
	}
	logging.Success("Stack '" + stackName + "' reset")
	return nil
}

// overlayDir copies src's contents over dst, overwriting collisions but
// never copying a stale patched compose file.
func overlayDir(src, dst string) error {
	err := cp.Copy(src, dst, cp.Options{
		Skip: func(info os.FileInfo, srcPath, destPath string) (bool, error) {
			return info.Name() == paths.PatchedComposeFile, nil
		},
	})
	if err != nil {
		return fmt.Errorf("copying stack files: %w", err)
	}
	return nil
}

func recreateDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cleaning project directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}
	return nil
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
