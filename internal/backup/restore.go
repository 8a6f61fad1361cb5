package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	cp "github.com/otiai10/copy"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/deploy"
	"github.com/OlegWock/surek/internal/docker"
	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/logging"
	"github.com/OlegWock/surek/internal/paths"
	"github.com/OlegWock/surek/internal/stacks"
)

// DecryptExtract decrypts an archive with the configured passphrase and
// unpacks it into targetDir. The decrypted intermediate (archivePath
// minus its final extension) is removed afterwards.
func DecryptExtract(archivePath, password, targetDir string) error {
	decryptedPath := strings.TrimSuffix(archivePath, filepath.Ext(archivePath))

	if err := runTool("gpg",
		"--batch", "--yes",
		"--passphrase", password,
		"--output", decryptedPath,
		"--decrypt", archivePath,
	); err != nil {
		return err
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return errdefs.BackupWrap(err, "failed to decrypt/extract backup")
	}
	if err := runTool("tar", "-xzf", decryptedPath, "-C", targetDir); err != nil {
		return err
	}

	return os.Remove(decryptedPath)
}

func runTool(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = err.Error()
		}
		return errdefs.Backup("failed to decrypt/extract backup: " + message)
	}
	return nil
}

// RestoreOptions scopes a restore run. Empty Stack restores every stack
// present in the archive; Volume narrows to one volume.
type RestoreOptions struct {
	BackupName string
	Stack      string
	Volume     string
}

// Restore runs the full pipeline: stop affected stacks, download the
// archive, decrypt and extract it, swap the volume directories into
// place and restart what was running. Not transactional — a failure
// after swapping starts leaves volumes mixed, and the failing step is
// what the operator sees.
func Restore(ctx context.Context, p paths.Paths, cfg *config.SurekConfig, opts RestoreOptions) error {
	if cfg.Backup == nil {
		return errdefs.Backup("backup is not configured in surek.yml")
	}

	// A typo'd scope would otherwise stop nothing, match nothing in the
	// archive and still report success.
	if opts.Stack != "" {
		if _, err := stacks.ByName(p, opts.Stack); err != nil {
			return err
		}
	}

	deployer := deploy.New(p, cfg)
	wasRunning := stopAffected(ctx, p, deployer, opts.Stack)

	tempDir, err := os.MkdirTemp("", "surek-restore-*")
	if err != nil {
		return errdefs.BackupWrap(err, "creating temp dir")
	}
	defer os.RemoveAll(tempDir)

	archivePath := filepath.Join(tempDir, opts.BackupName)
	logging.Info("Downloading backup " + opts.BackupName + "...")
	if err := Download(ctx, cfg.Backup, opts.BackupName, archivePath); err != nil {
		return err
	}

	logging.Info("Decrypting and extracting...")
	extractDir := filepath.Join(tempDir, "extracted")
	if err := DecryptExtract(archivePath, cfg.Backup.Password, extractDir); err != nil {
		return err
	}

	if err := swapVolumes(p, extractDir, opts); err != nil {
		return err
	}

	restart(deployer, wasRunning)
	logging.Success("Restore completed")
	return nil
}

// stopAffected stops the scoped stack, or every stack plus the system
// stack, returning the names that had running containers beforehand.
func stopAffected(ctx context.Context, p paths.Paths, deployer *deploy.Deployer, scope string) []string {
	var names []string
	if scope != "" {
		names = []string{scope}
	} else {
		if records, err := stacks.Discover(p); err == nil {
			for _, record := range records {
				if record.Valid {
					names = append(names, record.Config.Name)
				}
			}
		}
		names = append(names, config.SystemStackName)
	}

	var wasRunning []string
	for _, name := range names {
		if hasRunningContainers(ctx, name) {
			wasRunning = append(wasRunning, name)
		}
		logging.Info("Stopping stack " + name + "...")
		_ = deployer.Stop(name, true)
	}
	return wasRunning
}

func hasRunningContainers(ctx context.Context, projectName string) bool {
	cli, err := docker.Connect(ctx)
	if err != nil {
		return false
	}
	defer cli.Close()

	containers, err := cli.ListProjectContainers(ctx, projectName)
	if err != nil {
		return false
	}
	for _, cont := range containers {
		if string(cont.State) == "running" {
			return true
		}
	}
	return false
}

// swapVolumes moves each extracted/backup/<stack>/<volume> directory
// into the managed volumes tree, honoring the scope filters. The target
// is removed first; each volume swap is independent.
func swapVolumes(p paths.Paths, extractDir string, opts RestoreOptions) error {
	backupRoot := filepath.Join(extractDir, "backup")
	stackDirs, err := os.ReadDir(backupRoot)
	if err != nil {
		return errdefs.Backup("archive does not contain a backup/ directory")
	}

	for _, stackDir := range stackDirs {
		if !stackDir.IsDir() {
			continue
		}
		if opts.Stack != "" && stackDir.Name() != opts.Stack {
			continue
		}

		volumeDirs, err := os.ReadDir(filepath.Join(backupRoot, stackDir.Name()))
		if err != nil {
			return errdefs.BackupWrap(err, "reading extracted archive")
		}
		for _, volumeDir := range volumeDirs {
			if !volumeDir.IsDir() {
				continue
			}
			if opts.Volume != "" && volumeDir.Name() != opts.Volume {
				continue
			}

			source := filepath.Join(backupRoot, stackDir.Name(), volumeDir.Name())
			target := filepath.Join(p.StackVolumesDir(stackDir.Name()), volumeDir.Name())
			logging.Info(fmt.Sprintf("Restoring %s/%s...", stackDir.Name(), volumeDir.Name()))

			if err := os.RemoveAll(target); err != nil {
				return errdefs.BackupWrap(err, "removing old volume directory")
			}
			// Rename is atomic on the same filesystem; the extract dir
			// usually is not, so fall back to a copy.
			if err := os.Rename(source, target); err != nil {
				if err := cp.Copy(source, target); err != nil {
					return errdefs.BackupWrap(err, "restoring volume directory")
				}
			}
		}
	}
	return nil
}

func restart(deployer *deploy.Deployer, names []string) {
	for _, name := range names {
		logging.Info("Starting stack " + name + "...")
		if err := deployer.Start(name, false); err != nil {
			logging.Error("Failed to start stack " + name + ": " + err.Error())
		}
	}
}
