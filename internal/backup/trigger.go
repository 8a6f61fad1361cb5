package backup

import (
	"context"
	"strings"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/docker"
	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/logging"
	"github.com/OlegWock/surek/internal/paths"
)

// triggerCommand sources the chosen schedule's env file before invoking
// the backup binary; required for multi-schedule setups where no
// schedule is active in the shell environment.
func triggerCommand(backupType string) []string {
	return []string{
		"/bin/sh", "-c",
		"set -a; . /etc/dockervolumebackup/conf.d/backup-" + backupType + ".env; set +a && backup",
	}
}

// ValidTriggerType reports whether backupType names a bundled schedule.
func ValidTriggerType(backupType string) bool {
	switch backupType {
	case "daily", "weekly", "monthly", "manual":
		return true
	}
	return false
}

// Trigger runs an immediate backup of the given schedule inside the
// system stack's backup container. Engine errors and a failing backup
// run are appended to the failure log; an invalid type or a missing
// backup container is returned without being logged.
func Trigger(ctx context.Context, p paths.Paths, backupType string) error {
	if !ValidTriggerType(backupType) {
		return errdefs.Backupf("invalid backup type: %s", backupType)
	}

	cli, err := docker.Connect(ctx)
	if err != nil {
		recordFailure(p, backupType, err.Error())
		return errdefs.BackupWrap(err, "Docker error")
	}
	defer cli.Close()

	target, found, err := cli.FindContainer(ctx, map[string]string{
		docker.ComposeProjectLabel: config.SystemStackName,
		docker.ComposeServiceLabel: "backup",
	})
	if err != nil {
		recordFailure(p, backupType, err.Error())
		return errdefs.BackupWrap(err, "Docker error")
	}
	if !found {
		return errdefs.Backup("backup container not found. Is system stack running?")
	}

	logging.Info("Triggering " + backupType + " backup...")
	exitCode, output, err := cli.Exec(ctx, target.ID, triggerCommand(backupType))
	if err != nil {
		recordFailure(p, backupType, err.Error())
		return errdefs.BackupWrap(err, "Docker error")
	}
	if exitCode != 0 {
		message := strings.TrimSpace(string(output))
		if message == "" {
			message = "unknown error"
		}
		recordFailure(p, backupType, message)
		return errdefs.Backup("backup failed: " + message)
	}

	logging.Success("Backup completed successfully")
	return nil
}
