package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/OlegWock/surek/internal/backup"
	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/logging"
)

var backupJSON bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup management commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackupList(cmd)
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all backups in the object store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackupList(cmd)
	},
}

func runBackupList(cmd *cobra.Command) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Backup == nil {
		return errdefs.Backup("backup is not configured in surek.yml")
	}

	entries, err := backup.List(cmd.Context(), cfg.Backup)
	if err != nil {
		return err
	}

	if backupJSON {
		encoded, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("No backups found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "BACKUP\tTYPE\tSIZE\tCREATED")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			entry.Name, entry.Type, humanize.IBytes(uint64(entry.Size)), entry.Created.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

var backupRunType string

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger an immediate backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Backup == nil {
			return errdefs.Backup("backup is not configured in surek.yml")
		}
		return backup.Trigger(cmd.Context(), p, backupRunType)
	},
}

var backupFailuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Show recent backup failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolvePaths()
		if err != nil {
			return err
		}
		failures := backup.RecentFailures(p, 10)
		if len(failures) == 0 {
			fmt.Println("No recorded failures")
			return nil
		}
		for _, failure := range failures {
			logging.Error(failure.Timestamp + " [" + failure.BackupType + "] " + failure.Error)
		}
		return nil
	},
}

var (
	restoreID     string
	restoreStack  string
	restoreVolume string
	restoreYes    bool
)

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore volumes from a backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Backup == nil {
			return errdefs.Backup("backup is not configured in surek.yml")
		}

		backupName := restoreID
		if backupName == "" {
			backupName, err = pickBackup(cmd)
			if err != nil {
				return err
			}
		}

		fmt.Println("\nRestoring from backup: " + backupName)
		if !restoreYes && !confirm("This will stop affected stacks. Continue?") {
			logging.Warning("Aborted")
			return nil
		}

		return backup.Restore(cmd.Context(), p, cfg, backup.RestoreOptions{
			BackupName: backupName,
			Stack:      restoreStack,
			Volume:     restoreVolume,
		})
	},
}

// pickBackup lists recent backups and asks the operator for a number.
func pickBackup(cmd *cobra.Command) (string, error) {
	_, cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	entries, err := backup.List(cmd.Context(), cfg.Backup)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errdefs.Backup("no backups found")
	}

	logging.Header("Available backups:")
	limit := min(len(entries), 20)
	for i, entry := range entries[:limit] {
		fmt.Printf("  %d. %s (%s, %s)\n", i+1, entry.Name, humanize.IBytes(uint64(entry.Size)), entry.Created.Format("2006-01-02 15:04"))
	}

	fmt.Print("\nEnter backup number to restore [1]: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", errdefs.Backup("invalid selection")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return entries[0].Name, nil
	}
	index, err := strconv.Atoi(line)
	if err != nil || index < 1 || index > limit {
		return "", errdefs.Backup("invalid selection")
	}
	return entries[index-1].Name, nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt + " [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	backupCmd.PersistentFlags().BoolVar(&backupJSON, "json", false, "Output as JSON")
	backupRunCmd.Flags().StringVarP(&backupRunType, "type", "t", "manual", "Backup type: daily, weekly, monthly, manual")
	backupRestoreCmd.Flags().StringVar(&restoreID, "id", "", "Backup filename to restore")
	backupRestoreCmd.Flags().StringVar(&restoreStack, "stack", "", "Restore only this stack")
	backupRestoreCmd.Flags().StringVar(&restoreVolume, "volume", "", "Restore only this volume")
	backupRestoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "Skip the confirmation prompt")
	backupCmd.AddCommand(backupListCmd, backupRunCmd, backupRestoreCmd, backupFailuresCmd)
}
