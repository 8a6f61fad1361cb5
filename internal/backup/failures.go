package backup

import (
	"encoding/json"
	"os"
	"time"

	"github.com/OlegWock/surek/internal/logging"
	"github.com/OlegWock/surek/internal/paths"
)

// failureLogLimit caps the failure log; older records roll off.
const failureLogLimit = 100

// Failure records one failed backup attempt.
type Failure struct {
	Timestamp  string `json:"timestamp"`
	BackupType string `json:"backup_type"`
	Error      string `json:"error"`
	Notified   bool   `json:"notified"`
}

func loadFailures(p paths.Paths) []Failure {
	raw, err := os.ReadFile(p.FailureLogPath())
	if err != nil {
		return nil
	}
	var failures []Failure
	if err := json.Unmarshal(raw, &failures); err != nil {
		return nil
	}
	return failures
}

func recordFailure(p paths.Paths, backupType, message string) {
	failures := append(loadFailures(p), Failure{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		BackupType: backupType,
		Error:      message,
	})
	if len(failures) > failureLogLimit {
		failures = failures[len(failures)-failureLogLimit:]
	}

	encoded, err := json.MarshalIndent(failures, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(p.FailureLogPath(), encoded, 0o644)

	logging.Error("Backup failed: " + message)
}

// RecentFailures returns up to limit of the latest failure records.
func RecentFailures(p paths.Paths, limit int) []Failure {
	failures := loadFailures(p)
	if len(failures) > limit {
		failures = failures[len(failures)-limit:]
	}
	return failures
}
