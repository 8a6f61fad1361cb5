// Package logging holds the process-wide logger and the console helpers
// used for human-facing CLI output.
package logging

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Log is the process-wide structured logger. Commands write progress and
// diagnostics here; user-facing results go through the print helpers below.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
	With().Timestamp().Logger().
	Level(zerolog.InfoLevel)

// SetVerbose lowers the log level to debug.
func SetVerbose() {
	Log = Log.Level(zerolog.DebugLevel)
}

// Success prints a green check line.
func Success(msg string) {
	fmt.Printf("  \033[32m✔\033[0m %s\n", msg)
}

// Info prints a cyan arrow line.
func Info(msg string) {
	fmt.Printf("  \033[36m→\033[0m %s\n", msg)
}

// Warning prints a yellow warning line.
func Warning(msg string) {
	fmt.Printf("  \033[33m!\033[0m %s\n", msg)
}

// Error prints a red cross line to stderr.
func Error(msg string) {
	fmt.Fprintf(os.Stderr, "  \033[31m✗\033[0m %s\n", msg)
}

// Dim prints a dimmed line, used for subprocess echoes and file paths.
func Dim(msg string) {
	fmt.Printf("\033[2m%s\033[0m\n", msg)
}

// Header prints a bold section header.
func Header(msg string) {
	fmt.Printf("\n\033[1m%s\033[0m\n", msg)
}
