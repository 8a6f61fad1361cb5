package docker

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/logging"
)

// ComposeOptions controls a compose subcommand invocation.
type ComposeOptions struct {
	// Capture returns stdout instead of streaming it to the terminal.
	Capture bool
	// Silent suppresses the command echo.
	Silent bool
}

// RunCompose invokes the external compose engine as
// `docker compose --file <f> --project-directory <d> <sub> <args...>`.
// A non-zero exit becomes an engine error carrying stderr.
func RunCompose(composeFile, projectDir, subcommand string, args []string, opts ComposeOptions) (string, error) {
	argv := []string{
		"compose",
		"--file", composeFile,
		"--project-directory", projectDir,
		subcommand,
	}
	argv = append(argv, args...)

	if !opts.Silent {
		logging.Dim("$ docker " + strings.Join(argv, " "))
	}

	cmd := exec.Command("docker", argv...)
	var stdout, stderr bytes.Buffer
	if opts.Capture {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		// Compose reports progress on stderr; keep it visible while still
		// collecting it for the error message.
		cmd.Stdout = os.Stdout
		cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)
		cmd.Stdin = os.Stdin
	}

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = err.Error()
		}
		return "", errdefs.Engine("Docker Compose command failed: " + message)
	}
	return stdout.String(), nil
}
