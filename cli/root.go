// Package cli implements the surek command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/logging"
	"github.com/OlegWock/surek/internal/paths"
)

// Version is stamped by the build.
var Version = "dev"

var (
	configPath string
	verbose    bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "surek",
	Short: "Docker Compose orchestration for self-hosted services",
	Long: `surek — deploy self-hosted service stacks behind a shared reverse proxy.

Get started:
  surek system deploy   Start the reverse proxy and system services
  surek deploy <stack>  Deploy a stack from stacks/
  surek status          Show the state of all stacks
  surek backup          List backups in the object store`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logging.SetVerbose()
		}
	},
}

// Execute runs the root command, mapping any error to a single red line
// and exit code 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logging.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to surek.yml (default: ./surek.yml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(
		deployCmd,
		startCmd,
		stopCmd,
		statusCmd,
		infoCmd,
		logsCmd,
		validateCmd,
		resetCmd,
		systemCmd,
		backupCmd,
		versionCmd,
	)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the surek version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("surek " + Version)
	},
}

// resolvePaths anchors the tool at the working directory.
func resolvePaths() (paths.Paths, error) {
	return paths.FromWorkingDir()
}

// loadConfig resolves paths and loads the top-level config in one go,
// since nearly every command needs both.
func loadConfig() (paths.Paths, *config.SurekConfig, error) {
	p, err := resolvePaths()
	if err != nil {
		return paths.Paths{}, nil, err
	}
	cfg, err := config.Load(p.Root, configPath)
	if err != nil {
		return paths.Paths{}, nil, err
	}
	return p, cfg, nil
}
