package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/deploy"
	"github.com/OlegWock/surek/internal/docker"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Manage the built-in system stack (reverse proxy, sidecars, backup)",
}

var systemDeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the system stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return deploy.New(p, cfg).DeploySystem(cmd.Context())
	},
}

var systemStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start previously deployed system containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return deploy.New(p, cfg).Start(config.SystemStackName, false)
	},
}

var systemStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the system containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return deploy.New(p, cfg).Stop(config.SystemStackName, false)
	},
}

var systemStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the system stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolvePaths()
		if err != nil {
			return err
		}
		status := docker.StackStatusDetailed(cmd.Context(), p, config.SystemStackName, false)
		fmt.Println(status.StatusText)
		for _, detail := range status.HealthDetails {
			fmt.Println("  " + detail)
		}
		return nil
	},
}

func init() {
	systemCmd.AddCommand(systemDeployCmd, systemStartCmd, systemStopCmd, systemStatusCmd)
}
