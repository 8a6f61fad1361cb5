package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/deploy"
	"github.com/OlegWock/surek/internal/docker"
	"github.com/OlegWock/surek/internal/logging"
	"github.com/OlegWock/surek/internal/stacks"
)

var deployPull bool

var deployCmd = &cobra.Command{
	Use:   "deploy <stack>",
	Short: "Deploy a stack: fetch source, patch compose file, start containers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		record, err := stacks.ByName(p, args[0])
		if err != nil {
			return err
		}
		return deploy.New(p, cfg).Deploy(cmd.Context(), record, deployPull)
	},
}

var startCmd = &cobra.Command{
	Use:   "start <stack>",
	Short: "Start a previously deployed stack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return deploy.New(p, cfg).Start(args[0], false)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <stack>",
	Short: "Stop a running stack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return deploy.New(p, cfg).Stop(args[0], false)
	},
}

var statusStats bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of all stacks",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := loadConfig()
		if err != nil {
			return err
		}
		records, err := stacks.Discover(p)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "STACK\tSOURCE\tSTATUS\tHEALTH")
		for _, record := range records {
			if !record.Valid {
				fmt.Fprintf(w, "%s\t-\tinvalid: %s\t-\n", record.Name(), record.Err)
				continue
			}
			status := docker.StackStatusDetailed(cmd.Context(), p, record.Config.Name, statusStats)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", record.Config.Name, record.Config.Source.Pretty(), status.StatusText, status.HealthSummary)
		}
		systemStatus := docker.StackStatusDetailed(cmd.Context(), p, config.SystemStackName, statusStats)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", config.SystemStackName, "built-in", systemStatus.StatusText, systemStatus.HealthSummary)
		return w.Flush()
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <stack>",
	Short: "Show per-service health and resource usage for a stack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := loadConfig()
		if err != nil {
			return err
		}
		status := docker.StackStatusDetailed(cmd.Context(), p, args[0], true)

		logging.Header(args[0] + ": " + status.StatusText)
		if len(status.Services) == 0 {
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tSTATUS\tHEALTH\tCPU\tMEMORY")
		for _, service := range status.Services {
			health := service.Health
			if health == "" {
				health = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n",
				service.Name, service.Status, health, service.CPUPercent, humanize.IBytes(service.MemoryBytes))
		}
		fmt.Fprintf(w, "total\t\t%s\t%.1f%%\t%s\n", status.HealthSummary, status.CPUPercent, humanize.IBytes(status.MemoryBytes))
		return w.Flush()
	},
}

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs <stack>",
	Short: "Show container logs for a stack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := loadConfig()
		if err != nil {
			return err
		}
		composeArgs := []string{}
		if logsFollow {
			composeArgs = append(composeArgs, "--follow")
		}
		_, err = docker.RunCompose(p.PatchedComposePath(args[0]), p.StackProjectDir(args[0]), "logs", composeArgs, docker.ComposeOptions{Silent: true})
		return err
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [stack]",
	Short: "Validate stack configurations without deploying",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolvePaths()
		if err != nil {
			return err
		}
		records, err := stacks.Discover(p)
		if err != nil {
			return err
		}

		invalid := 0
		for _, record := range records {
			if len(args) == 1 && record.Name() != args[0] {
				continue
			}
			if record.Valid {
				logging.Success(record.Config.Name + " (" + record.Config.Source.Pretty() + ")")
			} else {
				invalid++
				logging.Error(record.Path + ": " + record.Err)
			}
		}
		if invalid > 0 {
			return fmt.Errorf("%d invalid stack(s)", invalid)
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <stack>",
	Short: "Stop a stack and remove its project and volume directories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return deploy.New(p, cfg).Reset(args[0])
	},
}

func init() {
	deployCmd.Flags().BoolVar(&deployPull, "pull", false, "Force re-download of remote sources and fresh images")
	statusCmd.Flags().BoolVar(&statusStats, "stats", false, "Include CPU and memory usage (slower)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
}
