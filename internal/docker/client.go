// Package docker is the typed facade over the container engine: network
// management, container listing by compose project, one-shot stats, exec,
// and compose subcommand invocation.
package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/OlegWock/surek/internal/compose"
	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/logging"
)

// ComposeProjectLabel is set by the compose engine on every container it
// manages.
const ComposeProjectLabel = "com.docker.compose.project"

// ComposeServiceLabel names the compose service a container belongs to.
const ComposeServiceLabel = "com.docker.compose.service"

// Client wraps the engine SDK client.
type Client struct {
	cli *client.Client
}

// Connect creates a Client and verifies the daemon is reachable.
func Connect(ctx context.Context) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errdefs.EngineWrap(err, "failed to connect to Docker")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, errdefs.EngineWrap(err, "failed to connect to Docker")
	}
	return &Client{cli: cli}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.cli.Close() }

// EnsureNetwork creates the shared bridge network if it is missing.
// Idempotent.
func (c *Client) EnsureNetwork(ctx context.Context) error {
	existing, err := c.cli.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", compose.SharedNetwork)),
	})
	if err != nil {
		return errdefs.EngineWrap(err, "listing networks")
	}
	for _, nw := range existing {
		if nw.Name == compose.SharedNetwork {
			return nil
		}
	}

	logging.Info("Creating Docker network '" + compose.SharedNetwork + "'")
	_, err = c.cli.NetworkCreate(ctx, compose.SharedNetwork, network.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{compose.ManagedLabel: "true"},
	})
	if err != nil {
		return errdefs.EngineWrap(err, "creating network")
	}
	return nil
}

// ListProjectContainers returns every container, stopped ones included,
// labeled with the given compose project name.
func (c *Client) ListProjectContainers(ctx context.Context, projectName string) ([]container.Summary, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ComposeProjectLabel+"="+projectName)),
	})
	if err != nil {
		return nil, errdefs.EngineWrap(err, "listing containers")
	}
	return containers, nil
}

// FindContainer returns the first running container matching every given
// label, or ok=false.
func (c *Client) FindContainer(ctx context.Context, labels map[string]string) (container.Summary, bool, error) {
	args := filters.NewArgs()
	for key, value := range labels {
		args.Add("label", key+"="+value)
	}
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{Filters: args})
	if err != nil {
		return container.Summary{}, false, errdefs.EngineWrap(err, "listing containers")
	}
	if len(containers) == 0 {
		return container.Summary{}, false, nil
	}
	return containers[0], true, nil
}

// HealthStatus returns the container's health probe state, or empty when
// the image defines no healthcheck.
func (c *Client) HealthStatus(ctx context.Context, containerID string) (string, error) {
	inspect, err := c.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", errdefs.EngineWrap(err, "inspecting container")
	}
	if inspect.State == nil || inspect.State.Health == nil {
		return "", nil
	}
	return string(inspect.State.Health.Status), nil
}

// Stats takes a single non-streaming stat sample. CPU is derived from
// the usage deltas; missing fields or negative deltas read as zero.
func (c *Client) Stats(ctx context.Context, containerID string) (cpuPercent float64, memoryBytes uint64, err error) {
	resp, err := c.cli.ContainerStats(ctx, containerID, false)
	if err != nil {
		return 0, 0, errdefs.EngineWrap(err, "reading container stats")
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return 0, 0, errdefs.EngineWrap(err, "decoding container stats")
	}
	return calculateCPUPercent(&stats), stats.MemoryStats.Usage, nil
}

func calculateCPUPercent(stats *container.StatsResponse) float64 {
	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if systemDelta <= 0 || cpuDelta <= 0 {
		return 0
	}
	cpuCount := float64(stats.CPUStats.OnlineCPUs)
	if cpuCount == 0 {
		cpuCount = 1
	}
	return (cpuDelta / systemDelta) * cpuCount * 100.0
}

// Exec runs argv inside a running container, blocking until it exits.
// Returns the exit code and the combined output.
func (c *Client) Exec(ctx context.Context, containerID string, argv []string) (int, []byte, error) {
	created, err := c.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return 0, nil, errdefs.EngineWrap(err, "creating exec")
	}

	attach, err := c.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return 0, nil, errdefs.EngineWrap(err, "attaching to exec")
	}
	defer attach.Close()

	var output bytes.Buffer
	if _, err := stdcopy.StdCopy(&output, &output, attach.Reader); err != nil {
		return 0, nil, errdefs.EngineWrap(err, "reading exec output")
	}

	inspect, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return 0, nil, errdefs.EngineWrap(err, "inspecting exec")
	}
	return inspect.ExitCode, output.Bytes(), nil
}
