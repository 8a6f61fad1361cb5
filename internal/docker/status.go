package docker

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/OlegWock/surek/internal/paths"
)

// statsConcurrency bounds the parallel stats fan-out; each sample blocks
// for one collection interval (~1-2 s) on the daemon side.
const statsConcurrency = 10

// ServiceHealth describes one container of a stack.
type ServiceHealth struct {
	Name        string
	Status      string
	Health      string
	CPUPercent  float64
	MemoryBytes uint64
}

// StackStatus is the aggregated state of one stack.
type StackStatus struct {
	StatusText    string
	Services      []ServiceHealth
	HealthDetails []string
	HealthSummary string
	CPUPercent    float64
	MemoryBytes   uint64
}

// StackStatusDetailed aggregates container state for a stack. When
// includeStats is set, per-container samples are fetched in parallel
// (bounded) and joined before aggregation.
func StackStatusDetailed(ctx context.Context, p paths.Paths, stackName string, includeStats bool) StackStatus {
	if _, err := os.Stat(p.PatchedComposePath(stackName)); err != nil {
		return StackStatus{StatusText: "× Not deployed", HealthSummary: "-"}
	}

	cli, err := Connect(ctx)
	if err != nil {
		return StackStatus{StatusText: "? Docker unavailable", HealthSummary: "-"}
	}
	defer cli.Close()

	containers, err := cli.ListProjectContainers(ctx, stackName)
	if err != nil || len(containers) == 0 {
		return StackStatus{StatusText: "× Down", HealthSummary: "-"}
	}

	type sample struct {
		cpu float64
		mem uint64
	}
	statsByID := map[string]sample{}
	if includeStats {
		var mu sync.Mutex
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(statsConcurrency)
		for _, cont := range containers {
			if string(cont.State) != "running" {
				continue
			}
			group.Go(func() error {
				cpu, mem, err := cli.Stats(groupCtx, cont.ID)
				if err != nil {
					// A single failed sample reads as zero usage.
					return nil
				}
				mu.Lock()
				statsByID[cont.ID] = sample{cpu: cpu, mem: mem}
				mu.Unlock()
				return nil
			})
		}
		_ = group.Wait()
	}

	status := StackStatus{}
	running := 0
	for _, cont := range containers {
		serviceName := cont.Labels[ComposeServiceLabel]
		if serviceName == "" && len(cont.Names) > 0 {
			serviceName = cont.Names[0]
		}

		health, _ := cli.HealthStatus(ctx, cont.ID)
		stats := statsByID[cont.ID]

		service := ServiceHealth{
			Name:        serviceName,
			Status:      string(cont.State),
			Health:      health,
			CPUPercent:  stats.cpu,
			MemoryBytes: stats.mem,
		}
		status.Services = append(status.Services, service)
		status.CPUPercent += stats.cpu
		status.MemoryBytes += stats.mem

		if string(cont.State) == "running" {
			running++
		}
		if health != "" {
			status.HealthDetails = append(status.HealthDetails, fmt.Sprintf("%s: %s", serviceName, health))
		}
	}

	status.StatusText = statusLine(running, len(status.Services))
	status.HealthSummary = summarizeHealth(status.Services)
	return status
}

func statusLine(running, total int) string {
	switch {
	case running == 0:
		return "× Down"
	case running == total:
		return fmt.Sprintf("✓ running (%d/%d)", running, total)
	default:
		return fmt.Sprintf("⚠ partial (%d/%d)", running, total)
	}
}

func summarizeHealth(services []ServiceHealth) string {
	unhealthy, starting, other := 0, 0, 0
	for _, service := range services {
		switch service.Health {
		case "unhealthy":
			unhealthy++
		case "starting":
			starting++
		case "healthy", "":
		default:
			other++
		}
	}
	switch {
	case unhealthy > 0:
		return fmt.Sprintf("⚠ %d unhealthy", unhealthy)
	case starting > 0:
		return "starting..."
	case other == 0:
		return "✓ healthy"
	default:
		return "-"
	}
}
