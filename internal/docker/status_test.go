package docker

import (
	"context"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"

	"github.com/OlegWock/surek/internal/paths"
)

func TestNotDeployed(t *testing.T) {
	p := paths.New(t.TempDir())
	status := StackStatusDetailed(context.Background(), p, "demo", false)
	assert.Equal(t, "× Not deployed", status.StatusText)
	assert.Equal(t, "-", status.HealthSummary)
	assert.Empty(t, status.Services)
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "× Down", statusLine(0, 3))
	assert.Equal(t, "✓ running (3/3)", statusLine(3, 3))
	assert.Equal(t, "⚠ partial (2/3)", statusLine(2, 3))
}

func TestSummarizeHealth(t *testing.T) {
	cases := []struct {
		name     string
		services []ServiceHealth
		want     string
	}{
		{
			"unhealthy wins",
			[]ServiceHealth{{Health: "healthy"}, {Health: "unhealthy"}, {Health: "starting"}},
			"⚠ 1 unhealthy",
		},
		{
			"starting next",
			[]ServiceHealth{{Health: "healthy"}, {Health: "starting"}},
			"starting...",
		},
		{
			"all healthy",
			[]ServiceHealth{{Health: "healthy"}, {Health: ""}},
			"✓ healthy",
		},
		{
			"no healthchecks",
			[]ServiceHealth{{Health: ""}, {Health: ""}},
			"✓ healthy",
		},
		{
			"unknown state",
			[]ServiceHealth{{Health: "weird"}},
			"-",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, summarizeHealth(tc.services))
		})
	}
}

func TestCalculateCPUPercent(t *testing.T) {
	stats := &container.StatsResponse{}
	stats.CPUStats.CPUUsage.TotalUsage = 200
	stats.PreCPUStats.CPUUsage.TotalUsage = 100
	stats.CPUStats.SystemUsage = 2000
	stats.PreCPUStats.SystemUsage = 1000
	stats.CPUStats.OnlineCPUs = 4

	// (100 / 1000) * 4 * 100 = 40%
	assert.InDelta(t, 40.0, calculateCPUPercent(stats), 0.001)
}

func TestCalculateCPUPercentNegativeDelta(t *testing.T) {
	stats := &container.StatsResponse{}
	stats.CPUStats.CPUUsage.TotalUsage = 50
	stats.PreCPUStats.CPUUsage.TotalUsage = 100
	stats.CPUStats.SystemUsage = 2000
	stats.PreCPUStats.SystemUsage = 1000

	assert.Zero(t, calculateCPUPercent(stats))
}

func TestCalculateCPUPercentMissingFields(t *testing.T) {
	assert.Zero(t, calculateCPUPercent(&container.StatsResponse{}))
}

func TestCalculateCPUPercentDefaultsToOneCPU(t *testing.T) {
	stats := &container.StatsResponse{}
	stats.CPUStats.CPUUsage.TotalUsage = 200
	stats.PreCPUStats.CPUUsage.TotalUsage = 100
	stats.CPUStats.SystemUsage = 2000
	stats.PreCPUStats.SystemUsage = 1000

	assert.InDelta(t, 10.0, calculateCPUPercent(stats), 0.001)
}
