package stats

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSweepSummary(t *testing.T) {
	dir := t.TempDir()
	stamp := SweepStamp(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC))
	assert.Equal(t, "20260304T050607Z", stamp)

	fitnessPath, runtimePath, err := WriteSweepSummary(dir, stamp, []ExperimentFitness{
		{Experiment: "a", Fitness: 3},
		{Experiment: "b", Fitness: 9.5},
		{Experiment: "c", Fitness: 1},
	}, RuntimeStats{Elapsed: 20 * time.Second, Generations: 4, Networks: 40})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fitness_summary_by_experiment_"+stamp+".csv"), fitnessPath)

	assert.Equal(t, [][]string{
		{"experiment", "fitness"},
		{"b", "9.5"},
		{"a", "3"},
		{"c", "1"},
	}, readCSV(t, fitnessPath))
	assert.Equal(t, [][]string{
		{"elapsed_seconds", "seconds_per_generation", "seconds_per_network"},
		{"20", "5", "0.5"},
	}, readCSV(t, runtimePath))
}

func TestRuntimeStatsZeroDivisors(t *testing.T) {
	r := RuntimeStats{Elapsed: time.Second}
	assert.Zero(t, r.PerGeneration())
	assert.Zero(t, r.PerNetwork())
}
