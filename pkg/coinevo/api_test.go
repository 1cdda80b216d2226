package coinevo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinevo/internal/config"
	"coinevo/internal/stats"
)

func tinyExperiment() config.Experiment {
	e := config.Default()
	e.Game = "2-3-10-v1"
	e.Generations = 2
	e.SizeNewGenerations = 3
	e.CarryOverCount = 1
	e.StepsToRetain = 2
	e.HiddenNeurons = 4
	return e
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	root := t.TempDir()
	c, err := New(Options{
		OutputRoot: filepath.Join(root, "experiments"),
		ExportsDir: filepath.Join(root, "exports"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRunWritesReport(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	summary, err := c.Run(ctx, RunRequest{Collection: "c1", Experiment: "e1", Params: tinyExperiment(), Workbook: true})
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.Len(t, summary.BestByGeneration, 2)
	assert.GreaterOrEqual(t, summary.BestFitness, 1)
	assert.GreaterOrEqual(t, summary.SimulationAverage, 1.0)

	for _, name := range []string{stats.CensusFile, stats.GenerationSummaryFile, stats.ParametersFile, stats.RunFile, stats.WorkbookFile} {
		_, err := os.Stat(filepath.Join(summary.Directory, name))
		require.NoError(t, err, name)
	}

	_, err = c.Run(ctx, RunRequest{Collection: "c1", Experiment: "e1", Params: tinyExperiment()})
	require.ErrorIs(t, err, stats.ErrExperimentExists)
}

func TestRunFailureReleasesExperimentName(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	params := tinyExperiment()
	params.Game = "no-such-game"
	_, err := c.Run(ctx, RunRequest{Collection: "c1", Experiment: "retry", Params: params})
	require.Error(t, err)
	_, err = os.Stat(filepath.Join(c.outputRoot, "c1", "retry"))
	require.True(t, os.IsNotExist(err))

	summary, err := c.Run(ctx, RunRequest{Collection: "c1", Experiment: "retry", Params: tinyExperiment()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.outputRoot, "c1", "retry"), summary.Directory)
}

func TestRunRejectsInvalidParameters(t *testing.T) {
	c := newTestClient(t)
	params := tinyExperiment()
	params.Generations = 0
	_, err := c.Run(context.Background(), RunRequest{Experiment: "bad", Params: params})
	require.Error(t, err)
}

func TestRunsGenerationsAndExport(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	first, err := c.Run(ctx, RunRequest{RunID: "run-a", Experiment: "a", Params: tinyExperiment()})
	require.NoError(t, err)
	require.Equal(t, "run-a", first.RunID)

	items, err := c.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "run-a", items[0].RunID)
	assert.Equal(t, "2-3-10-v1", items[0].Game)
	assert.Equal(t, 2, items[0].Generations)

	run, gens, err := c.Generations(ctx, GenerationsRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, "run-a", run.ID)
	require.Len(t, gens, 2)
	assert.Len(t, gens[0].AfterEvaluation, 3)

	exported, err := c.Export(ctx, ExportRequest{RunID: "run-a"})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(exported.Directory, stats.CensusFile))
	require.NoError(t, err)
}

func TestRunSelectorValidation(t *testing.T) {
	c := newTestClient(t)
	_, _, err := c.Generations(context.Background(), GenerationsRequest{})
	require.Error(t, err)
	_, _, err = c.Generations(context.Background(), GenerationsRequest{RunID: "x", Latest: true})
	require.Error(t, err)
	_, _, err = c.Generations(context.Background(), GenerationsRequest{Latest: true})
	require.ErrorContains(t, err, "no runs available")
	_, _, err = c.Generations(context.Background(), GenerationsRequest{RunID: "missing"})
	require.ErrorContains(t, err, "run not found")
}

func TestSweepRunsEveryCombination(t *testing.T) {
	c := newTestClient(t)
	c.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

	summary, err := c.Sweep(context.Background(), SweepRequest{
		Collection: "sweep",
		Base:       tinyExperiment(),
		Sweep:      config.Sweep{CarryOverCount: []int{0, 2}},
	})
	require.NoError(t, err)
	require.Len(t, summary.Runs, 2)
	assert.Equal(t, "120000.0000-000", summary.Runs[0].Experiment)
	assert.Equal(t, 4, summary.Runtime.Generations)
	assert.Equal(t, 12, summary.Runtime.Networks)

	for _, path := range []string{summary.FitnessSummaryPath, summary.RuntimeStatsPath} {
		_, err := os.Stat(path)
		require.NoError(t, err)
	}
}

func TestNewRejectsMissingGamesFile(t *testing.T) {
	_, err := New(Options{GamesFile: filepath.Join(t.TempDir(), "missing.ini")})
	require.Error(t, err)
}

func TestGamesListsBuiltIns(t *testing.T) {
	c := newTestClient(t)
	names := []string{}
	for _, g := range c.Games() {
		names = append(names, g.Name)
	}
	assert.Contains(t, names, "coin_collector_5")
}
