package platform

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinevo/internal/config"
	"coinevo/internal/metrics"
	"coinevo/internal/scape"
	"coinevo/internal/stats"
	"coinevo/internal/storage"
)

func smallExperiment() config.Experiment {
	e := config.Default()
	e.Game = "2-3-10-v1"
	e.Generations = 2
	e.SizeNewGenerations = 4
	e.CarryOverCount = 2
	e.StepsToRetain = 2
	e.HiddenNeurons = 4
	e.Seed = 7
	return e
}

func newTestPolis(t *testing.T, collector *metrics.Collector) *Polis {
	t.Helper()
	p := NewPolis(Config{Store: storage.NewMemoryStore(), Metrics: collector})
	require.NoError(t, p.Init(context.Background()))
	return p
}

func TestInitRequiresStore(t *testing.T) {
	require.Error(t, NewPolis(Config{}).Init(context.Background()))
}

func TestRunEvolutionRequiresInit(t *testing.T) {
	p := NewPolis(Config{Store: storage.NewMemoryStore()})
	_, err := p.RunEvolution(context.Background(), EvolutionConfig{Params: smallExperiment()})
	require.ErrorContains(t, err, "not initialized")
}

func TestRunEvolutionUnknownGame(t *testing.T) {
	p := newTestPolis(t, nil)
	params := smallExperiment()
	params.Game = "nope"
	_, err := p.RunEvolution(context.Background(), EvolutionConfig{Params: params})
	require.ErrorIs(t, err, scape.ErrUnknownGame)
}

func TestRunEvolutionPersistsRunAndGenerations(t *testing.T) {
	ctx := context.Background()
	collector := metrics.NewCollector()
	p := newTestPolis(t, collector)

	result, err := p.RunEvolution(ctx, EvolutionConfig{
		RunID:      "run-1",
		Collection: "c",
		Experiment: "e",
		Params:     smallExperiment(),
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", result.Run.ID)
	assert.Equal(t, 2, result.Run.Generations)
	assert.Len(t, result.Run.Initial, 4)
	assert.GreaterOrEqual(t, result.Run.BestFitness, 1)
	require.Len(t, result.Generations, 2)
	require.Len(t, result.Stats, 2)

	stored, ok, err := p.Store().GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, stored.Generations)
	assert.Equal(t, result.Run.AverageFitness, stored.AverageFitness)
	assert.Equal(t, stats.SimulationAverage(stats.SummarizeGenerations(result.Generations)), stored.AverageFitness)

	gens, ok, err := p.Store().GetGenerations(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, gens, 2)
	for i, gen := range gens {
		assert.Equal(t, i, gen.Generation)
		assert.Equal(t, "run-1", gen.RunID)
		if i == 0 {
			assert.Len(t, gen.AfterEvaluation, 4)
		} else {
			assert.Len(t, gen.AfterEvaluation, 4+gens[i-1].CarriedOver)
			assert.Len(t, gen.AfterEvaluation, len(gens[i-1].AfterCarryOver))
		}
		assert.LessOrEqual(t, len(gen.AfterCarryOver), 6)
	}

	expected := `
# HELP coinevo_generations_total Completed generations.
# TYPE coinevo_generations_total counter
coinevo_generations_total{experiment="e"} 2
`
	require.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "coinevo_generations_total"))
	assert.Empty(t, p.ActiveRuns())
}

func TestRunEvolutionGeneratesRunID(t *testing.T) {
	p := newTestPolis(t, nil)
	params := smallExperiment()
	params.Generations = 1
	result, err := p.RunEvolution(context.Background(), EvolutionConfig{Params: params})
	require.NoError(t, err)
	assert.Len(t, result.Run.ID, 36)
}

func TestRunEvolutionHonoursCancellation(t *testing.T) {
	p := newTestPolis(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.RunEvolution(ctx, EvolutionConfig{Params: smallExperiment()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestStopRunUnknown(t *testing.T) {
	p := newTestPolis(t, nil)
	require.Error(t, p.StopRun("missing"))
}

func TestStopCancelsActiveRuns(t *testing.T) {
	p := newTestPolis(t, nil)
	cancelled := false
	require.NoError(t, p.registerRun("r", func() { cancelled = true }))
	require.Error(t, p.registerRun("r", func() {}))
	assert.Equal(t, []string{"r"}, p.ActiveRuns())

	p.Stop()
	assert.True(t, cancelled)
	assert.False(t, p.Started())
}
