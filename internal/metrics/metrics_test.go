package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"coinevo/internal/evo"
	"coinevo/internal/model"
)

func TestObserverRecordsGenerationStats(t *testing.T) {
	c := NewCollector()
	obs := c.Observer("exp-1")

	stats := evo.GenerationStats{Generation: 0, Networks: 10, BestFitness: 12, MeanFitness: 4.5, Wins: 2, Bred: 8, CarriedOver: 2, ElapsedMillis: 250}
	require.NoError(t, obs.ObserveGeneration(context.Background(), stats, model.GenerationRecord{}))
	stats.BestFitness = 9
	require.NoError(t, obs.ObserveGeneration(context.Background(), stats, model.GenerationRecord{}))

	require.Equal(t, 2.0, testutil.ToFloat64(c.generations.WithLabelValues("exp-1")))
	require.Equal(t, 20.0, testutil.ToFloat64(c.evaluations.WithLabelValues("exp-1")))
	require.Equal(t, 4.0, testutil.ToFloat64(c.wins.WithLabelValues("exp-1")))
	require.Equal(t, 9.0, testutil.ToFloat64(c.bestFitness.WithLabelValues("exp-1")))
	require.Equal(t, 4.5, testutil.ToFloat64(c.meanFitness.WithLabelValues("exp-1")))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	require.NoError(t, a.Observer("x").ObserveGeneration(context.Background(), evo.GenerationStats{Networks: 3}, model.GenerationRecord{}))
	require.Equal(t, 1.0, testutil.ToFloat64(a.generations.WithLabelValues("x")))
	require.Equal(t, 0, testutil.CollectAndCount(b.generations))
}

func TestHandlerServesRegistry(t *testing.T) {
	c := NewCollector()
	require.NoError(t, c.Observer("served").ObserveGeneration(context.Background(), evo.GenerationStats{BestFitness: 5}, model.GenerationRecord{}))

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `coinevo_best_fitness{experiment="served"} 5`)
}
