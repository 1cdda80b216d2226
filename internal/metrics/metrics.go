// Package metrics exposes evolution progress as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coinevo/internal/evo"
	"coinevo/internal/model"
)

const namespace = "coinevo"

// Collector owns its own registry so several runs in one process do not
// collide on the default registerer.
type Collector struct {
	registry *prometheus.Registry

	generations   *prometheus.CounterVec
	evaluations   *prometheus.CounterVec
	bred          *prometheus.CounterVec
	carriedOver   *prometheus.CounterVec
	wins          *prometheus.CounterVec
	bestFitness   *prometheus.GaugeVec
	meanFitness   *prometheus.GaugeVec
	generationDur *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "generations_total",
			Help: "Completed generations.",
		}, []string{"experiment"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "evaluations_total",
			Help: "Networks scored by the scape.",
		}, []string{"experiment"}),
		bred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "networks_bred_total",
			Help: "Children produced by crossover and mutation.",
		}, []string{"experiment"}),
		carriedOver: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "networks_carried_over_total",
			Help: "Networks copied unchanged into the next generation.",
		}, []string{"experiment"}),
		wins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "wins_total",
			Help: "Evaluations that collected the coin.",
		}, []string{"experiment"}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "best_fitness",
			Help: "Best fitness of the latest generation.",
		}, []string{"experiment"}),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "mean_fitness",
			Help: "Mean fitness of the latest generation.",
		}, []string{"experiment"}),
		generationDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "generation_duration_seconds",
			Help:    "Wall time per generation.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"experiment"}),
	}
	c.registry.MustRegister(
		c.generations, c.evaluations, c.bred, c.carriedOver, c.wins,
		c.bestFitness, c.meanFitness, c.generationDur,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Observer returns a generation observer that records under experiment.
func (c *Collector) Observer(experiment string) evo.GenerationObserver {
	return &observer{c: c, experiment: experiment}
}

type observer struct {
	c          *Collector
	experiment string
}

func (o *observer) ObserveGeneration(_ context.Context, stats evo.GenerationStats, _ model.GenerationRecord) error {
	labels := prometheus.Labels{"experiment": o.experiment}
	o.c.generations.With(labels).Inc()
	o.c.evaluations.With(labels).Add(float64(stats.Networks))
	o.c.bred.With(labels).Add(float64(stats.Bred))
	o.c.carriedOver.With(labels).Add(float64(stats.CarriedOver))
	o.c.wins.With(labels).Add(float64(stats.Wins))
	o.c.bestFitness.With(labels).Set(float64(stats.BestFitness))
	o.c.meanFitness.With(labels).Set(stats.MeanFitness)
	o.c.generationDur.With(labels).Observe(float64(stats.ElapsedMillis) / 1000)
	return nil
}
