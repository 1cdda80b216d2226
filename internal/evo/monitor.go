package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"

	"coinevo/internal/agent"
	"coinevo/internal/genotype"
	"coinevo/internal/model"
	"coinevo/internal/scape"
)

var ErrCarryOverMismatch = errors.New("carried-over network changed across generations")

// GenerationStats summarises one evaluated generation.
type GenerationStats struct {
	Generation    int     `json:"generation"`
	Networks      int     `json:"number_of_networks"`
	BestFitness   int     `json:"maximum_fitness"`
	MeanFitness   float64 `json:"average_fitness"`
	MinFitness    int     `json:"minimum_fitness"`
	StdDevFitness float64 `json:"stddev_fitness"`
	Wins          int     `json:"wins"`
	Bred          int     `json:"bred"`
	CarriedOver   int     `json:"carried_over"`
	ElapsedMillis int64   `json:"elapsed_ms"`
}

// GenerationObserver receives each completed generation. Returning an error
// aborts the run.
type GenerationObserver interface {
	ObserveGeneration(ctx context.Context, stats GenerationStats, record model.GenerationRecord) error
}

type RunResult struct {
	Initial     []model.CensusEntry
	Generations []model.GenerationRecord
	Stats       []GenerationStats
	Final       *Population
	NextSerial  uint64
	// AverageFitness is the mean of the per-generation averages, each rounded
	// to 2 decimal places first, rounded to 4 decimal places.
	AverageFitness float64
	BestFitness    int
}

type MonitorConfig struct {
	Scape              scape.Scape
	GeneSpec           genotype.GeneSpec
	Breed              BreedParams
	Generations        int
	SizeNewGenerations int
	CarryOver          int
	Inputs             int
	Workers            int
	Seed               int64
	StartSerial        uint64
	Logger             *slog.Logger
	Observers          []GenerationObserver
}

// MaxPopulationSize is the bred children plus the carry-over allowance.
func (c MonitorConfig) MaxPopulationSize() int {
	return c.SizeNewGenerations + c.CarryOver
}

type PopulationMonitor struct {
	cfg     MonitorConfig
	rng     *rand.Rand
	breeder Breeder
	log     *slog.Logger
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.SizeNewGenerations < 2 {
		return nil, fmt.Errorf("size of new generations must be >= 2")
	}
	if cfg.CarryOver < 0 {
		return nil, fmt.Errorf("carry-over count must be >= 0")
	}
	if shaped, ok := cfg.Scape.(scape.Shaped); ok {
		if cfg.Inputs <= 0 {
			cfg.Inputs = shaped.Inputs()
		}
		cfg.GeneSpec.OutputCount = shaped.Outputs()
	}
	if cfg.Inputs <= 0 {
		return nil, fmt.Errorf("input size is required for scape %s", cfg.Scape.Name())
	}
	if err := cfg.GeneSpec.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &PopulationMonitor{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		breeder: Breeder{Params: cfg.Breed},
		log:     cfg.Logger.With("scape", cfg.Scape.Name()),
	}, nil
}

// Seed creates the initial random population.
func (m *PopulationMonitor) Seed() (*Population, error) {
	pop := NewPopulation()
	if err := pop.CreateRandomPopulation(m.rng, m.cfg.GeneSpec, m.cfg.SizeNewGenerations, m.cfg.StartSerial, m.cfg.Inputs); err != nil {
		return nil, err
	}
	return pop, nil
}

// Run seeds a population and evolves it for the configured generations.
func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	pop, err := m.Seed()
	if err != nil {
		return RunResult{}, err
	}
	return m.RunFrom(ctx, pop, m.cfg.StartSerial+uint64(pop.Len()))
}

// RunFrom evolves an existing population. nextSerial is the first serial
// number handed to a bred child.
func (m *PopulationMonitor) RunFrom(ctx context.Context, pop *Population, nextSerial uint64) (RunResult, error) {
	result := RunResult{
		Initial:     pop.Census(),
		Generations: make([]model.GenerationRecord, 0, m.cfg.Generations),
		Stats:       make([]GenerationStats, 0, m.cfg.Generations),
	}
	averages := make([]float64, 0, m.cfg.Generations)

	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		started := time.Now()

		traces, err := m.evaluatePopulation(ctx, pop, gen)
		if err != nil {
			return RunResult{}, err
		}
		record := model.GenerationRecord{
			Generation:      gen,
			AfterEvaluation: pop.Census(),
		}
		stats := summarizeGeneration(pop, gen, traces)

		pop.CreateFitnessMap()
		next := NewPopulation()
		for i := 0; i < m.cfg.SizeNewGenerations; i++ {
			child, err := m.breeder.CrossAndMutate(m.rng, pop, nextSerial)
			if err != nil {
				return RunResult{}, fmt.Errorf("generation %d breed child %d: %w", gen, i, err)
			}
			next.Add(child)
			nextSerial++
		}

		carried, err := m.carryOver(pop, next)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d carry-over: %w", gen, err)
		}
		if err := VerifyCarryOver(pop, next); err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen, err)
		}

		pop = next
		record.AfterCarryOver = pop.Census()
		record.CarriedOver = carried
		stats.Bred = m.cfg.SizeNewGenerations
		stats.CarriedOver = carried
		stats.ElapsedMillis = time.Since(started).Milliseconds()

		m.log.Info("generation complete",
			"generation", gen,
			"networks", stats.Networks,
			"mean_fitness", stats.MeanFitness,
			"max_fitness", stats.BestFitness,
			"carried_over", carried,
		)
		for _, observer := range m.cfg.Observers {
			if err := observer.ObserveGeneration(ctx, stats, record); err != nil {
				return RunResult{}, fmt.Errorf("observe generation %d: %w", gen, err)
			}
		}

		result.Generations = append(result.Generations, record)
		result.Stats = append(result.Stats, stats)
		averages = append(averages, roundTo(stats.MeanFitness, 2))
		if stats.BestFitness > result.BestFitness {
			result.BestFitness = stats.BestFitness
		}
	}

	result.Final = pop
	result.NextSerial = nextSerial
	result.AverageFitness = roundTo(stat.Mean(averages, nil), 4)
	return result, nil
}

// evaluatePopulation plays every network through the scape and stores the
// fitness by index. Each network gets its own random stream derived from the
// monitor's source so results do not depend on scheduling.
func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, pop *Population, generation int) ([]scape.Trace, error) {
	networks := pop.Networks()
	if len(networks) == 0 {
		return nil, nil
	}
	seeds := make([]int64, len(networks))
	for i := range seeds {
		seeds[i] = m.rng.Int63()
	}

	fitness := make([]scape.Fitness, len(networks))
	traces := make([]scape.Trace, len(networks))

	workers := m.cfg.Workers
	if workers > len(networks) {
		workers = len(networks)
	}
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(workers).WithCancelOnError()
	for i, n := range networks {
		i, n := i, n
		p.Go(func(ctx context.Context) error {
			rng := rand.New(rand.NewSource(seeds[i]))
			f, trace, err := m.evaluateNetwork(ctx, n, rng)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", n.ID(), err)
			}
			fitness[i] = f
			traces[i] = trace
			m.log.Debug("network evaluated", "generation", generation, "network", n.ID(), "fitness", int(f))
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	for i, f := range fitness {
		pop.SetFitness(i, int(f))
	}
	return traces, nil
}

func (m *PopulationMonitor) evaluateNetwork(ctx context.Context, n *agent.Network, rng *rand.Rand) (scape.Fitness, scape.Trace, error) {
	policy, err := n.Policy(rng)
	if err != nil {
		return 0, nil, err
	}
	return m.cfg.Scape.Evaluate(ctx, policy, rng)
}

// carryOver copies the fittest networks of prev into next as fresh values
// with serial number and lineage preserved. Networks at FailureFitness are
// skipped.
func (m *PopulationMonitor) carryOver(prev, next *Population) (int, error) {
	count := m.cfg.MaxPopulationSize() - next.Len()
	return CarryOver(prev, next, count)
}

// CarryOver moves up to count of prev's fittest networks into next and
// reports how many were carried.
func CarryOver(prev, next *Population, count int) (int, error) {
	if count > prev.Len() {
		count = prev.Len()
	}
	if count <= 0 {
		return 0, nil
	}
	order := make([]int, prev.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return prev.Fitness(order[a]) > prev.Fitness(order[b])
	})

	carried := 0
	for _, idx := range order[:count] {
		if prev.Fitness(idx) == FailureFitness {
			continue
		}
		src := prev.Network(idx)
		weights, err := src.Weights()
		if err != nil {
			return carried, fmt.Errorf("carry %s: %w", src.ID(), err)
		}
		genome := src.Genome()
		n, err := next.CreateNetwork(src.SerialNumber(), genome, weights, genome.Meta.Parent1, genome.Meta.Parent2)
		if err != nil {
			return carried, fmt.Errorf("carry %s: %w", src.ID(), err)
		}
		next.Add(n)
		carried++
	}
	return carried, nil
}

// VerifyCarryOver checks that every serial number present in both
// populations has an identical checksum.
func VerifyCarryOver(prev, next *Population) error {
	before := make(map[uint64]float64, prev.Len())
	for _, n := range prev.networks {
		sum, err := n.Checksum()
		if err != nil {
			return err
		}
		before[n.SerialNumber()] = sum
	}
	for _, n := range next.networks {
		old, ok := before[n.SerialNumber()]
		if !ok {
			continue
		}
		sum, err := n.Checksum()
		if err != nil {
			return err
		}
		if sum != old {
			return fmt.Errorf("%w: %s checksum %v -> %v", ErrCarryOverMismatch, n.ID(), old, sum)
		}
	}
	return nil
}

func summarizeGeneration(pop *Population, generation int, traces []scape.Trace) GenerationStats {
	stats := GenerationStats{Generation: generation, Networks: pop.Len()}
	if pop.Len() == 0 {
		return stats
	}
	values := make([]float64, pop.Len())
	stats.BestFitness = pop.Fitness(0)
	stats.MinFitness = pop.Fitness(0)
	for i := range values {
		f := pop.Fitness(i)
		values[i] = float64(f)
		stats.BestFitness = max(stats.BestFitness, f)
		stats.MinFitness = min(stats.MinFitness, f)
		if won, _ := traces[i]["won"].(bool); won {
			stats.Wins++
		}
	}
	stats.MeanFitness = stat.Mean(values, nil)
	if len(values) > 1 {
		stats.StdDevFitness = stat.StdDev(values, nil)
	}
	return stats
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
