package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"coinevo/internal/config"
	"coinevo/internal/evo"
	"coinevo/internal/metrics"
	"coinevo/internal/model"
	"coinevo/internal/scape"
	"coinevo/internal/storage"
)

type Config struct {
	Store   storage.Store
	Games   *scape.Registry
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

type EvolutionConfig struct {
	RunID      string
	Collection string
	Experiment string
	Params     config.Experiment
}

type EvolutionResult struct {
	Run         model.RunRecord
	Generations []model.GenerationRecord
	Stats       []evo.GenerationStats
}

// Polis owns the shared resources runs need: the record store, the game
// registry and the metrics collector. It tracks active runs so they can be
// stopped by id.
type Polis struct {
	store   storage.Store
	games   *scape.Registry
	metrics *metrics.Collector
	log     *slog.Logger

	mu      sync.RWMutex
	started bool
	runs    map[string]context.CancelFunc
}

func NewPolis(cfg Config) *Polis {
	games := cfg.Games
	if games == nil {
		games = scape.NewRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Polis{
		store:   cfg.Store,
		games:   games,
		metrics: cfg.Metrics,
		log:     logger,
		runs:    make(map[string]context.CancelFunc),
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	p.started = true
	return nil
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) Store() storage.Store {
	return p.store
}

func (p *Polis) Games() *scape.Registry {
	return p.games
}

// Stop cancels every active run and marks the polis stopped.
func (p *Polis) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cancel := range p.runs {
		cancel()
	}
	p.started = false
}

func (p *Polis) StopRun(runID string) error {
	p.mu.RLock()
	cancel, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	cancel()
	return nil
}

func (p *Polis) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RunEvolution plays one experiment to completion. The run record is saved
// once the initial population exists and again with the final results; each
// generation is saved as it completes.
func (p *Polis) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if err := cfg.Params.Validate(); err != nil {
		return EvolutionResult{}, err
	}
	if !p.Started() {
		return EvolutionResult{}, fmt.Errorf("polis is not initialized")
	}
	game, err := p.games.Lookup(cfg.Params.Game)
	if err != nil {
		return EvolutionResult{}, err
	}
	coinScape, err := scape.NewCoinCollectorScape(game, cfg.Params.Shaping())
	if err != nil {
		return EvolutionResult{}, fmt.Errorf("build scape %s: %w", game.Name, err)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := p.registerRun(runID, cancel); err != nil {
		return EvolutionResult{}, err
	}
	defer p.unregisterRun(runID)

	observers := []evo.GenerationObserver{&generationRecorder{store: p.store, runID: runID}}
	if p.metrics != nil {
		observers = append(observers, p.metrics.Observer(cfg.Experiment))
	}
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Scape:              coinScape,
		GeneSpec:           cfg.Params.GeneSpec(),
		Breed:              cfg.Params.BreedParams(),
		Generations:        cfg.Params.Generations,
		SizeNewGenerations: cfg.Params.SizeNewGenerations,
		CarryOver:          cfg.Params.CarryOverCount,
		Workers:            cfg.Params.Workers,
		Seed:               cfg.Params.Seed,
		Logger:             p.log.With("run_id", runID, "experiment", cfg.Experiment),
		Observers:          observers,
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	started := time.Now()
	pop, err := monitor.Seed()
	if err != nil {
		return EvolutionResult{}, fmt.Errorf("seed population: %w", err)
	}
	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Collection:      cfg.Collection,
		Experiment:      cfg.Experiment,
		Parameters:      cfg.Params.Parameters(),
		Initial:         pop.Census(),
		CreatedAtUTC:    started.UTC().Format(time.RFC3339Nano),
	}
	if err := p.store.SaveRun(runCtx, run); err != nil {
		return EvolutionResult{}, fmt.Errorf("save run %s: %w", runID, err)
	}

	result, err := monitor.RunFrom(runCtx, pop, uint64(pop.Len()))
	if err != nil {
		return EvolutionResult{}, fmt.Errorf("run %s: %w", runID, err)
	}

	run.Generations = len(result.Generations)
	run.AverageFitness = result.AverageFitness
	run.BestFitness = result.BestFitness
	run.ElapsedMillis = time.Since(started).Milliseconds()
	if err := p.store.SaveRun(ctx, run); err != nil {
		return EvolutionResult{}, fmt.Errorf("save run %s: %w", runID, err)
	}

	generations := make([]model.GenerationRecord, len(result.Generations))
	for i, gen := range result.Generations {
		generations[i] = stampGeneration(gen, runID)
	}
	return EvolutionResult{Run: run, Generations: generations, Stats: result.Stats}, nil
}

func (p *Polis) registerRun(runID string, cancel context.CancelFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	p.runs[runID] = cancel
	return nil
}

func (p *Polis) unregisterRun(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runs, runID)
}
