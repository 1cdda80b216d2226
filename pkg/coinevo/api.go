package coinevo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"coinevo/internal/config"
	"coinevo/internal/metrics"
	"coinevo/internal/model"
	"coinevo/internal/platform"
	"coinevo/internal/scape"
	"coinevo/internal/stats"
	"coinevo/internal/storage"
)

const (
	defaultOutputRoot = "experiments"
	defaultExportsDir = "exports"
	defaultDBPath     = "coinevo.db"
	defaultCollection = "0"
)

type Options struct {
	StoreKind  string
	DBPath     string
	OutputRoot string
	ExportsDir string
	GamesFile  string
	Logger     *slog.Logger
	Metrics    *metrics.Collector
}

type Client struct {
	polis *platform.Polis
	log   *slog.Logger

	outputRoot string
	exportsDir string
	now        func() time.Time
}

type RunRequest struct {
	RunID      string
	Collection string
	Experiment string
	Params     config.Experiment
	Workbook   bool
}

type RunSummary struct {
	RunID             string
	Collection        string
	Experiment        string
	Directory         string
	BestByGeneration  []int
	BestFitness       int
	SimulationAverage float64
	Elapsed           time.Duration
}

type SweepRequest struct {
	Collection string
	Base       config.Experiment
	Sweep      config.Sweep
	Workbook   bool
}

type SweepSummary struct {
	Runs               []RunSummary
	FitnessSummaryPath string
	RuntimeStatsPath   string
	Runtime            stats.RuntimeStats
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Collection     string
	Experiment     string
	Game           string
	Generations    int
	AverageFitness float64
	BestFitness    int
}

type GenerationsRequest struct {
	RunID  string
	Latest bool
}

type ExportRequest struct {
	RunID    string
	Latest   bool
	OutDir   string
	Workbook bool
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" && opts.StoreKind == storage.KindSQLite {
		dbPath = defaultDBPath
	}
	outputRoot := opts.OutputRoot
	if outputRoot == "" {
		outputRoot = defaultOutputRoot
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	games := scape.NewRegistry()
	if opts.GamesFile != "" {
		if err := games.LoadFile(opts.GamesFile); err != nil {
			return nil, err
		}
	}

	return &Client{
		polis: platform.NewPolis(platform.Config{
			Store:   store,
			Games:   games,
			Metrics: opts.Metrics,
			Logger:  logger,
		}),
		log:        logger,
		outputRoot: outputRoot,
		exportsDir: exportsDir,
		now:        time.Now,
	}, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.polis.Init(ctx)
}

func (c *Client) Close() error {
	c.polis.Stop()
	return storage.CloseIfSupported(c.polis.Store())
}

func (c *Client) Games() []scape.Game {
	return c.polis.Games().List()
}

// Run plays one experiment and writes its report into
// <output root>/<collection>/<experiment>. An existing experiment directory
// is an error.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	if req.Collection == "" {
		req.Collection = defaultCollection
	}
	if req.Experiment == "" {
		req.Experiment = experimentName(c.now())
	}
	if err := req.Params.Validate(); err != nil {
		return RunSummary{}, err
	}

	dir, err := stats.CreateExperimentDir(c.outputRoot, req.Collection, req.Experiment)
	if err != nil {
		return RunSummary{}, err
	}

	started := c.now()
	result, err := c.polis.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:      req.RunID,
		Collection: req.Collection,
		Experiment: req.Experiment,
		Params:     req.Params,
	})
	if err != nil {
		return RunSummary{}, c.discardExperimentDir(dir, err)
	}

	simAvg, err := writeReport(dir, result.Run, result.Generations, req.Workbook)
	if err != nil {
		return RunSummary{}, c.discardExperimentDir(dir, err)
	}

	best := make([]int, len(result.Stats))
	for i, s := range result.Stats {
		best[i] = s.BestFitness
	}
	c.log.Info("experiment complete",
		"run_id", result.Run.ID,
		"experiment", req.Experiment,
		"simulation_average", simAvg,
		"best_fitness", result.Run.BestFitness,
	)
	return RunSummary{
		RunID:             result.Run.ID,
		Collection:        req.Collection,
		Experiment:        req.Experiment,
		Directory:         dir,
		BestByGeneration:  best,
		BestFitness:       result.Run.BestFitness,
		SimulationAverage: simAvg,
		Elapsed:           c.now().Sub(started),
	}, nil
}

// discardExperimentDir removes the directory of a run that did not finish so
// the experiment name can be reused.
func (c *Client) discardExperimentDir(dir string, cause error) error {
	if err := os.RemoveAll(dir); err != nil {
		c.log.Warn("remove experiment directory", "dir", dir, "error", err)
	}
	return cause
}

// Sweep runs every combination of the sweep ranges over Base, then writes
// the ranked fitness summary and cumulative runtime into the collection.
func (c *Client) Sweep(ctx context.Context, req SweepRequest) (SweepSummary, error) {
	if req.Collection == "" {
		req.Collection = defaultCollection
	}
	experiments := req.Sweep.Expand(req.Base)
	for i, e := range experiments {
		if err := e.Validate(); err != nil {
			return SweepSummary{}, fmt.Errorf("sweep experiment %d: %w", i, err)
		}
	}

	started := c.now()
	stamp := experimentName(started)
	summary := SweepSummary{Runs: make([]RunSummary, 0, len(experiments))}
	results := make([]stats.ExperimentFitness, 0, len(experiments))
	for i, params := range experiments {
		run, err := c.Run(ctx, RunRequest{
			Collection: req.Collection,
			Experiment: fmt.Sprintf("%s-%03d", stamp, i),
			Params:     params,
			Workbook:   req.Workbook,
		})
		if err != nil {
			return SweepSummary{}, err
		}
		summary.Runs = append(summary.Runs, run)
		results = append(results, stats.ExperimentFitness{Experiment: run.Experiment, Fitness: run.SimulationAverage})
		summary.Runtime.Generations += params.Generations
		summary.Runtime.Networks += params.SizeNewGenerations * params.Generations
		c.log.Info("sweep progress", "completed", i+1, "remaining", len(experiments)-i-1, "elapsed", run.Elapsed)
	}
	summary.Runtime.Elapsed = c.now().Sub(started)

	fitnessPath, runtimePath, err := stats.WriteSweepSummary(
		filepath.Join(c.outputRoot, req.Collection),
		stats.SweepStamp(started),
		results,
		summary.Runtime,
	)
	if err != nil {
		return SweepSummary{}, err
	}
	summary.FitnessSummaryPath = fitnessPath
	summary.RuntimeStatsPath = runtimePath
	return summary, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	runs, err := c.polis.Store().ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		game, _ := run.Parameters["game"].(string)
		out = append(out, RunItem{
			RunID:          run.ID,
			CreatedAtUTC:   run.CreatedAtUTC,
			Collection:     run.Collection,
			Experiment:     run.Experiment,
			Game:           game,
			Generations:    run.Generations,
			AverageFitness: run.AverageFitness,
			BestFitness:    run.BestFitness,
		})
	}
	return out, nil
}

// Generations returns the stored census of a run, one record per generation.
func (c *Client) Generations(ctx context.Context, req GenerationsRequest) (model.RunRecord, []model.GenerationRecord, error) {
	run, err := c.resolveRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return model.RunRecord{}, nil, err
	}
	gens, _, err := c.polis.Store().GetGenerations(ctx, run.ID)
	if err != nil {
		return model.RunRecord{}, nil, err
	}
	return run, gens, nil
}

// Export rewrites a stored run's report into <out dir>/<run id>.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	run, gens, err := c.Generations(ctx, GenerationsRequest{RunID: req.RunID, Latest: req.Latest})
	if err != nil {
		return ExportSummary{}, err
	}
	dir := filepath.Join(req.OutDir, run.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportSummary{}, err
	}
	if _, err := writeReport(dir, run, gens, req.Workbook); err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: run.ID, Directory: filepath.Clean(dir)}, nil
}

func (c *Client) resolveRun(ctx context.Context, runID string, latest bool) (model.RunRecord, error) {
	if runID != "" && latest {
		return model.RunRecord{}, errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return model.RunRecord{}, errors.New("run id or latest is required")
	}
	if err := c.Init(ctx); err != nil {
		return model.RunRecord{}, err
	}
	store := c.polis.Store()
	if latest {
		runs, err := store.ListRuns(ctx)
		if err != nil {
			return model.RunRecord{}, err
		}
		if len(runs) == 0 {
			return model.RunRecord{}, errors.New("no runs available")
		}
		return runs[0], nil
	}
	run, ok, err := store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

func writeReport(dir string, run model.RunRecord, gens []model.GenerationRecord, workbook bool) (float64, error) {
	simAvg, err := stats.WriteRunReport(dir, run, gens)
	if err != nil {
		return 0, fmt.Errorf("write report %s: %w", dir, err)
	}
	if workbook {
		if err := stats.WriteWorkbook(filepath.Join(dir, stats.WorkbookFile), run, gens); err != nil {
			return 0, fmt.Errorf("write workbook %s: %w", dir, err)
		}
	}
	return simAvg, nil
}

// experimentName stamps an experiment directory, e.g. 153012.4821.
func experimentName(t time.Time) string {
	return t.Format("150405.0000")
}
