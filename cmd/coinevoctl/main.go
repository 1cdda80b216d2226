package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"coinevo/internal/config"
	"coinevo/internal/model"
	"coinevo/internal/scape"
	"coinevo/internal/stats"
	"coinevo/pkg/coinevo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "sweep":
		return runSweep(ctx, args[1:])
	case "games":
		return runGames(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "census":
		return runCensus(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	exp := bindExperimentFlags(fs)
	configPath := fs.String("config", "", "optional YAML experiment file")
	collection := fs.String("collection", "", "collection directory name (default from config, else 0)")
	experiment := fs.String("experiment", "", "experiment directory name (default timestamp)")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	workbook := fs.Bool("workbook", false, "also write report.xlsx")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	file, err := loadOrDefaultConfig(*configPath)
	if err != nil {
		return err
	}
	exp.apply(fs, &file.Experiment)
	if *collection != "" {
		file.Collection = *collection
	}

	client, cleanup, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := client.Run(ctx, coinevo.RunRequest{
		RunID:      *runID,
		Collection: file.Collection,
		Experiment: *experiment,
		Params:     file.Experiment,
		Workbook:   *workbook,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary)
	}
	fmt.Printf("run completed run_id=%s experiment=%s dir=%s best=%d simulation_average=%.4f\n",
		summary.RunID, summary.Experiment, summary.Directory, summary.BestFitness, summary.SimulationAverage)
	for gen, best := range summary.BestByGeneration {
		fmt.Printf("generation=%d best=%d\n", gen, best)
	}
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	exp := bindExperimentFlags(fs)
	configPath := fs.String("config", "", "YAML file with experiment defaults and sweep ranges")
	collection := fs.String("collection", "", "collection directory name (default from config, else 0)")
	maxExperiments := fs.Int("max-experiments", 64, "refuse sweeps that expand to more experiments than this")
	workbook := fs.Bool("workbook", false, "also write report.xlsx per experiment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("sweep requires --config")
	}

	file, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}
	exp.apply(fs, &file.Experiment)
	if *collection != "" {
		file.Collection = *collection
	}
	count := file.Sweep.Count()
	if count > *maxExperiments {
		return fmt.Errorf("sweep expands to %d experiments, above --max-experiments=%d", count, *maxExperiments)
	}

	client, cleanup, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("sweep queued experiments=%d collection=%s\n", count, file.Collection)
	summary, err := client.Sweep(ctx, coinevo.SweepRequest{
		Collection: file.Collection,
		Base:       file.Experiment,
		Sweep:      file.Sweep,
		Workbook:   *workbook,
	})
	if err != nil {
		return err
	}
	for _, r := range summary.Runs {
		fmt.Printf("experiment=%s run_id=%s best=%d simulation_average=%.4f elapsed=%s\n",
			r.Experiment, r.RunID, r.BestFitness, r.SimulationAverage, r.Elapsed)
	}
	fmt.Printf("sweep completed elapsed=%s per_generation=%s per_network=%s\n",
		summary.Runtime.Elapsed, summary.Runtime.PerGeneration(), summary.Runtime.PerNetwork())
	fmt.Printf("fitness_summary=%s\nruntime_stats=%s\n", summary.FitnessSummaryPath, summary.RuntimeStatsPath)
	return nil
}

func runGames(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("games", flag.ContinueOnError)
	gamesFile := fs.String("games", "", "optional INI file with extra games")
	jsonOut := fs.Bool("json", false, "emit games as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	registry := scape.NewRegistry()
	if *gamesFile != "" {
		if err := registry.LoadFile(*gamesFile); err != nil {
			return err
		}
	}
	games := registry.List()
	if *jsonOut {
		return writeJSON(games)
	}
	for _, g := range games {
		fmt.Printf("game=%s rooms=%d max_steps=%d seed=%d distractors=%d\n", g.Name, g.Rooms, g.MaxSteps, g.Seed, g.Distractors)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, cleanup, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	items, err := client.Runs(ctx, coinevo.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s collection=%s experiment=%s game=%s generations=%d average_fitness=%.4f best=%d\n",
			item.RunID, item.CreatedAtUTC, item.Collection, item.Experiment, item.Game, item.Generations, item.AverageFitness, item.BestFitness)
	}
	return nil
}

// runCensus prints a stored run's census as CSV in the report layout.
func runCensus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("census", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	generation := fs.Int("generation", -1, "only this generation (-1 prints every snapshot)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, cleanup, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	run, gens, err := client.Generations(ctx, coinevo.GenerationsRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	if err := w.Write(stats.CensusHeader()); err != nil {
		return err
	}
	if *generation < 0 {
		for _, entry := range run.Initial {
			if err := w.Write(stats.CensusRow("initial", model.StageInitial, entry)); err != nil {
				return err
			}
		}
	}
	found := *generation < 0
	for _, gen := range gens {
		if *generation >= 0 && gen.Generation != *generation {
			continue
		}
		found = true
		label := strconv.Itoa(gen.Generation)
		for _, entry := range gen.AfterEvaluation {
			if err := w.Write(stats.CensusRow(label, model.StageAfterEvaluation, entry)); err != nil {
				return err
			}
		}
		for _, entry := range gen.AfterCarryOver {
			if err := w.Write(stats.CensusRow(label, model.StageAfterCarryOver, entry)); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("generation %d not found in run %s", *generation, run.ID)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := bindCommonFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("to", "exports", "export output directory")
	workbook := fs.Bool("workbook", false, "also write report.xlsx")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, cleanup, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	exported, err := client.Export(ctx, coinevo.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir, Workbook: *workbook})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: coinevoctl <run|sweep|games|runs|census|export> [flags]", msg)
}
