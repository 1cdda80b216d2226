package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"coinevo/internal/config"
	"coinevo/internal/metrics"
	"coinevo/internal/storage"
	"coinevo/pkg/coinevo"
)

type commonFlags struct {
	storeKind   *string
	dbPath      *string
	outputRoot  *string
	gamesFile   *string
	logFormat   *string
	logLevel    *string
	metricsAddr *string
}

func bindCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		storeKind:   fs.String("store", storage.KindBadger, "store backend: memory|badger|sqlite"),
		dbPath:      fs.String("db-path", "", "badger directory or sqlite file (default per backend)"),
		outputRoot:  fs.String("out", "experiments", "root directory for experiment reports"),
		gamesFile:   fs.String("games", "", "optional INI file with extra games"),
		logFormat:   fs.String("log-format", "text", "log format: text|json"),
		logLevel:    fs.String("log-level", "info", "log level: debug|info|warn|error"),
		metricsAddr: fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running"),
	}
}

func defaultDBPath(kind string) string {
	switch kind {
	case storage.KindSQLite:
		return "coinevo.db"
	case storage.KindBadger:
		return "coinevo.badger"
	default:
		return ""
	}
}

// open builds a client from the common flags. The returned cleanup stops the
// metrics server and closes the store.
func (c *commonFlags) open(ctx context.Context) (*coinevo.Client, func(), error) {
	logger, err := newLogger(os.Stderr, *c.logFormat, *c.logLevel)
	if err != nil {
		return nil, nil, err
	}
	dbPath := *c.dbPath
	if dbPath == "" {
		dbPath = defaultDBPath(*c.storeKind)
	}

	var (
		collector *metrics.Collector
		server    *http.Server
	)
	if *c.metricsAddr != "" {
		collector = metrics.NewCollector()
		server, err = serveMetrics(*c.metricsAddr, collector, logger)
		if err != nil {
			return nil, nil, err
		}
	}
	stopServer := func() {
		if server == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}

	client, err := coinevo.New(coinevo.Options{
		StoreKind:  *c.storeKind,
		DBPath:     dbPath,
		OutputRoot: *c.outputRoot,
		GamesFile:  *c.gamesFile,
		Logger:     logger,
		Metrics:    collector,
	})
	if err != nil {
		stopServer()
		return nil, nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		stopServer()
		return nil, nil, err
	}
	return client, func() {
		_ = client.Close()
		stopServer()
	}, nil
}

func serveMetrics(addr string, collector *metrics.Collector, logger *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return server, nil
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func loadOrDefaultConfig(path string) (config.File, error) {
	if path == "" {
		return config.DefaultFile(), nil
	}
	return config.LoadFile(path)
}

// experimentFlags binds one flag per experiment parameter. Only flags set on
// the command line override the config file.
type experimentFlags struct {
	values    config.Experiment
	overrides map[string]func(dst *config.Experiment)
}

func bindExperimentFlags(fs *flag.FlagSet) *experimentFlags {
	ef := &experimentFlags{values: config.Default(), overrides: make(map[string]func(*config.Experiment))}

	ef.intVar(fs, "gens", "generation count", func(e *config.Experiment) *int { return &e.Generations })
	ef.intVar(fs, "size", "children bred per generation", func(e *config.Experiment) *int { return &e.SizeNewGenerations })
	ef.intVar(fs, "carryover", "elite networks carried into the next generation", func(e *config.Experiment) *int { return &e.CarryOverCount })
	ef.floatVar(fs, "mutation-chance", "point mutation chance", func(e *config.Experiment) *float64 { return &e.PointMutationChance })
	ef.floatVar(fs, "mutation-amount", "point mutation amount", func(e *config.Experiment) *float64 { return &e.PointMutationAmount })
	ef.floatVar(fs, "mutation-chance-max", "cap on the scaled mutation chance", func(e *config.Experiment) *float64 { return &e.PointMutationChanceMax })
	ef.floatVar(fs, "mutation-amount-max", "cap on the scaled mutation amount", func(e *config.Experiment) *float64 { return &e.PointMutationAmountMax })
	ef.floatVar(fs, "mutation-scalar", "mutation scalar applied when both parents failed", func(e *config.Experiment) *float64 { return &e.PointMutationScalar })
	ef.floatVar(fs, "fitness-bias", "fitness bias scalar for crossover", func(e *config.Experiment) *float64 { return &e.FitnessBiasScalar })
	ef.intVar(fs, "steps-to-retain", "history rows fed to the network", func(e *config.Experiment) *int { return &e.StepsToRetain })
	ef.intVar(fs, "failed-reward", "step result for a failed action", func(e *config.Experiment) *int { return &e.FailedStepReward })
	ef.intVar(fs, "valid-reward", "step result for a valid action", func(e *config.Experiment) *int { return &e.ValidStepReward })
	ef.boolVar(fs, "force-random", "pick another action after a repeated failure", func(e *config.Experiment) *bool { return &e.ForceRandomChoice })
	ef.boolVar(fs, "force-pickup", "take the coin whenever possible", func(e *config.Experiment) *bool { return &e.ForcePickup })
	ef.boolVar(fs, "chain-rewards", "add the previous step result to the current one", func(e *config.Experiment) *bool { return &e.ChainRewards })
	ef.intVar(fs, "hidden-neurons", "hidden layer width", func(e *config.Experiment) *int { return &e.HiddenNeurons })
	ef.intVar(fs, "workers", "parallel evaluation workers", func(e *config.Experiment) *int { return &e.Workers })

	game := &ef.values.Game
	fs.StringVar(game, "game", *game, "game name")
	ef.overrides["game"] = func(dst *config.Experiment) { dst.Game = *game }
	seed := &ef.values.Seed
	fs.Int64Var(seed, "seed", *seed, "rng seed")
	ef.overrides["seed"] = func(dst *config.Experiment) { dst.Seed = *seed }
	return ef
}

func (ef *experimentFlags) intVar(fs *flag.FlagSet, name, usage string, field func(*config.Experiment) *int) {
	p := field(&ef.values)
	fs.IntVar(p, name, *p, usage)
	ef.overrides[name] = func(dst *config.Experiment) { *field(dst) = *p }
}

func (ef *experimentFlags) floatVar(fs *flag.FlagSet, name, usage string, field func(*config.Experiment) *float64) {
	p := field(&ef.values)
	fs.Float64Var(p, name, *p, usage)
	ef.overrides[name] = func(dst *config.Experiment) { *field(dst) = *p }
}

func (ef *experimentFlags) boolVar(fs *flag.FlagSet, name, usage string, field func(*config.Experiment) *bool) {
	p := field(&ef.values)
	fs.BoolVar(p, name, *p, usage)
	ef.overrides[name] = func(dst *config.Experiment) { *field(dst) = *p }
}

// apply copies every explicitly set experiment flag onto dst.
func (ef *experimentFlags) apply(fs *flag.FlagSet, dst *config.Experiment) {
	fs.Visit(func(f *flag.Flag) {
		if override, ok := ef.overrides[f.Name]; ok {
			override(dst)
		}
	})
}
