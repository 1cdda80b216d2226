package stats

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

// ExperimentFitness pairs an experiment directory name with its simulation
// average fitness.
type ExperimentFitness struct {
	Experiment string  `json:"experiment"`
	Fitness    float64 `json:"fitness"`
}

// RuntimeStats covers a whole sweep.
type RuntimeStats struct {
	Elapsed     time.Duration `json:"elapsed"`
	Generations int           `json:"generations"`
	Networks    int           `json:"networks"`
}

func (r RuntimeStats) PerGeneration() time.Duration {
	if r.Generations == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.Generations)
}

func (r RuntimeStats) PerNetwork() time.Duration {
	if r.Networks == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.Networks)
}

// SweepStamp formats the suffix shared by one sweep's summary files.
func SweepStamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// WriteSweepSummary writes the experiments ranked by fitness and the
// cumulative runtime into collectionDir. It returns both paths.
func WriteSweepSummary(collectionDir, stamp string, results []ExperimentFitness, runtime RuntimeStats) (string, string, error) {
	ranked := make([]ExperimentFitness, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Fitness > ranked[j].Fitness })

	fitnessPath := filepath.Join(collectionDir, fmt.Sprintf("fitness_summary_by_experiment_%s.csv", stamp))
	rows := [][]string{{"experiment", "fitness"}}
	for _, r := range ranked {
		rows = append(rows, []string{r.Experiment, formatFloat(r.Fitness)})
	}
	if err := writeCSV(fitnessPath, rows); err != nil {
		return "", "", err
	}

	runtimePath := filepath.Join(collectionDir, fmt.Sprintf("cumulative_runtime_stats_%s.csv", stamp))
	if err := writeCSV(runtimePath, [][]string{
		{"elapsed_seconds", "seconds_per_generation", "seconds_per_network"},
		{
			formatFloat(runtime.Elapsed.Seconds()),
			formatFloat(runtime.PerGeneration().Seconds()),
			formatFloat(runtime.PerNetwork().Seconds()),
		},
	}); err != nil {
		return "", "", err
	}
	return fitnessPath, runtimePath, nil
}
