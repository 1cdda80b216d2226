package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"coinevo/internal/model"
)

const (
	CensusFile            = "nn_and_results_data.csv"
	GenerationSummaryFile = "generation_summary.csv"
	ParametersFile        = "parameters.csv"
	RunFile               = "run.json"
	WorkbookFile          = "report.xlsx"
)

var ErrExperimentExists = errors.New("experiment directory already exists")

var censusHeader = []string{
	"generation", "stage", "#", "serial_number", "checksum", "parent_1", "parent_2",
	"hidden_checksum", "output_checksum", "input", "hidden_type", "hidden_neurons",
	"hidden_activation", "output_type", "output_count", "output_activation", "fitness",
}

// GenerationSummary is one row of generation_summary.csv.
type GenerationSummary struct {
	Generation     int     `json:"generation"`
	Networks       int     `json:"number_of_networks"`
	MaximumFitness int     `json:"maximum_fitness"`
	AverageFitness float64 `json:"average_fitness"`
	StdDevFitness  float64 `json:"stddev_fitness"`
}

// CensusHeader returns a copy of the census CSV header row.
func CensusHeader() []string {
	return append([]string(nil), censusHeader...)
}

// CreateExperimentDir makes <root>/<collection>/<experiment>. The collection
// may already exist; the experiment directory must not.
func CreateExperimentDir(root, collection, experiment string) (string, error) {
	if collection == "" || experiment == "" {
		return "", fmt.Errorf("collection and experiment names are required")
	}
	parent := filepath.Join(root, collection)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", err
	}
	dir := filepath.Join(parent, experiment)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", ErrExperimentExists, dir)
		}
		return "", err
	}
	return dir, nil
}

// WriteRunReport writes the census, generation summary, parameters and run
// record into dir and returns the simulation average fitness.
func WriteRunReport(dir string, run model.RunRecord, generations []model.GenerationRecord) (float64, error) {
	if err := WriteParameters(filepath.Join(dir, ParametersFile), run.Parameters); err != nil {
		return 0, err
	}
	if err := WriteCensus(filepath.Join(dir, CensusFile), run.Initial, generations); err != nil {
		return 0, err
	}
	summaries := SummarizeGenerations(generations)
	if err := WriteGenerationSummary(filepath.Join(dir, GenerationSummaryFile), summaries); err != nil {
		return 0, err
	}
	if err := writeJSON(filepath.Join(dir, RunFile), run); err != nil {
		return 0, err
	}
	return SimulationAverage(summaries), nil
}

// WriteParameters writes a header row of parameter names and one row of
// values, sorted by name.
func WriteParameters(path string, params map[string]any) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = fmt.Sprint(params[k])
	}
	return writeCSV(path, [][]string{keys, values})
}

// WriteCensus writes every snapshot: the initial population, then for each
// generation the after-evaluation and after-carry-over stages.
func WriteCensus(path string, initial []model.CensusEntry, generations []model.GenerationRecord) error {
	rows := [][]string{censusHeader}
	for _, entry := range initial {
		rows = append(rows, CensusRow("initial", model.StageInitial, entry))
	}
	for _, gen := range generations {
		label := strconv.Itoa(gen.Generation)
		for _, entry := range gen.AfterEvaluation {
			rows = append(rows, CensusRow(label, model.StageAfterEvaluation, entry))
		}
		for _, entry := range gen.AfterCarryOver {
			rows = append(rows, CensusRow(label, model.StageAfterCarryOver, entry))
		}
	}
	return writeCSV(path, rows)
}

// CensusRow flattens one entry; unset values are left blank.
func CensusRow(generation string, stage model.CensusStage, entry model.CensusEntry) []string {
	g := entry.Genome
	var hidden model.LayerSpec
	if len(g.HiddenLayers) > 0 {
		hidden = g.HiddenLayers[0]
	}
	return []string{
		generation,
		string(stage),
		strconv.Itoa(entry.Index),
		formatUint(g.Meta.SerialNumber),
		formatFloatPtr(g.Meta.Checksum),
		formatUint(g.Meta.Parent1),
		formatUint(g.Meta.Parent2),
		formatFloatPtr(g.Meta.HiddenChecksum),
		formatFloatPtr(g.Meta.OutputChecksum),
		strconv.Itoa(g.Inputs),
		formatFloat(hidden.Type),
		strconv.Itoa(hidden.Neurons),
		formatFloat(hidden.Activation),
		formatFloat(g.Output.Type),
		strconv.Itoa(g.Output.Count),
		formatFloat(g.Output.Activation),
		formatInt(entry.Fitness),
	}
}

// SummarizeGenerations reduces each generation's after-evaluation census.
// Averages are rounded to 2 decimal places.
func SummarizeGenerations(generations []model.GenerationRecord) []GenerationSummary {
	out := make([]GenerationSummary, 0, len(generations))
	for _, gen := range generations {
		values := make([]float64, 0, len(gen.AfterEvaluation))
		for _, entry := range gen.AfterEvaluation {
			if entry.Fitness != nil {
				values = append(values, float64(*entry.Fitness))
			}
		}
		summary := GenerationSummary{Generation: gen.Generation, Networks: len(gen.AfterEvaluation)}
		if len(values) > 0 {
			summary.MaximumFitness = int(floats.Max(values))
			summary.AverageFitness = Round(stat.Mean(values, nil), 2)
		}
		if len(values) > 1 {
			summary.StdDevFitness = stat.StdDev(values, nil)
		}
		out = append(out, summary)
	}
	return out
}

// SimulationAverage is the mean of the generation averages rounded to 4
// decimal places.
func SimulationAverage(summaries []GenerationSummary) float64 {
	if len(summaries) == 0 {
		return 0
	}
	averages := make([]float64, len(summaries))
	for i, s := range summaries {
		averages[i] = s.AverageFitness
	}
	return Round(stat.Mean(averages, nil), 4)
}

func WriteGenerationSummary(path string, summaries []GenerationSummary) error {
	rows := [][]string{{"generation", "number_of_networks", "maximum_fitness", "average_fitness"}}
	for _, s := range summaries {
		rows = append(rows, []string{
			strconv.Itoa(s.Generation),
			strconv.Itoa(s.Networks),
			strconv.Itoa(s.MaximumFitness),
			formatFloat(s.AverageFitness),
		})
	}
	return writeCSV(path, rows)
}

func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return file.Sync()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatUint(v *uint64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatUint(*v, 10)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
