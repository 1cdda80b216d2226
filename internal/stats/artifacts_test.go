package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinevo/internal/model"
)

func ptrU(v uint64) *uint64   { return &v }
func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

func entry(index int, serial uint64, fitness *int) model.CensusEntry {
	return model.CensusEntry{
		Index: index,
		Genome: model.Genome{
			Meta: model.Meta{
				SerialNumber:   ptrU(serial),
				Checksum:       ptrF(1.5),
				Parent1:        ptrU(1),
				HiddenChecksum: ptrF(0.25),
				OutputChecksum: ptrF(0.5),
			},
			Inputs:       355,
			HiddenLayers: []model.LayerSpec{{Type: 0.1, Neurons: 512, Activation: 0.6}},
			Output:       model.OutputSpec{Type: 0.2, Count: 5, Activation: 0.9},
		},
		Fitness: fitness,
	}
}

func sampleRun() (model.RunRecord, []model.GenerationRecord) {
	run := model.RunRecord{
		ID:         "run-1",
		Collection: "c",
		Experiment: "e",
		Parameters: map[string]any{"generations": 2, "game": "coin_collector_5"},
		Initial:    []model.CensusEntry{entry(0, 10, nil), entry(1, 11, nil)},
	}
	gens := []model.GenerationRecord{
		{
			Generation:      0,
			AfterEvaluation: []model.CensusEntry{entry(0, 10, ptrI(1)), entry(1, 11, ptrI(4))},
			AfterCarryOver:  []model.CensusEntry{entry(0, 12, nil), entry(1, 13, nil), entry(2, 11, nil)},
			CarriedOver:     1,
		},
		{
			Generation:      1,
			AfterEvaluation: []model.CensusEntry{entry(0, 12, ptrI(3)), entry(1, 13, ptrI(5)), entry(2, 11, ptrI(4))},
			AfterCarryOver:  []model.CensusEntry{entry(0, 14, nil), entry(1, 15, nil)},
		},
	}
	return run, gens
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCreateExperimentDirRefusesExisting(t *testing.T) {
	root := t.TempDir()
	dir, err := CreateExperimentDir(root, "sweep-1", "exp-a")
	require.NoError(t, err)
	assert.DirExists(t, dir)

	_, err = CreateExperimentDir(root, "sweep-1", "exp-b")
	require.NoError(t, err)

	_, err = CreateExperimentDir(root, "sweep-1", "exp-a")
	require.ErrorIs(t, err, ErrExperimentExists)

	_, err = CreateExperimentDir(root, "", "x")
	require.Error(t, err)
}

func TestWriteRunReport(t *testing.T) {
	dir := t.TempDir()
	run, gens := sampleRun()

	avg, err := WriteRunReport(dir, run, gens)
	require.NoError(t, err)
	// Generation averages 2.5 and 4.
	assert.Equal(t, 3.25, avg)

	census := readCSV(t, filepath.Join(dir, CensusFile))
	require.Len(t, census, 1+2+5+5)
	assert.Equal(t, censusHeader, census[0])
	assert.Equal(t, []string{"initial", "initial", "0", "10", "1.5", "1", "", "0.25", "0.5", "355", "0.1", "512", "0.6", "0.2", "5", "0.9", ""}, census[1])
	assert.Equal(t, "after_evaluation", census[3][1])
	assert.Equal(t, "1", census[3][16])
	assert.Equal(t, "after_carryover", census[5][1])

	summary := readCSV(t, filepath.Join(dir, GenerationSummaryFile))
	assert.Equal(t, [][]string{
		{"generation", "number_of_networks", "maximum_fitness", "average_fitness"},
		{"0", "2", "4", "2.5"},
		{"1", "3", "5", "4"},
	}, summary)

	params := readCSV(t, filepath.Join(dir, ParametersFile))
	assert.Equal(t, [][]string{{"game", "generations"}, {"coin_collector_5", "2"}}, params)

	assert.FileExists(t, filepath.Join(dir, RunFile))
}

func TestSummarizeGenerationsRoundsAverages(t *testing.T) {
	gens := []model.GenerationRecord{{
		Generation:      0,
		AfterEvaluation: []model.CensusEntry{entry(0, 1, ptrI(1)), entry(1, 2, ptrI(1)), entry(2, 3, ptrI(2))},
	}}
	s := SummarizeGenerations(gens)
	require.Len(t, s, 1)
	assert.Equal(t, 1.33, s[0].AverageFitness)
	assert.Equal(t, 2, s[0].MaximumFitness)
	assert.Greater(t, s[0].StdDevFitness, 0.0)

	assert.Equal(t, 0.0, SimulationAverage(nil))
	assert.Equal(t, 1.1111, SimulationAverage([]GenerationSummary{{AverageFitness: 1}, {AverageFitness: 1.11111}, {AverageFitness: 1.22222}}))
}
