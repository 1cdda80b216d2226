// Package config loads experiment parameters and sweep ranges from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"coinevo/internal/evo"
	"coinevo/internal/genotype"
	"coinevo/internal/scape"
)

// Experiment is the full hyperparameter set for one run. Keys follow the
// names reported in parameters.csv.
type Experiment struct {
	Generations            int     `yaml:"generations"`
	SizeNewGenerations     int     `yaml:"size_new_generations"`
	CarryOverCount         int     `yaml:"carryover_count"`
	PointMutationChance    float64 `yaml:"point_mutation_chance"`
	PointMutationAmount    float64 `yaml:"point_mutation_amount"`
	PointMutationChanceMax float64 `yaml:"point_mutation_chance_max"`
	PointMutationAmountMax float64 `yaml:"point_mutation_amount_max"`
	PointMutationScalar    float64 `yaml:"point_mutation_scalar"`
	Game                   string  `yaml:"game"`
	StepsToRetain          int     `yaml:"steps_to_retain"`
	FitnessBiasScalar      float64 `yaml:"fitness_bias_scalar"`
	FailedStepReward       int     `yaml:"failed_step_reward"`
	ValidStepReward        int     `yaml:"valid_step_reward"`
	ForceRandomChoice      bool    `yaml:"force_random_choice"`
	ForcePickup            bool    `yaml:"force_pickup"`
	ChainRewards           bool    `yaml:"chain_rewards"`
	HiddenNeurons          int     `yaml:"hidden_neurons"`
	Workers                int     `yaml:"workers"`
	Seed                   int64   `yaml:"seed"`
}

// File is the on-disk layout: collection metadata, the base experiment and
// optional sweep ranges applied on top of it.
type File struct {
	Collection string     `yaml:"collection"`
	Comment    string     `yaml:"comment"`
	Experiment Experiment `yaml:"experiment"`
	Sweep      Sweep      `yaml:"sweep"`
}

func Default() Experiment {
	return Experiment{
		Generations:            10,
		SizeNewGenerations:     20,
		CarryOverCount:         0,
		PointMutationChance:    0.3,
		PointMutationAmount:    0.35,
		PointMutationChanceMax: 0.75,
		PointMutationAmountMax: 0.1,
		PointMutationScalar:    0.8,
		Game:                   "coin_collector_5",
		StepsToRetain:          50,
		FitnessBiasScalar:      0.25,
		FailedStepReward:       -1,
		ValidStepReward:        10,
		HiddenNeurons:          512,
		Workers:                1,
		Seed:                   1,
	}
}

func DefaultFile() File {
	return File{Collection: "0", Experiment: Default()}
}

func (e Experiment) Validate() error {
	var errs []error
	if e.Generations < 1 {
		errs = append(errs, fmt.Errorf("generations must be >= 1, got %d", e.Generations))
	}
	if e.SizeNewGenerations < 2 {
		errs = append(errs, fmt.Errorf("size_new_generations must be >= 2, got %d", e.SizeNewGenerations))
	}
	if e.CarryOverCount < 0 {
		errs = append(errs, fmt.Errorf("carryover_count must be >= 0, got %d", e.CarryOverCount))
	}
	if e.StepsToRetain < 1 {
		errs = append(errs, fmt.Errorf("steps_to_retain must be >= 1, got %d", e.StepsToRetain))
	}
	if e.HiddenNeurons < 1 {
		errs = append(errs, fmt.Errorf("hidden_neurons must be >= 1, got %d", e.HiddenNeurons))
	}
	if e.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", e.Workers))
	}
	if e.Game == "" {
		errs = append(errs, errors.New("game is required"))
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"point_mutation_chance", e.PointMutationChance},
		{"point_mutation_amount", e.PointMutationAmount},
		{"point_mutation_chance_max", e.PointMutationChanceMax},
		{"point_mutation_amount_max", e.PointMutationAmountMax},
	} {
		if math.IsNaN(p.value) || p.value < 0 || p.value > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1], got %v", p.name, p.value))
		}
	}
	if math.IsNaN(e.PointMutationScalar) || e.PointMutationScalar < 0 {
		errs = append(errs, fmt.Errorf("point_mutation_scalar must be >= 0, got %v", e.PointMutationScalar))
	}
	if math.IsNaN(e.FitnessBiasScalar) || e.FitnessBiasScalar < 0 {
		errs = append(errs, fmt.Errorf("fitness_bias_scalar must be >= 0, got %v", e.FitnessBiasScalar))
	}
	return errors.Join(errs...)
}

// MaxPopulationSize is the bred children plus the carry-over allowance.
func (e Experiment) MaxPopulationSize() int {
	return e.SizeNewGenerations + e.CarryOverCount
}

func (e Experiment) BreedParams() evo.BreedParams {
	return evo.BreedParams{
		MutationScalar:    e.PointMutationScalar,
		MutationChance:    e.PointMutationChance,
		MutationAmount:    e.PointMutationAmount,
		MutationChanceCap: e.PointMutationChanceMax,
		MutationAmountCap: e.PointMutationAmountMax,
		FitnessBiasScalar: e.FitnessBiasScalar,
	}
}

func (e Experiment) Shaping() scape.Shaping {
	return scape.Shaping{
		StepsToRetain:     e.StepsToRetain,
		FailedStepReward:  e.FailedStepReward,
		ValidStepReward:   e.ValidStepReward,
		ForceRandomChoice: e.ForceRandomChoice,
		ForcePickup:       e.ForcePickup,
		ChainRewards:      e.ChainRewards,
	}
}

// GeneSpec pins the hidden width so every network in a run can breed with
// every other.
func (e Experiment) GeneSpec() genotype.GeneSpec {
	spec := genotype.DefaultGeneSpec()
	spec.HiddenNeuronsMin = float64(e.HiddenNeurons)
	spec.HiddenNeuronsMax = float64(e.HiddenNeurons)
	spec.OutputCount = len(scape.ActionSpace)
	return spec
}

// Parameters flattens the experiment for reporting and persistence.
func (e Experiment) Parameters() map[string]any {
	return map[string]any{
		"generations":               e.Generations,
		"size_new_generations":      e.SizeNewGenerations,
		"carryover_count":           e.CarryOverCount,
		"max_population_size":       e.MaxPopulationSize(),
		"point_mutation_chance":     e.PointMutationChance,
		"point_mutation_amount":     e.PointMutationAmount,
		"point_mutation_chance_max": e.PointMutationChanceMax,
		"point_mutation_amount_max": e.PointMutationAmountMax,
		"point_mutation_scalar":     e.PointMutationScalar,
		"game":                      e.Game,
		"steps_to_retain":           e.StepsToRetain,
		"fitness_bias_scalar":       e.FitnessBiasScalar,
		"failed_step_reward":        e.FailedStepReward,
		"valid_step_reward":         e.ValidStepReward,
		"force_random_choice":       e.ForceRandomChoice,
		"force_pickup":              e.ForcePickup,
		"chain_rewards":             e.ChainRewards,
		"hidden_neurons":            e.HiddenNeurons,
		"seed":                      e.Seed,
	}
}

func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a config document over DefaultFile, so omitted keys keep
// their defaults. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	f := DefaultFile()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, err
	}
	if err := f.Experiment.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}
