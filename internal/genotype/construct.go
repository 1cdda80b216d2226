package genotype

import (
	"fmt"
	"math"

	"coinevo/internal/model"
)

// Rand is the random source consumed by genome generation and breeding.
// *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Uniform draws from [lo, hi) using exactly one value from rng.
func Uniform(rng Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

// GeneSpec bounds every random draw made when a genome is created.
type GeneSpec struct {
	HiddenTypeMax       float64 `json:"hidden_type"`
	HiddenNeuronsMin    float64 `json:"hidden_neurons_min"`
	HiddenNeuronsMax    float64 `json:"hidden_neurons_max"`
	HiddenActivationMax float64 `json:"hidden_activation"`
	OutputCount         int     `json:"outputs"`
	OutputTypeMax       float64 `json:"output_type"`
	OutputActivationMax float64 `json:"output_activation"`
}

// DefaultGeneSpec is one 512-unit hidden layer over a five-action output.
func DefaultGeneSpec() GeneSpec {
	return GeneSpec{
		HiddenTypeMax:       1,
		HiddenNeuronsMin:    512,
		HiddenNeuronsMax:    512,
		HiddenActivationMax: 1,
		OutputCount:         5,
		OutputTypeMax:       1,
		OutputActivationMax: 1,
	}
}

func (s GeneSpec) Validate() error {
	for _, bound := range []struct {
		name  string
		value float64
	}{
		{"hidden_type", s.HiddenTypeMax},
		{"hidden_activation", s.HiddenActivationMax},
		{"output_type", s.OutputTypeMax},
		{"output_activation", s.OutputActivationMax},
	} {
		if math.IsNaN(bound.value) || bound.value < 0 || bound.value > 1 {
			return fmt.Errorf("%s bound must be in [0, 1], got %v", bound.name, bound.value)
		}
	}
	if s.HiddenNeuronsMin < 1 {
		return fmt.Errorf("hidden_neurons_min must be >= 1, got %v", s.HiddenNeuronsMin)
	}
	if s.HiddenNeuronsMax < s.HiddenNeuronsMin {
		return fmt.Errorf("hidden_neurons_max %v below hidden_neurons_min %v", s.HiddenNeuronsMax, s.HiddenNeuronsMin)
	}
	if s.OutputCount <= 0 {
		return fmt.Errorf("outputs must be > 0, got %d", s.OutputCount)
	}
	return nil
}

// CreateRandomGenome draws a genome within spec. Meta is left unset; the
// network layer stamps serial numbers, lineage and checksums.
func CreateRandomGenome(rng Rand, spec GeneSpec, hiddenLayers int) (model.Genome, error) {
	if rng == nil {
		return model.Genome{}, fmt.Errorf("random source is required")
	}
	if hiddenLayers < 1 {
		return model.Genome{}, fmt.Errorf("hidden layer count must be >= 1, got %d", hiddenLayers)
	}
	if err := spec.Validate(); err != nil {
		return model.Genome{}, err
	}

	layers := make([]model.LayerSpec, 0, hiddenLayers)
	for i := 0; i < hiddenLayers; i++ {
		layerType := Uniform(rng, 0, spec.HiddenTypeMax)
		activation := Uniform(rng, 0, spec.HiddenActivationMax)
		neurons := Uniform(rng, spec.HiddenNeuronsMin, spec.HiddenNeuronsMax)
		layers = append(layers, model.LayerSpec{
			Type:       layerType,
			Neurons:    int(math.Round(neurons)),
			Activation: activation,
		})
	}

	return model.Genome{
		HiddenLayers: layers,
		Output: model.OutputSpec{
			Type:       Uniform(rng, 0, spec.OutputTypeMax),
			Count:      spec.OutputCount,
			Activation: Uniform(rng, 0, spec.OutputActivationMax),
		},
	}, nil
}
