package nn

import (
	"fmt"
	"math"
	"sort"

	"coinevo/internal/model"
)

// Rand is the source used to initialize fresh weights.
type Rand interface {
	Float64() float64
}

type denseLayer struct {
	kind       LayerKind
	activation Activation
	fn         ActivationFunc
	weights    model.WeightLayer
	units      int
}

// Model is a dense feed-forward network built from a genome.
type Model struct {
	inputs int
	layers []denseLayer
}

// Build constructs a model for genome. When weights is empty every layer is
// initialized Glorot-uniform from rng with zero biases; otherwise weights must
// hold one layer per hidden layer plus the output layer, in order.
func Build(genome model.Genome, weights []model.WeightLayer, rng Rand) (*Model, error) {
	if genome.Inputs <= 0 {
		return nil, fmt.Errorf("genome inputs must be > 0, got %d", genome.Inputs)
	}
	if len(genome.HiddenLayers) == 0 {
		return nil, fmt.Errorf("genome requires at least one hidden layer")
	}
	if genome.Output.Count <= 0 {
		return nil, fmt.Errorf("genome output count must be > 0, got %d", genome.Output.Count)
	}
	want := len(genome.HiddenLayers) + 1
	if len(weights) != 0 && len(weights) != want {
		return nil, fmt.Errorf("weight layer count mismatch: got=%d want=%d", len(weights), want)
	}
	if len(weights) == 0 && rng == nil {
		return nil, fmt.Errorf("random source is required to initialize weights")
	}

	type layerGene struct {
		layerType  float64
		activation float64
		units      int
	}
	genes := make([]layerGene, 0, want)
	for _, layer := range genome.HiddenLayers {
		genes = append(genes, layerGene{layer.Type, layer.Activation, layer.Neurons})
	}
	genes = append(genes, layerGene{genome.Output.Type, genome.Output.Activation, genome.Output.Count})

	m := &Model{inputs: genome.Inputs, layers: make([]denseLayer, 0, want)}
	fanIn := genome.Inputs
	for i, gene := range genes {
		if gene.units <= 0 {
			return nil, fmt.Errorf("layer %d: unit count must be > 0, got %d", i, gene.units)
		}
		kind, err := LayerKindFor(gene.layerType)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		activation, err := ActivationFor(gene.activation)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		fn, err := GetActivation(string(activation))
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}

		var layerWeights model.WeightLayer
		if len(weights) == 0 {
			layerWeights = glorotUniform(rng, fanIn, gene.units)
		} else {
			layerWeights = weights[i]
			if err := checkShape(layerWeights, fanIn, gene.units); err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
		}

		m.layers = append(m.layers, denseLayer{
			kind:       kind,
			activation: activation,
			fn:         fn,
			weights:    layerWeights,
			units:      gene.units,
		})
		fanIn = gene.units
	}
	return m, nil
}

// Forward evaluates the model for one input vector.
func (m *Model) Forward(input []float64) ([]float64, error) {
	if len(input) != m.inputs {
		return nil, fmt.Errorf("input size mismatch: got=%d want=%d", len(input), m.inputs)
	}
	values := input
	for _, layer := range m.layers {
		out := make([]float64, layer.units)
		copy(out, layer.weights.Biases)
		for i, x := range values {
			if x == 0 {
				continue
			}
			row := layer.weights.Weights[i]
			for j, w := range row {
				out[j] += x * w
			}
		}
		for j := range out {
			out[j] = layer.fn(out[j])
		}
		values = out
	}
	return values, nil
}

// Weights returns a copy of every layer's weights, hidden layers first.
func (m *Model) Weights() []model.WeightLayer {
	out := make([]model.WeightLayer, len(m.layers))
	for i, layer := range m.layers {
		out[i] = cloneLayer(layer.weights)
	}
	return out
}

func (m *Model) Activations() []Activation {
	out := make([]Activation, len(m.layers))
	for i, layer := range m.layers {
		out[i] = layer.activation
	}
	return out
}

func (m *Model) Inputs() int {
	return m.inputs
}

func (m *Model) Outputs() int {
	return m.layers[len(m.layers)-1].units
}

// ArgsortDescending returns indices of values ordered from largest to
// smallest. Ties keep the higher index first.
func ArgsortDescending(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] < values[idx[b]]
	})
	for i, j := 0, len(idx)-1; i < j; i, j = i+1, j-1 {
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}

func glorotUniform(rng Rand, fanIn, fanOut int) model.WeightLayer {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	weights := make([][]float64, fanIn)
	for i := range weights {
		row := make([]float64, fanOut)
		for j := range row {
			row[j] = -limit + 2*limit*rng.Float64()
		}
		weights[i] = row
	}
	return model.WeightLayer{Weights: weights, Biases: make([]float64, fanOut)}
}

func checkShape(layer model.WeightLayer, fanIn, units int) error {
	if len(layer.Weights) != fanIn {
		return fmt.Errorf("weight rows mismatch: got=%d want=%d", len(layer.Weights), fanIn)
	}
	for i, row := range layer.Weights {
		if len(row) != units {
			return fmt.Errorf("weight row %d width mismatch: got=%d want=%d", i, len(row), units)
		}
	}
	if len(layer.Biases) != units {
		return fmt.Errorf("bias length mismatch: got=%d want=%d", len(layer.Biases), units)
	}
	return nil
}

func cloneLayer(layer model.WeightLayer) model.WeightLayer {
	out := model.WeightLayer{
		Weights: make([][]float64, len(layer.Weights)),
		Biases:  append([]float64(nil), layer.Biases...),
	}
	for i, row := range layer.Weights {
		out.Weights[i] = append([]float64(nil), row...)
	}
	return out
}
