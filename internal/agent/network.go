package agent

import (
	"context"
	"errors"
	"fmt"

	"coinevo/internal/genotype"
	"coinevo/internal/model"
	"coinevo/internal/nn"
)

// LayerHidden is the 1-based index of the first hidden weight layer.
const LayerHidden = 1

var ErrWeightsNotInitialized = errors.New("weights not initialized")

// Network owns one genome and the weight layers that realise it. Weight
// layers are ordered hidden layers first, output last.
type Network struct {
	genome  model.Genome
	weights []model.WeightLayer
	fitness *int
	model   *nn.Model
}

// NewRandom draws a genome from spec and leaves weights empty; they are
// materialized by the first call to Model.
func NewRandom(rng genotype.Rand, spec genotype.GeneSpec, serial uint64, inputs, hiddenLayers int) (*Network, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("input size must be > 0, got %d", inputs)
	}
	genome, err := genotype.CreateRandomGenome(rng, spec, hiddenLayers)
	if err != nil {
		return nil, err
	}
	genome.Meta.SerialNumber = &serial
	genome.Inputs = inputs
	return &Network{genome: genome}, nil
}

// NewSpecified builds a single-hidden-layer network from already computed
// genome fields and weights, recomputes its checksums and stamps lineage.
func NewSpecified(serial uint64, genome model.Genome, hidden, output model.WeightLayer, parent1, parent2 *uint64) (*Network, error) {
	if len(genome.HiddenLayers) != 1 {
		return nil, fmt.Errorf("specified network expects one hidden layer, got %d", len(genome.HiddenLayers))
	}
	return NewSpecifiedLayers(serial, genome, []model.WeightLayer{hidden, output}, parent1, parent2)
}

// NewSpecifiedLayers is NewSpecified for any number of hidden layers.
func NewSpecifiedLayers(serial uint64, genome model.Genome, weights []model.WeightLayer, parent1, parent2 *uint64) (*Network, error) {
	if len(weights) != len(genome.HiddenLayers)+1 {
		return nil, fmt.Errorf("weight layer count mismatch: got=%d want=%d", len(weights), len(genome.HiddenLayers)+1)
	}
	n := &Network{
		genome:  genotype.CloneGenome(genome),
		weights: genotype.CloneWeightLayers(weights),
	}
	n.genome.Meta.SerialNumber = &serial
	if err := n.stampChecksums(); err != nil {
		return nil, err
	}
	n.genome.Meta.Parent1 = copyUint(parent1)
	n.genome.Meta.Parent2 = copyUint(parent2)
	return n, nil
}

func (n *Network) SerialNumber() uint64 {
	if n.genome.Meta.SerialNumber == nil {
		return 0
	}
	return *n.genome.Meta.SerialNumber
}

func (n *Network) ID() string {
	return fmt.Sprintf("nn-%d", n.SerialNumber())
}

// Genome returns a deep copy of the network's genome.
func (n *Network) Genome() model.Genome {
	return genotype.CloneGenome(n.genome)
}

func (n *Network) Fitness() (int, bool) {
	if n.fitness == nil {
		return 0, false
	}
	return *n.fitness, true
}

func (n *Network) SetFitness(fitness int) {
	n.fitness = &fitness
}

func (n *Network) HasWeights() bool {
	return len(n.weights) > 0
}

// WeightLayer returns a copy of a 1-based weight layer.
func (n *Network) WeightLayer(layer int) (model.WeightLayer, error) {
	w, err := n.layer(layer)
	if err != nil {
		return model.WeightLayer{}, err
	}
	return genotype.CloneWeightLayer(w), nil
}

// Weights returns a copy of every weight layer.
func (n *Network) Weights() ([]model.WeightLayer, error) {
	if !n.HasWeights() {
		return nil, ErrWeightsNotInitialized
	}
	return genotype.CloneWeightLayers(n.weights), nil
}

// OutputLayer is the 1-based index of the output weight layer.
func (n *Network) OutputLayer() int {
	return len(n.genome.HiddenLayers) + 1
}

// ChecksumWeights sums the first weight vector of a 1-based layer; biases are
// excluded.
func (n *Network) ChecksumWeights(layer int) (float64, error) {
	w, err := n.layer(layer)
	if err != nil {
		return 0, err
	}
	if len(w.Weights) == 0 {
		return 0, fmt.Errorf("layer %d: %w", layer, ErrWeightsNotInitialized)
	}
	total := 0.0
	for _, v := range w.Weights[0] {
		total += v
	}
	return total, nil
}

// Checksum is a structural fingerprint: both weight checksums plus the first
// hidden layer and output definition floats. It is not a secure hash.
func (n *Network) Checksum() (float64, error) {
	hidden, err := n.ChecksumWeights(LayerHidden)
	if err != nil {
		return 0, err
	}
	output, err := n.ChecksumWeights(n.OutputLayer())
	if err != nil {
		return 0, err
	}
	first := n.genome.HiddenLayers[0]
	return hidden + output + first.Type + first.Activation + n.genome.Output.Type + n.genome.Output.Activation, nil
}

// Model builds the inference model. The first build of a network without
// stored weights captures the freshly initialized weights so later builds
// are identical.
func (n *Network) Model(rng nn.Rand) (*nn.Model, error) {
	if n.model != nil {
		return n.model, nil
	}
	m, err := nn.Build(n.genome, n.weights, rng)
	if err != nil {
		return nil, fmt.Errorf("build model for %s: %w", n.ID(), err)
	}
	if !n.HasWeights() {
		n.weights = m.Weights()
		if err := n.stampChecksums(); err != nil {
			return nil, err
		}
	}
	n.model = m
	return m, nil
}

// Policy binds a network to its built model for stepping through a scape.
func (n *Network) Policy(rng nn.Rand) (*Policy, error) {
	m, err := n.Model(rng)
	if err != nil {
		return nil, err
	}
	return &Policy{id: n.ID(), model: m}, nil
}

func (n *Network) layer(layer int) (model.WeightLayer, error) {
	if layer < 1 || layer > n.OutputLayer() {
		return model.WeightLayer{}, fmt.Errorf("layer %d out of range [1, %d]", layer, n.OutputLayer())
	}
	if len(n.weights) < layer {
		return model.WeightLayer{}, fmt.Errorf("layer %d: %w", layer, ErrWeightsNotInitialized)
	}
	return n.weights[layer-1], nil
}

func (n *Network) stampChecksums() error {
	hidden, err := n.ChecksumWeights(LayerHidden)
	if err != nil {
		return err
	}
	output, err := n.ChecksumWeights(n.OutputLayer())
	if err != nil {
		return err
	}
	total, err := n.Checksum()
	if err != nil {
		return err
	}
	n.genome.Meta.HiddenChecksum = &hidden
	n.genome.Meta.OutputChecksum = &output
	n.genome.Meta.Checksum = &total
	return nil
}

// Policy is the step agent handed to a scape.
type Policy struct {
	id    string
	model *nn.Model
}

func (p *Policy) ID() string {
	return p.id
}

func (p *Policy) RunStep(_ context.Context, input []float64) ([]float64, error) {
	return p.model.Forward(input)
}

func copyUint(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
