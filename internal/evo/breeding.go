package evo

import (
	"errors"
	"fmt"
	"math"

	"coinevo/internal/agent"
	"coinevo/internal/genotype"
	"coinevo/internal/model"
)

// maxParentDrawsPerNetwork bounds the distinct-parent rejection loop.
const maxParentDrawsPerNetwork = 64

var ErrInvalidGeneKind = errors.New("invalid gene kind")

// GeneKind selects the legal range of a crossed value.
type GeneKind int

const (
	GeneWeight GeneKind = iota + 1
	GeneDefinition
)

func (k GeneKind) String() string {
	switch k {
	case GeneWeight:
		return "weight"
	case GeneDefinition:
		return "definition"
	default:
		return fmt.Sprintf("GeneKind(%d)", int(k))
	}
}

// Bounds panics with ErrInvalidGeneKind for anything but weight or definition.
func (k GeneKind) Bounds() (float64, float64) {
	switch k {
	case GeneWeight:
		return -1, 1
	case GeneDefinition:
		return 0, 1
	default:
		panic(fmt.Errorf("%w: %s", ErrInvalidGeneKind, k))
	}
}

type BreedParams struct {
	MutationScalar    float64 `json:"point_mutation_scalar"`
	MutationChance    float64 `json:"point_mutation_chance"`
	MutationAmount    float64 `json:"point_mutation_amount"`
	MutationChanceCap float64 `json:"point_mutation_chance_max"`
	MutationAmountCap float64 `json:"point_mutation_amount_max"`
	FitnessBiasScalar float64 `json:"fitness_bias_scalar"`
}

// EffectiveMutation returns the chance and amount used for a pair of parents.
// When both parents failed they are scaled and capped.
func (p BreedParams) EffectiveMutation(fitness1, fitness2 int) (float64, float64) {
	chance, amount := p.MutationChance, p.MutationAmount
	if fitness1 == FailureFitness && fitness2 == FailureFitness {
		chance = math.Min(chance*p.MutationScalar, p.MutationChanceCap)
		amount = math.Min(amount*p.MutationScalar, p.MutationAmountCap)
	}
	return chance, amount
}

// FitnessBias skews crossover toward the fitter parent. Zero when the parents
// are equally fit.
func FitnessBias(fitness1, fitness2 int, scalar float64) float64 {
	total := fitness1 + fitness2
	if total == 0 {
		return 0
	}
	return (float64(fitness2)/float64(total) - 0.5) * scalar
}

// CrossoverThreshold is the probability of taking the donor parent's value.
func CrossoverThreshold(bias float64) float64 {
	if bias <= 0 {
		return math.Max(0.5+bias, -1)
	}
	return math.Min(0.5+bias, 1)
}

// FloatCrossAndMutate picks between the child's and the donor's value, then
// maybe perturbs the result. Both the crossover and the mutation draw are
// always consumed; a mutation consumes a third draw for the delta.
func FloatCrossAndMutate(rng genotype.Rand, kind GeneKind, child, donor, chance, amount, bias float64) float64 {
	lo, hi := kind.Bounds()

	result := child
	if rng.Float64() < CrossoverThreshold(bias) {
		result = donor
	}
	if rng.Float64() < chance {
		result += genotype.Uniform(rng, -amount, amount)
		result = math.Max(lo, math.Min(hi, result))
	}
	return result
}

// Breeder produces children from an evaluated population.
type Breeder struct {
	Params BreedParams
}

// SelectParents returns two distinct indices. With zero total fitness it falls
// back to uniform choice, and so does parent 2 when weighted draws keep
// landing on parent 1.
func (b Breeder) SelectParents(rng genotype.Rand, pop *Population) (int, int, error) {
	if pop.Len() < 2 {
		return 0, 0, fmt.Errorf("%w: need at least 2 networks, got %d", ErrDegeneratePopulation, pop.Len())
	}
	if len(pop.fitnessMap) != pop.Len() {
		pop.CreateFitnessMap()
	}
	pick := pop.WeightedParent
	if pop.TotalFitness() <= 0 {
		pick = pop.UniformParent
	}

	parent1, err := pick(rng)
	if err != nil {
		return 0, 0, err
	}
	budget := maxParentDrawsPerNetwork * pop.Len()
	for draws := 0; draws < 2*budget; draws++ {
		// Fitness concentrated on parent 1 leaves weighted draws no other
		// choice, so the second half of the budget draws uniformly.
		if draws == budget {
			pick = pop.UniformParent
		}
		parent2, err := pick(rng)
		if err != nil {
			return 0, 0, err
		}
		if parent2 != parent1 {
			return parent1, parent2, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: no distinct second parent for index %d", ErrDegeneratePopulation, parent1)
}

// CrossAndMutate breeds one child with the given serial number. Parent 1 is
// the base copy and parent 2 the donor.
func (b Breeder) CrossAndMutate(rng genotype.Rand, pop *Population, serial uint64) (*agent.Network, error) {
	i1, i2, err := b.SelectParents(rng, pop)
	if err != nil {
		return nil, err
	}
	f1, f2 := pop.Fitness(i1), pop.Fitness(i2)
	bias := FitnessBias(f1, f2, b.Params.FitnessBiasScalar)
	chance, amount := b.Params.EffectiveMutation(f1, f2)

	parent1, parent2 := pop.Network(i1), pop.Network(i2)
	weights1, err := parent1.Weights()
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", parent1.ID(), err)
	}
	weights2, err := parent2.Weights()
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", parent2.ID(), err)
	}
	genome := parent1.Genome()
	donor := parent2.Genome()
	if err := compatible(genome, donor, weights1, weights2); err != nil {
		return nil, err
	}

	cross := func(kind GeneKind, child, other float64) float64 {
		return FloatCrossAndMutate(rng, kind, child, other, chance, amount, bias)
	}

	hidden := len(genome.HiddenLayers)
	for l := 0; l < hidden; l++ {
		crossWeights(weights1[l], weights2[l], cross)
	}
	for l := range genome.HiddenLayers {
		layer := &genome.HiddenLayers[l]
		layer.Activation = cross(GeneDefinition, layer.Activation, donor.HiddenLayers[l].Activation)
		layer.Type = cross(GeneDefinition, layer.Type, donor.HiddenLayers[l].Type)
	}
	genome.Output.Type = cross(GeneDefinition, genome.Output.Type, donor.Output.Type)
	genome.Output.Activation = cross(GeneDefinition, genome.Output.Activation, donor.Output.Activation)
	crossWeights(weights1[hidden], weights2[hidden], cross)

	p1, p2 := parent1.SerialNumber(), parent2.SerialNumber()
	return pop.CreateNetwork(serial, genome, weights1, &p1, &p2)
}

func crossWeights(child, donor model.WeightLayer, cross func(GeneKind, float64, float64) float64) {
	for r, row := range child.Weights {
		for c := range row {
			row[c] = cross(GeneWeight, row[c], donor.Weights[r][c])
		}
	}
}

func compatible(a, b model.Genome, wa, wb []model.WeightLayer) error {
	if len(a.HiddenLayers) != len(b.HiddenLayers) {
		return fmt.Errorf("parents differ in hidden layer count: %d vs %d", len(a.HiddenLayers), len(b.HiddenLayers))
	}
	if len(wa) != len(wb) {
		return fmt.Errorf("parents differ in weight layer count: %d vs %d", len(wa), len(wb))
	}
	for l := range wa {
		if len(wa[l].Weights) != len(wb[l].Weights) {
			return fmt.Errorf("weight layer %d: parents differ in rows", l+1)
		}
		for r := range wa[l].Weights {
			if len(wa[l].Weights[r]) != len(wb[l].Weights[r]) {
				return fmt.Errorf("weight layer %d row %d: parents differ in width", l+1, r)
			}
		}
	}
	return nil
}
