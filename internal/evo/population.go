package evo

import (
	"errors"
	"fmt"

	"coinevo/internal/agent"
	"coinevo/internal/genotype"
	"coinevo/internal/model"
)

// FailureFitness is the score of a network that never won its episode.
const FailureFitness = 1

var ErrDegeneratePopulation = errors.New("degenerate population")

// Population is an ordered, index-stable set of networks for one generation.
type Population struct {
	networks   []*agent.Network
	fitnessMap []int
}

func NewPopulation() *Population {
	return &Population{}
}

// CreateRandomPopulation appends size random networks with consecutive serial
// numbers starting at startSerial.
func (p *Population) CreateRandomPopulation(rng genotype.Rand, spec genotype.GeneSpec, size int, startSerial uint64, inputs int) error {
	if size < 0 {
		return fmt.Errorf("population size must be >= 0, got %d", size)
	}
	for i := 0; i < size; i++ {
		n, err := agent.NewRandom(rng, spec, startSerial+uint64(i), inputs, 1)
		if err != nil {
			return fmt.Errorf("create network %d: %w", i, err)
		}
		p.Add(n)
	}
	return nil
}

// CreateNetwork builds a fully specified network with recomputed checksums.
func (p *Population) CreateNetwork(serial uint64, genome model.Genome, weights []model.WeightLayer, parent1, parent2 *uint64) (*agent.Network, error) {
	return agent.NewSpecifiedLayers(serial, genome, weights, parent1, parent2)
}

// Add appends a network. Serial numbers are not checked for duplicates.
func (p *Population) Add(n *agent.Network) {
	p.networks = append(p.networks, n)
}

func (p *Population) Len() int {
	return len(p.networks)
}

func (p *Population) Network(i int) *agent.Network {
	return p.networks[i]
}

func (p *Population) Networks() []*agent.Network {
	out := make([]*agent.Network, len(p.networks))
	copy(out, p.networks)
	return out
}

// SetFitness stores a fitness and invalidates the fitness map.
func (p *Population) SetFitness(i, fitness int) {
	p.networks[i].SetFitness(fitness)
	p.fitnessMap = nil
}

// Fitness returns the fitness of network i; unevaluated networks count as 0.
func (p *Population) Fitness(i int) int {
	f, _ := p.networks[i].Fitness()
	return f
}

// CreateFitnessMap rebuilds the cumulative fitness sums.
func (p *Population) CreateFitnessMap() {
	p.fitnessMap = make([]int, len(p.networks))
	total := 0
	for i := range p.networks {
		total += p.Fitness(i)
		p.fitnessMap[i] = total
	}
}

func (p *Population) FitnessMap() []int {
	out := make([]int, len(p.fitnessMap))
	copy(out, p.fitnessMap)
	return out
}

// TotalFitness is the last fitness map entry, or 0 when no map is built.
func (p *Population) TotalFitness() int {
	if len(p.fitnessMap) == 0 {
		return 0
	}
	return p.fitnessMap[len(p.fitnessMap)-1]
}

// WeightedParent draws r in [0, total) and returns the first index whose
// cumulative fitness reaches r.
func (p *Population) WeightedParent(rng genotype.Rand) (int, error) {
	if len(p.fitnessMap) == 0 || len(p.fitnessMap) != len(p.networks) {
		return 0, fmt.Errorf("fitness map is stale or empty: map=%d networks=%d", len(p.fitnessMap), len(p.networks))
	}
	total := p.TotalFitness()
	if total <= 0 {
		return 0, fmt.Errorf("%w: total fitness %d", ErrDegeneratePopulation, total)
	}
	r := genotype.Uniform(rng, 0, float64(total))
	for i, cumulative := range p.fitnessMap {
		if r <= float64(cumulative) {
			return i, nil
		}
	}
	return len(p.fitnessMap) - 1, nil
}

// UniformParent picks any index with equal probability.
func (p *Population) UniformParent(rng genotype.Rand) (int, error) {
	if len(p.networks) == 0 {
		return 0, fmt.Errorf("%w: empty population", ErrDegeneratePopulation)
	}
	i := int(rng.Float64() * float64(len(p.networks)))
	if i >= len(p.networks) {
		i = len(p.networks) - 1
	}
	return i, nil
}

// Census snapshots every network's genome and fitness.
func (p *Population) Census() []model.CensusEntry {
	out := make([]model.CensusEntry, 0, len(p.networks))
	for i, n := range p.networks {
		entry := model.CensusEntry{Index: i, Genome: n.Genome()}
		if f, ok := n.Fitness(); ok {
			entry.Fitness = &f
		}
		out = append(out, entry)
	}
	return out
}
