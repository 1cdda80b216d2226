package evo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"coinevo/internal/agent"
	"coinevo/internal/model"
)

// scriptedRand replays fixed draws and counts how many were consumed.
type scriptedRand struct {
	values []float64
	next   int
}

func (r *scriptedRand) Float64() float64 {
	v := r.values[r.next%len(r.values)]
	r.next++
	return v
}

func filledLayer(rows, cols int, v float64) model.WeightLayer {
	layer := model.WeightLayer{Weights: make([][]float64, rows), Biases: make([]float64, cols)}
	for r := range layer.Weights {
		layer.Weights[r] = make([]float64, cols)
		for c := range layer.Weights[r] {
			layer.Weights[r][c] = v
		}
	}
	return layer
}

func testNetwork(t *testing.T, serial uint64, fill, def float64) *agent.Network {
	t.Helper()
	genome := model.Genome{
		Inputs:       2,
		HiddenLayers: []model.LayerSpec{{Type: def, Neurons: 3, Activation: def}},
		Output:       model.OutputSpec{Type: def, Count: 2, Activation: def},
	}
	n, err := agent.NewSpecified(serial, genome, filledLayer(2, 3, fill), filledLayer(3, 2, fill), nil, nil)
	require.NoError(t, err)
	return n
}

func testPopulation(t *testing.T, fitness ...int) *Population {
	t.Helper()
	pop := NewPopulation()
	for i, f := range fitness {
		pop.Add(testNetwork(t, uint64(i+1), 0.1*float64(i%5), 0.5))
		pop.SetFitness(i, f)
	}
	return pop
}
