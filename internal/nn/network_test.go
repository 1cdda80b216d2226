package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinevo/internal/model"
)

func testGenome(inputs, hidden, outputs int, hiddenActivation, outputActivation float64) model.Genome {
	return model.Genome{
		Inputs:       inputs,
		HiddenLayers: []model.LayerSpec{{Type: 0.5, Neurons: hidden, Activation: hiddenActivation}},
		Output:       model.OutputSpec{Type: 0.5, Count: outputs, Activation: outputActivation},
	}
}

func TestBuildInitializesGlorotUniformWeights(t *testing.T) {
	genome := testGenome(6, 4, 3, 0.1, 0.3)

	m, err := Build(genome, nil, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	weights := m.Weights()
	require.Len(t, weights, 2)
	require.Len(t, weights[0].Weights, 6)
	require.Len(t, weights[0].Weights[0], 4)
	require.Len(t, weights[1].Weights, 4)
	require.Len(t, weights[1].Weights[0], 3)

	limit := 0.7745966692414834 // sqrt(6/10)
	for _, row := range weights[0].Weights {
		for _, w := range row {
			assert.LessOrEqual(t, w, limit)
			assert.GreaterOrEqual(t, w, -limit)
		}
	}
	assert.Equal(t, []float64{0, 0, 0, 0}, weights[0].Biases)
	assert.Equal(t, []Activation{ActivationReLU, ActivationLinear}, m.Activations())
}

func TestBuildWithExplicitWeightsForward(t *testing.T) {
	genome := testGenome(2, 2, 1, 0.3, 0.3) // linear, linear
	weights := []model.WeightLayer{
		{Weights: [][]float64{{1, 0}, {0, 1}}, Biases: []float64{0.5, -0.5}},
		{Weights: [][]float64{{2}, {3}}, Biases: []float64{1}},
	}

	m, err := Build(genome, weights, nil)
	require.NoError(t, err)

	out, err := m.Forward([]float64{1, 2})
	require.NoError(t, err)
	// hidden = [1.5, 1.5]; output = 2*1.5 + 3*1.5 + 1
	assert.Equal(t, []float64{8.5}, out)
}

func TestBuildRejectsShapeMismatch(t *testing.T) {
	genome := testGenome(2, 2, 1, 0.3, 0.3)
	weights := []model.WeightLayer{
		{Weights: [][]float64{{1, 0}}, Biases: []float64{0, 0}},
		{Weights: [][]float64{{2}, {3}}, Biases: []float64{1}},
	}
	_, err := Build(genome, weights, nil)
	assert.Error(t, err)

	_, err = Build(genome, nil, nil)
	assert.Error(t, err)
}

func TestForwardRejectsWrongInputSize(t *testing.T) {
	m, err := Build(testGenome(3, 2, 2, 0.9, 0.9), nil, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	_, err = m.Forward([]float64{1})
	assert.Error(t, err)
}

func TestWeightsReturnsCopy(t *testing.T) {
	m, err := Build(testGenome(2, 2, 2, 0.6, 0.6), nil, rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	first := m.Weights()
	first[0].Weights[0][0] = 42
	assert.NotEqual(t, 42.0, m.Weights()[0].Weights[0][0])
}

func TestArgsortDescending(t *testing.T) {
	assert.Equal(t, []int{2, 0, 3, 1}, ArgsortDescending([]float64{0.5, 0.1, 0.9, 0.2}))
	assert.Equal(t, []int{1, 0}, ArgsortDescending([]float64{0.3, 0.3}))
}
