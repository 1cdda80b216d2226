package genotype

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"coinevo/internal/model"
)

func TestCloneGenomeIsDeep(t *testing.T) {
	serial := uint64(4)
	original := model.Genome{
		Meta:         model.Meta{SerialNumber: &serial},
		Inputs:       12,
		HiddenLayers: []model.LayerSpec{{Type: 0.1, Neurons: 4, Activation: 0.2}},
		Output:       model.OutputSpec{Type: 0.3, Count: 5, Activation: 0.4},
	}

	cloned := CloneGenome(original)
	cloned.HiddenLayers[0].Activation = 0.9
	*cloned.Meta.SerialNumber = 99

	assert.Equal(t, 0.2, original.HiddenLayers[0].Activation)
	assert.Equal(t, uint64(4), *original.Meta.SerialNumber)
}

func TestCloneWeightLayerIsDeep(t *testing.T) {
	original := model.WeightLayer{
		Weights: [][]float64{{0.1, 0.2}, {0.3, 0.4}},
		Biases:  []float64{0, 0},
	}

	cloned := CloneWeightLayer(original)
	cloned.Weights[1][0] = -1
	cloned.Biases[0] = 1

	assert.Equal(t, 0.3, original.Weights[1][0])
	assert.Equal(t, 0.0, original.Biases[0])
	assert.Equal(t, original.Weights[0], cloned.Weights[0])
}
