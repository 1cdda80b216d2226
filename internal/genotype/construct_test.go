package genotype

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRandomGenomeRespectsSpec(t *testing.T) {
	spec := GeneSpec{
		HiddenTypeMax:       0.5,
		HiddenNeuronsMin:    8,
		HiddenNeuronsMax:    16,
		HiddenActivationMax: 0.25,
		OutputCount:         5,
		OutputTypeMax:       1,
		OutputActivationMax: 0.75,
	}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		genome, err := CreateRandomGenome(rng, spec, 2)
		require.NoError(t, err)
		require.Len(t, genome.HiddenLayers, 2)
		for _, layer := range genome.HiddenLayers {
			assert.GreaterOrEqual(t, layer.Type, 0.0)
			assert.LessOrEqual(t, layer.Type, 0.5)
			assert.GreaterOrEqual(t, layer.Activation, 0.0)
			assert.LessOrEqual(t, layer.Activation, 0.25)
			assert.GreaterOrEqual(t, layer.Neurons, 8)
			assert.LessOrEqual(t, layer.Neurons, 16)
		}
		assert.Equal(t, 5, genome.Output.Count)
		assert.LessOrEqual(t, genome.Output.Activation, 0.75)
		assert.Nil(t, genome.Meta.SerialNumber)
		assert.Nil(t, genome.Meta.Checksum)
		assert.Nil(t, genome.Meta.Parent1)
		assert.Nil(t, genome.Meta.Parent2)
	}
}

func TestCreateRandomGenomeDefaultSpecFixesNeurons(t *testing.T) {
	genome, err := CreateRandomGenome(rand.New(rand.NewSource(1)), DefaultGeneSpec(), 1)
	require.NoError(t, err)
	assert.Equal(t, 512, genome.HiddenLayers[0].Neurons)
	assert.Equal(t, 5, genome.Output.Count)
}

func TestCreateRandomGenomeRejectsBadInput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := CreateRandomGenome(rng, DefaultGeneSpec(), 0)
	assert.Error(t, err)

	spec := DefaultGeneSpec()
	spec.HiddenActivationMax = 1.5
	_, err = CreateRandomGenome(rng, spec, 1)
	assert.Error(t, err)

	_, err = CreateRandomGenome(nil, DefaultGeneSpec(), 1)
	assert.Error(t, err)
}
