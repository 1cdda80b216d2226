package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGetActivation(t *testing.T) {
	resetActivationRegistryForTests()
	t.Cleanup(resetActivationRegistryForTests)

	require.NoError(t, RegisterActivation("quad", func(x float64) float64 { return x * x }))
	fn, err := GetActivation("quad")
	require.NoError(t, err)
	assert.Equal(t, 9.0, fn(3))
}

func TestRegisterActivationValidation(t *testing.T) {
	resetActivationRegistryForTests()
	t.Cleanup(resetActivationRegistryForTests)

	assert.Error(t, RegisterActivation("", func(x float64) float64 { return x }))
	assert.Error(t, RegisterActivation("nil", nil))
	assert.ErrorIs(t, RegisterActivation("relu", func(x float64) float64 { return x }), ErrActivationExists)
}

func TestGetActivationUnknown(t *testing.T) {
	_, err := GetActivation("softplus")
	assert.ErrorIs(t, err, ErrActivationNotFound)
}

func TestBuiltInActivations(t *testing.T) {
	assert.Equal(t, []string{"linear", "relu", "sigmoid", "tanh"}, ListActivations())

	relu, err := GetActivation("relu")
	require.NoError(t, err)
	assert.Equal(t, 0.0, relu(-2))
	assert.Equal(t, 2.0, relu(2))

	sigmoid, err := GetActivation("sigmoid")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sigmoid(0), 1e-12)
}
