package nn

import (
	"fmt"
	"math"
)

type Activation string

const (
	ActivationReLU    Activation = "relu"
	ActivationLinear  Activation = "linear"
	ActivationSigmoid Activation = "sigmoid"
	ActivationTanh    Activation = "tanh"
)

// ActivationFor maps an activation gene to its function name by quartile:
// [0, 0.25) relu, [0.25, 0.5) linear, [0.5, 0.75] sigmoid, (0.75, 1] tanh.
func ActivationFor(gene float64) (Activation, error) {
	switch {
	case math.IsNaN(gene) || gene < 0 || gene > 1:
		return "", fmt.Errorf("activation gene out of range [0, 1]: %v", gene)
	case gene < 0.25:
		return ActivationReLU, nil
	case gene < 0.50:
		return ActivationLinear, nil
	case gene <= 0.75:
		return ActivationSigmoid, nil
	default:
		return ActivationTanh, nil
	}
}

type LayerKind string

const LayerDense LayerKind = "dense"

// LayerKindFor maps a layer type gene to a layer kind. Every value in
// [0, 1] is dense today; the gene is reserved for further kinds.
func LayerKindFor(gene float64) (LayerKind, error) {
	if math.IsNaN(gene) || gene < 0 || gene > 1 {
		return "", fmt.Errorf("layer type gene out of range [0, 1]: %v", gene)
	}
	return LayerDense, nil
}
