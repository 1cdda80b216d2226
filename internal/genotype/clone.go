package genotype

import "coinevo/internal/model"

// CloneGenome returns a deep copy; the result shares no memory with g.
func CloneGenome(g model.Genome) model.Genome {
	out := g
	out.Meta = cloneMeta(g.Meta)
	out.HiddenLayers = append([]model.LayerSpec(nil), g.HiddenLayers...)
	return out
}

func CloneWeightLayer(layer model.WeightLayer) model.WeightLayer {
	out := model.WeightLayer{
		Biases: append([]float64(nil), layer.Biases...),
	}
	if layer.Weights != nil {
		out.Weights = make([][]float64, len(layer.Weights))
		for i, row := range layer.Weights {
			out.Weights[i] = append([]float64(nil), row...)
		}
	}
	return out
}

func CloneWeightLayers(layers []model.WeightLayer) []model.WeightLayer {
	if layers == nil {
		return nil
	}
	out := make([]model.WeightLayer, len(layers))
	for i, layer := range layers {
		out[i] = CloneWeightLayer(layer)
	}
	return out
}

func cloneMeta(m model.Meta) model.Meta {
	return model.Meta{
		SerialNumber:   cloneUint(m.SerialNumber),
		Checksum:       cloneFloat(m.Checksum),
		Parent1:        cloneUint(m.Parent1),
		Parent2:        cloneUint(m.Parent2),
		HiddenChecksum: cloneFloat(m.HiddenChecksum),
		OutputChecksum: cloneFloat(m.OutputChecksum),
	}
}

func cloneUint(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
