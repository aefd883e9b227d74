package exporter

import (
	"math"
	"math/rand/v2"
	"strings"
)

// Tensor is an initialised weight tensor in row-major order.
type Tensor struct {
	Spec   WeightSpec
	Values []float32
}

// InitWeights initialises every weight the way Keras does by default:
// glorot-uniform kernels and zero biases. The same seed gives the same values.
func InitWeights(model *Sequential, seed uint64) ([]Tensor, error) {
	specs, err := model.Weights()
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	tensors := make([]Tensor, 0, len(specs))
	for _, spec := range specs {
		values := make([]float32, spec.Size())
		if strings.HasSuffix(spec.Name, "/kernel") {
			limit := glorotLimit(spec.Shape)
			for i := range values {
				values[i] = float32((rng.Float64()*2 - 1) * limit)
			}
		}
		tensors = append(tensors, Tensor{Spec: spec, Values: values})
	}
	return tensors, nil
}

// glorotLimit is sqrt(6 / (fan_in + fan_out)). For convolution kernels laid
// out as [kh, kw, in, out] both fans are scaled by the receptive field.
func glorotLimit(shape []int) float64 {
	if len(shape) < 2 {
		return 0
	}
	receptive := 1
	for _, d := range shape[:len(shape)-2] {
		receptive *= d
	}
	fanIn := float64(shape[len(shape)-2] * receptive)
	fanOut := float64(shape[len(shape)-1] * receptive)
	return math.Sqrt(6 / (fanIn + fanOut))
}
