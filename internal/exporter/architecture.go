package exporter

import (
	"fmt"
)

// Layer class names as they appear in a Keras topology.
const (
	LayerConv2D       = "Conv2D"
	LayerMaxPooling2D = "MaxPooling2D"
	LayerFlatten      = "Flatten"
	LayerDense        = "Dense"
)

// InputShape is the height, width and channel count the classifier expects.
var InputShape = []int{32, 32, 3}

// Model is something the exporter can convert: a *Sequential built in
// process or a *TrainedModel on disk.
type Model interface {
	Kind() string
}

// Layer describes one layer of a Sequential model. Only the fields relevant
// to ClassName are set.
type Layer struct {
	ClassName  string
	Name       string
	Filters    int
	Units      int
	KernelSize [2]int
	PoolSize   [2]int
	Activation string
}

// WeightSpec names one weight tensor and its shape.
type WeightSpec struct {
	Name  string
	Shape []int
}

// Size is the number of float32 elements in the tensor.
func (w WeightSpec) Size() int {
	n := 1
	for _, d := range w.Shape {
		n *= d
	}
	return n
}

// TrainingConfig records how the model is compiled.
type TrainingConfig struct {
	Optimizer    string
	LearningRate float64
	Loss         string
	Metrics      []string
}

// Sequential is a linear stack of layers.
type Sequential struct {
	Name       string
	InputShape []int
	Layers     []Layer
	Training   TrainingConfig
}

// Kind implements Model.
func (s *Sequential) Kind() string { return "fresh" }

// Architecture returns the fixed classifier: three conv/pool stages with
// 32, 64 and 128 filters, a 128 unit hidden layer and a softmax output.
// It is compiled but never trained here.
func Architecture(numClasses int) *Sequential {
	return &Sequential{
		Name:       "sequential",
		InputShape: append([]int(nil), InputShape...),
		Layers: []Layer{
			conv("conv2d", 32),
			pool("max_pooling2d"),
			conv("conv2d_1", 64),
			pool("max_pooling2d_1"),
			conv("conv2d_2", 128),
			pool("max_pooling2d_2"),
			{ClassName: LayerFlatten, Name: "flatten"},
			{ClassName: LayerDense, Name: "dense", Units: 128, Activation: "relu"},
			{ClassName: LayerDense, Name: "dense_1", Units: numClasses, Activation: "softmax"},
		},
		Training: TrainingConfig{
			Optimizer:    "Adam",
			LearningRate: 0.001,
			Loss:         "categorical_crossentropy",
			Metrics:      []string{"accuracy"},
		},
	}
}

func conv(name string, filters int) Layer {
	return Layer{ClassName: LayerConv2D, Name: name, Filters: filters, KernelSize: [2]int{3, 3}, Activation: "relu"}
}

func pool(name string) Layer {
	return Layer{ClassName: LayerMaxPooling2D, Name: name, PoolSize: [2]int{2, 2}}
}

// OutputShape runs shape inference over the whole stack.
func (s *Sequential) OutputShape() ([]int, error) {
	shape := s.InputShape
	for _, layer := range s.Layers {
		next, _, err := layer.infer(shape)
		if err != nil {
			return nil, err
		}
		shape = next
	}
	return shape, nil
}

// Weights lists every weight tensor in layer order.
func (s *Sequential) Weights() ([]WeightSpec, error) {
	var specs []WeightSpec
	shape := s.InputShape
	for _, layer := range s.Layers {
		next, weights, err := layer.infer(shape)
		if err != nil {
			return nil, err
		}
		specs = append(specs, weights...)
		shape = next
	}
	return specs, nil
}

// infer returns the output shape and the weights for a given input shape.
// Convolutions and pooling use "valid" padding.
func (l Layer) infer(in []int) ([]int, []WeightSpec, error) {
	switch l.ClassName {
	case LayerConv2D:
		if len(in) != 3 {
			return nil, nil, fmt.Errorf("%s: expected rank 3 input, got %v", l.Name, in)
		}
		kh, kw := l.KernelSize[0], l.KernelSize[1]
		out := []int{in[0] - kh + 1, in[1] - kw + 1, l.Filters}
		if out[0] <= 0 || out[1] <= 0 {
			return nil, nil, fmt.Errorf("%s: input %v too small for kernel %v", l.Name, in, l.KernelSize)
		}
		return out, []WeightSpec{
			{Name: l.Name + "/kernel", Shape: []int{kh, kw, in[2], l.Filters}},
			{Name: l.Name + "/bias", Shape: []int{l.Filters}},
		}, nil
	case LayerMaxPooling2D:
		if len(in) != 3 {
			return nil, nil, fmt.Errorf("%s: expected rank 3 input, got %v", l.Name, in)
		}
		out := []int{in[0] / l.PoolSize[0], in[1] / l.PoolSize[1], in[2]}
		if out[0] <= 0 || out[1] <= 0 {
			return nil, nil, fmt.Errorf("%s: input %v too small for pool %v", l.Name, in, l.PoolSize)
		}
		return out, nil, nil
	case LayerFlatten:
		n := 1
		for _, d := range in {
			n *= d
		}
		return []int{n}, nil, nil
	case LayerDense:
		if len(in) != 1 {
			return nil, nil, fmt.Errorf("%s: expected flat input, got %v", l.Name, in)
		}
		return []int{l.Units}, []WeightSpec{
			{Name: l.Name + "/kernel", Shape: []int{in[0], l.Units}},
			{Name: l.Name + "/bias", Shape: []int{l.Units}},
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported layer class %q", l.ClassName)
	}
}
