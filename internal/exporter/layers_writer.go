package exporter

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DefaultShardSize matches the TF.js converter's default shard size.
const DefaultShardSize = 4 * 1024 * 1024

// ModelFile is the topology document loaded by tf.loadLayersModel.
const ModelFile = "model.json"

// ErrUnsupportedModel is returned when a converter is handed a model kind it
// cannot process.
var ErrUnsupportedModel = errors.New("unsupported model kind")

// Converter turns a Model into web-deployable artifacts inside dir and returns
// the paths it wrote.
type Converter interface {
	Convert(ctx context.Context, model Model, dir string) ([]string, error)
}

// LayersWriter serialises a *Sequential as a TF.js layers-model: model.json
// plus little-endian float32 weight shards.
type LayersWriter struct {
	Seed      uint64
	ShardSize int
	logger    *zap.Logger
}

// NewLayersWriter returns a writer with the default shard size.
func NewLayersWriter(seed uint64, logger *zap.Logger) *LayersWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LayersWriter{Seed: seed, ShardSize: DefaultShardSize, logger: logger.Named("layers_writer")}
}

type modelJSON struct {
	Format          string          `json:"format"`
	GeneratedBy     string          `json:"generatedBy"`
	ConvertedBy     string          `json:"convertedBy"`
	ModelTopology   modelTopology   `json:"modelTopology"`
	WeightsManifest []manifestGroup `json:"weightsManifest"`
}

type modelTopology struct {
	KerasVersion   string         `json:"keras_version"`
	Backend        string         `json:"backend"`
	ModelConfig    map[string]any `json:"model_config"`
	TrainingConfig map[string]any `json:"training_config"`
}

type manifestGroup struct {
	Paths   []string         `json:"paths"`
	Weights []manifestWeight `json:"weights"`
}

type manifestWeight struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
	Dtype string `json:"dtype"`
}

// Convert implements Converter.
func (w *LayersWriter) Convert(ctx context.Context, model Model, dir string) ([]string, error) {
	seq, ok := model.(*Sequential)
	if !ok {
		return nil, fmt.Errorf("%w: layers writer cannot handle %q", ErrUnsupportedModel, model.Kind())
	}

	tensors, err := InitWeights(seq, w.Seed)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := encodeTensors(tensors)
	shards := splitShards(buf, w.ShardSize)

	var written []string
	paths := make([]string, len(shards))
	for i, shard := range shards {
		paths[i] = fmt.Sprintf("group1-shard%dof%d.bin", i+1, len(shards))
		full := filepath.Join(dir, paths[i])
		if err := os.WriteFile(full, shard, 0o644); err != nil {
			return written, fmt.Errorf("write weight shard: %w", err)
		}
		written = append(written, full)
	}

	manifest := manifestGroup{Paths: paths}
	for _, t := range tensors {
		manifest.Weights = append(manifest.Weights, manifestWeight{Name: t.Spec.Name, Shape: t.Spec.Shape, Dtype: "float32"})
	}

	doc := modelJSON{
		Format:      "layers-model",
		GeneratedBy: "keras v2.15.0",
		ConvertedBy: "signkit layers writer",
		ModelTopology: modelTopology{
			KerasVersion:   "2.15.0",
			Backend:        "tensorflow",
			ModelConfig:    seq.topology(),
			TrainingConfig: seq.Training.topology(),
		},
		WeightsManifest: []manifestGroup{manifest},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return written, err
	}
	modelPath := filepath.Join(dir, ModelFile)
	if err := os.WriteFile(modelPath, data, 0o644); err != nil {
		return written, fmt.Errorf("write %s: %w", ModelFile, err)
	}
	written = append(written, modelPath)

	w.logger.Info("layers model written",
		zap.String("dir", dir),
		zap.Int("weights", len(tensors)),
		zap.Int("bytes", len(buf)),
		zap.Int("shards", len(shards)))
	return written, nil
}

func encodeTensors(tensors []Tensor) []byte {
	total := 0
	for _, t := range tensors {
		total += len(t.Values)
	}
	buf := make([]byte, 0, total*4)
	for _, t := range tensors {
		for _, v := range t.Values {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return buf
}

// splitShards cuts buf into consecutive chunks of at most size bytes. Weights
// may straddle shard boundaries; the loader concatenates shards before slicing.
func splitShards(buf []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultShardSize
	}
	if len(buf) == 0 {
		return [][]byte{{}}
	}
	var shards [][]byte
	for start := 0; start < len(buf); start += size {
		end := min(start+size, len(buf))
		shards = append(shards, buf[start:end])
	}
	return shards
}

func (s *Sequential) topology() map[string]any {
	layers := make([]map[string]any, 0, len(s.Layers))
	for i, layer := range s.Layers {
		cfg := layer.topology()
		if i == 0 {
			batchShape := []any{nil}
			for _, d := range s.InputShape {
				batchShape = append(batchShape, d)
			}
			cfg["config"].(map[string]any)["batch_input_shape"] = batchShape
		}
		layers = append(layers, cfg)
	}
	return map[string]any{
		"class_name": "Sequential",
		"config": map[string]any{
			"name":   s.Name,
			"layers": layers,
		},
	}
}

func (l Layer) topology() map[string]any {
	cfg := map[string]any{
		"name":      l.Name,
		"trainable": true,
		"dtype":     "float32",
	}
	switch l.ClassName {
	case LayerConv2D:
		cfg["filters"] = l.Filters
		cfg["kernel_size"] = l.KernelSize[:]
		cfg["strides"] = []int{1, 1}
		cfg["padding"] = "valid"
		cfg["data_format"] = "channels_last"
		cfg["dilation_rate"] = []int{1, 1}
		cfg["activation"] = l.Activation
		cfg["use_bias"] = true
		cfg["kernel_initializer"] = initializer("GlorotUniform")
		cfg["bias_initializer"] = initializer("Zeros")
	case LayerMaxPooling2D:
		cfg["pool_size"] = l.PoolSize[:]
		cfg["strides"] = l.PoolSize[:]
		cfg["padding"] = "valid"
		cfg["data_format"] = "channels_last"
	case LayerFlatten:
		cfg["data_format"] = "channels_last"
	case LayerDense:
		cfg["units"] = l.Units
		cfg["activation"] = l.Activation
		cfg["use_bias"] = true
		cfg["kernel_initializer"] = initializer("GlorotUniform")
		cfg["bias_initializer"] = initializer("Zeros")
	}
	return map[string]any{"class_name": l.ClassName, "config": cfg}
}

func initializer(name string) map[string]any {
	return map[string]any{"class_name": name, "config": map[string]any{"seed": nil}}
}

func (t TrainingConfig) topology() map[string]any {
	return map[string]any{
		"loss":             t.Loss,
		"metrics":          t.Metrics,
		"weighted_metrics": nil,
		"loss_weights":     nil,
		"optimizer_config": map[string]any{
			"class_name": t.Optimizer,
			"config": map[string]any{
				"name":          t.Optimizer,
				"learning_rate": t.LearningRate,
				"beta_1":        0.9,
				"beta_2":        0.999,
				"epsilon":       1e-07,
				"amsgrad":       false,
			},
		},
	}
}
