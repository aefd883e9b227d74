package exporter

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// RunFunc executes a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ExternalConverter hands trained Keras files to tensorflowjs_converter.
type ExternalConverter struct {
	Binary string
	run    RunFunc
	logger *zap.Logger
}

// NewExternalConverter returns a converter that shells out to binary. A nil
// run uses os/exec.
func NewExternalConverter(binary string, run RunFunc, logger *zap.Logger) *ExternalConverter {
	if run == nil {
		run = execRun
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExternalConverter{Binary: binary, run: run, logger: logger.Named("external_converter")}
}

// Convert implements Converter.
func (c *ExternalConverter) Convert(ctx context.Context, model Model, dir string) ([]string, error) {
	trained, ok := model.(*TrainedModel)
	if !ok {
		return nil, fmt.Errorf("%w: external converter cannot handle %q", ErrUnsupportedModel, model.Kind())
	}

	inputFormat := "keras"
	if trained.Format == FormatKeras {
		inputFormat = "keras_keras"
	}
	args := []string{"--input_format", inputFormat, trained.Path, dir}

	c.logger.Info("running converter", zap.String("binary", c.Binary), zap.Strings("args", args))
	out, err := c.run(ctx, c.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", c.Binary, err, strings.TrimSpace(string(out)))
	}

	return []string{filepath.Join(dir, ModelFile)}, nil
}
