// Package exporter builds or loads the traffic sign classifier and converts
// it into a TF.js artifact directory with a companion classes.json.
package exporter

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/example/signkit/internal/classes"
	"github.com/example/signkit/internal/logging"
)

// State is a step in an export run.
type State string

const (
	StateLoadAttempted State = "LOAD_ATTEMPTED"
	StateLoaded        State = "LOADED"
	StateLoadFailed    State = "LOAD_FAILED"
	StateFreshCreated  State = "FRESH_CREATED"
	StateConverted     State = "CONVERTED"
	StateConvertFailed State = "CONVERT_FAILED"
)

// Options controls a single export.
type Options struct {
	ModelPath string
	OutputDir string
	CreateNew bool
	// Classes defaults to classes.Default() when nil.
	Classes []string
}

// Result records which path an export took and what it produced.
type Result struct {
	States      []State
	Model       Model
	LoadErr     error
	Artifacts   []string
	ClassesFile string
}

// Final returns the last state reached, or "" before any transition.
func (r *Result) Final() State {
	if len(r.States) == 0 {
		return ""
	}
	return r.States[len(r.States)-1]
}

// Exporter runs the load → create → convert → write-classes sequence.
type Exporter struct {
	fresh   Converter
	trained Converter
	logger  *zap.Logger
}

// NewExporter wires converters for freshly created and trained models.
func NewExporter(fresh, trained Converter, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{fresh: fresh, trained: trained, logger: logger.Named("exporter")}
}

// Run performs one export. A failed load degrades to a fresh architecture;
// a failed conversion ends the run with an error and is not retried.
func (e *Exporter) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{}
	names := opts.Classes
	if names == nil {
		names = classes.Default()
	}
	if err := classes.Validate(names); err != nil {
		return res, logging.NewOperationError("exporter.validate_classes", "", err)
	}
	dir := opts.OutputDir
	if dir == "" {
		return res, logging.NewOperationError("exporter.output_dir", "", fmt.Errorf("output directory is required"))
	}

	if !opts.CreateNew {
		e.transition(res, StateLoadAttempted)
		trained, err := Load(opts.ModelPath)
		if err != nil {
			res.LoadErr = err
			e.logger.Warn("failed to load trained model, creating new architecture",
				zap.String("model_path", opts.ModelPath), zap.Error(err))
			e.transition(res, StateLoadFailed)
		} else {
			res.Model = trained
			e.transition(res, StateLoaded)
		}
	}

	if res.Model == nil {
		res.Model = Architecture(len(names))
		e.transition(res, StateFreshCreated)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, logging.NewOperationError("exporter.create_output_dir", "", err)
	}

	converter := e.fresh
	if _, ok := res.Model.(*TrainedModel); ok {
		converter = e.trained
	}
	artifacts, err := converter.Convert(ctx, res.Model, dir)
	res.Artifacts = artifacts
	if err != nil {
		e.transition(res, StateConvertFailed)
		e.logger.Error("conversion failed", zap.String("model", res.Model.Kind()), zap.Error(err))
		return res, logging.NewOperationError("exporter.convert", "", err)
	}
	e.transition(res, StateConverted)

	path, err := classes.WriteJSON(dir, names)
	if err != nil {
		return res, logging.NewOperationError("exporter.write_classes", "", err)
	}
	res.ClassesFile = path
	e.logger.Info("class names written", zap.String("path", path), zap.Int("count", len(names)))

	return res, nil
}

func (e *Exporter) transition(res *Result, state State) {
	res.States = append(res.States, state)
	e.logger.Debug("export state", zap.String("state", string(state)))
}
