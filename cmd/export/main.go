// Command export builds or loads the traffic sign classifier and writes it
// as a TF.js model directory with a classes.json next to it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/signkit/internal/classes"
	"github.com/example/signkit/internal/config"
	"github.com/example/signkit/internal/exporter"
	"github.com/example/signkit/internal/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to read .env: %v\n", err)
	}

	cfg, logger, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], cfg, os.Stdout, os.Stderr, logger)
	stop()
	_ = logger.Sync()
	os.Exit(code)
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	logger, err := logging.NewCLILogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func run(ctx context.Context, args []string, cfg *config.Config, stdout, stderr io.Writer, logger *zap.Logger) int {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	flags.SetOutput(stderr)
	modelPath := flags.String("model_path", "", "Path to a trained .h5 or .keras model")
	outputDir := flags.String("output_dir", config.DefaultOutputDir, "Directory for the TF.js model and classes.json")
	createNew := flags.Bool("create_new", false, "Skip loading and export a freshly initialised architecture")
	classesPath := flags.String("classes", "", "Optional YAML class list (defaults to the bundled GTSRB names)")
	seed := flags.Uint64("seed", 42, "Seed for fresh weight initialisation")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	names := classes.Default()
	if *classesPath != "" {
		loaded, err := classes.Load(*classesPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		names = loaded
	}

	exp := exporter.NewExporter(
		exporter.NewLayersWriter(*seed, logger),
		exporter.NewExternalConverter(cfg.Converter, nil, logger),
		logger,
	)

	switch {
	case *createNew:
		fmt.Fprintln(stdout, "Creating new model architecture...")
	case *modelPath != "":
		fmt.Fprintf(stdout, "Loading model from %s...\n", *modelPath)
	default:
		fmt.Fprintln(stdout, "No model path given, a new architecture will be created.")
	}

	res, err := exp.Run(ctx, exporter.Options{
		ModelPath: *modelPath,
		OutputDir: *outputDir,
		CreateNew: *createNew,
		Classes:   names,
	})
	if res != nil && res.LoadErr != nil {
		fmt.Fprintf(stdout, "Could not load model (%v), created a new architecture instead.\n", res.LoadErr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error converting model: %v\n", err)
		logger.Debug("export failed", zap.String("operation", logging.OperationOf(err)), zap.Error(err))
		return 1
	}

	fmt.Fprintf(stdout, "Model converted and saved to %s (%s)\n", *outputDir, res.Model.Kind())
	for _, artifact := range res.Artifacts {
		fmt.Fprintf(stdout, "  %s\n", artifact)
	}
	fmt.Fprintf(stdout, "Class names saved to %s\n", res.ClassesFile)
	return 0
}
