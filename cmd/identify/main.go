// Command identify asks Gemini which traffic sign an image shows and prints
// the answer as a single line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/example/signkit/internal/config"
	"github.com/example/signkit/internal/gemini"
	"github.com/example/signkit/internal/logging"
	"github.com/example/signkit/internal/usecase"
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

	code := run(context.Background(), os.Args[1:], cfg, os.Stdout, os.Stderr, logger)
	_ = logger.Sync()
	os.Exit(code)
}

// setup reads the environment and builds a logger at the configured level.
func setup() (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	logger, err := logging.NewCLILogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func run(ctx context.Context, args []string, cfg *config.Config, stdout, stderr io.Writer, logger *zap.Logger) int {
	flags := flag.NewFlagSet("identify", flag.ContinueOnError)
	flags.SetOutput(stderr)
	imagePath := flags.String("image_path", "", "Path to the traffic sign image")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: identify [--image_path] <image>")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}

	path := *imagePath
	if path == "" && flags.NArg() > 0 {
		path = flags.Arg(0)
	}
	if path == "" {
		flags.Usage()
		return 2
	}

	// Checked before the client exists so a bad path never needs a key.
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		fmt.Fprintf(stderr, "Error: Image file not found: %s\n", path)
		return 1
	}

	client, err := gemini.NewClient(cfg.Gemini, nil, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	uc := usecase.NewRecognitionUseCase(client, logger)
	result, err := uc.IdentifyFile(ctx, path)
	if err != nil {
		var statusErr *gemini.StatusError
		switch {
		case errors.Is(err, usecase.ErrImageNotFound):
			fmt.Fprintf(stderr, "Error: Image file not found: %s\n", path)
		case errors.As(err, &statusErr):
			fmt.Fprintf(stderr, "API Error: %d - %s\n", statusErr.StatusCode, statusErr.Body)
		default:
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		logger.Debug("identification failed", zap.String("operation", logging.OperationOf(err)), zap.Error(err))
		return 1
	}

	fmt.Fprintln(stdout, usecase.FormatLine(result.Label))
	return 0
}
