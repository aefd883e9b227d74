package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/signkit/internal/gemini"
	"github.com/example/signkit/internal/logging"
)

//go:generate mockgen -source=recognition.go -destination=mocks/mock_generator.go -package=mocks

// OutputPrefix starts the single line the identifier prints for every label.
const OutputPrefix = "🔍 Gemini says: "

// FallbackMIMEType is sent when the bytes do not sniff as an image.
const FallbackMIMEType = "image/jpeg"

var (
	// ErrImageNotFound is returned before any network call when the path is unusable.
	ErrImageNotFound = errors.New("image file not found")
	// ErrEmptyImage is returned for zero-length input.
	ErrEmptyImage = errors.New("image is empty")
)

// Generator sends one generateContent request and returns the decoded envelope.
type Generator interface {
	Generate(ctx context.Context, req gemini.GenerateRequest) (any, error)
}

// Recognition is the outcome of a single identification.
type Recognition struct {
	RequestID  string
	Label      string
	Shape      gemini.Shape
	MimeType   string
	ImageBytes int
}

// RecognitionUseCase turns images into sign labels through a Generator.
type RecognitionUseCase struct {
	generator Generator
	prompt    string
	logger    *zap.Logger
}

// NewRecognitionUseCase constructs a use case with the default sign prompt.
func NewRecognitionUseCase(generator Generator, logger *zap.Logger) *RecognitionUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecognitionUseCase{
		generator: generator,
		prompt:    gemini.SignPrompt,
		logger:    logger.Named("recognition_usecase"),
	}
}

// IdentifyFile validates and reads path, then identifies its contents.
func (uc *RecognitionUseCase) IdentifyFile(ctx context.Context, path string) (*Recognition, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, logging.NewOperationError("usecase.read_image", "", err)
	}

	uc.logger.Debug("image loaded", zap.String("path", path), zap.Int("bytes", len(data)))
	return uc.IdentifyImage(ctx, data)
}

// IdentifyImage sends data to the generator exactly once and extracts a label.
// Transport and status failures are returned; envelope shape problems become
// placeholder labels.
func (uc *RecognitionUseCase) IdentifyImage(ctx context.Context, data []byte) (*Recognition, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.identify_image", requestID)

	mimeType := DetectImageMIME(data)
	req := gemini.NewGenerateRequest(uc.prompt, mimeType, data)

	envelope, err := uc.generator.Generate(ctx, req)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.generate", requestID, err)
		opLogger.Error("generate request failed", zap.Error(err))
		return nil, wrapped
	}

	answer := gemini.Resolve(envelope)
	if answer.Unknown() {
		opLogger.Warn("response degraded to placeholder",
			zap.String("shape", string(answer.Shape)),
			zap.String("reason", answer.Reason))
	}
	opLogger.Debug("extracted sign name", zap.String("label", answer.Label), zap.String("shape", string(answer.Shape)))

	return &Recognition{
		RequestID:  requestID,
		Label:      answer.Label,
		Shape:      answer.Shape,
		MimeType:   mimeType,
		ImageBytes: len(data),
	}, nil
}

// DetectImageMIME sniffs data and returns an image/* type, or FallbackMIMEType.
func DetectImageMIME(data []byte) string {
	detected := mimetype.Detect(data).String()
	if strings.HasPrefix(detected, "image/") {
		return detected
	}
	return FallbackMIMEType
}

// FormatLine renders the fixed, parseable output line.
func FormatLine(label string) string {
	return OutputPrefix + label
}
