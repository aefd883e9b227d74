package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/example/signkit/internal/config"
	"github.com/example/signkit/internal/logging"
)

// ErrMissingAPIKey is returned when no credential was configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not set")

// StatusError reports a non-200 reply from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Body)
}

// Client calls the generateContent endpoint once per request. It never retries.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     *zap.Logger
}

// NewClient validates cfg and returns a ready client. A nil httpClient uses
// http.DefaultClient.
func NewClient(cfg config.Gemini, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = config.DefaultGeminiBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = config.DefaultGeminiAPIVersion
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultGeminiModel
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   fmt.Sprintf("%s/%s/models/%s:generateContent", base, version, url.PathEscape(model)),
		apiKey:     cfg.APIKey,
		logger:     logger.Named("gemini"),
	}, nil
}

// Endpoint returns the request URL without the credential.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Generate posts req and returns the decoded JSON envelope.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (any, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, logging.NewOperationError("gemini.encode_request", "", err)
	}

	target := c.endpoint + "?key=" + url.QueryEscape(c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, logging.NewOperationError("gemini.build_request", "", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending generate request",
		zap.String("url", logging.RedactedURL(target)),
		zap.Int("body_bytes", len(body)))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// url.Error embeds the full URL, including the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, logging.NewOperationError("gemini.generate", "", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, logging.NewOperationError("gemini.read_response", "", err)
	}

	c.logger.Debug("received response", zap.Int("status", resp.StatusCode), zap.Int("body_bytes", len(payload)))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(payload)}
	}

	var envelope any
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&envelope); err != nil {
		return nil, logging.NewOperationError("gemini.decode_response", "", err)
	}
	return envelope, nil
}
