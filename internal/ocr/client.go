// Package ocr sends single-page documents to a remote OCR provider.
// The wire format follows the OCR.space parse API: one multipart request per
// page, an API key header, and a JSON response carrying the parsed text.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/remitos/internal/common"
	"github.com/Veraticus/remitos/internal/service"
)

// Defaults for the OCR provider.
const (
	DefaultEndpoint     = "https://api.ocr.space/parse/image"
	DefaultLanguage     = "spa"
	DefaultEngine       = 2
	DefaultTimeout      = 60 * time.Second
	DefaultRetryBackoff = 5 * time.Second

	apiKeyHeader = "apikey"
	maxBodyBytes = 10 << 20
)

// Credentials authenticate against the OCR provider.
type Credentials struct {
	APIKey string
}

// Present reports whether credentials were supplied.
func (c Credentials) Present() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Extractor recovers text from one page's document bytes.
type Extractor interface {
	Extract(ctx context.Context, page []byte, creds Credentials, language string) (string, error)
}

// Config holds configuration for the OCR client.
type Config struct {
	HTTPClient   *http.Client
	Endpoint     string
	Language     string
	FileName     string
	Engine       int
	Timeout      time.Duration
	RetryBackoff time.Duration
	DisableScale bool
}

// Client is an Extractor backed by an OCR.space compatible HTTP API.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	language   string
	fileName   string
	engine     int
	scale      bool
	retryOpts  service.RetryOptions
}

// NewClient creates a new OCR client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	language := cfg.Language
	if language == "" {
		language = DefaultLanguage
	}
	engine := cfg.Engine
	if engine == 0 {
		engine = DefaultEngine
	}
	fileName := cfg.FileName
	if fileName == "" {
		fileName = "page.pdf"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		language:   language,
		fileName:   fileName,
		engine:     engine,
		scale:      !cfg.DisableScale,
		retryOpts: service.RetryOptions{
			MaxAttempts:  2,
			InitialDelay: backoff,
			MaxDelay:     backoff,
			Multiplier:   1.0,
		},
	}
}

// Extract performs one OCR request for the page, retrying once after a fixed
// backoff when the failure is transient. An empty result is not an error.
func (c *Client) Extract(ctx context.Context, page []byte, creds Credentials, language string) (string, error) {
	if !creds.Present() {
		return "", permanentError(0, "missing API key", nil)
	}
	if language == "" {
		language = c.language
	}

	var text string
	err := common.WithRetry(ctx, func() error {
		var attemptErr error
		text, attemptErr = c.extractOnce(ctx, page, creds, language)
		if attemptErr == nil {
			return nil
		}
		var ocrErr *Error
		if errors.As(attemptErr, &ocrErr) && ocrErr.Kind == Transient {
			return attemptErr
		}
		return &common.RetryableError{Err: attemptErr, Retryable: false}
	}, c.retryOpts)
	if err == nil {
		return text, nil
	}

	var ocrErr *Error
	if errors.As(err, &ocrErr) {
		c.logger.Warn("OCR request failed", "kind", ocrErr.Kind, "status", ocrErr.StatusCode, "detail", ocrErr.Detail)
		return "", ocrErr
	}
	// Context cancellation during the backoff sleep.
	return "", transientError(0, "request canceled", err)
}

func (c *Client) extractOnce(ctx context.Context, page []byte, creds Credentials, language string) (string, error) {
	body, contentType, err := c.buildRequestBody(page, language)
	if err != nil {
		return "", permanentError(0, "failed to build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", permanentError(0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(apiKeyHeader, creds.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", transientError(0, "request timed out", err)
		}
		return "", permanentError(0, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return "", transientError(resp.StatusCode, "response timed out", err)
		}
		return "", permanentError(resp.StatusCode, "failed to read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return "", transientError(resp.StatusCode, strings.TrimSpace(string(raw)), common.ErrRateLimit)
	case resp.StatusCode != http.StatusOK:
		return "", permanentError(resp.StatusCode, strings.TrimSpace(string(raw)), nil)
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", permanentError(resp.StatusCode, "failed to parse response", err)
	}
	if parsed.IsErroredOnProcessing {
		detail := parsed.ErrorMessage.String()
		if detail == "" {
			detail = "provider reported a processing error"
		}
		return "", permanentError(resp.StatusCode, detail, nil)
	}

	text := parsed.text()
	c.logger.Debug("OCR request completed",
		"duration", time.Since(start),
		"chars", len(text),
		"results", len(parsed.ParsedResults))
	return text, nil
}

func (c *Client) buildRequestBody(page []byte, language string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", c.fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(page); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"language", language},
		{"OCREngine", strconv.Itoa(c.engine)},
		{"scale", strconv.FormatBool(c.scale)},
		{"isOverlayRequired", "false"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// parseResponse is the provider's JSON response.
type parseResponse struct {
	ErrorMessage          flexibleMessage `json:"ErrorMessage"`
	ParsedResults         []parsedResult  `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
}

type parsedResult struct {
	ParsedText string `json:"ParsedText"`
}

func (r parseResponse) text() string {
	parts := make([]string, 0, len(r.ParsedResults))
	for _, res := range r.ParsedResults {
		if t := strings.TrimSpace(res.ParsedText); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// flexibleMessage accepts either a string or a list of strings.
type flexibleMessage []string

func (m *flexibleMessage) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = flexibleMessage{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("unexpected ErrorMessage format: %w", err)
	}
	*m = many
	return nil
}

func (m flexibleMessage) String() string {
	return strings.TrimSpace(strings.Join(m, "; "))
}
