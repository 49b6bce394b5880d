// Package statsapi provides the typed HTTP client for the remote
// statistics service, with strict response validation, retry logic,
// and error classification.
package statsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/depthlab/noisecache/pkg/params"
)

// statsPath is the statistics endpoint; the query mode travels in the body.
const statsPath = "/api/v1/stats"

// Prometheus metrics for statistics-service requests.
var (
	statsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noise_stats_requests_total",
		Help: "Total statistics-service requests by mode and status",
	}, []string{"mode", "status"})

	statsRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "noise_stats_request_duration_seconds",
		Help:    "Statistics-service request duration in seconds by mode",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"mode"})

	statsErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "noise_stats_errors_total",
		Help: "Total statistics-service errors by kind",
	}, []string{"kind"})
)

// Client talks to the statistics service.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the statistics service base URL (required).
	BaseURL string

	// UserAgent identifies the dashboard to the service.
	UserAgent string

	// RequestTimeout bounds a single request, superseding fetches that
	// would otherwise tie up a slot indefinitely.
	RequestTimeout time.Duration

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		UserAgent:      "noisecache/0.1.0",
		RequestTimeout: 30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// New creates a statistics-service client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}

	logger := log.With().Str("component", "stats-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// FetchGeneNoise runs a gene-noise query and decodes the response.
func (c *Client) FetchGeneNoise(ctx context.Context, q params.Query) (*GeneNoiseResult, error) {
	q.Mode = params.ModeGeneNoise
	body, err := c.do(ctx, q)
	if err != nil {
		return nil, err
	}

	result, err := decodeGeneNoise(body)
	if err != nil {
		statsErrorsTotal.WithLabelValues(string(ErrorKindDataShape)).Inc()
		return nil, err
	}
	return result, nil
}

// FetchEnrichment runs an enrichment query and decodes the response.
func (c *Client) FetchEnrichment(ctx context.Context, q params.Query) (*EnrichmentResult, error) {
	q.Mode = params.ModeEnrichment
	body, err := c.do(ctx, q)
	if err != nil {
		return nil, err
	}

	result, err := decodeEnrichment(body)
	if err != nil {
		statsErrorsTotal.WithLabelValues(string(ErrorKindDataShape)).Inc()
		return nil, err
	}
	return result, nil
}

// do validates q, posts it to the statistics endpoint with retry for
// transient failures, and returns the raw response body.
func (c *Client) do(ctx context.Context, q params.Query) ([]byte, error) {
	if err := q.Validate(); err != nil {
		return nil, &QueryError{
			Kind:    ErrorKindValidation,
			Message: "query rejected before network call",
			Err:     err,
		}
	}

	payload, err := json.Marshal(requestFromQuery(q))
	if err != nil {
		return nil, &QueryError{
			Kind:    ErrorKindValidation,
			Message: "encode request body",
			Err:     err,
		}
	}

	mode := string(q.Mode)
	startTime := time.Now()
	defer func() {
		statsRequestDuration.WithLabelValues(mode).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	retryErr := c.retryWithBackoff(ctx, func() *QueryError {
		var qerr *QueryError
		body, qerr = c.doOnce(ctx, mode, payload)
		return qerr
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return body, nil
}

// doOnce executes a single HTTP round trip.
func (c *Client) doOnce(ctx context.Context, mode string, payload []byte) ([]byte, *QueryError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+statsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &QueryError{Kind: ErrorKindNetwork, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		qerr := c.classifyTransportError(ctx, err)
		statsErrorsTotal.WithLabelValues(string(qerr.Kind)).Inc()
		statsRequestsTotal.WithLabelValues(mode, string(qerr.Kind)).Inc()
		if qerr.Kind != ErrorKindCancelled {
			c.logger.Error().Err(err).Str("mode", mode).Msg("Stats request failed")
		}
		return nil, qerr
	}
	defer resp.Body.Close()

	statsRequestsTotal.WithLabelValues(mode, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		qerr := c.classifyTransportError(ctx, err)
		statsErrorsTotal.WithLabelValues(string(qerr.Kind)).Inc()
		return nil, qerr
	}

	if resp.StatusCode != http.StatusOK {
		qerr := &QueryError{
			Kind:       ErrorKindServer,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
		}
		statsErrorsTotal.WithLabelValues(string(ErrorKindServer)).Inc()
		c.logger.Warn().
			Str("mode", mode).
			Int("status", resp.StatusCode).
			Msg("Stats service returned error status")
		return nil, qerr
	}

	return body, nil
}

// classifyTransportError separates caller cancellation from genuine
// transport failures. A timeout is a network error: the UI should offer a
// retry, not silently swallow it like a supersession.
func (c *Client) classifyTransportError(ctx context.Context, err error) *QueryError {
	if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		return &QueryError{Kind: ErrorKindCancelled, Message: "request cancelled", Err: err}
	}
	return &QueryError{Kind: ErrorKindNetwork, Message: "transport failure", Err: err}
}

// errorMessage extracts the textual error body the service sends with
// non-2xx statuses, falling back to the status text.
func errorMessage(status int, body []byte) string {
	const maxLen = 200
	msg := string(bytes.TrimSpace(body))
	if msg == "" {
		return http.StatusText(status)
	}
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
