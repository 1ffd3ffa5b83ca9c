package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/transcript-client/pkg/errclass"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for host requests.
var (
	hostRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_host_requests_total",
		Help: "Total transcript host requests by status",
	}, []string{"status"})

	hostRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcript_host_request_duration_seconds",
		Help:    "Transcript host request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	hostErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_host_errors_total",
		Help: "Total transcript host errors by class",
	}, []string{"class"})
)

// maxErrorBody bounds how much of an error response body is kept for the
// error message.
const maxErrorBody = 512

// ClientConfig holds the host client configuration.
type ClientConfig struct {
	// BaseURL of the transcript host, e.g. "https://transcripts.example.com".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout bounds a single request.
	Timeout time.Duration
}

// DefaultClientConfig returns a default host client configuration.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:   baseURL,
		UserAgent: "transcript-client/0.1.0",
		Timeout:   30 * time.Second,
	}
}

// Client fetches transcripts from the transcript host. It performs exactly one
// request per Fetch; pacing and retries belong to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     ClientConfig
	logger     zerolog.Logger
}

// NewClient creates a host client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		config:     cfg,
		logger:     logger.With().Str("component", "transcript-client").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Fetch retrieves the transcript of req.ID. Failures are classified:
// 429 is rate_limit, 404 is not_found, a 403 mentioning "disabled" is
// disabled, and transport failures are network.
func (c *Client) Fetch(ctx context.Context, req Request) ([]Entry, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, errclass.New(errclass.Invalid, "empty video id")
	}

	endpoint := c.baseURL.JoinPath("transcripts", req.ID)
	if req.Lang != "" {
		query := endpoint.Query()
		query.Set("lang", req.Lang)
		endpoint.RawQuery = query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, errclass.Wrap(errclass.Invalid, "create request", err)
	}
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("video_id", req.ID).
		Str("lang", req.Lang).
		Msg("Fetching transcript")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	hostRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		hostRequestsTotal.WithLabelValues("network_error").Inc()
		class := errclass.Network
		if ctx.Err() != nil {
			class = errclass.Cancelled
		}
		hostErrorsTotal.WithLabelValues(string(class)).Inc()
		return nil, errclass.Wrap(class, "transcript request", err)
	}
	defer resp.Body.Close()

	hostRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		classErr := classifyResponse(resp.StatusCode, strings.TrimSpace(string(body)))
		hostErrorsTotal.WithLabelValues(string(classErr.Class)).Inc()

		c.logger.Warn().
			Str("video_id", req.ID).
			Int("status", resp.StatusCode).
			Str("error_class", string(classErr.Class)).
			Msg("Transcript host error")
		return nil, classErr
	}

	var payload struct {
		Entries []Entry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		hostErrorsTotal.WithLabelValues(string(errclass.Invalid)).Inc()
		return nil, errclass.Wrap(errclass.Invalid, "decode transcript response", err)
	}

	if len(payload.Entries) == 0 {
		hostErrorsTotal.WithLabelValues(string(errclass.NotFound)).Inc()
		return nil, errclass.New(errclass.NotFound, fmt.Sprintf("no transcript entries for %s", req.ID))
	}

	c.logger.Debug().
		Str("video_id", req.ID).
		Int("entries", len(payload.Entries)).
		Msg("Transcript fetched")

	return payload.Entries, nil
}

// classifyResponse maps a non-200 host response to a classified error.
func classifyResponse(status int, body string) *errclass.Error {
	message := fmt.Sprintf("status %d", status)
	if body != "" {
		message = fmt.Sprintf("status %d: %s", status, body)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return errclass.New(errclass.RateLimit, message)
	case status == http.StatusNotFound:
		return errclass.New(errclass.NotFound, message)
	case status == http.StatusForbidden && strings.Contains(strings.ToLower(body), "disabled"):
		return errclass.New(errclass.Disabled, message)
	case status >= 500:
		return errclass.New(errclass.Network, message)
	default:
		return errclass.New(errclass.Classify(fmt.Errorf("%s", message)), message)
	}
}
