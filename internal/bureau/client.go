package bureau

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"loanflow/pkg/platform/circuit"
)

const tracerName = "loanflow/internal/bureau"

// ClientConfig configures an HTTP bureau client.
type ClientConfig struct {
	ProviderID string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	// MaxRetries bounds retries of retryable provider errors; 0 disables them.
	MaxRetries int
}

// Client is a JSON-over-HTTP adapter for both bureau ports. Calls go through
// a circuit breaker; while it is open they fail fast with ErrorProviderOutage.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithBreaker(b *circuit.Breaker) ClientOption {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client. The default transport is instrumented with
// OpenTelemetry.
func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuit.New(cfg.ProviderID),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the provider id used in errors and logs.
func (c *Client) ID() string {
	return c.cfg.ProviderID
}

func (c *Client) Verify(ctx context.Context, q IdentityQuery) (*IdentityVerification, error) {
	var out IdentityVerification
	if err := c.call(ctx, "identity.verify", http.MethodPost, "/v1/identity/verify", q, &out); err != nil {
		return nil, err
	}
	if out.PAN == "" && out.FullName == "" {
		return nil, NewProviderError(ErrorBadData, c.cfg.ProviderID, "identity response missing pan and name", nil)
	}
	return &out, nil
}

func (c *Client) VerifySecondary(ctx context.Context, secondaryID string) (*SecondaryVerification, error) {
	var out SecondaryVerification
	body := map[string]string{"secondary_id": secondaryID}
	if err := c.call(ctx, "identity.verify_secondary", http.MethodPost, "/v1/identity/secondary", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchReport(ctx context.Context, pan string) (*CreditReport, error) {
	var out CreditReport
	path := "/v1/reports/" + url.PathEscape(pan)
	if err := c.call(ctx, "credit.fetch_report", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.CIBILScore < 300 || out.CIBILScore > 900 {
		return nil, NewProviderError(ErrorBadData, c.cfg.ProviderID,
			fmt.Sprintf("cibil score %d outside 300-900", out.CIBILScore), nil)
	}
	if out.PAN == "" {
		out.PAN = pan
	}
	if out.FetchedAt.IsZero() {
		out.FetchedAt = time.Now().UTC()
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("bureau.provider", c.cfg.ProviderID))

	if !c.breaker.Allow() {
		err := NewProviderError(ErrorProviderOutage, c.cfg.ProviderID, "circuit open", nil)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	attempt := func() error {
		err := c.do(ctx, method, path, in, out)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(c.cfg.MaxRetries, 0))),
		ctx,
	)
	err := backoff.Retry(attempt, policy)

	if err != nil {
		if IsRetryable(err) {
			if _, change := c.breaker.RecordFailure(); change.Opened {
				c.logger.WarnContext(ctx, "bureau circuit opened", "provider", c.cfg.ProviderID)
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WarnContext(ctx, "bureau call failed",
			"provider", c.cfg.ProviderID,
			"operation", op,
			"category", GetCategory(err),
			"error", err,
		)
		return err
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "bureau circuit closed", "provider", c.cfg.ProviderID)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return NewProviderError(ErrorInternal, c.cfg.ProviderID, "encode request", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return NewProviderError(ErrorInternal, c.cfg.ProviderID, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(c.cfg.ProviderID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return classifyStatus(c.cfg.ProviderID, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewProviderError(ErrorBadData, c.cfg.ProviderID, "decode response", err)
	}
	return nil
}
