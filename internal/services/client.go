package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/metrics"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Client is the paced, retrying HTTP client shared by the catalog implementations.
//
// Every request waits on the rate limiter, carries the caller's credentials and decodes JSON into the
// caller's value. Failures come back as [*CatalogError] or [*FormatError].
type Client struct {
	service string
	baseURL string
	http    *resty.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient swaps the transport, e.g. for httptest servers.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = resty.NewWithClient(hc) }
}

// WithLogger sets the logger used for retry and failure diagnostics.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a client for one catalog service.
func NewClient(service, baseURL string, cfg shared.MigrationConfig, opts ...ClientOption) *Client {
	c := &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    resty.New(),
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)

	c.http.
		SetHeader("Accept", "application/json").
		SetRetryCount(max(cfg.Retries, 0)).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return false
			}
			return r.StatusCode() == http.StatusTooManyRequests || (r.StatusCode() >= 500 && r.StatusCode() <= 504)
		})
	if cfg.CallTimeout > 0 {
		c.http.SetTimeout(cfg.CallTimeout)
	}
	return c
}

// Service returns the service name used in errors and metrics.
func (c *Client) Service() string { return c.service }

// call describes one API request.
type call struct {
	op     string
	method string
	path   string
	query  map[string]string
	body   any
	out    any
}

func (c *Client) do(ctx context.Context, creds models.Credentials, rc call) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.CatalogRequestDuration.WithLabelValues(c.service, rc.op).Observe(time.Since(start).Seconds())
		metrics.CatalogRequestsTotal.WithLabelValues(c.service, rc.op, outcome).Inc()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		ce := classifyWait(ctx, c.service, rc.op, err)
		outcome = ce.Kind.String()
		return ce
	}

	req := c.http.R().SetContext(ctx)
	if creds != nil {
		creds.Apply(req.Header)
	}
	if rc.query != nil {
		req.SetQueryParams(rc.query)
	}
	if rc.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(rc.body)
	}

	resp, err := req.Execute(rc.method, c.baseURL+rc.path)
	if err != nil {
		ce := classifyTransport(c.service, rc.op, err)
		outcome = ce.Kind.String()
		c.logger.Debug("catalog request failed", "service", c.service, "op", rc.op, "kind", ce.Kind, "err", err)
		return ce
	}

	if resp.IsError() {
		ce := classifyStatus(c.service, rc.op, resp.StatusCode(), resp.Body())
		outcome = ce.Kind.String()
		c.logger.Debug("catalog request rejected", "service", c.service, "op", rc.op, "status", resp.StatusCode(), "kind", ce.Kind)
		return ce
	}

	if rc.out != nil {
		if err := json.Unmarshal(resp.Body(), rc.out); err != nil {
			outcome = "malformed"
			return &FormatError{Service: c.service, Op: rc.op, Err: err}
		}
	}
	return nil
}
