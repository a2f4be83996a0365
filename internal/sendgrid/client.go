// Package sendgrid delivers rendered messages through the SendGrid v3 Mail
// Send API.
//
// A single call carries up to 1000 personalizations. Batches send the HTML
// template once and let SendGrid substitute each recipient's {{key}} values,
// which yields the same bytes as rendering locally. Calls are paced with a
// token bucket shared by every caller of the Client and retried with
// jittered backoff on 429 and 5xx.
package sendgrid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/time/rate"

	"github.com/ignite/campaign-dashboard/internal/domain"
	"github.com/ignite/campaign-dashboard/internal/metrics"
	"github.com/ignite/campaign-dashboard/internal/pkg/httpretry"
	"github.com/ignite/campaign-dashboard/internal/pkg/logger"
	"github.com/ignite/campaign-dashboard/internal/render"
)

const (
	DefaultBaseURL = "https://api.sendgrid.com"
	sendPath       = "/v3/mail/send"
	maxErrorBody   = 4096
)

var (
	ErrNotConfigured = errors.New("sendgrid: API key not configured")
	ErrEmptyBatch    = errors.New("sendgrid: batch has no recipients")
)

// ProviderError is a non-2xx answer from the Mail Send API.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("sendgrid: status %d: %s", e.StatusCode, e.Body)
}

// Config holds the client settings.
type Config struct {
	APIKey        string
	BaseURL       string
	FromEmail     string
	FromName      string
	Timeout       time.Duration
	MaxRetries    int
	RatePerSecond float64
	Sandbox       bool
	ClickTracking bool
	OpenTracking  bool
}

// Client sends mail through SendGrid. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    httpretry.HTTPDoer
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	doer      httpretry.HTTPDoer
	retryOpts []httpretry.Option
	metrics   *metrics.Metrics
}

// WithHTTPClient replaces the transport underneath the retry layer.
func WithHTTPClient(doer httpretry.HTTPDoer) Option {
	return func(o *clientOptions) { o.doer = doer }
}

// WithRetryOptions passes options to the retry layer.
func WithRetryOptions(opts ...httpretry.Option) Option {
	return func(o *clientOptions) { o.retryOpts = append(o.retryOpts, opts...) }
}

// WithMetrics records provider calls and retries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// NewClient creates a SendGrid client. Zero config values take defaults:
// 30s per attempt, 3 retries, 50 requests per second.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 50
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.doer == nil {
		o.doer = &http.Client{Timeout: cfg.Timeout}
	}
	m := o.metrics
	retryOpts := append([]httpretry.Option{
		httpretry.WithRetryHook(func(int, int, error) { m.RecordProviderRetry() }),
	}, o.retryOpts...)

	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		cfg:     cfg,
		http:    httpretry.NewRetryClient(o.doer, cfg.MaxRetries, retryOpts...),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		metrics: m,
	}
}

// MaxBatchSize returns the maximum personalizations per call.
func (c *Client) MaxBatchSize() int { return domain.MaxBatchSize }

// Send delivers one message and returns the provider message id.
func (c *Client) Send(ctx context.Context, msg domain.Message) (string, error) {
	m := c.newMail()
	m.Subject = msg.Subject
	m.AddContent(mail.NewContent("text/html", msg.HTML))

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	for k, v := range msg.CustomArgs {
		p.SetCustomArg(k, v)
	}
	m.AddPersonalizations(p)

	id, err := c.post(ctx, mail.GetRequestBody(m))
	if err != nil {
		return "", err
	}
	logger.Info("sendgrid: message accepted", "to", msg.To, "message_id", id)
	return id, nil
}

// SendBatch delivers every personalization of b in one API call.
func (c *Client) SendBatch(ctx context.Context, b domain.Batch) (string, error) {
	if len(b.Personalizations) == 0 {
		return "", ErrEmptyBatch
	}
	if len(b.Personalizations) > domain.MaxBatchSize {
		return "", fmt.Errorf("sendgrid: batch size %d exceeds max of %d", len(b.Personalizations), domain.MaxBatchSize)
	}

	m := c.newMail()
	m.Subject = b.SubjectTemplate
	m.AddContent(mail.NewContent("text/html", b.HTMLTemplate))

	keys := render.Placeholders(b.HTMLTemplate)
	for _, pm := range b.Personalizations {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail(pm.ToName, pm.To))
		p.Subject = pm.Subject
		for _, k := range keys {
			if v, ok := pm.Variables[k]; ok {
				p.SetSubstitution("{{"+k+"}}", v)
			}
		}
		if b.CampaignID != "" {
			p.SetCustomArg("campaign_id", b.CampaignID)
		}
		m.AddPersonalizations(p)
	}

	id, err := c.post(ctx, mail.GetRequestBody(m))
	if err != nil {
		return "", err
	}
	logger.Info("sendgrid: batch accepted", "recipients", len(b.Personalizations), "message_id", id)
	return id, nil
}

// SendBatches sends batches in order and stops at the first failure. The
// ids of the batches accepted before it are returned with the error.
func (c *Client) SendBatches(ctx context.Context, batches []domain.Batch) ([]string, error) {
	ids := make([]string, 0, len(batches))
	for i, b := range batches {
		id, err := c.SendBatch(ctx, b)
		if err != nil {
			return ids, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Client) newMail() *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(c.cfg.FromName, c.cfg.FromEmail))

	ts := mail.NewTrackingSettings()
	ts.SetClickTracking(mail.NewClickTrackingSetting().SetEnable(c.cfg.ClickTracking))
	ts.SetOpenTracking(mail.NewOpenTrackingSetting().SetEnable(c.cfg.OpenTracking))
	m.SetTrackingSettings(ts)

	if c.cfg.Sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		m.SetMailSettings(ms)
	}
	return m
}

func (c *Client) post(ctx context.Context, payload []byte) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("sendgrid: rate wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+sendPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("sendgrid: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordProviderCall(0, time.Since(start))
		return "", fmt.Errorf("sendgrid: send: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordProviderCall(resp.StatusCode, time.Since(start))

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	id := resp.Header.Get("X-Message-Id")
	if id == "" {
		id = uuid.New().String()
	}
	return id, nil
}
