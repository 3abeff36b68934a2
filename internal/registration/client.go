package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"living-science-documents/internal/identifier"
	"living-science-documents/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const contentType = "application/vnd.api+json"

// Client is the DataCite REST client.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	probeClient *http.Client
	limiter     *rate.Limiter
	log         zerolog.Logger
	metrics     *metrics.Metrics
	wait        func(ctx context.Context, d time.Duration) error
}

// Option customises a Client or Sandbox.
type Option func(*options)

type options struct {
	httpClient *http.Client
	log        zerolog.Logger
	metrics    *metrics.Metrics
	wait       func(ctx context.Context, d time.Duration) error
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithWait replaces the backoff sleep.
func WithWait(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.wait = fn }
}

func buildOptions(opts []Option) options {
	o := options{log: zerolog.Nop(), wait: sleep}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	o := buildOptions(opts)

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.AttemptTimeout}
	}
	// probes must see redirects instead of following them
	probe := *httpClient
	probe.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		cfg:         cfg,
		httpClient:  httpClient,
		probeClient: &probe,
		limiter:     limiter,
		log:         o.log,
		metrics:     o.metrics,
		wait:        o.wait,
	}
}

func (c *Client) EnsureDraft(ctx context.Context, doi, requestID string) error {
	started := time.Now()
	err := c.send(ctx, "ensure_draft", requestID, http.MethodPost, "/dois", draftDocument(doi), alreadyExists)
	c.metrics.ObserveRegistration("ensure_draft", started, err)
	return err
}

func (c *Client) UpdateMetadata(ctx context.Context, md Metadata, requestID string) error {
	started := time.Now()
	var err error
	if verr := md.Validate(); verr != nil {
		err = &Error{Op: "update_metadata", Kind: Permanent, Err: verr}
	} else {
		err = c.send(ctx, "update_metadata", requestID, http.MethodPut, "/dois/"+md.DOI, metadataDocument(md), nil)
	}
	c.metrics.ObserveRegistration("update_metadata", started, err)
	return err
}

func (c *Client) SetFindable(ctx context.Context, doi, requestID string) error {
	started := time.Now()
	err := c.send(ctx, "set_findable", requestID, http.MethodPut, "/dois/"+doi, eventDocument(doi, "publish"), nil)
	c.metrics.ObserveRegistration("set_findable", started, err)
	return err
}

func (c *Client) SetRegistered(ctx context.Context, doi, requestID string) error {
	started := time.Now()
	err := c.send(ctx, "set_registered", requestID, http.MethodPut, "/dois/"+doi, eventDocument(doi, "hide"), nil)
	c.metrics.ObserveRegistration("set_registered", started, err)
	return err
}

func (c *Client) VerifyResolution(ctx context.Context, doi string) bool {
	ok := c.probe(ctx, "resolution", identifier.ResolverURL(c.cfg.ResolverURL, doi))
	if !ok {
		c.log.Warn().Str("doi", doi).Msg("resolution unconfirmed")
	}
	return ok
}

func (c *Client) VerifyLanding(ctx context.Context, url string) bool {
	ok := c.probe(ctx, "landing", url)
	if !ok {
		c.log.Warn().Str("url", url).Msg("landing page unconfirmed")
	}
	return ok
}

// alreadyExists treats "DOI taken" answers to a create as success.
func alreadyExists(status int, body string) bool {
	if status == http.StatusConflict {
		return true
	}
	return status == http.StatusUnprocessableEntity && strings.Contains(body, "already been taken")
}

// send runs one logical operation with bounded retries. tolerate may accept
// non-2xx answers as success.
func (c *Client) send(
	ctx context.Context,
	op, requestID, method, path string,
	payload doiDocument,
	tolerate func(status int, body string) bool,
) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Op: op, Kind: Permanent, Err: err}
	}

	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff(attempt - 1)
			c.log.Debug().
				Str("op", op).
				Str("request_id", requestID).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("retrying registration call")
			if err := c.wait(ctx, delay); err != nil {
				return &Error{Op: op, Kind: Transient, Status: lastStatus, Attempts: attempt - 1, Err: err}
			}
		}

		status, respBody, err := c.attempt(ctx, requestID, method, path, body)
		if err != nil {
			c.metrics.ObserveAttempt(op, "transport_error")
			lastErr, lastStatus = err, 0
			if ctx.Err() != nil {
				return &Error{Op: op, Kind: Transient, Attempts: attempt, Err: ctx.Err()}
			}
			continue
		}
		c.metrics.ObserveAttempt(op, strconv.Itoa(status))

		switch {
		case status >= 200 && status < 300:
			return nil
		case tolerate != nil && tolerate(status, respBody):
			return nil
		case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
			lastErr = fmt.Errorf("authority error: status=%d body=%s", status, respBody)
			lastStatus = status
		default:
			return &Error{
				Op:       op,
				Kind:     Permanent,
				Status:   status,
				Attempts: attempt,
				Err:      fmt.Errorf("authority rejected request: status=%d body=%s", status, respBody),
			}
		}
	}

	return &Error{Op: op, Kind: Transient, Status: lastStatus, Attempts: c.cfg.MaxAttempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, requestID, method, path string, body []byte) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.APIURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Idempotency-Key", requestID)
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(b), nil
}

// probe accepts any 2xx or 3xx answer within the retry bound.
func (c *Client) probe(ctx context.Context, check, url string) bool {
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx, c.backoff(attempt-1)); err != nil {
				break
			}
		}
		if c.probeOnce(ctx, url) {
			return true
		}
	}
	c.metrics.ObserveUnconfirmed(check)
	return false
}

func (c *Client) probeOnce(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

// backoff doubles the base delay on each retry: base, 2*base, 4*base...
func (c *Client) backoff(retry int) time.Duration {
	return c.cfg.BackoffBase << (retry - 1)
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Registrar = (*Client)(nil)
