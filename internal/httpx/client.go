// Package httpx implements the resilient HTTP client behind every crawl
// session. A request either succeeds eventually or outlives the caller's
// context: transport errors, bad statuses, undecodable bodies and
// business-level failures are all retried with exponential backoff.
package httpx

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

	"github.com/apiharvest/apiharvest/internal/extract"
	"github.com/apiharvest/apiharvest/internal/metrics"
)

// RequestSpec is a fully instantiated request: templates have already
// been expanded by the caller. Target, Phase and Page only describe the
// request to observers.
type RequestSpec struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]any
	Body    any

	Target string
	Phase  string
	Page   int
}

// Options configures a Client.
type Options struct {
	Timeout         time.Duration // per-attempt timeout
	UserAgent       string
	PerHostDelay    time.Duration // minimum spacing between requests per host
	Backoff         Backoff
	FailureKeywords []string // extra business-failure keywords
	Observer        Observer
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
}

// Client retries requests until they succeed. The only error Send can
// return is the context's.
type Client struct {
	hc       *http.Client
	ua       string
	backoff  Backoff
	limiter  *hostLimiter
	keywords []string
	observer Observer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// attemptFailure classifies one failed attempt.
type attemptFailure struct {
	class  string
	reason string
	status int
}

// New creates a client. Zero options fall back to sane defaults.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "apiharvest/1.0"
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	hc := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &Client{
		hc:       hc,
		ua:       opts.UserAgent,
		backoff:  opts.Backoff,
		limiter:  newHostLimiter(opts.PerHostDelay),
		keywords: buildKeywords(opts.FailureKeywords),
		observer: opts.Observer,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// Send performs the request, retrying forever on any failure. It blocks
// until an attempt yields a decoded, business-successful body, and only
// a canceled context can make it return an error.
func (c *Client) Send(ctx context.Context, spec RequestSpec) (any, error) {
	host := hostOf(spec.URL)

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}

		start := time.Now()
		body, failure := c.attempt(ctx, spec)
		elapsed := time.Since(start)
		c.metrics.ObserveRequest(elapsed)

		record := AttemptRecord{
			Target:   spec.Target,
			Phase:    spec.Phase,
			Page:     spec.Page,
			Method:   spec.Method,
			URL:      spec.URL,
			Attempt:  attempt,
			Duration: elapsed,
		}

		if failure == nil {
			record.Result = ResultOK
			c.metrics.IncAttempt(ResultOK)
			c.notify(record)
			return body, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delay := c.backoff.Delay(attempt)
		record.Result = failure.class
		record.Reason = failure.reason
		record.Status = failure.status
		record.Delay = delay
		c.metrics.IncAttempt(failure.class)
		c.metrics.ObserveRetryDelay(delay)
		c.notify(record)

		c.logger.Warn("Request failed, retrying",
			"target", spec.Target,
			"phase", spec.Phase,
			"page", spec.Page,
			"url", spec.URL,
			"attempt", attempt,
			"class", failure.class,
			"reason", failure.reason,
			"delay", delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// attempt runs a single request/decode/inspect cycle.
func (c *Client) attempt(ctx context.Context, spec RequestSpec) (any, *attemptFailure) {
	req, err := c.buildRequest(ctx, spec)
	if err != nil {
		return nil, &attemptFailure{class: ResultTransport, reason: "build request: " + err.Error()}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &attemptFailure{class: ResultTransport, reason: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &attemptFailure{class: ResultTransport, reason: "read body: " + err.Error()}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &attemptFailure{
			class:  ResultHTTPError,
			reason: resp.Status,
			status: resp.StatusCode,
		}
	}

	decoded, err := Parse(raw)
	if err != nil {
		return nil, &attemptFailure{class: ResultDecode, reason: err.Error(), status: resp.StatusCode}
	}

	if reason := FailureReason(decoded, c.keywords); reason != "" {
		return nil, &attemptFailure{class: ResultBusiness, reason: reason, status: resp.StatusCode}
	}

	return decoded, nil
}

// buildRequest assembles the http.Request: query parameters are encoded
// into the URL and the body is sent as a form or as JSON depending on
// the declared Content-Type.
func (c *Client) buildRequest(ctx context.Context, spec RequestSpec) (*http.Request, error) {
	u, err := url.Parse(spec.URL)
	if err != nil {
		return nil, err
	}

	if len(spec.Query) > 0 {
		q := u.Query()
		for key, value := range spec.Query {
			q.Set(key, extract.Stringify(value))
		}
		u.RawQuery = q.Encode()
	}

	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	contentType := headerValue(spec.Headers, "Content-Type")
	if spec.Body != nil && method != http.MethodGet && method != http.MethodHead {
		payload, ct, err := encodeBody(spec.Body, contentType)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
		contentType = ct
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	for name, value := range spec.Headers {
		req.Header.Set(name, value)
	}
	if reader != nil && contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

// encodeBody renders a template body for the wire. Strings pass through
// untouched; structured bodies follow the declared Content-Type, with
// JSON as the default.
func encodeBody(body any, declared string) ([]byte, string, error) {
	if s, ok := body.(string); ok {
		return []byte(s), declared, nil
	}

	if strings.Contains(strings.ToLower(declared), "application/x-www-form-urlencoded") {
		m, ok := body.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("form body must be a mapping, got %T", body)
		}
		form := url.Values{}
		for key, value := range m {
			form.Set(key, extract.Stringify(value))
		}
		return []byte(form.Encode()), declared, nil
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("encode JSON body: %w", err)
	}
	if declared == "" {
		declared = "application/json"
	}
	return payload, declared, nil
}

// headerValue does a case-insensitive header lookup on the spec map.
func headerValue(headers map[string]string, name string) string {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// notify hands the record to the observer, shielding the client from
// anything the observer does.
func (c *Client) notify(record AttemptRecord) {
	if c.observer == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	c.observer.HTTPAttempt(record)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.hc.CloseIdleConnections()
}
