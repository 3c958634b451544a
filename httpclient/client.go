package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/resilience"
)

// Client sends requests through the configured resilience guards:
// retry around (rate limit, then circuit breaker, then the call).
type Client struct {
	http *http.Client
	cfg  Config
	cb   *resilience.CircuitBreaker
	rl   *resilience.RateLimiter
	log  *logger.Logger
}

// New creates a Client.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}

	c := &Client{
		http: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		cfg:  cfg,
		log:  log.WithComponent("httpclient"),
	}
	if cb := cfg.Policy.CircuitBreaker; cb != nil {
		cbCfg := *cb
		cbCfg.IsFailure = IsRetryable
		cbCfg.OnStateChange = func(name string, from, to resilience.State) {
			c.log.Warn("Circuit breaker state changed", map[string]interface{}{
				"breaker": name, "from": from.String(), "to": to.String(),
			})
		}
		c.cb = resilience.NewCircuitBreaker(cbCfg)
	}
	if rl := cfg.Policy.RateLimit; rl != nil {
		c.rl = resilience.NewRateLimiter(*rl)
	}
	return c, nil
}

// Do sends req and returns the response. Non-2xx responses come back with
// both the Response and an *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.cfg.Policy.Retry == nil {
		return c.guarded(ctx, req)
	}
	retry := *c.cfg.Policy.Retry
	retry.RetryIf = func(err error) bool {
		return IsRetryable(err) && !errors.Is(err, resilience.ErrCircuitOpen)
	}
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		c.log.WithContext(ctx).Warn("Retrying request", map[string]interface{}{
			"path":       req.Path,
			"attempt":    attempt,
			"backoff_ms": backoff.Milliseconds(),
			"error":      err.Error(),
		})
	}
	return resilience.Retry(ctx, retry, func() (*Response, error) {
		return c.guarded(ctx, req)
	})
}

// DoJSON sends req and decodes a 2xx JSON body into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s response: %w", req.Path, err)
	}
	return nil
}

func (c *Client) guarded(ctx context.Context, req Request) (*Response, error) {
	if c.rl != nil {
		if err := c.rl.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.cb == nil {
		return c.send(ctx, req)
	}
	var resp *Response
	err := c.cb.Execute(func() error {
		var err error
		resp, err = c.send(ctx, req)
		return err
	})
	return resp, err
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, transportError(KindTimeout, err)
		}
		return nil, transportError(KindConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(KindConnection, fmt.Errorf("read response body: %w", err))
	}
	c.log.WithContext(ctx).Debug("HTTP call", map[string]interface{}{
		"method":      req.Method,
		"path":        req.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	out := &Response{StatusCode: resp.StatusCode, Headers: flatten(resp.Header), Body: body}
	if e := statusError(resp.StatusCode, body); e != nil {
		return out, e
	}
	return out, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	url := req.Path
	if c.cfg.BaseURL != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(url, "/")
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	auth := c.cfg.Auth
	if req.Auth != nil {
		auth = req.Auth
	}
	auth.apply(httpReq)
	return httpReq, nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case *MultipartBody:
		return v.encode()
	case []byte:
		return bytes.NewReader(v), "application/octet-stream", nil
	case string:
		return strings.NewReader(v), "text/plain; charset=utf-8", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
