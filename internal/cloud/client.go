package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"pktcloud/internal/logging"
)

// maxReplyBytes caps how much of a response body is read.
const maxReplyBytes = 32 << 20

// Doer sends a Request and returns the raw response body.
type Doer interface {
	Do(ctx context.Context, req *Request) (string, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint  string
	Timeout   time.Duration // zero waits indefinitely
	UserAgent string
	// HTTPClient overrides the default transport. Its Jar is replaced when nil.
	HTTPClient *http.Client
}

// Client talks to the single cloud endpoint.
type Client struct {
	endpoint  *url.URL
	userAgent string
	http      *http.Client
}

// NewClient validates the endpoint and prepares an HTTP client with a cookie jar.
func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid cloud endpoint %q: %w", cfg.Endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid cloud endpoint %q: scheme and host required", cfg.Endpoint)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	return &Client{endpoint: u, userAgent: cfg.UserAgent, http: hc}, nil
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Do sends req. Non-2xx responses still return their body with a nil error so
// the caller interprets whatever the server said; only transport failures
// return an error.
func (c *Client) Do(ctx context.Context, req *Request) (string, error) {
	log := logging.WithRequestID(logging.CategoryCloud, req.ID).WithField("kind", req.Kind.String())
	timer := logging.StartTimer(logging.CategoryCloud, "cloud "+req.Kind.String())
	defer timer.StopWithThreshold(10 * time.Second)

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return "", err
	}

	log.Info("%s %s", httpReq.Method, redact(httpReq.URL))
	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Warn("request failed: %v", err)
		return "", fmt.Errorf("cloud request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		log.Warn("reading reply failed after %d bytes: %v", len(data), err)
		return string(data), fmt.Errorf("failed to read cloud reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("unexpected status %d", resp.StatusCode)
	}
	log.Info("reply complete: %d bytes", len(data))
	return string(data), nil
}

func (c *Client) build(ctx context.Context, req *Request) (*http.Request, error) {
	target := *c.endpoint

	var body io.Reader
	if req.Kind == KindFetchByKey {
		q := target.Query()
		q.Set(queryKey, req.Key)
		target.RawQuery = q.Encode()
	} else {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	return httpReq, nil
}

// redact drops the query so keys are not written to logs verbatim.
func redact(u *url.URL) string {
	if u.RawQuery == "" {
		return u.String()
	}
	clean := *u
	clean.RawQuery = "..."
	return clean.String()
}
