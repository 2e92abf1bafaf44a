// Package transport performs a declared operation over a real network
// boundary. It builds the request URL from the route's path and call
// arguments, issues a fetch, and normalizes the response into the same
// envelope the in-process engine produces, so callers cannot tell the two
// transports apart.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/apilink/apilink/internal/metrics"
	"github.com/apilink/apilink/internal/route"
	"github.com/apilink/apilink/pkg/logger"
)

// maxResponseBody caps how much of a response is read into memory.
const maxResponseBody = 8 << 20

// ClientError carries the full response envelope of a failed call so callers
// can branch on status and inspect the body without re-parsing.
type ClientError struct {
	Envelope *route.Envelope
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.Envelope.StatusCode)
}

// TokenSource supplies a bearer token attached to outgoing requests.
type TokenSource func() (string, error)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the underlying client; nil builds one from Timeout.
	HTTPClient *http.Client
	// TokenSource, when set, attaches Authorization: Bearer tokens.
	TokenSource TokenSource
	Logger      logger.Logger
}

// Client is the HTTP invocation engine.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	tokenSource TokenSource
	log         logger.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		tokenSource: cfg.TokenSource,
		log:         log,
	}
}

// SubstitutePath replaces each :name segment with the URL-encoded value from
// params. Unmatched placeholders are left untouched rather than rejected.
func SubstitutePath(path string, params map[string]string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		name := seg[1:]
		if val, ok := params[name]; ok {
			segments[i] = url.PathEscape(val)
		}
	}
	return strings.Join(segments, "/")
}

// EncodeQuery serializes values into a query string, dropping keys with no
// values and repeating the key for multi-value entries.
func EncodeQuery(values url.Values) string {
	filtered := make(url.Values, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		filtered[k] = vs
	}
	return filtered.Encode()
}

// Invoke performs the route's operation over HTTP and normalizes the
// response. Non-2xx/3xx statuses yield a *ClientError carrying the full
// envelope; network-level failures propagate as the underlying error.
func (c *Client) Invoke(ctx context.Context, rt *route.Route, opts route.CallOptions) (*route.Envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	target := c.baseURL + SubstitutePath(rt.Path, opts.Params)
	if qs := EncodeQuery(opts.Query); qs != "" {
		target += "?" + qs
	}

	var bodyReader io.Reader
	sendJSON := false
	if rt.HasBody() && opts.Body != nil {
		raw, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
		sendJSON = true
	}

	req, err := http.NewRequestWithContext(ctx, rt.Method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if sendJSON && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", uuid.New().String())
	}
	if c.tokenSource != nil && req.Header.Get("Authorization") == "" {
		token, tokenErr := c.tokenSource()
		if tokenErr != nil {
			return nil, fmt.Errorf("generate auth token: %w", tokenErr)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveClientRequest(rt.Method, rt.Name(), 0, time.Since(start))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	env := &route.Envelope{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Data:       decodeBody(resp.Header.Get("Content-Type"), raw),
	}
	metrics.ObserveClientRequest(rt.Method, rt.Name(), resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		c.log.Warn("operation call failed", logger.Fields{
			"operation": rt.Name(),
			"status":    resp.StatusCode,
		})
		return nil, &ClientError{Envelope: env}
	}
	return env, nil
}

// decodeBody classifies the payload by content type. JSON bodies are parsed,
// with a parse failure yielding nil rather than an error; everything else is
// text, or nil when empty.
func decodeBody(contentType string, raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	if strings.Contains(contentType, "application/json") {
		var data interface{}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil
		}
		return data
	}
	return string(raw)
}

// flattenHeaders collects response headers into a map with case-folded keys.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	return out
}
