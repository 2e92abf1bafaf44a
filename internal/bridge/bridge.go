// Package bridge serves Fetch-shaped requests through the host router's
// request-simulation path, with no second network stack. An incoming request
// is rewritten below the configured base path, executed against the router
// via an in-memory recorder, and the simulated response is translated back —
// multi-value headers intact and binary payloads byte-faithful. This
// boundary never panics out: any internal failure becomes a generic 500.
package bridge

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/apilink/apilink/pkg/logger"
)

// DefaultBasePath is stripped from incoming URLs before simulation.
const DefaultBasePath = "/api"

const maxBridgeBody = 32 << 20

// noBodyMethods are methods whose request body is never read.
var noBodyMethods = map[string]bool{
	http.MethodGet:  true,
	http.MethodHead: true,
}

// Response is the Fetch-shaped outcome of a bridged dispatch.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config configures a Bridge.
type Config struct {
	// BasePath is the URL prefix stripped before the request reaches the
	// router. Empty means DefaultBasePath.
	BasePath string
	Logger   logger.Logger
}

// Bridge translates between the page-rendering framework's request objects
// and the host router.
type Bridge struct {
	router   http.Handler
	basePath string
	log      logger.Logger
}

// New creates a bridge in front of the given router.
func New(router http.Handler, cfg Config) *Bridge {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Bridge{router: router, basePath: basePath, log: log}
}

// Dispatch executes a Fetch-shaped request against the router and returns
// the translated response. It never returns an error: failures inside the
// boundary are converted to a generic 500 so the hosting process survives.
func (b *Bridge) Dispatch(req *http.Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bridge dispatch panicked", logger.Fields{"panic": r})
			resp = internalErrorResponse()
		}
	}()

	path := strings.TrimPrefix(req.URL.Path, b.basePath)
	if path == "" {
		path = "/"
	}
	target := path
	if req.URL.RawQuery != "" {
		target += "?" + req.URL.RawQuery
	}

	var body io.Reader
	if !noBodyMethods[req.Method] && req.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(req.Body, maxBridgeBody))
		if err != nil {
			b.log.Error("bridge body read failed", logger.Fields{"error": err.Error()})
			return internalErrorResponse()
		}
		body = bytes.NewReader(raw)
	}

	sim := httptest.NewRequest(req.Method, target, body)
	sim = sim.WithContext(req.Context())
	for k, vs := range req.Header {
		for _, v := range vs {
			sim.Header.Add(k, v)
		}
	}

	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, sim)

	return &Response{
		StatusCode: rec.Code,
		Header:     rec.Header().Clone(),
		Body:       rec.Body.Bytes(),
	}
}

// ServeHTTP lets the bridge itself be mounted on a real server under the
// base path: the page framework's catch-all handler shape, served by the
// host router.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := b.Dispatch(r)
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func internalErrorResponse() *Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &Response{
		StatusCode: http.StatusInternalServerError,
		Header:     h,
		Body:       []byte(`{"error":"internal error"}`),
	}
}

// HeaderMap converts a header collection into a plain map: headers that are
// legitimately multi-valued (Set-Cookie) become string slices, everything
// else collapses to a scalar.
func HeaderMap(h http.Header) map[string]interface{} {
	out := make(map[string]interface{}, len(h))
	for k, vs := range h {
		key := strings.ToLower(k)
		if key == "set-cookie" {
			cookies := make([]string, len(vs))
			copy(cookies, vs)
			out[key] = cookies
			continue
		}
		out[key] = strings.Join(vs, ", ")
	}
	return out
}

// FromHeaderMap rebuilds a header collection from a plain map produced by
// HeaderMap.
func FromHeaderMap(m map[string]interface{}) http.Header {
	h := make(http.Header, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case []string:
			for _, item := range val {
				h.Add(k, item)
			}
		case []interface{}:
			for _, item := range val {
				if s, ok := item.(string); ok {
					h.Add(k, s)
				}
			}
		case string:
			h.Add(k, val)
		}
	}
	return h
}
