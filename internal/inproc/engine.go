// Package inproc executes a route's handler directly, with no socket in
// between. It is the transport used when "server-side" routes are called
// while rendering on the same process: a minimal request value is
// synthesized, a capture-style reply records what the handler does, and the
// outcome is normalized into the same response envelope the HTTP transport
// produces.
package inproc

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/apilink/apilink/internal/route"
	"github.com/apilink/apilink/pkg/logger"
)

// Engine invokes handlers in-process.
type Engine struct {
	log logger.Logger
}

// New creates an engine. The logger is what synthesized requests carry;
// nil means logger.Nop so handlers that log never crash.
func New(log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{log: log}
}

// captureReply implements route.Reply by recording state. Nothing is
// written anywhere until the engine reads the recorded fields back.
type captureReply struct {
	statusCode int
	headers    map[string]string
	payload    interface{}
	sent       bool
}

func newCaptureReply() *captureReply {
	return &captureReply{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (r *captureReply) Code(status int) route.Reply {
	r.statusCode = status
	return r
}

func (r *captureReply) Status(status int) route.Reply {
	return r.Code(status)
}

func (r *captureReply) Header(key, value string) route.Reply {
	r.headers[strings.ToLower(key)] = value
	return r
}

func (r *captureReply) Type(contentType string) route.Reply {
	return r.Header("content-type", contentType)
}

func (r *captureReply) Send(payload interface{}) {
	r.payload = payload
	r.sent = true
}

// Invoke executes the route's handler with the given call arguments and
// normalizes the outcome into a response envelope. A handler error
// propagates unchanged: no retry, no status-code translation — the caller
// owns recovery.
func (e *Engine) Invoke(ctx context.Context, rt *route.Route, opts route.CallOptions) (*route.Envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	params := opts.Params
	if params == nil {
		params = make(map[string]string)
	}
	query := opts.Query
	if query == nil {
		query = make(url.Values)
	}
	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[strings.ToLower(k)] = v
	}

	req := &route.Request{
		Context: ctx,
		Method:  rt.Method,
		// The declared path, unsubstituted; params stay reachable via Params.
		URL:     rt.Path,
		Params:  params,
		Query:   query,
		Body:    opts.Body,
		Headers: headers,
		Log:     e.log,
		ID:      uuid.New().String(),
	}

	reply := newCaptureReply()
	result, err := rt.Handler(req, reply)
	if err != nil {
		return nil, err
	}

	env := &route.Envelope{
		StatusCode: reply.statusCode,
		Headers:    reply.headers,
	}
	if reply.sent {
		env.Data = reply.payload
	} else {
		env.Data = result
	}
	return env, nil
}
