// Package route defines the static description of an HTTP operation — the
// route declaration — together with the contracts shared by every invocation
// engine: the handler signature, the reply capability, and the uniform
// response envelope. A Registry of declarations is the single source both for
// mounting routes onto the host router and for generating typed clients.
package route

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/apilink/apilink/pkg/logger"
)

// Supported HTTP methods.
const (
	MethodGet     = "GET"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodHead    = "HEAD"
	MethodOptions = "OPTIONS"
)

var validMethods = map[string]bool{
	MethodGet:     true,
	MethodPost:    true,
	MethodPut:     true,
	MethodPatch:   true,
	MethodDelete:  true,
	MethodHead:    true,
	MethodOptions: true,
}

// bodyMethods is the set of methods for which a request body is sent.
var bodyMethods = map[string]bool{
	MethodPost:    true,
	MethodPut:     true,
	MethodPatch:   true,
	MethodDelete:  true,
	MethodOptions: true,
}

// Field describes a single schema field.
type Field struct {
	Type        string `yaml:"type" json:"type"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Response describes the shape returned for one status code.
type Response struct {
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      map[string]Field `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Schema holds the per-field descriptors for a route's inputs and its
// response shapes keyed by status code. Status code 0 acts as the default
// response descriptor.
type Schema struct {
	Body      map[string]Field `yaml:"body,omitempty" json:"body,omitempty"`
	Query     map[string]Field `yaml:"query,omitempty" json:"query,omitempty"`
	Params    map[string]Field `yaml:"params,omitempty" json:"params,omitempty"`
	Headers   map[string]Field `yaml:"headers,omitempty" json:"headers,omitempty"`
	Responses map[int]Response `yaml:"responses,omitempty" json:"responses,omitempty"`
}

// ResponseFor returns the response descriptor for the given status code,
// falling back to the default descriptor when none is declared for it.
func (s Schema) ResponseFor(status int) (Response, bool) {
	if r, ok := s.Responses[status]; ok {
		return r, true
	}
	r, ok := s.Responses[0]
	return r, ok
}

// Handler is the function bound to a route declaration. It may either call
// reply.Send explicitly or return the payload; in the latter case the status
// defaults to 200. Errors propagate unchanged to the invoking engine.
type Handler func(req *Request, reply Reply) (interface{}, error)

// Request is the request value a handler receives. Both invocation engines
// produce the same shape: the in-process engine synthesizes it from call
// options, the host-router adapter translates it from *http.Request.
type Request struct {
	Context context.Context
	Method  string
	URL     string
	Params  map[string]string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
	Log     logger.Logger
	ID      string
}

// Reply is the reply capability handed to handlers. All mutators return the
// receiver so calls chain. Implementations record state; whether anything is
// written to a socket is the engine's concern.
type Reply interface {
	// Code sets the response status code.
	Code(status int) Reply
	// Status is an alias for Code.
	Status(status int) Reply
	// Header sets a response header.
	Header(key, value string) Reply
	// Type sets the Content-Type header.
	Type(contentType string) Reply
	// Send records the response payload and marks the reply as sent.
	Send(payload interface{})
}

// Envelope is the only shape ever returned to a caller, regardless of which
// engine served the call.
type Envelope struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Data       interface{}       `json:"data"`
}

// CallOptions carries the arguments of a single invocation.
type CallOptions struct {
	Params  map[string]string
	Query   url.Values
	Body    interface{}
	Headers map[string]string

	// Extra feeds the cache key only; it never reaches the wire. Callers use
	// it to fence otherwise-identical requests into distinct cache entries.
	Extra interface{}
}

// Route is an immutable route declaration.
type Route struct {
	Method    string
	Path      string
	Resource  string
	Operation string
	Schema    Schema
	Handler   Handler
}

// Validate checks the declaration is well formed.
func (r *Route) Validate() error {
	if !validMethods[r.Method] {
		return fmt.Errorf("route %s.%s: unsupported method %q", r.Resource, r.Operation, r.Method)
	}
	if !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("route %s.%s: path %q must start with /", r.Resource, r.Operation, r.Path)
	}
	if r.Resource == "" || r.Operation == "" {
		return fmt.Errorf("route %s %s: resource and operation are required", r.Method, r.Path)
	}
	if r.Handler == nil {
		return fmt.Errorf("route %s.%s: handler is required", r.Resource, r.Operation)
	}
	return nil
}

// IsRead reports whether the route uses a read-only method. Read routes get
// the query-style accessor on generated clients; everything else mutates.
func (r *Route) IsRead() bool {
	return r.Method == MethodGet || r.Method == MethodHead
}

// HasBody reports whether the route's method carries a request body.
func (r *Route) HasBody() bool {
	return bodyMethods[r.Method]
}

// Name returns the resource.operation identifier.
func (r *Route) Name() string {
	return r.Resource + "." + r.Operation
}
