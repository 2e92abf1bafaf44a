// Package client generates the resource.operation access surface from a
// route registry. Every operation is bound to one invoker — the in-process
// engine or the HTTP transport — and callers cannot tell which one serves a
// given call. Cache-bound generation additionally threads reads through the
// query cache engine and exposes its state flags; cache-less generation
// calls the invoker directly, which is what server-rendered reads use.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apilink/apilink/internal/querycache"
	"github.com/apilink/apilink/internal/route"
)

var (
	// ErrNotQueryable is returned when Query is called on a non-read route.
	ErrNotQueryable = errors.New("operation is not queryable")
	// ErrNotMutable is returned when Mutate is called on a read route.
	ErrNotMutable = errors.New("operation is not mutable")
	// ErrUnknownOperation is returned for names absent from the registry.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrNoCache is returned for cache-only calls on a cache-less client.
	ErrNoCache = errors.New("client generated without a cache")
)

// Invoker executes a route declaration with call arguments. Both invocation
// engines implement it.
type Invoker interface {
	Invoke(ctx context.Context, rt *route.Route, opts route.CallOptions) (*route.Envelope, error)
}

// Options configure client generation.
type Options struct {
	Invoker Invoker
	// Cache enables read caching and mutation-driven invalidation. Nil
	// generates a direct client with no caching attached.
	Cache *querycache.Engine
}

// Client is the generated resource.operation surface.
type Client struct {
	resources map[string]map[string]*Operation
	cache     *querycache.Engine
}

// New walks the registry and builds an operation descriptor for every
// declaration, bound to the given invoker.
func New(reg *route.Registry, opts Options) (*Client, error) {
	if opts.Invoker == nil {
		return nil, errors.New("client: invoker is required")
	}

	c := &Client{
		resources: make(map[string]map[string]*Operation),
		cache:     opts.Cache,
	}
	for resource, ops := range reg.ByResource() {
		group := make(map[string]*Operation, len(ops))
		for name, rt := range ops {
			group[name] = &Operation{
				route:   rt,
				invoker: opts.Invoker,
				cache:   opts.Cache,
			}
		}
		c.resources[resource] = group
	}
	return c, nil
}

// Operation returns the descriptor for resource.operation.
func (c *Client) Operation(resource, operation string) (*Operation, error) {
	ops, ok := c.resources[resource]
	if !ok {
		return nil, fmt.Errorf("%w: resource %q", ErrUnknownOperation, resource)
	}
	op, ok := ops[operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, resource, operation)
	}
	return op, nil
}

// Resources lists the resource names of the generated surface.
func (c *Client) Resources() []string {
	out := make([]string, 0, len(c.resources))
	for name := range c.resources {
		out = append(out, name)
	}
	return out
}

// Cache returns the attached cache engine, or nil.
func (c *Client) Cache() *querycache.Engine { return c.cache }

// Operation is the generated descriptor for one declaration. It is stateless
// beyond closing over the route, the invoker and the cache.
type Operation struct {
	route   *route.Route
	invoker Invoker
	cache   *querycache.Engine
}

// Route returns the underlying declaration.
func (op *Operation) Route() *route.Route { return op.route }

// Key computes the deterministic cache identity for the given arguments.
func (op *Operation) Key(opts route.CallOptions) (string, error) {
	return querycache.EncodeKey(querycache.KeyParts{
		Resource:  op.route.Resource,
		Operation: op.route.Operation,
		Method:    op.route.Method,
		Params:    opts.Params,
		Query:     opts.Query,
		Body:      opts.Body,
		Extra:     opts.Extra,
	})
}

// Request invokes the operation directly, regardless of method class.
func (op *Operation) Request(ctx context.Context, opts route.CallOptions) (*route.Envelope, error) {
	return op.invoker.Invoke(ctx, op.route, opts)
}

// QueryOptions are the arguments of a read call.
type QueryOptions struct {
	route.CallOptions
	// StaleTime is how long a prior successful read stays fresh.
	StaleTime time.Duration
}

// QueryResult is the outcome of a read call. The flags are derived purely
// from the cache entry's status; on a cache-less client a completed read
// reports success.
type QueryResult struct {
	Key  string
	Data interface{}
	Err  error

	IsIdle     bool
	IsLoading  bool
	IsFetching bool
	IsSuccess  bool
	IsError    bool
}

// Query performs a read. Only GET and HEAD routes expose it. With a cache
// attached the read runs through FetchQuery: concurrent identical reads are
// de-duplicated and fresh entries short-circuit. A fetch failure is both
// returned and reflected in the flags, with the last good data retained.
func (op *Operation) Query(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	if !op.route.IsRead() {
		return nil, fmt.Errorf("%w: %s uses %s", ErrNotQueryable, op.route.Name(), op.route.Method)
	}

	if op.cache == nil {
		env, err := op.invoker.Invoke(ctx, op.route, opts.CallOptions)
		if err != nil {
			return &QueryResult{Err: err, IsError: true}, err
		}
		return &QueryResult{Data: env.Data, IsSuccess: true}, nil
	}

	key, err := op.Key(opts.CallOptions)
	if err != nil {
		return nil, err
	}

	data, err := op.cache.FetchQuery(ctx, key, func(ctx context.Context) (interface{}, error) {
		env, invokeErr := op.invoker.Invoke(ctx, op.route, opts.CallOptions)
		if invokeErr != nil {
			return nil, invokeErr
		}
		return env.Data, nil
	}, querycache.FetchOptions{StaleTime: opts.StaleTime})

	state := op.cache.State(key)
	res := &QueryResult{
		Key:        key,
		Data:       state.Data,
		Err:        state.Err,
		IsIdle:     state.Status == querycache.StatusIdle,
		IsLoading:  state.Status == querycache.StatusLoading,
		IsFetching: state.InFlight,
		IsSuccess:  state.Status == querycache.StatusSuccess,
		IsError:    state.Status == querycache.StatusError,
	}
	if err == nil {
		res.Data = data
	}
	return res, err
}

// MutateOptions are the arguments of a write call.
type MutateOptions struct {
	route.CallOptions
	// Invalidate is applied to the cache after a successful mutation so
	// dependent reads refetch. Nil leaves the cache untouched.
	Invalidate *querycache.Filter
}

// Mutate performs a write. Read routes reject it. On success the declared
// invalidation filter is applied; on failure the caller decides recovery.
func (op *Operation) Mutate(ctx context.Context, opts MutateOptions) (*route.Envelope, error) {
	if op.route.IsRead() {
		return nil, fmt.Errorf("%w: %s uses %s", ErrNotMutable, op.route.Name(), op.route.Method)
	}

	env, err := op.invoker.Invoke(ctx, op.route, opts.CallOptions)
	if err != nil {
		return nil, err
	}
	if op.cache != nil && opts.Invalidate != nil {
		op.cache.Invalidate(opts.Invalidate)
	}
	return env, nil
}

// Subscribe registers a listener for state transitions of the cache entry
// addressed by the given arguments.
func (op *Operation) Subscribe(opts route.CallOptions, listener func()) (func(), error) {
	if op.cache == nil {
		return nil, ErrNoCache
	}
	key, err := op.Key(opts)
	if err != nil {
		return nil, err
	}
	return op.cache.Subscribe(key, listener), nil
}
