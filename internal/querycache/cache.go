// Package querycache implements the client-side response cache: a keyed
// store of request states with subscriptions, de-duplication of concurrent
// identical fetches, staleness control and filtered invalidation. It is
// framework-agnostic; UI-binding layers consume it through the generated
// client. One engine instance is constructed per application root and
// threaded through explicitly — there is no package-level singleton.
package querycache

import (
	"context"
	"sync"
	"time"
)

// Status is the lifecycle state of a cache entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// EntryState is a point-in-time snapshot of one cache entry.
type EntryState struct {
	Status    Status
	Data      interface{}
	Err       error
	UpdatedAt time.Time
	// InFlight reports whether a fetch for this key is currently running.
	InFlight bool
}

// FetchFunc produces the value for a cache key. It is invoked at most once
// per in-flight window regardless of how many callers ask concurrently.
type FetchFunc func(ctx context.Context) (interface{}, error)

// FetchOptions tune a single FetchQuery call.
type FetchOptions struct {
	// StaleTime is how long a successful result stays fresh. Zero means a
	// successful entry is never served from cache without refetching.
	StaleTime time.Duration
}

// Recorder receives cache behavior events for instrumentation. All methods
// must be non-blocking.
type Recorder interface {
	CacheHit()
	CacheMiss()
	FetchDone(err bool)
}

// Options configure an Engine.
type Options struct {
	// Clock overrides time.Now, used by staleness checks. Nil means time.Now.
	Clock func() time.Time
	// Recorder receives hit/miss/fetch events. Nil disables recording.
	Recorder Recorder
}

// flight is one in-flight fetch. Concurrent callers for the same key all
// wait on the same flight and observe the same outcome.
type flight struct {
	done chan struct{}
	val  interface{}
	err  error
}

type entry struct {
	status    Status
	data      interface{}
	err       error
	updatedAt time.Time
	flight    *flight
}

// Engine owns the cache-entry lifecycle and guarantees at most one in-flight
// fetch per key.
type Engine struct {
	mu      sync.Mutex
	entries map[string]*entry
	subs    map[string]map[int]func()
	nextSub int

	now      func() time.Time
	recorder Recorder
}

// New creates an engine.
func New(opts Options) *Engine {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		entries:  make(map[string]*entry),
		subs:     make(map[string]map[int]func()),
		now:      now,
		recorder: opts.Recorder,
	}
}

func (e *Engine) ensureLocked(key string) *entry {
	ent, ok := e.entries[key]
	if !ok {
		ent = &entry{status: StatusIdle}
		e.entries[key] = ent
	}
	return ent
}

func (e *Engine) listenersLocked(key string) []func() {
	set := e.subs[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]func(), 0, len(set))
	for _, fn := range set {
		out = append(out, fn)
	}
	return out
}

// notify runs listeners outside the engine lock. A panicking listener must
// not abort the fetch it was notified about.
func notify(listeners []func()) {
	for _, fn := range listeners {
		func() {
			defer func() { _ = recover() }()
			fn()
		}()
	}
}

// State returns a snapshot of the entry for key. Unknown keys read as idle.
func (e *Engine) State(key string) EntryState {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[key]
	if !ok {
		return EntryState{Status: StatusIdle}
	}
	return EntryState{
		Status:    ent.status,
		Data:      ent.data,
		Err:       ent.err,
		UpdatedAt: ent.updatedAt,
		InFlight:  ent.flight != nil,
	}
}

// Data returns the last known good value for key, or nil.
func (e *Engine) Data(key string) interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ent, ok := e.entries[key]; ok {
		return ent.data
	}
	return nil
}

// SetData writes a value directly, bypassing any fetch, and marks the entry
// successful as of now. Subscribers are notified.
func (e *Engine) SetData(key string, value interface{}) {
	e.mu.Lock()
	ent := e.ensureLocked(key)
	ent.status = StatusSuccess
	ent.data = value
	ent.err = nil
	ent.updatedAt = e.now()
	listeners := e.listenersLocked(key)
	e.mu.Unlock()

	notify(listeners)
}

// SetStatus overrides the status of an entry without touching its data.
// Seeding an entry back to idle forces the next read to fetch.
func (e *Engine) SetStatus(key string, status Status) {
	e.mu.Lock()
	ent := e.ensureLocked(key)
	ent.status = status
	listeners := e.listenersLocked(key)
	e.mu.Unlock()

	notify(listeners)
}

// FetchQuery returns the cached value for key when it is still fresh,
// joins an already in-flight fetch when one exists, and otherwise runs the
// fetcher, transitioning the entry idle/success/error -> loading -> outcome.
// Previous data is retained while loading and on error. The check for an
// existing flight and the creation of a new one happen in one critical
// section, so concurrent callers in the same tick never start two fetches.
func (e *Engine) FetchQuery(ctx context.Context, key string, fetch FetchFunc, opts FetchOptions) (interface{}, error) {
	e.mu.Lock()
	ent := e.ensureLocked(key)

	// Only success entries short-circuit; a loading entry whose previous data
	// is still fresh always joins or starts a fetch.
	if ent.status == StatusSuccess && opts.StaleTime > 0 && e.now().Sub(ent.updatedAt) < opts.StaleTime {
		data := ent.data
		e.mu.Unlock()
		if e.recorder != nil {
			e.recorder.CacheHit()
		}
		return data, nil
	}

	if ent.flight != nil {
		fl := ent.flight
		e.mu.Unlock()
		<-fl.done
		return fl.val, fl.err
	}

	fl := &flight{done: make(chan struct{})}
	ent.flight = fl
	ent.status = StatusLoading
	ent.err = nil
	listeners := e.listenersLocked(key)
	e.mu.Unlock()

	if e.recorder != nil {
		e.recorder.CacheMiss()
	}
	notify(listeners)

	// There is no cancellation: the fetch runs to completion and its result
	// is written even if nobody is interested anymore.
	val, err := fetch(ctx)
	fl.val, fl.err = val, err

	e.mu.Lock()
	ent = e.ensureLocked(key)
	// If the entry was invalidated mid-flight and a newer fetch already took
	// its place, leave that flight alone; waiters on ours still get the
	// result through the flight itself.
	if ent.flight == fl || ent.flight == nil {
		ent.flight = nil
		if err != nil {
			ent.status = StatusError
			ent.err = err
		} else {
			ent.status = StatusSuccess
			ent.data = val
			ent.err = nil
			ent.updatedAt = e.now()
		}
	}
	listeners = e.listenersLocked(key)
	e.mu.Unlock()

	close(fl.done)
	if e.recorder != nil {
		e.recorder.FetchDone(err != nil)
	}
	notify(listeners)

	return val, err
}

// Subscribe registers a listener invoked on every state transition for key.
// The returned function removes the listener; removing the last listener for
// a key frees the listener set but keeps the cache entry.
func (e *Engine) Subscribe(key string, listener func()) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++

	set, ok := e.subs[key]
	if !ok {
		set = make(map[int]func())
		e.subs[key] = set
	}
	set[id] = listener

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if set, ok := e.subs[key]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(e.subs, key)
			}
		}
	}
}

// Invalidate deletes every entry matching the filter and notifies each
// deleted key's subscribers once, so dependent readers refetch on next read.
// A nil filter clears everything. It returns the number of deleted entries.
func (e *Engine) Invalidate(f *Filter) int {
	e.mu.Lock()
	type victim struct {
		listeners []func()
	}
	victims := make([]victim, 0)
	for key := range e.entries {
		if f.matches(key) {
			victims = append(victims, victim{listeners: e.listenersLocked(key)})
			delete(e.entries, key)
		}
	}
	e.mu.Unlock()

	for _, v := range victims {
		notify(v.listeners)
	}
	return len(victims)
}

// Clear drops all entries and all subscriptions unconditionally.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = make(map[string]*entry)
	e.subs = make(map[string]map[int]func())
}

// Keys returns the currently cached keys, in no particular order.
func (e *Engine) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.entries))
	for k := range e.entries {
		out = append(out, k)
	}
	return out
}
