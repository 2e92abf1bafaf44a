package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listKey(t *testing.T, resource string) string {
	t.Helper()
	key, err := EncodeKey(KeyParts{Resource: resource, Operation: "list", Method: "GET"})
	require.NoError(t, err)
	return key
}

func TestFetchQueryStoresSuccess(t *testing.T) {
	e := New(Options{})
	key := listKey(t, "projects")

	val, err := e.FetchQuery(context.Background(), key, func(ctx context.Context) (interface{}, error) {
		return []string{"p1", "p2"}, nil
	}, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, val)

	st := e.State(key)
	assert.Equal(t, StatusSuccess, st.Status)
	assert.Equal(t, []string{"p1", "p2"}, st.Data)
	assert.False(t, st.UpdatedAt.IsZero())
	assert.False(t, st.InFlight)
}

func TestFetchQueryDeduplicatesConcurrentCallers(t *testing.T) {
	e := New(Options{})
	key := listKey(t, "projects")

	var calls int32
	release := make(chan struct{})
	started := make(chan struct{})

	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return "value", nil
	}

	results := make(chan interface{}, 2)
	go func() {
		v, _ := e.FetchQuery(context.Background(), key, fetch, FetchOptions{})
		results <- v
	}()
	<-started

	// Second caller arrives while the first fetch is in flight; it must join
	// the same flight, not start a second fetch.
	go func() {
		v, _ := e.FetchQuery(context.Background(), key, func(ctx context.Context) (interface{}, error) {
			t.Error("second fetcher must never run")
			return nil, nil
		}, FetchOptions{})
		results <- v
	}()

	// Give the second caller time to reach the flight wait.
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		assert.Equal(t, "value", <-results)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchQueryStaleTime(t *testing.T) {
	now := time.Unix(1000, 0)
	e := New(Options{Clock: func() time.Time { return now }})
	key := listKey(t, "projects")

	var calls int
	fetch := func(ctx context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	_, err := e.FetchQuery(context.Background(), key, fetch, FetchOptions{StaleTime: time.Minute})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// Within the stale window: served from cache, no fetch.
	now = now.Add(30 * time.Second)
	val, err := e.FetchQuery(context.Background(), key, fetch, FetchOptions{StaleTime: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 1, val)
	assert.Equal(t, 1, calls)

	// At the boundary: stale again.
	now = now.Add(30 * time.Second)
	val, err = e.FetchQuery(context.Background(), key, fetch, FetchOptions{StaleTime: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 2, val)
	assert.Equal(t, 2, calls)
}

func TestFetchQueryZeroStaleTimeAlwaysFetches(t *testing.T) {
	e := New(Options{})
	key := listKey(t, "projects")

	var calls int
	fetch := func(ctx context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	for i := 0; i < 3; i++ {
		_, err := e.FetchQuery(context.Background(), key, fetch, FetchOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestFetchQueryErrorRetainsPreviousData(t *testing.T) {
	e := New(Options{})
	key := listKey(t, "projects")

	_, err := e.FetchQuery(context.Background(), key, func(ctx context.Context) (interface{}, error) {
		return "good", nil
	}, FetchOptions{})
	require.NoError(t, err)

	boom := errors.New("backend down")
	_, err = e.FetchQuery(context.Background(), key, func(ctx context.Context) (interface{}, error) {
		return nil, boom
	}, FetchOptions{})
	require.ErrorIs(t, err, boom)

	st := e.State(key)
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, "good", st.Data, "previous data must survive a failed refetch")
	assert.Equal(t, boom, st.Err)
}

func TestFetchQueryStatusTransitions(t *testing.T) {
	e := New(Options{})
	key := listKey(t, "health")

	var mu sync.Mutex
	var seen []Status
	unsubscribe := e.Subscribe(key, func() {
		mu.Lock()
		seen = append(seen, e.State(key).Status)
		mu.Unlock()
	})
	defer unsubscribe()

	require.Equal(t, StatusIdle, e.State(key).Status)

	_, err := e.FetchQuery(context.Background(), key, func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	}, FetchOptions{})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Status{StatusLoading, StatusSuccess}, seen)
}

func TestSubscribeMultipleAndUnsubscribe(t *testing.T) {
	e := New(Options{})
	key := listKey(t, "projects")

	var a, b int
	unsubA := e.Subscribe(key, func() { a++ })
	unsubB := e.Subscribe(key, func() { b++ })

	e.SetData(key, "v1")
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)

	unsubA()
	e.SetData(key, "v2")
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)

	// Removing the last listener frees the set but keeps the entry.
	unsubB()
	assert.Equal(t, "v2", e.Data(key))
}

func TestPanickingListenerDoesNotAbortFetch(t *testing.T) {
	e := New(Options{})
	key := listKey(t, "projects")

	e.Subscribe(key, func() { panic("listener bug") })

	val, err := e.FetchQuery(context.Background(), key, func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	}, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, StatusSuccess, e.State(key).Status)
}

func TestInvalidateByResource(t *testing.T) {
	e := New(Options{})
	projects := listKey(t, "projects")
	tasks := listKey(t, "tasks")
	e.SetData(projects, "p")
	e.SetData(tasks, "t")

	var notified int
	e.Subscribe(projects, func() { notified++ })

	deleted := e.Invalidate(MatchResource("projects"))
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, notified, "deleted key's subscribers notified exactly once")

	assert.Equal(t, StatusIdle, e.State(projects).Status)
	assert.Equal(t, "t", e.Data(tasks), "other resources untouched")
}

func TestInvalidateFilters(t *testing.T) {
	e := New(Options{})
	k1 := listKey(t, "projects")
	k2 := listKey(t, "tasks")
	e.SetData(k1, 1)
	e.SetData(k2, 2)

	assert.Equal(t, 1, e.Invalidate(MatchKey(k1)))
	assert.Equal(t, 1, e.Invalidate(&Filter{Predicate: func(key string) bool {
		parts, err := DecodeKey(key)
		return err == nil && parts.Resource == "tasks"
	}}))

	e.SetData(k1, 1)
	e.SetData(k2, 2)
	// Nil filter clears everything.
	assert.Equal(t, 2, e.Invalidate(nil))
	assert.Empty(t, e.Keys())
}

func TestClearDropsEntriesAndSubscriptions(t *testing.T) {
	e := New(Options{})
	key := listKey(t, "projects")
	e.SetData(key, "v")

	var notified int
	e.Subscribe(key, func() { notified++ })
	notified = 0

	e.Clear()
	assert.Empty(t, e.Keys())

	// Subscription is gone: further writes notify nobody.
	e.SetData(key, "v2")
	assert.Equal(t, 0, notified)
}

func TestSetStatusForcesRefetchSemantics(t *testing.T) {
	e := New(Options{})
	key := listKey(t, "projects")
	e.SetData(key, "v")

	e.SetStatus(key, StatusIdle)
	st := e.State(key)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Equal(t, "v", st.Data, "SetStatus must not touch data")
}
