package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/resilience"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	fail error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	v, ok := s.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() *executor.Result {
	return &executor.Result{
		Query:     "fox",
		Model:     "bm25(k1=1.2,b=0.75,k3=0)",
		Parsed:    "#SUM( fox.body )",
		TotalHits: 1,
		Results:   []ranker.ScoredDoc{{DocID: 0, ExternalID: "doc-1", Score: 0.25}},
	}
}

func TestKeyDependsOnModelTreeAndLimit(t *testing.T) {
	base := Key("bm25(k1=1.2,b=0.75,k3=0)", "#SUM( fox.body )", 10)
	assert.True(t, strings.HasPrefix(base, keyPrefix))
	assert.Equal(t, base, Key("bm25(k1=1.2,b=0.75,k3=0)", "#SUM( fox.body )", 10))
	assert.NotEqual(t, base, Key("bm25(k1=1.5,b=0.75,k3=0)", "#SUM( fox.body )", 10))
	assert.NotEqual(t, base, Key("bm25(k1=1.2,b=0.75,k3=0)", "#SUM( fox.title )", 10))
	assert.NotEqual(t, base, Key("bm25(k1=1.2,b=0.75,k3=0)", "#SUM( fox.body )", 20))
}

func TestGetOrComputeCachesResult(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	key := Key("bm25", "#SUM( fox.body )", 10)
	calls := 0
	compute := func(context.Context) (*executor.Result, error) {
		calls++
		return sampleResult(), nil
	}

	first, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Minute, store.ttls[key])

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	key := Key("bm25", "#SUM( fox.body )", 10)
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(context.Background(), key, func(context.Context) (*executor.Result, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestGetOrComputeCollapsesConcurrentCalls(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	key := Key("indri", "#AND( fox.body )", 5)
	release := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), key, func(context.Context) (*executor.Result, error) {
				calls.Add(1)
				<-release
				return sampleResult(), nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	_, ok := c.Get(context.Background(), key)
	assert.True(t, ok)
}

type requestKey struct{}

func TestGetOrComputeSurvivesLeaderCancellation(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	key := Key("bm25", "#SUM( fox.body )", 10)

	leaderCtx, cancel := context.WithCancel(context.WithValue(context.Background(), requestKey{}, "q-1"))
	cancel()

	var sawErr error
	var sawID interface{}
	result, hit, err := c.GetOrCompute(leaderCtx, key, func(ctx context.Context) (*executor.Result, error) {
		sawErr = ctx.Err()
		sawID = ctx.Value(requestKey{})
		return sampleResult(), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, sampleResult(), result)
	assert.NoError(t, sawErr)
	assert.Equal(t, "q-1", sawID)

	_, ok := c.Get(context.Background(), key)
	assert.True(t, ok)
}

func TestGetOrComputeFollowerUnaffectedByLeaderCancel(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	key := Key("indri", "#AND( fox.body )", 10)
	started := make(chan struct{})
	release := make(chan struct{})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaderCtx, key, func(ctx context.Context) (*executor.Result, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return sampleResult(), nil
		})
		leaderDone <- err
	}()
	<-started

	followerDone := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(context.Background(), key, func(context.Context) (*executor.Result, error) {
			return sampleResult(), nil
		})
		followerDone <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)

	assert.NoError(t, <-leaderDone)
	assert.NoError(t, <-followerDone)
}

func TestStoreFailureIsAMiss(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection refused")
	c := New(store, time.Minute, nil)

	_, ok := c.Get(context.Background(), Key("bm25", "x", 1))
	assert.False(t, ok)
	_, misses := c.Stats()
	assert.Equal(t, int64(1), misses)
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["other:key"] = "keep"
	c := New(store, time.Minute, nil)
	key := Key("bm25", "#SUM( fox.body )", 10)
	c.Set(context.Background(), key, sampleResult())

	require.NoError(t, c.Invalidate(context.Background()))
	_, ok := c.Get(context.Background(), key)
	assert.False(t, ok)
	assert.Equal(t, "keep", store.data["other:key"])
}

func TestGuardOpensOnStoreFailures(t *testing.T) {
	store := newMemStore()
	guarded := Guard(store, resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	c := New(guarded, time.Minute, nil)
	key := Key("bm25", "#SUM( fox.body )", 10)

	// Misses never trip the breaker.
	for i := 0; i < 5; i++ {
		_, ok := c.Get(context.Background(), key)
		assert.False(t, ok)
	}
	c.Set(context.Background(), key, sampleResult())
	_, ok := c.Get(context.Background(), key)
	assert.True(t, ok)

	store.mu.Lock()
	store.fail = errors.New("connection refused")
	store.mu.Unlock()
	c.Get(context.Background(), key)
	c.Get(context.Background(), key)

	_, err := guarded.Get(context.Background(), key)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}
