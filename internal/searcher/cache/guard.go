package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/structured-query-eval/pkg/resilience"
)

// guardedStore routes every call through a circuit breaker so that an
// unreachable Redis costs one fast failure instead of a dial timeout per
// query. Missing keys do not count as failures.
type guardedStore struct {
	next Store
	cb   *resilience.CircuitBreaker
}

// Guard wraps store with a circuit breaker.
func Guard(store Store, cfg resilience.CircuitBreakerConfig) Store {
	cfg.IsFailure = func(err error) bool { return !pkgredis.IsNilError(err) }
	return &guardedStore{next: store, cb: resilience.NewCircuitBreaker("result-cache", cfg)}
}

func (g *guardedStore) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := g.cb.Execute(func() error {
		var err error
		val, err = g.next.Get(ctx, key)
		return err
	})
	return val, err
}

func (g *guardedStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return g.cb.Execute(func() error { return g.next.Set(ctx, key, value, ttl) })
}

func (g *guardedStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := g.cb.Execute(func() error {
		var err error
		n, err = g.next.FlushByPattern(ctx, pattern)
		return err
	})
	return n, err
}
