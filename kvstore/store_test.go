package kvstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-sso-server/internal/observability"
	"github.com/jrsteele09/go-sso-server/kvstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type storeFixture struct {
	store   kvstore.Store
	advance func(d time.Duration)
}

func newRedisClientForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, client
}

func fixtures(t *testing.T) map[string]func() storeFixture {
	return map[string]func() storeFixture{
		"redis": func() storeFixture {
			server, client := newRedisClientForTest(t)
			return storeFixture{
				store:   kvstore.NewRedisStore(client, "test:"),
				advance: server.FastForward,
			}
		},
		"memory": func() storeFixture {
			now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
			var mu sync.Mutex
			store := kvstore.NewMemoryStore().WithClock(func() time.Time {
				mu.Lock()
				defer mu.Unlock()
				return now
			})
			return storeFixture{
				store: store,
				advance: func(d time.Duration) {
					mu.Lock()
					defer mu.Unlock()
					now = now.Add(d)
				},
			}
		},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, newFixture := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("get missing key", func(t *testing.T) {
				f := newFixture()
				_, err := f.store.Get(ctx, "nope")
				require.ErrorIs(t, err, kvstore.ErrNotFound)
			})

			t.Run("set get delete", func(t *testing.T) {
				f := newFixture()
				require.NoError(t, f.store.Set(ctx, "k", []byte("v"), 0))
				got, err := f.store.Get(ctx, "k")
				require.NoError(t, err)
				require.Equal(t, []byte("v"), got)

				require.NoError(t, f.store.Delete(ctx, "k"))
				_, err = f.store.Get(ctx, "k")
				require.ErrorIs(t, err, kvstore.ErrNotFound)
			})

			t.Run("ttl expiry", func(t *testing.T) {
				f := newFixture()
				require.NoError(t, f.store.Set(ctx, "k", []byte("v"), time.Minute))
				f.advance(59 * time.Second)
				_, err := f.store.Get(ctx, "k")
				require.NoError(t, err)

				f.advance(2 * time.Second)
				_, err = f.store.Get(ctx, "k")
				require.ErrorIs(t, err, kvstore.ErrNotFound)
			})

			t.Run("take is single use", func(t *testing.T) {
				f := newFixture()
				require.NoError(t, f.store.Set(ctx, "code", []byte("payload"), time.Minute))

				got, err := f.store.Take(ctx, "code")
				require.NoError(t, err)
				require.Equal(t, []byte("payload"), got)

				_, err = f.store.Take(ctx, "code")
				require.ErrorIs(t, err, kvstore.ErrNotFound)
			})

			t.Run("sets", func(t *testing.T) {
				f := newFixture()
				require.NoError(t, f.store.AddToSet(ctx, "s", "a"))
				require.NoError(t, f.store.AddToSet(ctx, "s", "b"))
				require.NoError(t, f.store.AddToSet(ctx, "s", "a"))

				members, err := f.store.MembersOf(ctx, "s")
				require.NoError(t, err)
				require.ElementsMatch(t, []string{"a", "b"}, members)

				require.NoError(t, f.store.RemoveFromSet(ctx, "s", "a"))
				members, err = f.store.MembersOf(ctx, "s")
				require.NoError(t, err)
				require.Equal(t, []string{"b"}, members)

				members, err = f.store.MembersOf(ctx, "empty")
				require.NoError(t, err)
				require.Empty(t, members)
			})

			t.Run("ping", func(t *testing.T) {
				f := newFixture()
				require.NoError(t, f.store.Ping(ctx))
			})
		})
	}
}

func TestTakeConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()

	for name, newFixture := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			require.NoError(t, f.store.Set(ctx, "code", []byte("x"), time.Minute))

			var wins int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := f.store.Take(ctx, "code"); err == nil {
						atomic.AddInt32(&wins, 1)
					}
				}()
			}
			wg.Wait()
			require.Equal(t, int32(1), wins)
		})
	}
}

func TestRedisStorePrefixesKeys(t *testing.T) {
	server, client := newRedisClientForTest(t)
	store := kvstore.NewRedisStore(client, "sso:")

	require.NoError(t, store.Set(context.Background(), kvstore.SessionPrefix+"abc", []byte("{}"), time.Hour))
	require.True(t, server.Exists("sso:session:abc"))
	require.Equal(t, time.Hour, server.TTL("sso:session:abc"))
}

func TestRedisStoreUnavailable(t *testing.T) {
	server, client := newRedisClientForTest(t)
	store := kvstore.NewRedisStore(client, "")
	server.Close()

	_, err := store.Get(context.Background(), "k")
	require.ErrorIs(t, err, kvstore.ErrUnavailable)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("redis reachable", func(t *testing.T) {
		server := miniredis.RunT(t)
		store, err := kvstore.Open(ctx, kvstore.Options{Backend: kvstore.BackendRedis, RedisAddr: server.Addr()}, logger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		require.Equal(t, kvstore.BackendRedis, store.Backend())
	})

	t.Run("redis unreachable without fallback", func(t *testing.T) {
		server := miniredis.RunT(t)
		addr := server.Addr()
		server.Close()

		_, err := kvstore.Open(ctx, kvstore.Options{Backend: kvstore.BackendRedis, RedisAddr: addr, PingTimeout: 200 * time.Millisecond}, logger)
		require.ErrorIs(t, err, kvstore.ErrUnavailable)
	})

	t.Run("redis unreachable with fallback", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		t.Cleanup(func() { _ = mp.Shutdown(ctx) })
		require.NoError(t, observability.UseMeterProvider(mp))

		server := miniredis.RunT(t)
		addr := server.Addr()
		server.Close()

		store, err := kvstore.Open(ctx, kvstore.Options{
			Backend:             kvstore.BackendRedis,
			RedisAddr:           addr,
			PingTimeout:         200 * time.Millisecond,
			AllowMemoryFallback: true,
		}, logger)
		require.NoError(t, err)
		require.Equal(t, kvstore.BackendMemory, store.Backend())

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &rm))
		require.Equal(t, int64(1), storeEventCount(rm, "fallback_to_memory"))
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := kvstore.Open(ctx, kvstore.Options{Backend: "etcd"}, logger)
		require.Error(t, err)
	})
}

func storeEventCount(rm metricdata.ResourceMetrics, event string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != "sso.store.events" || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, _ := dp.Attributes.Value("event"); v.AsString() == event {
					total += dp.Value
				}
			}
		}
	}
	return total
}
