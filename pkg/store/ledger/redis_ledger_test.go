package ledger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
)

func unreachableRedis() *RedisLedger {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	return NewRedisLedger(client, "")
}

func TestRedisLedger_UnreachableIsUnavailable(t *testing.T) {
	l := unreachableRedis()
	defer func() { _ = l.Close() }()
	ctx := context.Background()

	assert.Equal(t, DefaultRedisKey, l.key)
	assert.ErrorIs(t, l.Init(ctx), ErrStorageUnavailable)
	assert.ErrorIs(t, l.Append(ctx, mintAt(t, "F-001", 80, 0)), ErrStorageUnavailable)

	_, err := l.Latest(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = l.List(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

// liveRedis connects to REDIS_ADDR (default localhost:6379) and skips the test
// when no server answers. Each test gets its own list, removed on cleanup.
func liveRedis(t *testing.T) (*RedisLedger, *redis.Client) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 500 * time.Millisecond})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Skipping Redis integration test: redis not available")
	}

	key := fmt.Sprintf("trustmesh:test:%s:%d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() {
		_ = client.Del(context.Background(), key).Err()
		_ = client.Close()
	})

	l := NewRedisLedger(client, key)
	require.NoError(t, l.Init(ctx))
	return l, client
}

func TestRedisLedger_Integration_AppendLatestOrder(t *testing.T) {
	l, _ := liveRedis(t)
	ctx := context.Background()

	latest, err := l.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	all, err := l.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	first := mintAt(t, "F-001", 80, 0)
	second := mintAt(t, "F-002", 90, time.Second)
	third := mintAt(t, "F-001", 95, 2*time.Second)
	for _, c := range []certificate.Certificate{first, second, third} {
		require.NoError(t, l.Append(ctx, c))
	}

	latest, err = l.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, third, *latest)

	all, err = l.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []certificate.Certificate{first, second, third}, all)

	farm, err := l.ListByFarm(ctx, "F-001")
	require.NoError(t, err)
	assert.Equal(t, []certificate.Certificate{first, third}, farm)
}

func TestRedisLedger_Integration_ConcurrentAppends(t *testing.T) {
	l, _ := liveRedis(t)
	ctx := context.Background()
	const n = 40

	certs := make([]certificate.Certificate, n)
	for i := range certs {
		certs[i] = mintAt(t, fmt.Sprintf("F-%03d", i), 80, time.Duration(i)*time.Millisecond)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, c := range certs {
		wg.Add(1)
		go func(c certificate.Certificate) {
			defer wg.Done()
			errs <- l.Append(ctx, c)
		}(c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, n)

	seen := make(map[string]bool, n)
	for _, c := range all {
		seen[c.BlockchainHash] = true
	}
	assert.Len(t, seen, n)
}

func TestRedisLedger_Integration_CorruptElement(t *testing.T) {
	l, client := liveRedis(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, mintAt(t, "F-001", 80, 0)))
	require.NoError(t, client.RPush(ctx, l.key, `{"certificate_id": "VY-1"`).Err())

	_, err := l.Latest(ctx)
	assert.ErrorIs(t, err, ErrStorageCorrupt)

	_, err = l.List(ctx)
	assert.ErrorIs(t, err, ErrStorageCorrupt)

	n, err := client.LLen(ctx, l.key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
