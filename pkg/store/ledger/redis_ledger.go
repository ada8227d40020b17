package ledger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/certificate"
)

// DefaultRedisKey is the list holding the ledger.
const DefaultRedisKey = "trustmesh:ledger"

// RedisLedger keeps the ledger in a Redis list. RPUSH is atomic, so appends
// are O(1) and concurrent writers cannot lose entries.
type RedisLedger struct {
	client *redis.Client
	key    string
}

// NewRedisLedger creates a ledger using the list at key.
func NewRedisLedger(client *redis.Client, key string) *RedisLedger {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisLedger{client: client, key: key}
}

// NewRedisLedgerFromAddr dials addr.
func NewRedisLedgerFromAddr(addr, password string, db int, key string) *RedisLedger {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisLedger(rdb, key)
}

// Init checks connectivity.
func (r *RedisLedger) Init(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping redis", err)
	}
	return nil
}

// Close releases the client.
func (r *RedisLedger) Close() error {
	return r.client.Close()
}

func (r *RedisLedger) Append(ctx context.Context, c certificate.Certificate) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return unavailable("encode certificate", err)
	}
	if err := r.client.RPush(ctx, r.key, doc).Err(); err != nil {
		return unavailable("rpush", err)
	}
	return nil
}

func (r *RedisLedger) Latest(ctx context.Context) (*certificate.Certificate, error) {
	doc, err := r.client.LIndex(ctx, r.key, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable("lindex", err)
	}
	c, err := decodeDocument(doc)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RedisLedger) List(ctx context.Context) ([]certificate.Certificate, error) {
	docs, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, unavailable("lrange", err)
	}
	result := make([]certificate.Certificate, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeDocument(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

func (r *RedisLedger) ListByFarm(ctx context.Context, farmID string) ([]certificate.Certificate, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterFarm(all, farmID), nil
}
