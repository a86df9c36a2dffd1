package tokens

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/you/swap-engine/internal/config"
)

// DefaultTaxKey is the Redis SET of tax token addresses.
const DefaultTaxKey = "token:tax"

// RedisClassifier reads the tax list from a Redis SET so it can change
// without a restart. Members are lower-case hex addresses.
type RedisClassifier struct {
	rdb *redis.Client
	key string
}

// NewRedisClassifier инициализирует клиент из конфига.
func NewRedisClassifier(cfg config.Redis) *RedisClassifier {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	return newRedisClassifier(rdb, cfg.TaxKey)
}

func newRedisClassifier(rdb *redis.Client, key string) *RedisClassifier {
	if key == "" {
		key = DefaultTaxKey
	}
	return &RedisClassifier{rdb: rdb, key: key}
}

func member(token common.Address) string {
	return strings.ToLower(token.Hex())
}

func (r *RedisClassifier) IsTaxToken(ctx context.Context, token common.Address) (bool, error) {
	ok, err := r.rdb.SIsMember(ctx, r.key, member(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: SISMEMBER %s: %w", ErrClassification, r.key, err)
	}
	return ok, nil
}

// Mark adds tokens to the tax list.
func (r *RedisClassifier) Mark(ctx context.Context, tokens ...common.Address) error {
	if len(tokens) == 0 {
		return nil
	}
	members := make([]interface{}, len(tokens))
	for i, t := range tokens {
		members[i] = member(t)
	}
	return r.rdb.SAdd(ctx, r.key, members...).Err()
}

func (r *RedisClassifier) Unmark(ctx context.Context, token common.Address) error {
	return r.rdb.SRem(ctx, r.key, member(token)).Err()
}

// List returns every token in the tax list.
func (r *RedisClassifier) List(ctx context.Context) ([]common.Address, error) {
	ms, err := r.rdb.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(ms))
	for _, m := range ms {
		if common.IsHexAddress(m) {
			out = append(out, common.HexToAddress(m))
		}
	}
	return out, nil
}

func (r *RedisClassifier) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisClassifier) Close() error {
	return r.rdb.Close()
}
