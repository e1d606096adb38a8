package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"banking-core/pkg/bank"
	"banking-core/pkg/logging"
)

// RedisConfig holds the Redis connection settings for the history cache.
type RedisConfig struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// DefaultRedisConfig returns defaults for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "history:",
	}
}

// Redis caches transaction history in Redis as JSON blobs. Errors are
// logged at debug level and otherwise swallowed; the caller falls back to
// the datastore.
type Redis struct {
	client rueidis.Client
	prefix string
	logger *logging.Logger
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(config RedisConfig, logger *logging.Logger) (*Redis, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{config.Addr},
		Username:    config.Username,
		Password:    config.Password,
		SelectDB:    config.DB,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, err
	}

	return &Redis{
		client: client,
		prefix: config.KeyPrefix,
		logger: logger.Named("cache"),
	}, nil
}

func (r *Redis) Get(ctx context.Context, accountNumber string) ([]*bank.TransactionRecord, bool) {
	cmd := r.client.B().Get().Key(r.prefix + accountNumber).Build()
	resp := r.client.Do(ctx, cmd)
	if err := resp.Error(); err != nil {
		if !rueidis.IsRedisNil(err) {
			r.logger.Debug("history cache get failed", zap.String("account", accountNumber), zap.Error(err))
		}
		return nil, false
	}

	data, err := resp.AsBytes()
	if err != nil {
		return nil, false
	}
	var records []*bank.TransactionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		r.logger.Debug("history cache decode failed", zap.String("account", accountNumber), zap.Error(err))
		return nil, false
	}
	return records, true
}

func (r *Redis) Set(ctx context.Context, accountNumber string, records []*bank.TransactionRecord, ttl time.Duration) {
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	cmd := r.client.B().Set().Key(r.prefix + accountNumber).Value(string(data)).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		r.logger.Debug("history cache set failed", zap.String("account", accountNumber), zap.Error(err))
	}
}

func (r *Redis) Invalidate(ctx context.Context, accountNumber string) {
	cmd := r.client.B().Del().Key(r.prefix + accountNumber).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		r.logger.Debug("history cache invalidate failed", zap.String("account", accountNumber), zap.Error(err))
	}
}

func (r *Redis) Close() {
	r.client.Close()
}
