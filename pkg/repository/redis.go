package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/go-redis/redis/v8"
)

var ErrCacheMiss = errors.New("cache miss")

const settingsKey = "shop:settings"

type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return NewRedisRepositoryWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}), cfg.TTL)
}

func NewRedisRepositoryWithClient(client *redis.Client, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisRepository{client: client, ttl: ttl}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) CacheSettings(ctx context.Context, s *models.ShopSettings) error {
	return r.SetJSON(ctx, settingsKey, s, r.ttl)
}

func (r *RedisRepository) GetSettings(ctx context.Context) (*models.ShopSettings, error) {
	var s models.ShopSettings
	if err := r.GetJSON(ctx, settingsKey, &s); err != nil {
		return nil, err
	}
	s.ID = models.ShopSettingsID
	return &s, nil
}

func (r *RedisRepository) InvalidateSettings(ctx context.Context) error {
	return r.Del(ctx, settingsKey)
}
