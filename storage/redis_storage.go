package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/takes-mobile/takes-server/config"
	"github.com/takes-mobile/takes-server/contexthelper"
	"github.com/takes-mobile/takes-server/internal/types"
)

type RedisStorage struct {
	cfg    *config.Config
	client *redis.Client
}

func NewRedisStorage(cfg *config.Config) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	status := client.Ping(context.Background())
	if status.Err() != nil {
		return nil, status.Err()
	}
	return &RedisStorage{
		cfg:    cfg,
		client: client,
	}, nil
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return "", ctx.Err()
	}
	result, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return result, err
}

func (r *RedisStorage) Set(ctx context.Context, key, value string, expiry time.Duration) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	return r.client.Set(ctx, key, value, expiry).Err()
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	return r.client.Del(ctx, key).Err()
}

func betCacheKey(id string) string {
	return fmt.Sprintf("bet-%s", id)
}

// SetBetCacheItem caches a bet record for list/detail reads.
func (r *RedisStorage) SetBetCacheItem(ctx context.Context, bet *types.Bet, expiry time.Duration) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	betJSON, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("fail to serialize bet cache item to json, err: %w", err)
	}
	return r.client.Set(ctx, betCacheKey(bet.ID.String()), string(betJSON), expiry).Err()
}

// GetBetCacheItem returns a cached bet, or nil when the cache misses.
func (r *RedisStorage) GetBetCacheItem(ctx context.Context, id string) (*types.Bet, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	betJSON, err := r.client.Get(ctx, betCacheKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fail to get bet cache item, err: %w", err)
	}
	var bet types.Bet
	if err := json.Unmarshal([]byte(betJSON), &bet); err != nil {
		return nil, fmt.Errorf("fail to deserialize bet cache item, err: %w", err)
	}
	return &bet, nil
}

func participationKey(signature string) string {
	return fmt.Sprintf("participation-%s", signature)
}

// MarkParticipation records that a transaction signature has been appended,
// so replays can skip straight to the stored row without racing an insert.
// The database unique constraint stays the source of truth.
func (r *RedisStorage) MarkParticipation(ctx context.Context, signature, betID string, expiry time.Duration) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	return r.client.Set(ctx, participationKey(signature), betID, expiry).Err()
}

// GetParticipationMarker returns the bet id recorded for a signature, or ""
// when none is known.
func (r *RedisStorage) GetParticipationMarker(ctx context.Context, signature string) (string, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return "", ctx.Err()
	}
	betID, err := r.client.Get(ctx, participationKey(signature)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return betID, err
}

// DeleteBetCacheItem drops the cached copy after a write to the bet.
func (r *RedisStorage) DeleteBetCacheItem(ctx context.Context, id string) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	return r.client.Del(ctx, betCacheKey(id)).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
