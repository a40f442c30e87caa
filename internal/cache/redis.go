package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meal-planner/internal/mealplan"

	"github.com/redis/go-redis/v9"
)

// Redis stores week entry sets as JSON under mealplan:user:{userID}:week:{weekKey}.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps client. A non-positive ttl falls back to DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Connect parses url, pings the server and returns a ready cache.
func Connect(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedis(client, ttl), nil
}

func userPrefix(userID string) string {
	return fmt.Sprintf("mealplan:user:%s:week:", userID)
}

func redisKey(userID, weekKey string) string {
	return userPrefix(userID) + weekKey
}

func (r *Redis) Get(ctx context.Context, userID, weekKey string) ([]mealplan.Entry, bool, error) {
	val, err := r.client.Get(ctx, redisKey(userID, weekKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached week: %w", err)
	}

	var entries []mealplan.Entry
	if err := json.Unmarshal(val, &entries); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached week: %w", err)
	}
	if entries == nil {
		entries = []mealplan.Entry{}
	}
	return entries, true, nil
}

func (r *Redis) Set(ctx context.Context, userID, weekKey string, entries []mealplan.Entry) error {
	if entries == nil {
		entries = []mealplan.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode week: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(userID, weekKey), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cached week: %w", err)
	}
	return nil
}

// InvalidateUser deletes every cached week of userID.
func (r *Redis) InvalidateUser(ctx context.Context, userID string) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, userPrefix(userID)+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached weeks: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cached weeks: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
