package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"fleet-monitor/detector/internal/domain"
)

// EventsChannelPattern matches every per-device event channel.
const EventsChannelPattern = "device:*:events"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

func deviceStateKey(deviceID int64) string {
	return fmt.Sprintf("device:%d:state", deviceID)
}

func EventsChannel(deviceID int64) string {
	return fmt.Sprintf("device:%d:events", deviceID)
}

// SaveState stores the last accepted position and the debounce snapshot of
// one device, and indexes the position for radius lookups.
func (r *RedisStore) SaveState(ctx context.Context, p *domain.Position, debounce domain.DebounceState) error {
	last, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	deb, err := json.Marshal(debounce)
	if err != nil {
		return fmt.Errorf("failed to marshal debounce: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, deviceStateKey(p.DeviceID), map[string]any{
		"last":     last,
		"debounce": deb,
		"fix_time": p.FixTime.Unix(),
	})
	pipe.GeoAdd(ctx, "devices:geo", &redis.GeoLocation{
		Name:      strconv.FormatInt(p.DeviceID, 10),
		Longitude: p.Longitude,
		Latitude:  p.Latitude,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// LoadState returns the stored last position (nil if none) and debounce
// snapshot of one device.
func (r *RedisStore) LoadState(ctx context.Context, deviceID int64) (*domain.Position, domain.DebounceState, error) {
	var debounce domain.DebounceState
	vals, err := r.client.HMGet(ctx, deviceStateKey(deviceID), "last", "debounce").Result()
	if err != nil {
		return nil, debounce, fmt.Errorf("redis load state for %d: %w", deviceID, err)
	}

	var last *domain.Position
	if s, ok := vals[0].(string); ok {
		last = &domain.Position{}
		if err := json.Unmarshal([]byte(s), last); err != nil {
			return nil, debounce, fmt.Errorf("decode last position for %d: %w", deviceID, err)
		}
	}
	if s, ok := vals[1].(string); ok {
		if err := json.Unmarshal([]byte(s), &debounce); err != nil {
			return last, domain.DebounceState{}, fmt.Errorf("decode debounce for %d: %w", deviceID, err)
		}
	}
	return last, debounce, nil
}

func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("vehicle:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}

func (r *RedisStore) PublishEvent(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, EventsChannel(e.DeviceID), payload).Err()
}

// SubscribeEvents subscribes to every device's event channel.
func (r *RedisStore) SubscribeEvents(ctx context.Context) *redis.PubSub {
	return r.client.PSubscribe(ctx, EventsChannelPattern)
}
