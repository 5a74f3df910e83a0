package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// Store persists the last snapshot so a restart does not refetch immediately.
// Load returns nil, nil when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*model.ExchangeRateSnapshot, error)
	Save(ctx context.Context, snap *model.ExchangeRateSnapshot) error
}

// FileStore keeps the snapshot in a JSON file.
type FileStore struct {
	Path string
}

func (f *FileStore) Load(_ context.Context) (*model.ExchangeRateSnapshot, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var snap model.ExchangeRateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return &snap, nil
}

func (f *FileStore) Save(_ context.Context, snap *model.ExchangeRateSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(f.Path, data, 0o644)
}

// RedisStore shares the snapshot between bot instances through one redis key.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(addr, password string, db int, key string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, key: key, ttl: ttl}, nil
}

func (r *RedisStore) Load(ctx context.Context) (*model.ExchangeRateSnapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get rates from redis: %w", err)
	}
	var snap model.ExchangeRateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal rates: %w", err)
	}
	return &snap, nil
}

func (r *RedisStore) Save(ctx context.Context, snap *model.ExchangeRateSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal rates: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set rates in redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.client.Close() }
