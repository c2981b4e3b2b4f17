// Package cache реализует внешний TTL-кэш состояния подписчиков панели
// на Redis. Кэш живёт вне процесса, чтобы несколько экземпляров бэк-офиса
// и планировщик рассылок разделяли его между собой.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maksimkurganov/vpn-backoffice/internal/config"
)

// Store хранит записи с ограниченным временем жизни.
type Store struct {
	db  *redis.Client
	ttl time.Duration
}

// InitServer подключается к Redis и возвращает хранилище.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Store, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{db: db, ttl: cfg.CacheTTL}, nil
}

func subscriberKey(uuid string) string {
	return "subscriber:" + uuid
}

// GetSubscriber читает закэшированное состояние подписчика панели.
// Возвращает false, если записи нет или её срок истёк.
func (s *Store) GetSubscriber(ctx context.Context, uuid string, result any) (bool, error) {
	const op = "cache.GetSubscriber"
	val, err := s.db.Get(ctx, subscriberKey(uuid)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// SetSubscriber сохраняет состояние подписчика панели с TTL хранилища.
func (s *Store) SetSubscriber(ctx context.Context, uuid string, value any) error {
	const op = "cache.SetSubscriber"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.db.Set(ctx, subscriberKey(uuid), jsonData, s.ttl).Err()
}

// DropSubscriber сбрасывает запись после изменения подписчика на панели.
func (s *Store) DropSubscriber(ctx context.Context, uuid string) error {
	return s.db.Del(ctx, subscriberKey(uuid)).Err()
}
