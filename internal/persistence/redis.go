package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// RedisStore keeps each document as a JSON string under its own key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a store using keys "<prefix>:counter" and "<prefix>:tickets".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ticketbot"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *RedisStore) Ensure(ctx context.Context) error {
	if err := s.client.SetNX(ctx, s.key(docCounter), emptyCounterJSON, 0).Err(); err != nil {
		return fmt.Errorf("seed counter: %w", err)
	}
	if err := s.client.SetNX(ctx, s.key(docTickets), emptyTicketsJSON, 0).Err(); err != nil {
		return fmt.Errorf("seed tickets: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadCounter(ctx context.Context) (int, error) {
	data, err := s.load(ctx, docCounter)
	if err != nil {
		return 0, err
	}
	return decodeCounter(data)
}

func (s *RedisStore) SaveCounter(ctx context.Context, count int) error {
	data, err := encodeCounter(count)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(docCounter), data, 0).Err()
}

func (s *RedisStore) LoadTickets(ctx context.Context) (map[string]domain.Ticket, error) {
	data, err := s.load(ctx, docTickets)
	if err != nil {
		return nil, err
	}
	return decodeTickets(data)
}

func (s *RedisStore) SaveTickets(ctx context.Context, tickets map[string]domain.Ticket) error {
	data, err := encodeTickets(tickets)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(docTickets), data, 0).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() {
	_ = s.client.Close()
}

func (s *RedisStore) load(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load %s document: %w", name, err)
	}
	return data, nil
}
