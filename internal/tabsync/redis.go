package tabsync

import (
	"alcyxob/fitflow/internal/config"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisNotifier carries updates between processes over Redis PUBLISH/SUBSCRIBE.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger

	mu   sync.Mutex
	subs []*redis.PubSub
	wg   sync.WaitGroup
}

// NewRedisNotifier connects to Redis and verifies the connection.
func NewRedisNotifier(ctx context.Context, cfg config.RedisConfig, namespace string, logger *zap.Logger) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("redis sync notifier connected", zap.String("addr", cfg.Addr), zap.String("channel", namespace))
	return &RedisNotifier{client: client, channel: namespace, logger: logger}, nil
}

func (n *RedisNotifier) Name() string { return "redis" }

func (n *RedisNotifier) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, fn func(Message)) (func(), error) {
	pubsub := n.client.Subscribe(ctx, n.channel)
	// Wait for the subscription confirmation so no publish after return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", n.channel, err)
	}

	n.mu.Lock()
	n.subs = append(n.subs, pubsub)
	n.mu.Unlock()

	ch := pubsub.Channel()
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for m := range ch {
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				n.logger.Warn("dropping undecodable sync message", zap.Error(err))
				continue
			}
			if msg.Type != MessageType {
				continue
			}
			fn(msg)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { _ = pubsub.Close() })
	}, nil
}

// Close ends every subscription, waits for the readers and closes the client.
func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()
	for _, s := range subs {
		_ = s.Close()
	}
	n.wg.Wait()
	return n.client.Close()
}
