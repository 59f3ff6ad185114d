package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/helpchat/internal/logger"
	"github.com/redis/go-redis/v9"
)

// ChannelKey is the pub/sub key for one conversation's events.
func ChannelKey(conversationID string) string {
	return "conversation:" + conversationID
}

// RedisFactory subscribes over Redis pub/sub, one channel per
// conversation. Frames are JSON, same shapes as the WebSocket path.
type RedisFactory struct {
	Client *redis.Client
}

func NewRedisFactory(cli *redis.Client) *RedisFactory {
	return &RedisFactory{Client: cli}
}

func (f *RedisFactory) Subscribe(ctx context.Context, conversationID string) (Subscription, error) {
	ps := f.Client.Subscribe(ctx, ChannelKey(conversationID))
	// Confirm the subscription before handing it to the engine, so a
	// dead Redis fails Select instead of silently dropping events.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("channel: redis subscribe conv=%s: %w", conversationID, err)
	}
	sub := &redisSubscription{
		conversationID: conversationID,
		ps:             ps,
		events:         make(chan Event, wsEventBufSize),
	}
	go sub.pump(ctx)
	return sub, nil
}

type redisSubscription struct {
	conversationID string
	ps             *redis.PubSub
	events         chan Event
	once           sync.Once
}

func (s *redisSubscription) Events() <-chan Event { return s.events }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		ev, err := DecodeEvent([]byte(msg.Payload))
		if err != nil {
			logger.Debugf("channel: drop malformed frame conv=%s: %v", s.conversationID, err)
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			s.Close()
			return
		}
	}
}
