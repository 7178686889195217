package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arnavshah/ionm-board/pkg/models"
)

// DefaultChannel is the pub/sub channel used for staff changes
const DefaultChannel = "ionm_staff:changes"

// Redis is a Broker backed by Redis pub/sub, so that several server
// instances sharing one database observe each other's writes.
type Redis struct {
	rdb     *goredis.Client
	channel string
	logger  *zap.Logger
}

// NewRedis connects to Redis and checks the connection
func NewRedis(addr, password string, db int, logger *zap.Logger) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}

	logger.Info("redis change feed connected", zap.String("addr", addr))
	return &Redis{rdb: rdb, channel: DefaultChannel, logger: logger}, nil
}

// Publish sends the event as JSON on the change channel
func (r *Redis) Publish(ctx context.Context, ev models.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

// Subscribe starts a goroutine that dispatches decoded events to handlers
func (r *Redis) Subscribe(h Handlers) (Subscription, error) {
	ctx := context.Background()
	ps := r.rdb.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for msg := range ps.Channel() {
			ev, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				r.logger.Warn("dropping malformed change event", zap.Error(err))
				continue
			}
			h.Dispatch(ev)
		}
	}()
	return sub, nil
}

// Close closes the Redis client
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// DecodeEvent parses a JSON change event
func DecodeEvent(payload []byte) (models.ChangeEvent, error) {
	var ev models.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("decode change event: %w", err)
	}
	switch ev.Type {
	case models.ChangeInsert, models.ChangeUpdate:
		if ev.New == nil {
			return ev, fmt.Errorf("%s event without record", ev.Type)
		}
	case models.ChangeDelete:
		if ev.Old == nil {
			return ev, fmt.Errorf("%s event without record", ev.Type)
		}
	default:
		return ev, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return ev, nil
}

type redisSubscription struct {
	ps   *goredis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

func (s *redisSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}
