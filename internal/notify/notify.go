// internal/notify/notify.go
//
// Package notify publishes committed state transitions to the real-time
// channel. Delivery is best-effort: the stores never block on or retry a
// failed publish.
package notify

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Notifier receives every committed state transition. Implementations must
// not block the caller beyond a quick send.
type Notifier interface {
	Publish(ctx context.Context, channel, event string, payload interface{})
}

// Event is the wire envelope pushed onto a channel.
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// LobbyChannel is the channel key for a lobby's transitions.
func LobbyChannel(lobbyID string) string { return "lobby:" + lobbyID }

// GameChannel is the channel key for a game's transitions.
func GameChannel(gameID string) string { return "game:" + gameID }

// RedisNotifier publishes events over Redis pub/sub. Connected clients (the
// websocket handlers, or anything else) subscribe to the lobby/game channels.
type RedisNotifier struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

// ConnectRedis builds a notifier from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis(logger *logrus.Logger) (*RedisNotifier, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisNotifier{rdb: rdb, logger: logger}, nil
}

// Publish marshals the event and fires it at the channel. Failures are logged
// and dropped.
func (n *RedisNotifier) Publish(ctx context.Context, channel, event string, payload interface{}) {
	data, err := json.Marshal(Event{Event: event, Payload: payload})
	if err != nil {
		n.logger.WithError(err).WithField("event", event).Warn("notify: marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := n.rdb.Publish(ctx, channel, data).Err(); err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"channel": channel,
			"event":   event,
		}).Debug("notify: publish failed")
	}
}

// Subscribe opens a pub/sub subscription on a channel. The caller owns the
// returned subscription and must Close it.
func (n *RedisNotifier) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return n.rdb.Subscribe(ctx, channel)
}

// Nop discards every event. Used in tests and when Redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, interface{}) {}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
