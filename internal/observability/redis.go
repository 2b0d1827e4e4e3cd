package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
)

const defaultRedisChannel = "teachback.events"

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *goredis.IntCmd
	Close() error
}

// RedisSink publishes events as JSON on a pub/sub channel.
type RedisSink struct {
	rdb     publisher
	channel string
	timeout time.Duration
	log     *logger.Logger
}

// NewRedisSink connects and pings; an unreachable server is an error.
func NewRedisSink(ctx context.Context, addr, channel string, log *logger.Logger) (*RedisSink, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisSink(rdb, channel, log), nil
}

func newRedisSink(rdb publisher, channel string, log *logger.Logger) *RedisSink {
	if strings.TrimSpace(channel) == "" {
		channel = defaultRedisChannel
	}
	return &RedisSink{
		rdb:     rdb,
		channel: channel,
		timeout: 2 * time.Second,
		log:     logger.OrNop(log).With("service", "RedisSink"),
	}
}

func (s *RedisSink) Emit(ctx context.Context, ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("marshal event", "event", ev.Name, "error", err)
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.rdb.Publish(pubCtx, s.channel, raw).Err(); err != nil {
		s.log.Warn("publish event", "event", ev.Name, "channel", s.channel, "error", err)
	}
}

func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
