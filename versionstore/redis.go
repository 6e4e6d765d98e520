package versionstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis shares generations across processes and survives restarts.
type Redis struct {
	rdb         redis.UniversalClient
	prefix      string // key prefix, e.g. "app:prod"; generations live at "<prefix>:tcver:<ns>"
	closeClient bool
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed generation store. The client is closed by
// Close only when closeClient is true.
func NewRedis(client redis.UniversalClient, prefix string, closeClient bool) *Redis {
	return &Redis{rdb: client, prefix: prefix, closeClient: closeClient}
}

func (s *Redis) key(ns string) string {
	if s.prefix == "" {
		return "tcver:" + ns
	}
	return s.prefix + ":tcver:" + ns
}

// Current returns the generation; missing keys are generation 0.
func (s *Redis) Current(ctx context.Context, ns string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(ns)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis generation parse: %w", err)
	}
	return u, nil
}

func (s *Redis) Bump(ctx context.Context, ns string) (uint64, error) {
	v, err := s.rdb.Incr(ctx, s.key(ns)).Result()
	if err != nil {
		return 0, err
	}
	return uint64(v), nil
}

func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		return s.rdb.Close()
	}
	return nil
}
