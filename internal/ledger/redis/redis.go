// Package redis implements a ledger backed by a Redis set.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis set holding processed advisory keys.
const DefaultKey = "ashalert:processed"

// setCommander is the subset of the go-redis client the ledger needs.
type setCommander interface {
	SIsMember(ctx context.Context, key string, member interface{}) *goredis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *goredis.IntCmd
}

// Ledger stores processed keys as members of one Redis set.
type Ledger struct {
	client setCommander
	key    string
	closer func() error
}

// New connects to the Redis instance at rawURL (redis://...) and pings it.
func New(ctx context.Context, rawURL, key string) (*Ledger, error) {
	opt, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	l := NewWithClient(client, key)
	l.closer = client.Close
	return l, nil
}

// NewWithClient builds a Ledger over an existing client (primarily for testing).
func NewWithClient(client setCommander, key string) *Ledger {
	if key == "" {
		key = DefaultKey
	}
	return &Ledger{client: client, key: key}
}

// Seen reports whether key is a member of the set.
func (l *Ledger) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SIsMember(ctx, l.key, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// Mark adds key to the set.
func (l *Ledger) Mark(ctx context.Context, key string) error {
	if err := l.client.SAdd(ctx, l.key, key).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// Close releases the client connection when the ledger owns it.
func (l *Ledger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}
