// Package cache defines the result cache used to serve repeated combine and
// explode requests.
package cache

import (
	"context"
	"time"
)

type Interface interface {
	// Get reports whether key is present and returns its value.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Noop never stores anything.
type Noop struct{}

var _ Interface = Noop{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (Noop) Del(context.Context, ...string) error {
	return nil
}
