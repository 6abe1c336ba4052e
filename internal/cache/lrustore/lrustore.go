// Package lrustore is an in-process, size-bounded result cache with per-entry
// expiry.
package lrustore

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/geoconvert/internal/core/observability"
)

type entry struct {
	val     []byte
	expires time.Time // zero means no expiry
}

type Store struct {
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	now func() time.Time
}

func New(size int) (*Store, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("lru store: %w", err)
	}
	return &Store{lru: c, now: time.Now}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("get", err, time.Since(start).Seconds())
		return nil, false, err
	}

	s.mu.Lock()
	e, ok := s.lru.Get(key)
	if ok && !e.expires.IsZero() && !s.now().Before(e.expires) {
		s.lru.Remove(key)
		ok = false
	}
	s.mu.Unlock()

	observability.ObserveCacheOp("get", nil, time.Since(start).Seconds())
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

// Set stores a copy of val. A non-positive ttl keeps the entry until evicted.
func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("set", err, time.Since(start).Seconds())
		return err
	}

	e := entry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.lru.Add(key, e)
	s.mu.Unlock()

	observability.ObserveCacheOp("set", nil, time.Since(start).Seconds())
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("del", err, time.Since(start).Seconds())
		return err
	}
	s.mu.Lock()
	for _, k := range keys {
		s.lru.Remove(k)
	}
	s.mu.Unlock()
	observability.ObserveCacheOp("del", nil, time.Since(start).Seconds())
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}
