package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
)

// MemoryStore is an in-process SetStore with lazy key expiry.
type MemoryStore struct {
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
	hashes  map[string]map[string]string
	expires map[string]time.Time
	now     func() time.Time
}

var _ SetStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sets:    make(map[string]map[string]struct{}),
		hashes:  make(map[string]map[string]string),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// evict must be called with s.mu held.
func (s *MemoryStore) evict(key string) {
	if at, ok := s.expires[key]; ok && !s.now().Before(at) {
		delete(s.sets, key)
		delete(s.hashes, key)
		delete(s.expires, key)
	}
}

func (s *MemoryStore) SAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(key)

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) SRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(key)

	set, ok := s.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	if len(set) == 0 {
		delete(s.sets, key)
		delete(s.expires, key)
	}
	return nil
}

func (s *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(key)

	return lo.Keys(s.sets[key]), nil
}

func (s *MemoryStore) SCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(key)

	return int64(len(s.sets[key])), nil
}

func (s *MemoryStore) HSet(_ context.Context, key string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(key)

	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	for field, v := range values {
		h[field] = fmt.Sprint(v)
	}
	return nil
}

// HGetAll is not part of SetStore; tests use it to inspect connection metadata.
func (s *MemoryStore) HGetAll(key string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(key)

	return lo.Assign(s.hashes[key])
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, isSet := s.sets[key]
	_, isHash := s.hashes[key]
	if isSet || isHash {
		s.expires[key] = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.sets, k)
		delete(s.hashes, k)
		delete(s.expires, k)
	}
	return nil
}
