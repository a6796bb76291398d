// Package dedup remembers the polls this client has voted on.
//
// The set only guards the voter against submitting twice from the same device.
// The poll server is the authority on double voting.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"poll-voting/internal/kvstore"

	"go.uber.org/zap"
)

// StoreKey holds the JSON array of voted poll ids.
const StoreKey = "voted"

type Set struct {
	mu     sync.RWMutex
	store  kvstore.Store
	logger *zap.Logger
	voted  []string
	index  map[string]struct{}
}

func NewSet(logger *zap.Logger, store kvstore.Store) *Set {
	return &Set{
		store:  store,
		logger: logger,
		index:  make(map[string]struct{}),
	}
}

// Load reads the persisted set. A malformed value is treated as empty.
func (s *Set) Load(ctx context.Context) error {
	raw, ok, err := s.store.Get(ctx, StoreKey)
	if err != nil {
		return errors.New("failed to load voted polls: " + err.Error())
	}

	var voted []string
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &voted); err != nil {
			s.logger.Warn("voted polls are malformed, starting empty: "+err.Error(), zap.String("key", StoreKey))
			voted = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.voted = s.voted[:0]
	s.index = make(map[string]struct{}, len(voted))
	for _, id := range voted {
		if _, seen := s.index[id]; seen {
			continue
		}
		s.index[id] = struct{}{}
		s.voted = append(s.voted, id)
	}

	s.logger.Debug("voted polls loaded", zap.Int("count", len(s.voted)))
	return nil
}

func (s *Set) Contains(pollID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.index[pollID]
	return ok
}

// Add records pollID and persists the set. The id is remembered in memory
// even when persisting fails, the returned error only reports the lost write.
func (s *Set) Add(ctx context.Context, pollID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[pollID]; ok {
		return nil
	}

	s.voted = append(s.voted, pollID)
	s.index[pollID] = struct{}{}

	data, err := json.Marshal(s.voted)
	if err != nil {
		return errors.New("failed to encode voted polls: " + err.Error())
	}
	if err := s.store.Set(ctx, StoreKey, string(data)); err != nil {
		return errors.New("failed to persist voted polls: " + err.Error())
	}

	return nil
}

// List returns the voted poll ids in the order they were added.
func (s *Set) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.voted))
	copy(out, s.voted)
	return out
}
