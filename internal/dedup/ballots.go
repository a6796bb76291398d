package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"poll-voting/internal/kvstore"

	"go.uber.org/zap"
)

// BallotVotesKey holds a JSON object of ballot id to the option chosen per poll.
const BallotVotesKey = "ballotVotes"

// BallotVotes remembers which option this client chose on each poll of a ballot.
type BallotVotes struct {
	mu     sync.RWMutex
	store  kvstore.Store
	logger *zap.Logger
	votes  map[string]map[string]int
}

func NewBallotVotes(logger *zap.Logger, store kvstore.Store) *BallotVotes {
	return &BallotVotes{
		store:  store,
		logger: logger,
		votes:  make(map[string]map[string]int),
	}
}

// Load reads the persisted choices. A malformed value is treated as empty.
func (b *BallotVotes) Load(ctx context.Context) error {
	raw, ok, err := b.store.Get(ctx, BallotVotesKey)
	if err != nil {
		return errors.New("failed to load ballot votes: " + err.Error())
	}

	votes := make(map[string]map[string]int)
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &votes); err != nil {
			b.logger.Warn("ballot votes are malformed, starting empty: "+err.Error(), zap.String("key", BallotVotesKey))
			votes = make(map[string]map[string]int)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.votes = votes

	b.logger.Debug("ballot votes loaded", zap.Int("ballots", len(votes)))
	return nil
}

// Get returns a copy of the choices recorded for ballotID, keyed by poll id.
func (b *BallotVotes) Get(ballotID string) map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]int, len(b.votes[ballotID]))
	for pollID, idx := range b.votes[ballotID] {
		out[pollID] = idx
	}
	return out
}

// Record stores the option chosen on pollID. Like Set.Add the choice is kept
// in memory even when persisting fails.
func (b *BallotVotes) Record(ctx context.Context, ballotID, pollID string, voteIdx int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	polls, ok := b.votes[ballotID]
	if !ok {
		polls = make(map[string]int)
		b.votes[ballotID] = polls
	}
	polls[pollID] = voteIdx

	data, err := json.Marshal(b.votes)
	if err != nil {
		return errors.New("failed to encode ballot votes: " + err.Error())
	}
	if err := b.store.Set(ctx, BallotVotesKey, string(data)); err != nil {
		return errors.New("failed to persist ballot votes: " + err.Error())
	}

	return nil
}
