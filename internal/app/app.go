package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"poll-voting/internal/ballot"
	"poll-voting/internal/dedup"
	"poll-voting/internal/model"
	"poll-voting/internal/policy"
	"poll-voting/internal/relay"
	"poll-voting/internal/voting"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	// finished attempts stay queryable this long
	attemptRetention = time.Hour
	attemptCleanup   = 10 * time.Minute
)

// PollServer is the external poll server.
type PollServer interface {
	FetchBallotPolls(ctx context.Context, credential, ballotID string) (model.Ballot, error)
	ListBallots(ctx context.Context, credential string) ([]model.Ballot, error)
}

// Prover builds the address the voter opens to produce a proof.
type Prover interface {
	ProveURL(req relay.Request) (string, error)
}

// Publisher is the relay channel proofs arrive on.
type Publisher interface {
	Publish(ctx context.Context, msg relay.Message) error
}

type App struct {
	logger        *zap.Logger
	server        PollServer
	roles         policy.RolePolicy
	reconstructor ballot.Reconstructor
	coordinator   *voting.Coordinator
	prover        Prover
	relay         Publisher
	ballotVotes   *dedup.BallotVotes
	attempts      *cache.Cache
	now           func() time.Time

	mu         sync.Mutex
	submitting map[string]struct{}
}

func NewApp(logger *zap.Logger, server PollServer, roles policy.RolePolicy, reconstructor ballot.Reconstructor,
	coordinator *voting.Coordinator, prover Prover, relay Publisher, ballotVotes *dedup.BallotVotes) (*App, error) {

	if server == nil || coordinator == nil || prover == nil || relay == nil || ballotVotes == nil {
		return nil, errors.New("app dependencies are missing")
	}

	return &App{
		logger:        logger,
		server:        server,
		roles:         roles,
		reconstructor: reconstructor,
		coordinator:   coordinator,
		prover:        prover,
		relay:         relay,
		ballotVotes:   ballotVotes,
		attempts:      cache.New(attemptRetention, attemptCleanup),
		now:           time.Now,
		submitting:    make(map[string]struct{}),
	}, nil
}

// Ballots lists the ballots the role may see.
func (a *App) Ballots(ctx context.Context, credential string, role model.Role) ([]model.Ballot, error) {
	ballots, err := a.server.ListBallots(ctx, credential)
	if err != nil {
		return nil, err
	}

	return a.roles.FilterBallots(role, ballots), nil
}

// Ballot fetches a ballot with its polls in organizer order.
func (a *App) Ballot(ctx context.Context, credential string, role model.Role, ballotID string) (BallotView, error) {
	fetched, err := a.server.FetchBallotPolls(ctx, credential, ballotID)
	if err != nil {
		return BallotView{}, err
	}

	if !a.roles.CanView(role, fetched.Category) {
		a.logger.Info("ballot hidden from role", zap.String("ballotID", ballotID), zap.String("role", role.String()), zap.String("category", fetched.Category.String()))
		return BallotView{}, model.ErrNotVisible
	}
	if len(fetched.Polls) == 0 {
		return BallotView{}, model.ErrNoPolls
	}

	polls, err := a.reconstructor.Reconstruct(fetched.Polls)
	if err != nil {
		return BallotView{}, err
	}

	view := BallotView{
		Ballot:  fetched,
		Expired: fetched.Expired(a.now()),
		Voted:   a.coordinator.Voted(ballotID),
		Polls:   make([]PollView, len(polls)),
	}
	view.Ballot.Polls = nil
	chosen := a.ballotVotes.Get(ballotID)

	for i, poll := range polls {
		if len(poll.VoterGroupURLs) == 0 {
			poll.VoterGroupURLs = append([]string(nil), fetched.VoterGroupURLs...)
		}
		_, pending := a.coordinator.Pending(poll.ID)

		view.Polls[i] = PollView{
			Poll:    poll,
			Voted:   a.coordinator.Voted(poll.ID),
			Pending: pending,
		}
		if idx, ok := chosen[poll.ID]; ok {
			idx := idx
			view.Polls[i].VotedOption = &idx
		}
	}

	return view, nil
}

// StartVote opens a vote attempt on a poll of a ballot. The returned attempt
// carries the address the voter proves membership at.
func (a *App) StartVote(ctx context.Context, credential string, role model.Role, ballotID, pollID string, voteIdx int) (VoteAttempt, error) {
	view, err := a.Ballot(ctx, credential, role, ballotID)
	if err != nil {
		return VoteAttempt{}, err
	}
	if view.Expired {
		return VoteAttempt{}, model.ErrBallotExpired
	}

	poll, ok := view.Poll(pollID)
	if !ok {
		return VoteAttempt{}, model.ErrPollNotFound
	}

	pending, err := a.coordinator.Start(ctx, credential, role, poll, voteIdx)
	if err != nil {
		return VoteAttempt{}, err
	}

	req := pending.Request()
	a.attempts.SetDefault(req.Tag, pending)

	proveURL, err := a.prover.ProveURL(req)
	if err != nil {
		a.coordinator.Cancel(pollID)
		return VoteAttempt{}, err
	}

	attempt := newVoteAttempt(pending)
	attempt.ProveURL = proveURL

	return attempt, nil
}

// VoteStatus reports the attempt started under tag.
func (a *App) VoteStatus(tag string) (VoteAttempt, error) {
	cached, ok := a.attempts.Get(tag)
	if !ok {
		return VoteAttempt{}, model.ErrNoPendingAttempt
	}
	pending := cached.(*voting.Pending)

	return newVoteAttempt(pending), nil
}

func (a *App) CancelVote(pollID string) error {
	if !a.coordinator.Cancel(pollID) {
		return model.ErrNoPendingAttempt
	}

	a.logger.Info("vote attempt cancelled", zap.String("pollID", pollID))
	return nil
}

// DeliverProof hands a proof sent back by the proving agent to the relay channel.
func (a *App) DeliverProof(ctx context.Context, tag, payload string) error {
	if tag == "" {
		return model.ErrNoPendingAttempt
	}

	return a.relay.Publish(ctx, relay.Message{Tag: tag, Payload: payload})
}
