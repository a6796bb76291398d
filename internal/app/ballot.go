package app

import (
	"context"
	"sync"

	"poll-voting/internal/model"
	"poll-voting/internal/voting"

	"go.uber.org/zap"
)

// SubmitBallot votes on several polls of a ballot at once, votes maps a poll id
// to the chosen option. Every choice is checked before any attempt starts. The
// chosen options are remembered per poll as they are accepted, and the ballot
// counts as voted once all of them are.
func (a *App) SubmitBallot(ctx context.Context, credential string, role model.Role, ballotID string, votes map[string]int) (BallotAttempt, error) {
	if len(votes) == 0 {
		return BallotAttempt{}, model.ErrNoChoices
	}

	view, err := a.Ballot(ctx, credential, role, ballotID)
	if err != nil {
		return BallotAttempt{}, err
	}
	if view.Expired {
		return BallotAttempt{}, model.ErrBallotExpired
	}
	if view.Voted {
		return BallotAttempt{}, model.ErrAlreadyVoted
	}

	for pollID := range votes {
		if _, ok := view.Poll(pollID); !ok {
			return BallotAttempt{}, model.ErrPollNotFound
		}
	}

	// organizer order, so attempts are reported the way the ballot reads
	chosen := make([]PollView, 0, len(votes))
	for _, poll := range view.Polls {
		voteIdx, ok := votes[poll.ID]
		if !ok {
			continue
		}
		if !poll.ValidOption(voteIdx) {
			return BallotAttempt{}, model.ErrInvalidOption
		}
		if poll.Voted {
			return BallotAttempt{}, model.ErrAlreadyVoted
		}
		if poll.Pending {
			return BallotAttempt{}, model.ErrAttemptInFlight
		}
		chosen = append(chosen, poll)
	}

	if !a.claimBallot(ballotID) {
		return BallotAttempt{}, model.ErrAttemptInFlight
	}

	result := BallotAttempt{BallotID: ballotID, Attempts: make([]VoteAttempt, 0, len(chosen))}
	started := make([]*voting.Pending, 0, len(chosen))
	abort := func() {
		for _, p := range started {
			a.coordinator.Cancel(p.PollID())
		}
		a.releaseBallot(ballotID)
	}

	for _, poll := range chosen {
		pending, err := a.coordinator.Start(ctx, credential, role, poll.Poll, votes[poll.ID])
		if err != nil {
			abort()
			return BallotAttempt{}, err
		}
		started = append(started, pending)

		req := pending.Request()
		a.attempts.SetDefault(req.Tag, pending)

		proveURL, err := a.prover.ProveURL(req)
		if err != nil {
			abort()
			return BallotAttempt{}, err
		}

		attempt := newVoteAttempt(pending)
		attempt.ProveURL = proveURL
		result.Attempts = append(result.Attempts, attempt)
	}

	a.logger.Info("ballot submission started", zap.String("ballotID", ballotID), zap.Int("polls", len(started)))

	chosenIdx := make(map[string]int, len(chosen))
	for _, poll := range chosen {
		chosenIdx[poll.ID] = votes[poll.ID]
	}
	go a.watchBallot(context.WithoutCancel(ctx), ballotID, chosenIdx, started)

	return result, nil
}

func (a *App) watchBallot(ctx context.Context, ballotID string, votes map[string]int, started []*voting.Pending) {
	defer a.releaseBallot(ballotID)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, p := range started {
		wg.Add(1)
		go func(p *voting.Pending) {
			defer wg.Done()

			<-p.Done()
			if _, err := p.Result(); err != nil {
				a.logger.Info("ballot vote not accepted: "+err.Error(), zap.String("ballotID", ballotID), zap.String("pollID", p.PollID()))
				return
			}

			mu.Lock()
			accepted++
			mu.Unlock()

			if err := a.ballotVotes.Record(ctx, ballotID, p.PollID(), votes[p.PollID()]); err != nil {
				a.logger.Error("failed to remember the ballot choice: "+err.Error(), zap.String("ballotID", ballotID), zap.String("pollID", p.PollID()))
			}
		}(p)
	}
	wg.Wait()

	if accepted != len(started) {
		return
	}
	if err := a.coordinator.MarkVoted(ctx, ballotID); err != nil {
		a.logger.Error("failed to remember the ballot: "+err.Error(), zap.String("ballotID", ballotID))
	}
	a.logger.Info("ballot voted", zap.String("ballotID", ballotID))
}

func (a *App) claimBallot(ballotID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.submitting[ballotID]; ok {
		return false
	}
	a.submitting[ballotID] = struct{}{}
	return true
}

func (a *App) releaseBallot(ballotID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.submitting, ballotID)
}
