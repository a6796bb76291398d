package app

import (
	"poll-voting/internal/model"
	"poll-voting/internal/voting"
)

type PollView struct {
	model.Poll
	Voted   bool `json:"voted"`
	Pending bool `json:"pending"`
	// VotedOption is the option this client chose when voting through the ballot.
	VotedOption *int `json:"votedOption,omitempty"`
}

type BallotView struct {
	model.Ballot
	Polls   []PollView `json:"polls"`
	Expired bool       `json:"expired"`
	// Voted is set once a whole ballot submission has been accepted.
	Voted bool `json:"voted"`
}

func (view BallotView) Poll(pollID string) (model.Poll, bool) {
	for _, p := range view.Polls {
		if p.ID == pollID {
			return p.Poll, true
		}
	}
	return model.Poll{}, false
}

type VoteAttempt struct {
	Tag      string        `json:"tag"`
	PollID   string        `json:"pollId"`
	Status   voting.Status `json:"status"`
	ProveURL string        `json:"proveUrl,omitempty"`
	VoteID   string        `json:"voteId,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func newVoteAttempt(pending *voting.Pending) VoteAttempt {
	attempt := VoteAttempt{
		Tag:    pending.Request().Tag,
		PollID: pending.PollID(),
	}

	select {
	case <-pending.Done():
		result, err := pending.Result()
		attempt.VoteID = result.VoteID
		if err != nil {
			attempt.Error = err.Error()
		}
	default:
	}
	attempt.Status = pending.Status()

	return attempt
}

// BallotAttempt is a ballot submission, one vote attempt per chosen poll.
type BallotAttempt struct {
	BallotID string        `json:"ballotId"`
	Attempts []VoteAttempt `json:"attempts"`
}
