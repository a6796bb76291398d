package model

import "time"

// Poll as returned by the poll server. The last option may be an order sentinel,
// see package ballot.
type Poll struct {
	ID             string    `json:"id"`
	Body           string    `json:"body"`
	Options        []string  `json:"options"`
	VoterGroupURLs []string  `json:"voterSemaphoreGroupUrls"`
	Expiry         time.Time `json:"expiry"`
	BallotID       string    `json:"ballotURL,omitempty"`
	Votes          []int     `json:"votes,omitempty"`
}

// Clone returns a copy not sharing any slice with the original.
func (poll Poll) Clone() Poll {
	poll.Options = append([]string(nil), poll.Options...)
	poll.VoterGroupURLs = append([]string(nil), poll.VoterGroupURLs...)
	poll.Votes = append([]int(nil), poll.Votes...)
	return poll
}

// VoterGroupURL is the anonymity group the proof for this poll is requested for.
func (poll Poll) VoterGroupURL() (string, bool) {
	if len(poll.VoterGroupURLs) == 0 || poll.VoterGroupURLs[0] == "" {
		return "", false
	}
	return poll.VoterGroupURLs[0], true
}

// ValidOption reports whether idx points at one of the poll options.
func (poll Poll) ValidOption(idx int) bool {
	return idx >= 0 && idx < len(poll.Options)
}

// Ballot is a named set of polls sharing an expiry and the eligible voter groups.
type Ballot struct {
	ID             string         `json:"ballotId"`
	URL            string         `json:"ballotURL"`
	Title          string         `json:"ballotTitle"`
	Description    string         `json:"ballotDescription"`
	Category       BallotCategory `json:"ballotType"`
	CreatedAt      time.Time      `json:"createdAt"`
	Expiry         time.Time      `json:"expiry"`
	VoterGroupURLs []string       `json:"voterSemaphoreGroupUrls"`
	Polls          []Poll         `json:"polls,omitempty"`
}

func (ballot Ballot) Expired(now time.Time) bool {
	return !ballot.Expiry.IsZero() && ballot.Expiry.Before(now)
}
