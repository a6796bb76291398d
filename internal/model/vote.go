package model

// VoterTypeAnon is the only voter type sent with anonymous votes.
const VoterTypeAnon = "ANON"

// VoteSignal is the statement the membership proof is bound to.
type VoteSignal struct {
	PollID  string `json:"pollId"`
	VoteIdx int    `json:"voteIdx"`
}

// VoteSubmission is built once per vote attempt and sent once.
type VoteSubmission struct {
	PollID        string `json:"pollId"`
	VoterType     string `json:"voterType"`
	VoterRole     Role   `json:"-"`
	VoterGroupURL string `json:"voterSemaphoreGroupUrl"`
	VoteIdx       int    `json:"voteIdx"`
	Proof         string `json:"proof"`
}

// VoteResult is the acknowledgement of an accepted vote.
type VoteResult struct {
	VoteID string `json:"id"`
	PollID string `json:"pollId"`
}
