// Package voting runs vote attempts: from the selected option to the accepted
// anonymous vote.
package voting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"poll-voting/internal/dedup"
	"poll-voting/internal/model"
	"poll-voting/internal/relay"
	"poll-voting/internal/signal"

	"go.uber.org/zap"
)

// VoteSubmitter is the vote acceptance endpoint.
type VoteSubmitter interface {
	SubmitVote(ctx context.Context, credential string, submission model.VoteSubmission) (model.VoteResult, error)
}

type Coordinator struct {
	logger       *zap.Logger
	voted        *dedup.Set
	server       VoteSubmitter
	agent        relay.Agent
	returnURL    func(tag string) string
	proofTimeout time.Duration

	mu        sync.Mutex
	pending   map[string]*Pending
	observers []func(model.VoteResult)
}

type Option func(*Coordinator)

// WithProofTimeout limits how long an attempt waits for the proof. Zero waits until cancelled.
func WithProofTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.proofTimeout = timeout
	}
}

// WithReturnURL sets the address the proving agent sends the proof back to.
func WithReturnURL(returnURL func(tag string) string) Option {
	return func(c *Coordinator) {
		c.returnURL = returnURL
	}
}

func NewCoordinator(logger *zap.Logger, voted *dedup.Set, server VoteSubmitter, agent relay.Agent, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:  logger,
		voted:   voted,
		server:  server,
		agent:   agent,
		pending: make(map[string]*Pending),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// OnVoted registers an observer called after every accepted vote.
func (c *Coordinator) OnVoted(observer func(model.VoteResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, observer)
}

func (c *Coordinator) Voted(pollID string) bool {
	return c.voted.Contains(pollID)
}

// MarkVoted records id as voted on this client. Ballots are marked once every
// chosen poll has been accepted.
func (c *Coordinator) MarkVoted(ctx context.Context, id string) error {
	return c.voted.Add(ctx, id)
}

// Pending returns the attempt in flight for pollID.
func (c *Coordinator) Pending(pollID string) (*Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[pollID]
	return p, ok
}

// SubmitVote runs a whole attempt and returns once the vote is accepted or the
// attempt failed. A done ctx cancels the attempt.
func (c *Coordinator) SubmitVote(ctx context.Context, credential string, voter model.Role, poll model.Poll, voteIdx int) (model.VoteResult, error) {
	p, err := c.Start(ctx, credential, voter, poll, voteIdx)
	if err != nil {
		return model.VoteResult{}, err
	}

	select {
	case <-p.Done():
	case <-ctx.Done():
		c.Cancel(poll.ID)
		<-p.Done()
	}

	return p.Result()
}

// Start checks the guards, opens the proving agent and leaves the rest of the
// attempt running in the background. Only one attempt per poll may be in flight,
// a second one is rejected.
func (c *Coordinator) Start(ctx context.Context, credential string, voter model.Role, poll model.Poll, voteIdx int) (*Pending, error) {
	if c.voted.Contains(poll.ID) {
		return nil, model.ErrAlreadyVoted
	}

	groupURL, ok := poll.VoterGroupURL()
	if !ok {
		return nil, model.ErrNoVoterGroup
	}

	machine := relay.NewMachine(c.logger, c.agent)
	p := &Pending{
		pollID:  poll.ID,
		machine: machine,
		status:  StatusAwaitingProof,
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	if _, inFlight := c.pending[poll.ID]; inFlight {
		c.mu.Unlock()
		return nil, model.ErrAttemptInFlight
	}
	c.pending[poll.ID] = p
	c.mu.Unlock()

	signalHash, err := signal.BuildSignal(poll.ID, voteIdx)
	if err != nil {
		c.release(p)
		return nil, err
	}
	nullifier := signal.BuildNullifierSeed(poll.ID)

	attempt := relay.Attempt{
		PollID:        poll.ID,
		VoteIdx:       voteIdx,
		GroupURL:      groupURL,
		SignalHash:    signalHash.String(),
		NullifierSeed: nullifier.String(),
	}

	req, err := machine.Begin(ctx, poll, attempt, c.voted.Contains(poll.ID), c.returnURL)
	if err != nil {
		c.release(p)
		return nil, err
	}
	p.mu.Lock()
	p.request = req
	p.mu.Unlock()

	c.logger.Info("vote attempt started", zap.String("pollID", poll.ID), zap.String("tag", req.Tag), zap.String("role", voter.String()))

	submission := model.VoteSubmission{
		PollID:        poll.ID,
		VoterType:     model.VoterTypeAnon,
		VoterRole:     voter,
		VoterGroupURL: groupURL,
		VoteIdx:       voteIdx,
	}
	go c.finish(context.WithoutCancel(ctx), credential, p, submission)

	return p, nil
}

// Deliver routes a relay message to the attempt waiting for its tag.
func (c *Coordinator) Deliver(msg relay.Message) error {
	c.mu.Lock()
	var target *Pending
	for _, p := range c.pending {
		if p.machine.Tag() == msg.Tag {
			target = p
			break
		}
	}
	c.mu.Unlock()

	if target == nil {
		return fmt.Errorf("%w: tag %s", model.ErrNoPendingAttempt, msg.Tag)
	}

	return target.machine.Receive(msg)
}

// Cancel abandons the attempt on pollID while it waits for the proof. An
// attempt already submitting its vote runs to the end.
func (c *Coordinator) Cancel(pollID string) bool {
	p, ok := c.Pending(pollID)
	if !ok || p.machine.State() != relay.StateAwaitingProof {
		return false
	}

	p.machine.Reset()
	return true
}

func (c *Coordinator) finish(ctx context.Context, credential string, p *Pending, submission model.VoteSubmission) {
	result, err := c.complete(ctx, credential, p, submission)
	if err != nil {
		c.logger.Info("vote attempt failed: "+err.Error(), zap.String("pollID", p.pollID))
	}

	c.release(p)
	p.resolve(result, err)
}

func (c *Coordinator) complete(ctx context.Context, credential string, p *Pending, submission model.VoteSubmission) (model.VoteResult, error) {
	waitCtx := ctx
	if c.proofTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.proofTimeout)
		defer cancel()
	}

	if err := p.machine.Wait(waitCtx); err != nil {
		return model.VoteResult{}, err
	}

	proof, err := p.machine.Consume()
	if err != nil {
		return model.VoteResult{}, err
	}

	p.setStatus(StatusSubmitting)
	submission.Proof = proof.PCD

	result, err := c.server.SubmitVote(ctx, credential, submission)
	if err != nil {
		return model.VoteResult{}, err
	}
	if result.PollID == "" {
		result.PollID = submission.PollID
	}

	if err := c.voted.Add(ctx, submission.PollID); err != nil {
		// the server already counted the vote, it stays accepted
		c.logger.Error("failed to remember the vote: "+err.Error(), zap.String("pollID", submission.PollID))
	}

	c.logger.Info("vote accepted", zap.String("pollID", submission.PollID), zap.String("voteID", result.VoteID))

	c.mu.Lock()
	observers := append([]func(model.VoteResult){}, c.observers...)
	c.mu.Unlock()
	for _, observer := range observers {
		observer(result)
	}

	return result, nil
}

func (c *Coordinator) release(p *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending[p.pollID] == p {
		delete(c.pending, p.pollID)
	}
}

type Status string

const (
	StatusAwaitingProof Status = "awaiting-proof"
	StatusSubmitting    Status = "submitting"
	StatusVoted         Status = "voted"
	StatusCancelled     Status = "cancelled"
	StatusFailed        Status = "failed"
)

// Pending is one vote attempt in flight.
type Pending struct {
	pollID  string
	machine *relay.Machine
	request relay.Request
	done    chan struct{}

	mu     sync.Mutex
	status Status
	result model.VoteResult
	err    error
}

func (p *Pending) PollID() string {
	return p.pollID
}

// Request is what the proving agent was opened with.
func (p *Pending) Request() relay.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.request
}

func (p *Pending) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Done is closed once the attempt has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result of the finished attempt, model.ErrAttemptInFlight while it still runs.
func (p *Pending) Result() (model.VoteResult, error) {
	select {
	case <-p.done:
	default:
		return model.VoteResult{}, model.ErrAttemptInFlight
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, p.err
}

func (p *Pending) setStatus(status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

func (p *Pending) resolve(result model.VoteResult, err error) {
	p.mu.Lock()
	switch {
	case err == nil:
		p.status = StatusVoted
	case errors.Is(err, model.ErrAttemptCancelled):
		p.status = StatusCancelled
	default:
		p.status = StatusFailed
	}
	p.result = result
	p.err = err
	p.mu.Unlock()

	close(p.done)
}
