// Package relay obtains membership proofs from an external proving agent.
//
// A Machine tracks one vote attempt: Idle -> AwaitingProof when the voter picks
// an option and the agent is opened, AwaitingProof -> ProofReceived when the
// agent answers through the relay channel, ProofReceived -> Idle once the proof
// is consumed. Reset brings the machine back to Idle from any state.
package relay

import (
	"context"
	"fmt"
	"sync"

	"poll-voting/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingProof
	StateProofReceived
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingProof:
		return "awaiting-proof"
	case StateProofReceived:
		return "proof-received"
	}
	return "unknown"
}

// Attempt describes the vote a pending proof request belongs to.
type Attempt struct {
	PollID        string
	VoteIdx       int
	GroupURL      string
	SignalHash    string
	NullifierSeed string
}

type Machine struct {
	mu      sync.Mutex
	logger  *zap.Logger
	agent   Agent
	state   State
	tag     string
	attempt Attempt
	proof   Proof
	failure error
	wake    chan struct{}
}

func NewMachine(logger *zap.Logger, agent Agent) *Machine {
	return &Machine{
		logger: logger,
		agent:  agent,
	}
}

// NewTag returns a fresh correlation tag.
func NewTag() string {
	return uuid.NewString()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Tag of the pending attempt, empty when idle.
func (m *Machine) Tag() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tag
}

func (m *Machine) Attempt() Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Begin moves Idle -> AwaitingProof and opens the agent. The option index must
// be one of the poll options and the poll must not be voted on yet, otherwise
// the machine stays Idle.
func (m *Machine) Begin(ctx context.Context, poll model.Poll, attempt Attempt, alreadyVoted bool, returnURL func(tag string) string) (Request, error) {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return Request{}, fmt.Errorf("%w: begin in state %s", model.ErrWrongState, m.state)
	}
	if !poll.ValidOption(attempt.VoteIdx) {
		m.mu.Unlock()
		return Request{}, model.ErrInvalidOption
	}
	if alreadyVoted {
		m.mu.Unlock()
		return Request{}, model.ErrAlreadyVoted
	}

	m.state = StateAwaitingProof
	m.tag = NewTag()
	m.attempt = attempt
	m.proof = Proof{}
	m.failure = nil
	m.wake = make(chan struct{})

	req := Request{
		GroupURL:      attempt.GroupURL,
		Tag:           m.tag,
		SignalHash:    attempt.SignalHash,
		NullifierSeed: attempt.NullifierSeed,
	}
	if returnURL != nil {
		req.ReturnURL = returnURL(m.tag)
	}
	m.mu.Unlock()

	m.logger.Debug("requesting membership proof", zap.String("pollID", attempt.PollID), zap.String("tag", req.Tag))

	if err := m.agent.ProveMembership(ctx, req); err != nil {
		m.Reset()
		return Request{}, err
	}

	return req, nil
}

// Receive handles a message from the relay channel. Messages for another tag or
// arriving in any state but AwaitingProof are protocol errors and change nothing.
// A payload that cannot be decoded ends the attempt.
func (m *Machine) Receive(msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle {
		return model.ErrNoPendingAttempt
	}
	if msg.Tag != m.tag {
		return fmt.Errorf("%w: tag %s", model.ErrNoPendingAttempt, msg.Tag)
	}
	if m.state != StateAwaitingProof {
		return fmt.Errorf("%w: proof received in state %s", model.ErrWrongState, m.state)
	}

	proof, err := DecodePayload(msg.Payload)
	if err != nil {
		m.failure = err
		m.toIdle()
		return err
	}

	m.proof = proof
	m.state = StateProofReceived
	close(m.wake)

	return nil
}

// Wait suspends until the proof arrives, the attempt is reset or ctx is done.
// A done context resets the machine.
func (m *Machine) Wait(ctx context.Context) error {
	m.mu.Lock()
	wake := m.wake
	m.mu.Unlock()

	if wake == nil {
		return model.ErrNoPendingAttempt
	}

	select {
	case <-wake:
	case <-ctx.Done():
		m.Reset()
		return fmt.Errorf("%w: %s", model.ErrAttemptCancelled, ctx.Err().Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		return m.failure
	}
	if m.state != StateProofReceived {
		return model.ErrAttemptCancelled
	}

	return nil
}

// Consume hands out the received proof once and moves the machine back to Idle.
func (m *Machine) Consume() (Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateProofReceived {
		return Proof{}, fmt.Errorf("%w: consume in state %s", model.ErrWrongState, m.state)
	}

	proof := m.proof
	m.toIdle()
	m.wake = nil

	return proof, nil
}

// Reset abandons the pending attempt, a waiting Wait returns model.ErrAttemptCancelled.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		m.logger.Debug("vote attempt reset", zap.String("pollID", m.attempt.PollID), zap.String("state", m.state.String()))
	}
	m.failure = nil
	m.toIdle()
}

// toIdle must be called with the lock held.
func (m *Machine) toIdle() {
	if m.state == StateAwaitingProof && m.wake != nil {
		close(m.wake)
	}
	m.state = StateIdle
	m.tag = ""
	m.attempt = Attempt{}
	m.proof = Proof{}
}
