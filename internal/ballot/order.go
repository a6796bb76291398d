// Package ballot restores the organizer's poll order of a fetched ballot.
//
// The poll server keeps no order attribute, so an ordered ballot carries it in
// the options: the last option of every poll is a sentinel "poll-order-<N>".
// This package is the only place that knows about the sentinel.
package ballot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"poll-voting/internal/model"

	"go.uber.org/zap"
)

const sentinelPrefix = "poll-order-"

var sentinelPattern = regexp.MustCompile(`^poll-order-\d+$`)

// ErrMissingOrder is returned in strict mode when a slot of an ordered ballot has no poll.
var ErrMissingOrder = fmt.Errorf("%w: poll order is incomplete", model.ErrValidation)

// Policy decides what happens to a slot no poll claims.
type Policy int

const (
	// PolicyStrict fails the whole reconstruction.
	PolicyStrict Policy = iota
	// PolicyBestEffort drops the slot and returns a shorter list.
	PolicyBestEffort
)

func (p Policy) String() string {
	if p == PolicyBestEffort {
		return "best-effort"
	}
	return "strict"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return PolicyStrict, nil
	case "best-effort":
		return PolicyBestEffort, nil
	}
	return PolicyStrict, errors.New("unknown order policy: " + s)
}

func IsSentinel(option string) bool {
	return sentinelPattern.MatchString(option)
}

func Sentinel(idx int) string {
	return sentinelPrefix + strconv.Itoa(idx)
}

type Reconstructor struct {
	policy Policy
	logger *zap.Logger
}

func NewReconstructor(logger *zap.Logger, policy Policy) Reconstructor {
	return Reconstructor{
		policy: policy,
		logger: logger,
	}
}

// Reconstruct orders polls of a fetched ballot without logging.
func Reconstruct(polls []model.Poll, policy Policy) ([]model.Poll, error) {
	return NewReconstructor(zap.NewNop(), policy).Reconstruct(polls)
}

// Reconstruct returns clones of polls in organizer order with the sentinel
// removed. Whether the set is ordered is decided by the first poll only; an
// unordered set comes back in fetch order with every option intact.
func (r Reconstructor) Reconstruct(polls []model.Poll) ([]model.Poll, error) {
	if len(polls) == 0 {
		return []model.Poll{}, nil
	}

	if !IsSentinel(lastOption(polls[0])) {
		out := make([]model.Poll, len(polls))
		for i, poll := range polls {
			out[i] = poll.Clone()
		}
		return out, nil
	}

	out := make([]model.Poll, 0, len(polls))
	var missing []int

	for idx := 0; idx < len(polls); idx++ {
		sentinel := Sentinel(idx)

		found := false
		for _, poll := range polls {
			if lastOption(poll) != sentinel {
				continue
			}

			ordered := poll.Clone()
			ordered.Options = ordered.Options[:len(ordered.Options)-1]
			out = append(out, ordered)
			found = true
			break
		}

		if !found {
			missing = append(missing, idx)
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	r.logger.Warn("poll order has gaps", zap.Ints("missing", missing), zap.Int("polls", len(polls)), zap.String("policy", r.policy.String()))

	if r.policy == PolicyStrict {
		return nil, fmt.Errorf("%w: no poll for positions %v", ErrMissingOrder, missing)
	}

	return out, nil
}

// EncodeOrder returns clones of polls with the sentinel of their position appended.
func EncodeOrder(polls []model.Poll) []model.Poll {
	out := make([]model.Poll, len(polls))
	for i, poll := range polls {
		out[i] = poll.Clone()
		out[i].Options = append(out[i].Options, Sentinel(i))
	}
	return out
}

func lastOption(poll model.Poll) string {
	if len(poll.Options) == 0 {
		return ""
	}
	return poll.Options[len(poll.Options)-1]
}
