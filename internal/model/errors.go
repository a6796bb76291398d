package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error returned by the voting core wraps one of them.
var (
	// ErrAuth: invalid or expired credential, unrecognized group. The caller logs the user out.
	ErrAuth = errors.New("authentication failed")
	// ErrValidation: bad user input or malformed proof. The user can be prompted again.
	ErrValidation = errors.New("validation failed")
	// ErrProtocol: relay message without a matching attempt or in the wrong state. Dropped.
	ErrProtocol = errors.New("relay protocol violation")
	// ErrNetwork: an external endpoint could not be reached.
	ErrNetwork = errors.New("server unavailable")
	// ErrServer: an external endpoint answered with a non-success status.
	ErrServer = errors.New("server error")
)

var (
	ErrMissingCredential = fmt.Errorf("%w: missing credential", ErrAuth)
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", ErrAuth)
	ErrUnknownGroup      = fmt.Errorf("%w: group not recognized", ErrAuth)
	ErrCredentialRevoked = fmt.Errorf("%w: credential no longer valid", ErrAuth)

	ErrInvalidOption    = fmt.Errorf("%w: invalid option selected", ErrValidation)
	ErrAlreadyVoted     = fmt.Errorf("%w: already voted on this poll", ErrValidation)
	ErrAttemptInFlight  = fmt.Errorf("%w: a vote on this poll is already in progress", ErrValidation)
	ErrAttemptCancelled = fmt.Errorf("%w: vote attempt cancelled", ErrValidation)
	ErrMalformedProof   = fmt.Errorf("%w: malformed proof payload", ErrValidation)
	ErrNoVoterGroup     = fmt.Errorf("%w: poll has no voter group", ErrValidation)
	ErrBallotExpired    = fmt.Errorf("%w: ballot has expired", ErrValidation)
	ErrNoPolls          = fmt.Errorf("%w: no polls found in ballot", ErrValidation)
	ErrPollNotFound     = fmt.Errorf("%w: poll not found in ballot", ErrValidation)
	ErrNoChoices        = fmt.Errorf("%w: no option chosen on the ballot", ErrValidation)
	ErrNotVisible       = fmt.Errorf("%w: ballot not visible for this role", ErrAuth)

	ErrNoPendingAttempt = fmt.Errorf("%w: no pending vote attempt", ErrProtocol)
	ErrWrongState       = fmt.Errorf("%w: unexpected state", ErrProtocol)
)

// ServerError is a non-success answer from an external endpoint, the body is kept verbatim.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return "server error: status " + http.StatusText(e.StatusCode) + "; body: " + e.Body
}

func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

// NetworkError wraps a transport failure.
func NetworkError(err error) error {
	return fmt.Errorf("%w: %s", ErrNetwork, err.Error())
}
