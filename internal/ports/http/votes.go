package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"poll-voting/internal/model"
	"poll-voting/internal/ports/http/middleware/auth"
	"poll-voting/internal/voting"

	"github.com/gorilla/mux"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const maxVoteRequestSize = 1 << 16

const proofReceivedPage = `<!DOCTYPE html><html><body><p>Proof received, you can close this window.</p></body></html>`

func (ser *Server) postVote(w http.ResponseWriter, r *http.Request) {
	voter, _ := auth.VoterFromContext(r.Context())

	params, err := readVoteParams(r)
	if err != nil {
		ser.badRequest(w, err.Error())
		return
	}

	ser.logger.Info("starting a vote", zap.String("pollID", params.PollID), zap.String("ballotID", params.BallotID), zap.String("role", voter.Role.String()))

	attempt, err := ser.app.StartVote(r.Context(), voter.Credential, voter.Role, params.BallotID, params.PollID, *params.VoteIdx)
	if err != nil {
		ser.appError(w, "starting the vote failed", err)
		return
	}

	ser.writeJSON(w, http.StatusAccepted, attempt)
}

func (ser *Server) getVoteStatus(w http.ResponseWriter, r *http.Request) {
	attempt, err := ser.app.VoteStatus(mux.Vars(r)["tag"])
	if err != nil {
		ser.appError(w, "getting the vote status failed", err)
		return
	}

	ser.writeJSON(w, http.StatusOK, attempt)
}

func (ser *Server) cancelVote(w http.ResponseWriter, r *http.Request) {
	if err := ser.app.CancelVote(mux.Vars(r)["pollID"]); err != nil {
		ser.appError(w, "cancelling the vote failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// receiveProof is where the proving agent sends the voter back to, with the proof in the query.
// Only attempts still waiting for their proof accept one.
func (ser *Server) receiveProof(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]
	attempt, err := ser.app.VoteStatus(tag)
	if err != nil {
		ser.appError(w, "unknown vote attempt", err)
		return
	}
	if attempt.Status != voting.StatusAwaitingProof {
		ser.appError(w, "vote attempt is "+string(attempt.Status), model.ErrWrongState)
		return
	}

	proof := r.URL.Query().Get("proof")
	if proof == "" {
		ser.badRequest(w, "proof is missing")
		return
	}

	if err := ser.app.DeliverProof(r.Context(), tag, proof); err != nil {
		ser.appError(w, "delivering the proof failed", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(proofReceivedPage))
}

func (ser *Server) postBallotVotes(w http.ResponseWriter, r *http.Request) {
	voter, _ := auth.VoterFromContext(r.Context())

	params, err := readBallotVoteParams(r)
	if err != nil {
		ser.badRequest(w, err.Error())
		return
	}

	ser.logger.Info("submitting a ballot", zap.String("ballotID", params.BallotID), zap.Int("polls", len(params.Votes)), zap.String("role", voter.Role.String()))

	submission, err := ser.app.SubmitBallot(r.Context(), voter.Credential, voter.Role, params.BallotID, params.Votes)
	if err != nil {
		ser.appError(w, "submitting the ballot failed", err)
		return
	}

	ser.writeJSON(w, http.StatusAccepted, submission)
}

type voteParams struct {
	PollID   string `json:"-"`
	BallotID string `json:"ballotId"`
	VoteIdx  *int   `json:"voteIdx"`
}

func readVoteParams(r *http.Request) (params voteParams, err error) {
	body, readErr := io.ReadAll(io.LimitReader(r.Body, maxVoteRequestSize))
	if readErr != nil {
		return params, errors.New("failed to read the request body: " + readErr.Error())
	}
	if jsonErr := json.Unmarshal(body, &params); jsonErr != nil {
		return params, errors.New("failed to parse the request body: " + jsonErr.Error())
	}

	params.PollID = normalize(mux.Vars(r)["pollID"])
	params.BallotID = normalize(params.BallotID)

	if params.PollID == "" {
		err = multierr.Append(err, errors.New("poll ID is missing"))
	}
	if params.BallotID == "" {
		err = multierr.Append(err, errors.New("ballotId is missing"))
	}
	if params.VoteIdx == nil {
		err = multierr.Append(err, errors.New("voteIdx is missing"))
	}

	return params, err
}

func normalize(s string) string {
	return strings.TrimSpace(s)
}

type ballotVoteParams struct {
	BallotID string         `json:"-"`
	Votes    map[string]int `json:"votes"`
}

func readBallotVoteParams(r *http.Request) (params ballotVoteParams, err error) {
	body, readErr := io.ReadAll(io.LimitReader(r.Body, maxVoteRequestSize))
	if readErr != nil {
		return params, errors.New("failed to read the request body: " + readErr.Error())
	}
	if jsonErr := json.Unmarshal(body, &params); jsonErr != nil {
		return params, errors.New("failed to parse the request body: " + jsonErr.Error())
	}

	params.BallotID = normalize(mux.Vars(r)["ballotID"])
	votes := make(map[string]int, len(params.Votes))
	for pollID, voteIdx := range params.Votes {
		if pollID = normalize(pollID); pollID == "" {
			err = multierr.Append(err, errors.New("poll ID is missing"))
			continue
		}
		votes[pollID] = voteIdx
	}
	params.Votes = votes

	if params.BallotID == "" {
		err = multierr.Append(err, errors.New("ballot ID is missing"))
	}
	if len(params.Votes) == 0 {
		err = multierr.Append(err, errors.New("votes are missing"))
	}

	return params, err
}
