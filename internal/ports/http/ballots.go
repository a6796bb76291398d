package http

import (
	"net/http"

	"poll-voting/internal/ports/http/middleware/auth"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (ser *Server) getBallots(w http.ResponseWriter, r *http.Request) {
	voter, _ := auth.VoterFromContext(r.Context())

	ballots, err := ser.app.Ballots(r.Context(), voter.Credential, voter.Role)
	if err != nil {
		ser.appError(w, "getting the ballots failed", err)
		return
	}

	ser.writeJSON(w, http.StatusOK, ballotsResponse{Ballots: ballots})
}

func (ser *Server) getBallot(w http.ResponseWriter, r *http.Request) {
	voter, _ := auth.VoterFromContext(r.Context())
	ballotID := normalize(mux.Vars(r)["ballotID"])
	if ballotID == "" {
		ser.badRequest(w, "ballot ID is missing")
		return
	}

	ser.logger.Debug("getting the ballot", zap.String("ballotID", ballotID), zap.String("role", voter.Role.String()))

	view, err := ser.app.Ballot(r.Context(), voter.Credential, voter.Role, ballotID)
	if err != nil {
		ser.appError(w, "getting the ballot failed", err)
		return
	}

	ser.writeJSON(w, http.StatusOK, view)
}
