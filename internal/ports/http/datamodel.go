package http

import "poll-voting/internal/model"

type ballotsResponse struct {
	Ballots []model.Ballot `json:"ballots"`
}
