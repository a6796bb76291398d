package pollserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"poll-voting/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchBallotPolls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ballot-polls/b-1", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		w.Write([]byte(`{
			"ballot": {"ballotId": "b-1", "ballotTitle": "Lunch", "ballotType": "straw-poll",
				"expiry": "2030-01-01T00:00:00Z", "voterSemaphoreGroupUrls": ["https://server/groups/1"]},
			"polls": [{"id": "p-1", "body": "Pizza?", "options": ["yes", "no", "poll-order-0"],
				"voterSemaphoreGroupUrls": ["https://server/groups/1"], "votes": [1, 2, 0]}]
		}`))
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), srv.URL+"/", srv.Client())
	ballot, err := client.FetchBallotPolls(context.TODO(), "token", "b-1")
	require.NoError(t, err)

	assert.Equal(t, "b-1", ballot.ID)
	assert.Equal(t, "Lunch", ballot.Title)
	assert.Equal(t, model.CategoryStrawPoll, ballot.Category)
	require.Len(t, ballot.Polls, 1)
	assert.Equal(t, []string{"yes", "no", "poll-order-0"}, ballot.Polls[0].Options)
	assert.Equal(t, []int{1, 2, 0}, ballot.Polls[0].Votes)
}

func TestSubmitVote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/vote", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{
			"pollId":                 "p-1",
			"voterType":              "ANON",
			"voterSemaphoreGroupUrl": "https://server/groups/1",
			"voteIdx":                float64(1),
			"proof":                  "{}",
		}, body)

		w.Write([]byte(`{"id": "v-1"}`))
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), srv.URL, srv.Client())
	result, err := client.SubmitVote(context.TODO(), "token", model.VoteSubmission{
		PollID:        "p-1",
		VoterType:     model.VoterTypeAnon,
		VoterRole:     model.RoleParticipant,
		VoterGroupURL: "https://server/groups/1",
		VoteIdx:       1,
		Proof:         "{}",
	})
	require.NoError(t, err)
	assert.Equal(t, model.VoteResult{VoteID: "v-1", PollID: "p-1"}, result)
}

func TestListBallots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ballots", r.URL.Path)
		w.Write([]byte(`{"ballots": [{"ballotId": "a", "ballotType": "advisory-vote"}, {"ballotId": "b", "ballotType": "organizer-only"}]}`))
	}))
	defer srv.Close()

	ballots, err := NewClient(zap.NewNop(), srv.URL, srv.Client()).ListBallots(context.TODO(), "token")
	require.NoError(t, err)
	require.Len(t, ballots, 2)
	assert.Equal(t, model.CategoryOrganizerOnly, ballots[1].Category)
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{name: "forbidden", status: http.StatusForbidden, body: "revoked", kind: model.ErrCredentialRevoked},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", kind: model.ErrServer},
		{name: "bad request", status: http.StatusBadRequest, body: "already voted", kind: model.ErrServer},
		{name: "undecodable", status: http.StatusOK, body: "<html>", kind: model.ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(zap.NewNop(), srv.URL, srv.Client()).FetchBallotPolls(context.TODO(), "token", "b")
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestServerErrorKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("nullifier already used"))
	}))
	defer srv.Close()

	_, err := NewClient(zap.NewNop(), srv.URL, srv.Client()).SubmitVote(context.TODO(), "token", model.VoteSubmission{PollID: "p"})

	var serverErr *model.ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, http.StatusBadRequest, serverErr.StatusCode)
	assert.Equal(t, "nullifier already used", serverErr.Body)
	assert.False(t, errors.Is(err, model.ErrAuth))
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewClient(zap.NewNop(), addr, nil).ListBallots(context.TODO(), "token")
	assert.ErrorIs(t, err, model.ErrNetwork)
}
