// Package pollserver talks to the external poll server that stores ballots and accepts votes.
package pollserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"poll-voting/internal/model"

	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(logger *zap.Logger, baseURL string, client *http.Client) Client {
	if client == nil {
		client = http.DefaultClient
	}

	return Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

type ballotPollsResponse struct {
	Ballot model.Ballot `json:"ballot"`
	Polls  []model.Poll `json:"polls"`
}

type ballotsResponse struct {
	Ballots []model.Ballot `json:"ballots"`
}

// FetchBallotPolls returns the ballot with its polls in fetch order.
func (c Client) FetchBallotPolls(ctx context.Context, credential, ballotID string) (model.Ballot, error) {
	var response ballotPollsResponse

	if err := c.do(ctx, http.MethodGet, "/ballot-polls/"+url.PathEscape(ballotID), credential, nil, &response); err != nil {
		return model.Ballot{}, err
	}

	ballot := response.Ballot
	ballot.Polls = response.Polls
	if ballot.ID == "" {
		ballot.ID = ballotID
	}

	return ballot, nil
}

func (c Client) SubmitVote(ctx context.Context, credential string, submission model.VoteSubmission) (model.VoteResult, error) {
	var result model.VoteResult

	if err := c.do(ctx, http.MethodPost, "/vote", credential, submission, &result); err != nil {
		return model.VoteResult{}, err
	}
	if result.PollID == "" {
		result.PollID = submission.PollID
	}

	return result, nil
}

func (c Client) ListBallots(ctx context.Context, credential string) ([]model.Ballot, error) {
	var response ballotsResponse

	if err := c.do(ctx, http.MethodGet, "/ballots", credential, nil, &response); err != nil {
		return nil, err
	}

	return response.Ballots, nil
}

func (c Client) do(ctx context.Context, method, path, credential string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.New("failed to marshal the request: " + err.Error())
		}
		reader = bytes.NewReader(data)
	}

	r, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.New("failed to create the request: " + err.Error())
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		r.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.client.Do(r)
	if err != nil {
		c.logger.Warn("poll server unreachable", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return model.NetworkError(err)
	}

	defer resp.Body.Close()
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NetworkError(err)
	}

	if resp.StatusCode == http.StatusForbidden {
		c.logger.Debug("poll server rejected the credential", zap.String("path", path))
		return model.ErrCredentialRevoked
	}
	if !isResponseSuccess(resp.StatusCode) {
		c.logger.Debug("poll server error", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("body", string(responseBody)))
		return &model.ServerError{StatusCode: resp.StatusCode, Body: string(responseBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return &model.ServerError{StatusCode: resp.StatusCode, Body: "failed to decode the response: " + err.Error()}
	}

	return nil
}

func isResponseSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
