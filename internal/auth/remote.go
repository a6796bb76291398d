package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"poll-voting/internal/model"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const defaultCacheSize = 1024

// RemoteVerifier asks an external verification service about a token and
// remembers successful answers until the credential expires.
type RemoteVerifier struct {
	url    string
	client *http.Client
	cache  *lru.Cache[string, VerifiedCredential]
	logger *zap.Logger
	now    func() time.Time
}

func NewRemoteVerifier(logger *zap.Logger, url string, client *http.Client) (*RemoteVerifier, error) {
	cache, err := lru.New[string, VerifiedCredential](defaultCacheSize)
	if err != nil {
		return nil, errors.New("failed to create the credential cache: " + err.Error())
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &RemoteVerifier{
		url:    url,
		client: client,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (v *RemoteVerifier) Verify(ctx context.Context, rawToken string) (VerifiedCredential, error) {
	if credential, ok := v.cache.Get(rawToken); ok {
		if credential.Expiry.IsZero() || v.now().Before(credential.Expiry) {
			return credential, nil
		}
		v.cache.Remove(rawToken)
	}

	credential, err := v.verifyRemote(ctx, rawToken)
	if err != nil {
		return VerifiedCredential{}, err
	}

	v.cache.Add(rawToken, credential)
	return credential, nil
}

func (v *RemoteVerifier) verifyRemote(ctx context.Context, rawToken string) (VerifiedCredential, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, nil)
	if err != nil {
		return VerifiedCredential{}, err
	}
	r.Header.Add("Authorization", "Bearer "+rawToken)

	resp, err := v.client.Do(r)
	if err != nil {
		v.logger.Warn("credential verification service unreachable", zap.String("url", v.url), zap.Error(err))
		return VerifiedCredential{}, model.NetworkError(err)
	}

	defer resp.Body.Close()
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return VerifiedCredential{}, model.NetworkError(errors.New("reading response error: " + err.Error()))
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return VerifiedCredential{}, fmt.Errorf("%w: rejected by the verification service", model.ErrInvalidCredential)
	}

	if !isResponseSuccess(resp.StatusCode) {
		return VerifiedCredential{}, &model.ServerError{StatusCode: resp.StatusCode, Body: string(responseBody)}
	}

	var unmarshalled struct {
		GroupURL string `json:"groupUrl"`
		Expiry   int64  `json:"exp"`
	}
	if err := json.Unmarshal(responseBody, &unmarshalled); err != nil {
		return VerifiedCredential{}, fmt.Errorf("%w: failed to unmarshal the response: %s", model.ErrInvalidCredential, err.Error())
	}
	if unmarshalled.GroupURL == "" {
		return VerifiedCredential{}, fmt.Errorf("%w: groupUrl is missing", model.ErrInvalidCredential)
	}

	credential := VerifiedCredential{GroupURL: unmarshalled.GroupURL}
	if unmarshalled.Expiry > 0 {
		credential.Expiry = time.Unix(unmarshalled.Expiry, 0)
	}

	return credential, nil
}

func isResponseSuccess(responseCode int) bool {
	return responseCode >= 200 && responseCode < 300
}
