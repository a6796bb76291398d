package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"poll-voting/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRemoteVerifierCachesSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer good", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"groupUrl":"https://server/groups/1"}`))
	}))
	defer srv.Close()

	verifier, err := NewRemoteVerifier(zap.NewNop(), srv.URL, srv.Client())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		credential, err := verifier.Verify(context.TODO(), "good")
		require.NoError(t, err)
		assert.Equal(t, "https://server/groups/1", credential.GroupURL)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemoteVerifierDropsExpiredCacheEntries(t *testing.T) {
	var calls int32
	exp := time.Now().Add(time.Minute).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"groupUrl":"https://server/groups/1","exp":` + strconv.FormatInt(exp, 10) + `}`))
	}))
	defer srv.Close()

	verifier, err := NewRemoteVerifier(zap.NewNop(), srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = verifier.Verify(context.TODO(), "token")
	require.NoError(t, err)

	verifier.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = verifier.Verify(context.TODO(), "token")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRemoteVerifierErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"forbidden", http.StatusForbidden, "", model.ErrInvalidCredential},
		{"unauthorized", http.StatusUnauthorized, "", model.ErrInvalidCredential},
		{"server error", http.StatusBadGateway, "upstream down", model.ErrServer},
		{"missing group", http.StatusOK, `{}`, model.ErrInvalidCredential},
		{"bad json", http.StatusOK, `{`, model.ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			verifier, err := NewRemoteVerifier(zap.NewNop(), srv.URL, srv.Client())
			require.NoError(t, err)

			_, err = verifier.Verify(context.TODO(), "token")
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestRemoteVerifierUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	verifier, err := NewRemoteVerifier(zap.NewNop(), url, nil)
	require.NoError(t, err)

	_, err = verifier.Verify(context.TODO(), "token")
	assert.ErrorIs(t, err, model.ErrNetwork)
}
