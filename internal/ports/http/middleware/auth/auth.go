package auth

import (
	"context"
	"errors"
	"net/http"

	"poll-voting/internal/auth"
	"poll-voting/internal/model"
	"poll-voting/internal/policy"

	"go.uber.org/zap"
)

type contextKey string

const (
	credentialKey contextKey = "credential"
	roleKey       contextKey = "role"
	groupURLKey   contextKey = "groupUrl"
)

// Voter is the caller as resolved from its access token.
type Voter struct {
	Credential string
	Role       model.Role
	GroupURL   string
}

type TokenValidator struct {
	verifier auth.CredentialVerifier
	roles    policy.RolePolicy
	logger   *zap.Logger
}

func NewTokenValidator(logger *zap.Logger, verifier auth.CredentialVerifier, roles policy.RolePolicy) TokenValidator {
	return TokenValidator{
		verifier: verifier,
		roles:    roles,
		logger:   logger,
	}
}

// ValidateGetRole rejects requests without a valid credential of a known group
// and puts the voter into the request context.
func (t TokenValidator) ValidateGetRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ParseBearer(r.Header.Get("Authorization"))
		if err != nil {
			t.authError(w, http.StatusUnauthorized, err)
			return
		}

		credential, err := t.verifier.Verify(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, model.ErrNetwork):
				t.authError(w, http.StatusServiceUnavailable, err)
				return
			case errors.Is(err, model.ErrServer):
				t.authError(w, http.StatusBadGateway, err)
				return
			}
			t.authError(w, http.StatusForbidden, errors.New("auth token validation: "+err.Error()))
			return
		}

		role, ok := t.roles.ResolveRole(credential.GroupURL)
		if !ok {
			t.authError(w, http.StatusForbidden, errors.New(model.ErrUnknownGroup.Error()+": "+credential.GroupURL))
			return
		}

		// add the voter to the request context
		newCtx := context.WithValue(r.Context(), credentialKey, token)
		newCtx = context.WithValue(newCtx, roleKey, role)
		newCtx = context.WithValue(newCtx, groupURLKey, credential.GroupURL)

		next.ServeHTTP(w, r.WithContext(newCtx))
	})
}

// VoterFromContext returns the voter stored by ValidateGetRole.
func VoterFromContext(ctx context.Context) (Voter, bool) {
	credential, ok := ctx.Value(credentialKey).(string)
	if !ok {
		return Voter{}, false
	}
	role, _ := ctx.Value(roleKey).(model.Role)
	groupURL, _ := ctx.Value(groupURLKey).(string)

	return Voter{Credential: credential, Role: role, GroupURL: groupURL}, true
}

func (t TokenValidator) authError(w http.ResponseWriter, status int, err error) {
	t.logger.Warn(err.Error(), zap.Int("status", status))
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}
