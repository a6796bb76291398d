package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"poll-voting/internal/model"

	"go.uber.org/zap"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// VerifiedCredential is what is left of an access token once it was checked.
type VerifiedCredential struct {
	GroupURL string
	Expiry   time.Time
}

type CredentialVerifier interface {
	Verify(ctx context.Context, rawToken string) (VerifiedCredential, error)
}

type groupClaims struct {
	GroupURL string `json:"groupUrl"`
}

// Verifier checks HS256 access tokens signed with the process wide secret.
type Verifier struct {
	secret []byte
	logger *zap.Logger
	now    func() time.Time
}

func NewVerifier(logger *zap.Logger, secret string) Verifier {
	return Verifier{
		secret: []byte(secret),
		logger: logger,
		now:    time.Now,
	}
}

// Verify validates signature and expiry of the token and extracts the group URL claim.
// Every failure is reported as model.ErrInvalidCredential.
func (v Verifier) Verify(_ context.Context, rawToken string) (VerifiedCredential, error) {
	credential, err := v.verify(rawToken)
	if err != nil {
		v.logger.Debug("credential rejected", zap.Error(err))
		return VerifiedCredential{}, err
	}

	return credential, nil
}

func (v Verifier) verify(rawToken string) (VerifiedCredential, error) {
	token, err := jwt.ParseSigned(rawToken)
	if err != nil {
		return VerifiedCredential{}, invalid("failed to parse the token: " + err.Error())
	}

	if len(token.Headers) != 1 || token.Headers[0].Algorithm != string(jose.HS256) {
		return VerifiedCredential{}, invalid("unexpected signing algorithm")
	}

	var (
		claims jwt.Claims
		group  groupClaims
	)
	if err := token.Claims(v.secret, &claims, &group); err != nil {
		return VerifiedCredential{}, invalid("signature verification: " + err.Error())
	}

	if err := claims.ValidateWithLeeway(jwt.Expected{Time: v.now()}, 0); err != nil {
		return VerifiedCredential{}, invalid("claims validation: " + err.Error())
	}

	if group.GroupURL == "" {
		return VerifiedCredential{}, invalid("groupUrl claim is missing")
	}

	credential := VerifiedCredential{GroupURL: group.GroupURL}
	if claims.Expiry != nil {
		credential.Expiry = claims.Expiry.Time()
	}

	return credential, nil
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", model.ErrMissingCredential
	}

	return parts[1], nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", model.ErrInvalidCredential, reason)
}
