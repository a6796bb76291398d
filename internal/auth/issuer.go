package auth

import (
	"errors"
	"time"

	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// Issuer signs access tokens for a verified group membership.
type Issuer struct {
	signer jose.Signer
	now    func() time.Time
}

func NewIssuer(secret string) (Issuer, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return Issuer{}, errors.New("failed to create the token signer: " + err.Error())
	}

	return Issuer{signer: signer, now: time.Now}, nil
}

// Issue returns a compact token carrying groupURL, valid for ttl. A zero ttl gives a token without expiry.
func (i Issuer) Issue(groupURL string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := jwt.Claims{
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.Expiry = jwt.NewNumericDate(now.Add(ttl))
	}

	token, err := jwt.Signed(i.signer).Claims(claims).Claims(groupClaims{GroupURL: groupURL}).CompactSerialize()
	if err != nil {
		return "", errors.New("failed to sign the token: " + err.Error())
	}

	return token, nil
}
