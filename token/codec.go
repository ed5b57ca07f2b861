// Package token issues and validates the short-lived session tokens carried in
// the session cookie. Tokens are HS256 JWTs holding the user id as subject.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-session-auth/internal/errors"
)

// DefaultTTL is the lifetime of an issued session token.
const DefaultTTL = 30 * time.Minute

var (
	// ErrMalformed is returned when a token cannot be parsed or its signature
	// does not verify.
	ErrMalformed = fmt.Errorf("malformed token: %w", autherrors.ErrInvalidToken)
	// ErrExpired is returned when the validation time is past exp.
	ErrExpired = fmt.Errorf("token expired: %w", autherrors.ErrExpiredToken)
	// ErrMissingSubject is returned for a verified token with no subject.
	ErrMissingSubject = fmt.Errorf("token has no subject: %w", autherrors.ErrInvalidToken)
)

// Token is a signed session token and the times it was minted with.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec creates and validates session tokens.
type Codec struct {
	signer Signer
	ttl    time.Duration
}

// NewCodec creates a Codec signing with secret. A ttl <= 0 uses DefaultTTL.
func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("[NewCodec] signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{
		signer: NewHMACSigner(secret),
		ttl:    ttl,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subject, issued at now and expiring after the TTL.
func (c *Codec) Issue(subject string, now time.Time) (Token, error) {
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(ceilSecond(now.Add(c.ttl)))

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return Token{}, fmt.Errorf("[Issue] %w", err)
	}

	return Token{
		Value:     signed,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Validate verifies raw and returns its subject. The token is expired only
// once now is strictly after exp, with no leeway. The signing method is
// pinned to the signer's, whatever the token header claims.
func (c *Codec) Validate(raw string, now time.Time) (string, error) {
	claims := &jwt.RegisteredClaims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)

	if _, err := parser.ParseWithClaims(raw, claims, c.signer.GetVerificationKey); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if claims.ExpiresAt == nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, jwt.ErrTokenRequiredClaimMissing)
	}
	if now.After(claims.ExpiresAt.Time) {
		return "", ErrExpired
	}

	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

// ceilSecond rounds t up to a whole second. NumericDate drops sub-second
// precision, so rounding down would end a session before its full TTL.
func ceilSecond(t time.Time) time.Time {
	if down := t.Truncate(time.Second); down.Before(t) {
		return down.Add(time.Second)
	}
	return t
}
