package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/artztall/user-service/internal/domain/entity"
)

// ErrInvalidToken is the single error returned for any token that cannot be trusted.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by an access token.
type Claims struct {
	Email    string      `json:"email"`
	UserKind entity.Kind `json:"user_kind"`
	jwt.RegisteredClaims
}

// SubjectID is the account id the token was issued for.
func (c *Claims) SubjectID() string { return c.Subject }

// TokenCodec issues and parses HS256 access tokens. It is built once at startup
// and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenCodec creates a codec. Changing secret invalidates every token issued before.
func NewTokenCodec(secret string, ttl time.Duration, issuer string) *TokenCodec {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

// WithClock returns a copy of the codec that reads time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// TTL is the lifetime of issued tokens.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue signs a token for the given account.
func (c *TokenCodec) Issue(subjectID, email string, kind entity.Kind) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.ttl)
	claims := &Claims{
		Email:    email,
		UserKind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// Parse verifies the signature and expiry of tokenStr. Every failure collapses to ErrInvalidToken.
func (c *TokenCodec) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if _, ok := entity.ParseKind(string(claims.UserKind)); !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
