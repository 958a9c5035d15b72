package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/messaging-service/internal/domain"
)

// Kind classifies why a request failed authentication or authorization.
type Kind string

const (
	KindNoToken      Kind = "NoToken"
	KindMalformed    Kind = "Malformed"
	KindBadSignature Kind = "BadSignature"
	KindExpired      Kind = "Expired"
	KindForbidden    Kind = "Forbidden"
)

// VerificationError reports why a token was rejected.
type VerificationError struct {
	Kind Kind
	Err  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Claims describes the JWT payload.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens against a fixed signing key.
type TokenVerifier struct {
	secret []byte
	clock  Clock
}

// NewTokenVerifier builds a verifier. A nil clock uses SystemClock.
func NewTokenVerifier(secret string, clock Clock) *TokenVerifier {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenVerifier{secret: []byte(secret), clock: clock}
}

// Verify checks structure, then signature, then expiry, and returns the
// identity carried by the token. A token whose expiry equals now is expired.
func (v *TokenVerifier) Verify(tokenStr string) (domain.Identity, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return domain.Identity{}, &VerificationError{Kind: KindMalformed, Err: errors.New("empty token")}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.clock.Now),
	)

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}); err != nil {
		return domain.Identity{}, &VerificationError{Kind: classifyParseError(err), Err: err}
	}

	// iat <= now < exp already holds here, so exp > iat needs no extra check.
	if claims.Subject == "" {
		return domain.Identity{}, &VerificationError{Kind: KindMalformed, Err: errors.New("missing subject")}
	}

	return domain.Identity{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

func classifyParseError(err error) Kind {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return KindMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return KindBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return KindExpired
	default:
		return KindMalformed
	}
}

// TokenIssuer signs tokens for the login flow.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  Clock
}

// NewTokenIssuer builds an issuer. Non-positive ttl defaults to one hour.
func NewTokenIssuer(secret string, ttl time.Duration, clock Clock) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: clock}
}

// Issue signs a token for identity and returns it with its expiry.
func (i *TokenIssuer) Issue(identity domain.Identity) (string, time.Time, error) {
	now := i.clock.Now()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		Email: identity.Email,
		Role:  identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}
