package enroll

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService signs and verifies session claims. It holds no mutable state
// after construction and needs no locking.
type TokenService interface {
	Sign(claims *SessionClaims) (string, error)
	Verify(token string) (*SessionClaims, error)
}

// TokenServiceImpl implements TokenService on HMAC-SHA256 JWTs. The newest
// key signs; every key in the store's rotation window verifies.
type TokenServiceImpl struct {
	signingKey []byte
	verifyKeys [][]byte
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
	logger     Logger
}

type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock overrides the time source used during verification.
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger replaces the default logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a TokenService backed by the secret store's
// session keys.
func NewTokenService(secrets *SecretStore, issuer string, audience []string, opts ...TokenServiceOption) *TokenServiceImpl {
	ts := &TokenServiceImpl{
		signingKey: secrets.SessionSigningKey(),
		verifyKeys: secrets.SessionVerifyKeys(),
		issuer:     issuer,
		audience:   jwt.ClaimStrings(audience),
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Sign serializes the claims and appends the keyed MAC. The output is a
// compact JWT, independently verifiable without server-side state.
func (ts *TokenServiceImpl) Sign(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Verify recomputes the MAC under each accepted key and checks the embedded
// expiry. The three failure modes stay distinct: ErrTokenMalformed for
// structural parse failures, ErrTokenSignature for an unauthenticated
// payload, ErrTokenExpired for an authenticated but lapsed one.
func (ts *TokenServiceImpl) Verify(raw string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	for _, key := range ts.verifyKeys {
		claims, err := ts.verifyWithKey(raw, key, parserOptions)
		if err == nil {
			return claims, nil
		}
		// An older rotation key may still authenticate this token.
		if errors.Is(err, ErrTokenSignature) {
			continue
		}
		return nil, err
	}

	return nil, ErrTokenSignature
}

func (ts *TokenServiceImpl) verifyWithKey(raw string, key []byte, parserOptions []jwt.ParserOption) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token verify encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token verify could not decode claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
