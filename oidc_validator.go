package enroll

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// OIDCValidator checks ID tokens minted by the directory's own OIDC
// endpoint against its published JWK set. The gateway trusts a validated
// ID token as proof that the directory authenticated the user, then mints
// its own session rather than passing directory tokens around.
type OIDCValidator struct {
	jwks     *keyfunc.JWKS
	issuer   string
	clientID string
	now      func() time.Time
	logger   Logger
}

type oidcClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string   `json:"preferred_username"`
	Name              string   `json:"name"`
	Groups            []string `json:"groups"`
}

type OIDCValidatorOption func(*OIDCValidator)

func WithOIDCClock(now func() time.Time) OIDCValidatorOption {
	return func(v *OIDCValidator) {
		if now != nil {
			v.now = now
		}
	}
}

func WithOIDCLogger(logger Logger) OIDCValidatorOption {
	return func(v *OIDCValidator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewOIDCValidator fetches the directory's JWK set and keeps it refreshed
// in the background until Close is called.
func NewOIDCValidator(jwksURL, issuer, clientID string, opts ...OIDCValidatorOption) (*OIDCValidator, error) {
	validator := &OIDCValidator{
		issuer:   issuer,
		clientID: clientID,
		now:      time.Now,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(validator)
		}
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			validator.logger.Error("failed to refresh directory JWK set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to fetch directory JWK set").
			WithMetadata(map[string]any{"url": jwksURL})
	}

	validator.jwks = jwks
	return validator, nil
}

// Validate parses and verifies an ID token and maps it onto the identity
// shape the session layer consumes. Errors follow the same taxonomy as the
// session tokens: malformed, signature mismatch, or expired.
func (v *OIDCValidator) Validate(idToken string) (*DirectoryIdentity, error) {
	claims := &oidcClaims{}

	_, err := jwt.ParseWithClaims(idToken, claims, v.jwks.Keyfunc,
		jwt.WithTimeFunc(v.now),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.clientID),
	)
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

	if claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Subject
	}

	return &DirectoryIdentity{
		Subject:     claims.Subject,
		Username:    username,
		DisplayName: claims.Name,
		Groups:      claims.Groups,
	}, nil
}

// Close stops the background JWK refresh.
func (v *OIDCValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
