package enroll

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims carried by a session token. The subject is
// the directory-supplied identity and is opaque to this layer. Group
// membership is deliberately NOT a claim: it is re-derived from the
// directory on every request (see Sessioner.RequireAdmin), so a membership
// change does not require reissuing sessions.
type SessionClaims struct {
	jwt.RegisteredClaims
	Username    string `json:"preferred_username,omitempty"`
	DisplayName string `json:"name,omitempty"`
}

// Subject returns the directory identity the session was minted for.
func (c *SessionClaims) UserID() string {
	return c.RegisteredClaims.Subject
}

// Expires returns the embedded expiry, zero when absent.
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the embedded issuance time, zero when absent.
func (c *SessionClaims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
