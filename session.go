package enroll

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionObject is the decoded view of a validated session token. It holds
// no authorization state: group checks go back to the directory.
type SessionObject struct {
	Subject     string     `json:"subject"`
	Username    string     `json:"username,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	Issuer      string     `json:"issuer,omitempty"`
	Audience    []string   `json:"audience,omitempty"`
	IssuedAt    *time.Time `json:"issued_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (s *SessionObject) GetSubject() string {
	return s.Subject
}

func (s *SessionObject) GetSubjectUUID() (uuid.UUID, error) {
	return uuid.Parse(s.Subject)
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetExpiresAt() *time.Time {
	return s.ExpiresAt
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"subject=%s user=%s iss=%s iat=%s",
		s.Subject,
		s.Username,
		s.Issuer,
		issuedAt,
	)
}

// sessionFromClaims converts verified claims into a SessionObject.
func sessionFromClaims(claims *SessionClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrTokenMalformed
	}

	session := &SessionObject{
		Subject:     claims.RegisteredClaims.Subject,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		Issuer:      claims.RegisteredClaims.Issuer,
		Audience:    claims.RegisteredClaims.Audience,
	}

	if claims.RegisteredClaims.IssuedAt != nil {
		iat := claims.RegisteredClaims.IssuedAt.Time
		session.IssuedAt = &iat
	}

	if claims.RegisteredClaims.ExpiresAt != nil {
		exp := claims.RegisteredClaims.ExpiresAt.Time
		session.ExpiresAt = &exp
	}

	return session, nil
}
