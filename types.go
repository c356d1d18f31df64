package enroll

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the options the enrollment core consumes directly.
type Config interface {
	GetSigningSecret() string
	GetPreviousSigningSecrets() []string
	GetDataSecret() string
	GetSessionDuration() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetAdminGroup() string
	GetDirectoryURL() string
	GetDirectoryToken() string
	GetSweepInterval() time.Duration
}

// Person is a directory account as the gateway sees it.
type Person struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email,omitempty"`
	Groups      []string `json:"groups,omitempty"`
}

// ResetLink is a directory-issued credential bootstrap URL for a person.
type ResetLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewPerson carries the attributes needed to create a directory account.
type NewPerson struct {
	Username    string
	DisplayName string
	Email       string
}

// Directory is the external identity system that owns user and group
// records. The gateway only consumes it; transport and protocol belong to
// the implementation.
type Directory interface {
	ListPersons(ctx context.Context) ([]Person, error)
	GetPerson(ctx context.Context, id string) (*Person, error)
	CreatePerson(ctx context.Context, person NewPerson) error
	DeletePerson(ctx context.Context, id string) error
	AddGroupMember(ctx context.Context, group, userID string) error
	RemoveGroupMember(ctx context.Context, group, userID string) error
	IsMember(ctx context.Context, userID, group string) (bool, error)
	CredentialResetLink(ctx context.Context, userID string) (*ResetLink, error)
}

// DirectoryIdentity is what the external login flow hands back after the
// directory authenticated a user.
type DirectoryIdentity struct {
	Subject     string
	Username    string
	DisplayName string
	Groups      []string
	AccessToken string
}

// IdentityExchanger models the OAuth2/OIDC authorization-code exchange with
// the directory's own auth endpoint. The exchange itself is an external
// collaborator; the core only needs its result.
type IdentityExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*DirectoryIdentity, error)
}

// Sessioner issues and validates signed session credentials.
type Sessioner interface {
	IssueSession(ctx context.Context, identity DirectoryIdentity) (string, error)
	Validate(token string) (*SessionObject, error)
	RequireAdmin(ctx context.Context, session *SessionObject) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ENROLL "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ENROLL "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ENROLL "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ENROLL "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
