package enroll

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// SessionManager mints and validates session tokens. It is stateless after
// construction; the only per-request collaborator call is the directory
// membership check in RequireAdmin.
type SessionManager struct {
	tokens     TokenService
	directory  Directory
	lifetime   time.Duration
	issuer     string
	audience   []string
	adminGroup string
	now        func() time.Time
	logger     Logger
	sink       ActivitySink
}

var _ Sessioner = (*SessionManager)(nil)

type SessionManagerOption func(*SessionManager)

// WithSessionClock overrides the time source used when minting.
func WithSessionClock(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSessionLogger replaces the default logger.
func WithSessionLogger(logger Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSessionActivitySink configures an ActivitySink for session events.
func WithSessionActivitySink(sink ActivitySink) SessionManagerOption {
	return func(m *SessionManager) {
		m.sink = normalizeActivitySink(sink)
	}
}

// NewSessionManager wires a manager to the token service and the directory
// collaborator using the configured session lifetime and admin group.
func NewSessionManager(tokens TokenService, directory Directory, cfg Config, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		tokens:     tokens,
		directory:  directory,
		lifetime:   cfg.GetSessionDuration(),
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		adminGroup: cfg.GetAdminGroup(),
		now:        time.Now,
		logger:     defLogger{},
		sink:       noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// IssueSession mints a signed token for a directory-authenticated identity.
// The identity is opaque here; whatever the directory reported as subject
// goes into the token unchanged.
func (m *SessionManager) IssueSession(ctx context.Context, identity DirectoryIdentity) (string, error) {
	if identity.Subject == "" {
		return "", errors.New("identity subject is required", errors.CategoryBadInput)
	}

	now := m.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   identity.Subject,
			Audience:  jwt.ClaimStrings(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
	}

	token, err := m.tokens.Sign(claims)
	if err != nil {
		return "", err
	}

	m.emit(ctx, ActivityEventSessionIssued, identity.Subject, map[string]any{
		"username": identity.Username,
	})

	return token, nil
}

// Validate verifies the token and returns the embedded session. Validity
// depends only on the signature and the embedded expiry, never on
// server-side records.
func (m *SessionManager) Validate(token string) (*SessionObject, error) {
	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	return sessionFromClaims(claims)
}

// RequireAdmin re-derives authorization from the directory on every call
// instead of trusting anything embedded in the token, so revoking admin
// membership takes effect on the next request.
func (m *SessionManager) RequireAdmin(ctx context.Context, session *SessionObject) error {
	if session == nil || session.Subject == "" {
		return ErrNotAdmin
	}

	ok, err := m.directory.IsMember(ctx, session.Subject, m.adminGroup)
	if err != nil {
		m.logger.Error("admin membership check failed for %s: %s", session.Subject, err)
		return err
	}

	if !ok {
		m.logger.Warn("admin access denied for %s: not in %s", session.Subject, m.adminGroup)
		return ErrNotAdmin
	}

	return nil
}

func (m *SessionManager) emit(ctx context.Context, eventType ActivityEventType, subject string, metadata map[string]any) {
	sink := normalizeActivitySink(m.sink)
	event := ActivityEvent{
		EventType:  eventType,
		Subject:    subject,
		Metadata:   metadata,
		OccurredAt: m.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
