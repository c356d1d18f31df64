package enroll

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Invite pairs a freshly persisted provision link with its signed token.
// The token is what gets handed to the invitee; the record stays behind.
type Invite struct {
	Link  *ProvisionLink `json:"link"`
	Token string         `json:"token"`
}

// EnrollmentResult is what a successful redemption hands back to the new
// user: their account and the directory's credential bootstrap URL.
type EnrollmentResult struct {
	Username  string     `json:"username"`
	LinkID    uuid.UUID  `json:"link_id"`
	ResetLink *ResetLink `json:"reset_link"`
}

// Enroller drives the enrollment flow end to end: invite issuance, token
// verification, atomic link redemption, and directory account creation with
// compensation when the directory side fails.
type Enroller struct {
	repo         RepositoryManager
	directory    Directory
	signer       *LinkSigner
	logger       Logger
	sink         ActivitySink
	attempts     int
	defaultGroup string
}

type EnrollerOption func(*Enroller)

func WithEnrollerLogger(logger Logger) EnrollerOption {
	return func(e *Enroller) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithEnrollerActivitySink(sink ActivitySink) EnrollerOption {
	return func(e *Enroller) {
		e.sink = normalizeActivitySink(sink)
	}
}

// WithDefaultGroup makes every enrolled account a member of the given
// directory group. Empty means no group assignment.
func WithDefaultGroup(group string) EnrollerOption {
	return func(e *Enroller) {
		e.defaultGroup = group
	}
}

// NewEnroller wires the enrollment service.
func NewEnroller(repo RepositoryManager, directory Directory, signer *LinkSigner, opts ...EnrollerOption) *Enroller {
	enroller := &Enroller{
		repo:      repo,
		directory: directory,
		signer:    signer,
		logger:    defLogger{},
		sink:      noopActivitySink{},
		attempts:  3,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(enroller)
		}
	}

	return enroller
}

// CreateInvite mints a provision link and returns it with its signed token.
// A nil maxUses means the link is unbounded until it expires.
func (e *Enroller) CreateInvite(ctx context.Context, ttl time.Duration, maxUses *int) (*Invite, error) {
	if ttl <= 0 {
		return nil, errors.New("invite lifetime must be positive", errors.CategoryBadInput).
			WithMetadata(map[string]any{"ttl": ttl.String()})
	}

	link, err := e.repo.Links().CreateLink(ctx, ttl, maxUses)
	if err != nil {
		return nil, err
	}

	e.emit(ctx, ActivityEvent{
		EventType: ActivityEventLinkCreated,
		LinkID:    link.ID.String(),
		Metadata: map[string]any{
			"expires_at": link.ExpiresAt,
			"max_uses":   maxUses,
		},
	})

	return &Invite{Link: link, Token: e.signer.Sign(link.ID)}, nil
}

// InspectInvite verifies the token and reports the link's current state
// without consuming a use. Intended for the pre-redemption landing page.
func (e *Enroller) InspectInvite(ctx context.Context, token string) (*ProvisionLink, error) {
	id, err := e.signer.Verify(token)
	if err != nil {
		return nil, err
	}
	return e.repo.Links().GetLink(ctx, id)
}

// CompleteEnrollment consumes one use of the invite and creates the
// directory account. If the directory create fails after the redemption
// went through, the use is restored so the invite stays valid. Token and
// link failures are terminal; backend hiccups are retried a bounded number
// of times.
func (e *Enroller) CompleteEnrollment(ctx context.Context, token string, person NewPerson) (*EnrollmentResult, error) {
	if err := validateNewPerson(person); err != nil {
		return nil, err
	}

	id, err := e.signer.Verify(token)
	if err != nil {
		e.emit(ctx, ActivityEvent{
			EventType: ActivityEventLinkRejected,
			Metadata:  map[string]any{"reason": "token"},
		})
		return nil, err
	}

	link, err := e.redeemWithRetry(ctx, id)
	if err != nil {
		e.emit(ctx, ActivityEvent{
			EventType: ActivityEventLinkRejected,
			LinkID:    id.String(),
			Metadata:  map[string]any{"reason": "redemption"},
		})
		return nil, err
	}

	e.emit(ctx, ActivityEvent{
		EventType: ActivityEventLinkRedeemed,
		LinkID:    link.ID.String(),
		Metadata:  map[string]any{"use_count": link.UseCount},
	})

	if err := e.directory.CreatePerson(ctx, person); err != nil {
		e.compensate(ctx, link.ID, "")
		e.emit(ctx, ActivityEvent{
			EventType: ActivityEventEnrollmentFailure,
			LinkID:    link.ID.String(),
			Metadata:  map[string]any{"stage": "create", "username": person.Username},
		})
		return nil, errors.Wrap(err, errors.CategoryInternal, "directory account creation failed")
	}

	if e.defaultGroup != "" {
		if err := e.directory.AddGroupMember(ctx, e.defaultGroup, person.Username); err != nil {
			e.compensate(ctx, link.ID, person.Username)
			e.emit(ctx, ActivityEvent{
				EventType: ActivityEventEnrollmentFailure,
				LinkID:    link.ID.String(),
				Metadata:  map[string]any{"stage": "group", "username": person.Username},
			})
			return nil, errors.Wrap(err, errors.CategoryInternal, "group assignment failed")
		}
	}

	reset, err := e.directory.CredentialResetLink(ctx, person.Username)
	if err != nil {
		// The account exists but the invitee can never log into it; roll
		// the whole thing back so the invite can be tried again.
		e.compensate(ctx, link.ID, person.Username)
		e.emit(ctx, ActivityEvent{
			EventType: ActivityEventEnrollmentFailure,
			LinkID:    link.ID.String(),
			Metadata:  map[string]any{"stage": "reset", "username": person.Username},
		})
		return nil, errors.Wrap(err, errors.CategoryInternal, "credential reset link failed")
	}

	// Keep a sealed copy so an admin can re-issue the URL without another
	// directory round trip. The enrollment itself already succeeded.
	if err := e.repo.Credentials().Put(ctx, person.Username, reset.URL); err != nil {
		e.logger.Warn("failed to store reset link for %s: %s", person.Username, err)
	}

	e.emit(ctx, ActivityEvent{
		EventType: ActivityEventEnrollmentSuccess,
		Subject:   person.Username,
		LinkID:    link.ID.String(),
	})

	return &EnrollmentResult{
		Username:  person.Username,
		LinkID:    link.ID,
		ResetLink: reset,
	}, nil
}

// SweepExpired removes links past their expiry.
func (e *Enroller) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	swept, err := e.repo.Links().Sweep(ctx, now)
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		e.emit(ctx, ActivityEvent{
			EventType: ActivityEventLinkSwept,
			Metadata:  map[string]any{"count": swept},
		})
	}

	return swept, nil
}

func (e *Enroller) redeemWithRetry(ctx context.Context, id uuid.UUID) (*ProvisionLink, error) {
	var lastErr error

	for attempt := 0; attempt < e.attempts; attempt++ {
		link, err := e.repo.Links().Redeem(ctx, id)
		if err == nil {
			return link, nil
		}
		if IsTerminalRedemptionError(err) {
			return nil, err
		}

		lastErr = err
		e.logger.Warn("redemption attempt %d failed: %s", attempt+1, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	return nil, lastErr
}

// compensate undoes the side effects of a partially completed enrollment:
// the redeemed use always goes back, and a created-but-unbootstrapped
// account is deleted. Both are best effort and logged when they fail.
func (e *Enroller) compensate(ctx context.Context, id uuid.UUID, username string) {
	if username != "" {
		if err := e.directory.DeletePerson(ctx, username); err != nil {
			e.logger.Error("failed to delete orphaned account %s: %s", username, err)
		}
	}

	if err := e.repo.Links().Restore(ctx, id); err != nil {
		e.logger.Error("failed to restore use for link %s: %s", id, err)
		return
	}

	e.emit(ctx, ActivityEvent{
		EventType: ActivityEventLinkRestored,
		LinkID:    id.String(),
	})
}

func (e *Enroller) emit(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := e.sink.Record(ctx, event); err != nil {
		e.logger.Error("activity sink failed for %s: %s", event.EventType, err)
	}
}

func validateNewPerson(person NewPerson) error {
	if person.Username == "" {
		return errors.New("username is required", errors.CategoryBadInput)
	}
	if person.DisplayName == "" {
		return errors.New("display name is required", errors.CategoryBadInput)
	}
	return nil
}
