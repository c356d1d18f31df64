package enroll

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// The permission check and the increment are one statement on purpose: the
// predicate encodes existence, not-expired, and under-limit, and the update
// applies iff exactly one row matches. Splitting this into a read and a
// write would let two concurrent redemptions of a single-use link both
// succeed.
var redeemLinkSQL = `UPDATE provision_links
SET use_count = use_count + 1
WHERE id = ?
  AND expires_at > ?
  AND (max_uses IS NULL OR use_count < max_uses);`

var restoreLinkSQL = `UPDATE provision_links
SET use_count = use_count - 1
WHERE id = ?
  AND use_count > 0;`

// ProvisionLinks is the persistent state machine for provision links.
type ProvisionLinks interface {
	repository.Repository[*ProvisionLink]

	CreateLink(ctx context.Context, ttl time.Duration, maxUses *int) (*ProvisionLink, error)
	Redeem(ctx context.Context, id uuid.UUID) (*ProvisionLink, error)
	Restore(ctx context.Context, id uuid.UUID) error
	GetLink(ctx context.Context, id uuid.UUID) (*ProvisionLink, error)
	ListLinks(ctx context.Context) ([]*ProvisionLink, error)
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

type links struct {
	repository.Repository[*ProvisionLink]
	db  *bun.DB
	now func() time.Time
}

var (
	_ ProvisionLinks                        = (*links)(nil)
	_ repository.Repository[*ProvisionLink] = (*links)(nil)
)

type LinksOption func(*links)

// WithLinksClock overrides the time source, mostly for tests.
func WithLinksClock(now func() time.Time) LinksOption {
	return func(l *links) {
		if now != nil {
			l.now = now
		}
	}
}

func NewProvisionLinksRepository(db *bun.DB, opts ...LinksOption) ProvisionLinks {
	repo := repository.NewRepository[*ProvisionLink](db, repository.ModelHandlers[*ProvisionLink]{
		NewRecord: func() *ProvisionLink { return &ProvisionLink{} },
		GetID: func(l *ProvisionLink) uuid.UUID {
			if l == nil {
				return uuid.Nil
			}
			return l.ID
		},
		SetID: func(l *ProvisionLink, id uuid.UUID) {
			if l != nil {
				l.ID = id
			}
		},
	})

	repoLinks := &links{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoLinks)
		}
	}

	return repoLinks
}

// CreateLink persists a fresh link with a random identifier and use_count 0.
// The insert fails on a primary-key collision instead of overwriting.
func (r *links) CreateLink(ctx context.Context, ttl time.Duration, maxUses *int) (*ProvisionLink, error) {
	if maxUses != nil && *maxUses < 1 {
		return nil, errors.New("max uses must be positive when set", errors.CategoryBadInput).
			WithMetadata(map[string]any{"max_uses": *maxUses})
	}

	now := r.now()
	record := &ProvisionLink{
		ID:        uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		MaxUses:   maxUses,
		UseCount:  0,
	}

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, WrapStorage(err, "failed to create provision link")
	}

	return record, nil
}

// Redeem atomically consumes one use of the link. Exactly one of four
// things happens: the use count is incremented and the updated link
// returned, or the caller gets ErrLinkNotFound, ErrLinkExpired, or
// ErrLinkExhausted. A request timeout can abort the call but never leaves
// the count half-applied.
func (r *links) Redeem(ctx context.Context, id uuid.UUID) (*ProvisionLink, error) {
	// The diagnostic read below can race with other redeemers, so a link
	// that looks redeemable after a failed update is retried rather than
	// misreported.
	for attempt := 0; attempt < 3; attempt++ {
		now := r.now()

		res, err := r.db.NewRaw(redeemLinkSQL, id, now).Exec(ctx)
		if err != nil {
			return nil, WrapStorage(err, "failed to redeem provision link")
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, WrapStorage(err, "failed to read redeem result")
		}

		if affected == 1 {
			return r.GetLink(ctx, id)
		}

		record, err := r.GetLink(ctx, id)
		if err != nil {
			return nil, err
		}

		switch {
		case record.Expired(now):
			return nil, ErrLinkExpired
		case record.Exhausted():
			return nil, ErrLinkExhausted
		}
	}

	return nil, WrapStorage(sql.ErrTxDone, "provision link redemption did not settle")
}

// Restore gives one use back, compensating for a directory create that
// failed after a successful redemption. The guard keeps use_count
// non-negative even if Restore is called twice.
func (r *links) Restore(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.NewRaw(restoreLinkSQL, id).Exec(ctx); err != nil {
		return WrapStorage(err, "failed to restore provision link use")
	}
	return nil
}

// GetLink is a read-only lookup with no side effects.
func (r *links) GetLink(ctx context.Context, id uuid.UUID) (*ProvisionLink, error) {
	record := &ProvisionLink{}

	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, WrapStorage(err, "failed to load provision link")
	}

	return record, nil
}

// ListLinks returns every link, newest first.
func (r *links) ListLinks(ctx context.Context) ([]*ProvisionLink, error) {
	var records []*ProvisionLink

	err := r.db.NewSelect().
		Model(&records).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, WrapStorage(err, "failed to list provision links")
	}

	return records, nil
}

// Sweep deletes rows past their expiry and reports how many went away.
func (r *links) Sweep(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*ProvisionLink)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)

	if err != nil {
		return 0, WrapStorage(err, "failed to sweep expired provision links")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, WrapStorage(err, "failed to read sweep result")
	}

	return affected, nil
}
