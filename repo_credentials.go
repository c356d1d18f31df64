package enroll

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DirectoryCredentials stores directory access tokens sealed with the data
// key. Subjects are the directory identities sessions are minted for.
type DirectoryCredentials interface {
	Put(ctx context.Context, subject, accessToken string) error
	Get(ctx context.Context, subject string) (string, error)
	Delete(ctx context.Context, subject string) error
}

type credentials struct {
	db  *bun.DB
	box *SealedBox
	now func() time.Time
}

var _ DirectoryCredentials = (*credentials)(nil)

func NewDirectoryCredentialsRepository(db *bun.DB, box *SealedBox) DirectoryCredentials {
	return &credentials{
		db:  db,
		box: box,
		now: time.Now,
	}
}

// Put seals the token and upserts it for the subject.
func (r *credentials) Put(ctx context.Context, subject, accessToken string) error {
	if subject == "" {
		return errors.New("credential subject is required", errors.CategoryBadInput)
	}

	sealed, err := r.box.Seal([]byte(accessToken))
	if err != nil {
		return err
	}

	now := r.now()
	record := &DirectoryCredential{
		Subject:    subject,
		Ciphertext: sealed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = r.db.NewInsert().
		Model(record).
		On("CONFLICT (subject) DO UPDATE").
		Set("ciphertext = EXCLUDED.ciphertext").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		return WrapStorage(err, "failed to store directory credential")
	}

	return nil
}

// Get unseals the stored token for the subject.
func (r *credentials) Get(ctx context.Context, subject string) (string, error) {
	record := &DirectoryCredential{}

	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.subject = ?", subject).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errors.New("directory credential not found", errors.CategoryNotFound).
				WithMetadata(map[string]any{"subject": subject})
		}
		return "", WrapStorage(err, "failed to load directory credential")
	}

	plaintext, err := r.box.Open(record.Ciphertext)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// Delete removes the stored token, e.g. at logout.
func (r *credentials) Delete(ctx context.Context, subject string) error {
	_, err := r.db.NewDelete().
		Model((*DirectoryCredential)(nil)).
		Where("subject = ?", subject).
		Exec(ctx)

	if err != nil {
		return WrapStorage(err, "failed to delete directory credential")
	}

	return nil
}
