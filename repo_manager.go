package enroll

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Links() ProvisionLinks
	Credentials() DirectoryCredentials
}

type mngr struct {
	db          *bun.DB
	links       ProvisionLinks
	credentials DirectoryCredentials
}

func NewRepositoryManager(db *bun.DB, box *SealedBox, opts ...LinksOption) RepositoryManager {
	return &mngr{
		db:          db,
		links:       NewProvisionLinksRepository(db, opts...),
		credentials: NewDirectoryCredentialsRepository(db, box),
	}
}

func (m mngr) Validate() error {
	if m.links == nil {
		return errors.New("repository links should be initialized")
	}

	if m.credentials == nil {
		return errors.New("repository credentials should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Links() ProvisionLinks {
	return m.links
}

func (m mngr) Credentials() DirectoryCredentials {
	return m.credentials
}
