package enroll

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenDB opens the embedded sqlite store the gateway persists links and
// sealed credentials in. Callers own closing the returned handle.
func OpenDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, WrapStorage(err, "failed to open database")
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent redemptions without weakening the atomic update.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, WrapStorage(err, "failed to configure database")
	}

	return db, nil
}

// CreateSchema creates the gateway tables when missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*ProvisionLink)(nil),
		(*DirectoryCredential)(nil),
	}

	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return WrapStorage(err, "failed to create schema")
		}
	}

	return nil
}
