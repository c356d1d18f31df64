package enroll_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	enroll "github.com/goliatone/go-enroll"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteCreateProvisionLinks = `CREATE TABLE provision_links (
    id TEXT NOT NULL PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    max_uses INTEGER,
    use_count INTEGER NOT NULL DEFAULT 0
);`
	sqliteCreateDirectoryCredentials = `CREATE TABLE directory_credentials (
    subject TEXT NOT NULL PRIMARY KEY,
    ciphertext BLOB NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);`
)

// testConfig implements enroll.Config with known values.
type testConfig struct {
	signingSecret   string
	previousSecrets []string
	dataSecret      string
	sessionDuration time.Duration
	issuer          string
	audience        []string
	adminGroup      string
	directoryURL    string
	directoryToken  string
	sweepInterval   time.Duration
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingSecret:   "test-signing-secret-0123456789",
		dataSecret:      "test-data-secret-0123456789",
		sessionDuration: time.Hour,
		issuer:          "test-issuer",
		audience:        []string{"test-audience"},
		adminGroup:      "enroll_admin",
		directoryURL:    "https://idm.example.com",
		directoryToken:  "service-token",
		sweepInterval:   time.Minute,
	}
}

func (c *testConfig) GetSigningSecret() string            { return c.signingSecret }
func (c *testConfig) GetPreviousSigningSecrets() []string { return c.previousSecrets }
func (c *testConfig) GetDataSecret() string               { return c.dataSecret }
func (c *testConfig) GetSessionDuration() time.Duration   { return c.sessionDuration }
func (c *testConfig) GetIssuer() string                   { return c.issuer }
func (c *testConfig) GetAudience() []string               { return c.audience }
func (c *testConfig) GetAdminGroup() string               { return c.adminGroup }
func (c *testConfig) GetDirectoryURL() string             { return c.directoryURL }
func (c *testConfig) GetDirectoryToken() string           { return c.directoryToken }
func (c *testConfig) GetSweepInterval() time.Duration     { return c.sweepInterval }

func newTestSecrets(t *testing.T) *enroll.SecretStore {
	t.Helper()
	secrets, err := enroll.NewSecretStore(newTestConfig())
	require.NoError(t, err)
	return secrets
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	_, err = bunDB.Exec(sqliteCreateProvisionLinks)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateDirectoryCredentials)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	return bunDB
}

func intPtr(n int) *int {
	return &n
}

// MockDirectory implements enroll.Directory for testing.
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ListPersons(ctx context.Context) ([]enroll.Person, error) {
	args := m.Called(ctx)
	if persons, ok := args.Get(0).([]enroll.Person); ok {
		return persons, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) GetPerson(ctx context.Context, id string) (*enroll.Person, error) {
	args := m.Called(ctx, id)
	if person, ok := args.Get(0).(*enroll.Person); ok {
		return person, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) CreatePerson(ctx context.Context, person enroll.NewPerson) error {
	args := m.Called(ctx, person)
	return args.Error(0)
}

func (m *MockDirectory) DeletePerson(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDirectory) AddGroupMember(ctx context.Context, group, userID string) error {
	args := m.Called(ctx, group, userID)
	return args.Error(0)
}

func (m *MockDirectory) RemoveGroupMember(ctx context.Context, group, userID string) error {
	args := m.Called(ctx, group, userID)
	return args.Error(0)
}

func (m *MockDirectory) IsMember(ctx context.Context, userID, group string) (bool, error) {
	args := m.Called(ctx, userID, group)
	return args.Bool(0), args.Error(1)
}

func (m *MockDirectory) CredentialResetLink(ctx context.Context, userID string) (*enroll.ResetLink, error) {
	args := m.Called(ctx, userID)
	if link, ok := args.Get(0).(*enroll.ResetLink); ok {
		return link, args.Error(1)
	}
	return nil, args.Error(1)
}
