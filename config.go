package enroll

import (
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

// EnvConfig is the environment-backed Config implementation. Secret fields
// are loaded once at startup and never echoed back; validation errors name
// the field but not its value.
type EnvConfig struct {
	SigningSecret          string        `env:"ENROLL_SIGNING_SECRET"`
	PreviousSigningSecrets []string      `env:"ENROLL_PREVIOUS_SIGNING_SECRETS" envSeparator:","`
	DataSecret             string        `env:"ENROLL_DATA_SECRET"`
	SessionDuration        time.Duration `env:"ENROLL_SESSION_DURATION" envDefault:"24h"`
	Issuer                 string        `env:"ENROLL_ISSUER" envDefault:"go-enroll"`
	Audience               []string      `env:"ENROLL_AUDIENCE" envSeparator:","`
	AdminGroup             string        `env:"ENROLL_ADMIN_GROUP" envDefault:"enroll_admin"`
	DefaultGroup           string        `env:"ENROLL_DEFAULT_GROUP"`
	DirectoryURL           string        `env:"ENROLL_DIRECTORY_URL"`
	DirectoryToken         string        `env:"ENROLL_DIRECTORY_TOKEN"`
	DataDir                string        `env:"ENROLL_DATA_DIR" envDefault:"/var/lib/enroll"`
	SweepInterval          time.Duration `env:"ENROLL_SWEEP_INTERVAL" envDefault:"1h"`
}

var _ Config = (*EnvConfig)(nil)

// LoadConfig reads and validates the environment. Any failure here is a
// startup precondition violation; callers should abort, not retry.
func LoadConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid configuration")
	}

	return cfg, nil
}

// Validate will run validation rules
func (c EnvConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningSecret, validation.Required, validation.Length(minSecretLength, 0)),
		validation.Field(&c.DataSecret, validation.Required, validation.Length(minSecretLength, 0)),
		validation.Field(&c.SessionDuration, validation.Required),
		validation.Field(&c.AdminGroup, validation.Required),
		validation.Field(&c.DirectoryURL, validation.Required, is.URL),
		validation.Field(&c.DirectoryToken, validation.Required),
		validation.Field(&c.DataDir, validation.Required),
	)
}

// DSN returns the sqlite path inside the data directory.
func (c EnvConfig) DSN() string {
	return filepath.Join(c.DataDir, "enroll.sqlite")
}

func (c EnvConfig) GetSigningSecret() string { return c.SigningSecret }

func (c EnvConfig) GetPreviousSigningSecrets() []string { return c.PreviousSigningSecrets }

func (c EnvConfig) GetDataSecret() string { return c.DataSecret }

func (c EnvConfig) GetSessionDuration() time.Duration { return c.SessionDuration }

func (c EnvConfig) GetIssuer() string { return c.Issuer }

func (c EnvConfig) GetAudience() []string { return c.Audience }

func (c EnvConfig) GetAdminGroup() string { return c.AdminGroup }

func (c EnvConfig) GetDefaultGroup() string { return c.DefaultGroup }

func (c EnvConfig) GetDirectoryURL() string { return c.DirectoryURL }

func (c EnvConfig) GetDirectoryToken() string { return c.DirectoryToken }

func (c EnvConfig) GetSweepInterval() time.Duration { return c.SweepInterval }
