package enroll_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enroll "github.com/goliatone/go-enroll"
)

func TestNewSecretStore(t *testing.T) {
	t.Run("derives distinct keys per purpose", func(t *testing.T) {
		secrets := newTestSecrets(t)

		assert.Len(t, secrets.SessionSigningKey(), 32)
		assert.Len(t, secrets.LinkSigningKey(), 32)
		assert.Len(t, secrets.DataKey(), 32)

		assert.NotEqual(t, secrets.SessionSigningKey(), secrets.LinkSigningKey())
		assert.NotEqual(t, secrets.SessionSigningKey(), secrets.DataKey())
		assert.NotEqual(t, secrets.LinkSigningKey(), secrets.DataKey())
	})

	t.Run("derivation is deterministic", func(t *testing.T) {
		a := newTestSecrets(t)
		b := newTestSecrets(t)

		assert.Equal(t, a.SessionSigningKey(), b.SessionSigningKey())
		assert.Equal(t, a.DataKey(), b.DataKey())
	})

	t.Run("fails on missing signing secret", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.signingSecret = ""

		_, err := enroll.NewSecretStore(cfg)
		require.Error(t, err)
	})

	t.Run("fails on missing data secret", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.dataSecret = ""

		_, err := enroll.NewSecretStore(cfg)
		require.Error(t, err)
	})

	t.Run("fails on short secret", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.signingSecret = "too-short"

		_, err := enroll.NewSecretStore(cfg)
		require.Error(t, err)
	})

	t.Run("previous secrets extend the verify set", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.previousSecrets = []string{"old-signing-secret-0123456789"}

		secrets, err := enroll.NewSecretStore(cfg)
		require.NoError(t, err)

		assert.Len(t, secrets.SessionVerifyKeys(), 2)
		assert.Len(t, secrets.LinkVerifyKeys(), 2)
		assert.Equal(t, secrets.SessionSigningKey(), secrets.SessionVerifyKeys()[0])
	})

	t.Run("fails on short previous secret", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.previousSecrets = []string{"short"}

		_, err := enroll.NewSecretStore(cfg)
		require.Error(t, err)
	})

	t.Run("never prints key material", func(t *testing.T) {
		secrets := newTestSecrets(t)

		printed := fmt.Sprintf("%v %s", secrets, secrets)
		assert.NotContains(t, printed, newTestConfig().signingSecret)
		assert.Contains(t, printed, "REDACTED")
	})
}
