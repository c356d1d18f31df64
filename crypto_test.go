package enroll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enroll "github.com/goliatone/go-enroll"
)

func TestSealedBox(t *testing.T) {
	box, err := enroll.NewSealedBox(newTestSecrets(t))
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		plaintext := []byte("directory-access-token")

		sealed, err := box.Seal(plaintext)
		require.NoError(t, err)
		assert.NotContains(t, string(sealed), "directory-access-token")

		opened, err := box.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	})

	t.Run("same plaintext seals differently", func(t *testing.T) {
		a, err := box.Seal([]byte("value"))
		require.NoError(t, err)
		b, err := box.Seal([]byte("value"))
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
	})

	t.Run("tampering is detected", func(t *testing.T) {
		sealed, err := box.Seal([]byte("value"))
		require.NoError(t, err)

		sealed[len(sealed)-1] ^= 0xff

		_, err = box.Open(sealed)
		assert.ErrorIs(t, err, enroll.ErrTokenSignature)
	})

	t.Run("truncated input is malformed", func(t *testing.T) {
		_, err := box.Open([]byte("short"))
		assert.ErrorIs(t, err, enroll.ErrTokenMalformed)
	})

	t.Run("different data secret cannot open", func(t *testing.T) {
		otherCfg := newTestConfig()
		otherCfg.dataSecret = "another-data-secret-0123456789"
		otherSecrets, err := enroll.NewSecretStore(otherCfg)
		require.NoError(t, err)

		other, err := enroll.NewSealedBox(otherSecrets)
		require.NoError(t, err)

		sealed, err := box.Seal([]byte("value"))
		require.NoError(t, err)

		_, err = other.Open(sealed)
		assert.ErrorIs(t, err, enroll.ErrTokenSignature)
	})
}
