package enroll

import (
	"crypto/sha256"
	"io"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/hkdf"
)

const minSecretLength = 16

// Key derivation labels. Changing one invalidates every artifact signed or
// sealed under the derived key.
const (
	labelSessionSigning = "enroll/session-signing/v1"
	labelLinkSigning    = "enroll/link-signing/v1"
	labelDataSealing    = "enroll/data-sealing/v1"
)

// SecretStore holds process-lifetime key material derived from the two
// operator-supplied secrets. It is immutable after construction and safe for
// concurrent reads.
type SecretStore struct {
	sessionKeys [][]byte
	linkKeys    [][]byte
	dataKey     []byte
}

// NewSecretStore derives the working keys. The first signing secret is the
// active one; any previous secrets are kept for verification only, so tokens
// issued before a rotation stay valid for their natural lifetime. Missing or
// short secret material is a fatal startup error, never a runtime one.
func NewSecretStore(cfg Config) (*SecretStore, error) {
	if cfg == nil {
		return nil, errors.New("secret store requires a config", errors.CategoryValidation)
	}

	signing := cfg.GetSigningSecret()
	if err := checkSecret("signing secret", signing); err != nil {
		return nil, err
	}

	data := cfg.GetDataSecret()
	if err := checkSecret("data secret", data); err != nil {
		return nil, err
	}

	secrets := append([]string{signing}, cfg.GetPreviousSigningSecrets()...)

	store := &SecretStore{}
	for i, secret := range secrets {
		if i > 0 {
			if err := checkSecret("previous signing secret", secret); err != nil {
				return nil, err
			}
		}
		sessionKey, err := deriveKey(secret, labelSessionSigning)
		if err != nil {
			return nil, err
		}
		linkKey, err := deriveKey(secret, labelLinkSigning)
		if err != nil {
			return nil, err
		}
		store.sessionKeys = append(store.sessionKeys, sessionKey)
		store.linkKeys = append(store.linkKeys, linkKey)
	}

	dataKey, err := deriveKey(data, labelDataSealing)
	if err != nil {
		return nil, err
	}
	store.dataKey = dataKey

	return store, nil
}

// SessionSigningKey returns the active session signing key.
func (s *SecretStore) SessionSigningKey() []byte {
	return s.sessionKeys[0]
}

// SessionVerifyKeys returns every accepted session verification key, newest
// first.
func (s *SecretStore) SessionVerifyKeys() [][]byte {
	return s.sessionKeys
}

// LinkSigningKey returns the active provision-link signing key.
func (s *SecretStore) LinkSigningKey() []byte {
	return s.linkKeys[0]
}

// LinkVerifyKeys returns every accepted link verification key, newest first.
func (s *SecretStore) LinkVerifyKeys() [][]byte {
	return s.linkKeys
}

// DataKey returns the 32-byte at-rest encryption key.
func (s *SecretStore) DataKey() []byte {
	return s.dataKey
}

// String keeps secret material out of logs when a store is printed.
func (s *SecretStore) String() string {
	return "enroll.SecretStore{REDACTED}"
}

func checkSecret(name, value string) error {
	if value == "" {
		return errors.New("missing "+name, errors.CategoryValidation)
	}
	if len(value) < minSecretLength {
		return errors.New(name+" is too short", errors.CategoryValidation).
			WithMetadata(map[string]any{"min_length": minSecretLength})
	}
	return nil
}

func deriveKey(secret, label string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(label))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to derive key")
	}
	return key, nil
}
