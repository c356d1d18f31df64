package enroll

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/goliatone/go-errors"
)

// SealedBox is AES-256-GCM over the secret store's data key. It guards
// column values that must never hit disk in plaintext, like directory
// access tokens.
type SealedBox struct {
	aead cipher.AEAD
}

// NewSealedBox builds the at-rest cipher from the secret store.
func NewSealedBox(secrets *SecretStore) (*SealedBox, error) {
	block, err := aes.NewCipher(secrets.DataKey())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create cipher")
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create GCM")
	}

	return &SealedBox{aead: aead}, nil
}

// Seal encrypts plaintext and prepends the random nonce.
func (b *SealedBox) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate nonce")
	}

	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a value produced by Seal.
func (b *SealedBox) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < b.aead.NonceSize() {
		return nil, ErrTokenMalformed
	}

	nonce, ciphertext := sealed[:b.aead.NonceSize()], sealed[b.aead.NonceSize():]

	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// GCM folds tampering and truncation into one failure; report it as
		// an authentication problem, never with cipher internals attached.
		return nil, ErrTokenSignature
	}

	return plaintext, nil
}
