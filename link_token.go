package enroll

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// LinkSigner turns provision link identifiers into self-authenticating
// tokens for out-of-band distribution. The format is
// "hex(id).base64url(hmac-sha256)" so a leaked database row alone is not a
// redeemable URL. Stateless and safe for concurrent use.
type LinkSigner struct {
	signingKey []byte
	verifyKeys [][]byte
}

// NewLinkSigner builds a signer on the secret store's link keys.
func NewLinkSigner(secrets *SecretStore) *LinkSigner {
	return &LinkSigner{
		signingKey: secrets.LinkSigningKey(),
		verifyKeys: secrets.LinkVerifyKeys(),
	}
}

// Sign returns the signed token for a link identifier.
func (s *LinkSigner) Sign(id uuid.UUID) string {
	payload := hex.EncodeToString(id[:])
	return payload + "." + s.signature(payload, s.signingKey)
}

// Verify checks the signature and returns the embedded link identifier.
// It returns ErrTokenMalformed on any structural failure and
// ErrTokenSignature when no accepted key authenticates the payload.
func (s *LinkSigner) Verify(token string) (uuid.UUID, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" {
		return uuid.Nil, ErrTokenMalformed
	}

	raw, err := hex.DecodeString(payload)
	if err != nil || len(raw) != 16 {
		return uuid.Nil, ErrTokenMalformed
	}

	given, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return uuid.Nil, ErrTokenMalformed
	}

	for _, key := range s.verifyKeys {
		mac := hmac.New(sha256.New, key)
		mac.Write([]byte(payload))
		if hmac.Equal(given, mac.Sum(nil)) {
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return uuid.Nil, ErrTokenMalformed
			}
			return id, nil
		}
	}

	return uuid.Nil, ErrTokenSignature
}

func (s *LinkSigner) signature(payload string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
