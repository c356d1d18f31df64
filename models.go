package enroll

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProvisionLink is a time- and use-bounded bootstrap token. Rows are created
// by administrators and mutated only through redemption; use_count never
// decreases except through the compensating Restore after a failed
// directory create.
type ProvisionLink struct {
	bun.BaseModel `bun:"table:provision_links,alias:plnk"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	MaxUses       *int      `bun:"max_uses" json:"max_uses,omitempty"`
	UseCount      int       `bun:"use_count,notnull,default:0" json:"use_count"`
}

// Expired reports whether the link is past its expiry. The boundary is
// exclusive: a link expiring exactly now is expired.
func (l *ProvisionLink) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Exhausted reports whether a bounded link has no uses left. Unbounded
// links never exhaust.
func (l *ProvisionLink) Exhausted() bool {
	return l.MaxUses != nil && l.UseCount >= *l.MaxUses
}

// Redeemable reports whether a redemption would currently be permitted.
func (l *ProvisionLink) Redeemable(now time.Time) bool {
	return !l.Expired(now) && !l.Exhausted()
}

// RemainingUses returns the uses left, or nil for unbounded links.
func (l *ProvisionLink) RemainingUses() *int {
	if l.MaxUses == nil {
		return nil
	}
	left := *l.MaxUses - l.UseCount
	if left < 0 {
		left = 0
	}
	return &left
}

// DirectoryCredential stores a directory access token sealed with the
// at-rest data key. The plaintext only ever exists in memory.
type DirectoryCredential struct {
	bun.BaseModel `bun:"table:directory_credentials,alias:dcred"`
	Subject       string    `bun:"subject,pk" json:"subject"`
	Ciphertext    []byte    `bun:"ciphertext,notnull" json:"-"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
