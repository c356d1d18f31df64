package enroll_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	enroll "github.com/goliatone/go-enroll"
)

func TestProvisionLinkState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("expiry boundary is exclusive", func(t *testing.T) {
		link := &enroll.ProvisionLink{ExpiresAt: now}

		assert.False(t, link.Expired(now.Add(-time.Second)))
		assert.True(t, link.Expired(now))
		assert.True(t, link.Expired(now.Add(time.Second)))
	})

	t.Run("unbounded links never exhaust", func(t *testing.T) {
		link := &enroll.ProvisionLink{UseCount: 1000}
		assert.False(t, link.Exhausted())
		assert.Nil(t, link.RemainingUses())
	})

	t.Run("bounded links count down", func(t *testing.T) {
		link := &enroll.ProvisionLink{MaxUses: intPtr(3), UseCount: 2}
		assert.False(t, link.Exhausted())
		if remaining := link.RemainingUses(); assert.NotNil(t, remaining) {
			assert.Equal(t, 1, *remaining)
		}

		link.UseCount = 3
		assert.True(t, link.Exhausted())
		if remaining := link.RemainingUses(); assert.NotNil(t, remaining) {
			assert.Equal(t, 0, *remaining)
		}
	})

	t.Run("redeemable needs both time and uses", func(t *testing.T) {
		active := &enroll.ProvisionLink{ExpiresAt: now.Add(time.Hour), MaxUses: intPtr(1)}
		assert.True(t, active.Redeemable(now))

		spent := &enroll.ProvisionLink{ExpiresAt: now.Add(time.Hour), MaxUses: intPtr(1), UseCount: 1}
		assert.False(t, spent.Redeemable(now))

		expired := &enroll.ProvisionLink{ExpiresAt: now.Add(-time.Hour)}
		assert.False(t, expired.Redeemable(now))
	})
}
