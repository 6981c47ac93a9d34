package documents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateOnlySentEligible(t *testing.T) {
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, status := range []Status{StatusDraft, StatusApproved, StatusSigned, StatusExpired, StatusConverted} {
		assert.Equal(t, status, Evaluate(status, past, now), "status %s must not change", status)
	}
}

func TestEvaluateSentPastDeadline(t *testing.T) {
	validUntil := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, StatusExpired, Evaluate(StatusSent, validUntil, now))
}

func TestEvaluateBoundary(t *testing.T) {
	validUntil := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	lastInstant := time.Date(2025, 6, 1, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	assert.Equal(t, StatusSent, Evaluate(StatusSent, validUntil, lastInstant),
		"still valid through the end of the validity day")

	midnight := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, StatusExpired, Evaluate(StatusSent, validUntil, midnight),
		"expired at midnight the next day")
}

func TestEvaluateHonorsStoredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	validUntil := time.Date(2025, 6, 1, 0, 0, 0, 0, loc)

	// 23:30 local on the validity day is 13:30 UTC; still valid.
	now := time.Date(2025, 6, 1, 13, 30, 0, 0, time.UTC)
	assert.Equal(t, StatusSent, Evaluate(StatusSent, validUntil, now))

	// 00:30 local the next day.
	now = time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, StatusExpired, Evaluate(StatusSent, validUntil, now))
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusDraft.Terminal())
	assert.False(t, StatusSent.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusSigned.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.True(t, StatusConverted.Terminal())
}
