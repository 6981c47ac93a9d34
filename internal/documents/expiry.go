package documents

import "time"

// EndOfDay returns the last representable instant of t's calendar day, in t's
// location. A document valid until a date stays actionable through the whole
// of that day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// Evaluate decides whether a document should be lazily transitioned to
// expired. Only a sent document is eligible; drafts and terminal statuses are
// returned unchanged. The function is pure and idempotent; callers persist
// the transition when the returned status differs, and duplicate persistence
// is harmless because the write is idempotent.
func Evaluate(status Status, validUntil, now time.Time) Status {
	if status != StatusSent {
		return status
	}
	if now.After(EndOfDay(validUntil)) {
		return StatusExpired
	}
	return status
}
