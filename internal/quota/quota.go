// Package quota holds the pure daily-budget arithmetic for a single user
// record. Nothing here touches storage; callers read a fresh record, check,
// and persist increments through the store on success.
package quota

import (
	"fmt"
	"time"

	"github.com/tgfetch/url-uploader-bot/internal/models"
)

// CooldownStatus is the outcome of a cooldown check.
type CooldownStatus struct {
	Allowed bool
	Wait    time.Duration
}

// CheckCooldown applies the between-uploads cooldown. Premium users and a
// zero cooldown are always allowed, as is a user who never uploaded.
func CheckCooldown(rec models.UserQuotaRecord, cooldown time.Duration, now time.Time) CooldownStatus {
	if rec.IsPremium || cooldown <= 0 {
		return CooldownStatus{Allowed: true}
	}
	if rec.LastUploadTS.IsZero() {
		return CooldownStatus{Allowed: true}
	}
	elapsed := now.Sub(rec.LastUploadTS)
	if elapsed >= cooldown {
		return CooldownStatus{Allowed: true}
	}
	return CooldownStatus{Wait: cooldown - elapsed}
}

// CheckCountLimit reports whether the user may start another upload today.
// A zero limit means unlimited.
func CheckCountLimit(rec models.UserQuotaRecord) bool {
	return rec.DailyCountLimit <= 0 || rec.UsedCountToday < rec.DailyCountLimit
}

// RemainingSize returns today's remaining byte budget. limited is false when
// the user has no size limit. The result is never negative.
func RemainingSize(rec models.UserQuotaRecord) (remaining int64, limited bool) {
	if rec.DailySizeLimit <= 0 {
		return 0, false
	}
	remaining = rec.DailySizeLimit - rec.UsedSizeToday
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// CheckSizeBudget reports whether a candidate of the given size fits in the
// remaining budget. An unknown size (0) never denies here; the transfer
// engine re-checks the real byte count afterwards.
func CheckSizeBudget(remaining int64, limited bool, candidateSize int64) bool {
	if !limited || candidateSize <= 0 {
		return true
	}
	return candidateSize <= remaining
}

// RecordSuccess applies a completed upload to the in-memory record. The
// durable increment is the store's atomic UPDATE; this keeps the local copy
// consistent for any follow-up checks in the same handler.
func RecordSuccess(rec *models.UserQuotaRecord, byteCount int64, now time.Time) {
	rec.UsedCountToday++
	rec.UsedSizeToday += byteCount
	rec.LastUploadTS = now
}

// FormatWait renders a wait duration the way the bot reports it: "45s", or
// "2m 30s" once minutes are involved.
func FormatWait(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	m, s := secs/60, secs%60
	if m == 0 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}
