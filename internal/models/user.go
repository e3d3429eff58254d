package models

import "time"

// UserQuotaRecord is the per-user daily budget and preference state, as held
// by the profile store. Counters reset on a calendar-day boundary; the store
// owns the reset, callers only read and (on success) increment.
type UserQuotaRecord struct {
	UserID          int64
	IsPremium       bool
	IsBanned        bool
	DailyCountLimit int64 // 0 = unlimited
	DailySizeLimit  int64 // bytes, 0 = unlimited
	UsedCountToday  int64
	UsedSizeToday   int64 // bytes
	LastUploadTS    time.Time
	Prefs           Preferences
}

// Preferences are the upload-presentation toggles a user can set.
type Preferences struct {
	UploadType  string // "video" or "document"
	ThumbFileID string
	Caption     string // may contain {file_name}
	Screenshots bool
	SampleClip  bool
}

const (
	UploadTypeVideo    = "video"
	UploadTypeDocument = "document"
)
