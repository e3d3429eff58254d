package storage

import (
	"context"
	"time"

	"github.com/tgfetch/url-uploader-bot/internal/models"
)

// Store is the contract for the user-profile store: quota counters,
// ban/premium flags and presentation preferences.
type Store interface {
	GetOrCreate(ctx context.Context, userID int64) (models.UserQuotaRecord, error)
	IsBanned(ctx context.Context, userID int64) (bool, error)

	// RecordSuccess applies a completed upload as one atomic increment.
	RecordSuccess(ctx context.Context, userID int64, byteCount int64, now time.Time) error

	SetPremium(ctx context.Context, userID int64, premium bool) error
	SetBanned(ctx context.Context, userID int64, banned bool) error
	SetUploadType(ctx context.Context, userID int64, uploadType string) error
	SetThumbnail(ctx context.Context, userID int64, fileID string) error
	SetCaption(ctx context.Context, userID int64, caption string) error
	SetScreenshots(ctx context.Context, userID int64, enabled bool) error
	SetSample(ctx context.Context, userID int64, enabled bool) error

	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Stats are the aggregate numbers exposed on the stats endpoint.
type Stats struct {
	TotalUsers   int64 `json:"total_users"`
	PremiumUsers int64 `json:"premium_users"`
	BannedUsers  int64 `json:"banned_users"`
	UploadsToday int64 `json:"uploads_today"`
	BytesToday   int64 `json:"bytes_today"`
}
