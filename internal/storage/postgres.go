package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/tgfetch/url-uploader-bot/internal/configuration"
	"github.com/tgfetch/url-uploader-bot/internal/models"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	limits configuration.LimitsConfig
}

// Connect opens the database, verifies it and creates the schema.
func Connect(connectionString string, limits configuration.LimitsConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStore{db: db, limits: limits}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	log.Println("✅ Connected to PostgreSQL successfully")
	return s, nil
}

func (s *PostgresStore) createTables() error {
	query := `
    CREATE TABLE IF NOT EXISTS users (
        user_id BIGINT PRIMARY KEY,
        is_premium BOOLEAN NOT NULL DEFAULT false,
        is_banned BOOLEAN NOT NULL DEFAULT false,
        daily_count_limit BIGINT NOT NULL DEFAULT 0,
        daily_size_limit BIGINT NOT NULL DEFAULT 0,
        used_count_today BIGINT NOT NULL DEFAULT 0,
        used_size_today BIGINT NOT NULL DEFAULT 0,
        last_upload_ts TIMESTAMPTZ,
        quota_day DATE NOT NULL DEFAULT CURRENT_DATE,
        upload_type VARCHAR(16) NOT NULL DEFAULT 'video',
        thumb_file_id TEXT NOT NULL DEFAULT '',
        caption TEXT NOT NULL DEFAULT '',
        screenshots BOOLEAN NOT NULL DEFAULT false,
        sample_clip BOOLEAN NOT NULL DEFAULT false,
        created_at TIMESTAMPTZ DEFAULT NOW(),
        updated_at TIMESTAMPTZ DEFAULT NOW()
    );

    CREATE INDEX IF NOT EXISTS idx_users_quota_day ON users(quota_day);
    `

	_, err := s.db.Exec(query)
	return err
}

// GetOrCreate returns the user's record, creating it with the default tier
// limits on first contact and resetting the daily counters when the stored
// quota day is behind today.
func (s *PostgresStore) GetOrCreate(ctx context.Context, userID int64) (models.UserQuotaRecord, error) {
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO users (user_id, daily_count_limit, daily_size_limit)
    VALUES ($1, $2, $3)
    ON CONFLICT (user_id) DO NOTHING`,
		userID, s.limits.DefaultDailyCount, s.limits.DefaultDailySize)
	if err != nil {
		return models.UserQuotaRecord{}, fmt.Errorf("failed to ensure user %d: %v", userID, err)
	}

	// Calendar-day counter reset, owned by the store.
	_, err = s.db.ExecContext(ctx, `
    UPDATE users SET used_count_today = 0, used_size_today = 0, quota_day = CURRENT_DATE, updated_at = NOW()
    WHERE user_id = $1 AND quota_day < CURRENT_DATE`, userID)
	if err != nil {
		return models.UserQuotaRecord{}, fmt.Errorf("failed to reset counters for user %d: %v", userID, err)
	}

	var rec models.UserQuotaRecord
	var lastUpload sql.NullTime
	err = s.db.QueryRowContext(ctx, `
    SELECT user_id, is_premium, is_banned, daily_count_limit, daily_size_limit,
           used_count_today, used_size_today, last_upload_ts,
           upload_type, thumb_file_id, caption, screenshots, sample_clip
    FROM users WHERE user_id = $1`, userID).Scan(
		&rec.UserID,
		&rec.IsPremium,
		&rec.IsBanned,
		&rec.DailyCountLimit,
		&rec.DailySizeLimit,
		&rec.UsedCountToday,
		&rec.UsedSizeToday,
		&lastUpload,
		&rec.Prefs.UploadType,
		&rec.Prefs.ThumbFileID,
		&rec.Prefs.Caption,
		&rec.Prefs.Screenshots,
		&rec.Prefs.SampleClip,
	)
	if err != nil {
		return models.UserQuotaRecord{}, fmt.Errorf("failed to load user %d: %v", userID, err)
	}
	if lastUpload.Valid {
		rec.LastUploadTS = lastUpload.Time
	}
	return rec, nil
}

func (s *PostgresStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	var banned bool
	err := s.db.QueryRowContext(ctx,
		`SELECT is_banned FROM users WHERE user_id = $1`, userID).Scan(&banned)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ban for user %d: %v", userID, err)
	}
	return banned, nil
}

// RecordSuccess is a single UPDATE so concurrent sessions of the same user
// never lose an increment.
func (s *PostgresStore) RecordSuccess(ctx context.Context, userID int64, byteCount int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
    UPDATE users SET
        used_count_today = used_count_today + 1,
        used_size_today = used_size_today + $2,
        last_upload_ts = $3,
        updated_at = NOW()
    WHERE user_id = $1`, userID, byteCount, now)
	if err != nil {
		return fmt.Errorf("failed to record upload for user %d: %v", userID, err)
	}
	return nil
}

// SetPremium flips the tier and swaps the tier limits with it.
func (s *PostgresStore) SetPremium(ctx context.Context, userID int64, premium bool) error {
	count, size := s.limits.DefaultDailyCount, s.limits.DefaultDailySize
	if premium {
		count, size = s.limits.PremiumDailyCount, s.limits.PremiumDailySize
	}
	_, err := s.db.ExecContext(ctx, `
    UPDATE users SET is_premium = $2, daily_count_limit = $3, daily_size_limit = $4, updated_at = NOW()
    WHERE user_id = $1`, userID, premium, count, size)
	if err != nil {
		return fmt.Errorf("failed to set premium for user %d: %v", userID, err)
	}
	return nil
}

func (s *PostgresStore) SetBanned(ctx context.Context, userID int64, banned bool) error {
	return s.setField(ctx, userID, "is_banned", banned)
}

func (s *PostgresStore) SetUploadType(ctx context.Context, userID int64, uploadType string) error {
	if uploadType != models.UploadTypeVideo && uploadType != models.UploadTypeDocument {
		return fmt.Errorf("unknown upload type: %s", uploadType)
	}
	return s.setField(ctx, userID, "upload_type", uploadType)
}

func (s *PostgresStore) SetThumbnail(ctx context.Context, userID int64, fileID string) error {
	return s.setField(ctx, userID, "thumb_file_id", fileID)
}

func (s *PostgresStore) SetCaption(ctx context.Context, userID int64, caption string) error {
	return s.setField(ctx, userID, "caption", caption)
}

func (s *PostgresStore) SetScreenshots(ctx context.Context, userID int64, enabled bool) error {
	return s.setField(ctx, userID, "screenshots", enabled)
}

func (s *PostgresStore) SetSample(ctx context.Context, userID int64, enabled bool) error {
	return s.setField(ctx, userID, "sample_clip", enabled)
}

func (s *PostgresStore) setField(ctx context.Context, userID int64, column string, value interface{}) error {
	query := fmt.Sprintf(`UPDATE users SET %s = $2, updated_at = NOW() WHERE user_id = $1`, column)
	_, err := s.db.ExecContext(ctx, query, userID, value)
	if err != nil {
		return fmt.Errorf("failed to update %s for user %d: %v", column, userID, err)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
    SELECT COUNT(*),
           COUNT(*) FILTER (WHERE is_premium),
           COUNT(*) FILTER (WHERE is_banned),
           COALESCE(SUM(used_count_today) FILTER (WHERE quota_day = CURRENT_DATE), 0),
           COALESCE(SUM(used_size_today) FILTER (WHERE quota_day = CURRENT_DATE), 0)
    FROM users`).Scan(
		&st.TotalUsers,
		&st.PremiumUsers,
		&st.BannedUsers,
		&st.UploadsToday,
		&st.BytesToday,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query stats: %v", err)
	}
	return st, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
