package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tgfetch/url-uploader-bot/internal/configuration"
	"github.com/tgfetch/url-uploader-bot/internal/intake"
	"github.com/tgfetch/url-uploader-bot/internal/models"
	"github.com/tgfetch/url-uploader-bot/internal/storage"
)

const (
	adminID = int64(9)
	plainID = int64(100)
)

type fakeMessenger struct {
	sent      []string
	keyboards []intake.Keyboard
	photos    []string
	answers   []string
}

func (m *fakeMessenger) Send(chatID int64, text string) (int, error) {
	m.sent = append(m.sent, text)
	return len(m.sent), nil
}

func (m *fakeMessenger) SendKeyboard(chatID int64, text string, kb intake.Keyboard) (int, error) {
	m.sent = append(m.sent, text)
	m.keyboards = append(m.keyboards, kb)
	return len(m.sent), nil
}

func (m *fakeMessenger) SendPhotoByID(chatID int64, fileID, caption string) error {
	m.photos = append(m.photos, fileID)
	return nil
}

func (m *fakeMessenger) AnswerCallback(callbackID, text string, alert bool) error {
	m.answers = append(m.answers, text)
	return nil
}

type fakeStore struct {
	rec         models.UserQuotaRecord
	screenshots []bool
	samples     []bool
	uploadTypes []string
	bans        map[int64]bool
	premiums    map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rec:      models.UserQuotaRecord{UserID: plainID, DailyCountLimit: 10, DailySizeLimit: 1 << 30},
		bans:     make(map[int64]bool),
		premiums: make(map[int64]bool),
	}
}

func (s *fakeStore) GetOrCreate(ctx context.Context, userID int64) (models.UserQuotaRecord, error) {
	return s.rec, nil
}
func (s *fakeStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	return s.bans[userID], nil
}
func (s *fakeStore) RecordSuccess(ctx context.Context, userID int64, byteCount int64, now time.Time) error {
	return nil
}
func (s *fakeStore) SetPremium(ctx context.Context, userID int64, premium bool) error {
	s.premiums[userID] = premium
	return nil
}
func (s *fakeStore) SetBanned(ctx context.Context, userID int64, banned bool) error {
	s.bans[userID] = banned
	return nil
}
func (s *fakeStore) SetUploadType(ctx context.Context, userID int64, uploadType string) error {
	s.uploadTypes = append(s.uploadTypes, uploadType)
	return nil
}
func (s *fakeStore) SetThumbnail(ctx context.Context, userID int64, fileID string) error {
	s.rec.Prefs.ThumbFileID = fileID
	return nil
}
func (s *fakeStore) SetCaption(ctx context.Context, userID int64, caption string) error {
	s.rec.Prefs.Caption = caption
	return nil
}
func (s *fakeStore) SetScreenshots(ctx context.Context, userID int64, enabled bool) error {
	s.screenshots = append(s.screenshots, enabled)
	return nil
}
func (s *fakeStore) SetSample(ctx context.Context, userID int64, enabled bool) error {
	s.samples = append(s.samples, enabled)
	return nil
}
func (s *fakeStore) Stats(ctx context.Context) (storage.Stats, error) { return storage.Stats{}, nil }
func (s *fakeStore) Ping(ctx context.Context) error                   { return nil }
func (s *fakeStore) Close() error                                     { return nil }

func newTestHandler() (*CommandHandler, *fakeMessenger, *fakeStore) {
	cfg := &configuration.Config{}
	cfg.Telegram.AdminIDs = []int64{adminID}
	cfg.Limits.CooldownSeconds = 120
	msgr := &fakeMessenger{}
	store := newFakeStore()
	return NewCommandHandler(cfg, msgr, store), msgr, store
}

func commandMessage(userID int64, text string) *tgbotapi.Message {
	cmdLen := len(text)
	if sp := strings.Index(text, " "); sp > 0 {
		cmdLen = sp
	}
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: userID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func prefsCallback(userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}
}

func TestSettingsKeyboard_CoversAllPreferenceActions(t *testing.T) {
	expected := []string{
		prefsTypeVideo, prefsTypeDocument,
		prefsThumbView, prefsThumbDelete,
		prefsCaptionView, prefsCaptionDel,
		prefsScreenshotsOn, prefsScreenshotsOff,
		prefsSampleOn, prefsSampleOff,
	}

	offered := map[string]bool{}
	for _, row := range settingsKeyboard() {
		for _, b := range row {
			offered[b.Data] = true
		}
	}

	for _, data := range expected {
		if !offered[data] {
			t.Errorf("settings keyboard is missing %q", data)
		}
	}
}

func TestPrefsCallback_ScreenshotsToggle(t *testing.T) {
	h, msgr, store := newTestHandler()

	h.HandlePrefsCallback(context.Background(), prefsCallback(plainID, prefsScreenshotsOn))
	h.HandlePrefsCallback(context.Background(), prefsCallback(plainID, prefsScreenshotsOff))

	if len(store.screenshots) != 2 || !store.screenshots[0] || store.screenshots[1] {
		t.Errorf("SetScreenshots calls = %v, expected [true false]", store.screenshots)
	}
	if len(msgr.answers) != 2 || !strings.Contains(msgr.answers[0], "enabled") || !strings.Contains(msgr.answers[1], "disabled") {
		t.Errorf("answers = %v, expected enabled then disabled", msgr.answers)
	}
}

func TestPrefsCallback_SampleToggle(t *testing.T) {
	h, _, store := newTestHandler()

	h.HandlePrefsCallback(context.Background(), prefsCallback(plainID, prefsSampleOn))
	h.HandlePrefsCallback(context.Background(), prefsCallback(plainID, prefsSampleOff))

	if len(store.samples) != 2 || !store.samples[0] || store.samples[1] {
		t.Errorf("SetSample calls = %v, expected [true false]", store.samples)
	}
}

func TestPrefsCallback_UploadType(t *testing.T) {
	h, _, store := newTestHandler()

	h.HandlePrefsCallback(context.Background(), prefsCallback(plainID, prefsTypeDocument))
	h.HandlePrefsCallback(context.Background(), prefsCallback(plainID, prefsTypeVideo))

	if len(store.uploadTypes) != 2 ||
		store.uploadTypes[0] != models.UploadTypeDocument ||
		store.uploadTypes[1] != models.UploadTypeVideo {
		t.Errorf("SetUploadType calls = %v", store.uploadTypes)
	}
}

func TestSettingsCommandSendsKeyboard(t *testing.T) {
	h, msgr, _ := newTestHandler()

	h.Handle(context.Background(), commandMessage(plainID, "/settings"))

	if len(msgr.keyboards) != 1 {
		t.Fatalf("keyboards sent = %d, expected 1", len(msgr.keyboards))
	}
	if len(msgr.keyboards[0]) != len(settingsKeyboard()) {
		t.Errorf("keyboard rows = %d, expected %d", len(msgr.keyboards[0]), len(settingsKeyboard()))
	}
}

func TestAdminCommands_IgnoredForNonAdmins(t *testing.T) {
	h, msgr, store := newTestHandler()

	h.Handle(context.Background(), commandMessage(plainID, "/ban 42"))

	if store.bans[42] {
		t.Error("non-admin must not be able to ban")
	}
	if len(msgr.sent) != 0 {
		t.Errorf("non-admin admin command should be silent, got %v", msgr.sent)
	}
}

func TestBanCommand_Admin(t *testing.T) {
	h, msgr, store := newTestHandler()

	h.Handle(context.Background(), commandMessage(adminID, "/ban 42"))

	if !store.bans[42] {
		t.Error("admin /ban should flag the target user")
	}
	if len(msgr.sent) != 1 || !strings.Contains(msgr.sent[0], "banned") {
		t.Errorf("expected a ban confirmation, got %v", msgr.sent)
	}
}

func TestSetCaptionCommand(t *testing.T) {
	h, msgr, store := newTestHandler()

	h.Handle(context.Background(), commandMessage(plainID, "/setcaption watch {file_name} now"))

	if store.rec.Prefs.Caption != "watch {file_name} now" {
		t.Errorf("caption = %q", store.rec.Prefs.Caption)
	}
	if len(msgr.sent) != 1 || !strings.Contains(msgr.sent[0], "saved") {
		t.Errorf("expected a save confirmation, got %v", msgr.sent)
	}
}
