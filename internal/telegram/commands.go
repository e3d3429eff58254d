package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tgfetch/url-uploader-bot/internal/configuration"
	"github.com/tgfetch/url-uploader-bot/internal/intake"
	"github.com/tgfetch/url-uploader-bot/internal/models"
	"github.com/tgfetch/url-uploader-bot/internal/quota"
	"github.com/tgfetch/url-uploader-bot/internal/storage"
	"github.com/tgfetch/url-uploader-bot/internal/transfer"
)

// Preference keyboard callback identifiers. The dispatch loop routes
// anything with this prefix here instead of the workflow engine.
const (
	prefsCallbackPrefix = "prefs_"

	prefsTypeVideo      = "prefs_type_video"
	prefsTypeDocument   = "prefs_type_document"
	prefsThumbView      = "prefs_thumb_view"
	prefsThumbDelete    = "prefs_thumb_del"
	prefsCaptionView    = "prefs_cap_view"
	prefsCaptionDel     = "prefs_cap_del"
	prefsScreenshotsOn  = "prefs_ss_on"
	prefsScreenshotsOff = "prefs_ss_off"
	prefsSampleOn       = "prefs_sample_on"
	prefsSampleOff      = "prefs_sample_off"
)

const helpText = `📥 Send me a direct file URL or a video page link and I'll upload it for you.

Naming:
  <url> | custom name.mp4  — set the name up front
  or pick ✏ Rename after the scan.

Commands:
/myplan — your limits and today's usage
/setcaption <text> — caption template ({file_name} is expanded)
/setthumb — reply to a photo to set your thumbnail
/settings — preference buttons`

// Messenger is the slice of the gateway the command surface talks through.
type Messenger interface {
	Send(chatID int64, text string) (int, error)
	SendKeyboard(chatID int64, text string, kb intake.Keyboard) (int, error)
	SendPhotoByID(chatID int64, fileID, caption string) error
	AnswerCallback(callbackID, text string, alert bool) error
}

type CommandHandler struct {
	cfg     *configuration.Config
	gateway Messenger
	users   storage.Store
}

func NewCommandHandler(cfg *configuration.Config, gateway Messenger, users storage.Store) *CommandHandler {
	return &CommandHandler{cfg: cfg, gateway: gateway, users: users}
}

func (h *CommandHandler) Handle(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if banned, err := h.users.IsBanned(ctx, userID); err == nil && banned {
		return
	}

	switch msg.Command() {
	case "start":
		h.reply(chatID, fmt.Sprintf("👋 Hi %s!\n\n%s", msg.From.FirstName, helpText))
	case "help":
		h.sendSettings(chatID, helpText)
	case "settings":
		h.sendSettings(chatID, "⚙️ Your upload preferences:")
	case "myplan":
		h.myPlan(ctx, chatID, userID)
	case "setcaption":
		h.setCaption(ctx, chatID, userID, msg.CommandArguments())
	case "delcaption":
		h.mutate(ctx, chatID, func() error { return h.users.SetCaption(ctx, userID, "") },
			"🗑 Caption removed.")
	case "setthumb":
		h.setThumbnail(ctx, chatID, userID, msg)
	case "delthumb":
		h.mutate(ctx, chatID, func() error { return h.users.SetThumbnail(ctx, userID, "") },
			"🗑 Thumbnail removed.")
	case "showthumb":
		h.showThumbnail(ctx, chatID, userID)

	case "setpremium":
		h.adminSetFlag(ctx, msg, func(target int64) error { return h.users.SetPremium(ctx, target, true) },
			"⭐ User %d is premium now.")
	case "delpremium":
		h.adminSetFlag(ctx, msg, func(target int64) error { return h.users.SetPremium(ctx, target, false) },
			"User %d is back on the default plan.")
	case "ban":
		h.adminSetFlag(ctx, msg, func(target int64) error { return h.users.SetBanned(ctx, target, true) },
			"🚫 User %d banned.")
	case "unban":
		h.adminSetFlag(ctx, msg, func(target int64) error { return h.users.SetBanned(ctx, target, false) },
			"User %d unbanned.")
	case "stats":
		h.adminStats(ctx, msg)
	}
}

// HandlePrefsCallback serves the preference keyboard buttons.
func (h *CommandHandler) HandlePrefsCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	answer := func(text string) {
		if err := h.gateway.AnswerCallback(cb.ID, text, false); err != nil {
			log.Printf("failed to answer prefs callback: %v", err)
		}
	}

	switch cb.Data {
	case prefsTypeVideo:
		if err := h.users.SetUploadType(ctx, userID, models.UploadTypeVideo); err != nil {
			answer("❌ Could not save, try again.")
			return
		}
		answer("Uploads will be sent as video.")
	case prefsTypeDocument:
		if err := h.users.SetUploadType(ctx, userID, models.UploadTypeDocument); err != nil {
			answer("❌ Could not save, try again.")
			return
		}
		answer("Uploads will be sent as document.")
	case prefsThumbView:
		answer("")
		h.showThumbnail(ctx, chatID, userID)
	case prefsThumbDelete:
		if err := h.users.SetThumbnail(ctx, userID, ""); err != nil {
			answer("❌ Could not save, try again.")
			return
		}
		answer("Thumbnail removed.")
	case prefsCaptionView:
		answer("")
		h.showCaption(ctx, chatID, userID)
	case prefsCaptionDel:
		if err := h.users.SetCaption(ctx, userID, ""); err != nil {
			answer("❌ Could not save, try again.")
			return
		}
		answer("Caption removed.")
	case prefsScreenshotsOn, prefsScreenshotsOff:
		on := cb.Data == prefsScreenshotsOn
		if err := h.users.SetScreenshots(ctx, userID, on); err != nil {
			answer("❌ Could not save, try again.")
			return
		}
		answer(fmt.Sprintf("Screenshots %s.", onOff(on)))
	case prefsSampleOn, prefsSampleOff:
		on := cb.Data == prefsSampleOn
		if err := h.users.SetSample(ctx, userID, on); err != nil {
			answer("❌ Could not save, try again.")
			return
		}
		answer(fmt.Sprintf("Sample clip %s.", onOff(on)))
	default:
		answer("")
	}
}

func settingsKeyboard() intake.Keyboard {
	return intake.Keyboard{
		{
			{Label: "🎬 As video", Data: prefsTypeVideo},
			{Label: "📁 As document", Data: prefsTypeDocument},
		},
		{
			{Label: "🖼 Show thumbnail", Data: prefsThumbView},
			{Label: "🗑 Delete thumbnail", Data: prefsThumbDelete},
		},
		{
			{Label: "💬 Show caption", Data: prefsCaptionView},
			{Label: "🗑 Delete caption", Data: prefsCaptionDel},
		},
		{
			{Label: "📸 Screenshots on", Data: prefsScreenshotsOn},
			{Label: "📸 Screenshots off", Data: prefsScreenshotsOff},
		},
		{
			{Label: "🎞 Sample clip on", Data: prefsSampleOn},
			{Label: "🎞 Sample clip off", Data: prefsSampleOff},
		},
	}
}

func (h *CommandHandler) sendSettings(chatID int64, text string) {
	if _, err := h.gateway.SendKeyboard(chatID, text, settingsKeyboard()); err != nil {
		log.Printf("failed to send settings to chat %d: %v", chatID, err)
	}
}

func (h *CommandHandler) myPlan(ctx context.Context, chatID, userID int64) {
	rec, err := h.users.GetOrCreate(ctx, userID)
	if err != nil {
		h.reply(chatID, "❌ Could not load your plan, try again later.")
		return
	}

	tier := "Default"
	if rec.IsPremium {
		tier = "⭐ Premium"
	}
	countLine := fmt.Sprintf("%d (unlimited)", rec.UsedCountToday)
	if rec.DailyCountLimit > 0 {
		countLine = fmt.Sprintf("%d/%d", rec.UsedCountToday, rec.DailyCountLimit)
	}
	sizeLine := "unlimited"
	if remaining, limited := quota.RemainingSize(rec); limited {
		sizeLine = fmt.Sprintf("%s of %s left",
			transfer.HumanReadable(remaining), transfer.HumanReadable(rec.DailySizeLimit))
	}
	cooldown := "none"
	if !rec.IsPremium && h.cfg.Limits.CooldownSeconds > 0 {
		cooldown = quota.FormatWait(time.Duration(h.cfg.Limits.CooldownSeconds) * time.Second)
	}

	h.reply(chatID, fmt.Sprintf(
		"📋 Plan: %s\n📊 Uploads today: %s\n💾 Size budget: %s\n⏳ Cooldown: %s\n📤 Upload type: %s",
		tier, countLine, sizeLine, cooldown, rec.Prefs.UploadType))
}

func (h *CommandHandler) setCaption(ctx context.Context, chatID, userID int64, args string) {
	caption := strings.TrimSpace(args)
	if caption == "" {
		h.reply(chatID, "Usage: /setcaption <text>\n{file_name} will be replaced with the file name.")
		return
	}
	h.mutate(ctx, chatID, func() error { return h.users.SetCaption(ctx, userID, caption) },
		"✅ Caption saved.")
}

func (h *CommandHandler) showCaption(ctx context.Context, chatID, userID int64) {
	rec, err := h.users.GetOrCreate(ctx, userID)
	if err != nil || rec.Prefs.Caption == "" {
		h.reply(chatID, "You have no caption set. Use /setcaption <text>.")
		return
	}
	h.reply(chatID, "💬 Your caption:\n"+rec.Prefs.Caption)
}

// setThumbnail takes the photo from the replied-to message.
func (h *CommandHandler) setThumbnail(ctx context.Context, chatID, userID int64, msg *tgbotapi.Message) {
	if msg.ReplyToMessage == nil || len(msg.ReplyToMessage.Photo) == 0 {
		h.reply(chatID, "Reply to a photo with /setthumb to use it as your thumbnail.")
		return
	}
	photos := msg.ReplyToMessage.Photo
	fileID := photos[len(photos)-1].FileID // largest size last
	h.mutate(ctx, chatID, func() error { return h.users.SetThumbnail(ctx, userID, fileID) },
		"✅ Thumbnail saved.")
}

func (h *CommandHandler) showThumbnail(ctx context.Context, chatID, userID int64) {
	rec, err := h.users.GetOrCreate(ctx, userID)
	if err != nil || rec.Prefs.ThumbFileID == "" {
		h.reply(chatID, "You have no thumbnail set. Reply to a photo with /setthumb.")
		return
	}
	if err := h.gateway.SendPhotoByID(chatID, rec.Prefs.ThumbFileID, "🖼 Your thumbnail"); err != nil {
		log.Printf("failed to send thumbnail to chat %d: %v", chatID, err)
		h.reply(chatID, "❌ Could not load your thumbnail.")
	}
}

// adminSetFlag parses "/cmd <user_id>" and applies the mutation, admins only.
func (h *CommandHandler) adminSetFlag(ctx context.Context, msg *tgbotapi.Message, apply func(int64) error, okFormat string) {
	if !h.cfg.Telegram.IsAdmin(msg.From.ID) {
		return
	}
	var target int64
	if _, err := fmt.Sscanf(strings.TrimSpace(msg.CommandArguments()), "%d", &target); err != nil || target == 0 {
		h.reply(msg.Chat.ID, fmt.Sprintf("Usage: /%s <user_id>", msg.Command()))
		return
	}
	if err := apply(target); err != nil {
		log.Printf("admin /%s for user %d failed: %v", msg.Command(), target, err)
		h.reply(msg.Chat.ID, "❌ Something went wrong, check the logs.")
		return
	}
	h.reply(msg.Chat.ID, fmt.Sprintf(okFormat, target))
}

func (h *CommandHandler) adminStats(ctx context.Context, msg *tgbotapi.Message) {
	if !h.cfg.Telegram.IsAdmin(msg.From.ID) {
		return
	}
	stats, err := h.users.Stats(ctx)
	if err != nil {
		h.reply(msg.Chat.ID, "❌ Could not load stats: "+err.Error())
		return
	}
	h.reply(msg.Chat.ID, fmt.Sprintf(
		"📈 Stats\n👥 Users: %d (⭐ %d, 🚫 %d)\n📤 Uploads today: %d (%s)",
		stats.TotalUsers, stats.PremiumUsers, stats.BannedUsers,
		stats.UploadsToday, transfer.HumanReadable(stats.BytesToday)))
}

func (h *CommandHandler) mutate(ctx context.Context, chatID int64, apply func() error, okText string) {
	if err := apply(); err != nil {
		log.Printf("preference update for chat %d failed: %v", chatID, err)
		h.reply(chatID, "❌ Could not save, try again later.")
		return
	}
	h.reply(chatID, okText)
}

func onOff(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func (h *CommandHandler) reply(chatID int64, text string) {
	if _, err := h.gateway.Send(chatID, text); err != nil {
		log.Printf("failed to reply to chat %d: %v", chatID, err)
	}
}
