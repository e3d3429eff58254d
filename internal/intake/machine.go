// Package intake is the per-conversation workflow engine: it turns an
// inbound URL into a resolved, quota-checked, progress-reported transfer,
// driving the naming and quality dialogue in between. Quota is re-checked
// against a fresh store read at every decision point because sizes are often
// unknown until late and counters can move under us from the user's other
// conversations.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tgfetch/url-uploader-bot/internal/configuration"
	"github.com/tgfetch/url-uploader-bot/internal/models"
	"github.com/tgfetch/url-uploader-bot/internal/probe"
	"github.com/tgfetch/url-uploader-bot/internal/quota"
	"github.com/tgfetch/url-uploader-bot/internal/session"
	"github.com/tgfetch/url-uploader-bot/internal/storage"
	"github.com/tgfetch/url-uploader-bot/internal/transfer"
	"github.com/tgfetch/url-uploader-bot/internal/upload"
)

// Callback identifiers produced on inline keyboards.
const (
	CallbackNameDefault    = "name_default"
	CallbackNameRename     = "name_rename"
	CallbackDirectDownload = "direct_dl"
	FormatCallbackPrefix   = "fmt_"
)

// ErrStateExpired is returned when a decision callback arrives for a
// session that no longer exists (expired or replaced).
var ErrStateExpired = errors.New("session expired or replaced")

var urlRegexp = regexp.MustCompile(`https?://[^\s]+`)

// Button and Keyboard are the transport-neutral inline keyboard shapes.
type Button struct {
	Label string
	Data  string
}

type Keyboard [][]Button

// Chat is the messaging side of the chat platform.
type Chat interface {
	Send(chatID int64, text string) (int, error)
	SendKeyboard(chatID int64, text string, kb Keyboard) (int, error)
	Edit(chatID int64, messageID int, text string) error
	EditKeyboard(chatID int64, messageID int, text string, kb Keyboard) error
	SendPhoto(chatID int64, photoURL, caption string) error
	AnswerCallback(callbackID, text string, alert bool) error
}

// Prober resolves a URL into a direct descriptor or a format list.
type Prober interface {
	Probe(ctx context.Context, url string, remaining int64, limited bool) *probe.Result
}

// MediaDownloader fetches a chosen encoding (the resolver's download path).
type MediaDownloader interface {
	Download(ctx context.Context, url, formatID, outPath string, onProgress transfer.ProgressFunc) (string, error)
}

// DirectDownloader streams a plain URL and validates completed files.
type DirectDownloader interface {
	Download(ctx context.Context, url, destPath string, remaining int64, limited bool, onProgress transfer.ProgressFunc) (*models.TransferResult, error)
	ValidateFile(path string, remaining int64, limited bool) (int64, error)
}

// Callback is a button press routed to the machine.
type Callback struct {
	ID        string
	UserID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// Config is the slice of runtime configuration the machine needs.
type Config struct {
	Limits      configuration.LimitsConfig
	DownloadDir string
	LogChannel  int64
}

type Machine struct {
	cfg      Config
	chat     Chat
	users    storage.Store
	prober   Prober
	media    MediaDownloader
	direct   DirectDownloader
	uploader upload.Uploader
	sessions *session.Store

	convMu sync.Mutex
	convs  map[int64]*sync.Mutex

	cancelMu sync.Mutex
	cancels  map[int64]context.CancelFunc
}

func NewMachine(cfg Config, chat Chat, users storage.Store, prober Prober, media MediaDownloader, direct DirectDownloader, uploader upload.Uploader, sessions *session.Store) *Machine {
	return &Machine{
		cfg:      cfg,
		chat:     chat,
		users:    users,
		prober:   prober,
		media:    media,
		direct:   direct,
		uploader: uploader,
		sessions: sessions,
		convs:    make(map[int64]*sync.Mutex),
		cancels:  make(map[int64]context.CancelFunc),
	}
}

// SplitURLAndName separates "url | custom name" submissions.
func SplitURLAndName(text string) (url, customName string) {
	parts := strings.SplitN(text, "|", 2)
	url = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		customName = strings.TrimSpace(parts[1])
	}
	return url, customName
}

// HandleMessage processes an inbound text message for one conversation.
// Decisions for a conversation are serialized on a per-conversation mutex.
func (m *Machine) HandleMessage(ctx context.Context, userID, chatID int64, text string) {
	if urlRegexp.MatchString(text) {
		// Latest URL wins: a running transfer for this conversation is
		// cancelled before we queue up behind its lock.
		m.cancelTransfer(chatID)
	}

	unlock := m.lockConversation(chatID)
	defer unlock()

	banned, err := m.users.IsBanned(ctx, userID)
	if err != nil {
		log.Printf("ban check failed for user %d: %v", userID, err)
	}
	if banned {
		return
	}

	if state, ok := m.sessions.Get(chatID); ok && state.Mode == models.ModeAwaitNewName {
		m.handleNewName(ctx, chatID, state, text)
		return
	}

	urlPart, customName := SplitURLAndName(text)
	url := urlRegexp.FindString(urlPart)
	if url == "" {
		// Not a URL; the bot stays silent.
		return
	}
	m.handleNewURL(ctx, userID, chatID, url, customName)
}

func (m *Machine) handleNewURL(ctx context.Context, userID, chatID int64, url, customName string) {
	rec, err := m.users.GetOrCreate(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		m.send(chatID, "❌ Something went wrong, please try again later.")
		return
	}

	now := time.Now()
	cooldown := time.Duration(m.cfg.Limits.CooldownSeconds) * time.Second
	if st := quota.CheckCooldown(rec, cooldown, now); !st.Allowed {
		log.Printf("upload denied for user %d: %v", userID,
			&quota.DeniedError{Reason: quota.DenyCooldown, Wait: st.Wait})
		m.send(chatID, fmt.Sprintf(
			"⏳ Please slow down.\nNext upload allowed in %s.\nPremium users have no cooldown.",
			quota.FormatWait(st.Wait)))
		return
	}
	if !quota.CheckCountLimit(rec) {
		log.Printf("upload denied for user %d: %v", userID,
			&quota.DeniedError{Reason: quota.DenyCount, Used: rec.UsedCountToday, Limit: rec.DailyCountLimit})
		m.send(chatID, fmt.Sprintf(
			"⛔ Daily upload count limit reached.\nUsed: %d/%d",
			rec.UsedCountToday, rec.DailyCountLimit))
		return
	}

	msgID, err := m.chat.Send(chatID, "🔍 Scanning the link...")
	if err != nil {
		log.Printf("failed to send scan message to chat %d: %v", chatID, err)
	}

	remaining, limited := quota.RemainingSize(rec)
	result := m.prober.Probe(ctx, url, remaining, limited)

	// Pre-transfer size check with whatever the header probe knows.
	// Unknown (0) never denies here; the transfer re-checks afterwards.
	if size := result.Head.Size; size > 0 {
		if m.cfg.Limits.MaxFileSize > 0 && size > m.cfg.Limits.MaxFileSize {
			m.report(chatID, msgID, fmt.Sprintf(
				"⛔ Single file is too big.\nSize: %s (over the %s ceiling)",
				transfer.HumanReadable(size), transfer.HumanReadable(m.cfg.Limits.MaxFileSize)))
			return
		}
		if !quota.CheckSizeBudget(remaining, limited, size) {
			m.report(chatID, msgID, fmt.Sprintf(
				"⛔ This file would exceed today's size limit.\nRemaining: %s, file: %s",
				transfer.HumanReadable(remaining), transfer.HumanReadable(size)))
			return
		}
	}

	sess := &models.PendingSession{
		ChatID:     chatID,
		UserID:     userID,
		URL:        url,
		ProbedSize: result.Head.Size,
		Mode:       models.ModeAwaitNameChoice,
		CreatedAt:  now,
	}
	if customName != "" {
		sess.CustomName = probe.SanitizeFilename(customName)
	}

	if result.Kind == models.SourceMultiFormat {
		sess.Kind = models.SourceMultiFormat
		sess.Title = result.Title
		sess.Formats = result.Formats
		sess.ThumbnailURL = result.ThumbnailURL
		if sess.CustomName != "" {
			sess.CandidateFilename = sess.CustomName
		} else {
			sess.CandidateFilename = probe.SanitizeFilename(result.Title + ".mp4")
		}
	} else {
		sess.Kind = models.SourceDirectFile
		sess.Title = result.Filename
		if sess.CustomName != "" {
			sess.CandidateFilename = sess.CustomName
		} else {
			sess.CandidateFilename = result.Filename
		}
	}

	m.sessions.Put(sess)

	m.reportKeyboard(chatID, msgID, fmt.Sprintf(
		"✅ Scan complete.\n\n🔗 URL: %s\n📄 Detected file name:\n%s\n\nChoose a name:",
		url, sess.CandidateFilename), nameChoiceKeyboard())
}

func (m *Machine) handleNewName(ctx context.Context, chatID int64, state *models.PendingSession, text string) {
	if urlRegexp.MatchString(text) {
		m.send(chatID, "❗ You're renaming right now.\nSend the new file name, e.g. my_video.mp4")
		return
	}

	name := probe.SanitizeFilename(strings.TrimSpace(text))
	state.CustomName = name
	state.CandidateFilename = name

	if state.Kind == models.SourceMultiFormat {
		state.Mode = models.ModeAwaitQuality
		m.sessions.Put(state)
		m.presentQualityChoice(chatID, 0, state,
			fmt.Sprintf("✅ File name set.\n\n📄 File: %s\n\n🎥 Now select the quality:", name))
		return
	}

	rec, ok := m.recheckForTransfer(ctx, state, chatID, 0, state.ProbedSize)
	if !ok {
		return
	}
	msgID, err := m.chat.Send(chatID, "⬇️ Downloading...")
	if err != nil {
		log.Printf("failed to send progress message to chat %d: %v", chatID, err)
	}
	m.runDirectTransfer(ctx, rec, state, msgID)
}

// HandleCallback processes a button press for one conversation.
func (m *Machine) HandleCallback(ctx context.Context, cb Callback) error {
	unlock := m.lockConversation(cb.ChatID)
	defer unlock()

	state, ok := m.sessions.Get(cb.ChatID)
	if !ok {
		m.answer(cb.ID, "⏱ Timed out. Send the URL again.", true)
		return ErrStateExpired
	}

	rec, err := m.users.GetOrCreate(ctx, cb.UserID)
	if err != nil {
		m.answer(cb.ID, "❌ Something went wrong, please try again.", true)
		return err
	}
	if !quota.CheckCountLimit(rec) {
		m.answer(cb.ID, "", false)
		m.edit(cb.ChatID, cb.MessageID, fmt.Sprintf(
			"⛔ Count limit exceeded: %d/%d\nTry again tomorrow.",
			rec.UsedCountToday, rec.DailyCountLimit))
		m.sessions.Delete(cb.ChatID)
		return nil
	}

	switch {
	case cb.Data == CallbackNameDefault:
		if state.Mode != models.ModeAwaitNameChoice {
			m.answer(cb.ID, "⏱ That choice is no longer valid.", true)
			return ErrStateExpired
		}
		m.answer(cb.ID, "Using the default name.", false)
		if state.Kind == models.SourceMultiFormat {
			state.Mode = models.ModeAwaitQuality
			m.sessions.Put(state)
			m.presentQualityChoice(cb.ChatID, cb.MessageID, state, fmt.Sprintf(
				"🎥 Streaming site detected.\n📄 File: %s\n\nSelect the quality:", state.CandidateFilename))
			return nil
		}
		m.startDirect(ctx, state, cb)
		return nil

	case cb.Data == CallbackNameRename:
		if state.Mode != models.ModeAwaitNameChoice {
			m.answer(cb.ID, "⏱ That choice is no longer valid.", true)
			return ErrStateExpired
		}
		state.Mode = models.ModeAwaitNewName
		m.sessions.Put(state)
		m.answer(cb.ID, "Send the new file name (with extension).", true)
		m.send(cb.ChatID, "✏ Send the new file name (with extension),\ne.g. my_video.mp4")
		return nil

	case cb.Data == CallbackDirectDownload:
		if state.Mode != models.ModeAwaitQuality {
			m.answer(cb.ID, "⏱ That choice is no longer valid.", true)
			return ErrStateExpired
		}
		m.answer(cb.ID, "Trying a direct download...", false)
		m.startDirect(ctx, state, cb)
		return nil

	case strings.HasPrefix(cb.Data, FormatCallbackPrefix):
		if state.Mode != models.ModeAwaitQuality {
			m.answer(cb.ID, "⏱ That choice is no longer valid.", true)
			return ErrStateExpired
		}
		formatID := strings.TrimPrefix(cb.Data, FormatCallbackPrefix)
		format, found := findFormat(state.Formats, formatID)
		if !found {
			m.answer(cb.ID, "❌ Unknown format, pick one from the list.", true)
			return nil
		}
		m.answer(cb.ID, "", false)
		fresh, ok := m.recheckForTransfer(ctx, state, cb.ChatID, cb.MessageID, format.Size)
		if !ok {
			return nil
		}
		m.edit(cb.ChatID, cb.MessageID, "⬇️ Downloading...")
		m.runMediaTransfer(ctx, fresh, state, cb.MessageID, format)
		return nil

	default:
		m.answer(cb.ID, "", false)
		return nil
	}
}

// startDirect re-validates against the probed size and runs the direct path.
func (m *Machine) startDirect(ctx context.Context, state *models.PendingSession, cb Callback) {
	fresh, ok := m.recheckForTransfer(ctx, state, cb.ChatID, cb.MessageID, state.ProbedSize)
	if !ok {
		return
	}
	m.edit(cb.ChatID, cb.MessageID, "⬇️ Downloading...")
	m.runDirectTransfer(ctx, fresh, state, cb.MessageID)
}

// recheckForTransfer applies the ceiling and a fresh size-budget check right
// before a transfer starts. Denials report, destroy the session and return
// ok=false. candidateSize 0 (unknown) never denies.
func (m *Machine) recheckForTransfer(ctx context.Context, state *models.PendingSession, chatID int64, msgID int, candidateSize int64) (models.UserQuotaRecord, bool) {
	rec, err := m.users.GetOrCreate(ctx, state.UserID)
	if err != nil {
		log.Printf("failed to load user %d: %v", state.UserID, err)
		m.report(chatID, msgID, "❌ Something went wrong, please try again later.")
		return rec, false
	}

	if candidateSize > 0 && m.cfg.Limits.MaxFileSize > 0 && candidateSize > m.cfg.Limits.MaxFileSize {
		m.report(chatID, msgID, fmt.Sprintf(
			"⛔ The file is too big.\nSize: %s (over the %s ceiling)",
			transfer.HumanReadable(candidateSize), transfer.HumanReadable(m.cfg.Limits.MaxFileSize)))
		m.sessions.Delete(chatID)
		return rec, false
	}

	remaining, limited := quota.RemainingSize(rec)
	if !quota.CheckSizeBudget(remaining, limited, candidateSize) {
		log.Printf("upload denied for user %d: %v", state.UserID,
			&quota.DeniedError{Reason: quota.DenySize, Remaining: remaining, Candidate: candidateSize})
		m.report(chatID, msgID, fmt.Sprintf(
			"⛔ This file would exceed today's size limit.\nRemaining: %s, file: %s",
			transfer.HumanReadable(remaining), transfer.HumanReadable(candidateSize)))
		m.sessions.Delete(chatID)
		return rec, false
	}

	return rec, true
}

func (m *Machine) presentQualityChoice(chatID int64, editMsgID int, state *models.PendingSession, text string) {
	if state.ThumbnailURL != "" {
		if err := m.chat.SendPhoto(chatID, state.ThumbnailURL, state.Title); err != nil {
			log.Printf("failed to send thumbnail preview to chat %d: %v", chatID, err)
		}
	}
	kb := qualityKeyboard(state.Formats)
	if editMsgID > 0 {
		m.editKeyboard(chatID, editMsgID, text, kb)
		return
	}
	if _, err := m.chat.SendKeyboard(chatID, text, kb); err != nil {
		log.Printf("failed to send quality keyboard to chat %d: %v", chatID, err)
	}
}

func findFormat(formats []models.MediaFormat, id string) (models.MediaFormat, bool) {
	for _, f := range formats {
		if f.ID == id {
			return f, true
		}
	}
	return models.MediaFormat{}, false
}

func nameChoiceKeyboard() Keyboard {
	return Keyboard{{
		{Label: "✅ Default name", Data: CallbackNameDefault},
		{Label: "✏ Rename", Data: CallbackNameRename},
	}}
}

func qualityKeyboard(formats []models.MediaFormat) Keyboard {
	var kb Keyboard
	for _, f := range formats {
		height := "?"
		if f.Height > 0 {
			height = fmt.Sprintf("%d", f.Height)
		}
		size := "?"
		if f.Size > 0 {
			size = transfer.HumanReadable(f.Size)
		}
		kb = append(kb, []Button{{
			Label: fmt.Sprintf("%sp %s (%s)", height, f.Ext, size),
			Data:  FormatCallbackPrefix + f.ID,
		}})
	}
	kb = append(kb, []Button{{Label: "🌐 Try direct download", Data: CallbackDirectDownload}})
	return kb
}

func (m *Machine) destPath(filename string) string {
	return filepath.Join(m.cfg.DownloadDir, fmt.Sprintf("%s_%s", uuid.New().String()[:8], filename))
}

// send/edit helpers that swallow delivery failures: a deleted chat message
// must never abort the workflow.
func (m *Machine) send(chatID int64, text string) {
	if _, err := m.chat.Send(chatID, text); err != nil {
		log.Printf("failed to send message to chat %d: %v", chatID, err)
	}
}

func (m *Machine) edit(chatID int64, messageID int, text string) {
	if err := m.chat.Edit(chatID, messageID, text); err != nil {
		log.Printf("failed to edit message %d in chat %d: %v", messageID, chatID, err)
	}
}

func (m *Machine) editKeyboard(chatID int64, messageID int, text string, kb Keyboard) {
	if err := m.chat.EditKeyboard(chatID, messageID, text, kb); err != nil {
		log.Printf("failed to edit message %d in chat %d: %v", messageID, chatID, err)
	}
}

func (m *Machine) answer(callbackID, text string, alert bool) {
	if err := m.chat.AnswerCallback(callbackID, text, alert); err != nil {
		log.Printf("failed to answer callback: %v", err)
	}
}

// report edits the workflow message when there is one, otherwise sends.
func (m *Machine) report(chatID int64, msgID int, text string) {
	if msgID > 0 {
		m.edit(chatID, msgID, text)
		return
	}
	m.send(chatID, text)
}

// reportKeyboard is report for messages carrying an inline keyboard.
func (m *Machine) reportKeyboard(chatID int64, msgID int, text string, kb Keyboard) {
	if msgID > 0 {
		m.editKeyboard(chatID, msgID, text, kb)
		return
	}
	if _, err := m.chat.SendKeyboard(chatID, text, kb); err != nil {
		log.Printf("failed to send keyboard to chat %d: %v", chatID, err)
	}
}

func (m *Machine) lockConversation(chatID int64) func() {
	m.convMu.Lock()
	mu, ok := m.convs[chatID]
	if !ok {
		mu = &sync.Mutex{}
		m.convs[chatID] = mu
	}
	m.convMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (m *Machine) registerCancel(chatID int64, cancel context.CancelFunc) {
	m.cancelMu.Lock()
	m.cancels[chatID] = cancel
	m.cancelMu.Unlock()
}

func (m *Machine) clearCancel(chatID int64) {
	m.cancelMu.Lock()
	delete(m.cancels, chatID)
	m.cancelMu.Unlock()
}

func (m *Machine) cancelTransfer(chatID int64) {
	m.cancelMu.Lock()
	cancel, ok := m.cancels[chatID]
	m.cancelMu.Unlock()
	if ok {
		cancel()
	}
}
