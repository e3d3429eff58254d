package intake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tgfetch/url-uploader-bot/internal/models"
	"github.com/tgfetch/url-uploader-bot/internal/quota"
	"github.com/tgfetch/url-uploader-bot/internal/transfer"
)

// runDirectTransfer streams a plain URL to disk and finishes the session.
// The conversation lock is held for the whole transfer; a replacing URL
// cancels us through the cancel registry before queueing on the lock.
func (m *Machine) runDirectTransfer(ctx context.Context, rec models.UserQuotaRecord, state *models.PendingSession, msgID int) {
	tctx, cancel := context.WithCancel(ctx)
	m.registerCancel(state.ChatID, cancel)
	defer cancel()
	defer m.clearCancel(state.ChatID)

	remaining, limited := quota.RemainingSize(rec)
	dest := m.destPath(state.CandidateFilename)

	res, err := m.direct.Download(tctx, state.URL, dest, remaining, limited,
		m.progressReporter(state.ChatID, msgID, "⬇️ Downloading..."))
	if err != nil {
		m.failTransfer(state.ChatID, msgID, err)
		return
	}
	m.finishTransfer(ctx, rec, state, msgID, res)
}

// runMediaTransfer fetches a chosen encoding through the resolver, then
// validates the resulting file against the ceiling and the size budget
// because the resolver cannot enforce either mid-stream.
func (m *Machine) runMediaTransfer(ctx context.Context, rec models.UserQuotaRecord, state *models.PendingSession, msgID int, format models.MediaFormat) {
	tctx, cancel := context.WithCancel(ctx)
	m.registerCancel(state.ChatID, cancel)
	defer cancel()
	defer m.clearCancel(state.ChatID)

	remaining, limited := quota.RemainingSize(rec)
	dest := m.destPath(state.CandidateFilename)
	started := time.Now()

	path, err := m.media.Download(tctx, state.URL, format.ID, dest,
		m.progressReporter(state.ChatID, msgID, "⬇️ Downloading..."))
	if err != nil {
		m.failTransfer(state.ChatID, msgID, err)
		return
	}

	size, err := m.direct.ValidateFile(path, remaining, limited)
	if err != nil {
		m.failTransfer(state.ChatID, msgID, err)
		return
	}

	m.finishTransfer(ctx, rec, state, msgID, &models.TransferResult{
		LocalPath: path,
		ByteCount: size,
		Elapsed:   time.Since(started),
	})
}

// progressReporter builds a throttled progress callback that rewrites the
// workflow message in place. Edit failures are swallowed: progress text is
// cosmetic and Telegram rejects no-op edits anyway.
func (m *Machine) progressReporter(chatID int64, msgID int, prefix string) transfer.ProgressFunc {
	var lastText string
	return func(done, total int64, speed float64, eta time.Duration, hasETA bool) {
		text := transfer.ProgressText(prefix, done, total, speed, eta, hasETA)
		if text == lastText || msgID == 0 {
			return
		}
		lastText = text
		if err := m.chat.Edit(chatID, msgID, text); err != nil {
			log.Printf("progress edit failed for chat %d: %v", chatID, err)
		}
	}
}

// failTransfer reports a failed or rejected transfer and destroys the
// session. Quota counters are untouched: no partial credit.
func (m *Machine) failTransfer(chatID int64, msgID int, err error) {
	defer m.sessions.Delete(chatID)

	if errors.Is(err, context.Canceled) {
		// Replaced by a newer URL; the replacing handler owns the chat now.
		log.Printf("transfer for chat %d cancelled", chatID)
		return
	}

	var breach *transfer.QuotaBreachError
	switch {
	case errors.Is(err, transfer.ErrCeilingExceeded):
		m.report(chatID, msgID, fmt.Sprintf(
			"❌ The file turned out bigger than the %s per-file ceiling.\nIt was discarded.",
			transfer.HumanReadable(m.cfg.Limits.MaxFileSize)))
	case errors.As(err, &breach):
		m.report(chatID, msgID, fmt.Sprintf(
			"⛔ The file turned out bigger than today's remaining size limit.\nRemaining: %s, file: %s\nIt was discarded.",
			transfer.HumanReadable(breach.Remaining), transfer.HumanReadable(breach.Size)))
	default:
		m.report(chatID, msgID, "❌ Download failed: "+err.Error())
	}
}

// finishTransfer records the success, hands the file to the uploader and
// posts the final receipt. Counters move exactly once, before the upload
// stage, so an upload hiccup cannot double-charge a retry.
func (m *Machine) finishTransfer(ctx context.Context, rec models.UserQuotaRecord, state *models.PendingSession, msgID int, res *models.TransferResult) {
	defer m.sessions.Delete(state.ChatID)

	if err := m.users.RecordSuccess(ctx, state.UserID, res.ByteCount, time.Now()); err != nil {
		log.Printf("failed to record upload for user %d: %v", state.UserID, err)
	}

	m.report(state.ChatID, msgID, "⬆️ Uploading...")

	receipt, err := m.uploader.Upload(ctx, res.LocalPath, state.UserID, rec.Prefs)
	if err != nil {
		m.report(state.ChatID, msgID, "❌ Upload failed: "+err.Error())
		return
	}

	final := fmt.Sprintf("✅ Done in %s.\n📄 %s (%s)",
		transfer.FormatETA(res.Elapsed), state.CandidateFilename, transfer.HumanReadable(res.ByteCount))
	if caption := buildCaption(rec.Prefs.Caption, state.CandidateFilename); caption != "" {
		final += "\n\n" + caption
	}
	if receipt.ShareURL != "" {
		final += "\n🔗 " + receipt.ShareURL
	}
	m.report(state.ChatID, msgID, final)

	if m.cfg.LogChannel != 0 {
		m.send(m.cfg.LogChannel, fmt.Sprintf("📤 User %d uploaded %s (%s)",
			state.UserID, state.CandidateFilename, transfer.HumanReadable(res.ByteCount)))
	}
}

// buildCaption expands the user's caption template for one file.
func buildCaption(template, filename string) string {
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{file_name}", filename)
}
