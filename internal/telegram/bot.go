// Package telegram binds the workflow engine and the command surface to the
// Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tgfetch/url-uploader-bot/internal/intake"
)

// Gateway adapts the Bot API to the messaging interface the workflow engine
// speaks. Message IDs flow back so the engine can edit in place.
type Gateway struct {
	api *tgbotapi.BotAPI
}

func (g *Gateway) Send(chatID int64, text string) (int, error) {
	sent, err := g.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (g *Gateway) SendKeyboard(chatID int64, text string, kb intake.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = toMarkup(kb)
	sent, err := g.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (g *Gateway) Edit(chatID int64, messageID int, text string) error {
	_, err := g.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (g *Gateway) EditKeyboard(chatID int64, messageID int, text string, kb intake.Keyboard) error {
	_, err := g.api.Send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, toMarkup(kb)))
	return err
}

func (g *Gateway) SendPhoto(chatID int64, photoURL, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	_, err := g.api.Send(photo)
	return err
}

// SendPhotoByID sends a previously stored Telegram photo (thumbnail view).
func (g *Gateway) SendPhotoByID(chatID int64, fileID, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	_, err := g.api.Send(photo)
	return err
}

func (g *Gateway) AnswerCallback(callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	_, err := g.api.Request(cb)
	return err
}

func toMarkup(kb intake.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Bot owns the long-poll loop. Each update is handled on its own goroutine;
// per-conversation ordering is the engine's job, not the loop's.
type Bot struct {
	api     *tgbotapi.BotAPI
	gateway *Gateway
}

func Connect(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Authorized on Telegram as @%s", api.Self.UserName)
	return &Bot{api: api, gateway: &Gateway{api: api}}, nil
}

func (b *Bot) Gateway() *Gateway { return b.gateway }

func (b *Bot) Run(ctx context.Context, machine *intake.Machine, commands *CommandHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.dispatch(ctx, update, machine, commands)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update, machine *intake.Machine, commands *CommandHandler) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil {
			return
		}
		if strings.HasPrefix(cb.Data, prefsCallbackPrefix) {
			commands.HandlePrefsCallback(ctx, cb)
			return
		}
		err := machine.HandleCallback(ctx, intake.Callback{
			ID:        cb.ID,
			UserID:    cb.From.ID,
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.MessageID,
			Data:      cb.Data,
		})
		if err != nil && !errors.Is(err, intake.ErrStateExpired) {
			log.Printf("callback handling failed for chat %d: %v", cb.Message.Chat.ID, err)
		}

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil {
			return
		}
		if msg.IsCommand() {
			commands.Handle(ctx, msg)
			return
		}
		if msg.Text == "" {
			return
		}
		machine.HandleMessage(ctx, msg.From.ID, msg.Chat.ID, msg.Text)
	}
}
