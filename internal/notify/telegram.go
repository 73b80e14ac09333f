package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

// botSender is the slice of *tgbotapi.BotAPI the notifier uses.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers reminders as bot messages. The recipient is a chat id.
type Telegram struct {
	bot      botSender
	renderer *Renderer
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, renderer *Renderer) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: BOT_TOKEN is required", ErrInvalidConfig)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%w: telegram: %v", ErrInvalidConfig, err)
	}
	bot.Debug = false
	return &Telegram{bot: bot, renderer: renderer}, nil
}

// Send posts the plain-text reminder to the chat.
func (t *Telegram) Send(_ context.Context, recipient string, b domain.TimeBlock) error {
	chatID, err := strconv.ParseInt(strings.TrimPrefix(recipient, "tg:"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a chat id", ErrInvalidAddress, recipient)
	}
	msg, err := t.renderer.Render(b)
	if err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, msg.Subject+"\n\n"+msg.Text)); err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	return nil
}
