package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramGateway sends reminders as Telegram messages. Transient API errors
// are retried in-call a few times; anything still failing is reported to the
// scheduler, which retries on a later tick.
type TelegramGateway struct {
	api *tgbotapi.BotAPI
}

func NewTelegramGateway(token string) (*TelegramGateway, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &TelegramGateway{api: api}, nil
}

func (g *TelegramGateway) Send(ctx context.Context, recipientID int64, text string) error {
	msg := tgbotapi.NewMessage(recipientID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	err := retry.Do(
		func() error {
			_, err := g.api.Send(msg)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("telegram send to %d: %w", recipientID, err)
	}
	return nil
}
