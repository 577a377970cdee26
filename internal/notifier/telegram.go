package notifier

import (
	"context"
	"fmt"

	"fitstake_miniapp/internal/model"
	"fitstake_miniapp/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type TelegramConfig struct {
	BotToken string `json:"botToken"`
	Debug    bool   `json:"debug"`
}

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends a private bot message to each recipient of an event.
type Telegram struct {
	sender Sender
}

// NewBot connects to the Bot API; it fails when the token is rejected.
func NewBot(cfg TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	bot.Debug = cfg.Debug

	return bot, nil
}

func NewTelegram(sender Sender) *Telegram {
	return &Telegram{sender: sender}
}

func (t *Telegram) Notify(ctx context.Context, event model.Event) {
	log := logger.Named("telegram")

	for _, chatID := range event.Recipients {
		if ctx.Err() != nil {
			return
		}

		text := messageText(event, chatID == event.UserTelegramID)
		if text == "" {
			continue
		}

		if _, err := t.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			log.Warn("failed to send telegram notification",
				zap.Int64("telegram_id", chatID),
				zap.String("event", string(event.Type)),
				zap.Error(err))
		}
	}
}

func messageText(e model.Event, own bool) string {
	switch e.Type {
	case model.EventChallengeCreated:
		return fmt.Sprintf("Your challenge %q is live. %d tokens staked.", e.ChallengeTitle, e.Amount)
	case model.EventChallengeJoined:
		if own {
			return fmt.Sprintf("You joined %q with a stake of %d tokens.", e.ChallengeTitle, e.Amount)
		}
		return fmt.Sprintf("A new participant joined %q.", e.ChallengeTitle)
	case model.EventChallengeLeft:
		if own {
			return fmt.Sprintf("You left %q. %d tokens were returned to your balance.", e.ChallengeTitle, e.Amount)
		}
		return fmt.Sprintf("A participant left %q.", e.ChallengeTitle)
	case model.EventChallengeCompleted:
		if own {
			return fmt.Sprintf("You completed %q! %d tokens are on their way.", e.ChallengeTitle, e.Amount)
		}
		return fmt.Sprintf("Someone just completed %q. Keep going!", e.ChallengeTitle)
	}

	// progress updates only go to the websocket stream
	return ""
}
