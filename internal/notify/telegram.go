package notify

import (
	"fmt"

	"teamsync/internal/models/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"go.uber.org/zap"
)

var severityPrefix = map[Severity]string{
	SeverityInfo:    "ℹ️",
	SeverityWarning: "⚠️",
	SeverityError:   "❌",
}

// TelegramNotifier pushes alerts to the configured admin chats.
type TelegramNotifier struct {
	api      *tgbotapi.BotAPI
	adminIDs []int64
	logger   *zap.Logger
}

func NewTelegramNotifier(cfg config.NotifyConfig, logger *zap.Logger) (*TelegramNotifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	api.Debug = cfg.Debug

	logger.Info("telegram notifier ready",
		zap.String("bot", api.Self.UserName),
		zap.Int("admins", len(cfg.AdminIDs)))

	return &TelegramNotifier{
		api:      api,
		adminIDs: cfg.AdminIDs,
		logger:   logger,
	}, nil
}

func (n *TelegramNotifier) Notify(severity Severity, message string) {
	text := severityPrefix[severity] + " " + message
	for _, chatID := range n.adminIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.api.Send(msg); err != nil {
			n.logger.Warn("telegram notify failed",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
	}
}
