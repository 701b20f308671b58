package service

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cryptomon/internal/expr"
	"cryptomon/internal/models"
)

// LogHandler writes the rendered message at warn level. It is the default
// action for alert-style tasks.
func LogHandler(log *zap.Logger) Handler {
	return func(_ context.Context, task *models.Task, message string, _ expr.ExecContext, _ ExchangeClient) error {
		if message == "" {
			message = fmt.Sprintf("task %s fired", task.Name)
		}
		log.Warn(message, zap.String("task", task.Name))
		return nil
	}
}

// TelegramHandler pushes the rendered message to the configured chat.
func TelegramHandler(token string, chatID int64) (Handler, error) {
	bot, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram auth")
	}
	return func(_ context.Context, task *models.Task, message string, _ expr.ExecContext, _ ExchangeClient) error {
		if message == "" {
			message = fmt.Sprintf("task %s fired", task.Name)
		}
		_, err := bot.Send(tgbot.NewMessage(chatID, message))
		return errors.Wrapf(err, "send for task %s", task.Name)
	}, nil
}
