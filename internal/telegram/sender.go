package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bigkaa/legaldesk/internal/domain/conversation"
	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// Labels — перевод надписей кнопок.
type Labels interface {
	Translate(lang, key string) string
}

// Sender отправляет сообщения пользователям и в чат оператора.
type Sender struct {
	api    API
	labels Labels
	logger *slog.Logger
}

// NewSender создаёт Sender.
func NewSender(api API, labels Labels, logger *slog.Logger) *Sender {
	return &Sender{
		api:    api,
		labels: labels,
		logger: logger.With(slog.String("component", "telegram_sender")),
	}
}

// SendText отправляет текст без клавиатуры.
// Текст уходит без режима разметки: имена и описания заявок
// могут содержать символы Markdown.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	return s.send(ctx, msg)
}

// SendPrompt отправляет подсказку диалога с клавиатурой на языке пользователя.
func (s *Sender) SendPrompt(ctx context.Context, userID int64, lang model.Language, p conversation.Prompt) error {
	msg := tgbotapi.NewMessage(userID, p.Text)
	msg.ReplyMarkup = s.keyboard(lang, p.Keyboard)
	return s.send(ctx, msg)
}

func (s *Sender) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	_, err := call(ctx, func() (tgbotapi.Message, error) {
		return s.api.Send(msg)
	})
	if err != nil {
		s.logger.Warn("Ошибка отправки сообщения",
			slog.Int64("chat_id", msg.ChatID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("отправка сообщения в чат %d: %w", msg.ChatID, err)
	}
	return nil
}

// keyboardLayouts — раскладки клавиатур: строки ключей кнопок.
var keyboardLayouts = map[conversation.Keyboard][][]string{
	conversation.KeyboardMenu: {
		{"button.start_request"},
		{"button.contacts", "button.faq"},
		{"button.admin_link", "button.change_language"},
	},
	conversation.KeyboardLanguage: {
		{"button.lang_ru", "button.lang_en"},
	},
	conversation.KeyboardNavigation: {
		{"button.back", "button.home"},
	},
	conversation.KeyboardYesNo: {
		{"button.yes", "button.no"},
		{"button.back", "button.home"},
	},
	conversation.KeyboardAttachments: {
		{"button.done"},
		{"button.back", "button.home"},
	},
}

// keyboard строит разметку ответа. KeyboardNone убирает клавиатуру.
func (s *Sender) keyboard(lang model.Language, kb conversation.Keyboard) any {
	layout, ok := keyboardLayouts[kb]
	if !ok {
		return tgbotapi.NewRemoveKeyboard(true)
	}

	rows := make([][]tgbotapi.KeyboardButton, 0, len(layout))
	for _, keys := range layout {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(keys))
		for _, key := range keys {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(s.labels.Translate(string(lang), key)))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}

	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}
