package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/legaldesk/internal/domain/conversation"
	"github.com/bigkaa/legaldesk/internal/domain/model"
)

var updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ld_telegram_updates_total",
	Help: "Обновления Telegram по результату разбора.",
}, []string{"result"})

// EventSink принимает события диалога (service.Dispatcher).
type EventSink interface {
	Submit(ev conversation.Event) error
}

// LabelResolver — обратный поиск кнопки по надписи (i18n.Bundle).
type LabelResolver interface {
	LookupLabel(text string) (key, lang string, ok bool)
}

// Bot — цикл long polling, превращающий сообщения в события диалога.
type Bot struct {
	api         API
	sink        EventSink
	labels      LabelResolver
	pollTimeout int
	logger      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBot создаёт Bot. pollTimeout — таймаут getUpdates в секундах.
func NewBot(api API, sink EventSink, labels LabelResolver, pollTimeout int, logger *slog.Logger) *Bot {
	return &Bot{
		api:         api,
		sink:        sink,
		labels:      labels,
		pollTimeout: pollTimeout,
		logger:      logger.With(slog.String("component", "telegram_bot")),
	}
}

// Start запускает приём обновлений в фоновой горутине.
func (b *Bot) Start(ctx context.Context) {
	bCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	go b.run(bCtx, updates)

	b.logger.Info("Приём обновлений Telegram запущен", slog.Int("poll_timeout", b.pollTimeout))
}

// Stop прекращает long polling и дожидается завершения цикла.
func (b *Bot) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
	b.logger.Info("Приём обновлений Telegram остановлен")
}

func (b *Bot) run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		updatesTotal.WithLabelValues("ignored").Inc()
		return
	}
	// Бот работает только в личных чатах; в чате оператора он лишь пишет.
	if msg.Chat != nil && !msg.Chat.IsPrivate() {
		updatesTotal.WithLabelValues("ignored").Inc()
		return
	}

	ev, ok := EventFromMessage(msg, b.labels)
	if !ok {
		updatesTotal.WithLabelValues("ignored").Inc()
		return
	}

	if err := b.sink.Submit(ev); err != nil {
		updatesTotal.WithLabelValues("rejected").Inc()
		b.logger.Warn("Событие не принято",
			slog.Int64("user_id", ev.UserID),
			slog.String("intent", ev.Intent.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	updatesTotal.WithLabelValues("accepted").Inc()
}

// commandIntents — команды бота.
var commandIntents = map[string]conversation.Intent{
	"start":    conversation.IntentRestart,
	"done":     conversation.IntentDone,
	"back":     conversation.IntentBack,
	"cancel":   conversation.IntentHome,
	"menu":     conversation.IntentHome,
	"language": conversation.IntentChangeLanguage,
}

// labelIntents — кнопки клавиатур по ключам каталога.
var labelIntents = map[string]conversation.Intent{
	"button.start_request":   conversation.IntentStartRequest,
	"button.contacts":        conversation.IntentContacts,
	"button.faq":             conversation.IntentFAQ,
	"button.admin_link":      conversation.IntentAdminLink,
	"button.change_language": conversation.IntentChangeLanguage,
	"button.back":            conversation.IntentBack,
	"button.home":            conversation.IntentHome,
	"button.yes":             conversation.IntentYes,
	"button.no":              conversation.IntentNo,
	"button.done":            conversation.IntentDone,
	"button.lang_ru":         conversation.IntentChooseLanguage,
	"button.lang_en":         conversation.IntentChooseLanguage,
}

// EventFromMessage преобразует сообщение Telegram в событие диалога.
// Возвращает false для сообщений, не требующих обработки.
//
// Текст сохраняется в Event.Text и для кнопок: на шагах ввода
// надпись кнопки трактуется как обычный текст.
func EventFromMessage(msg *tgbotapi.Message, labels LabelResolver) (conversation.Event, bool) {
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return conversation.Event{}, false
	}
	ev := conversation.Event{UserID: msg.From.ID, Intent: conversation.IntentText}

	switch {
	case msg.Document != nil:
		ev.Intent = conversation.IntentFile
		ev.File = model.Attachment{
			FileRef:     msg.Document.FileID,
			DisplayName: documentName(msg),
		}
	case len(msg.Photo) > 0:
		// Размеры фото идут по возрастанию; берётся самый крупный.
		largest := msg.Photo[len(msg.Photo)-1]
		ev.Intent = conversation.IntentFile
		ev.File = model.Attachment{
			FileRef:     largest.FileID,
			DisplayName: fmt.Sprintf("photo_%d.jpg", msg.MessageID),
		}
	case msg.IsCommand():
		// Неизвестная команда не попадает в поля заявки как текст.
		if intent, ok := commandIntents[msg.Command()]; ok {
			ev.Intent = intent
		}
	default:
		// Прочие типы (голосовые, стикеры) дают пустой текст:
		// диалог повторит подсказку текущего шага.
		ev.Text = msg.Text
		if labels == nil {
			break
		}
		key, _, ok := labels.LookupLabel(msg.Text)
		if !ok {
			break
		}
		if intent, known := labelIntents[key]; known {
			ev.Intent = intent
		}
		switch key {
		case "button.lang_ru":
			ev.Language = model.LanguageRU
		case "button.lang_en":
			ev.Language = model.LanguageEN
		}
	}
	return ev, true
}

func documentName(msg *tgbotapi.Message) string {
	if msg.Document.FileName != "" {
		return msg.Document.FileName
	}
	return fmt.Sprintf("document_%d", msg.MessageID)
}
