// Пакет telegram — транспорт Telegram Bot API: приём обновлений
// (long polling), отправка ответов с клавиатурами и скачивание файлов.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API — используемое подмножество методов tgbotapi.BotAPI.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewAPI создаёт клиент Bot API и проверяет токен запросом getMe.
// Таймаут HTTP-клиента превышает таймаут long polling, иначе
// getUpdates обрывался бы на стороне клиента.
func NewAPI(token, endpoint string, pollTimeout int, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: time.Duration(pollTimeout)*time.Second + 30*time.Second}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к Telegram Bot API: %w", err)
	}

	logger.Info("Подключение к Telegram Bot API установлено",
		slog.String("bot", api.Self.UserName),
		slog.Int64("bot_id", api.Self.ID),
	)
	return api, nil
}

// FileEndpointFor выводит шаблон адреса скачивания файлов из шаблона Bot API.
// Для официального сервера возвращается tgbotapi.FileEndpoint.
func FileEndpointFor(apiEndpoint string) string {
	if apiEndpoint == "" || apiEndpoint == tgbotapi.APIEndpoint {
		return tgbotapi.FileEndpoint
	}
	if i := strings.LastIndex(apiEndpoint, "/bot%s/%s"); i >= 0 {
		return apiEndpoint[:i] + "/file/bot%s/%s"
	}
	return tgbotapi.FileEndpoint
}

// BaseURL возвращает схему и хост из шаблона Bot API (для проверок доступности).
func BaseURL(apiEndpoint string) string {
	if i := strings.Index(apiEndpoint, "/bot%s"); i >= 0 {
		return apiEndpoint[:i]
	}
	return "https://api.telegram.org"
}

// call выполняет синхронный вызов Bot API с учётом отмены ctx.
// tgbotapi не принимает context, поэтому вызов идёт в отдельной горутине;
// при отмене результат отбрасывается, а сам запрос ограничен таймаутом HTTP-клиента.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{val: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Identity — проверка токена бота (getMe).
type Identity interface {
	GetMe() (tgbotapi.User, error)
}

// ReadinessChecker — проверка доступности Telegram Bot API для health endpoint.
type ReadinessChecker struct {
	api Identity
}

// NewReadinessChecker создаёт проверку готовности Telegram.
func NewReadinessChecker(api Identity) *ReadinessChecker {
	return &ReadinessChecker{api: api}
}

// CheckReady вызывает getMe с таймаутом.
func (c *ReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := call(ctx, c.api.GetMe); err != nil {
		return "fail", fmt.Sprintf("Telegram Bot API недоступен: %v", err)
	}
	return "ok", "бот авторизован"
}
