// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — заявка не найдена.
	ErrNotFound = errors.New("заявка не найдена")
	// ErrInvalidStatus — недопустимое значение статуса.
	ErrInvalidStatus = errors.New("недопустимый статус: допустимые значения — new, in_progress, done")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrDeliveryFailed — сообщение не доставлено через Telegram.
	ErrDeliveryFailed = errors.New("сообщение не доставлено")
	// ErrFileNotFound — файловая ссылка не разрешается.
	ErrFileNotFound = errors.New("файл не найден")
	// ErrFileUnavailable — файловый сервис недоступен.
	ErrFileUnavailable = errors.New("файловый сервис недоступен")
	// ErrStopped — сервис остановлен и не принимает события.
	ErrStopped = errors.New("сервис остановлен")
	// ErrMailboxFull — очередь событий пользователя переполнена.
	ErrMailboxFull = errors.New("очередь событий пользователя переполнена")
)
