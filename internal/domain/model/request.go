// Пакет model — доменные модели LegalDesk.
// Заявка (Request) и её вложения (Document) — долговременные сущности,
// сессия диалога (Session) — эфемерная.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Status — статус обработки заявки.
type Status string

const (
	// StatusNew — новая заявка, ещё не взята в работу.
	StatusNew Status = "new"
	// StatusInProgress — заявка в работе у оператора.
	StatusInProgress Status = "in_progress"
	// StatusDone — заявка обработана.
	StatusDone Status = "done"
)

// legacyInWork — значение статуса из старой админки.
const legacyInWork = "inwork"

// ParseStatus разбирает строковое значение статуса.
// Принимает устаревший вариант "inwork" как синоним in_progress.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusNew):
		return StatusNew, nil
	case string(StatusInProgress), legacyInWork:
		return StatusInProgress, nil
	case string(StatusDone):
		return StatusDone, nil
	default:
		return "", fmt.Errorf("недопустимый статус %q, допустимые: new, in_progress, done", s)
	}
}

// Valid сообщает, является ли статус одним из канонических значений.
func (s Status) Valid() bool {
	return s == StatusNew || s == StatusInProgress || s == StatusDone
}

// Request — зафиксированная заявка пользователя.
type Request struct {
	ID        int64
	UserID    int64
	Name      string
	Phone     string
	Message   string
	CreatedAt time.Time
	Status    Status
	// Documents — вложения заявки в порядке отправки.
	Documents []Document
}

// Document — файл, приложенный к заявке.
// Принадлежит ровно одной заявке и не изменяется после фиксации.
type Document struct {
	ID        int64
	RequestID int64
	// FileRef — непрозрачная ссылка, разрешаемая внешним файловым сервисом.
	FileRef     string
	DisplayName string
	SentAt      time.Time
}

// Draft — собранные в диалоге данные, готовые к фиксации.
type Draft struct {
	UserID      int64
	Name        string
	Phone       string
	Message     string
	Attachments []Attachment
}

// Complete проверяет наличие всех обязательных полей.
func (d Draft) Complete() bool {
	return d.UserID != 0 && d.Name != "" && d.Phone != "" && d.Message != ""
}

// RequestFilter — параметры выборки заявок для админки.
// Пустые поля — фильтр не применяется.
type RequestFilter struct {
	// Search — подстрока для поиска по имени, телефону и тексту обращения.
	Search string
	// Status — фильтр по статусу.
	Status *Status
	// Limit — максимальное количество записей (0 — без ограничения).
	Limit int
	// Offset — смещение.
	Offset int
}
