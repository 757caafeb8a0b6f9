package model

import (
	"strings"
	"time"
)

// Language — язык общения с пользователем.
type Language string

const (
	LanguageRU Language = "ru"
	LanguageEN Language = "en"
)

// ParseLanguage разбирает код языка. Неизвестные значения не принимаются.
func ParseLanguage(s string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageRU:
		return LanguageRU, true
	case LanguageEN:
		return LanguageEN, true
	default:
		return "", false
	}
}

// Step — шаг диалога оформления заявки.
type Step string

const (
	StepIdle                 Step = "idle"
	StepAwaitingLanguage     Step = "awaiting_language"
	StepAwaitingName         Step = "awaiting_name"
	StepAwaitingPhone        Step = "awaiting_phone"
	StepAwaitingMessage      Step = "awaiting_message"
	StepAwaitingAttachChoice Step = "awaiting_attach_choice"
	StepAwaitingAttachments  Step = "awaiting_attachments"
)

// Attachment — файл, собранный в сессии до фиксации заявки.
type Attachment struct {
	FileRef     string `json:"file_ref"`
	DisplayName string `json:"display_name"`
}

// Session — состояние диалога конкретного пользователя.
type Session struct {
	UserID      int64
	Step        Step
	Language    Language
	Name        string
	Phone       string
	Message     string
	Attachments []Attachment
	UpdatedAt   time.Time
}

// NewSession создаёт пустую сессию в состоянии Idle.
func NewSession(userID int64, lang Language) *Session {
	return &Session{UserID: userID, Step: StepIdle, Language: lang}
}

// Reset очищает собранные поля и возвращает сессию в Idle.
// Язык сохраняется.
func (s *Session) Reset() {
	s.Step = StepIdle
	s.Name = ""
	s.Phone = ""
	s.Message = ""
	s.Attachments = nil
}

// Draft формирует черновик заявки из сессии.
func (s *Session) Draft() Draft {
	atts := make([]Attachment, len(s.Attachments))
	copy(atts, s.Attachments)
	return Draft{
		UserID:      s.UserID,
		Name:        s.Name,
		Phone:       s.Phone,
		Message:     s.Message,
		Attachments: atts,
	}
}

// Clone возвращает независимую копию сессии.
func (s *Session) Clone() *Session {
	c := *s
	if s.Attachments != nil {
		c.Attachments = make([]Attachment, len(s.Attachments))
		copy(c.Attachments, s.Attachments)
	}
	return &c
}
