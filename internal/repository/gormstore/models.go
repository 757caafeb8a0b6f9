package gormstore

import (
	"time"

	"github.com/bigkaa/legaldesk/internal/domain/model"
)

type requestRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;index"`
	Name      string    `gorm:"type:text;not null"`
	Phone     string    `gorm:"type:text;not null"`
	Message   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	Status    string    `gorm:"not null;default:new;index;check:status IN ('new','in_progress','done')"`

	Documents []documentRow `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
}

func (requestRow) TableName() string { return "requests" }

type documentRow struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	RequestID   int64     `gorm:"not null;index"`
	FileRef     string    `gorm:"type:text;not null;index"`
	DisplayName string    `gorm:"type:text;not null"`
	SentAt      time.Time `gorm:"not null"`
}

func (documentRow) TableName() string { return "documents" }

type languageRow struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false"`
	Language  string    `gorm:"not null;check:language IN ('ru','en')"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (languageRow) TableName() string { return "language_preferences" }

type sessionRow struct {
	UserID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Step     string `gorm:"not null"`
	Language string `gorm:"not null;default:''"`
	Name     string `gorm:"not null;default:''"`
	Phone    string `gorm:"not null;default:''"`
	Message  string `gorm:"not null;default:''"`
	// Attachments — JSON-массив model.Attachment.
	Attachments string    `gorm:"type:text;not null;default:'[]'"`
	UpdatedAt   time.Time `gorm:"not null;index;autoUpdateTime:false"`
}

func (sessionRow) TableName() string { return "conversation_sessions" }

func (r *requestRow) toModel() *model.Request {
	req := &model.Request{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Phone:     r.Phone,
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
		Status:    model.Status(r.Status),
		Documents: make([]model.Document, 0, len(r.Documents)),
	}
	for _, d := range r.Documents {
		req.Documents = append(req.Documents, d.toModel())
	}
	return req
}

func (d documentRow) toModel() model.Document {
	return model.Document{
		ID:          d.ID,
		RequestID:   d.RequestID,
		FileRef:     d.FileRef,
		DisplayName: d.DisplayName,
		SentAt:      d.SentAt,
	}
}
