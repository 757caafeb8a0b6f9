package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bigkaa/legaldesk/internal/domain/model"
	"github.com/bigkaa/legaldesk/internal/repository"
)

type sessionStore struct {
	db *gorm.DB
}

// NewSessionRepository создаёт репозиторий сессий поверх gorm.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionStore{db: db}
}

func (s *sessionStore) Get(ctx context.Context, userID int64) (*model.Session, error) {
	var row sessionRow
	if err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}

	sess := &model.Session{
		UserID:    row.UserID,
		Step:      model.Step(row.Step),
		Language:  model.Language(row.Language),
		Name:      row.Name,
		Phone:     row.Phone,
		Message:   row.Message,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.Attachments), &sess.Attachments); err != nil {
		return nil, fmt.Errorf("ошибка разбора вложений сессии: %w", err)
	}
	return sess, nil
}

func (s *sessionStore) Save(ctx context.Context, sess *model.Session) error {
	attachments := sess.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("ошибка сериализации вложений: %w", err)
	}

	updatedAt := sess.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	row := sessionRow{
		UserID:      sess.UserID,
		Step:        string(sess.Step),
		Language:    string(sess.Language),
		Name:        sess.Name,
		Phone:       sess.Phone,
		Message:     sess.Message,
		Attachments: string(raw),
		UpdatedAt:   updatedAt.UTC(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, userID int64) error {
	if err := s.db.WithContext(ctx).Delete(&sessionRow{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("ошибка удаления сессии: %w", err)
	}
	return nil
}

func (s *sessionStore) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated_at < ?", before.UTC()).Delete(&sessionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("ошибка очистки сессий: %w", res.Error)
	}
	return res.RowsAffected, nil
}

type languageStore struct {
	db *gorm.DB
}

// NewLanguageRepository создаёт репозиторий языковых предпочтений поверх gorm.
func NewLanguageRepository(db *gorm.DB) repository.LanguageRepository {
	return &languageStore{db: db}
}

func (s *languageStore) GetLanguage(ctx context.Context, userID int64) (model.Language, error) {
	var row languageRow
	if err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("ошибка получения языка: %w", err)
	}
	return model.Language(row.Language), nil
}

func (s *languageStore) SetLanguage(ctx context.Context, userID int64, lang model.Language) error {
	if lang != model.LanguageRU && lang != model.LanguageEN {
		return fmt.Errorf("%w: недопустимый язык %q", repository.ErrConflict, lang)
	}
	row := languageRow{UserID: userID, Language: string(lang), UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"language", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("ошибка сохранения языка: %w", err)
	}
	return nil
}
