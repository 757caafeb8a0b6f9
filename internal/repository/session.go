package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// SessionRepository — сессии диалога, переживающие перезапуск процесса.
type SessionRepository interface {
	// Get возвращает сессию или nil без ошибки, если её нет.
	Get(ctx context.Context, userID int64) (*model.Session, error)
	// Save создаёт или перезаписывает сессию.
	Save(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, userID int64) error
	// PurgeStale удаляет сессии, не менявшиеся с момента before.
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

type sessionRepo struct {
	db DBTX
}

// NewSessionRepository создаёт репозиторий сессий.
func NewSessionRepository(db DBTX) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Get(ctx context.Context, userID int64) (*model.Session, error) {
	query := `
		SELECT user_id, step, language, name, phone, message, attachments, updated_at
		FROM conversation_sessions
		WHERE user_id = $1`

	s := &model.Session{}
	var step, lang string
	var attachments []byte
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &step, &lang, &s.Name, &s.Phone, &s.Message, &attachments, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}

	s.Step = model.Step(step)
	s.Language = model.Language(lang)
	if err := json.Unmarshal(attachments, &s.Attachments); err != nil {
		return nil, fmt.Errorf("ошибка разбора вложений сессии: %w", err)
	}
	return s, nil
}

func (r *sessionRepo) Save(ctx context.Context, s *model.Session) error {
	attachments := s.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("ошибка сериализации вложений: %w", err)
	}

	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO conversation_sessions
			(user_id, step, language, name, phone, message, attachments, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			step = EXCLUDED.step,
			language = EXCLUDED.language,
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			message = EXCLUDED.message,
			attachments = EXCLUDED.attachments,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query,
		s.UserID, string(s.Step), string(s.Language), s.Name, s.Phone, s.Message, raw, updatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM conversation_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("ошибка удаления сессии: %w", err)
	}
	return nil
}

func (r *sessionRepo) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM conversation_sessions WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки сессий: %w", err)
	}
	return tag.RowsAffected(), nil
}
