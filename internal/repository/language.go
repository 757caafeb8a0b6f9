package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// LanguageRepository — языковые предпочтения пользователей.
// Записи не истекают и не затрагиваются очисткой сессий.
type LanguageRepository interface {
	// GetLanguage возвращает "" без ошибки, если пользователь язык не выбирал.
	GetLanguage(ctx context.Context, userID int64) (model.Language, error)
	SetLanguage(ctx context.Context, userID int64, lang model.Language) error
}

type languageRepo struct {
	db DBTX
}

// NewLanguageRepository создаёт репозиторий языковых предпочтений.
func NewLanguageRepository(db DBTX) LanguageRepository {
	return &languageRepo{db: db}
}

func (r *languageRepo) GetLanguage(ctx context.Context, userID int64) (model.Language, error) {
	var lang string
	err := r.db.QueryRow(ctx,
		`SELECT language FROM language_preferences WHERE user_id = $1`, userID).Scan(&lang)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("ошибка получения языка: %w", err)
	}
	return model.Language(lang), nil
}

func (r *languageRepo) SetLanguage(ctx context.Context, userID int64, lang model.Language) error {
	query := `
		INSERT INTO language_preferences (user_id, language, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			language = EXCLUDED.language,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, userID, string(lang)); err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: недопустимый язык %q", ErrConflict, lang)
		}
		return fmt.Errorf("ошибка сохранения языка: %w", err)
	}
	return nil
}
