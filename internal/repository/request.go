package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// RequestRepository — хранилище заявок и их вложений.
type RequestRepository interface {
	// Create создаёт заявку со статусом new, заполняет ID и CreatedAt.
	Create(ctx context.Context, req *model.Request) error
	// AddDocument добавляет вложение к заявке, заполняет ID и SentAt.
	AddDocument(ctx context.Context, doc *model.Document) error
	// List возвращает заявки с вложениями, новые первыми.
	List(ctx context.Context, filter model.RequestFilter) ([]*model.Request, error)
	// GetByID возвращает заявку с вложениями.
	GetByID(ctx context.Context, id int64) (*model.Request, error)
	// SetStatus меняет статус заявки.
	SetStatus(ctx context.Context, id int64, status model.Status) error
	// SetStatusByUser меняет статус последней заявки пользователя, возвращает её ID.
	SetStatusByUser(ctx context.Context, userID int64, status model.Status) (int64, error)
	// FindDocument ищет вложение по файловой ссылке.
	FindDocument(ctx context.Context, fileRef string) (*model.Document, error)
}

// requestRepo — реализация RequestRepository.
type requestRepo struct {
	db DBTX
}

// NewRequestRepository создаёт репозиторий заявок.
func NewRequestRepository(db DBTX) RequestRepository {
	return &requestRepo{db: db}
}

func (r *requestRepo) Create(ctx context.Context, req *model.Request) error {
	query := `
		INSERT INTO requests (user_id, name, phone, message, status)
		VALUES ($1, $2, $3, $4, 'new')
		RETURNING id, created_at, status`

	err := r.db.QueryRow(ctx, query, req.UserID, req.Name, req.Phone, req.Message).
		Scan(&req.ID, &req.CreatedAt, &req.Status)
	if err != nil {
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

func (r *requestRepo) AddDocument(ctx context.Context, doc *model.Document) error {
	query := `
		INSERT INTO documents (request_id, file_ref, display_name)
		VALUES ($1, $2, $3)
		RETURNING id, sent_at`

	err := r.db.QueryRow(ctx, query, doc.RequestID, doc.FileRef, doc.DisplayName).
		Scan(&doc.ID, &doc.SentAt)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: заявка %d не существует", ErrConflict, doc.RequestID)
		}
		return fmt.Errorf("ошибка добавления документа: %w", err)
	}
	return nil
}

// buildSearchWhere строит WHERE-условие и аргументы для выборки заявок.
// startArg — номер первого $-параметра.
func buildSearchWhere(filter model.RequestFilter, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	// Подстрока в имени, телефоне или тексте обращения
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(name ILIKE $%d OR phone ILIKE $%d OR message ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+escapeLike(search)+"%")
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, string(*filter.Status))
	}

	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}
	return whereClause, args
}

// escapeLike экранирует спецсимволы шаблона LIKE.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *requestRepo) List(ctx context.Context, filter model.RequestFilter) ([]*model.Request, error) {
	where, args := buildSearchWhere(filter, 1)

	query := fmt.Sprintf(`
		SELECT id, user_id, name, phone, message, created_at, status
		FROM requests
		%s
		ORDER BY created_at DESC, id DESC`, where)

	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Request, 0)
	for rows.Next() {
		req := &model.Request{}
		if err := rows.Scan(&req.ID, &req.UserID, &req.Name, &req.Phone,
			&req.Message, &req.CreatedAt, &req.Status); err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения заявок: %w", err)
	}

	if err := r.loadDocuments(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// loadDocuments загружает вложения для набора заявок одним запросом.
func (r *requestRepo) loadDocuments(ctx context.Context, reqs []*model.Request) error {
	if len(reqs) == 0 {
		return nil
	}

	ids := make([]int64, len(reqs))
	byID := make(map[int64]*model.Request, len(reqs))
	for i, req := range reqs {
		ids[i] = req.ID
		byID[req.ID] = req
		req.Documents = []model.Document{}
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, request_id, file_ref, display_name, sent_at
		FROM documents
		WHERE request_id = ANY($1)
		ORDER BY sent_at, id`, ids)
	if err != nil {
		return fmt.Errorf("ошибка получения документов: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.RequestID, &d.FileRef, &d.DisplayName, &d.SentAt); err != nil {
			return fmt.Errorf("ошибка сканирования документа: %w", err)
		}
		if req, ok := byID[d.RequestID]; ok {
			req.Documents = append(req.Documents, d)
		}
	}
	return rows.Err()
}

func (r *requestRepo) GetByID(ctx context.Context, id int64) (*model.Request, error) {
	req := &model.Request{}
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, name, phone, message, created_at, status
		FROM requests
		WHERE id = $1`, id).
		Scan(&req.ID, &req.UserID, &req.Name, &req.Phone, &req.Message, &req.CreatedAt, &req.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}

	if err := r.loadDocuments(ctx, []*model.Request{req}); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *requestRepo) SetStatus(ctx context.Context, id int64, status model.Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE requests SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: недопустимый статус %q", ErrConflict, status)
		}
		return fmt.Errorf("ошибка обновления статуса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *requestRepo) SetStatusByUser(ctx context.Context, userID int64, status model.Status) (int64, error) {
	query := `
		UPDATE requests SET status = $2
		WHERE id = (
			SELECT id FROM requests
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
		RETURNING id`

	var id int64
	err := r.db.QueryRow(ctx, query, userID, string(status)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		if isConstraintViolation(err) {
			return 0, fmt.Errorf("%w: недопустимый статус %q", ErrConflict, status)
		}
		return 0, fmt.Errorf("ошибка обновления статуса: %w", err)
	}
	return id, nil
}

func (r *requestRepo) FindDocument(ctx context.Context, fileRef string) (*model.Document, error) {
	d := &model.Document{}
	err := r.db.QueryRow(ctx, `
		SELECT id, request_id, file_ref, display_name, sent_at
		FROM documents
		WHERE file_ref = $1
		ORDER BY id
		LIMIT 1`, fileRef).
		Scan(&d.ID, &d.RequestID, &d.FileRef, &d.DisplayName, &d.SentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска документа: %w", err)
	}
	return d, nil
}
