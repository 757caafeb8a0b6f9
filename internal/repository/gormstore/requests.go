package gormstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bigkaa/legaldesk/internal/domain/model"
	"github.com/bigkaa/legaldesk/internal/repository"
)

type requestStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRequestRepository создаёт репозиторий заявок поверх gorm.
func NewRequestRepository(db *gorm.DB) repository.RequestRepository {
	return &requestStore{db: db, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

func (s *requestStore) Create(ctx context.Context, req *model.Request) error {
	row := requestRow{
		UserID:    req.UserID,
		Name:      req.Name,
		Phone:     req.Phone,
		Message:   req.Message,
		CreatedAt: s.now(),
		Status:    string(model.StatusNew),
	}
	if err := s.db.WithContext(ctx).Omit("Documents").Create(&row).Error; err != nil {
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	req.ID = row.ID
	req.CreatedAt = row.CreatedAt
	req.Status = model.StatusNew
	return nil
}

func (s *requestStore) AddDocument(ctx context.Context, doc *model.Document) error {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&requestRow{}).Where("id = ?", doc.RequestID).Count(&count).Error; err != nil {
		return fmt.Errorf("ошибка проверки заявки: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: заявка %d не существует", repository.ErrConflict, doc.RequestID)
	}

	row := documentRow{
		RequestID:   doc.RequestID,
		FileRef:     doc.FileRef,
		DisplayName: doc.DisplayName,
		SentAt:      s.now(),
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("ошибка добавления документа: %w", err)
	}
	doc.ID = row.ID
	doc.SentAt = row.SentAt
	return nil
}

func (s *requestStore) List(ctx context.Context, filter model.RequestFilter) ([]*model.Request, error) {
	q := s.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("sent_at, id") }).
		Order("created_at DESC, id DESC")

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		q = q.Where(`name LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\' OR message LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	var rows []requestRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}

	result := make([]*model.Request, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toModel())
	}
	return result, nil
}

func (s *requestStore) GetByID(ctx context.Context, id int64) (*model.Request, error) {
	var row requestRow
	err := s.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("sent_at, id") }).
		First(&row, id).Error
	if err != nil {
		if isNotFound(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return row.toModel(), nil
}

func (s *requestStore) SetStatus(ctx context.Context, id int64, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: недопустимый статус %q", repository.ErrConflict, status)
	}
	res := s.db.WithContext(ctx).Model(&requestRow{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("ошибка обновления статуса: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *requestStore) SetStatusByUser(ctx context.Context, userID int64, status model.Status) (int64, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("%w: недопустимый статус %q", repository.ErrConflict, status)
	}

	var id int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row requestRow
		if err := tx.Where("user_id = ?", userID).Order("created_at DESC, id DESC").First(&row).Error; err != nil {
			return err
		}
		id = row.ID
		return tx.Model(&requestRow{}).Where("id = ?", row.ID).Update("status", string(status)).Error
	})
	if err != nil {
		if isNotFound(err) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("ошибка обновления статуса: %w", err)
	}
	return id, nil
}

func (s *requestStore) FindDocument(ctx context.Context, fileRef string) (*model.Document, error) {
	var row documentRow
	if err := s.db.WithContext(ctx).Where("file_ref = ?", fileRef).Order("id").First(&row).Error; err != nil {
		if isNotFound(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска документа: %w", err)
	}
	doc := row.toModel()
	return &doc, nil
}

// Committer фиксирует заявку с вложениями в одной транзакции gorm.
type Committer struct {
	db *gorm.DB
}

// NewCommitter создаёт Committer для SQLite.
func NewCommitter(db *gorm.DB) *Committer {
	return &Committer{db: db}
}

// Commit реализует conversation.Committer.
func (c *Committer) Commit(ctx context.Context, draft model.Draft) (*model.Request, error) {
	var req *model.Request
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := &requestStore{db: tx, now: utcNow}
		r := &model.Request{UserID: draft.UserID, Name: draft.Name, Phone: draft.Phone, Message: draft.Message}
		if err := repo.Create(ctx, r); err != nil {
			return err
		}
		r.Documents = make([]model.Document, 0, len(draft.Attachments))
		for _, a := range draft.Attachments {
			doc := model.Document{RequestID: r.ID, FileRef: a.FileRef, DisplayName: a.DisplayName}
			if err := repo.AddDocument(ctx, &doc); err != nil {
				return err
			}
			r.Documents = append(r.Documents, doc)
		}
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}
