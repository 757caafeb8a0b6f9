// admin.go — операции администратора: выборка заявок, смена статуса, ответ пользователю.
// Ответ и смена статуса независимы: Reply не меняет статус,
// ChangeStatus ничего не отправляет пользователю.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/legaldesk/internal/domain/model"
	"github.com/bigkaa/legaldesk/internal/repository"
)

// RequestStore — операции хранилища заявок, нужные админке.
type RequestStore interface {
	List(ctx context.Context, filter model.RequestFilter) ([]*model.Request, error)
	GetByID(ctx context.Context, id int64) (*model.Request, error)
	SetStatus(ctx context.Context, id int64, status model.Status) error
	SetStatusByUser(ctx context.Context, userID int64, status model.Status) (int64, error)
}

// Replier — доставка ответа оператора пользователю.
type Replier interface {
	SendToUser(ctx context.Context, userID int64, text string) error
}

// maxReplyLength — ограничение Telegram на длину текста сообщения.
const maxReplyLength = 4096

// AdminService — бизнес-логика админки.
type AdminService struct {
	requests RequestStore
	replier  Replier
	logger   *slog.Logger
}

// NewAdminService создаёт AdminService.
func NewAdminService(requests RequestStore, replier Replier, logger *slog.Logger) *AdminService {
	return &AdminService{
		requests: requests,
		replier:  replier,
		logger:   logger.With(slog.String("component", "admin_service")),
	}
}

// List возвращает заявки, новые первыми.
// status — пустая строка или одно из значений статуса (включая устаревшее inwork).
func (s *AdminService) List(ctx context.Context, search, status string, limit, offset int) ([]*model.Request, error) {
	filter := model.RequestFilter{Search: search, Limit: limit, Offset: offset}
	if status != "" {
		st, err := model.ParseStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		filter.Status = &st
	}

	list, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("получение списка заявок: %w", err)
	}
	return list, nil
}

// Get возвращает заявку по ID.
func (s *AdminService) Get(ctx context.Context, id int64) (*model.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение заявки: %w", err)
	}
	return req, nil
}

// ChangeStatus меняет статус заявки.
func (s *AdminService) ChangeStatus(ctx context.Context, requestID int64, status string) error {
	st, err := model.ParseStatus(status)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	if err := s.requests.SetStatus(ctx, requestID, st); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("смена статуса заявки: %w", err)
	}

	s.logger.Info("Статус заявки изменён",
		slog.Int64("request_id", requestID),
		slog.String("status", string(st)),
	)
	return nil
}

// ChangeStatusByUser меняет статус последней заявки пользователя.
// Возвращает ID изменённой заявки.
func (s *AdminService) ChangeStatusByUser(ctx context.Context, userID int64, status string) (int64, error) {
	st, err := model.ParseStatus(status)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	id, err := s.requests.SetStatusByUser(ctx, userID, st)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("смена статуса заявки: %w", err)
	}

	s.logger.Info("Статус последней заявки пользователя изменён",
		slog.Int64("user_id", userID),
		slog.Int64("request_id", id),
		slog.String("status", string(st)),
	)
	return id, nil
}

// Reply отправляет ответ оператора пользователю.
// Статус заявок не меняется ни при успехе, ни при ошибке доставки.
func (s *AdminService) Reply(ctx context.Context, userID int64, text string) error {
	text = strings.TrimSpace(text)
	switch {
	case userID == 0:
		return fmt.Errorf("%w: не указан user_id", ErrValidation)
	case text == "":
		return fmt.Errorf("%w: пустой текст ответа", ErrValidation)
	case len([]rune(text)) > maxReplyLength:
		return fmt.Errorf("%w: текст длиннее %d символов", ErrValidation, maxReplyLength)
	}

	if err := s.replier.SendToUser(ctx, userID, text); err != nil {
		if errors.Is(err, ErrDeliveryFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Info("Ответ пользователю отправлен", slog.Int64("user_id", userID))
	return nil
}
