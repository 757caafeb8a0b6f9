// handler.go — основной обработчик API, реализующий generated.ServerInterface.
// Объединяет обработчики админки и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/legaldesk/internal/api/generated"
	"github.com/bigkaa/legaldesk/internal/api/middleware"
	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// AdminService — операции админки над заявками.
type AdminService interface {
	List(ctx context.Context, search, status string, limit, offset int) ([]*model.Request, error)
	Get(ctx context.Context, id int64) (*model.Request, error)
	ChangeStatus(ctx context.Context, requestID int64, status string) error
	ChangeStatusByUser(ctx context.Context, userID int64, status string) (int64, error)
	Reply(ctx context.Context, userID int64, text string) error
}

// Downloader — потоковая выдача вложения.
type Downloader interface {
	Download(ctx context.Context, w http.ResponseWriter, fileRef string) error
}

// Translator — переводы для страницы администратора.
type Translator interface {
	Translate(lang, key string) string
}

// Credentials — учётные данные администратора.
type Credentials struct {
	Username string
	Password string
}

// APIHandler — основной обработчик API LegalDesk.
// Реализует generated.ServerInterface.
type APIHandler struct {
	health    *HealthHandler
	admin     AdminService
	downloads Downloader
	issuer    *middleware.TokenIssuer
	creds     Credentials
	texts     Translator
	logger    *slog.Logger
}

var _ generated.ServerInterface = (*APIHandler)(nil)

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	admin AdminService,
	downloads Downloader,
	issuer *middleware.TokenIssuer,
	creds Credentials,
	texts Translator,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		admin:     admin,
		downloads: downloads,
		issuer:    issuer,
		creds:     creds,
		texts:     texts,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// pagination нормализует параметры пагинации.
// Без limit выборка не ограничивается (так работает страница администратора).
func pagination(limit, offset *int) (int, int) {
	l, o := 0, 0
	if limit != nil {
		l = min(max(*limit, 1), 1000)
	}
	if offset != nil {
		o = max(*offset, 0)
	}
	return l, o
}

// toAPIRequest — маппинг доменной заявки в тип API.
// documents всегда массив, даже пустой.
func toAPIRequest(req *model.Request) generated.Request {
	docs := make([]generated.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, generated.Document{
			FileId:   d.FileRef,
			FileName: d.DisplayName,
			SentAt:   d.SentAt.UTC(),
		})
	}
	return generated.Request{
		Id:        req.ID,
		UserId:    req.UserID,
		Name:      req.Name,
		Phone:     req.Phone,
		Message:   req.Message,
		CreatedAt: req.CreatedAt.UTC(),
		Status:    generated.RequestStatus(req.Status),
		Documents: docs,
	}
}
