// requests.go — обработчики заявок админки.
// GET  /admin/api/requests          — список с поиском и фильтром статуса
// GET  /admin/api/requests/{id}     — одна заявка
// POST /admin/api/status            — смена статуса (по request_id или user_id)
// POST /admin/api/reply             — ответ пользователю в Telegram
// GET  /admin/download/{file_ref}   — скачивание вложения
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/legaldesk/internal/api/errors"
	"github.com/bigkaa/legaldesk/internal/api/generated"
	"github.com/bigkaa/legaldesk/internal/service"
)

// ListRequests — GET /admin/api/requests.
func (h *APIHandler) ListRequests(w http.ResponseWriter, r *http.Request, params generated.ListRequestsParams) {
	var search, status string
	if params.Search != nil {
		search = *params.Search
	}
	if params.Status != nil {
		status = string(*params.Status)
	}
	limit, offset := pagination(params.Limit, params.Offset)

	list, err := h.admin.List(r.Context(), search, status, limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := generated.RequestList{Requests: make([]generated.Request, 0, len(list))}
	for _, req := range list {
		resp.Requests = append(resp.Requests, toAPIRequest(req))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRequest — GET /admin/api/requests/{id}.
func (h *APIHandler) GetRequest(w http.ResponseWriter, r *http.Request, id generated.RequestId) {
	req, err := h.admin.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIRequest(req))
}

// ChangeStatus — POST /admin/api/status.
// Указывается ровно одно из request_id и user_id.
func (h *APIHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var body generated.ChangeStatusJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	var (
		requestID int64
		err       error
	)
	switch {
	case body.RequestId != nil && body.UserId != nil:
		apierrors.ValidationError(w, "Укажите только одно из request_id и user_id")
		return
	case body.RequestId != nil:
		requestID = *body.RequestId
		err = h.admin.ChangeStatus(r.Context(), requestID, string(body.Status))
	case body.UserId != nil:
		requestID, err = h.admin.ChangeStatusByUser(r.Context(), *body.UserId, string(body.Status))
	default:
		apierrors.ValidationError(w, "Требуется request_id или user_id")
		return
	}
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generated.StatusChangeResult{Ok: true, RequestId: requestID})
}

// ReplyToUser — POST /admin/api/reply.
// Статус заявок не меняется.
func (h *APIHandler) ReplyToUser(w http.ResponseWriter, r *http.Request) {
	var body generated.ReplyToUserJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	if err := h.admin.Reply(r.Context(), body.UserId, body.Message); err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generated.Ok{Ok: true})
}

// DownloadDocument — GET /admin/download/{file_ref}.
func (h *APIHandler) DownloadDocument(w http.ResponseWriter, r *http.Request, fileRef generated.FileRef) {
	if err := h.downloads.Download(r.Context(), w, fileRef); err != nil {
		h.handleServiceError(w, err)
	}
}

// handleServiceError маппит ошибки сервисного слоя в HTTP-ответы.
func (h *APIHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrFileNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrDeliveryFailed):
		apierrors.DeliveryFailed(w, err.Error())
	case errors.Is(err, service.ErrFileUnavailable):
		apierrors.FileUnavailable(w, "Файловый сервис недоступен, повторите позже")
	default:
		h.logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
