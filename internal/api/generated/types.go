// Пакет generated — типы, интерфейс сервера и маршрутизация chi
// для контракта openapi.yaml (в формате oapi-codegen chi-server).
package generated

import (
	"time"
)

const (
	BearerAuthScopes = "bearerAuth.Scopes"
	CookieAuthScopes = "cookieAuth.Scopes"
)

// Defines values for ErrorErrorCode.
const (
	DELIVERYFAILED  ErrorErrorCode = "DELIVERY_FAILED"
	FILEUNAVAILABLE ErrorErrorCode = "FILE_UNAVAILABLE"
	FORBIDDEN       ErrorErrorCode = "FORBIDDEN"
	INTERNALERROR   ErrorErrorCode = "INTERNAL_ERROR"
	NOTFOUND        ErrorErrorCode = "NOT_FOUND"
	UNAUTHORIZED    ErrorErrorCode = "UNAUTHORIZED"
	VALIDATIONERROR ErrorErrorCode = "VALIDATION_ERROR"
)

// Defines values for RequestStatus.
const (
	RequestStatusDone       RequestStatus = "done"
	RequestStatusInProgress RequestStatus = "in_progress"
	RequestStatusNew        RequestStatus = "new"
)

// Defines values for StatusChangeStatus.
const (
	StatusChangeStatusDone       StatusChangeStatus = "done"
	StatusChangeStatusInProgress StatusChangeStatus = "in_progress"
	StatusChangeStatusInwork     StatusChangeStatus = "inwork"
	StatusChangeStatusNew        StatusChangeStatus = "new"
)

// Defines values for ListRequestsParamsStatus.
const (
	ListRequestsParamsStatusEmpty      ListRequestsParamsStatus = ""
	ListRequestsParamsStatusDone       ListRequestsParamsStatus = "done"
	ListRequestsParamsStatusInProgress ListRequestsParamsStatus = "in_progress"
	ListRequestsParamsStatusInwork     ListRequestsParamsStatus = "inwork"
	ListRequestsParamsStatusNew        ListRequestsParamsStatus = "new"
)

// Document defines model for Document.
type Document struct {
	FileId   string    `json:"file_id"`
	FileName string    `json:"file_name"`
	SentAt   time.Time `json:"sent_at"`
}

// Error defines model for Error.
type Error struct {
	Error struct {
		Code    ErrorErrorCode `json:"code"`
		Message string         `json:"message"`
	} `json:"error"`
}

// ErrorErrorCode defines model for Error.Error.Code.
type ErrorErrorCode string

// LoginRequest defines model for LoginRequest.
type LoginRequest struct {
	Password string `json:"password"`
	Username string `json:"username"`
}

// LoginResponse defines model for LoginResponse.
type LoginResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
}

// Ok defines model for Ok.
type Ok struct {
	Ok bool `json:"ok"`
}

// ReplyRequest defines model for ReplyRequest.
type ReplyRequest struct {
	Message string `json:"message"`
	UserId  int64  `json:"user_id"`
}

// Request defines model for Request.
type Request struct {
	CreatedAt time.Time     `json:"created_at"`
	Documents []Document    `json:"documents"`
	Id        int64         `json:"id"`
	Message   string        `json:"message"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone"`
	Status    RequestStatus `json:"status"`
	UserId    int64         `json:"user_id"`
}

// RequestStatus defines model for Request.Status.
type RequestStatus string

// RequestList defines model for RequestList.
type RequestList struct {
	Requests []Request `json:"requests"`
}

// StatusChange Указывается request_id или user_id (последняя заявка пользователя).
type StatusChange struct {
	RequestId *int64             `json:"request_id,omitempty"`
	Status    StatusChangeStatus `json:"status"`
	UserId    *int64             `json:"user_id,omitempty"`
}

// StatusChangeStatus defines model for StatusChange.Status.
type StatusChangeStatus string

// StatusChangeResult defines model for StatusChangeResult.
type StatusChangeResult struct {
	Ok        bool  `json:"ok"`
	RequestId int64 `json:"request_id"`
}

// FileRef defines model for FileRef.
type FileRef = string

// RequestId defines model for RequestId.
type RequestId = int64

// ListRequestsParams defines parameters for ListRequests.
type ListRequestsParams struct {
	Search *string                   `form:"search,omitempty" json:"search,omitempty"`
	Status *ListRequestsParamsStatus `form:"status,omitempty" json:"status,omitempty"`
	Limit  *int                      `form:"limit,omitempty" json:"limit,omitempty"`
	Offset *int                      `form:"offset,omitempty" json:"offset,omitempty"`
}

// ListRequestsParamsStatus defines parameters for ListRequests.
type ListRequestsParamsStatus string

// LoginJSONRequestBody defines body for Login for application/json ContentType.
type LoginJSONRequestBody = LoginRequest

// ChangeStatusJSONRequestBody defines body for ChangeStatus for application/json ContentType.
type ChangeStatusJSONRequestBody = StatusChange

// ReplyToUserJSONRequestBody defines body for ReplyToUser for application/json ContentType.
type ReplyToUserJSONRequestBody = ReplyRequest
