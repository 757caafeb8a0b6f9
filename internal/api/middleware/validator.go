// validator.go — проверка запросов к /admin/api/* по OpenAPI контракту (kin-openapi).
// Аутентификация здесь не проверяется: это делает JWTAuth.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/bigkaa/legaldesk/internal/api/errors"
)

// RequestValidator — middleware валидации тела и параметров запросов.
type RequestValidator struct {
	router routers.Router
	prefix string
	logger *slog.Logger
}

// NewRequestValidator создаёт валидатор для путей с префиксом prefix.
func NewRequestValidator(doc *openapi3.T, prefix string, logger *slog.Logger) (*RequestValidator, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("создание маршрутизатора OpenAPI: %w", err)
	}
	return &RequestValidator{
		router: router,
		prefix: prefix,
		logger: logger.With(slog.String("component", "openapi_validator")),
	}, nil
}

// Middleware возвращает 400 VALIDATION_ERROR для запросов, не соответствующих контракту.
// Пути вне контракта пропускаются: ответ 404/405 даст маршрутизатор chi.
func (v *RequestValidator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, v.prefix) {
				next.ServeHTTP(w, r)
				return
			}

			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error {
						return nil
					},
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				v.logger.Debug("Запрос не соответствует контракту",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validationMessage формирует короткое сообщение без дампа схемы.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) {
			field := strings.Join(schemaErr.JSONPointer(), ".")
			if reqErr.Parameter != nil {
				field = reqErr.Parameter.Name
			}
			if field != "" {
				return fmt.Sprintf("Некорректное значение %s: %s", field, schemaErr.Reason)
			}
			return "Некорректный запрос: " + schemaErr.Reason
		}
		if reqErr.Parameter != nil {
			return fmt.Sprintf("Некорректный параметр %s", reqErr.Parameter.Name)
		}
		if reqErr.RequestBody != nil {
			return "Некорректное тело запроса"
		}
		return reqErr.Error()
	}
	return "Некорректный запрос"
}
