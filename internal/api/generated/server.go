package generated

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /admin)
	GetAdminPage(w http.ResponseWriter, r *http.Request)
	// (POST /admin/api/login)
	Login(w http.ResponseWriter, r *http.Request)
	// (POST /admin/api/logout)
	Logout(w http.ResponseWriter, r *http.Request)
	// (POST /admin/api/reply)
	ReplyToUser(w http.ResponseWriter, r *http.Request)
	// (GET /admin/api/requests)
	ListRequests(w http.ResponseWriter, r *http.Request, params ListRequestsParams)
	// (GET /admin/api/requests/{id})
	GetRequest(w http.ResponseWriter, r *http.Request, id RequestId)
	// (POST /admin/api/status)
	ChangeStatus(w http.ResponseWriter, r *http.Request)
	// (GET /admin/download/{file_ref})
	DownloadDocument(w http.ResponseWriter, r *http.Request, fileRef FileRef)
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	var handler http.Handler = h
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

func withSecurityScopes(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), BearerAuthScopes, []string{})
	ctx = context.WithValue(ctx, CookieAuthScopes, []string{})
	return r.WithContext(ctx)
}

// GetAdminPage operation middleware
func (siw *ServerInterfaceWrapper) GetAdminPage(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetAdminPage)
}

// Login operation middleware
func (siw *ServerInterfaceWrapper) Login(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Login)
}

// Logout operation middleware
func (siw *ServerInterfaceWrapper) Logout(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Logout)
}

// ReplyToUser operation middleware
func (siw *ServerInterfaceWrapper) ReplyToUser(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, withSecurityScopes(r), siw.Handler.ReplyToUser)
}

// ListRequests operation middleware
func (siw *ServerInterfaceWrapper) ListRequests(w http.ResponseWriter, r *http.Request) {
	var err error
	var params ListRequestsParams

	err = runtime.BindQueryParameter("form", true, false, "search", r.URL.Query(), &params.Search)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "search", Err: err})
		return
	}

	err = runtime.BindQueryParameter("form", true, false, "status", r.URL.Query(), &params.Status)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "status", Err: err})
		return
	}

	err = runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	err = runtime.BindQueryParameter("form", true, false, "offset", r.URL.Query(), &params.Offset)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "offset", Err: err})
		return
	}

	siw.serve(w, withSecurityScopes(r), func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListRequests(w, r, params)
	})
}

// GetRequest operation middleware
func (siw *ServerInterfaceWrapper) GetRequest(w http.ResponseWriter, r *http.Request) {
	var id RequestId

	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return
	}

	siw.serve(w, withSecurityScopes(r), func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetRequest(w, r, id)
	})
}

// ChangeStatus operation middleware
func (siw *ServerInterfaceWrapper) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, withSecurityScopes(r), siw.Handler.ChangeStatus)
}

// DownloadDocument operation middleware
func (siw *ServerInterfaceWrapper) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	var fileRef FileRef

	err := runtime.BindStyledParameterWithOptions("simple", "file_ref", chi.URLParam(r, "file_ref"), &fileRef,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "file_ref", Err: err})
		return
	}

	siw.serve(w, withSecurityScopes(r), func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DownloadDocument(w, r, fileRef)
	})
}

// HealthLive operation middleware
func (siw *ServerInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthLive)
}

// HealthReady operation middleware
func (siw *ServerInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthReady)
}

// GetMetrics operation middleware
func (siw *ServerInterfaceWrapper) GetMetrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetMetrics)
}

// InvalidParamFormatError — параметр запроса не соответствует типу из контракта.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// Handler creates http.Handler with routing matching openapi.yaml.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux creates http.Handler with routing matching openapi.yaml based on the provided mux.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/admin", wrapper.GetAdminPage)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/admin/api/login", wrapper.Login)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/admin/api/logout", wrapper.Logout)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/admin/api/reply", wrapper.ReplyToUser)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/admin/api/requests", wrapper.ListRequests)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/admin/api/requests/{id}", wrapper.GetRequest)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/admin/api/status", wrapper.ChangeStatus)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/admin/download/{file_ref}", wrapper.DownloadDocument)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/live", wrapper.HealthLive)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health/ready", wrapper.HealthReady)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/metrics", wrapper.GetMetrics)
	})

	return r
}

//go:embed openapi.yaml
var specFS embed.FS

var (
	swaggerOnce sync.Once
	swaggerDoc  *openapi3.T
	swaggerErr  error
)

// GetSwagger возвращает разобранный и проверенный контракт openapi.yaml.
// Результат кэшируется; вызывающий не должен изменять документ.
func GetSwagger() (*openapi3.T, error) {
	swaggerOnce.Do(func() {
		data, err := specFS.ReadFile("openapi.yaml")
		if err != nil {
			swaggerErr = fmt.Errorf("чтение openapi.yaml: %w", err)
			return
		}

		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(data)
		if err != nil {
			swaggerErr = fmt.Errorf("разбор openapi.yaml: %w", err)
			return
		}
		if err := doc.Validate(loader.Context); err != nil {
			swaggerErr = fmt.Errorf("валидация openapi.yaml: %w", err)
			return
		}
		swaggerDoc = doc
	})
	return swaggerDoc, swaggerErr
}
