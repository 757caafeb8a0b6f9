package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/legaldesk/internal/api/generated"
	"github.com/bigkaa/legaldesk/internal/api/middleware"
	"github.com/bigkaa/legaldesk/internal/domain/model"
	"github.com/bigkaa/legaldesk/internal/i18n"
	"github.com/bigkaa/legaldesk/internal/service"
)

// --- Моки ---

type mockAdmin struct {
	listFn         func(ctx context.Context, search, status string, limit, offset int) ([]*model.Request, error)
	getFn          func(ctx context.Context, id int64) (*model.Request, error)
	changeFn       func(ctx context.Context, requestID int64, status string) error
	changeByUserFn func(ctx context.Context, userID int64, status string) (int64, error)
	replyFn        func(ctx context.Context, userID int64, text string) error
}

func (m *mockAdmin) List(ctx context.Context, search, status string, limit, offset int) ([]*model.Request, error) {
	return m.listFn(ctx, search, status, limit, offset)
}

func (m *mockAdmin) Get(ctx context.Context, id int64) (*model.Request, error) {
	return m.getFn(ctx, id)
}

func (m *mockAdmin) ChangeStatus(ctx context.Context, requestID int64, status string) error {
	return m.changeFn(ctx, requestID, status)
}

func (m *mockAdmin) ChangeStatusByUser(ctx context.Context, userID int64, status string) (int64, error) {
	return m.changeByUserFn(ctx, userID, status)
}

func (m *mockAdmin) Reply(ctx context.Context, userID int64, text string) error {
	return m.replyFn(ctx, userID, text)
}

type mockDownloader struct {
	downloadFn func(ctx context.Context, w http.ResponseWriter, fileRef string) error
}

func (m *mockDownloader) Download(ctx context.Context, w http.ResponseWriter, fileRef string) error {
	return m.downloadFn(ctx, w, fileRef)
}

type fakeTexts struct{}

func (fakeTexts) Translate(lang, key string) string { return lang + ":" + key }

type staticChecker struct{ status, msg string }

func (c staticChecker) CheckReady() (string, string) { return c.status, c.msg }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestHandler(admin AdminService, dl Downloader) *APIHandler {
	return NewAPIHandler(
		NewHealthHandler(),
		admin,
		dl,
		middleware.NewTokenIssuer(testSecret, time.Hour),
		Credentials{Username: "admin", Password: "s3cret"},
		fakeTexts{},
		testLogger(),
	)
}

// serve прогоняет запрос через сгенерированный роутер.
func serve(h generated.ServerInterface, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	generated.Handler(h).ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body generated.Error
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("ответ не в формате ошибки: %v: %s", err, rec.Body.String())
	}
	return string(body.Error.Code)
}

var createdAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func sampleRequest() *model.Request {
	return &model.Request{
		ID: 7, UserID: 42, Name: "Иван", Phone: "+79991234567",
		Message: "Нужна консультация по договору", CreatedAt: createdAt, Status: model.StatusNew,
		Documents: []model.Document{{ID: 1, RequestID: 7, FileRef: "BQAC-1", DisplayName: "contract.pdf", SentAt: createdAt}},
	}
}

// --- Login / Logout ---

func TestLogin(t *testing.T) {
	h := newTestHandler(&mockAdmin{}, &mockDownloader{})

	t.Run("успешный вход", func(t *testing.T) {
		rec := serve(h, jsonRequest(http.MethodPost, "/admin/api/login", `{"username":"admin","password":"s3cret"}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("ожидался 200, получен %d: %s", rec.Code, rec.Body.String())
		}
		var resp generated.LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
		if resp.Token == "" {
			t.Error("ожидался токен")
		}

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == middleware.CookieName {
				cookie = c
			}
		}
		if cookie == nil {
			t.Fatal("ожидалась cookie ld_admin")
		}
		if !cookie.HttpOnly || cookie.Value != resp.Token || cookie.MaxAge != 3600 {
			t.Errorf("неожиданная cookie: %+v", cookie)
		}
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"неверный пароль", `{"username":"admin","password":"wrong"}`, http.StatusUnauthorized},
		{"неверный логин", `{"username":"root","password":"s3cret"}`, http.StatusUnauthorized},
		{"пустые поля", `{"username":"","password":""}`, http.StatusBadRequest},
		{"не JSON", `username=admin`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, jsonRequest(http.MethodPost, "/admin/api/login", tt.body))
			if rec.Code != tt.want {
				t.Errorf("ожидался %d, получен %d", tt.want, rec.Code)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Error("cookie не должна устанавливаться")
			}
		})
	}
}

func TestLogin_EmptyConfiguredPassword(t *testing.T) {
	h := newTestHandler(&mockAdmin{}, &mockDownloader{})
	h.creds = Credentials{Username: "admin"}

	rec := serve(h, jsonRequest(http.MethodPost, "/admin/api/login", `{"username":"admin","password":"x"}`))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался 401, получен %d", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	h := newTestHandler(&mockAdmin{}, &mockDownloader{})
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/admin/api/logout", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("ожидалась сброшенная cookie, получено %+v", cookies)
	}
}

// --- Заявки ---

func TestListRequests(t *testing.T) {
	var gotSearch, gotStatus string
	var gotLimit, gotOffset int
	admin := &mockAdmin{
		listFn: func(_ context.Context, search, status string, limit, offset int) ([]*model.Request, error) {
			gotSearch, gotStatus, gotLimit, gotOffset = search, status, limit, offset
			bare := sampleRequest()
			bare.ID, bare.Documents = 6, nil
			return []*model.Request{sampleRequest(), bare}, nil
		},
	}
	h := newTestHandler(admin, &mockDownloader{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/admin/api/requests?search=%D0%98%D0%B2&status=inwork&limit=5000&offset=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d: %s", rec.Code, rec.Body.String())
	}
	if gotSearch != "Ив" || gotStatus != "inwork" || gotLimit != 1000 || gotOffset != 3 {
		t.Errorf("неожиданные параметры: %q %q %d %d", gotSearch, gotStatus, gotLimit, gotOffset)
	}

	var raw map[string][]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	list := raw["requests"]
	if len(list) != 2 {
		t.Fatalf("ожидалось 2 заявки, получено %d", len(list))
	}
	if list[0]["status"] != "new" || list[0]["user_id"] != float64(42) {
		t.Errorf("неожиданная заявка: %v", list[0])
	}
	docs, ok := list[1]["documents"].([]any)
	if !ok || len(docs) != 0 {
		t.Errorf("documents должен быть пустым массивом, получено %v", list[1]["documents"])
	}
}

func TestListRequests_DefaultsAndErrors(t *testing.T) {
	t.Run("без limit", func(t *testing.T) {
		var gotLimit = -1
		h := newTestHandler(&mockAdmin{
			listFn: func(_ context.Context, _, _ string, limit, _ int) ([]*model.Request, error) {
				gotLimit = limit
				return nil, nil
			},
		}, &mockDownloader{})

		rec := serve(h, httptest.NewRequest(http.MethodGet, "/admin/api/requests", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("ожидался 200, получен %d", rec.Code)
		}
		if gotLimit != 0 {
			t.Errorf("ожидался limit=0, получен %d", gotLimit)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"requests":[]}` {
			t.Errorf("неожиданное тело: %s", rec.Body.String())
		}
	})

	t.Run("недопустимый статус", func(t *testing.T) {
		h := newTestHandler(&mockAdmin{
			listFn: func(context.Context, string, string, int, int) ([]*model.Request, error) {
				return nil, fmt.Errorf("%w: %q", service.ErrInvalidStatus, "archived")
			},
		}, &mockDownloader{})

		rec := serve(h, httptest.NewRequest(http.MethodGet, "/admin/api/requests?status=archived", nil))
		if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "VALIDATION_ERROR" {
			t.Errorf("ожидался 400 VALIDATION_ERROR, получен %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("сбой хранилища", func(t *testing.T) {
		h := newTestHandler(&mockAdmin{
			listFn: func(context.Context, string, string, int, int) ([]*model.Request, error) {
				return nil, errors.New("connection refused")
			},
		}, &mockDownloader{})

		rec := serve(h, httptest.NewRequest(http.MethodGet, "/admin/api/requests", nil))
		if rec.Code != http.StatusInternalServerError || errorCode(t, rec) != "INTERNAL_ERROR" {
			t.Errorf("ожидался 500, получен %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "connection refused") {
			t.Error("детали внутренней ошибки не должны попадать в ответ")
		}
	})
}

func TestGetRequest(t *testing.T) {
	h := newTestHandler(&mockAdmin{
		getFn: func(_ context.Context, id int64) (*model.Request, error) {
			if id == 7 {
				return sampleRequest(), nil
			}
			return nil, service.ErrNotFound
		},
	}, &mockDownloader{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/admin/api/requests/7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	var got generated.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if got.Id != 7 || len(got.Documents) != 1 || got.Documents[0].FileId != "BQAC-1" || got.Documents[0].FileName != "contract.pdf" {
		t.Errorf("неожиданная заявка: %+v", got)
	}
	if !got.CreatedAt.Equal(createdAt) {
		t.Errorf("created_at %v, ожидалось %v", got.CreatedAt, createdAt)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/admin/api/requests/8", nil))
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "NOT_FOUND" {
		t.Errorf("ожидался 404, получен %d", rec.Code)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/admin/api/requests/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("ожидался 400 для нечислового id, получен %d", rec.Code)
	}
}

func TestChangeStatus(t *testing.T) {
	var calls []string
	admin := &mockAdmin{
		changeFn: func(_ context.Context, requestID int64, status string) error {
			calls = append(calls, fmt.Sprintf("request:%d:%s", requestID, status))
			switch {
			case requestID == 404:
				return service.ErrNotFound
			case status == "closed":
				return fmt.Errorf("%w: %q", service.ErrInvalidStatus, status)
			}
			return nil
		},
		changeByUserFn: func(_ context.Context, userID int64, status string) (int64, error) {
			calls = append(calls, fmt.Sprintf("user:%d:%s", userID, status))
			if userID == 1 {
				return 0, service.ErrNotFound
			}
			return 77, nil
		},
	}
	h := newTestHandler(admin, &mockDownloader{})

	tests := []struct {
		name     string
		body     string
		want     int
		wantID   int64
		wantCall string
	}{
		{"по request_id", `{"request_id":5,"status":"done"}`, http.StatusOK, 5, "request:5:done"},
		{"устаревший inwork", `{"request_id":5,"status":"inwork"}`, http.StatusOK, 5, "request:5:inwork"},
		{"по user_id", `{"user_id":42,"status":"in_progress"}`, http.StatusOK, 77, "user:42:in_progress"},
		{"нет заявки", `{"request_id":404,"status":"done"}`, http.StatusNotFound, 0, "request:404:done"},
		{"нет заявок пользователя", `{"user_id":1,"status":"done"}`, http.StatusNotFound, 0, "user:1:done"},
		{"недопустимый статус", `{"request_id":5,"status":"closed"}`, http.StatusBadRequest, 0, "request:5:closed"},
		{"оба идентификатора", `{"request_id":5,"user_id":42,"status":"done"}`, http.StatusBadRequest, 0, ""},
		{"без идентификатора", `{"status":"done"}`, http.StatusBadRequest, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = nil
			rec := serve(h, jsonRequest(http.MethodPost, "/admin/api/status", tt.body))
			if rec.Code != tt.want {
				t.Fatalf("ожидался %d, получен %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if tt.wantCall == "" && len(calls) != 0 {
				t.Errorf("сервис не должен вызываться, вызовы: %v", calls)
			}
			if tt.wantCall != "" && (len(calls) != 1 || calls[0] != tt.wantCall) {
				t.Errorf("ожидался вызов %q, получено %v", tt.wantCall, calls)
			}
			if tt.want == http.StatusOK {
				var res generated.StatusChangeResult
				_ = json.Unmarshal(rec.Body.Bytes(), &res)
				if !res.Ok || res.RequestId != tt.wantID {
					t.Errorf("неожиданный результат: %+v", res)
				}
			}
		})
	}
}

func TestReplyToUser(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     int
		wantCode string
	}{
		{"доставлено", nil, http.StatusOK, ""},
		{"ошибка валидации", fmt.Errorf("%w: пустой текст ответа", service.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"не доставлено", fmt.Errorf("%w: bot was blocked by the user", service.ErrDeliveryFailed), http.StatusBadGateway, "DELIVERY_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser int64
			var gotText string
			h := newTestHandler(&mockAdmin{
				replyFn: func(_ context.Context, userID int64, text string) error {
					gotUser, gotText = userID, text
					return tt.err
				},
			}, &mockDownloader{})

			rec := serve(h, jsonRequest(http.MethodPost, "/admin/api/reply", `{"user_id":42,"message":"Перезвоним завтра"}`))
			if rec.Code != tt.want {
				t.Fatalf("ожидался %d, получен %d", tt.want, rec.Code)
			}
			if gotUser != 42 || gotText != "Перезвоним завтра" {
				t.Errorf("неожиданные аргументы: %d %q", gotUser, gotText)
			}
			if tt.wantCode != "" && errorCode(t, rec) != tt.wantCode {
				t.Errorf("ожидался код %s: %s", tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestDownloadDocument(t *testing.T) {
	dl := &mockDownloader{
		downloadFn: func(_ context.Context, w http.ResponseWriter, fileRef string) error {
			switch fileRef {
			case "BQAC-1":
				w.Header().Set("Content-Disposition", `attachment; filename="contract.pdf"`)
				w.WriteHeader(http.StatusOK)
				_, _ = io.WriteString(w, "%PDF-1.4")
				return nil
			case "gone":
				return fmt.Errorf("%w: %s", service.ErrFileNotFound, fileRef)
			default:
				return fmt.Errorf("%w: timeout", service.ErrFileUnavailable)
			}
		},
	}
	h := newTestHandler(&mockAdmin{}, dl)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/admin/download/BQAC-1", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "%PDF-1.4" {
		t.Fatalf("ожидался файл, получен %d: %q", rec.Code, rec.Body.String())
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/admin/download/gone", nil))
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "NOT_FOUND" {
		t.Errorf("ожидался 404, получен %d", rec.Code)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/admin/download/slow", nil))
	if rec.Code != http.StatusBadGateway || errorCode(t, rec) != "FILE_UNAVAILABLE" {
		t.Errorf("ожидался 502, получен %d", rec.Code)
	}
}

// --- Страница и health ---

func TestGetAdminPage(t *testing.T) {
	h := newTestHandler(&mockAdmin{}, &mockDownloader{})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(i18n.WithLang(req.Context(), "ru"))
	rec := httptest.NewRecorder()
	h.GetAdminPage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался 200, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("неожиданный Content-Type: %s", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{`<html lang="ru">`, "<title>ru:admin.title</title>", `"admin.reply":"ru:admin.reply"`, "/admin/api/requests"} {
		if !strings.Contains(body, want) {
			t.Errorf("страница не содержит %q", want)
		}
	}
	if strings.Contains(body, "%!") {
		t.Error("ошибка форматирования в разметке")
	}
}

func TestAdminPage_EscapesLabels(t *testing.T) {
	var sb strings.Builder
	err := AdminPage(AdminPageData{
		Lang:   "en",
		Labels: map[string]string{"admin.title": "<script>alert(1)</script>"},
	}).Render(context.Background(), &sb)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if strings.Contains(sb.String(), "<script>alert(1)") {
		t.Error("переводы должны экранироваться")
	}
}

func TestHealth(t *testing.T) {
	t.Run("live", func(t *testing.T) {
		rec := serve(newTestHandler(&mockAdmin{}, &mockDownloader{}), httptest.NewRequest(http.MethodGet, "/health/live", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"service":"legaldesk"`) {
			t.Errorf("неожиданный ответ: %d %s", rec.Code, rec.Body.String())
		}
	})

	tests := []struct {
		name       string
		checkers   []NamedChecker
		wantCode   int
		wantStatus string
	}{
		{"все ok", []NamedChecker{{"storage", staticChecker{"ok", ""}}, {"telegram", staticChecker{"ok", ""}}}, http.StatusOK, "ok"},
		{"degraded", []NamedChecker{{"storage", staticChecker{"ok", ""}}, {"telegram", staticChecker{"degraded", "slow"}}}, http.StatusOK, "degraded"},
		{"fail", []NamedChecker{{"storage", staticChecker{"fail", "down"}}, {"telegram", staticChecker{"ok", ""}}}, http.StatusServiceUnavailable, "fail"},
		{"nil checker", []NamedChecker{{"storage", nil}}, http.StatusServiceUnavailable, "fail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checkers...)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("ожидался %d, получен %d", tt.wantCode, rec.Code)
			}
			var resp healthReadyResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if resp.Status != tt.wantStatus || len(resp.Checks) != len(tt.checkers) {
				t.Errorf("неожиданный ответ: %+v", resp)
			}
		})
	}
}

func TestPagination(t *testing.T) {
	ptr := func(v int) *int { return &v }
	tests := []struct {
		limit, offset *int
		wantL, wantO  int
	}{
		{nil, nil, 0, 0},
		{ptr(0), ptr(-5), 1, 0},
		{ptr(50), ptr(10), 50, 10},
		{ptr(5000), nil, 1000, 0},
	}
	for _, tt := range tests {
		l, o := pagination(tt.limit, tt.offset)
		if l != tt.wantL || o != tt.wantO {
			t.Errorf("pagination = (%d, %d), ожидалось (%d, %d)", l, o, tt.wantL, tt.wantO)
		}
	}
}
