// auth.go — вход и выход администратора.
// POST /admin/api/login — выдача токена (в теле ответа и в cookie ld_admin).
// POST /admin/api/logout — сброс cookie.
package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/legaldesk/internal/api/errors"
	"github.com/bigkaa/legaldesk/internal/api/generated"
	"github.com/bigkaa/legaldesk/internal/api/middleware"
)

// cookiePath ограничивает cookie токена разделом админки.
const cookiePath = "/admin"

// Login — POST /admin/api/login.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body generated.LoginJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if body.Username == "" || body.Password == "" {
		apierrors.ValidationError(w, "Требуются username и password")
		return
	}

	if !h.checkCredentials(body.Username, body.Password) {
		h.logger.Warn("Неудачная попытка входа",
			slog.String("username", body.Username),
			slog.String("remote_addr", r.RemoteAddr),
		)
		apierrors.Unauthorized(w, "Неверный логин или пароль")
		return
	}

	token, expiresAt, err := h.issuer.Issue(body.Username)
	if err != nil {
		h.logger.Error("Ошибка выдачи токена", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось выдать токен")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     cookiePath,
		MaxAge:   int(h.issuer.TTL().Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteStrictMode,
	})

	h.logger.Info("Администратор вошёл", slog.String("username", body.Username))
	writeJSON(w, http.StatusOK, generated.LoginResponse{Token: token, ExpiresAt: expiresAt.UTC()})
}

// Logout — POST /admin/api/logout.
func (h *APIHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     cookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, generated.Ok{Ok: true})
}

// checkCredentials сравнивает за постоянное время. Пустой пароль в конфигурации
// запрещает вход.
func (h *APIHandler) checkCredentials(username, password string) bool {
	if h.creds.Password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.creds.Username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(h.creds.Password))
	return userOK&passOK == 1
}
