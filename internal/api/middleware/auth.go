// auth.go — аутентификация администратора по JWT.
// Токен берётся из заголовка Authorization (Bearer) или cookie ld_admin.
// Принимаются локально выданные HS256-токены (POST /admin/api/login)
// и, если настроен JWKS внешнего IdP, RS256-токены с ролью admin.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/legaldesk/internal/api/errors"
)

type contextKey string

const (
	// ContextKeyClaims — claims администратора в контексте запроса.
	ContextKeyClaims contextKey = "admin_claims"
)

// RoleAdmin — роль, дающая доступ к админ-API.
const RoleAdmin = "admin"

// CookieName — cookie с токеном администратора.
const CookieName = "ld_admin"

// LocalIssuer — issuer локально выданных токенов.
const LocalIssuer = "legaldesk"

// AuthClaims — claims аутентифицированного администратора.
type AuthClaims struct {
	Subject  string
	Username string
	Roles    []string
	// External — токен выдан внешним IdP (JWKS).
	External bool
}

// HasRole проверяет наличие роли.
func (c *AuthClaims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// adminClaims — содержимое JWT. Роли читаются из claim roles
// (локальные токены) или realm_access.roles (Keycloak).
type adminClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string       `json:"preferred_username,omitempty"`
	Roles             []string     `json:"roles,omitempty"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
}

type realmAccess struct {
	Roles []string `json:"roles"`
}

func (c *adminClaims) allRoles() []string {
	roles := append([]string(nil), c.Roles...)
	if c.RealmAccess != nil {
		roles = append(roles, c.RealmAccess.Roles...)
	}
	return roles
}

// --- Выдача токенов ---

// TokenIssuer выдаёт HS256-токены администратора.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer создаёт TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue выдаёт токен с ролью admin. jti — случайный UUID.
func (ti *TokenIssuer) Issue(username string) (string, time.Time, error) {
	now := ti.now()
	expiresAt := now.Add(ti.ttl)

	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    LocalIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		PreferredUsername: username,
		Roles:             []string{RoleAdmin},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись токена: %w", err)
	}
	return token, expiresAt, nil
}

// TTL возвращает время жизни выдаваемых токенов.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// --- Проверка токенов ---

// JWKSOptions — параметры внешнего IdP. Пустой URL отключает RS256-токены.
type JWKSOptions struct {
	URL             string
	Issuer          string
	ClientTimeout   time.Duration
	RefreshInterval time.Duration
}

// JWTAuth — middleware аутентификации администратора.
type JWTAuth struct {
	local      *TokenIssuer
	jwks       keyfunc.Keyfunc
	jwksIssuer string
	leeway     time.Duration
	logger     *slog.Logger
}

// NewJWTAuth создаёт JWTAuth. Если opts.URL задан, ключи IdP загружаются
// через jwkset с фоновым обновлением; недоступность IdP при старте не фатальна.
func NewJWTAuth(local *TokenIssuer, opts JWKSOptions, leeway time.Duration, logger *slog.Logger) (*JWTAuth, error) {
	auth := &JWTAuth{
		local:      local,
		jwksIssuer: opts.Issuer,
		leeway:     leeway,
		logger:     logger.With(slog.String("component", "jwt_auth")),
	}
	if opts.URL == "" {
		return auth, nil
	}

	storage, err := jwkset.NewStorageFromHTTP(opts.URL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: opts.ClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           opts.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", opts.URL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}
	auth.jwks = k

	logger.Info("Включена проверка токенов внешнего IdP", slog.String("jwks_url", opts.URL))
	return auth, nil
}

// NewJWTAuthWithKeyfunc создаёт JWTAuth с готовым keyfunc (для тестов).
func NewJWTAuthWithKeyfunc(local *TokenIssuer, kf keyfunc.Keyfunc, issuer string, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		local:      local,
		jwks:       kf,
		jwksIssuer: issuer,
		logger:     logger.With(slog.String("component", "jwt_auth")),
	}
}

var errUnexpectedMethod = errors.New("неподдерживаемый алгоритм подписи")

// Middleware проверяет токен и роль admin.
// Нет токена или он невалиден — 401, нет роли admin — 403.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := extractToken(r)
			if !ok {
				apierrors.Unauthorized(w, "Требуется аутентификация: Bearer token или cookie "+CookieName)
				return
			}

			claims, err := j.parse(r.Context(), tokenString)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if !claims.HasRole(RoleAdmin) {
				apierrors.Forbidden(w, "Недостаточно прав: требуется роль admin")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parse проверяет подпись и срок действия токена.
// Ключ выбирается по алгоритму: HS256 — локальный секрет, RS256 — JWKS.
func (j *JWTAuth) parse(ctx context.Context, tokenString string) (*AuthClaims, error) {
	raw := &adminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, raw, func(t *jwt.Token) (any, error) {
		switch t.Method.Alg() {
		case jwt.SigningMethodHS256.Alg():
			return j.local.secret, nil
		case jwt.SigningMethodRS256.Alg():
			if j.jwks == nil {
				return nil, errUnexpectedMethod
			}
			return j.jwks.KeyfuncCtx(ctx)(t)
		default:
			return nil, errUnexpectedMethod
		}
	},
		jwt.WithValidMethods([]string{"HS256", "RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.leeway),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("невалидный токен")
	}

	external := token.Method.Alg() != jwt.SigningMethodHS256.Alg()
	switch {
	case !external && raw.Issuer != LocalIssuer:
		return nil, fmt.Errorf("неожиданный issuer %q", raw.Issuer)
	case external && j.jwksIssuer != "" && raw.Issuer != j.jwksIssuer:
		return nil, fmt.Errorf("неожиданный issuer %q", raw.Issuer)
	}

	subject, err := raw.GetSubject()
	if err != nil || subject == "" {
		return nil, errors.New("отсутствует sub в токене")
	}

	username := raw.PreferredUsername
	if username == "" {
		username = subject
	}
	return &AuthClaims{
		Subject:  subject,
		Username: username,
		Roles:    raw.allRoles(),
		External: external,
	}, nil
}

// extractToken достаёт токен из заголовка Authorization или cookie.
func extractToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// WithExclusions пропускает без middleware запросы к указанным путям.
// Путь, оканчивающийся на "/", задаёт префикс; остальные сравниваются точно.
func WithExclusions(mw func(http.Handler) http.Handler, excluded ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range excluded {
				if r.URL.Path == path || (strings.HasSuffix(path, "/") && strings.HasPrefix(r.URL.Path, path)) {
					next.ServeHTTP(w, r)
					return
				}
			}
			protected.ServeHTTP(w, r)
		})
	}
}
