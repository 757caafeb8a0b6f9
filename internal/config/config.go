// Пакет config — загрузка и валидация конфигурации LegalDesk
// из переменных окружения с префиксом LD_.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Драйверы хранилища.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// minJWTSecretLength — минимальная длина секрета подписи токенов администратора.
const minJWTSecretLength = 32

// Config содержит все параметры конфигурации LegalDesk.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера админ-API
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Внешний адрес админ-страницы (для пункта меню «Для администратора»)
	PublicURL string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- Хранилище ---

	// Драйвер: postgres (по умолчанию) или sqlite
	StorageDriver string
	DBHost        string
	DBPort        int
	DBName        string
	DBUser        string
	DBPassword    string
	DBSSLMode     string
	// Размер пула подключений к PostgreSQL
	DBMaxConns int
	// Попытки подключения при старте и пауза между ними
	// (PostgreSQL может подняться позже бота)
	DBConnectAttempts   int
	DBConnectRetryDelay time.Duration
	// Путь к файлу SQLite (для драйвера sqlite)
	SQLitePath string

	// --- Telegram ---

	TelegramToken string
	// Шаблон адреса Bot API (по умолчанию официальный сервер)
	TelegramAPIEndpoint string
	// Чат оператора для уведомлений о новых заявках
	OperatorChatID int64
	// Таймаут long polling в секундах
	TelegramPollTimeout int
	// Таймаут скачивания файла из Telegram
	FileDownloadTimeout time.Duration

	// --- Диалог ---

	MaxAttachments    int
	AutoSubmitAtLimit bool
	DefaultLanguage   string
	// Время простоя, после которого сессия сбрасывается
	SessionIdleTTL time.Duration
	// Интервал запуска очистки сессий
	JanitorInterval time.Duration
	// Размер очереди уведомлений оператору
	NotifyQueueSize int
	// Таймаут отправки одного сообщения
	SendTimeout time.Duration
	// Путь к YAML-файлу справочных текстов (опционально)
	ContentFile string

	// --- Аутентификация администратора ---

	AdminUsername string
	AdminPassword string
	// Секрет подписи HS256-токенов
	JWTSecret string
	// Время жизни выданного токена
	TokenTTL time.Duration
	// JWKS внешнего IdP (опционально): RS256-токены с ролью admin
	JWKSURL             string
	JWTIssuer           string
	JWTLeeway           time.Duration
	JWKSRefreshInterval time.Duration
	JWKSClientTimeout   time.Duration

	// --- Кэш ---

	CacheSize int
	CacheTTL  time.Duration

	// --- dephealth ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	DephealthIsEntry       bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:cyclop,funlen // линейная загрузка параметров
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("LD_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("LD_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("LD_PORT: порт %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LD_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LD_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("LD_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LD_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.PublicURL = getEnvDefault("LD_PUBLIC_URL", fmt.Sprintf("http://localhost:%d/admin", cfg.Port))
	if _, err := url.ParseRequestURI(cfg.PublicURL); err != nil {
		return nil, fmt.Errorf("LD_PUBLIC_URL: некорректный URL %q", cfg.PublicURL)
	}

	// --- HTTP Server Timeouts ---

	if cfg.HTTPReadTimeout, err = getEnvDuration("LD_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("LD_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("LD_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("LD_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("LD_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("LD_HTTP_IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("LD_SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("LD_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Хранилище ---

	if err := loadStorage(cfg); err != nil {
		return nil, err
	}

	// --- Telegram ---

	if cfg.TelegramToken, err = getEnvRequired("LD_TELEGRAM_TOKEN"); err != nil {
		return nil, err
	}
	cfg.TelegramAPIEndpoint = getEnvDefault("LD_TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s")
	if strings.Count(cfg.TelegramAPIEndpoint, "%s") != 2 {
		return nil, fmt.Errorf("LD_TELEGRAM_API_ENDPOINT: шаблон должен содержать два %%s (токен и метод)")
	}

	operator, err := getEnvRequired("LD_OPERATOR_CHAT_ID")
	if err != nil {
		return nil, err
	}
	cfg.OperatorChatID, err = strconv.ParseInt(operator, 10, 64)
	if err != nil || cfg.OperatorChatID == 0 {
		return nil, fmt.Errorf("LD_OPERATOR_CHAT_ID: некорректный идентификатор чата %q", operator)
	}

	if cfg.TelegramPollTimeout, err = getEnvInt("LD_TELEGRAM_POLL_TIMEOUT", 30); err != nil {
		return nil, fmt.Errorf("LD_TELEGRAM_POLL_TIMEOUT: %w", err)
	}
	if cfg.FileDownloadTimeout, err = getEnvDuration("LD_FILE_DOWNLOAD_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("LD_FILE_DOWNLOAD_TIMEOUT: %w", err)
	}

	// --- Диалог ---

	if err := loadConversation(cfg); err != nil {
		return nil, err
	}

	// --- Аутентификация администратора ---

	if err := loadAdminAuth(cfg); err != nil {
		return nil, err
	}

	// --- Кэш ---

	if cfg.CacheSize, err = getEnvInt("LD_CACHE_SIZE", 1000); err != nil {
		return nil, fmt.Errorf("LD_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("LD_CACHE_SIZE: значение должно быть > 0")
	}
	if cfg.CacheTTL, err = getEnvDurationPositive("LD_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, fmt.Errorf("LD_CACHE_TTL: %w", err)
	}

	// --- dephealth ---

	cfg.DephealthGroup = getEnvDefault("LD_DEPHEALTH_GROUP", "legaldesk")
	if cfg.DephealthCheckInterval, err = getEnvDurationPositive("LD_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("LD_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	if cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false); err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// loadStorage загружает параметры хранилища в зависимости от драйвера.
func loadStorage(cfg *Config) error {
	var err error

	cfg.StorageDriver = getEnvDefault("LD_STORAGE_DRIVER", StorageDriverPostgres)
	switch cfg.StorageDriver {
	case StorageDriverSQLite:
		cfg.SQLitePath = getEnvDefault("LD_SQLITE_PATH", "legaldesk.db")
		return nil
	case StorageDriverPostgres:
	default:
		return fmt.Errorf("LD_STORAGE_DRIVER: недопустимый драйвер %q, допустимые: postgres, sqlite", cfg.StorageDriver)
	}

	if cfg.DBHost, err = getEnvRequired("LD_DB_HOST"); err != nil {
		return err
	}
	if cfg.DBPort, err = getEnvInt("LD_DB_PORT", 5432); err != nil {
		return fmt.Errorf("LD_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("LD_DB_NAME"); err != nil {
		return err
	}
	if cfg.DBUser, err = getEnvRequired("LD_DB_USER"); err != nil {
		return err
	}
	if cfg.DBPassword, err = getEnvRequired("LD_DB_PASSWORD"); err != nil {
		return err
	}
	cfg.DBSSLMode = getEnvDefault("LD_DB_SSL_MODE", "disable")
	if cfg.DBMaxConns, err = getEnvInt("LD_DB_MAX_CONNS", 10); err != nil {
		return fmt.Errorf("LD_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return fmt.Errorf("LD_DB_MAX_CONNS: значение должно быть положительным, получено %d", cfg.DBMaxConns)
	}
	if cfg.DBConnectAttempts, err = getEnvInt("LD_DB_CONNECT_ATTEMPTS", 5); err != nil {
		return fmt.Errorf("LD_DB_CONNECT_ATTEMPTS: %w", err)
	}
	if cfg.DBConnectAttempts < 1 {
		return fmt.Errorf("LD_DB_CONNECT_ATTEMPTS: значение должно быть положительным, получено %d", cfg.DBConnectAttempts)
	}
	if cfg.DBConnectRetryDelay, err = getEnvDurationPositive("LD_DB_CONNECT_RETRY_DELAY", 2*time.Second); err != nil {
		return fmt.Errorf("LD_DB_CONNECT_RETRY_DELAY: %w", err)
	}
	return nil
}

// loadConversation загружает параметры диалога.
func loadConversation(cfg *Config) error {
	var err error

	if cfg.MaxAttachments, err = getEnvInt("LD_MAX_ATTACHMENTS", 3); err != nil {
		return fmt.Errorf("LD_MAX_ATTACHMENTS: %w", err)
	}
	if cfg.MaxAttachments < 1 || cfg.MaxAttachments > 3 {
		return fmt.Errorf("LD_MAX_ATTACHMENTS: значение %d вне диапазона 1-3", cfg.MaxAttachments)
	}
	if cfg.AutoSubmitAtLimit, err = getEnvBool("LD_AUTO_SUBMIT_AT_LIMIT", false); err != nil {
		return fmt.Errorf("LD_AUTO_SUBMIT_AT_LIMIT: %w", err)
	}

	cfg.DefaultLanguage = getEnvDefault("LD_DEFAULT_LANGUAGE", "ru")
	if cfg.DefaultLanguage != "ru" && cfg.DefaultLanguage != "en" {
		return fmt.Errorf("LD_DEFAULT_LANGUAGE: недопустимый язык %q, допустимые: ru, en", cfg.DefaultLanguage)
	}

	if cfg.SessionIdleTTL, err = getEnvDurationPositive("LD_SESSION_IDLE_TTL", 24*time.Hour); err != nil {
		return fmt.Errorf("LD_SESSION_IDLE_TTL: %w", err)
	}
	if cfg.JanitorInterval, err = getEnvDurationPositive("LD_JANITOR_INTERVAL", 10*time.Minute); err != nil {
		return fmt.Errorf("LD_JANITOR_INTERVAL: %w", err)
	}
	if cfg.NotifyQueueSize, err = getEnvInt("LD_NOTIFY_QUEUE_SIZE", 100); err != nil {
		return fmt.Errorf("LD_NOTIFY_QUEUE_SIZE: %w", err)
	}
	if cfg.NotifyQueueSize < 1 {
		return fmt.Errorf("LD_NOTIFY_QUEUE_SIZE: значение должно быть > 0")
	}
	if cfg.SendTimeout, err = getEnvDurationPositive("LD_SEND_TIMEOUT", 15*time.Second); err != nil {
		return fmt.Errorf("LD_SEND_TIMEOUT: %w", err)
	}
	cfg.ContentFile = os.Getenv("LD_CONTENT_FILE")
	return nil
}

// loadAdminAuth загружает параметры аутентификации администратора.
func loadAdminAuth(cfg *Config) error {
	var err error

	cfg.AdminUsername = getEnvDefault("LD_ADMIN_USERNAME", "admin")
	if cfg.AdminPassword, err = getEnvRequired("LD_ADMIN_PASSWORD"); err != nil {
		return err
	}
	if cfg.JWTSecret, err = getEnvRequired("LD_JWT_SECRET"); err != nil {
		return err
	}
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("LD_JWT_SECRET: длина секрета должна быть не менее %d байт", minJWTSecretLength)
	}
	if cfg.TokenTTL, err = getEnvDurationPositive("LD_TOKEN_TTL", 12*time.Hour); err != nil {
		return fmt.Errorf("LD_TOKEN_TTL: %w", err)
	}

	cfg.JWKSURL = os.Getenv("LD_JWKS_URL")
	cfg.JWTIssuer = os.Getenv("LD_JWT_ISSUER")
	if cfg.JWTLeeway, err = getEnvDuration("LD_JWT_LEEWAY", 5*time.Second); err != nil {
		return fmt.Errorf("LD_JWT_LEEWAY: %w", err)
	}
	if cfg.JWKSRefreshInterval, err = getEnvDurationPositive("LD_JWKS_REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return fmt.Errorf("LD_JWKS_REFRESH_INTERVAL: %w", err)
	}
	if cfg.JWKSClientTimeout, err = getEnvDurationPositive("LD_JWKS_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return fmt.Errorf("LD_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (для лейблов dephealth).
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
