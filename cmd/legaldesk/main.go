// Точка входа LegalDesk — Telegram-бот записи на юридическую консультацию
// и админ-API для работы с заявками.
// Загружает конфигурацию, открывает хранилище (PostgreSQL или SQLite),
// собирает автомат диалога, транспорт Telegram и сервисный слой,
// запускает фоновые задачи (уведомления, очистка сессий, topologymetrics),
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/bigkaa/legaldesk/internal/api/generated"
	"github.com/bigkaa/legaldesk/internal/api/handlers"
	"github.com/bigkaa/legaldesk/internal/api/middleware"
	"github.com/bigkaa/legaldesk/internal/config"
	"github.com/bigkaa/legaldesk/internal/domain/conversation"
	"github.com/bigkaa/legaldesk/internal/domain/model"
	"github.com/bigkaa/legaldesk/internal/i18n"
	"github.com/bigkaa/legaldesk/internal/server"
	"github.com/bigkaa/legaldesk/internal/service"
	"github.com/bigkaa/legaldesk/internal/telegram"
)

func main() {
	// 0. .env для локального запуска; переменные окружения имеют приоритет
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Ошибка чтения .env", slog.String("error", err.Error()))
	}

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("LegalDesk запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage", cfg.StorageDriver),
	)

	if os.Getenv("LD_DEPHEALTH_GROUP") == "" {
		logger.Warn("LD_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Ошибка работы LegalDesk", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

//nolint:funlen // линейная сборка зависимостей
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// 3. Хранилище
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	// 4. Локализация и справочные тексты
	bundle := i18n.Init(logger)
	if err := i18n.LoadEmbedded(bundle, logger); err != nil {
		return err
	}
	content, err := config.LoadContent(cfg.ContentFile, cfg.PublicURL)
	if err != nil {
		return err
	}
	languages := service.NewCachedLanguages(store.languages, cfg.CacheSize, cfg.CacheTTL)

	// 5. Telegram Bot API
	api, err := telegram.NewAPI(cfg.TelegramToken, cfg.TelegramAPIEndpoint, cfg.TelegramPollTimeout, logger)
	if err != nil {
		return err
	}
	sender := telegram.NewSender(api, bundle, logger)
	files := telegram.NewFileService(api, cfg.TelegramToken,
		telegram.FileEndpointFor(cfg.TelegramAPIEndpoint), cfg.FileDownloadTimeout, logger)

	// 6. Уведомления оператору (и доставка ответов администратора)
	notifier := service.NewNotifier(sender, bundle, cfg.OperatorChatID,
		model.Language(cfg.DefaultLanguage), cfg.NotifyQueueSize, cfg.SendTimeout, logger)
	notifier.Start()

	// 7. Автомат диалога и диспетчер событий
	engine := conversation.NewEngine(conversation.Deps{
		Sessions:   store.sessions,
		Languages:  languages,
		Committer:  store.committer,
		Notifier:   notifier,
		Translator: bundle,
		Content:    content,
	}, conversation.Options{
		MaxAttachments:    cfg.MaxAttachments,
		AutoSubmitAtLimit: cfg.AutoSubmitAtLimit,
		DefaultLanguage:   model.Language(cfg.DefaultLanguage),
	}, logger)
	dispatcher := service.NewDispatcher(engine, sender, cfg.SendTimeout, logger)

	// 8. Очистка сессий
	janitor := service.NewSessionJanitor(store.sessions, cfg.SessionIdleTTL, cfg.JanitorInterval, logger)
	janitor.Start(ctx)

	// 9. topologymetrics
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "legaldesk",
		Group:         cfg.DephealthGroup,
		DB:            store.pgDB,
		PostgresURL:   cfg.DatabaseURL(),
		TelegramURL:   telegram.BaseURL(cfg.TelegramAPIEndpoint),
		CheckInterval: cfg.DephealthCheckInterval,
		IsEntry:       cfg.DephealthIsEntry,
	}, logger)
	if err != nil {
		return err
	}
	if err := dephealthSvc.Start(ctx); err != nil {
		return err
	}

	// 10. Сервисы админки
	adminSvc := service.NewAdminService(store.requests, notifier, logger)
	downloadSvc := service.NewDownloadService(store.requests,
		service.NewDocumentCache(cfg.CacheSize, cfg.CacheTTL), files, logger)

	healthHandler := handlers.NewHealthHandler(
		handlers.NamedChecker{Name: "storage", Checker: store.checker},
		handlers.NamedChecker{Name: "telegram", Checker: telegram.NewReadinessChecker(api)},
	)
	issuer := middleware.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		adminSvc,
		downloadSvc,
		issuer,
		handlers.Credentials{Username: cfg.AdminUsername, Password: cfg.AdminPassword},
		bundle,
		logger,
	)

	// 11. JWT middleware и валидация по контракту
	jwtAuth, err := middleware.NewJWTAuth(issuer, middleware.JWKSOptions{
		URL:             cfg.JWKSURL,
		Issuer:          cfg.JWTIssuer,
		ClientTimeout:   cfg.JWKSClientTimeout,
		RefreshInterval: cfg.JWKSRefreshInterval,
	}, cfg.JWTLeeway, logger)
	if err != nil {
		return err
	}
	doc, err := generated.GetSwagger()
	if err != nil {
		return err
	}
	validator, err := middleware.NewRequestValidator(doc, "/admin/api/", logger)
	if err != nil {
		return err
	}

	// 12. Приём обновлений Telegram
	bot := telegram.NewBot(api, dispatcher, bundle, cfg.TelegramPollTimeout, logger)
	bot.Start(ctx)

	// 13. HTTP-сервер (блокируется до сигнала завершения)
	srv := server.New(cfg, logger, apiHandler, server.Options{Auth: jwtAuth, Validator: validator})
	runErr := srv.Run(ctx)

	// 14. Остановка в порядке зависимостей: новые события не принимаются,
	// начатые диалоги дообрабатываются, затем останавливаются фоновые задачи.
	bot.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	dispatcher.Stop(stopCtx)
	notifier.Stop()
	janitor.Stop()
	dephealthSvc.Stop()

	logger.Info("LegalDesk остановлен", slog.Duration("shutdown_timeout", cfg.ShutdownTimeout.Round(time.Second)))
	return runErr
}
