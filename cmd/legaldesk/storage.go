package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/legaldesk/internal/api/handlers"
	"github.com/bigkaa/legaldesk/internal/config"
	"github.com/bigkaa/legaldesk/internal/database"
	"github.com/bigkaa/legaldesk/internal/domain/conversation"
	"github.com/bigkaa/legaldesk/internal/repository"
	"github.com/bigkaa/legaldesk/internal/repository/gormstore"
)

// storage — репозитории выбранного драйвера хранилища.
type storage struct {
	sessions  repository.SessionRepository
	languages repository.LanguageRepository
	requests  repository.RequestRepository
	committer conversation.Committer
	checker   handlers.ReadinessChecker
	// pgDB — адаптер пула для topologymetrics; nil для SQLite.
	pgDB  *sql.DB
	close func()
}

// openStorage подключает PostgreSQL (с миграциями) или SQLite по LD_STORAGE_DRIVER.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverSQLite:
		db, err := gormstore.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return &storage{
			sessions:  gormstore.NewSessionRepository(db),
			languages: gormstore.NewLanguageRepository(db),
			requests:  gormstore.NewRequestRepository(db),
			committer: gormstore.NewCommitter(db),
			checker:   gormstore.NewReadinessChecker(db),
			close: func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			},
		}, nil

	case config.StorageDriverPostgres:
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return nil, fmt.Errorf("ошибка миграций БД: %w", err)
		}

		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}

		// Адаптер pgxpool → *sql.DB: проверка здоровья идёт через тот же пул.
		pgDB := stdlib.OpenDBFromPool(pool)

		return &storage{
			sessions:  repository.NewSessionRepository(pool),
			languages: repository.NewLanguageRepository(pool),
			requests:  repository.NewRequestRepository(pool),
			committer: repository.NewCommitter(repository.NewTxRunner(pool)),
			checker:   database.NewReadinessChecker(pool),
			pgDB:      pgDB,
			close: func() {
				_ = pgDB.Close()
				pool.Close()
			},
		}, nil

	default:
		return nil, fmt.Errorf("неизвестный драйвер хранилища %q", cfg.StorageDriver)
	}
}
