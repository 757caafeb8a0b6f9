// Пакет gormstore — встроенное хранилище на SQLite (gorm).
// Реализует те же контракты, что и PostgreSQL-репозитории,
// и выбирается через LD_STORAGE_DRIVER=sqlite.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open открывает (или создаёт) файл SQLite и применяет автомиграцию моделей.
// path ":memory:" — база в памяти (для тестов).
func Open(path string, log *slog.Logger) (*gorm.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения соединения SQLite: %w", err)
	}
	// SQLite допускает одного писателя; база в памяти живёт в одном соединении.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("ошибка включения внешних ключей: %w", err)
	}

	if err := db.AutoMigrate(&requestRow{}, &documentRow{}, &languageRow{}, &sessionRow{}); err != nil {
		return nil, fmt.Errorf("ошибка автомиграции SQLite: %w", err)
	}

	log.Info("Хранилище SQLite открыто", slog.String("path", path))
	return db, nil
}

// ReadinessChecker — проверка готовности SQLite для health endpoint.
type ReadinessChecker struct {
	db *gorm.DB
}

// NewReadinessChecker создаёт проверку готовности SQLite.
func NewReadinessChecker(db *gorm.DB) *ReadinessChecker {
	return &ReadinessChecker{db: db}
}

// CheckReady выполняет ping соединения.
func (c *ReadinessChecker) CheckReady() (status, message string) {
	sqlDB, err := c.db.DB()
	if err != nil {
		return "fail", fmt.Sprintf("SQLite недоступен: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return "fail", fmt.Sprintf("SQLite недоступен: %v", err)
	}
	return "ok", "подключение активно"
}

// escapeLike экранирует спецсимволы шаблона LIKE.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
