package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/legaldesk/internal/config"
	"github.com/bigkaa/legaldesk/internal/database"
	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("legaldesk_test"),
		postgres.WithUsername("legaldesk"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("LD_DB_HOST", host)
	t.Setenv("LD_DB_PORT", port.Port())
	t.Setenv("LD_DB_NAME", "legaldesk_test")
	t.Setenv("LD_DB_USER", "legaldesk")
	t.Setenv("LD_DB_PASSWORD", "test-password")
	t.Setenv("LD_TELEGRAM_TOKEN", "123:test")
	t.Setenv("LD_OPERATOR_CHAT_ID", "1")
	t.Setenv("LD_ADMIN_PASSWORD", "test")
	t.Setenv("LD_JWT_SECRET", strings.Repeat("x", 32))

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// --- Тесты RequestRepository и Committer ---

func TestCommitAndList(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	committer := NewCommitter(NewTxRunner(pool))
	repo := NewRequestRepository(pool)

	first, err := committer.Commit(ctx, model.Draft{
		UserID: 100, Name: "Иван Петров", Phone: "+79886005661", Message: "Спор с арендодателем",
		Attachments: []model.Attachment{
			{FileRef: "file-a", DisplayName: "договор.pdf"},
			{FileRef: "file-b", DisplayName: "photo_1.jpg"},
		},
	})
	if err != nil {
		t.Fatalf("Commit() ошибка: %v", err)
	}
	if first.ID == 0 || first.Status != model.StatusNew || first.CreatedAt.IsZero() {
		t.Errorf("Commit() вернул %+v", first)
	}

	second, err := committer.Commit(ctx, model.Draft{
		UserID: 200, Name: "Anna Smith", Phone: "+12025550123", Message: "Employment contract question",
	})
	if err != nil {
		t.Fatalf("Commit() ошибка: %v", err)
	}

	// Новые первыми
	list, err := repo.List(ctx, model.RequestFilter{})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("List() порядок неверен: %+v", list)
	}
	if len(list[1].Documents) != 2 || list[1].Documents[0].DisplayName != "договор.pdf" {
		t.Errorf("Documents = %+v", list[1].Documents)
	}
	if list[0].Documents == nil || len(list[0].Documents) != 0 {
		t.Errorf("ожидался пустой список документов, получено %+v", list[0].Documents)
	}

	// Поиск без учёта регистра по имени, телефону и тексту
	for search, wantID := range map[string]int64{
		"иван":       first.ID,
		"2025550123": second.ID,
		"EMPLOYMENT": second.ID,
	} {
		got, err := repo.List(ctx, model.RequestFilter{Search: search})
		if err != nil {
			t.Fatalf("List(%q) ошибка: %v", search, err)
		}
		if len(got) != 1 || got[0].ID != wantID {
			t.Errorf("List(%q) = %d записей", search, len(got))
		}
	}

	// Фильтр по статусу
	if err := repo.SetStatus(ctx, first.ID, model.StatusDone); err != nil {
		t.Fatalf("SetStatus() ошибка: %v", err)
	}
	done := model.StatusDone
	got, err := repo.List(ctx, model.RequestFilter{Status: &done})
	if err != nil {
		t.Fatalf("List(status) ошибка: %v", err)
	}
	if len(got) != 1 || got[0].ID != first.ID {
		t.Errorf("List(status=done) = %+v", got)
	}

	// Лимит
	got, _ = repo.List(ctx, model.RequestFilter{Limit: 1, Offset: 1})
	if len(got) != 1 || got[0].ID != first.ID {
		t.Errorf("List(limit=1, offset=1) = %+v", got)
	}
}

func TestCommitRollsBackOnDocumentFailure(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	committer := NewCommitter(NewTxRunner(pool))

	// NUL-байт недопустим в TEXT — вставка документа завершится ошибкой.
	_, err := committer.Commit(ctx, model.Draft{
		UserID: 1, Name: "Иван", Phone: "+79886005661", Message: "Нужна помощь юриста",
		Attachments: []model.Attachment{{FileRef: "ok", DisplayName: "a.pdf"}, {FileRef: "bad\x00", DisplayName: "b"}},
	})
	if err == nil {
		t.Fatal("ожидалась ошибка фиксации")
	}

	list, err := NewRequestRepository(pool).List(ctx, model.RequestFilter{})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("после отката ожидалось 0 заявок, получено %d", len(list))
	}
}

func TestRequestStatusAndDocuments(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewRequestRepository(pool)
	committer := NewCommitter(NewTxRunner(pool))

	older, _ := committer.Commit(ctx, model.Draft{UserID: 5, Name: "a", Phone: "b", Message: "c"})
	newer, err := committer.Commit(ctx, model.Draft{UserID: 5, Name: "a", Phone: "b", Message: "d",
		Attachments: []model.Attachment{{FileRef: "ref-1", DisplayName: "scan.pdf"}}})
	if err != nil {
		t.Fatalf("Commit() ошибка: %v", err)
	}

	// SetStatusByUser меняет только последнюю заявку пользователя
	id, err := repo.SetStatusByUser(ctx, 5, model.StatusInProgress)
	if err != nil {
		t.Fatalf("SetStatusByUser() ошибка: %v", err)
	}
	if id != newer.ID {
		t.Errorf("SetStatusByUser() id = %d, ожидался %d", id, newer.ID)
	}
	got, _ := repo.GetByID(ctx, older.ID)
	if got.Status != model.StatusNew {
		t.Errorf("старая заявка: Status = %q, ожидался new", got.Status)
	}
	got, _ = repo.GetByID(ctx, newer.ID)
	if got.Status != model.StatusInProgress || len(got.Documents) != 1 {
		t.Errorf("новая заявка: %+v", got)
	}

	if _, err := repo.SetStatusByUser(ctx, 999, model.StatusDone); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatusByUser(999): ожидался ErrNotFound, получено %v", err)
	}
	if err := repo.SetStatus(ctx, 999999, model.StatusDone); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(999999): ожидался ErrNotFound, получено %v", err)
	}
	if err := repo.SetStatus(ctx, older.ID, model.Status("inwork")); !errors.Is(err, ErrConflict) {
		t.Errorf("SetStatus(inwork): ожидался ErrConflict, получено %v", err)
	}
	if _, err := repo.GetByID(ctx, 999999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(999999): ожидался ErrNotFound, получено %v", err)
	}

	doc, err := repo.FindDocument(ctx, "ref-1")
	if err != nil {
		t.Fatalf("FindDocument() ошибка: %v", err)
	}
	if doc.DisplayName != "scan.pdf" || doc.RequestID != newer.ID {
		t.Errorf("FindDocument() = %+v", doc)
	}
	if _, err := repo.FindDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindDocument(missing): ожидался ErrNotFound, получено %v", err)
	}

	err = repo.AddDocument(ctx, &model.Document{RequestID: 999999, FileRef: "x", DisplayName: "x"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("AddDocument(несуществующая заявка): ожидался ErrConflict, получено %v", err)
	}
}

// --- Тесты LanguageRepository ---

func TestLanguageUpsert(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewLanguageRepository(pool)

	lang, err := repo.GetLanguage(ctx, 1)
	if err != nil || lang != "" {
		t.Fatalf("GetLanguage() = %q, %v; ожидалось пустое значение", lang, err)
	}

	if err := repo.SetLanguage(ctx, 1, model.LanguageRU); err != nil {
		t.Fatalf("SetLanguage() ошибка: %v", err)
	}
	if err := repo.SetLanguage(ctx, 1, model.LanguageEN); err != nil {
		t.Fatalf("повторный SetLanguage() ошибка: %v", err)
	}
	if lang, _ := repo.GetLanguage(ctx, 1); lang != model.LanguageEN {
		t.Errorf("GetLanguage() = %q, ожидался en", lang)
	}
	if err := repo.SetLanguage(ctx, 1, model.Language("de")); !errors.Is(err, ErrConflict) {
		t.Errorf("SetLanguage(de): ожидался ErrConflict, получено %v", err)
	}
}

// --- Тесты SessionRepository ---

func TestSessionLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository(pool)

	if s, err := repo.Get(ctx, 1); err != nil || s != nil {
		t.Fatalf("Get() = %+v, %v; ожидалось nil, nil", s, err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	s := &model.Session{
		UserID: 1, Step: model.StepAwaitingAttachments, Language: model.LanguageRU,
		Name: "Иван", Phone: "+79886005661", Message: "Нужна консультация",
		Attachments: []model.Attachment{{FileRef: "f1", DisplayName: "a.pdf"}},
		UpdatedAt:   now,
	}
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("Save() ошибка: %v", err)
	}

	got, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got.Step != model.StepAwaitingAttachments || got.Name != "Иван" || len(got.Attachments) != 1 {
		t.Errorf("Get() = %+v", got)
	}
	if got.Attachments[0].DisplayName != "a.pdf" {
		t.Errorf("Attachments[0] = %+v", got.Attachments[0])
	}

	// Перезапись
	s.Attachments = nil
	s.Step = model.StepAwaitingAttachChoice
	if err := repo.Save(ctx, s); err != nil {
		t.Fatalf("повторный Save() ошибка: %v", err)
	}
	got, _ = repo.Get(ctx, 1)
	if got.Step != model.StepAwaitingAttachChoice || len(got.Attachments) != 0 {
		t.Errorf("после перезаписи Get() = %+v", got)
	}

	// Очистка устаревших сессий
	stale := &model.Session{UserID: 2, Step: model.StepAwaitingName, UpdatedAt: now.Add(-48 * time.Hour)}
	if err := repo.Save(ctx, stale); err != nil {
		t.Fatalf("Save(stale) ошибка: %v", err)
	}
	n, err := repo.PurgeStale(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeStale() ошибка: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeStale() = %d, ожидалось 1", n)
	}
	if got, _ := repo.Get(ctx, 2); got != nil {
		t.Error("устаревшая сессия не удалена")
	}

	if err := repo.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if got, _ := repo.Get(ctx, 1); got != nil {
		t.Error("сессия не удалена")
	}
}
