// janitor.go — периодическая очистка простаивающих сессий диалога.
// Языковые предпочтения не затрагиваются.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionsReclaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ld_sessions_reclaimed_total",
	Help: "Сессии, сброшенные после простоя.",
})

// SessionPurger — удаление сессий, не менявшихся с момента before.
type SessionPurger interface {
	PurgeStale(ctx context.Context, before time.Time) (int64, error)
}

// SessionJanitor — фоновая очистка сессий.
type SessionJanitor struct {
	store    SessionPurger
	idleTTL  time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSessionJanitor создаёт сервис очистки сессий.
func NewSessionJanitor(store SessionPurger, idleTTL, interval time.Duration, logger *slog.Logger) *SessionJanitor {
	return &SessionJanitor{
		store:    store,
		idleTTL:  idleTTL,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "session_janitor")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (j *SessionJanitor) Start(ctx context.Context) {
	jCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.run(jCtx)

	j.logger.Info("Очистка сессий запущена",
		slog.String("interval", j.interval.String()),
		slog.String("idle_ttl", j.idleTTL.String()),
	)
}

// Stop останавливает фоновый процесс.
func (j *SessionJanitor) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	<-j.done
	j.logger.Info("Очистка сессий остановлена")
}

func (j *SessionJanitor) run(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.RunOnce(ctx)
		}
	}
}

// RunOnce удаляет сессии, простаивающие дольше idleTTL.
func (j *SessionJanitor) RunOnce(ctx context.Context) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	before := j.now().Add(-j.idleTTL)
	n, err := j.store.PurgeStale(ctx, before)
	if err != nil {
		j.logger.Error("Ошибка очистки сессий", slog.String("error", err.Error()))
		return 0, err
	}
	if n > 0 {
		sessionsReclaimedTotal.Add(float64(n))
		j.logger.Info("Простаивающие сессии сброшены", slog.Int64("count", n))
	}
	return n, nil
}
