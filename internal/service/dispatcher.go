// dispatcher.go — доставка входящих событий в автомат диалога.
// У каждого активного пользователя своя очередь (FIFO) и своя горутина:
// события одного пользователя обрабатываются строго по порядку,
// разные пользователи — параллельно.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/legaldesk/internal/domain/conversation"
	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// Prometheus-метрики диалога.
var (
	conversationEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ld_conversation_events_total",
		Help: "Обработанные события диалога (по намерению и результату).",
	}, []string{"intent", "outcome"})

	requestsCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ld_requests_committed_total",
		Help: "Зафиксированные заявки.",
	})

	activeMailboxes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ld_dispatcher_active_mailboxes",
		Help: "Количество пользователей с необработанными событиями.",
	})

	droppedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ld_dispatcher_dropped_events_total",
		Help: "События, отброшенные из-за переполненной очереди пользователя.",
	})
)

// mailboxCapacity — предел необработанных событий одного пользователя.
const mailboxCapacity = 32

// EventHandler — обработчик события диалога (conversation.Engine).
type EventHandler interface {
	Handle(ctx context.Context, ev conversation.Event) (conversation.Result, error)
}

// PromptSender — отправка подсказки пользователю с клавиатурой.
type PromptSender interface {
	SendPrompt(ctx context.Context, userID int64, lang model.Language, p conversation.Prompt) error
}

// Dispatcher распределяет события по очередям пользователей.
type Dispatcher struct {
	handler     EventHandler
	sender      PromptSender
	sendTimeout time.Duration
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	mailboxes map[int64][]conversation.Event
	stopped   bool
	wg        sync.WaitGroup
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(handler EventHandler, sender PromptSender, sendTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler:     handler,
		sender:      sender,
		sendTimeout: sendTimeout,
		logger:      logger.With(slog.String("component", "dispatcher")),
		ctx:         ctx,
		cancel:      cancel,
		mailboxes:   make(map[int64][]conversation.Event),
	}
}

// Submit ставит событие в очередь пользователя.
// Возвращает ErrStopped после вызова Stop и ErrMailboxFull,
// если у пользователя уже mailboxCapacity необработанных событий.
func (d *Dispatcher) Submit(ev conversation.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrStopped
	}

	queue, active := d.mailboxes[ev.UserID]
	if len(queue) >= mailboxCapacity {
		droppedEventsTotal.Inc()
		d.logger.Warn("Очередь пользователя переполнена, событие отброшено",
			slog.Int64("user_id", ev.UserID),
			slog.String("intent", ev.Intent.String()),
		)
		return ErrMailboxFull
	}
	d.mailboxes[ev.UserID] = append(queue, ev)
	if !active {
		activeMailboxes.Inc()
		d.wg.Add(1)
		go d.drain(ev.UserID)
	}
	return nil
}

// Stop перестаёт принимать события и ждёт обработки уже принятых.
// По истечении ctx обработка прерывается.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn("Таймаут ожидания очередей, обработка прервана")
		d.cancel()
		<-done
	}
	d.cancel()
	d.logger.Info("Обработка событий остановлена")
}

// drain обрабатывает очередь пользователя до опустошения.
func (d *Dispatcher) drain(userID int64) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		queue := d.mailboxes[userID]
		if len(queue) == 0 {
			delete(d.mailboxes, userID)
			activeMailboxes.Dec()
			d.mu.Unlock()
			return
		}
		ev := queue[0]
		d.mailboxes[userID] = queue[1:]
		d.mu.Unlock()

		d.process(ev)
	}
}

// process передаёт событие автомату и отправляет ответ пользователю.
func (d *Dispatcher) process(ev conversation.Event) {
	res, err := d.handler.Handle(d.ctx, ev)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		d.logger.Error("Ошибка обработки события",
			slog.Int64("user_id", ev.UserID),
			slog.String("intent", ev.Intent.String()),
			slog.String("error", err.Error()),
		)
	}
	conversationEventsTotal.WithLabelValues(ev.Intent.String(), outcome).Inc()
	if res.RequestID != 0 {
		requestsCommittedTotal.Inc()
	}

	if res.Prompt.Text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.sendTimeout)
	defer cancel()
	if err := d.sender.SendPrompt(ctx, ev.UserID, res.Language, res.Prompt); err != nil {
		d.logger.Warn("Ответ пользователю не доставлен",
			slog.Int64("user_id", ev.UserID),
			slog.String("prompt", res.Prompt.Key),
			slog.String("error", err.Error()),
		)
	}
}
