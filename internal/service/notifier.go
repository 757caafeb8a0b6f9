// notifier.go — уведомления оператора о новых заявках и ответы пользователям.
// Уведомления о заявках идут через ограниченную очередь и отдельный воркер,
// чтобы медленный Telegram не задерживал ответ пользователю.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// Prometheus-метрики уведомлений.
var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ld_notifications_total",
	Help: "Уведомления и ответы, отправленные через Telegram (по типу и результату).",
}, []string{"kind", "result"})

// MessageSender — отправка текстового сообщения в чат.
type MessageSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Translator — источник локализованных шаблонов.
type Translator interface {
	Translatef(lang, key string, args ...any) string
}

// Notifier доставляет оператору сводки по новым заявкам.
type Notifier struct {
	sender         MessageSender
	translator     Translator
	operatorChatID int64
	lang           model.Language
	sendTimeout    time.Duration
	logger         *slog.Logger

	queue chan *model.Request

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewNotifier создаёт Notifier.
// lang — язык сводок для оператора, queueSize — ёмкость очереди.
func NewNotifier(
	sender MessageSender,
	translator Translator,
	operatorChatID int64,
	lang model.Language,
	queueSize int,
	sendTimeout time.Duration,
	logger *slog.Logger,
) *Notifier {
	return &Notifier{
		sender:         sender,
		translator:     translator,
		operatorChatID: operatorChatID,
		lang:           lang,
		sendTimeout:    sendTimeout,
		logger:         logger.With(slog.String("component", "notifier")),
		queue:          make(chan *model.Request, queueSize),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start запускает воркер отправки уведомлений.
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return
	}
	n.started = true
	go n.run()
	n.logger.Info("Отправка уведомлений запущена",
		slog.Int64("operator_chat_id", n.operatorChatID),
		slog.Int("queue_size", cap(n.queue)),
	)
}

// Stop останавливает воркер, предварительно отправив накопленные уведомления.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	started := n.started
	close(n.stopCh)
	n.mu.Unlock()

	if started {
		<-n.done
	}
	n.dropQueued()
	n.logger.Info("Отправка уведомлений остановлена")
}

// NotifyNewRequest ставит сводку в очередь и сразу возвращает управление.
// При переполненной очереди уведомление отбрасывается с записью в лог.
// Постановка в очередь идёт под mu: после Stop в очередь ничего не попадает.
func (n *Notifier) NotifyNewRequest(req *model.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		n.dropped(req)
		return
	}

	select {
	case n.queue <- req:
	default:
		notificationsTotal.WithLabelValues("new_request", "dropped").Inc()
		n.logger.Error("Очередь уведомлений переполнена, уведомление отброшено",
			slog.Int64("request_id", req.ID),
			slog.Int64("user_id", req.UserID),
		)
	}
}

// SendToUser синхронно отправляет ответ оператора пользователю.
func (n *Notifier) SendToUser(ctx context.Context, userID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()

	if err := n.sender.SendText(ctx, userID, text); err != nil {
		notificationsTotal.WithLabelValues("reply", "error").Inc()
		n.logger.Warn("Ответ пользователю не доставлен",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	notificationsTotal.WithLabelValues("reply", "ok").Inc()
	return nil
}

// FormatNewRequest формирует текст сводки для оператора.
func (n *Notifier) FormatNewRequest(req *model.Request) string {
	lang := string(n.lang)
	text := n.translator.Translatef(lang, "notify.new_request", req.ID, req.Name, req.Phone, req.Message)
	if len(req.Documents) > 0 {
		text += "\n" + n.translator.Translatef(lang, "notify.attachments", len(req.Documents))
	}
	return text
}

// dropQueued записывает в лог уведомления, оставшиеся в очереди
// (воркер не запускался).
func (n *Notifier) dropQueued() {
	for {
		select {
		case req := <-n.queue:
			n.dropped(req)
		default:
			return
		}
	}
}

func (n *Notifier) dropped(req *model.Request) {
	notificationsTotal.WithLabelValues("new_request", "dropped").Inc()
	n.logger.Error("Уведомление не отправлено: сервис остановлен",
		slog.Int64("request_id", req.ID),
		slog.Int64("user_id", req.UserID),
	)
}

// run — основной цикл воркера.
func (n *Notifier) run() {
	defer close(n.done)
	for {
		select {
		case req := <-n.queue:
			n.deliver(req)
		case <-n.stopCh:
			n.drain()
			return
		}
	}
}

// drain отправляет оставшиеся в очереди уведомления.
func (n *Notifier) drain() {
	for {
		select {
		case req := <-n.queue:
			n.deliver(req)
		default:
			return
		}
	}
}

func (n *Notifier) deliver(req *model.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), n.sendTimeout)
	defer cancel()

	if err := n.sender.SendText(ctx, n.operatorChatID, n.FormatNewRequest(req)); err != nil {
		notificationsTotal.WithLabelValues("new_request", "error").Inc()
		n.logger.Error("Ошибка отправки уведомления оператору",
			slog.Int64("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	notificationsTotal.WithLabelValues("new_request", "ok").Inc()
	n.logger.Debug("Уведомление отправлено", slog.Int64("request_id", req.ID))
}
