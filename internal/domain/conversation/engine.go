// Пакет conversation — конечный автомат диалога оформления заявки.
//
// Шаги: idle → awaiting_name → awaiting_phone → awaiting_message →
// awaiting_attach_choice → [awaiting_attachments] → фиксация → idle.
// До первого выбора языка пользователь проходит через awaiting_language.
//
// События одного пользователя обрабатываются строго последовательно
// (мьютекс на user_id), разные пользователи — параллельно.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bigkaa/legaldesk/internal/domain/model"
	"github.com/bigkaa/legaldesk/internal/domain/validation"
)

// ErrIncompleteDraft — попытка фиксации без обязательных полей.
var ErrIncompleteDraft = errors.New("черновик заявки не заполнен")

// SessionStore — хранилище сессий диалога.
type SessionStore interface {
	// Get возвращает сессию пользователя или nil без ошибки, если её нет.
	Get(ctx context.Context, userID int64) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, userID int64) error
}

// LanguageStore — долговременное хранилище языковых предпочтений.
type LanguageStore interface {
	// GetLanguage возвращает язык пользователя или "" без ошибки, если выбора не было.
	GetLanguage(ctx context.Context, userID int64) (model.Language, error)
	SetLanguage(ctx context.Context, userID int64, lang model.Language) error
}

// Committer атомарно записывает заявку вместе со всеми вложениями.
type Committer interface {
	Commit(ctx context.Context, draft model.Draft) (*model.Request, error)
}

// Notifier отправляет оператору сводку по новой заявке.
// Вызов не должен блокировать обработку события.
type Notifier interface {
	NotifyNewRequest(req *model.Request)
}

// Translator — источник локализованных текстов.
type Translator interface {
	Translate(lang, key string) string
	Translatef(lang, key string, args ...any) string
}

// Content — справочные тексты меню (контакты, FAQ, ссылка для администратора).
type Content interface {
	Contacts(lang model.Language) string
	FAQ(lang model.Language) string
	AdminLink(lang model.Language) string
}

// Deps — зависимости автомата.
type Deps struct {
	Sessions   SessionStore
	Languages  LanguageStore
	Committer  Committer
	Notifier   Notifier
	Translator Translator
	Content    Content
}

// Options — параметры поведения автомата.
type Options struct {
	// MaxAttachments — лимит вложений (1..validation.MaxAttachments).
	MaxAttachments int
	// AutoSubmitAtLimit — фиксировать заявку сразу после последнего допустимого файла.
	AutoSubmitAtLimit bool
	// DefaultLanguage — язык до выбора пользователем.
	DefaultLanguage model.Language
	// Now — источник времени (для тестов).
	Now func() time.Time
}

// Engine — автомат диалога.
type Engine struct {
	deps   Deps
	opts   Options
	locks  *keyedMutex
	logger *slog.Logger
}

// NewEngine создаёт автомат. Некорректные опции заменяются значениями по умолчанию.
func NewEngine(deps Deps, opts Options, logger *slog.Logger) *Engine {
	if opts.MaxAttachments <= 0 || opts.MaxAttachments > validation.MaxAttachments {
		opts.MaxAttachments = validation.MaxAttachments
	}
	if _, ok := model.ParseLanguage(string(opts.DefaultLanguage)); !ok {
		opts.DefaultLanguage = model.LanguageRU
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		deps:   deps,
		opts:   opts,
		locks:  newKeyedMutex(),
		logger: logger.With(slog.String("component", "conversation")),
	}
}

// Handle обрабатывает одно событие пользователя.
// Result пригоден для отправки даже при ненулевой ошибке:
// в этом случае он содержит общее сообщение об ошибке.
func (e *Engine) Handle(ctx context.Context, ev Event) (Result, error) {
	unlock := e.locks.Lock(ev.UserID)
	defer unlock()

	s, err := e.deps.Sessions.Get(ctx, ev.UserID)
	if err != nil {
		e.logger.Error("Ошибка чтения сессии",
			slog.Int64("user_id", ev.UserID),
			slog.String("error", err.Error()),
		)
		return e.failure(e.opts.DefaultLanguage, model.StepIdle), fmt.Errorf("чтение сессии: %w", err)
	}
	if s == nil {
		s = model.NewSession(ev.UserID, "")
	}

	known, err := e.resolveLanguage(ctx, s)
	if err != nil {
		e.logger.Error("Ошибка чтения языка пользователя",
			slog.Int64("user_id", ev.UserID),
			slog.String("error", err.Error()),
		)
		return e.failure(e.opts.DefaultLanguage, s.Step), fmt.Errorf("чтение языка: %w", err)
	}

	switch ev.Intent {
	case IntentHome:
		return e.goHome(ctx, s, known)
	case IntentRestart:
		if err := e.clear(ctx, s); err != nil {
			return e.failure(s.Language, s.Step), err
		}
		return e.enterIdle(ctx, s, known)
	}

	switch s.Step {
	case model.StepIdle:
		return e.onIdle(ctx, s, known, ev)
	case model.StepAwaitingLanguage:
		return e.onAwaitingLanguage(ctx, s, ev)
	case model.StepAwaitingName:
		return e.onAwaitingName(ctx, s, known, ev)
	case model.StepAwaitingPhone:
		return e.onAwaitingPhone(ctx, s, ev)
	case model.StepAwaitingMessage:
		return e.onAwaitingMessage(ctx, s, ev)
	case model.StepAwaitingAttachChoice:
		return e.onAwaitingAttachChoice(ctx, s, ev)
	case model.StepAwaitingAttachments:
		return e.onAwaitingAttachments(ctx, s, ev)
	default:
		e.logger.Warn("Неизвестный шаг сессии, сброс",
			slog.Int64("user_id", ev.UserID),
			slog.String("step", string(s.Step)),
		)
		return e.goHome(ctx, s, known)
	}
}

// resolveLanguage заполняет язык сессии из долговременного предпочтения.
// Возвращает false, если пользователь ещё не выбирал язык; язык сессии
// тогда служит только для подсказок и выбором не считается.
func (e *Engine) resolveLanguage(ctx context.Context, s *model.Session) (bool, error) {
	lang, err := e.deps.Languages.GetLanguage(ctx, s.UserID)
	if err != nil {
		return false, err
	}
	if lang == "" {
		if _, ok := model.ParseLanguage(string(s.Language)); !ok {
			s.Language = e.opts.DefaultLanguage
		}
		return false, nil
	}
	s.Language = lang
	return true, nil
}

// --- Обработчики шагов ---

func (e *Engine) onIdle(ctx context.Context, s *model.Session, known bool, ev Event) (Result, error) {
	if !known || ev.Intent == IntentChangeLanguage {
		if ev.Intent == IntentChooseLanguage {
			return e.chooseLanguage(ctx, s, ev)
		}
		return e.askLanguage(ctx, s)
	}

	switch ev.Intent {
	case IntentStartRequest:
		s.Reset()
		s.Step = model.StepAwaitingName
		return e.advance(ctx, s, "prompt.ask_name", KeyboardNavigation)
	case IntentChooseLanguage:
		return e.chooseLanguage(ctx, s, ev)
	case IntentContacts:
		return e.reply(s, Prompt{Key: "content.contacts", Text: e.deps.Content.Contacts(s.Language), Keyboard: KeyboardMenu}), nil
	case IntentFAQ:
		return e.reply(s, Prompt{Key: "content.faq", Text: e.deps.Content.FAQ(s.Language), Keyboard: KeyboardMenu}), nil
	case IntentAdminLink:
		return e.reply(s, Prompt{Key: "content.admin_link", Text: e.deps.Content.AdminLink(s.Language), Keyboard: KeyboardMenu}), nil
	case IntentDone:
		return e.reply(s, e.prompt(s.Language, "prompt.nothing_to_submit", KeyboardMenu)), nil
	default:
		return e.reply(s, e.prompt(s.Language, "prompt.menu", KeyboardMenu)), nil
	}
}

func (e *Engine) onAwaitingLanguage(ctx context.Context, s *model.Session, ev Event) (Result, error) {
	if ev.Intent == IntentChooseLanguage {
		return e.chooseLanguage(ctx, s, ev)
	}
	e.logger.Debug("Ожидается выбор языка", slog.Int64("user_id", s.UserID))
	return e.reply(s, e.prompt(s.Language, "prompt.choose_language", KeyboardLanguage)), nil
}

func (e *Engine) onAwaitingName(ctx context.Context, s *model.Session, known bool, ev Event) (Result, error) {
	if ev.Intent == IntentBack {
		return e.goHome(ctx, s, known)
	}
	text, ok := textInput(ev)
	if !ok {
		return e.reply(s, e.prompt(s.Language, "prompt.ask_name", KeyboardNavigation)), nil
	}
	if !validation.ValidName(text) {
		e.rejected(s, "name")
		return e.reply(s, e.prompt(s.Language, "prompt.invalid_name", KeyboardNavigation)), nil
	}

	s.Name = strings.TrimSpace(text)
	s.Step = model.StepAwaitingPhone
	return e.advance(ctx, s, "prompt.ask_phone", KeyboardNavigation)
}

func (e *Engine) onAwaitingPhone(ctx context.Context, s *model.Session, ev Event) (Result, error) {
	if ev.Intent == IntentBack {
		s.Step = model.StepAwaitingName
		return e.advance(ctx, s, "prompt.ask_name", KeyboardNavigation)
	}
	text, ok := textInput(ev)
	if !ok {
		return e.reply(s, e.prompt(s.Language, "prompt.ask_phone", KeyboardNavigation)), nil
	}
	phone, ok := validation.NormalizePhone(text)
	if !ok {
		e.rejected(s, "phone")
		return e.reply(s, e.prompt(s.Language, "prompt.invalid_phone", KeyboardNavigation)), nil
	}

	s.Phone = phone
	s.Step = model.StepAwaitingMessage
	return e.advance(ctx, s, "prompt.ask_message", KeyboardNavigation)
}

func (e *Engine) onAwaitingMessage(ctx context.Context, s *model.Session, ev Event) (Result, error) {
	if ev.Intent == IntentBack {
		s.Step = model.StepAwaitingPhone
		return e.advance(ctx, s, "prompt.ask_phone", KeyboardNavigation)
	}
	text, ok := textInput(ev)
	if !ok {
		return e.reply(s, e.prompt(s.Language, "prompt.ask_message", KeyboardNavigation)), nil
	}
	if !validation.ValidMessage(text) {
		e.rejected(s, "message")
		return e.reply(s, e.prompt(s.Language, "prompt.invalid_message", KeyboardNavigation)), nil
	}

	s.Message = strings.TrimSpace(text)
	s.Step = model.StepAwaitingAttachChoice
	return e.advance(ctx, s, "prompt.ask_attach", KeyboardYesNo, e.opts.MaxAttachments)
}

func (e *Engine) onAwaitingAttachChoice(ctx context.Context, s *model.Session, ev Event) (Result, error) {
	switch ev.Intent {
	case IntentYes:
		s.Step = model.StepAwaitingAttachments
		s.Attachments = []model.Attachment{}
		return e.advance(ctx, s, "prompt.send_files", KeyboardAttachments)
	case IntentNo:
		return e.commit(ctx, s)
	case IntentBack:
		s.Step = model.StepAwaitingMessage
		return e.advance(ctx, s, "prompt.ask_message", KeyboardNavigation)
	default:
		return e.reply(s, e.prompt(s.Language, "prompt.ask_attach", KeyboardYesNo, e.opts.MaxAttachments)), nil
	}
}

func (e *Engine) onAwaitingAttachments(ctx context.Context, s *model.Session, ev Event) (Result, error) {
	switch ev.Intent {
	case IntentFile:
		return e.addAttachment(ctx, s, ev.File)
	case IntentDone:
		return e.commit(ctx, s)
	case IntentBack:
		s.Step = model.StepAwaitingAttachChoice
		s.Attachments = nil
		return e.advance(ctx, s, "prompt.ask_attach", KeyboardYesNo, e.opts.MaxAttachments)
	default:
		return e.reply(s, e.prompt(s.Language, "prompt.send_files", KeyboardAttachments)), nil
	}
}

// addAttachment добавляет файл, если лимит не исчерпан.
func (e *Engine) addAttachment(ctx context.Context, s *model.Session, file model.Attachment) (Result, error) {
	if len(s.Attachments) >= e.opts.MaxAttachments || !validation.AttachmentCountOK(len(s.Attachments)+1) {
		e.rejected(s, "attachment_limit")
		return e.reply(s, e.prompt(s.Language, "prompt.attach_limit", KeyboardAttachments, e.opts.MaxAttachments)), nil
	}

	s.Attachments = append(s.Attachments, file)
	count := len(s.Attachments)

	if count == e.opts.MaxAttachments && e.opts.AutoSubmitAtLimit {
		// Сессия с последним файлом сохраняется до фиксации:
		// при ошибке записи пользователь повторит фиксацию через «Готово».
		if err := e.save(ctx, s); err != nil {
			return e.failure(s.Language, s.Step), err
		}
		return e.commit(ctx, s)
	}

	return e.advance(ctx, s, "prompt.file_added", KeyboardAttachments, count, e.opts.MaxAttachments)
}

// chooseLanguage сохраняет предпочтение и возвращает пользователя в меню.
func (e *Engine) chooseLanguage(ctx context.Context, s *model.Session, ev Event) (Result, error) {
	lang, ok := model.ParseLanguage(string(ev.Language))
	if !ok {
		return e.reply(s, e.prompt(s.Language, "prompt.choose_language", KeyboardLanguage)), nil
	}
	if err := e.deps.Languages.SetLanguage(ctx, s.UserID, lang); err != nil {
		e.logger.Error("Ошибка сохранения языка",
			slog.Int64("user_id", s.UserID),
			slog.String("error", err.Error()),
		)
		return e.failure(s.Language, s.Step), fmt.Errorf("сохранение языка: %w", err)
	}

	s.Language = lang
	if err := e.clear(ctx, s); err != nil {
		return e.failure(lang, s.Step), err
	}
	return e.reply(s, e.prompt(lang, "prompt.welcome", KeyboardMenu)), nil
}

// commit фиксирует заявку. При ошибке записи сессия остаётся на текущем шаге.
func (e *Engine) commit(ctx context.Context, s *model.Session) (Result, error) {
	draft := s.Draft()
	if !draft.Complete() {
		e.logger.Error("Фиксация неполной заявки отклонена",
			slog.Int64("user_id", s.UserID),
			slog.String("step", string(s.Step)),
		)
		if err := e.clear(ctx, s); err != nil {
			return e.failure(s.Language, s.Step), err
		}
		return e.failure(s.Language, model.StepIdle), ErrIncompleteDraft
	}

	req, err := e.deps.Committer.Commit(ctx, draft)
	if err != nil {
		e.logger.Error("Ошибка фиксации заявки",
			slog.Int64("user_id", s.UserID),
			slog.Int("attachments", len(draft.Attachments)),
			slog.String("error", err.Error()),
		)
		return e.reply(s, e.prompt(s.Language, "prompt.commit_failed", keyboardFor(s.Step))), fmt.Errorf("фиксация заявки: %w", err)
	}

	e.finishCommitted(ctx, s, req.ID)

	e.deps.Notifier.NotifyNewRequest(req)

	e.logger.Info("Заявка зафиксирована",
		slog.Int64("request_id", req.ID),
		slog.Int64("user_id", s.UserID),
		slog.Int("documents", len(req.Documents)),
	)

	res := e.reply(s, e.prompt(s.Language, "prompt.thanks", KeyboardMenu))
	res.RequestID = req.ID
	return res, nil
}

// finishCommitted переводит сессию в idle после записи заявки.
// Сессия на шаге вложений приняла бы повторное «Готово» и создала дубликат,
// поэтому при ошибке удаления оно повторяется, а затем сессия
// перезаписывается пустой.
func (e *Engine) finishCommitted(ctx context.Context, s *model.Session, requestID int64) {
	if err := e.clear(ctx, s); err == nil {
		return
	}
	if err := e.clear(ctx, s); err == nil {
		return
	}
	s.Reset()
	if err := e.save(ctx, s); err != nil {
		e.logger.Error("Сессия не сброшена после фиксации",
			slog.Int64("user_id", s.UserID),
			slog.Int64("request_id", requestID),
		)
	}
}

// --- Переходы общего назначения ---

// goHome сбрасывает сессию и показывает главное меню
// (или выбор языка, если пользователь его ещё не делал).
func (e *Engine) goHome(ctx context.Context, s *model.Session, known bool) (Result, error) {
	if err := e.clear(ctx, s); err != nil {
		return e.failure(s.Language, s.Step), err
	}
	if !known {
		return e.askLanguage(ctx, s)
	}
	return e.reply(s, e.prompt(s.Language, "prompt.menu", KeyboardMenu)), nil
}

// enterIdle — вход в меню: приветствие или выбор языка, если он ещё не задан.
func (e *Engine) enterIdle(ctx context.Context, s *model.Session, known bool) (Result, error) {
	if !known {
		return e.askLanguage(ctx, s)
	}
	return e.reply(s, e.prompt(s.Language, "prompt.welcome", KeyboardMenu)), nil
}

func (e *Engine) askLanguage(ctx context.Context, s *model.Session) (Result, error) {
	s.Step = model.StepAwaitingLanguage
	return e.advance(ctx, s, "prompt.choose_language", KeyboardLanguage)
}

// advance сохраняет изменённую сессию и возвращает подсказку следующего шага.
func (e *Engine) advance(ctx context.Context, s *model.Session, key string, kb Keyboard, args ...any) (Result, error) {
	if err := e.save(ctx, s); err != nil {
		return e.failure(s.Language, s.Step), err
	}
	return e.reply(s, e.prompt(s.Language, key, kb, args...)), nil
}

func (e *Engine) save(ctx context.Context, s *model.Session) error {
	s.UpdatedAt = e.opts.Now().UTC()
	if err := e.deps.Sessions.Save(ctx, s); err != nil {
		e.logger.Error("Ошибка сохранения сессии",
			slog.Int64("user_id", s.UserID),
			slog.String("step", string(s.Step)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("сохранение сессии: %w", err)
	}
	return nil
}

// clear удаляет сессию из хранилища и сбрасывает её в Idle.
func (e *Engine) clear(ctx context.Context, s *model.Session) error {
	if err := e.deps.Sessions.Delete(ctx, s.UserID); err != nil {
		e.logger.Error("Ошибка удаления сессии",
			slog.Int64("user_id", s.UserID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("удаление сессии: %w", err)
	}
	s.Reset()
	return nil
}

func (e *Engine) rejected(s *model.Session, field string) {
	e.logger.Debug("Ввод отклонён",
		slog.Int64("user_id", s.UserID),
		slog.String("step", string(s.Step)),
		slog.String("field", field),
	)
}

func (e *Engine) prompt(lang model.Language, key string, kb Keyboard, args ...any) Prompt {
	return Prompt{
		Key:      key,
		Text:     e.deps.Translator.Translatef(string(lang), key, args...),
		Keyboard: kb,
	}
}

func (e *Engine) reply(s *model.Session, p Prompt) Result {
	return Result{Prompt: p, Step: s.Step, Language: s.Language}
}

// failure — общий ответ при инфраструктурной ошибке.
func (e *Engine) failure(lang model.Language, step model.Step) Result {
	kb := keyboardFor(step)
	return Result{Prompt: e.prompt(lang, "prompt.error", kb), Step: step, Language: lang}
}

// keyboardFor — клавиатура, соответствующая шагу.
func keyboardFor(step model.Step) Keyboard {
	switch step {
	case model.StepAwaitingLanguage:
		return KeyboardLanguage
	case model.StepAwaitingName, model.StepAwaitingPhone, model.StepAwaitingMessage:
		return KeyboardNavigation
	case model.StepAwaitingAttachChoice:
		return KeyboardYesNo
	case model.StepAwaitingAttachments:
		return KeyboardAttachments
	default:
		return KeyboardMenu
	}
}

// textInput извлекает текст для полей формы.
// Надписи кнопок меню на шагах ввода трактуются как обычный текст.
func textInput(ev Event) (string, bool) {
	switch ev.Intent {
	case IntentText, IntentYes, IntentNo, IntentContacts, IntentFAQ, IntentAdminLink,
		IntentStartRequest, IntentChangeLanguage, IntentChooseLanguage:
		if strings.TrimSpace(ev.Text) == "" {
			return "", false
		}
		return ev.Text, true
	default:
		return "", false
	}
}
