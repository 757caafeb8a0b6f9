// Пакет i18n — локализация ответов бота и страницы администратора.
// Каталоги — плоские JSON-файлы (ключ → перевод) для en и ru.
// Для бота язык задаётся явно (предпочтение пользователя),
// для HTTP — определяется middleware: cookie "lang" → Accept-Language → "en".
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// DefaultLang — язык по умолчанию и fallback для отсутствующих ключей.
const DefaultLang = "en"

// ButtonPrefix — префикс ключей надписей на кнопках клавиатуры.
const ButtonPrefix = "button."

var (
	// SupportedLanguages — список поддерживаемых тегов языков.
	SupportedLanguages = []language.Tag{
		language.English,
		language.Russian,
	}

	matcher = language.NewMatcher(SupportedLanguages)
)

type contextKey string

const contextKeyLang contextKey = "i18n_lang"

// Bundle — хранилище переводов для всех языков.
// Загружается один раз при старте приложения.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string // lang → key → translation
	// labels — обратный индекс надписей кнопок: нормализованный текст → ключ.
	labels map[string]labelRef
	logger *slog.Logger
}

// labelRef — ключ кнопки и язык каталога, в котором найдена надпись.
type labelRef struct {
	key  string
	lang string
}

// NewBundle создаёт пустой Bundle.
func NewBundle(logger *slog.Logger) *Bundle {
	return &Bundle{
		catalogs: make(map[string]map[string]string),
		labels:   make(map[string]labelRef),
		logger:   logger,
	}
}

// LoadMessages загружает JSON-каталог переводов для указанного языка.
// JSON формат: {"key": "translation", ...} (плоский).
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogs[lang] = messages
	for key, text := range messages {
		if strings.HasPrefix(key, ButtonPrefix) {
			b.labels[normalizeLabel(text)] = labelRef{key: key, lang: lang}
		}
	}

	if b.logger != nil {
		b.logger.Info("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}
	return nil
}

// Translate возвращает перевод по ключу для указанного языка.
// Если ключ не найден — fallback на английский, затем ключ как есть.
func (b *Bundle) Translate(lang, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if catalog, ok := b.catalogs[lang]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}

	if lang != DefaultLang {
		if catalog, ok := b.catalogs[DefaultLang]; ok {
			if msg, ok := catalog[key]; ok {
				return msg
			}
		}
	}

	return key
}

// Translatef возвращает перевод по ключу с подстановкой аргументов.
// Формат-строка загружается из JSON-каталога во время выполнения,
// поэтому go vet не может проверить соответствие аргументов.
func (b *Bundle) Translatef(lang, key string, args ...any) string {
	template := b.Translate(lang, key)
	if len(args) == 0 {
		return template
	}
	return formatFunc(template, args...)
}

// LookupLabel ищет ключ кнопки по её надписи на любом из загруженных языков.
// Возвращает ключ (с префиксом "button."), язык каталога и признак успеха.
func (b *Bundle) LookupLabel(text string) (key, lang string, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ref, ok := b.labels[normalizeLabel(text)]
	if !ok {
		return "", "", false
	}
	return ref.key, ref.lang, true
}

// normalizeLabel приводит надпись к виду для сравнения.
func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// --- Глобальный Bundle (singleton для шаблонов страницы) ---

var (
	globalBundle *Bundle
	globalOnce   sync.Once
)

// Init инициализирует глобальный Bundle. Вызывается один раз при старте.
func Init(logger *slog.Logger) *Bundle {
	globalOnce.Do(func() {
		globalBundle = NewBundle(logger)
	})
	return globalBundle
}

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKeyLang, lang)
}

// LangFromContext извлекает язык из контекста. Default: "en".
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKeyLang).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

// T возвращает перевод по ключу, используя язык из контекста.
func T(ctx context.Context, key string) string {
	if globalBundle == nil {
		return key
	}
	return globalBundle.Translate(LangFromContext(ctx), key)
}

// formatFunc — fmt.Sprintf через переменную: формат-строки приходят из каталогов.
//
//nolint:govet // обход go vet printf-анализатора
var formatFunc = fmt.Sprintf

// MatchLanguage определяет лучший язык из Accept-Language заголовка.
// Возвращает "en" или "ru".
func MatchLanguage(acceptLanguage string) string {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	base, _ := tag.Base()

	if strings.HasPrefix(base.String(), "ru") {
		return "ru"
	}
	return DefaultLang
}
