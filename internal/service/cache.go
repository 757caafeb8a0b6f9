// cache.go — LRU-кэши с TTL поверх hashicorp/golang-lru/v2/expirable:
// вложения по файловой ссылке (скачивание из админки)
// и языковые предпочтения (каждое событие диалога).
package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/legaldesk/internal/domain/model"
)

// Prometheus-метрики кэшей.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ld_cache_hits_total",
		Help: "Попадания в LRU-кэш (по имени кэша).",
	}, []string{"cache"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ld_cache_misses_total",
		Help: "Промахи LRU-кэша (по имени кэша).",
	}, []string{"cache"})
)

// DocumentCache — кэш вложений по файловой ссылке.
// Вложения неизменяемы после фиксации, поэтому инвалидация не нужна.
type DocumentCache struct {
	cache *expirable.LRU[string, *model.Document]
}

// NewDocumentCache создаёт кэш с указанным размером и TTL.
func NewDocumentCache(maxSize int, ttl time.Duration) *DocumentCache {
	return &DocumentCache{cache: expirable.NewLRU[string, *model.Document](maxSize, nil, ttl)}
}

// Get возвращает вложение из кэша.
func (c *DocumentCache) Get(fileRef string) (*model.Document, bool) {
	doc, ok := c.cache.Get(fileRef)
	if ok {
		cacheHitsTotal.WithLabelValues("documents").Inc()
		return doc, true
	}
	cacheMissesTotal.WithLabelValues("documents").Inc()
	return nil, false
}

// Set добавляет вложение в кэш.
func (c *DocumentCache) Set(fileRef string, doc *model.Document) {
	c.cache.Add(fileRef, doc)
}

// LanguageStore — долговременное хранилище языковых предпочтений.
type LanguageStore interface {
	GetLanguage(ctx context.Context, userID int64) (model.Language, error)
	SetLanguage(ctx context.Context, userID int64, lang model.Language) error
}

// CachedLanguages — кэш языковых предпочтений поверх хранилища.
// Чтение — read-through, запись — write-through.
type CachedLanguages struct {
	store LanguageStore
	cache *expirable.LRU[int64, model.Language]
}

// NewCachedLanguages создаёт кэширующую обёртку.
func NewCachedLanguages(store LanguageStore, maxSize int, ttl time.Duration) *CachedLanguages {
	return &CachedLanguages{
		store: store,
		cache: expirable.NewLRU[int64, model.Language](maxSize, nil, ttl),
	}
}

// GetLanguage возвращает язык пользователя ("" — выбора не было).
// Отсутствие выбора не кэшируется.
func (c *CachedLanguages) GetLanguage(ctx context.Context, userID int64) (model.Language, error) {
	if lang, ok := c.cache.Get(userID); ok {
		cacheHitsTotal.WithLabelValues("languages").Inc()
		return lang, nil
	}
	cacheMissesTotal.WithLabelValues("languages").Inc()

	lang, err := c.store.GetLanguage(ctx, userID)
	if err != nil {
		return "", err
	}
	if lang != "" {
		c.cache.Add(userID, lang)
	}
	return lang, nil
}

// SetLanguage сохраняет язык и обновляет кэш только после успешной записи.
func (c *CachedLanguages) SetLanguage(ctx context.Context, userID int64, lang model.Language) error {
	if err := c.store.SetLanguage(ctx, userID, lang); err != nil {
		c.cache.Remove(userID)
		return err
	}
	c.cache.Add(userID, lang)
	return nil
}
