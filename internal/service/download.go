// download.go — выдача вложений заявок администратору.
// Pipeline: Document (кэш/БД) → файловый сервис Telegram → потоковая передача.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/legaldesk/internal/domain/model"
	"github.com/bigkaa/legaldesk/internal/repository"
)

// Prometheus-метрики download.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ld_downloads_total",
		Help: "Запросы на скачивание вложений (по статусу).",
	}, []string{"status"})

	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ld_download_duration_seconds",
		Help:    "Длительность скачивания вложения.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ld_download_bytes_total",
		Help: "Переданные при скачивании байты.",
	})
)

// RemoteFile — содержимое файла из внешнего файлового сервиса.
type RemoteFile struct {
	Body io.ReadCloser
	// Size — размер в байтах, -1 если неизвестен.
	Size        int64
	ContentType string
}

// FileFetcher разрешает файловую ссылку в поток байт.
// Неизвестная ссылка — ошибка, обёрнутая в ErrFileNotFound.
type FileFetcher interface {
	Fetch(ctx context.Context, fileRef string) (*RemoteFile, error)
}

// DocumentFinder — поиск вложения по файловой ссылке.
type DocumentFinder interface {
	FindDocument(ctx context.Context, fileRef string) (*model.Document, error)
}

// FileStream — открытый поток вложения с именем для Content-Disposition.
type FileStream struct {
	*RemoteFile
	DisplayName string
}

// DownloadService — сервис скачивания вложений.
type DownloadService struct {
	documents DocumentFinder
	cache     *DocumentCache
	fetcher   FileFetcher
	logger    *slog.Logger
}

// NewDownloadService создаёт сервис скачивания.
func NewDownloadService(documents DocumentFinder, cache *DocumentCache, fetcher FileFetcher, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		documents: documents,
		cache:     cache,
		fetcher:   fetcher,
		logger:    logger.With(slog.String("component", "download_service")),
	}
}

// Open находит вложение и открывает поток его содержимого.
// Возвращает ErrFileNotFound для неизвестной ссылки и ErrFileUnavailable
// при сбое файлового сервиса. Вызывающий закрывает Body.
func (ds *DownloadService) Open(ctx context.Context, fileRef string) (*FileStream, error) {
	doc, err := ds.document(ctx, fileRef)
	if err != nil {
		return nil, err
	}

	remote, err := ds.fetcher.Fetch(ctx, fileRef)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrFileUnavailable, err)
	}
	return &FileStream{RemoteFile: remote, DisplayName: doc.DisplayName}, nil
}

// Download передаёт вложение в ResponseWriter.
// Ошибки до начала передачи возвращаются вызывающему,
// ошибки во время передачи только логируются.
func (ds *DownloadService) Download(ctx context.Context, w http.ResponseWriter, fileRef string) error {
	start := time.Now()

	stream, err := ds.Open(ctx, fileRef)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileNotFound):
			downloadsTotal.WithLabelValues("not_found").Inc()
		case errors.Is(err, ErrFileUnavailable):
			downloadsTotal.WithLabelValues("unavailable").Inc()
			ds.logger.Warn("Файловый сервис недоступен",
				slog.String("file_ref", fileRef),
				slog.String("error", err.Error()),
			)
		default:
			downloadsTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	defer stream.Body.Close()

	writeFileHeaders(w, stream)
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, stream.Body)
	if err != nil {
		ds.logger.Error("Ошибка передачи файла",
			slog.String("file_ref", fileRef),
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()),
		)
		downloadsTotal.WithLabelValues("stream_error").Inc()
		return nil
	}

	duration := time.Since(start)
	downloadsTotal.WithLabelValues("success").Inc()
	downloadDuration.Observe(duration.Seconds())
	downloadBytesTotal.Add(float64(written))

	ds.logger.Debug("Файл передан",
		slog.String("file_ref", fileRef),
		slog.Int64("bytes", written),
		slog.Duration("duration", duration),
	)
	return nil
}

// document получает вложение из кэша или БД.
func (ds *DownloadService) document(ctx context.Context, fileRef string) (*model.Document, error) {
	if doc, ok := ds.cache.Get(fileRef); ok {
		return doc, nil
	}

	doc, err := ds.documents.FindDocument(ctx, fileRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileRef)
		}
		return nil, fmt.Errorf("получение вложения: %w", err)
	}

	ds.cache.Set(fileRef, doc)
	return doc, nil
}

// writeFileHeaders выставляет заголовки ответа по метаданным вложения.
func writeFileHeaders(w http.ResponseWriter, stream *FileStream) {
	contentType := stream.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(stream.DisplayName))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	if stream.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(stream.Size, 10))
	}

	name := stream.DisplayName
	if name == "" {
		name = "file"
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
}
