package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bigkaa/legaldesk/internal/service"
)

// FileService получает содержимое файлов, присланных боту.
// Реализует service.FileFetcher.
type FileService struct {
	api          API
	token        string
	fileEndpoint string
	client       *http.Client
	logger       *slog.Logger
}

// NewFileService создаёт FileService.
// fileEndpoint — шаблон вида https://api.telegram.org/file/bot%s/%s.
func NewFileService(api API, token, fileEndpoint string, timeout time.Duration, logger *slog.Logger) *FileService {
	if fileEndpoint == "" {
		fileEndpoint = tgbotapi.FileEndpoint
	}
	return &FileService{
		api:          api,
		token:        token,
		fileEndpoint: fileEndpoint,
		client:       &http.Client{Timeout: timeout},
		logger:       logger.With(slog.String("component", "telegram_files")),
	}
}

// Fetch разрешает ссылку на файл через getFile и открывает поток с содержимым.
// Вызывающий обязан закрыть Body.
func (fs *FileService) Fetch(ctx context.Context, fileRef string) (*service.RemoteFile, error) {
	file, err := call(ctx, func() (tgbotapi.File, error) {
		return fs.api.GetFile(tgbotapi.FileConfig{FileID: fileRef})
	})
	if err != nil {
		if isBadRequest(err) {
			return nil, fmt.Errorf("getFile %s: %w: %v", fileRef, service.ErrFileNotFound, err)
		}
		return nil, fmt.Errorf("getFile %s: %w", fileRef, err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("getFile %s: пустой путь к файлу", fileRef)
	}

	link := fmt.Sprintf(fs.fileEndpoint, fs.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса файла: %w", err)
	}

	resp, err := fs.client.Do(req)
	if err != nil {
		// Ссылка содержит токен бота, поэтому в ошибку попадает только путь.
		return nil, fmt.Errorf("скачивание файла %s: %w", file.FilePath, redactURLError(err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("скачивание файла %s: %w", file.FilePath, service.ErrFileNotFound)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("скачивание файла %s: статус %d", file.FilePath, resp.StatusCode)
	}

	fs.logger.Debug("Файл получен из Telegram",
		slog.String("file_path", file.FilePath),
		slog.Int64("size", resp.ContentLength),
	)

	return &service.RemoteFile{
		Body:        resp.Body,
		Size:        resp.ContentLength,
		ContentType: contentType(resp.Header.Get("Content-Type")),
	}, nil
}

// contentType отбрасывает обобщённый тип: Telegram отдаёт почти все файлы
// как application/octet-stream, и тогда тип выводится из имени файла.
func contentType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "application/octet-stream" {
		return ""
	}
	return header
}

// isBadRequest — ответ Bot API с кодом 400 (неизвестный или просроченный file_id).
func isBadRequest(err error) bool {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) {
		return ptr.Code == http.StatusBadRequest
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return val.Code == http.StatusBadRequest
	}
	return false
}

// redactURLError убирает URL (с токеном) из ошибки HTTP-клиента.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
