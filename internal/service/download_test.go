package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/legaldesk/internal/domain/model"
	"github.com/bigkaa/legaldesk/internal/repository"
)

// mockFinder — мок DocumentFinder.
type mockFinder struct {
	calls  int
	findFn func(fileRef string) (*model.Document, error)
}

func (m *mockFinder) FindDocument(_ context.Context, fileRef string) (*model.Document, error) {
	m.calls++
	return m.findFn(fileRef)
}

// mockFetcher — мок FileFetcher.
type mockFetcher struct {
	fetchFn func(fileRef string) (*RemoteFile, error)
}

func (m *mockFetcher) Fetch(_ context.Context, fileRef string) (*RemoteFile, error) {
	return m.fetchFn(fileRef)
}

func knownDocument(fileRef string) (*model.Document, error) {
	if fileRef == "known" {
		return &model.Document{FileRef: "known", DisplayName: "договор аренды.pdf"}, nil
	}
	return nil, repository.ErrNotFound
}

func bodyFetcher(content string) *mockFetcher {
	return &mockFetcher{fetchFn: func(string) (*RemoteFile, error) {
		return &RemoteFile{Body: io.NopCloser(strings.NewReader(content)), Size: int64(len(content))}, nil
	}}
}

func TestDownload_Success(t *testing.T) {
	finder := &mockFinder{findFn: knownDocument}
	ds := NewDownloadService(finder, NewDocumentCache(10, time.Minute), bodyFetcher("PDF-DATA"), testLogger())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		if err := ds.Download(context.Background(), rec, "known"); err != nil {
			t.Fatalf("Download() ошибка: %v", err)
		}
		if rec.Code != http.StatusOK || rec.Body.String() != "PDF-DATA" {
			t.Errorf("код %d, тело %q", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("Content-Type = %q", ct)
		}
		if cl := rec.Header().Get("Content-Length"); cl != "8" {
			t.Errorf("Content-Length = %q", cl)
		}
		cd := rec.Header().Get("Content-Disposition")
		if !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, "filename*=utf-8''") {
			t.Errorf("Content-Disposition = %q", cd)
		}
	}

	if finder.calls != 1 {
		t.Errorf("обращений к БД %d, ожидалось 1 (второй раз из кэша)", finder.calls)
	}
}

func TestDownload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		findErr error
		fetch   func(string) (*RemoteFile, error)
		wantErr error
	}{
		{
			name:    "неизвестная ссылка",
			ref:     "missing",
			wantErr: ErrFileNotFound,
		},
		{
			name: "файл удалён из Telegram",
			ref:  "known",
			fetch: func(string) (*RemoteFile, error) {
				return nil, fmt.Errorf("%w: telegram 400", ErrFileNotFound)
			},
			wantErr: ErrFileNotFound,
		},
		{
			name: "Telegram недоступен",
			ref:  "known",
			fetch: func(string) (*RemoteFile, error) {
				return nil, errors.New("connection refused")
			},
			wantErr: ErrFileUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &mockFetcher{fetchFn: tt.fetch}
			if fetcher.fetchFn == nil {
				fetcher = bodyFetcher("x")
			}
			ds := NewDownloadService(&mockFinder{findFn: knownDocument}, NewDocumentCache(10, time.Minute), fetcher, testLogger())

			rec := httptest.NewRecorder()
			err := ds.Download(context.Background(), rec, tt.ref)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ожидалась %v, получено %v", tt.wantErr, err)
			}
			if rec.Body.Len() != 0 {
				t.Error("при ошибке тело ответа не пишется")
			}
		})
	}
}

func TestDownload_RepositoryError(t *testing.T) {
	finder := &mockFinder{findFn: func(string) (*model.Document, error) { return nil, errors.New("db down") }}
	ds := NewDownloadService(finder, NewDocumentCache(10, time.Minute), bodyFetcher("x"), testLogger())

	_, err := ds.Open(context.Background(), "known")
	if err == nil || errors.Is(err, ErrFileNotFound) || errors.Is(err, ErrFileUnavailable) {
		t.Errorf("ожидалась внутренняя ошибка, получено %v", err)
	}
}

func TestDownload_ContentTypeFallback(t *testing.T) {
	finder := &mockFinder{findFn: func(string) (*model.Document, error) {
		return &model.Document{FileRef: "r", DisplayName: ""}, nil
	}}
	fetcher := &mockFetcher{fetchFn: func(string) (*RemoteFile, error) {
		return &RemoteFile{Body: io.NopCloser(strings.NewReader("x")), Size: -1}, nil
	}}
	ds := NewDownloadService(finder, NewDocumentCache(10, time.Minute), fetcher, testLogger())

	rec := httptest.NewRecorder()
	if err := ds.Download(context.Background(), rec, "r"); err != nil {
		t.Fatalf("Download() ошибка: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("Content-Length") != "" {
		t.Error("Content-Length не должен выставляться для неизвестного размера")
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=file" {
		t.Errorf("Content-Disposition = %q", cd)
	}
}
