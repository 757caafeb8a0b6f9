package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewDephealthService_TelegramOnly(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ds, err := NewDephealthServiceWithRegisterer(DephealthConfig{
		ServiceID:     "legaldesk-test-1",
		Group:         "legaldesk",
		TelegramURL:   mockServer.URL,
		CheckInterval: 5 * time.Second,
	}, logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}
	if ds == nil {
		t.Fatal("DephealthService nil")
	}
}

func TestDephealthService_StartStop(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ds, err := NewDephealthServiceWithRegisterer(DephealthConfig{
		ServiceID:     "legaldesk-test-2",
		Group:         "legaldesk",
		TelegramURL:   mockServer.URL,
		CheckInterval: time.Second,
		IsEntry:       true,
	}, logger, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Ошибка создания DephealthService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ds.Start(ctx); err != nil {
		t.Fatalf("Ошибка запуска: %v", err)
	}

	// Даём время на первую проверку (интервал 1s + запас)
	time.Sleep(3 * time.Second)

	found := false
	for key, val := range ds.Health() {
		if strings.HasPrefix(key, "telegram-bot-api:") {
			found = true
			if !val {
				t.Errorf("telegram-bot-api health = false для ключа %q", key)
			}
		}
	}
	if !found {
		t.Errorf("Нет записи telegram-bot-api в Health(): %v", ds.Health())
	}

	ds.Stop()
}
