package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opticash/opticash-api/internal/config"
	"github.com/opticash/opticash-api/internal/domain/transfer"
	"github.com/opticash/opticash-api/internal/domain/wallet"
	"github.com/opticash/opticash-api/internal/pkg/email"
)

func TestNewRouter_MountsRoutes(t *testing.T) {
	denyAll := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}

	root := newRouter([]string{"http://localhost:3000"}, denyAll,
		transfer.NewHandler(nil, false),
		wallet.NewHandler(nil),
	)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"ping", http.MethodGet, "/api/v1/ping", http.StatusOK},
		{"initiate behind auth", http.MethodPost, "/api/v1/transactions/initiate", http.StatusUnauthorized},
		{"complete behind auth", http.MethodPost, "/api/v1/transactions/complete", http.StatusUnauthorized},
		{"history behind auth", http.MethodGet, "/api/v1/transactions/history", http.StatusUnauthorized},
		{"wallet behind auth", http.MethodGet, "/api/v1/wallet", http.StatusUnauthorized},
		{"unknown", http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			root.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestNewMailTransport(t *testing.T) {
	t.Run("log by default", func(t *testing.T) {
		transport, closeFn, err := newMailTransport(&config.Config{MailTransport: ""})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closeFn()
		if _, ok := transport.(email.LogTransport); !ok {
			t.Fatalf("expected LogTransport, got %T", transport)
		}
	})

	t.Run("sendgrid", func(t *testing.T) {
		transport, closeFn, err := newMailTransport(&config.Config{MailTransport: "sendgrid", SendGridAPIKey: "SG.key"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closeFn()
		if _, ok := transport.(*email.SendGridClient); !ok {
			t.Fatalf("expected *SendGridClient, got %T", transport)
		}
	})

	t.Run("sendgrid without key", func(t *testing.T) {
		_, _, err := newMailTransport(&config.Config{MailTransport: "sendgrid"})
		if err == nil || !strings.Contains(err.Error(), "SENDGRID_API_KEY") {
			t.Fatalf("expected missing key error, got %v", err)
		}
	})

	t.Run("amqp with bad url", func(t *testing.T) {
		_, _, err := newMailTransport(&config.Config{MailTransport: "amqp", AMQPURL: "http://broker"})
		if err == nil {
			t.Fatal("expected error for non-amqp scheme")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, _, err := newMailTransport(&config.Config{MailTransport: "smtp"}); err == nil {
			t.Fatal("expected error for unknown transport")
		}
	})
}
