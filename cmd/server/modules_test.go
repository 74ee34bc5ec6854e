package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/patrol/internal/config"
	"github.com/JaimeStill/patrol/internal/infrastructure"
	"github.com/JaimeStill/patrol/pkg/database"
)

func testInfra(t *testing.T) *infrastructure.Infrastructure {
	t.Helper()
	infra, err := infrastructure.New(&config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "patrol",
			User:            "patrol",
			SSLMode:         "disable",
			ConnMaxLifetime: "15m",
			ConnTimeout:     "1s",
		},
	})
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	return infra
}

func TestBuildRouter(t *testing.T) {
	router := buildRouter(testInfra(t))

	tests := []struct {
		path     string
		want     int
		contains string
	}{
		{"/healthz", http.StatusOK, `"ok"`},
		{"/readyz", http.StatusServiceUnavailable, `"not ready"`},
		{"/metrics", http.StatusOK, "go_goroutines"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.contains)
			}
		})
	}
}
