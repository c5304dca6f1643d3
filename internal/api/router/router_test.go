package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/api/handlers"
	"github.com/pratik-mahalle/ec2inventory/internal/api/middleware"
	"github.com/pratik-mahalle/ec2inventory/internal/auth"
	"github.com/pratik-mahalle/ec2inventory/internal/config"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/validator"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
	"github.com/pratik-mahalle/ec2inventory/internal/repository/postgres"
	"github.com/pratik-mahalle/ec2inventory/internal/services"
	"github.com/pratik-mahalle/ec2inventory/internal/testutil"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T, burst int) http.Handler {
	t.Helper()
	db := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.CleanupDB(db) })

	log := logger.Nop()
	cloud := testutil.NewFakeCloud()
	retry := providers.RetryPolicy{MaxTries: 1}
	accounts := postgres.NewAccountRepository(db, testutil.NewTestBox())
	state := postgres.NewSyncStateRepository(db)

	cfg := &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}},
		Auth:   config.AuthConfig{JWTSecret: testSecret},
	}
	h := &Handlers{
		Health: handlers.NewHealthHandler(db, log),
		Account: handlers.NewAccountHandler(
			services.NewAccountService(accounts, state, cloud.Factory(), retry, "us-east-1", log), log, validator.New()),
		Inventory: handlers.NewInventoryHandler(
			services.NewInventoryService(postgres.NewInventoryRepository(db), accounts, postgres.NewRegionRepository(db),
				postgres.NewPriceRepository(db), cloud.Factory(), retry, log), nil, log),
	}
	return New(cfg, log, middleware.NewRateLimiter(1, burst), h)
}

func TestRouter_Auth(t *testing.T) {
	r := newTestRouter(t, 100)

	valid, err := auth.MintToken(1, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}
	foreign, _ := auth.MintToken(1, "another-secret", time.Hour)
	expired, _ := auth.MintToken(1, testSecret, -time.Minute)

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
	}{
		{name: "health is public", path: "/health", wantStatus: http.StatusOK},
		{name: "metrics is public", path: "/metrics", wantStatus: http.StatusOK},
		{name: "missing token", path: "/api/v1/instances", wantStatus: http.StatusUnauthorized},
		{name: "foreign signature", path: "/api/v1/instances", token: foreign, wantStatus: http.StatusUnauthorized},
		{name: "expired token", path: "/api/v1/instances", token: expired, wantStatus: http.StatusUnauthorized},
		{name: "valid token", path: "/api/v1/instances", token: valid, wantStatus: http.StatusOK},
		{name: "accounts", path: "/api/v1/accounts", token: valid, wantStatus: http.StatusOK},
		{name: "unknown route", path: "/api/v1/nothing", token: valid, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("GET %s status = %v, want %v", tt.path, rr.Code, tt.wantStatus)
			}
			if rr.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("response has no request id")
			}
		})
	}
}

func TestRouter_RateLimit(t *testing.T) {
	r := newTestRouter(t, 2)
	token, err := auth.MintToken(7, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("MintToken() error = %v", err)
	}

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want the third request limited", codes)
	}
}
