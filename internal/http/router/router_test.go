package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "salescrm_backend/internal/http"
	"salescrm_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type testConfig struct{}

func (testConfig) GetHTTPAddr() string            { return ":0" }
func (testConfig) GetCORSAllowAll() bool          { return false }
func (testConfig) GetCORSOrigins() []string       { return []string{"http://localhost:3000"} }
func (testConfig) GetCORSAllowCreds() bool        { return true }
func (testConfig) GetRateLimitPerSecond() float64 { return 100 }
func (testConfig) GetRateLimitBurst() int         { return 100 }
func (testConfig) GetJWTAccessSecret() string     { return "test-secret" }

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }

func (echoModule) RegisterRoutes(rc *apphttp.RouterContext) {
	rc.Protected.GET("/echo", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newTestEngine(health apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  testConfig{},
		Logger:  logger.New("test"),
		Health:  health,
		Modules: []apphttp.Module{echoModule{}},
	})
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	engine := newTestEngine(pingFunc(func(context.Context) error { return nil }))
	if rec := get(engine, "/api/health"); rec.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rec.Code)
	}
	if rec := get(engine, "/api/ready"); rec.Code != http.StatusOK {
		t.Fatalf("expected ready 200, got %d", rec.Code)
	}

	down := newTestEngine(pingFunc(func(context.Context) error { return errors.New("db down") }))
	if rec := get(down, "/api/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected ready 503, got %d", rec.Code)
	}
}

func TestModuleRoutesRequireAuth(t *testing.T) {
	engine := newTestEngine(nil)
	rec := get(engine, "/api/v1/echo")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers on every response")
	}
}
