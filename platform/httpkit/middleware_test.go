package httpkit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"salescrm_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testJWTConfig struct{}

func (testJWTConfig) GetJWTAccessSecret() string { return "test-secret" }

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newIdentityEngine() (*gin.Engine, *Identity) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	captured := new(Identity)
	engine.GET("/me", AuthRequired(testJWTConfig{}), func(c *gin.Context) {
		*captured = MustGetIdentity(c)
		c.Status(http.StatusNoContent)
	})
	return engine, captured
}

func TestAuthRequiredPopulatesIdentity(t *testing.T) {
	engine, captured := newIdentityEngine()
	userID := uuid.New()
	tenantID := uuid.New()

	token := signToken(t, jwt.MapClaims{
		"sub":       userID.String(),
		"tenant_id": tenantID.String(),
		"roles":     []string{"MANAGER"},
		"superuser": true,
		"type":      "access",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	id := *captured
	if id.UserID() != userID {
		t.Fatalf("expected user %s, got %s", userID, id.UserID())
	}
	if id.TenantID() == nil || *id.TenantID() != tenantID {
		t.Fatalf("expected tenant %s, got %v", tenantID, id.TenantID())
	}
	if !id.HasRole("MANAGER") || !id.IsSuperuser() {
		t.Fatalf("expected MANAGER superuser, got roles=%v superuser=%v", id.Roles(), id.IsSuperuser())
	}
}

func TestAuthRequiredRejectsRefreshToken(t *testing.T) {
	engine, _ := newIdentityEngine()
	token := signToken(t, jwt.MapClaims{
		"sub":  uuid.NewString(),
		"type": "refresh",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthRequiredRejectsMissingHeader(t *testing.T) {
	engine, _ := newIdentityEngine()

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAnyRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name      string
		roles     []string
		superuser bool
		want      int
	}{
		{"manager admitted", []string{"MANAGER"}, false, http.StatusOK},
		{"user rejected", []string{"USER"}, false, http.StatusForbidden},
		{"superuser admitted", nil, true, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := gin.New()
			engine.GET("/admin", func(c *gin.Context) {
				if tc.roles != nil {
					c.Set(ContextRolesKey, tc.roles)
				}
				if tc.superuser {
					c.Set(ContextSuperuserKey, true)
				}
				c.Next()
			}, RequireAnyRole("ADMIN", "MANAGER"), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestHandleErrorMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		want int
	}{
		{apperr.FieldValidation("locked", "feedback", "QUALIFICATION"), http.StatusBadRequest},
		{apperr.Forbidden("no"), http.StatusForbidden},
		{apperr.NotFound("gone"), http.StatusNotFound},
		{errors.New("driver: bad connection"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		HandleError(c, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}
