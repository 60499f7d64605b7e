package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sjperalta/obrafin-api/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func sign(t *testing.T, claims Claims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func validClaims(operatorID, role string) Claims {
	return Claims{
		OperatorID: operatorID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.Use(Auth(secret))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator": GetOperatorID(c), "role": GetRole(c)})
	})
	r.POST("/approve", RequireRole(RoleApprover), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuth(t *testing.T) {
	expired := validClaims("op-1", RoleFinance)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	subjectOnly := validClaims("", RoleViewer)
	subjectOnly.Subject = "op-sub"

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantBody: "Authorization header is required"},
		{name: "bad scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantBody: "Invalid authorization header format"},
		{name: "wrong key", header: "Bearer " + sign(t, validClaims("op-1", RoleFinance), "other"), wantStatus: http.StatusUnauthorized, wantBody: "invalid token"},
		{name: "expired", header: "Bearer " + sign(t, expired, secret), wantStatus: http.StatusUnauthorized, wantBody: "token has expired"},
		{name: "no operator", header: "Bearer " + sign(t, validClaims("", RoleFinance), secret), wantStatus: http.StatusUnauthorized, wantBody: "token carries no operator"},
		{name: "valid", header: "Bearer " + sign(t, validClaims("op-1", RoleFinance), secret), wantStatus: http.StatusOK, wantBody: `"operator":"op-1"`},
		{name: "subject fallback", header: "Bearer " + sign(t, subjectOnly, secret), wantStatus: http.StatusOK, wantBody: `"operator":"op-sub"`},
	}

	r := authRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := authRouter()

	for role, want := range map[string]int{
		RoleApprover: http.StatusNoContent,
		RoleAdmin:    http.StatusNoContent,
		RoleFinance:  http.StatusForbidden,
		RoleViewer:   http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/approve", nil)
		req.Header.Set("Authorization", "Bearer "+sign(t, validClaims("op-1", role), secret))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}

func TestRequestContext(t *testing.T) {
	r := gin.New()
	r.Use(RequestContext())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestID(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRateLimit(t *testing.T) {
	l, err := NewRateLimiter("2-M")
	require.NoError(t, err)

	r := gin.New()
	r.Use(RateLimit(l))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	_, err = NewRateLimiter("lots")
	assert.Error(t, err)
}
