package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/utils"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(ContextUserID), "role": c.GetString(ContextRole)})
	})
	r.GET("/ping", handlers...)
	return r
}

func do(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, role, typ string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.GenerateToken(testSecret, "64b000000000000000000001", role, typ, ttl)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret}
	r := newEngine(AuthMiddleware(cfg))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"refresh token rejected", "Bearer " + token(t, models.RoleUser, utils.TokenRefresh, time.Hour), http.StatusUnauthorized},
		{"expired", "Bearer " + token(t, models.RoleUser, utils.TokenAccess, -time.Minute), http.StatusUnauthorized},
		{"valid", "Bearer " + token(t, models.RoleUser, utils.TokenAccess, time.Hour), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, "Authorization", tt.header)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"user_id":"64b000000000000000000001"`)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret}
	r := newEngine(OptionalAuth(cfg))

	w := do(r, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)

	w = do(r, "Authorization", "Bearer broken")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)

	w = do(r, "Authorization", "Bearer "+token(t, models.RoleAdmin, utils.TokenAccess, time.Hour))
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
}

func TestRequireAdmin(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret}
	r := newEngine(AuthMiddleware(cfg), RequireAdmin())

	w := do(r, "Authorization", "Bearer "+token(t, models.RoleUser, utils.TokenAccess, time.Hour))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, "Authorization", "Bearer "+token(t, models.RoleAdmin, utils.TokenAccess, time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, quietLogger())
	r := newEngine(rl.Handler())

	assert.Equal(t, http.StatusOK, do(r, "", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "", "").Code)

	w := do(r, "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	other := httptest.NewRecorder()
	r.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, quietLogger())
	rl.getLimiter("a")
	rl.getLimiter("b")
	rl.limiters["a"].lastSeen = time.Now().Add(-time.Hour)

	assert.Equal(t, 1, rl.Cleanup(time.Minute))
	assert.Len(t, rl.limiters, 1)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := newEngine(RequestLogger(quietLogger()))

	w := do(r, "", "")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	w = do(r, RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestMetrics_PassesThrough(t *testing.T) {
	r := newEngine(Metrics())
	assert.Equal(t, http.StatusOK, do(r, "", "").Code)
}
