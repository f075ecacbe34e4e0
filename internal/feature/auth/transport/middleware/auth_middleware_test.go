package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snote_backend/internal/feature/auth/domain"
)

// TestMain はテスト実行前にGinをテストモードに設定します。
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// mockValidator is a func-field SessionValidator.
type mockValidator struct {
	ValidateFunc func(ctx context.Context, token string) (string, error)
	calls        int
}

func (m *mockValidator) ValidateRequest(ctx context.Context, token string) (string, error) {
	m.calls++
	return m.ValidateFunc(ctx, token)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		authHeader string
		wantToken  string
		wantOK     bool
	}{
		{name: "valid bearer", authHeader: "Bearer abc123", wantToken: "abc123", wantOK: true},
		{name: "no header", authHeader: ""},
		{name: "basic auth", authHeader: "Basic dXNlcjpwYXNz"},
		{name: "bearer lowercase", authHeader: "bearer token123"},
		{name: "no space after Bearer", authHeader: "Bearertoken123"},
		{name: "empty token", authHeader: "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				c.Request.Header.Set("Authorization", tt.authHeader)
			}

			token, ok := BearerToken(c)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		authHeader   string
		validate     func(ctx context.Context, token string) (string, error)
		wantStatus   int
		wantError    string
		wantUserID   string
		wantValidate bool
	}{
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
			wantError:  "missing bearer token",
		},
		{
			name:       "wrong scheme",
			authHeader: "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
			wantError:  "missing bearer token",
		},
		{
			name:       "invalid session",
			authHeader: "Bearer expired",
			validate: func(context.Context, string) (string, error) {
				return "", domain.ErrUnauthenticated
			},
			wantStatus:   http.StatusUnauthorized,
			wantError:    "invalid token",
			wantValidate: true,
		},
		{
			name:       "store unavailable fails closed",
			authHeader: "Bearer whatever",
			validate: func(context.Context, string) (string, error) {
				return "", fmt.Errorf("%w: lookup session: %w", domain.ErrStorageUnavailable, errors.New("i/o timeout"))
			},
			wantStatus:   http.StatusServiceUnavailable,
			wantError:    "service unavailable",
			wantValidate: true,
		},
		{
			name:       "active session",
			authHeader: "Bearer good",
			validate: func(_ context.Context, token string) (string, error) {
				if token != "good" {
					return "", domain.ErrUnauthenticated
				}
				return "user-42", nil
			},
			wantStatus:   http.StatusOK,
			wantUserID:   "user-42",
			wantValidate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := &mockValidator{ValidateFunc: tt.validate}
			var gotUserID string
			r := gin.New()
			r.GET("/protected", AuthRequired(v), func(c *gin.Context) {
				gotUserID, _ = UserID(c)
				c.JSON(http.StatusOK, gin.H{"ok": true})
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantValidate, v.calls > 0)
			assert.Equal(t, tt.wantUserID, gotUserID)
			if tt.wantError != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.wantError, body["error"])
				assert.NotContains(t, w.Body.String(), "timeout")
			}
		})
	}
}

func TestUserID_NotSet(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	id, ok := UserID(c)

	assert.False(t, ok)
	assert.Empty(t, id)
}

type countingLimiter struct {
	mu      sync.Mutex
	allowed int
	seen    []string
}

func (l *countingLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, key)
	if l.allowed == 0 {
		return false
	}
	l.allowed--
	return true
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	l := &countingLimiter{allowed: 1}
	r := gin.New()
	r.POST("/auth/signin", RateLimit(l), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
		req.RemoteAddr = "192.0.2.7:4711"
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)

	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, w.Body.String())
	assert.Equal(t, []string{"192.0.2.7", "192.0.2.7"}, l.seen)
}

type recordingObserver struct {
	method, route string
	status        int
}

func (o *recordingObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	o.method, o.route, o.status = method, route, status
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/auth/session", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/session", nil))
	assert.Equal(t, "/auth/session", obs.route)
	assert.Equal(t, http.StatusTeapot, obs.status)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, "unmatched", obs.route)
	assert.Equal(t, http.StatusNotFound, obs.status)
}
