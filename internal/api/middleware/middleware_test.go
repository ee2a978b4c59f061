package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	id, _ := GetUserID(c)
	role, _ := GetUserRole(c)
	c.JSON(http.StatusOK, gin.H{"user_id": id, "role": role})
}

func TestGatewayAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", GatewayAuth(), whoami)

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{"missing user", nil, http.StatusUnauthorized, ""},
		{"user with role", map[string]string{"X-User-ID": "u1", "X-User-Role": "admin"}, http.StatusOK, `{"user_id":"u1","role":"admin"}`},
		{"default role", map[string]string{"X-User-ID": "u2"}, http.StatusOK, `{"user_id":"u2","role":"user"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestNoAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", NoAuth(), whoami)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"anonymous","role":"admin"}`, w.Body.String())
}

type apiCall struct {
	endpoint string
	status   int
}

type recordingRecorder struct {
	mu    sync.Mutex
	calls []apiCall
}

func (r *recordingRecorder) RecordAPIRequest(_ context.Context, endpoint string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, apiCall{endpoint, status})
}
func (r *recordingRecorder) RecordFit(context.Context, string, int, time.Duration, bool) {}
func (r *recordingRecorder) RecordGeneration(context.Context, string, int, int, time.Duration, bool) {
}

func TestRequestTracking(t *testing.T) {
	rec := &recordingRecorder{}
	r := gin.New()
	r.Use(RequestTracking(rec))
	r.GET("/chains/:id", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chains/abc", nil))

	requestID := w.Header().Get("X-Request-ID")
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Body.String())

	// a valid incoming id is kept
	const incoming = "6f1c1a4e-1d8c-4a5e-9a3b-2c4e5f607182"
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chains/abc", nil)
	req.Header.Set("X-Request-ID", incoming)
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, []apiCall{
		{"/chains/:id", http.StatusOK},
		{"/chains/:id", http.StatusOK},
		{"unmatched", http.StatusNotFound},
	}, rec.calls)
}

func TestRecoverWithSentry(t *testing.T) {
	r := gin.New()
	r.Use(RecoverWithSentry(), RequestTracking(nil))
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
