package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Conceptual-Machines/magda-markov/internal/config"
	"github.com/Conceptual-Machines/magda-markov/internal/middleware"
	"github.com/Conceptual-Machines/magda-markov/internal/services"
	"github.com/Conceptual-Machines/magda-markov/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:         "test",
		AuthMode:            config.AuthModeNone,
		DefaultVelocity:     110,
		MaxGenerationLength: 128,
		MaxStates:           128,
	}
}

func setupTestRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limits := services.Limits{MaxStates: cfg.MaxStates, MaxGenerationLength: cfg.MaxGenerationLength}
	chains := services.NewChainService(store.NewMemoryStore(), nil, limits)
	composer := services.NewComposer(chains, nil, limits, cfg.DefaultVelocity)
	return SetupRouter(cfg, Deps{Chains: chains, Composer: composer}, "test")
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupTestRouter(t, testConfig())

	w := do(t, r, http.MethodPost, "/api/v1/chains", map[string]any{"order": 2, "states": []int{60, 62}})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","store":{"name":"memory","status":"ok"}}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "memory", body["api"].(map[string]any)["store"])
	assert.Equal(t, map[string]any{
		"loaded": float64(1), "fitted": float64(0), "first_order": float64(0), "second_order": float64(1),
	}, body["chains"])
}

func TestChainLifecycle(t *testing.T) {
	r := setupTestRouter(t, testConfig())

	w := do(t, r, http.MethodPost, "/api/v1/chains", map[string]any{
		"name":      "melody",
		"order":     1,
		"kind":      "pitch",
		"sequences": [][]int{{60, 62, 64, 62, 60}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[services.ChainInfo](t, w)
	assert.True(t, created.Fitted)
	assert.Equal(t, []int{60, 62, 64}, created.States)
	base := "/api/v1/chains/" + created.ID

	w = do(t, r, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/chains", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["count"])

	w = do(t, r, http.MethodPost, base+"/generate", map[string]any{"start": []int{60}, "length": 3, "strategy": "argmax"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"chain_id":"`+created.ID+`","sequence":[60,62,60],"length":3}`, w.Body.String())

	w = do(t, r, http.MethodGet, base+"/table", nil)
	require.Equal(t, http.StatusOK, w.Code)
	table := decode[services.Table](t, w)
	assert.Equal(t, [][]float64{{0, 1, 0}, {0.5, 0, 0.5}, {0, 1, 0}}, table.Matrix)

	w = do(t, r, http.MethodPost, base+"/update", map[string]any{"sequences": [][]int{{60, 64}}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, base+"/fit", map[string]any{"sequences": [][]int{{64, 60}}, "weighting": "duration"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duration", decode[services.ChainInfo](t, w).Weighting)

	w = do(t, r, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChainErrors(t *testing.T) {
	r := setupTestRouter(t, testConfig())

	w := do(t, r, http.MethodPost, "/api/v1/chains", map[string]any{"order": 2, "states": []int{60, 62}})
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/api/v1/chains/" + decode[services.ChainInfo](t, w).ID

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{"bad json", http.MethodPost, "/api/v1/chains", "{", http.StatusBadRequest},
		{"empty state space", http.MethodPost, "/api/v1/chains", map[string]any{}, http.StatusBadRequest},
		{"bad order", http.MethodPost, "/api/v1/chains", map[string]any{"order": 3, "states": []int{1}}, http.StatusBadRequest},
		{"generate unfitted", http.MethodPost, base + "/generate", map[string]any{"length": 4}, http.StatusConflict},
		{"table unfitted", http.MethodGet, base + "/table", nil, http.StatusConflict},
		{"bad top", http.MethodGet, base + "/table?top=many", nil, http.StatusBadRequest},
		{"fit without sequences", http.MethodPost, base + "/fit", map[string]any{}, http.StatusBadRequest},
		{"fit unknown symbol", http.MethodPost, base + "/fit", map[string]any{"sequences": [][]int{{60, 61, 62}}}, http.StatusBadRequest},
		{"unknown chain", http.MethodGet, "/api/v1/chains/nope", nil, http.StatusNotFound},
		{"length over limit", http.MethodPost, base + "/generate", map[string]any{"length": 1000}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "request_id")
		})
	}
}

func TestCompose(t *testing.T) {
	r := setupTestRouter(t, testConfig())

	w := do(t, r, http.MethodPost, "/api/v1/compose", map[string]any{
		"pitches":   [][]int{{60, 62, 64, 62, 60}},
		"durations": [][]int{{480, 240, 480, 240, 480}},
		"length":    4,
		"seed":      7,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := decode[services.Composition](t, w)
	assert.Equal(t, int64(7), result.Seed)
	assert.Len(t, result.Events, 8)
	assert.Equal(t, 110, result.Events[0].Velocity)
	assert.Nil(t, result.Events[0].Duration)

	w = do(t, r, http.MethodPost, "/api/v1/compose", map[string]any{"length": 4})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGatewayAuthMode(t *testing.T) {
	cfg := testConfig()
	cfg.AuthMode = config.AuthModeGateway
	r := setupTestRouter(t, cfg)

	w := do(t, r, http.MethodGet, "/api/v1/chains", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/chains", map[string]any{"states": []int{60}}, "X-User-ID", "alice")
	require.Equal(t, http.StatusCreated, w.Code)
	info := decode[services.ChainInfo](t, w)
	assert.Equal(t, "alice", info.OwnerID)

	w = do(t, r, http.MethodDelete, "/api/v1/chains/"+info.ID, nil, "X-User-ID", "bob")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/chains/"+info.ID, nil, "X-User-ID", "carol", "X-User-Role", "admin")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestJWTAuthMode(t *testing.T) {
	cfg := testConfig()
	cfg.AuthMode = config.AuthModeJWT
	cfg.JWTSecret = "secret"
	r := setupTestRouter(t, cfg)

	w := do(t, r, http.MethodGet, "/api/v1/chains", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := middleware.IssueToken(cfg.JWTSecret, "dana", "", time.Hour)
	require.NoError(t, err)

	w = do(t, r, http.MethodPost, "/api/v1/chains", map[string]any{"states": []int{60}}, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "dana", decode[services.ChainInfo](t, w).OwnerID)

	// health stays public
	w = do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
