package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/patternloft/patternloft/internal/app"
	iauth "github.com/patternloft/patternloft/internal/auth"
	testutil "github.com/patternloft/patternloft/internal/database/testutil"
)

func testConfig() *app.Config {
	cfg := &app.Config{}
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	return cfg
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "test", AccessTokenTTL: 15 * time.Minute})
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}

	router, err := NewRouter(db, jwtSvc, testConfig())
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	// Health should be public
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200 for /health, got %d", w.Code)
	}

	// Protected endpoints without auth should be 401
	for _, path := range []string{"/api/auth/me", "/api/patterns", "/api/tags"} {
		w = httptest.NewRecorder()
		req, _ = http.NewRequest("GET", path, nil)
		router.ServeHTTP(w, req)
		if w.Code != 401 {
			t.Fatalf("expected 401 for %s without token, got %d", path, w.Code)
		}
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "metrics-secret", Issuer: "test", AccessTokenTTL: 15 * time.Minute})
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}

	router, err := NewRouter(db, jwtSvc, testConfig())
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	// Trigger a request to generate metrics
	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for /health, got %d", rec.Code)
	}

	metricsRec := httptest.NewRecorder()
	metricsReq, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(metricsRec, metricsReq)
	if metricsRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for /metrics, got %d", metricsRec.Code)
	}

	body := metricsRec.Body.String()
	if !strings.Contains(body, `patternloft_api_latency_seconds_count{method="GET",path="/health",status="200"}`) {
		t.Fatalf("metrics output missing latency series: %s", body)
	}
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func (c *apiClient) do(method, path string, payload any) *httptest.ResponseRecorder {
	c.t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c *apiClient) register(username string) {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/auth/register", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "sewing-machine",
	})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
}

func (c *apiClient) login(username string) {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/auth/login", gin.H{
		"identifier": username,
		"password":   "sewing-machine",
	})
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		Data struct {
			Tokens struct {
				AccessToken string `json:"access_token"`
			} `json:"tokens"`
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &payload))
	c.token = payload.Data.Tokens.AccessToken
}

func TestRouter_PatternSharingFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "flow-secret", Issuer: "test", AccessTokenTTL: 15 * time.Minute})
	require.NoError(t, err)

	router, err := NewRouter(db, jwtSvc, testConfig())
	require.NoError(t, err)

	owner := &apiClient{t: t, router: router}
	owner.register("maker")
	owner.login("maker")

	friend := &apiClient{t: t, router: router}
	friend.register("friend")
	friend.login("friend")

	// Resolve the friend's user id from /me.
	w := friend.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))

	// Owner creates a pattern.
	w = owner.do(http.MethodPost, "/api/patterns", gin.H{
		"name":     "Wrap Dress",
		"designer": "Atelier Nordvik",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	patternID := created.Data.ID

	patternPath := fmt.Sprintf("/api/patterns/%s", patternID)

	// The friend cannot see it yet.
	w = friend.do(http.MethodGet, patternPath, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	// Owner shares it read-only.
	w = owner.do(http.MethodPost, patternPath+"/shares", gin.H{
		"user_id": me.Data.ID,
		"rights":  []string{"read"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Now the friend can read but not modify.
	w = friend.do(http.MethodGet, patternPath, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = friend.do(http.MethodPatch, patternPath, gin.H{"name": "Stolen Dress"})
	require.Equal(t, http.StatusForbidden, w.Code)

	// Revoking closes the door again.
	w = owner.do(http.MethodDelete, patternPath+"/shares/"+me.Data.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = friend.do(http.MethodGet, patternPath, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	// A missing pattern stays a 404, not a 403.
	w = friend.do(http.MethodGet, "/api/patterns/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
