package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/manorfm/healthshield-mfa/internal/application"
	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/attempts"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/clock"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/config"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/crypto"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/repository"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var testNow = time.Unix(1700000000, 0)

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	server *httptest.Server
	engine *totp.Engine
}

func newTestServer(t *testing.T, cfg *config.Config, store Pinger) *testServer {
	t.Helper()

	logger := zap.NewNop()
	params := cfg.TOTPParams()
	clk := clock.Fixed(testNow)

	repo := repository.NewMemoryProfileRepository(logger, "u1", "u2")
	if store == nil {
		store = repo
	}

	sealer, err := crypto.NewAESSealer("router-test-key", logger)
	require.NoError(t, err)

	verifyLimiter := attempts.NewMemoryLimiter(attempts.PerWindow(cfg.VerifyMaxAttempts, cfg.VerifyAttemptWindow), cfg.VerifyMaxAttempts, time.Hour, clk)
	ipLimiter := attempts.NewMemoryLimiter(rate.Limit(cfg.HTTPRateLimit), cfg.HTTPRateBurst, time.Hour, clk)
	t.Cleanup(func() {
		verifyLimiter.Close()
		ipLimiter.Close()
	})

	service := application.NewMFAService(repo, totp.NewGenerator(params, clk, logger), verifyLimiter, sealer, params, logger)
	server := httptest.NewServer(NewRouter(service, store, ipLimiter, cfg, logger))
	t.Cleanup(server.Close)

	return &testServer{server: server, engine: totp.NewEngine(params.Digits, params.Period)}
}

func (s *testServer) post(t *testing.T, path, body, bearer string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (s *testServer) code(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	key, err := totp.DecodeSecret(secret)
	require.NoError(t, err)
	return s.engine.Generate(key, at)
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.StoreDriver = config.StoreDriverMemory
	cfg.HTTPRateLimit = 1000
	cfg.HTTPRateBurst = 1000
	return cfg
}

func TestRouter_MFAFlow(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	resp, body := s.post(t, "/api/mfa/begin-enrollment", `{"userId":"u1"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	secret := body["secret"].(string)
	assert.Len(t, secret, 32)
	assert.Equal(t,
		"otpauth://totp/OneHealthShield:u1?secret="+secret+"&issuer=OneHealthShield&algorithm=SHA1&digits=6&period=60",
		body["provisioningUri"])
	assert.True(t, strings.HasPrefix(body["qrCode"].(string), "data:image/png;base64,"))

	code := s.code(t, secret, testNow)

	resp, body = s.post(t, "/api/mfa/confirm-enrollment", `{"userId":"u1","token":"`+code+`","secret":"`+secret+`"}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = s.post(t, "/api/mfa/confirm-enrollment", `{"userId":"u1","token":"`+code+`","secret":"`+secret+`"}`, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "MFA already enabled for user", body["error"])

	resp, body = s.post(t, "/api/mfa/begin-enrollment", `{"userId":"u1"}`, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.post(t, "/api/mfa/verify-login", `{"userId":"u1","token":"`+code+`"}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])

	resp, body = s.post(t, "/api/mfa/verify-login", `{"userId":"u1","token":"12345"}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["valid"])

	resp, body = s.post(t, "/api/mfa/verify-login", `{"userId":"u2","token":"`+code+`"}`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "MFA not enabled for user", body["error"])

	resp, body = s.post(t, "/api/mfa/verify-login", `{"userId":"ghost","token":"`+code+`"}`, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", body["error"])

	resp, body = s.post(t, "/api/mfa/verify-login", `{"userId":"u1"}`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Missing userId or token", body["error"])

	resp, body = s.post(t, "/api/mfa/disable", `{"userId":"u1","token":"`+code+`"}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
}

func TestRouter_ConfirmWithWrongCode(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	resp, body := s.post(t, "/api/mfa/begin-enrollment", `{"userId":"u1"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	secret := body["secret"].(string)

	stale := s.code(t, secret, testNow.Add(-10*time.Minute))
	for _, d := range []time.Duration{-time.Minute, 0, time.Minute} {
		if stale == s.code(t, secret, testNow.Add(d)) {
			t.Skip("random secret produced a colliding code")
		}
	}

	resp, body = s.post(t, "/api/mfa/confirm-enrollment", `{"userId":"u1","token":"`+stale+`","secret":"`+secret+`"}`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid verification code", body["error"])
	assert.NotContains(t, body, "expected")
}

func TestRouter_VerifyAttemptLimit(t *testing.T) {
	cfg := testConfig()
	cfg.VerifyMaxAttempts = 2
	s := newTestServer(t, cfg, nil)

	for i := 0; i < 2; i++ {
		resp, _ := s.post(t, "/api/mfa/verify-login", `{"userId":"u1","token":"123456"}`, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	resp, body := s.post(t, "/api/mfa/verify-login", `{"userId":"u1","token":"123456"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Too many verification attempts", body["error"])
}

func TestRouter_PerIPRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPRateLimit = 1
	cfg.HTTPRateBurst = 1
	s := newTestServer(t, cfg, nil)

	resp, _ := s.post(t, "/api/mfa/begin-enrollment", `{"userId":"u1"}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.post(t, "/api/mfa/begin-enrollment", `{"userId":"u1"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Rate limit exceeded", body["error"])
}

func TestRouter_PerIPRateLimitSkipsHealthChecks(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPRateLimit = 1
	cfg.HTTPRateBurst = 1
	s := newTestServer(t, cfg, nil)

	for i := 0; i < 5; i++ {
		for _, path := range []string{"/health", "/health/live", "/health/ready"} {
			resp, err := s.server.Client().Get(s.server.URL + path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		}
	}

	resp, _ := s.post(t, "/api/mfa/begin-enrollment", `{"userId":"u1"}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.post(t, "/api/mfa/begin-enrollment", `{"userId":"u1"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRouter_ConfirmRejectsShortSecret(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	const weak = "JBSWY3DPEHPK3PXP"
	code := s.code(t, weak, testNow)

	resp, body := s.post(t, "/api/mfa/confirm-enrollment", `{"userId":"u1","token":"`+code+`","secret":"`+weak+`"}`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid MFA secret", body["error"])

	resp, body = s.post(t, "/api/mfa/verify-login", `{"userId":"u1","token":"`+code+`"}`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "MFA not enabled for user", body["error"])
}

func TestRouter_Authentication(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "router-secret"
	s := newTestServer(t, cfg, nil)

	_, token, err := jwtauth.New("HS256", []byte(cfg.JWTSecret), nil).Encode(map[string]interface{}{"sub": "u1"})
	require.NoError(t, err)

	resp, body := s.post(t, "/api/mfa/begin-enrollment", `{"userId":"u1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", body["error"])

	resp, body = s.post(t, "/api/mfa/begin-enrollment", `{"userId":"u2"}`, token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Forbidden", body["error"])

	resp, _ = s.post(t, "/api/mfa/begin-enrollment", `{"userId":"u1"}`, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name           string
		store          Pinger
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{name: "health", path: "/health", expectedStatus: http.StatusOK, expectedBody: "OK"},
		{name: "live", path: "/health/live", expectedStatus: http.StatusOK, expectedBody: "Alive"},
		{name: "ready", path: "/health/ready", expectedStatus: http.StatusOK, expectedBody: "Ready"},
		{name: "not ready", store: downStore{}, path: "/health/ready", expectedStatus: http.StatusServiceUnavailable, expectedBody: "Store connection failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), tt.store)

			resp, err := s.server.Client().Get(s.server.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, tt.expectedBody, string(body))
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.CORSAllowedOrigins = []string{"https://app.example"}
	s := newTestServer(t, cfg, nil)

	req, err := http.NewRequest(http.MethodOptions, s.server.URL+"/api/mfa/verify-login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

var _ domain.AttemptLimiter = (*attempts.MemoryLimiter)(nil)
