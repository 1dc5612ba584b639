package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, claims map[string]interface{}) string {
	t.Helper()
	_, token, err := jwtauth.New("HS256", []byte(secret), nil).Encode(claims)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_Handler(t *testing.T) {
	tests := []struct {
		name            string
		header          string
		expectedStatus  int
		expectedSubject string
	}{
		{
			name:           "missing token",
			header:         "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed token",
			header:         "Bearer not-a-jwt",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:            "valid token",
			header:          "Bearer " + signToken(t, testSecret, map[string]interface{}{"sub": "u1"}),
			expectedStatus:  http.StatusOK,
			expectedSubject: "u1",
		},
		{
			name:           "wrong signing key",
			header:         "Bearer " + signToken(t, "other-secret", map[string]interface{}{"sub": "u1"}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			header: "Bearer " + signToken(t, testSecret, map[string]interface{}{
				"sub": "u1",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "token without subject",
			header:         "Bearer " + signToken(t, testSecret, map[string]interface{}{"scope": "mfa"}),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(testSecret, zap.NewNop())

			var gotSubject string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSubject, _ = domain.GetSubject(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/mfa/verify-login", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			m.Handler(next).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedSubject, gotSubject)
			if tt.expectedStatus == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized","code":"M0013"}`, w.Body.String())
			}
		})
	}
}
