package auth

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/manorfm/healthshield-mfa/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// AuthMiddleware verifies HS256 bearer tokens and exposes the token subject
// through domain.GetSubject
type AuthMiddleware struct {
	ja     *jwtauth.JWTAuth
	logger *zap.Logger
}

// NewAuthMiddleware creates a middleware verifying tokens signed with secret
func NewAuthMiddleware(secret string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		ja:     jwtauth.New("HS256", []byte(secret), nil),
		logger: logger,
	}
}

// Handler runs token verification followed by Authenticator
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return jwtauth.Verifier(m.ja)(m.Authenticator(next))
}

// Authenticator rejects requests without a valid verified token. It must run
// after jwtauth.Verifier.
func (m *AuthMiddleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			m.logger.Debug("Rejected bearer token", zap.Error(err))
			errors.RespondWithError(w, domain.ErrUnauthorized)
			return
		}

		subject, _ := claims["sub"].(string)
		if subject == "" {
			m.logger.Debug("Bearer token has no subject")
			errors.RespondWithError(w, domain.ErrUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(domain.WithSubject(r.Context(), subject)))
	})
}
