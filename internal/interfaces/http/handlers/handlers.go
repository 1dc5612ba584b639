package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/manorfm/healthshield-mfa/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

// newValidator reports field errors under their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest decodes a JSON body into req and validates it. On failure the
// error response has already been written.
func decodeRequest(w http.ResponseWriter, r *http.Request, v *validator.Validate, req interface{}, missing domain.Error, logger *zap.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		logger.Debug("Failed to decode request body", zap.Error(err))
		errors.RespondWithError(w, domain.ErrInvalidRequestBody)
		return false
	}

	if err := v.Struct(req); err != nil {
		errors.RespondErrorWithDetails(w, missing, errors.ValidationDetails(err))
		return false
	}

	return true
}

// authorizeSubject rejects requests whose authenticated subject differs from
// userID. Requests without a subject pass when authentication is disabled.
func authorizeSubject(w http.ResponseWriter, r *http.Request, userID string, logger *zap.Logger) bool {
	subject, ok := domain.GetSubject(r.Context())
	if !ok {
		return true
	}
	if subject != userID {
		logger.Warn("Subject does not match requested user",
			zap.String("subject", subject),
			zap.String("user_id", userID))
		errors.RespondWithError(w, domain.ErrForbidden)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, body interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
