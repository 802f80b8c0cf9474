package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/gatehouse/internal/auth"
	"github.com/dropDatabas3/gatehouse/internal/oauth"
	"github.com/dropDatabas3/gatehouse/internal/token"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps orchestrator failures to HTTP. Every branch corresponds to
// one typed failure; anything unmapped is a 500 with no detail leaked.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, token.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, auth.ErrSignup):
		return http.StatusConflict, "signup_failed"
	case errors.Is(err, oauth.ErrConfig):
		return http.StatusBadRequest, "provider_not_configured"
	case errors.Is(err, oauth.ErrTokenExchange):
		return http.StatusBadRequest, "oauth_token_exchange"
	case errors.Is(err, oauth.ErrInvalidResponse):
		return http.StatusBadGateway, "oauth_invalid_response"
	case errors.Is(err, oauth.ErrUserInfo):
		return http.StatusBadGateway, "oauth_user_info"
	case errors.Is(err, oauth.ErrNetwork):
		return http.StatusBadGateway, "oauth_network"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes a request body with a hard size cap and no unknown
// fields. Returns false after writing the error response.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse{Code: "invalid_body", Message: "malformed JSON body"})
		return false
	}
	return true
}
