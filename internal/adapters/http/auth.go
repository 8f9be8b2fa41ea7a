package httpadapter

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

type authedHandler func(w http.ResponseWriter, r *http.Request, user domain.User)

// requireUser verifies the bearer token and passes the caller to next.
func (rt *Router) requireUser(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || rt.tokens == nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="fault-diagnosis"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		user, err := rt.tokens.Verify(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="fault-diagnosis", error="invalid_token"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}

		if info, ok := r.Context().Value(accessInfoContextKey{}).(*accessInfo); ok {
			info.user = user.Username
			info.ship = user.Ship
		}
		next(w, r, *user)
	})
}

func bearerToken(headerValue string) (string, bool) {
	headerValue = strings.TrimSpace(headerValue)
	const bearerPrefix = "Bearer "
	if len(headerValue) <= len(bearerPrefix) || !strings.EqualFold(headerValue[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(headerValue[len(bearerPrefix):])
	return token, token != ""
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.users == nil || rt.tokens == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "authentication is not configured"})
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	user, err := rt.users.Authenticate(r.Context(), req.Username, req.Password)
	if rt.metrics != nil {
		rt.metrics.RecordLogin(err == nil)
	}
	if err != nil {
		if domain.IsKind(err, domain.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid username or password"})
			return
		}
		writeError(w, err)
		return
	}

	token, expiresAt, err := rt.tokens.Issue(*user)
	if err != nil {
		writeError(w, errors.Join(domain.ErrTemporary, err))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      *user,
	})
}

func (rt *Router) me(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}
