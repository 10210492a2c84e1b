package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/auth"
	"github.com/tcworks/tcmanage/generic"
)

type identityKey struct{}

// IdentityFrom returns the identity RequireAuth stored in ctx.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// RequireAuth rejects requests without a valid bearer token.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		id, err := h.Tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// RequireAdmin rejects authenticated users below the admin level. The level
// is read from the store on every request, so a demotion takes effect before
// the caller's token expires. It must run after RequireAuth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || !id.IsAdmin() {
			writeError(w, http.StatusForbidden, "Administrator level required", generic.ErrForbidden)
			return
		}
		level, err := h.Auth.UserLevel(r.Context(), id.UserID)
		if err != nil {
			h.fail(w, r, "Failed to check user level", err)
			return
		}
		if level != auth.LevelAdmin {
			writeError(w, http.StatusForbidden, "Administrator level required", generic.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login verifies a password and issues a token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	id, err := h.Auth.Login(r.Context(), req.UserID, req.Password)
	if h.Metrics != nil {
		h.Metrics.RecordLogin(err == nil)
	}
	if err != nil {
		if errors.Is(err, generic.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid user ID or password", nil)
			return
		}
		h.fail(w, r, "Login failed", err)
		return
	}

	token, exp, err := h.Tokens.Issue(id)
	if err != nil {
		h.fail(w, r, "Login failed", err)
		return
	}
	h.logger.Info("user logged in", zap.String("user_id", id.UserID), zap.String("level", string(id.Level)))
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: exp,
		UserID:    id.UserID,
		Level:     id.Level,
	})
}

// Me returns the caller's identity.
// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	writeJSON(w, http.StatusOK, id)
}

// ChangePassword replaces the caller's password after checking the current
// one.
// PUT /api/auth/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	id, _ := IdentityFrom(r.Context())
	if err := h.Auth.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, "Failed to change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// USER ADMINISTRATION
// =============================================================================

// ListUsers returns every account with its level and hash scheme.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// SetUserLevel changes an account's level.
// PUT /api/users/{id}/level
func (h *Handler) SetUserLevel(w http.ResponseWriter, r *http.Request) {
	var req SetLevelRequest
	if !decode(w, r, &req) {
		return
	}
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := h.Store.SetUserLevel(r.Context(), userID, req.Level); err != nil {
		h.fail(w, r, "Failed to set user level", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
