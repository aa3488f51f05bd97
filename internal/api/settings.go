package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/pidtune/internal/domain"
	"github.com/ashureev/pidtune/internal/identity"
	"github.com/ashureev/pidtune/internal/store"
	"github.com/go-chi/chi/v5"
)

// SettingsHandler manages the caller's advisory credential and model.
type SettingsHandler struct {
	*Handler
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(base *Handler) *SettingsHandler {
	return &SettingsHandler{Handler: base}
}

// RegisterRoutes registers settings and identity routes.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me", h.GetMe)
	r.Get("/api/settings", h.GetSettings)
	r.Put("/api/settings", h.PutSettings)
}

// GetMe returns the current user's information.
func (h *SettingsHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    user.UserID,
		"username":   user.Username,
		"session_id": identity.SessionIDFromContext(r.Context()),
	})
}

type settingsResponse struct {
	HasAPIKey bool   `json:"has_api_key"`
	KeySource string `json:"key_source,omitempty"` // "user" or "server"
	Model     string `json:"model"`
}

// GetSettings reports whether a key is configured. The key itself is never
// returned.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)

	creds, err := store.LoadCredentials(ctx, h.repo, userID, h.fallback)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, own, err := h.repo.GetSetting(ctx, userID, domain.SettingAPIKey)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := settingsResponse{HasAPIKey: creds.HasAPIKey(), Model: creds.Model}
	switch {
	case own:
		resp.KeySource = "user"
	case creds.HasAPIKey():
		resp.KeySource = "server"
	}
	JSON(w, http.StatusOK, resp)
}

type settingsRequest struct {
	APIKey *string `json:"api_key"`
	Model  *string `json:"model"`
}

// PutSettings saves the key and model. Omitted fields are unchanged, a blank
// model resets to the default and a blank key is rejected.
func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := h.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)

	if req.APIKey != nil {
		key := strings.TrimSpace(*req.APIKey)
		if key == "" {
			writeError(w, r, fmt.Errorf("%w: api_key cannot be blank", errBadRequest))
			return
		}
		if err := h.repo.PutSetting(ctx, userID, domain.SettingAPIKey, key); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if req.Model != nil {
		model := strings.TrimSpace(*req.Model)
		var err error
		if model == "" {
			err = h.repo.DeleteSetting(ctx, userID, domain.SettingModel)
		} else {
			err = h.repo.PutSetting(ctx, userID, domain.SettingModel, model)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	slog.Info("Advisory settings updated", "user_id", userID,
		"api_key_changed", req.APIKey != nil, "model_changed", req.Model != nil)
	h.GetSettings(w, r)
}
