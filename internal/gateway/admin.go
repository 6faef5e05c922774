package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Newbigfonsz/llm-gateway/internal/auth"
)

// AdminHandler manages API keys. Routes are guarded by a shared admin
// token, compared in constant time.
type AdminHandler struct {
	store      auth.Store
	token      string
	defaultRPM int
	log        *slog.Logger
}

func NewAdminHandler(store auth.Store, token string, defaultRPM int, log *slog.Logger) *AdminHandler {
	return &AdminHandler{store: store, token: token, defaultRPM: defaultRPM, log: log}
}

func (h *AdminHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return false
	}
	presented := r.Header.Get("x-admin-token")
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) == 1
}

type createKeyRequest struct {
	TeamID       string `json:"team_id"`
	TeamName     string `json:"team_name"`
	RateLimitRPM int    `json:"rate_limit_rpm"`
}

func (h *AdminHandler) HandleCreateKey(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Invalid admin token.")
		return
	}

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.TeamID == "" {
		writeError(w, http.StatusBadRequest, "team_id is required.")
		return
	}
	if req.TeamName == "" {
		req.TeamName = req.TeamID
	}
	if req.RateLimitRPM <= 0 {
		req.RateLimitRPM = h.defaultRPM
	}

	key, err := auth.GenerateKey()
	if err != nil {
		h.log.Error("key generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate key.")
		return
	}

	record := &auth.APIKeyRecord{
		KeyHash:      auth.HashKey(key),
		KeyPrefix:    key[:12],
		TeamID:       req.TeamID,
		TeamName:     req.TeamName,
		RateLimitRPM: req.RateLimitRPM,
		Active:       true,
	}
	if err := h.store.Create(r.Context(), record); err != nil {
		h.log.Error("key creation failed", "team_id", req.TeamID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create key.")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"api_key":        key,
		"team_id":        req.TeamID,
		"team_name":      req.TeamName,
		"rate_limit_rpm": req.RateLimitRPM,
		"message":        "API key created successfully. Store this key securely - it cannot be retrieved again.",
	})
}

func (h *AdminHandler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Invalid admin token.")
		return
	}

	records, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("key listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list keys.")
		return
	}

	keys := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		keys = append(keys, map[string]any{
			"api_key_prefix": rec.KeyPrefix + "...",
			"team_id":        rec.TeamID,
			"team_name":      rec.TeamName,
			"rate_limit_rpm": rec.RateLimitRPM,
			"is_active":      rec.Active,
			"created_at":     rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}

func (h *AdminHandler) HandleRevokeKey(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Invalid admin token.")
		return
	}

	keyID := chi.URLParam(r, "id")
	if err := h.store.Revoke(r.Context(), keyID); err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			writeError(w, http.StatusNotFound, "Key not found.")
			return
		}
		h.log.Error("key revocation failed", "key_id", keyID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to revoke key.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
