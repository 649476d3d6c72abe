package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/voxbridge/voxbridge/internal/relay"
	"github.com/voxbridge/voxbridge/internal/store"
)

// pathID parses the {id} path segment. Writes a 400 and returns false on
// malformed input.
func pathID(w http.ResponseWriter, req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(req.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, `{"error": "invalid id"}`, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

type agentRequest struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Voice        string `json:"voice"`
	Domain       string `json:"domain"`
	APIKeyID     *int64 `json:"api_key_id"`

	NoiseMode         string `json:"noise_mode"`
	NoiseThreshold    string `json:"noise_threshold"`
	PrefixPaddingMs   int    `json:"prefix_padding_ms"`
	SilenceDurationMs int    `json:"silence_duration_ms"`

	Extra    json.RawMessage `json:"extra"`
	IsActive *bool           `json:"is_active"`
}

func (a *agentRequest) validate() string {
	a.Name = strings.TrimSpace(a.Name)
	a.Domain = strings.TrimSpace(a.Domain)
	if a.Name == "" {
		return "name is required"
	}
	if a.Domain == "" {
		return "domain is required"
	}
	switch a.NoiseMode {
	case "", relay.NoiseModeNearField, relay.NoiseModeFarField:
	default:
		return "noise_mode must be near_field or far_field"
	}
	if a.NoiseThreshold != "" {
		v, err := strconv.ParseFloat(a.NoiseThreshold, 64)
		if err != nil || v < 0 || v > 1 {
			return "noise_threshold must be a number between 0 and 1"
		}
	}
	if a.PrefixPaddingMs < 0 || a.SilenceDurationMs < 0 {
		return "timing values must not be negative"
	}
	if len(a.Extra) > 0 && !json.Valid(a.Extra) {
		return "extra must be a JSON object"
	}
	return ""
}

// verifyKeyOwnership rejects api_key_id values pointing at another user's
// key. A nil keyID is fine; such agents fail credential resolution at
// connect time instead.
func (r *Router) verifyKeyOwnership(req *http.Request, userID string, keyID *int64) (string, int) {
	if keyID == nil {
		return "", 0
	}
	key, err := r.store.GetAPIKey(req.Context(), *keyID)
	if err != nil {
		if store.IsNotFound(err) {
			return "api key not found", http.StatusBadRequest
		}
		return "database error", http.StatusInternalServerError
	}
	if key.UserID != userID {
		return "api key not found", http.StatusBadRequest
	}
	return "", 0
}

func (r *Router) handleListAgents(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	agents, err := r.store.ListAgentsByUser(req.Context(), authUser.ID)
	if err != nil {
		r.logger.Printf("agents: list failed for user %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

func (r *Router) handleCreateAgent(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var body agentRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if msg := body.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	if msg, status := r.verifyKeyOwnership(req, authUser.ID, body.APIKeyID); msg != "" {
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}

	agent, err := r.store.CreateAgent(req.Context(), store.Agent{
		UserID:            authUser.ID,
		Name:              body.Name,
		Instructions:      body.Instructions,
		Voice:             body.Voice,
		Domain:            body.Domain,
		APIKeyID:          body.APIKeyID,
		NoiseMode:         body.NoiseMode,
		NoiseThreshold:    body.NoiseThreshold,
		PrefixPaddingMs:   body.PrefixPaddingMs,
		SilenceDurationMs: body.SilenceDurationMs,
		Extra:             body.Extra,
	})
	if err != nil {
		r.logger.Printf("agents: create failed for user %s: %v", authUser.ID, err)
		captureError(req, err, "agent create failed")
		http.Error(w, `{"error": "failed to create agent"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, agent)
}

func (r *Router) handleGetAgent(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id, ok := pathID(w, req)
	if !ok {
		return
	}

	agent, err := r.store.GetAgentForUser(req.Context(), id, authUser.ID)
	if err != nil {
		if store.IsNotFound(err) {
			http.Error(w, `{"error": "agent not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, agent)
}

func (r *Router) handleUpdateAgent(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id, ok := pathID(w, req)
	if !ok {
		return
	}

	var body agentRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if msg := body.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	if msg, status := r.verifyKeyOwnership(req, authUser.ID, body.APIKeyID); msg != "" {
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}

	active := true
	if body.IsActive != nil {
		active = *body.IsActive
	}

	agent, err := r.store.UpdateAgent(req.Context(), id, authUser.ID, store.Agent{
		Name:              body.Name,
		Instructions:      body.Instructions,
		Voice:             body.Voice,
		Domain:            body.Domain,
		APIKeyID:          body.APIKeyID,
		NoiseMode:         body.NoiseMode,
		NoiseThreshold:    body.NoiseThreshold,
		PrefixPaddingMs:   body.PrefixPaddingMs,
		SilenceDurationMs: body.SilenceDurationMs,
		Extra:             body.Extra,
		IsActive:          active,
	})
	if err != nil {
		if store.IsNotFound(err) {
			http.Error(w, `{"error": "agent not found"}`, http.StatusNotFound)
			return
		}
		r.logger.Printf("agents: update failed for agent %d: %v", id, err)
		captureError(req, err, "agent update failed")
		http.Error(w, `{"error": "failed to update agent"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, agent)
}

func (r *Router) handleDeleteAgent(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id, ok := pathID(w, req)
	if !ok {
		return
	}

	n, err := r.store.DeleteAgent(req.Context(), id, authUser.ID)
	if err != nil {
		r.logger.Printf("agents: delete failed for agent %d: %v", id, err)
		http.Error(w, `{"error": "failed to delete agent"}`, http.StatusInternalServerError)
		return
	}
	if n == 0 {
		http.Error(w, `{"error": "agent not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
