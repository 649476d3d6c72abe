package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

// keyPreview keeps the last four characters of a credential for display.
func keyPreview(key string) string {
	if len(key) <= 4 {
		return "..." + key
	}
	return "..." + key[len(key)-4:]
}

func (r *Router) handleListKeys(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	keys, err := r.store.ListAPIKeysByUser(req.Context(), authUser.ID)
	if err != nil {
		r.logger.Printf("keys: list failed for user %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (r *Router) handleCreateKey(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var body struct {
		Name     string `json:"name"`
		Provider string `json:"provider"`
		Key      string `json:"key"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Key = strings.TrimSpace(body.Key)
	if body.Name == "" || body.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and key are required"})
		return
	}
	if body.Provider == "" {
		body.Provider = "openai"
	}

	encrypted, err := r.secrets.Encrypt(body.Key)
	if err != nil {
		r.logger.Printf("keys: encrypt failed: %v", err)
		http.Error(w, `{"error": "failed to store key"}`, http.StatusInternalServerError)
		return
	}

	key, err := r.store.CreateAPIKey(req.Context(), authUser.ID, body.Name, body.Provider, encrypted, keyPreview(body.Key))
	if err != nil {
		r.logger.Printf("keys: create failed for user %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "failed to store key"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, key)
}

func (r *Router) handleUpdateKey(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id, ok := pathID(w, req)
	if !ok {
		return
	}

	var body struct {
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.IsActive == nil {
		http.Error(w, `{"error": "is_active is required"}`, http.StatusBadRequest)
		return
	}

	n, err := r.store.SetAPIKeyActive(req.Context(), id, authUser.ID, *body.IsActive)
	if err != nil {
		r.logger.Printf("keys: update failed for key %d: %v", id, err)
		http.Error(w, `{"error": "failed to update key"}`, http.StatusInternalServerError)
		return
	}
	if n == 0 {
		http.Error(w, `{"error": "key not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (r *Router) handleDeleteKey(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id, ok := pathID(w, req)
	if !ok {
		return
	}

	n, err := r.store.DeleteAPIKey(req.Context(), id, authUser.ID)
	if err != nil {
		r.logger.Printf("keys: delete failed for key %d: %v", id, err)
		http.Error(w, `{"error": "failed to delete key"}`, http.StatusInternalServerError)
		return
	}
	if n == 0 {
		http.Error(w, `{"error": "key not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
