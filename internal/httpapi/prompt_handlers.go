package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/voxbridge/voxbridge/internal/store"
)

type promptRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (p *promptRequest) validate() string {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return "name is required"
	}
	if strings.TrimSpace(p.Content) == "" {
		return "content is required"
	}
	return ""
}

func (r *Router) handleListPrompts(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	prompts, err := r.store.ListPromptsByUser(req.Context(), authUser.ID)
	if err != nil {
		r.logger.Printf("prompts: list failed for user %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

func (r *Router) handleCreatePrompt(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())

	var body promptRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if msg := body.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	prompt, err := r.store.CreatePrompt(req.Context(), authUser.ID, body.Name, body.Content)
	if err != nil {
		r.logger.Printf("prompts: create failed for user %s: %v", authUser.ID, err)
		http.Error(w, `{"error": "failed to create prompt"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, prompt)
}

func (r *Router) handleGetPrompt(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id, ok := pathID(w, req)
	if !ok {
		return
	}

	prompt, err := r.store.GetPromptForUser(req.Context(), id, authUser.ID)
	if err != nil {
		if store.IsNotFound(err) {
			http.Error(w, `{"error": "prompt not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, prompt)
}

func (r *Router) handleUpdatePrompt(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id, ok := pathID(w, req)
	if !ok {
		return
	}

	var body promptRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if msg := body.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	prompt, err := r.store.UpdatePrompt(req.Context(), id, authUser.ID, body.Name, body.Content)
	if err != nil {
		if store.IsNotFound(err) {
			http.Error(w, `{"error": "prompt not found"}`, http.StatusNotFound)
			return
		}
		r.logger.Printf("prompts: update failed for prompt %d: %v", id, err)
		http.Error(w, `{"error": "failed to update prompt"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, prompt)
}

func (r *Router) handleDeletePrompt(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	id, ok := pathID(w, req)
	if !ok {
		return
	}

	n, err := r.store.DeletePrompt(req.Context(), id, authUser.ID)
	if err != nil {
		r.logger.Printf("prompts: delete failed for prompt %d: %v", id, err)
		http.Error(w, `{"error": "failed to delete prompt"}`, http.StatusInternalServerError)
		return
	}
	if n == 0 {
		http.Error(w, `{"error": "prompt not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
