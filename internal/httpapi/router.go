package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/voxbridge/voxbridge/internal/eventlog"
	"github.com/voxbridge/voxbridge/internal/relay"
	"github.com/voxbridge/voxbridge/internal/secrets"
	"github.com/voxbridge/voxbridge/internal/store"
)

type RouterConfig struct {
	PublicBaseURL string

	// Upstream realtime API
	UpstreamURL        string
	DefaultUpstreamKey string // platform credential for custom prompt mode

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration
}

type Router struct {
	cfg      RouterConfig
	logger   *log.Logger
	store    *store.Store
	eventLog *eventlog.Logger
	secrets  *secrets.Box
	registry *relay.Registry
	mux      *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, s *store.Store, eventLog *eventlog.Logger, box *secrets.Box, registry *relay.Registry) http.Handler {
	r := &Router{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		eventLog: eventLog,
		secrets:  box,
		registry: registry,
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health check
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	// Widget relay (no auth - authorized by agent domain at set_agent)
	r.mux.HandleFunc("GET /ws", r.handleRelayWS)

	// Widget assets (public, served to embedding pages)
	r.mux.HandleFunc("GET /widget.js", r.handleWidgetScript)

	// Auth endpoints (public)
	r.mux.HandleFunc("POST /auth/register", r.handleRegister)
	r.mux.HandleFunc("POST /auth/login", r.handleLogin)
	r.mux.HandleFunc("POST /auth/refresh", r.handleRefreshToken)
	r.mux.HandleFunc("POST /auth/logout", r.withAuth(r.handleLogout))

	// Protected API endpoints
	r.mux.HandleFunc("GET /api/me", r.withAuth(r.handleGetMe))
	r.mux.HandleFunc("PATCH /api/me", r.withAuth(r.handleUpdateMe))

	// Agents
	r.mux.HandleFunc("GET /api/agents", r.withAuth(r.handleListAgents))
	r.mux.HandleFunc("POST /api/agents", r.withAuth(r.handleCreateAgent))
	r.mux.HandleFunc("GET /api/agents/{id}", r.withAuth(r.handleGetAgent))
	r.mux.HandleFunc("PUT /api/agents/{id}", r.withAuth(r.handleUpdateAgent))
	r.mux.HandleFunc("DELETE /api/agents/{id}", r.withAuth(r.handleDeleteAgent))
	r.mux.HandleFunc("GET /api/agents/{id}/embed", r.withAuth(r.handleAgentEmbed))

	// API keys
	r.mux.HandleFunc("GET /api/keys", r.withAuth(r.handleListKeys))
	r.mux.HandleFunc("POST /api/keys", r.withAuth(r.handleCreateKey))
	r.mux.HandleFunc("PATCH /api/keys/{id}", r.withAuth(r.handleUpdateKey))
	r.mux.HandleFunc("DELETE /api/keys/{id}", r.withAuth(r.handleDeleteKey))

	// Prompt presets
	r.mux.HandleFunc("GET /api/prompts", r.withAuth(r.handleListPrompts))
	r.mux.HandleFunc("POST /api/prompts", r.withAuth(r.handleCreatePrompt))
	r.mux.HandleFunc("GET /api/prompts/{id}", r.withAuth(r.handleGetPrompt))
	r.mux.HandleFunc("PUT /api/prompts/{id}", r.withAuth(r.handleUpdatePrompt))
	r.mux.HandleFunc("DELETE /api/prompts/{id}", r.withAuth(r.handleDeletePrompt))

	// Live session diagnostics
	r.mux.HandleFunc("GET /api/sessions", r.withAuth(r.handleListSessions))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleListSessions returns diagnostic snapshots of active relay sessions.
func (r *Router) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := []relay.SessionInfo{}
	r.registry.ForEach(func(s *relay.Session) {
		sessions = append(sessions, s.Info())
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"draining": r.registry.IsDraining(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}

func wsURLFromPublicBase(publicBase string) string {
	// http://x -> ws://x
	// https://x -> wss://x
	if strings.HasPrefix(publicBase, "https://") {
		return "wss://" + strings.TrimPrefix(publicBase, "https://")
	}
	if strings.HasPrefix(publicBase, "http://") {
		return "ws://" + strings.TrimPrefix(publicBase, "http://")
	}
	// assume already host[:port]
	return "wss://" + publicBase
}
