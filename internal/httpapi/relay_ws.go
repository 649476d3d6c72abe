package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/voxbridge/voxbridge/internal/relay"
	"github.com/voxbridge/voxbridge/internal/secrets"
	"github.com/voxbridge/voxbridge/internal/store"
	"github.com/voxbridge/voxbridge/internal/upstream"
)

// The upgrader accepts any origin: the widget runs on customer pages, and
// per-agent origin enforcement happens inside the session at set_agent.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// storeDirectory adapts the store to the relay's agent lookup.
type storeDirectory struct {
	s *store.Store
}

func (d storeDirectory) GetAgent(ctx context.Context, id int64) (*relay.AgentConfig, error) {
	a, err := d.s.GetAgent(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, relay.ErrAgentNotFound
		}
		return nil, err
	}

	cfg := &relay.AgentConfig{
		ID:                a.ID,
		Name:              a.Name,
		Instructions:      a.Instructions,
		Voice:             a.Voice,
		Domain:            a.Domain,
		NoiseMode:         a.NoiseMode,
		NoiseThreshold:    a.NoiseThreshold,
		PrefixPaddingMs:   a.PrefixPaddingMs,
		SilenceDurationMs: a.SilenceDurationMs,
	}
	if a.APIKeyID != nil {
		cfg.KeyID = *a.APIKeyID
	}
	if len(a.Extra) > 0 {
		// malformed extras are dropped rather than blocking the session
		_ = json.Unmarshal(a.Extra, &cfg.Extra)
	}
	return cfg, nil
}

// storeCredentials resolves an agent's key reference to plaintext.
type storeCredentials struct {
	s   *store.Store
	box *secrets.Box
}

func (c storeCredentials) UpstreamSecret(ctx context.Context, keyID int64) (string, error) {
	if keyID == 0 {
		return "", relay.ErrNoUsableKey
	}
	key, err := c.s.GetAPIKey(ctx, keyID)
	if err != nil {
		if store.IsNotFound(err) {
			return "", relay.ErrNoUsableKey
		}
		return "", err
	}
	if !key.IsActive {
		return "", relay.ErrNoUsableKey
	}
	return c.box.Decrypt(key.EncryptedKey)
}

// handleRelayWS upgrades the widget connection and runs a relay session on
// the handler goroutine until either side disconnects.
func (r *Router) handleRelayWS(w http.ResponseWriter, req *http.Request) {
	if r.registry.IsDraining() {
		http.Error(w, `{"error": "service is shutting down"}`, http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("relay: websocket upgrade failed: %v", err)
		return
	}

	session := relay.NewSession(conn, relay.Config{
		Directory: storeDirectory{s: r.store},
		Creds:     storeCredentials{s: r.store, box: r.secrets},
		Dial: func(ctx context.Context, secret string) (relay.UpstreamConn, error) {
			return upstream.Dial(ctx, r.cfg.UpstreamURL, secret)
		},
		DefaultSecret: r.cfg.DefaultUpstreamKey,
		Origin:        req.Header.Get("Origin"),
		Registry:      r.registry,
		Events:        r.eventLog,
		Logger:        r.logger,
	})

	session.Run(req.Context())
}
