package httpapi

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWSURLFromPublicBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://api.example.com", "wss://api.example.com"},
		{"http://localhost:8080", "ws://localhost:8080"},
		{"api.example.com", "wss://api.example.com"},
	}
	for _, tt := range tests {
		if got := wsURLFromPublicBase(tt.in); got != tt.want {
			t.Errorf("wsURLFromPublicBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeyPreview(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sk-live-abc123def456", "...f456"},
		{"abcd", "...abcd"},
		{"ab", "...ab"},
	}
	for _, tt := range tests {
		if got := keyPreview(tt.in); got != tt.want {
			t.Errorf("keyPreview(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAgentRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     agentRequest
		wantErr string
	}{
		{
			name: "valid",
			req:  agentRequest{Name: "Bot", Domain: "example.com"},
		},
		{
			name:    "missing name",
			req:     agentRequest{Domain: "example.com"},
			wantErr: "name is required",
		},
		{
			name:    "missing domain",
			req:     agentRequest{Name: "Bot"},
			wantErr: "domain is required",
		},
		{
			name:    "bad noise mode",
			req:     agentRequest{Name: "Bot", Domain: "example.com", NoiseMode: "loud"},
			wantErr: "noise_mode must be near_field or far_field",
		},
		{
			name: "valid noise mode",
			req:  agentRequest{Name: "Bot", Domain: "example.com", NoiseMode: "far_field"},
		},
		{
			name:    "threshold out of range",
			req:     agentRequest{Name: "Bot", Domain: "example.com", NoiseThreshold: "1.5"},
			wantErr: "noise_threshold must be a number between 0 and 1",
		},
		{
			name:    "threshold not numeric",
			req:     agentRequest{Name: "Bot", Domain: "example.com", NoiseThreshold: "high"},
			wantErr: "noise_threshold must be a number between 0 and 1",
		},
		{
			name: "valid threshold",
			req:  agentRequest{Name: "Bot", Domain: "example.com", NoiseThreshold: "0.7"},
		},
		{
			name:    "negative timing",
			req:     agentRequest{Name: "Bot", Domain: "example.com", PrefixPaddingMs: -1},
			wantErr: "timing values must not be negative",
		},
		{
			name:    "invalid extra json",
			req:     agentRequest{Name: "Bot", Domain: "example.com", Extra: json.RawMessage(`{broken`)},
			wantErr: "extra must be a JSON object",
		},
		{
			name: "whitespace trimmed",
			req:  agentRequest{Name: "  Bot  ", Domain: " example.com "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.validate()
			if got != tt.wantErr {
				t.Errorf("validate() = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestPromptRequestValidate(t *testing.T) {
	p := promptRequest{Name: " Pirate ", Content: "You are a pirate."}
	if msg := p.validate(); msg != "" {
		t.Errorf("validate() = %q, want ok", msg)
	}
	if p.Name != "Pirate" {
		t.Errorf("name not trimmed: %q", p.Name)
	}

	p = promptRequest{Content: "x"}
	if msg := p.validate(); msg != "name is required" {
		t.Errorf("validate() = %q", msg)
	}
	p = promptRequest{Name: "x", Content: "  "}
	if msg := p.validate(); msg != "content is required" {
		t.Errorf("validate() = %q", msg)
	}
}

func TestWidgetScriptServed(t *testing.T) {
	r := &Router{
		cfg:    RouterConfig{PublicBaseURL: "https://api.example.com"},
		logger: log.New(io.Discard, "", 0),
	}

	req := httptest.NewRequest(http.MethodGet, "/widget.js", nil)
	rec := httptest.NewRecorder()

	r.handleWidgetScript(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"wss://api.example.com/ws"`) {
		t.Error("script does not embed the relay URL")
	}
	if !strings.Contains(body, "data-agent-id") {
		t.Error("script does not read the agent id attribute")
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("preflight must not reach the inner handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/agents", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}
