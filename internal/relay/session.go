package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/voxbridge/voxbridge/internal/eventlog"
	"github.com/voxbridge/voxbridge/internal/secrets"
)

// ClientConn is the widget-facing message connection. *websocket.Conn
// satisfies it directly.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// UpstreamConn is an established connection to the realtime speech API.
// *upstream.Client satisfies it.
type UpstreamConn interface {
	Send(v any) error
	Frames() <-chan []byte
	Errors() <-chan error
	Close() error
}

// Dialer opens an upstream connection authenticated with secret.
type Dialer func(ctx context.Context, secret string) (UpstreamConn, error)

// State is the relay session lifecycle state.
type State int

const (
	StateInit State = iota
	StateAgentResolved
	StateUpstreamConnecting
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAgentResolved:
		return "agent_resolved"
	case StateUpstreamConnecting:
		return "upstream_connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Config wires a session to its collaborators. Registry and Events may be
// nil (diagnostics disabled); everything else is required for a functional
// relay, though tests stub the interfaces freely.
type Config struct {
	Directory AgentDirectory
	Creds     CredentialSource
	Dial      Dialer

	// DefaultSecret is used in custom prompt mode, when connect arrives
	// with no agent resolved.
	DefaultSecret string

	// Origin is the connecting page's declared origin, captured at upgrade.
	Origin string

	Registry *Registry
	Events   *eventlog.Logger
	Logger   *log.Logger
}

// Session bridges one client connection to at most one upstream
// conversation. Two goroutines touch it: the inbound command loop (Run) and
// the outbound event-forwarding loop started on connect. All other access
// goes through the registry for diagnostics only.
type Session struct {
	id     string
	cfg    Config
	client ClientConn
	logger *log.Logger

	writeMu sync.Mutex // serializes client writes from both loops

	mu                  sync.Mutex // guards the fields below
	state               State
	agent               *AgentConfig
	upstream            UpstreamConn
	pendingInstructions string

	translator eventTranslator // outbound loop only

	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewSession creates a session for an accepted client connection. Call Run
// to start the inbound loop.
func NewSession(client ClientConn, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Session{
		id:     newSessionID(),
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// ID returns the session's diagnostic identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionInfo is a diagnostic snapshot for the registry listing.
type SessionInfo struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	AgentID int64  `json:"agent_id,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

// Info returns a diagnostic snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := SessionInfo{ID: s.id, State: s.state.String(), Origin: s.cfg.Origin}
	if s.agent != nil {
		info.AgentID = s.agent.ID
	}
	return info
}

// Close force-closes the session. Safe to call from any goroutine and more
// than once.
func (s *Session) Close() { s.teardown() }

// Run executes the inbound command loop until the client disconnects or a
// terminal error occurs, then tears the session down. It blocks; callers run
// it on the connection's handler goroutine.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	defer s.teardown()

	if s.cfg.Registry != nil {
		if !s.cfg.Registry.Register(s) {
			s.sendEvent(newErrorEvent("service is shutting down"))
			return
		}
	}

	s.cfg.Events.LogAsync(s.id, eventlog.EventSessionStarted, map[string]any{"origin": s.cfg.Origin})
	s.logger.Printf("relay: session %s started (origin %q)", s.id, s.cfg.Origin)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, msg, err := s.client.ReadMessage()
		if err != nil {
			s.logger.Printf("relay: client read ended for session %s: %v", s.id, err)
			return
		}

		cmd, err := parseCommand(msg)
		if err != nil {
			s.sendEvent(newErrorEvent("invalid message"))
			continue
		}

		if !s.dispatch(ctx, cmd) {
			return
		}
	}
}

// dispatch handles one client command. It returns false when the failure is
// terminal and the session must close.
func (s *Session) dispatch(ctx context.Context, cmd command) bool {
	switch c := cmd.(type) {
	case setAgentCommand:
		return s.handleSetAgent(ctx, c)
	case connectCommand:
		return s.handleConnect(ctx)
	case promptCommand:
		return s.handlePrompt(c)
	case audioChunkCommand:
		return s.handleAudioChunk(c)
	case commitCommand:
		return s.handleCommit()
	case unknownCommand:
		s.logger.Printf("relay: session %s ignoring unknown action %q", s.id, c.Action)
		return true
	}
	return true
}

func (s *Session) handleSetAgent(ctx context.Context, c setAgentCommand) bool {
	if c.AgentID == nil {
		s.sendEvent(newErrorEvent("missing agent_id"))
		return true
	}

	agent, err := s.cfg.Directory.GetAgent(ctx, *c.AgentID)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			s.sendEvent(newErrorEvent(fmt.Sprintf("agent %d not found", *c.AgentID)))
			return true
		}
		s.logger.Printf("relay: agent lookup failed for session %s: %v", s.id, err)
		s.sendEvent(newErrorEvent("agent lookup failed"))
		return true
	}

	if !Authorized(s.cfg.Origin, agent.Domain) {
		s.cfg.Events.LogAsync(s.id, eventlog.EventOriginDenied, map[string]any{
			"agent_id": agent.ID,
			"origin":   s.cfg.Origin,
		})
		s.sendEvent(newErrorEvent("origin not authorized for this agent"))
		return false
	}

	s.mu.Lock()
	s.agent = agent
	if s.state == StateInit {
		s.state = StateAgentResolved
	}
	up := s.upstream
	s.mu.Unlock()

	s.sendEvent(agentSetEvent{
		Type:                "agent_set",
		AgentID:             agent.ID,
		Name:                agent.Name,
		InstructionsPreview: instructionsPreview(agent.Instructions),
	})
	s.cfg.Events.LogAsync(s.id, eventlog.EventAgentSet, map[string]any{"agent_id": agent.ID})
	s.logger.Printf("relay: session %s assigned agent %d (%s)", s.id, agent.ID, agent.Name)

	// Re-resolving an agent on a live session updates the running
	// conversation's instructions in place.
	if up != nil && agent.Instructions != "" {
		if err := up.Send(sessionInstructionsFrame(agent.Instructions)); err != nil {
			s.logger.Printf("relay: upstream write failed for session %s: %v", s.id, err)
			return false
		}
	}
	return true
}

func (s *Session) handleConnect(ctx context.Context) bool {
	s.mu.Lock()
	if s.upstream != nil {
		s.mu.Unlock()
		s.sendEvent(newErrorEvent("already connected"))
		return true
	}
	agent := s.agent
	pending := s.pendingInstructions
	s.state = StateUpstreamConnecting
	s.mu.Unlock()

	secret, ok := s.resolveSecret(ctx, agent)
	if !ok {
		return false
	}

	up, err := s.cfg.Dial(ctx, secret)
	if err != nil {
		s.logger.Printf("relay: upstream connect failed for session %s: %v", s.id, err)
		s.sendEvent(newErrorEvent("failed to connect upstream"))
		return false
	}

	if err := up.Send(sessionInitFrame(agent, pending)); err != nil {
		_ = up.Close()
		s.logger.Printf("relay: session init failed for session %s: %v", s.id, err)
		s.sendEvent(newErrorEvent("failed to configure upstream session"))
		return false
	}

	s.mu.Lock()
	if s.state >= StateClosing {
		// torn down while dialing; don't leak the fresh connection
		s.mu.Unlock()
		_ = up.Close()
		return false
	}
	s.upstream = up
	s.state = StateActive
	s.mu.Unlock()

	go s.forwardUpstream(ctx, up)

	s.sendEvent(connectedEvent{Type: "connected"})
	s.cfg.Events.LogAsync(s.id, eventlog.EventUpstreamConnected, nil)
	s.logger.Printf("relay: session %s upstream established", s.id)
	return true
}

// resolveSecret picks the upstream credential for this connect. Failures are
// surfaced to the client here; the caller only sees ok=false and closes.
func (s *Session) resolveSecret(ctx context.Context, agent *AgentConfig) (string, bool) {
	if agent == nil {
		if s.cfg.DefaultSecret == "" {
			s.sendEvent(newErrorEvent("no agent selected and no default credential configured"))
			return "", false
		}
		return s.cfg.DefaultSecret, true
	}

	secret, err := s.cfg.Creds.UpstreamSecret(ctx, agent.KeyID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoUsableKey):
			s.sendEvent(newErrorEvent("agent's api key is not active"))
		case errors.Is(err, secrets.ErrDecrypt):
			// never echo decrypt details to the client
			s.sendEvent(newErrorEvent("credential error"))
		default:
			s.sendEvent(newErrorEvent("credential error"))
		}
		s.logger.Printf("relay: credential resolution failed for session %s: %v", s.id, err)
		return "", false
	}
	return secret, true
}

func (s *Session) handlePrompt(c promptCommand) bool {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		s.sendEvent(newErrorEvent("empty prompt"))
		return true
	}

	s.mu.Lock()
	up := s.upstream
	if up == nil {
		// applied later, in the session init frame
		s.pendingInstructions = text
	}
	s.mu.Unlock()

	if up != nil {
		if err := up.Send(sessionInstructionsFrame(text)); err != nil {
			s.logger.Printf("relay: upstream write failed for session %s: %v", s.id, err)
			return false
		}
	}

	s.sendEvent(promptSetEvent{Type: "prompt_set", Text: text})
	s.cfg.Events.LogAsync(s.id, eventlog.EventPromptSet, map[string]any{"chars": len(text)})
	return true
}

func (s *Session) handleAudioChunk(c audioChunkCommand) bool {
	s.mu.Lock()
	up := s.upstream
	s.mu.Unlock()

	if up == nil || c.Audio == "" {
		// dropped silently before connect
		return true
	}

	frame := map[string]any{"type": "input_audio_buffer.append", "audio": c.Audio}
	if err := up.Send(frame); err != nil {
		s.logger.Printf("relay: audio forward failed for session %s: %v", s.id, err)
		return false
	}
	return true
}

func (s *Session) handleCommit() bool {
	s.mu.Lock()
	up := s.upstream
	s.mu.Unlock()

	if up == nil {
		s.sendEvent(newErrorEvent("no upstream session"))
		return true
	}

	// commit first, then request the response; order matters upstream
	if err := up.Send(map[string]any{"type": "input_audio_buffer.commit"}); err != nil {
		s.logger.Printf("relay: commit failed for session %s: %v", s.id, err)
		return false
	}
	if err := up.Send(map[string]any{"type": "response.create"}); err != nil {
		s.logger.Printf("relay: response request failed for session %s: %v", s.id, err)
		return false
	}
	return true
}

// forwardUpstream is the outbound loop: it drains upstream frames, translates
// them and writes the resulting events to the client. Any exit tears the
// whole session down; losing the upstream is terminal for the session.
func (s *Session) forwardUpstream(ctx context.Context, up UpstreamConn) {
	defer s.teardown()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-up.Errors():
			if err != nil {
				s.logger.Printf("relay: upstream error for session %s: %v", s.id, err)
			}
			return

		case frame, ok := <-up.Frames():
			if !ok {
				s.logger.Printf("relay: upstream closed for session %s", s.id)
				return
			}

			ev, ok := s.translator.translate(frame)
			if !ok {
				continue
			}
			if _, done := ev.(responseDoneEvent); done {
				s.cfg.Events.LogAsync(s.id, eventlog.EventTurnCompleted, nil)
			}
			if err := s.sendEvent(ev); err != nil {
				s.logger.Printf("relay: client write failed for session %s: %v", s.id, err)
				return
			}
		}
	}
}

func (s *Session) sendEvent(ev clientEvent) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.client.WriteJSON(ev)
}

// teardown releases everything exactly once: cancel the loops, close both
// connections, unregister. Closing already-closed connections is harmless.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosing
		up := s.upstream
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if up != nil {
			_ = up.Close()
		}
		_ = s.client.Close()

		if s.cfg.Registry != nil {
			s.cfg.Registry.Unregister(s)
		}

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		s.cfg.Events.LogAsync(s.id, eventlog.EventSessionEnded, nil)
		s.logger.Printf("relay: session %s closed", s.id)
	})
}

func newSessionID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "session-unknown"
	}
	return hex.EncodeToString(b[:])
}
