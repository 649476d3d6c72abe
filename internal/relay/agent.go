package relay

import "context"

// Noise reduction modes supported by the upstream voice-activity detection.
const (
	NoiseModeNearField = "near_field"
	NoiseModeFarField  = "far_field"
)

// AgentConfig is a read-only snapshot of an agent record. The relay never
// writes back to the directory; each session holds its own copy.
type AgentConfig struct {
	ID           int64
	Name         string
	Instructions string
	Voice        string
	Domain       string

	NoiseMode         string
	NoiseThreshold    string // numeric 0-1 as text, parsed when building the session init
	PrefixPaddingMs   int
	SilenceDurationMs int

	// Extra holds free-form session parameters. Keys colliding with the
	// reserved session keys are dropped when the init frame is built.
	Extra map[string]any

	// KeyID references the upstream credential record for this agent.
	KeyID int64
}

// AgentDirectory resolves agent identifiers to configuration snapshots.
// Returns ErrAgentNotFound for unknown identifiers.
type AgentDirectory interface {
	GetAgent(ctx context.Context, id int64) (*AgentConfig, error)
}

// CredentialSource resolves an agent's credential reference to the plaintext
// upstream secret. Returns ErrNoUsableKey when the record is missing or
// inactive, or a decrypt error from the secrets layer.
type CredentialSource interface {
	UpstreamSecret(ctx context.Context, keyID int64) (string, error)
}
