package relay

import "errors"

var (
	// ErrAgentNotFound is returned by an AgentDirectory for unknown ids.
	// The session surfaces it and stays open for a corrected set_agent.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrNoUsableKey is returned by a CredentialSource when the agent's
	// credential record is missing or inactive. Terminal for the session.
	ErrNoUsableKey = errors.New("agent has no usable api key")
)
