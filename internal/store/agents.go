package store

import (
	"context"
	"encoding/json"
	"time"
)

// Agent represents a configured voice agent. Extra holds free-form session
// parameters stored as JSON.
type Agent struct {
	ID           int64   `json:"id"`
	UserID       string  `json:"user_id"`
	Name         string  `json:"name"`
	Instructions string  `json:"instructions"`
	Voice        string  `json:"voice"`
	Domain       string  `json:"domain"`
	APIKeyID     *int64  `json:"api_key_id,omitempty"`

	NoiseMode         string `json:"noise_mode"`
	NoiseThreshold    string `json:"noise_threshold"`
	PrefixPaddingMs   int    `json:"prefix_padding_ms"`
	SilenceDurationMs int    `json:"silence_duration_ms"`

	Extra json.RawMessage `json:"extra,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const agentColumns = `
	id, user_id, name, instructions, voice, domain, api_key_id,
	noise_mode, noise_threshold, prefix_padding_ms, silence_duration_ms,
	extra, is_active, created_at, updated_at`

func scanAgent(row interface{ Scan(dest ...any) error }) (*Agent, error) {
	var a Agent
	var extra []byte
	err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.Instructions, &a.Voice, &a.Domain, &a.APIKeyID,
		&a.NoiseMode, &a.NoiseThreshold, &a.PrefixPaddingMs, &a.SilenceDurationMs,
		&extra, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		a.Extra = json.RawMessage(extra)
	}
	return &a, nil
}

// CreateAgent inserts an agent for a user and returns it.
func (s *Store) CreateAgent(ctx context.Context, a Agent) (*Agent, error) {
	extra := a.Extra
	if len(extra) == 0 {
		extra = json.RawMessage(`{}`)
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO agents (user_id, name, instructions, voice, domain, api_key_id,
		                    noise_mode, noise_threshold, prefix_padding_ms, silence_duration_ms, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING`+agentColumns,
		a.UserID, a.Name, a.Instructions, a.Voice, a.Domain, a.APIKeyID,
		a.NoiseMode, a.NoiseThreshold, a.PrefixPaddingMs, a.SilenceDurationMs, extra)
	return scanAgent(row)
}

// GetAgent retrieves an agent by ID regardless of owner. Used by the relay,
// which authorizes by origin rather than by user.
func (s *Store) GetAgent(ctx context.Context, id int64) (*Agent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+agentColumns+`
		FROM agents
		WHERE id = $1 AND is_active = true
	`, id)
	return scanAgent(row)
}

// GetAgentForUser retrieves an agent owned by a specific user.
func (s *Store) GetAgentForUser(ctx context.Context, id int64, userID string) (*Agent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+agentColumns+`
		FROM agents
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	return scanAgent(row)
}

// ListAgentsByUser lists a user's agents, newest first.
func (s *Store) ListAgentsByUser(ctx context.Context, userID string) ([]Agent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+agentColumns+`
		FROM agents
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := []Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// UpdateAgent updates an agent's settings. Only the owner's rows match, so a
// foreign ID is a no-rows error.
func (s *Store) UpdateAgent(ctx context.Context, id int64, userID string, a Agent) (*Agent, error) {
	extra := a.Extra
	if len(extra) == 0 {
		extra = json.RawMessage(`{}`)
	}
	row := s.db.QueryRow(ctx, `
		UPDATE agents
		SET name = $3, instructions = $4, voice = $5, domain = $6, api_key_id = $7,
		    noise_mode = $8, noise_threshold = $9, prefix_padding_ms = $10,
		    silence_duration_ms = $11, extra = $12, is_active = $13, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING`+agentColumns,
		id, userID, a.Name, a.Instructions, a.Voice, a.Domain, a.APIKeyID,
		a.NoiseMode, a.NoiseThreshold, a.PrefixPaddingMs, a.SilenceDurationMs,
		extra, a.IsActive)
	return scanAgent(row)
}

// DeleteAgent removes an agent owned by the user. Returns the number of rows
// affected (0 when the agent does not exist or belongs to someone else).
func (s *Store) DeleteAgent(ctx context.Context, id int64, userID string) (int64, error) {
	result, err := s.db.Exec(ctx, `
		DELETE FROM agents WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
