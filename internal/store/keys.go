package store

import (
	"context"
	"time"
)

// APIKey represents an upstream provider credential. The key material is
// encrypted before it reaches the store; EncryptedKey is never serialized.
type APIKey struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Provider     string    `json:"provider"`
	EncryptedKey string    `json:"-"`
	KeyPreview   string    `json:"key_preview"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateAPIKey stores an encrypted credential and returns the record.
func (s *Store) CreateAPIKey(ctx context.Context, userID, name, provider, encryptedKey, keyPreview string) (*APIKey, error) {
	var k APIKey
	err := s.db.QueryRow(ctx, `
		INSERT INTO api_keys (user_id, name, provider, encrypted_key, key_preview)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, name, provider, encrypted_key, key_preview, is_active, created_at
	`, userID, name, provider, encryptedKey, keyPreview).Scan(
		&k.ID, &k.UserID, &k.Name, &k.Provider, &k.EncryptedKey, &k.KeyPreview, &k.IsActive, &k.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// GetAPIKey retrieves a key by ID regardless of owner. Used by the relay to
// resolve an agent's credential.
func (s *Store) GetAPIKey(ctx context.Context, id int64) (*APIKey, error) {
	var k APIKey
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, provider, encrypted_key, key_preview, is_active, created_at
		FROM api_keys
		WHERE id = $1
	`, id).Scan(
		&k.ID, &k.UserID, &k.Name, &k.Provider, &k.EncryptedKey, &k.KeyPreview, &k.IsActive, &k.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// ListAPIKeysByUser lists a user's keys, newest first. Encrypted material is
// included; handlers must not serialize it.
func (s *Store) ListAPIKeysByUser(ctx context.Context, userID string) ([]APIKey, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, provider, encrypted_key, key_preview, is_active, created_at
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []APIKey{}
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.Provider, &k.EncryptedKey,
			&k.KeyPreview, &k.IsActive, &k.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// SetAPIKeyActive toggles a key. Returns rows affected (0 when not owned).
func (s *Store) SetAPIKeyActive(ctx context.Context, id int64, userID string, active bool) (int64, error) {
	result, err := s.db.Exec(ctx, `
		UPDATE api_keys SET is_active = $3 WHERE id = $1 AND user_id = $2
	`, id, userID, active)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// DeleteAPIKey removes a key owned by the user. Agents referencing it keep a
// NULL api_key_id afterwards and fail credential resolution until rewired.
func (s *Store) DeleteAPIKey(ctx context.Context, id int64, userID string) (int64, error) {
	result, err := s.db.Exec(ctx, `
		DELETE FROM api_keys WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
