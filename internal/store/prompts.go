package store

import (
	"context"
	"time"
)

// Prompt is a saved instruction preset for custom prompt mode.
type Prompt struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreatePrompt inserts a prompt for a user and returns it.
func (s *Store) CreatePrompt(ctx context.Context, userID, name, content string) (*Prompt, error) {
	var p Prompt
	err := s.db.QueryRow(ctx, `
		INSERT INTO prompts (user_id, name, content)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, content, created_at, updated_at
	`, userID, name, content).Scan(
		&p.ID, &p.UserID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPromptForUser retrieves a prompt owned by the user.
func (s *Store) GetPromptForUser(ctx context.Context, id int64, userID string) (*Prompt, error) {
	var p Prompt
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, content, created_at, updated_at
		FROM prompts
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(
		&p.ID, &p.UserID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPromptsByUser lists a user's prompts, newest first.
func (s *Store) ListPromptsByUser(ctx context.Context, userID string) ([]Prompt, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, content, created_at, updated_at
		FROM prompts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prompts := []Prompt{}
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// UpdatePrompt updates a prompt's name and content.
func (s *Store) UpdatePrompt(ctx context.Context, id int64, userID, name, content string) (*Prompt, error) {
	var p Prompt
	err := s.db.QueryRow(ctx, `
		UPDATE prompts
		SET name = $3, content = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, content, created_at, updated_at
	`, id, userID, name, content).Scan(
		&p.ID, &p.UserID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePrompt removes a prompt owned by the user. Returns rows affected.
func (s *Store) DeletePrompt(ctx context.Context, id int64, userID string) (int64, error) {
	result, err := s.db.Exec(ctx, `
		DELETE FROM prompts WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
