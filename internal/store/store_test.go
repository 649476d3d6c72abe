package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// getTestDB returns a database pool for testing.
// Skips the test if DATABASE_URL is not set.
func getTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	return db
}

// createTestUser inserts a user with a unique email and returns it.
func createTestUser(t *testing.T, s *Store) *User {
	t.Helper()
	email := "test-" + time.Now().Format("150405.000000") + "@example.com"
	user, err := s.CreateUser(context.Background(), email, "fake-hash")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func TestUserOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	user := createTestUser(t, s)
	if user.ID == "" {
		t.Error("user ID should not be empty")
	}

	// GetUserByEmail
	found, err := s.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if found.ID != user.ID {
		t.Errorf("found user ID = %q, want %q", found.ID, user.ID)
	}
	if found.PasswordHash != "fake-hash" {
		t.Errorf("password hash = %q, want %q", found.PasswordHash, "fake-hash")
	}

	// GetUserByID
	found2, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if found2.Email != user.Email {
		t.Errorf("found2 email = %q, want %q", found2.Email, user.Email)
	}

	// EmailExists
	exists, err := s.EmailExists(ctx, user.Email)
	if err != nil {
		t.Fatalf("EmailExists failed: %v", err)
	}
	if !exists {
		t.Error("EmailExists = false for registered email")
	}
	exists, _ = s.EmailExists(ctx, "nobody-"+user.Email)
	if exists {
		t.Error("EmailExists = true for unknown email")
	}

	// Duplicate email must fail
	if _, err := s.CreateUser(ctx, user.Email, "other-hash"); err == nil {
		t.Error("CreateUser with duplicate email should fail")
	}

	// UpdateUserName
	if err := s.UpdateUserName(ctx, user.ID, "Test User"); err != nil {
		t.Fatalf("UpdateUserName failed: %v", err)
	}
	found3, _ := s.GetUserByID(ctx, user.ID)
	if found3.Name == nil || *found3.Name != "Test User" {
		t.Errorf("user name = %v, want %q", found3.Name, "Test User")
	}

	// Cleanup
	_, _ = db.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID)
}

func TestSessionOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	user := createTestUser(t, s)

	tokenHash := "test-token-hash-" + time.Now().Format("150405.000000")
	expiresAt := time.Now().Add(24 * time.Hour)
	if err := s.CreateSession(ctx, user.ID, tokenHash, expiresAt); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	valid, err := s.IsSessionValid(ctx, tokenHash)
	if err != nil {
		t.Fatalf("IsSessionValid failed: %v", err)
	}
	if !valid {
		t.Error("session should be valid")
	}

	if err := s.RevokeSession(ctx, tokenHash); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}

	valid2, err := s.IsSessionValid(ctx, tokenHash)
	if err != nil {
		t.Fatalf("IsSessionValid after revoke failed: %v", err)
	}
	if valid2 {
		t.Error("session should be invalid after revocation")
	}

	// Cleanup
	_, _ = db.Exec(ctx, "DELETE FROM user_sessions WHERE user_id = $1", user.ID)
	_, _ = db.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID)
}

func TestExpiredSessionInvalid(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	user := createTestUser(t, s)

	tokenHash := "expired-token-" + time.Now().Format("150405.000000")
	if err := s.CreateSession(ctx, user.ID, tokenHash, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	valid, err := s.IsSessionValid(ctx, tokenHash)
	if err != nil {
		t.Fatalf("IsSessionValid failed: %v", err)
	}
	if valid {
		t.Error("expired session should be invalid")
	}

	n, err := s.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if n < 1 {
		t.Errorf("DeleteExpiredSessions removed %d rows, want at least 1", n)
	}

	// Cleanup
	_, _ = db.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID)
}

func TestAPIKeyOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	user := createTestUser(t, s)

	key, err := s.CreateAPIKey(ctx, user.ID, "Production", "openai", "ciphertext==", "...f456")
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}
	if !key.IsActive {
		t.Error("new key should be active")
	}
	if key.KeyPreview != "...f456" {
		t.Errorf("key preview = %q", key.KeyPreview)
	}

	// GetAPIKey
	found, err := s.GetAPIKey(ctx, key.ID)
	if err != nil {
		t.Fatalf("GetAPIKey failed: %v", err)
	}
	if found.EncryptedKey != "ciphertext==" {
		t.Errorf("encrypted key = %q", found.EncryptedKey)
	}

	// ListAPIKeysByUser
	keys, err := s.ListAPIKeysByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListAPIKeysByUser failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}

	// Deactivate
	n, err := s.SetAPIKeyActive(ctx, key.ID, user.ID, false)
	if err != nil {
		t.Fatalf("SetAPIKeyActive failed: %v", err)
	}
	if n != 1 {
		t.Errorf("SetAPIKeyActive affected %d rows, want 1", n)
	}
	found2, _ := s.GetAPIKey(ctx, key.ID)
	if found2.IsActive {
		t.Error("key should be inactive")
	}

	// Wrong owner cannot delete
	n, err = s.DeleteAPIKey(ctx, key.ID, "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("DeleteAPIKey (foreign) failed: %v", err)
	}
	if n != 0 {
		t.Errorf("foreign delete affected %d rows, want 0", n)
	}

	// Owner delete
	n, err = s.DeleteAPIKey(ctx, key.ID, user.ID)
	if err != nil {
		t.Fatalf("DeleteAPIKey failed: %v", err)
	}
	if n != 1 {
		t.Errorf("delete affected %d rows, want 1", n)
	}

	// Cleanup
	_, _ = db.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID)
}

func TestAgentOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	user := createTestUser(t, s)
	key, err := s.CreateAPIKey(ctx, user.ID, "Key", "openai", "ciphertext==", "...f456")
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	agent, err := s.CreateAgent(ctx, Agent{
		UserID:         user.ID,
		Name:           "Support Bot",
		Instructions:   "Answer support questions.",
		Voice:          "alloy",
		Domain:         "example.com",
		APIKeyID:       &key.ID,
		NoiseMode:      "near_field",
		NoiseThreshold: "0.6",
	})
	if err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	if agent.ID == 0 {
		t.Error("agent ID should be set")
	}
	if !agent.IsActive {
		t.Error("new agent should be active")
	}

	// GetAgent (relay path, active only)
	found, err := s.GetAgent(ctx, agent.ID)
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if found.Domain != "example.com" {
		t.Errorf("agent domain = %q", found.Domain)
	}

	// GetAgentForUser with wrong owner
	if _, err := s.GetAgentForUser(ctx, agent.ID, "00000000-0000-0000-0000-000000000000"); !IsNotFound(err) {
		t.Errorf("foreign GetAgentForUser error = %v, want no rows", err)
	}

	// ListAgentsByUser
	agents, err := s.ListAgentsByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListAgentsByUser failed: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("got %d agents, want 1", len(agents))
	}

	// UpdateAgent
	agent.Name = "Sales Bot"
	agent.IsActive = false
	updated, err := s.UpdateAgent(ctx, agent.ID, user.ID, *agent)
	if err != nil {
		t.Fatalf("UpdateAgent failed: %v", err)
	}
	if updated.Name != "Sales Bot" {
		t.Errorf("updated name = %q", updated.Name)
	}

	// Inactive agents are invisible to the relay lookup
	if _, err := s.GetAgent(ctx, agent.ID); !IsNotFound(err) {
		t.Errorf("GetAgent on inactive agent error = %v, want no rows", err)
	}

	// DeleteAgent
	n, err := s.DeleteAgent(ctx, agent.ID, user.ID)
	if err != nil {
		t.Fatalf("DeleteAgent failed: %v", err)
	}
	if n != 1 {
		t.Errorf("delete affected %d rows, want 1", n)
	}

	// Cleanup
	_, _ = db.Exec(ctx, "DELETE FROM api_keys WHERE user_id = $1", user.ID)
	_, _ = db.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID)
}

func TestPromptOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	user := createTestUser(t, s)

	prompt, err := s.CreatePrompt(ctx, user.ID, "Pirate", "You are a pirate.")
	if err != nil {
		t.Fatalf("CreatePrompt failed: %v", err)
	}

	found, err := s.GetPromptForUser(ctx, prompt.ID, user.ID)
	if err != nil {
		t.Fatalf("GetPromptForUser failed: %v", err)
	}
	if found.Content != "You are a pirate." {
		t.Errorf("content = %q", found.Content)
	}

	updated, err := s.UpdatePrompt(ctx, prompt.ID, user.ID, "Pirate v2", "You are a polite pirate.")
	if err != nil {
		t.Fatalf("UpdatePrompt failed: %v", err)
	}
	if updated.Name != "Pirate v2" {
		t.Errorf("updated name = %q", updated.Name)
	}

	prompts, err := s.ListPromptsByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListPromptsByUser failed: %v", err)
	}
	if len(prompts) != 1 {
		t.Fatalf("got %d prompts, want 1", len(prompts))
	}

	n, err := s.DeletePrompt(ctx, prompt.ID, user.ID)
	if err != nil {
		t.Fatalf("DeletePrompt failed: %v", err)
	}
	if n != 1 {
		t.Errorf("delete affected %d rows, want 1", n)
	}

	// Cleanup
	_, _ = db.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID)
}
