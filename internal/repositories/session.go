package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/fleetroute/internal/models"
)

// SessionRepository persists the single logged-in session.
//
// It implements auth.SessionPersister.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Load returns the stored session, or nil when nobody is logged in.
func (r *SessionRepository) Load() (*models.StoredSession, error) {
	query := `
		SELECT identity, access_token, refresh_token, expires_at, updated_at
		FROM sessions
		WHERE id = 1
	`

	var (
		identity     string
		accessToken  sql.NullString
		refreshToken sql.NullString
		expiresAt    sql.NullTime
		updatedAt    time.Time
	)

	err := r.db.QueryRow(query).Scan(&identity, &accessToken, &refreshToken, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s := &models.StoredSession{
		AccessToken:  accessToken.String,
		RefreshToken: refreshToken.String,
		UpdatedAt:    updatedAt,
	}
	if expiresAt.Valid {
		s.ExpiresAt = expiresAt.Time
	}
	if err := json.Unmarshal([]byte(identity), &s.Identity); err != nil {
		return nil, fmt.Errorf("failed to decode stored identity: %w", err)
	}

	return s, nil
}

// Save replaces the stored session.
func (r *SessionRepository) Save(s *models.StoredSession) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	identity, err := json.Marshal(s.Identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	now := time.Now()
	s.UpdatedAt = now

	var expiresAt any
	if !s.ExpiresAt.IsZero() {
		expiresAt = s.ExpiresAt
	}

	query := `
		INSERT INTO sessions (id, user_id, identity, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			identity = excluded.identity,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query,
		s.Identity.ID,
		string(identity),
		nullString(s.AccessToken),
		nullString(s.RefreshToken),
		expiresAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Clear removes the stored session. Clearing an empty store is not an error.
func (r *SessionRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM sessions WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
