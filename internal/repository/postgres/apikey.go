package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/adiwena/gobiz-bridge/internal/domain"
	"github.com/adiwena/gobiz-bridge/pkg/database"
	apperrors "github.com/adiwena/gobiz-bridge/pkg/errors"
)

// APIKeyRepository implements repository.APIKeyRepository using PostgreSQL.
type APIKeyRepository struct {
	db database.DBTX
}

// NewAPIKeyRepository creates a PostgreSQL-backed API key repository.
func NewAPIKeyRepository(db database.DBTX) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create inserts a key and fills in its generated id and creation time.
func (r *APIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	query := `
		INSERT INTO api_keys (user_id, key_hash, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, key.UserID, key.KeyHash, key.Name).Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("api key already exists for this user")
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// FindActive returns the non-revoked key matching the digest.
func (r *APIKeyRepository) FindActive(ctx context.Context, userID, keyHash string) (*domain.APIKey, error) {
	query := `
		SELECT id, user_id, key_hash, name, revoked_at, last_used_at, created_at
		FROM api_keys
		WHERE user_id = $1 AND key_hash = $2 AND revoked_at IS NULL`

	var k domain.APIKey
	err := r.db.QueryRow(ctx, query, userID, keyHash).Scan(
		&k.ID,
		&k.UserID,
		&k.KeyHash,
		&k.Name,
		&k.RevokedAt,
		&k.LastUsedAt,
		&k.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("api key", keyHash[:8])
		}
		return nil, fmt.Errorf("find api key: %w", err)
	}
	return &k, nil
}

// List returns all keys for a user, newest first.
func (r *APIKeyRepository) List(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	query := `
		SELECT id, user_id, key_hash, name, revoked_at, last_used_at, created_at
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*domain.APIKey
	for rows.Next() {
		var k domain.APIKey
		if err := rows.Scan(
			&k.ID,
			&k.UserID,
			&k.KeyHash,
			&k.Name,
			&k.RevokedAt,
			&k.LastUsedAt,
			&k.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

// Revoke marks a key revoked. Revoking an already-revoked key is a no-op
// error so callers can surface it.
func (r *APIKeyRepository) Revoke(ctx context.Context, id int64) error {
	query := `
		UPDATE api_keys
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL`

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("api key", fmt.Sprintf("%d", id))
	}
	return nil
}

// TouchLastUsed updates the last-used timestamp.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}
