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

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Ensure creates the user row if it does not exist yet.
func (r *UserRepository) Ensure(ctx context.Context, id string) error {
	query := `
		INSERT INTO users (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// Get retrieves a user by id.
func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, access_token_enc, refresh_token_enc, COALESCE(token_expiry, 0), COALESCE(merchant_id, ''), created_at, updated_at
		FROM users
		WHERE id = $1`

	var u domain.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.AccessTokenEnc,
		&u.RefreshTokenEnc,
		&u.TokenExpiry,
		&u.MerchantID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// List returns all users ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT id, access_token_enc, refresh_token_enc, COALESCE(token_expiry, 0), COALESCE(merchant_id, ''), created_at, updated_at
		FROM users
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID,
			&u.AccessTokenEnc,
			&u.RefreshTokenEnc,
			&u.TokenExpiry,
			&u.MerchantID,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SaveCredentials stores the encrypted token pair and its expiry.
func (r *UserRepository) SaveCredentials(ctx context.Context, id string, accessEnc, refreshEnc []byte, tokenExpiry int64) error {
	query := `
		UPDATE users
		SET access_token_enc = $1, refresh_token_enc = $2, token_expiry = $3, updated_at = NOW()
		WHERE id = $4`

	ct, err := r.db.Exec(ctx, query, accessEnc, refreshEnc, tokenExpiry, id)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// SaveMerchantID stores the resolved merchant binding.
func (r *UserRepository) SaveMerchantID(ctx context.Context, id, merchantID string) error {
	query := `
		UPDATE users
		SET merchant_id = $1, updated_at = NOW()
		WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, merchantID, id)
	if err != nil {
		return fmt.Errorf("save merchant id: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// ClearCredentials nulls out the token columns and the merchant binding,
// leaving the row as Ensure first created it.
func (r *UserRepository) ClearCredentials(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET access_token_enc = NULL, refresh_token_enc = NULL, token_expiry = NULL, merchant_id = NULL, updated_at = NOW()
		WHERE id = $1`

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// Delete removes a user. API keys cascade at the schema level.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}
