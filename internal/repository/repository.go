// Package repository defines the persistence interfaces consumed by the
// session engine and the HTTP handlers.
package repository

import (
	"context"

	"github.com/adiwena/gobiz-bridge/internal/domain"
)

// UserRepository persists users and their encrypted vendor credentials.
type UserRepository interface {
	// Ensure creates the user row if it does not exist yet.
	Ensure(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	// SaveCredentials stores the encrypted token pair and its expiry.
	SaveCredentials(ctx context.Context, id string, accessEnc, refreshEnc []byte, tokenExpiry int64) error
	SaveMerchantID(ctx context.Context, id, merchantID string) error
	// ClearCredentials wipes tokens and the merchant binding.
	ClearCredentials(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// APIKeyRepository persists issued API keys. Key material is stored as a
// SHA-256 digest only.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	// FindActive returns the non-revoked key matching the digest for the
	// given user.
	FindActive(ctx context.Context, userID, keyHash string) (*domain.APIKey, error)
	List(ctx context.Context, userID string) ([]*domain.APIKey, error)
	Revoke(ctx context.Context, id int64) error
	// TouchLastUsed updates the last-used timestamp; best-effort.
	TouchLastUsed(ctx context.Context, id int64) error
}
