package domain

import "time"

// User is a registered bridge user with optionally stored vendor credentials.
// Token columns hold AES-GCM envelopes, never plaintext.
type User struct {
	ID              string
	AccessTokenEnc  []byte
	RefreshTokenEnc []byte
	TokenExpiry     int64
	MerchantID      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasCredentials reports whether any vendor credential is stored.
func (u *User) HasCredentials() bool {
	return len(u.AccessTokenEnc) > 0 || len(u.RefreshTokenEnc) > 0
}

// APIKey identifies one issued bridge API key. Only the SHA-256 digest of the
// key material is stored.
type APIKey struct {
	ID         int64
	UserID     string
	KeyHash    string
	Name       string
	RevokedAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Active reports whether the key is usable.
func (k *APIKey) Active() bool {
	return k.RevokedAt == nil
}
