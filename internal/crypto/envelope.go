// Package crypto encrypts stored vendor credentials with AES-256-GCM
// envelopes. Each envelope records the key id that sealed it, so keys can be
// rotated without re-encrypting existing rows.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEncryptedPayload is returned when an envelope is malformed, was
// sealed with an unknown key, or fails authentication. Decryption is
// fail-closed: no partial plaintext is ever returned.
var ErrInvalidEncryptedPayload = errors.New("invalid encrypted payload")

const gcmNonceSize = 12

// Envelope is the stored form of an encrypted string.
type Envelope struct {
	Kid  string `json:"kid"`
	IV   string `json:"iv"`
	Tag  string `json:"tag"`
	Data string `json:"data"`
}

// Keyring holds the decryption keys by kid and the kid used for new
// envelopes.
type Keyring struct {
	activeKid string
	keys      map[string][]byte
}

// NewKeyring builds a keyring from hex-encoded 32-byte keys. activeKid must
// be present in keys.
func NewKeyring(activeKid string, hexKeys map[string]string) (*Keyring, error) {
	if len(hexKeys) == 0 {
		return nil, errors.New("keyring: no keys")
	}
	keys := make(map[string][]byte, len(hexKeys))
	for kid, h := range hexKeys {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("keyring: key %q is not hex: %w", kid, err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("keyring: key %q must be 32 bytes, got %d", kid, len(raw))
		}
		keys[kid] = raw
	}
	if _, ok := keys[activeKid]; !ok {
		return nil, fmt.Errorf("keyring: active kid %q not present", activeKid)
	}
	return &Keyring{activeKid: activeKid, keys: keys}, nil
}

// aead returns the GCM cipher for a key id. Unknown kids fail closed.
func (k *Keyring) aead(kid string) (cipher.AEAD, error) {
	key, ok := k.keys[kid]
	if !ok {
		return nil, ErrInvalidEncryptedPayload
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keyring: cipher for kid %q: %w", kid, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyring: gcm for kid %q: %w", kid, err)
	}
	return gcm, nil
}

// EncryptString seals plaintext under the active key.
func (k *Keyring) EncryptString(plaintext string) (*Envelope, error) {
	gcm, err := k.aead(k.activeKid)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	// Store ciphertext and GCM tag separately.
	tagStart := len(sealed) - gcm.Overhead()

	return &Envelope{
		Kid:  k.activeKid,
		IV:   base64.StdEncoding.EncodeToString(nonce),
		Tag:  base64.StdEncoding.EncodeToString(sealed[tagStart:]),
		Data: base64.StdEncoding.EncodeToString(sealed[:tagStart]),
	}, nil
}

// DecryptString opens an envelope. Any malformed field, unknown kid, or
// authentication failure yields ErrInvalidEncryptedPayload.
func (k *Keyring) DecryptString(env *Envelope) (string, error) {
	if env == nil || env.Kid == "" || env.IV == "" || env.Tag == "" || env.Data == "" {
		return "", ErrInvalidEncryptedPayload
	}

	gcm, err := k.aead(env.Kid)
	if err != nil {
		return "", ErrInvalidEncryptedPayload
	}

	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(nonce) != gcmNonceSize {
		return "", ErrInvalidEncryptedPayload
	}
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return "", ErrInvalidEncryptedPayload
	}
	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return "", ErrInvalidEncryptedPayload
	}

	plaintext, err := gcm.Open(nil, nonce, append(data, tag...), nil)
	if err != nil {
		return "", ErrInvalidEncryptedPayload
	}
	return string(plaintext), nil
}

// EncryptJSON seals plaintext and returns the envelope serialized as JSON,
// the form stored in credential columns.
func (k *Keyring) EncryptJSON(plaintext string) ([]byte, error) {
	env, err := k.EncryptString(plaintext)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// TryDecryptJSON opens a JSON-serialized envelope, returning "" for empty or
// undecryptable input. Used on the hydration path where a broken row must
// not take the whole session down.
func (k *Keyring) TryDecryptJSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	plaintext, err := k.DecryptString(&env)
	if err != nil {
		return ""
	}
	return plaintext
}
