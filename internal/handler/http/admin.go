package http

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adiwena/gobiz-bridge/internal/domain"
	"github.com/adiwena/gobiz-bridge/internal/gobiz"
	"github.com/adiwena/gobiz-bridge/internal/repository"
	apperrors "github.com/adiwena/gobiz-bridge/pkg/errors"
	"github.com/adiwena/gobiz-bridge/pkg/httputil"
	"github.com/adiwena/gobiz-bridge/pkg/validator"
)

// AdminHandler serves the operator surface: user and API key management.
type AdminHandler struct {
	users  repository.UserRepository
	keys   repository.APIKeyRepository
	engine *gobiz.Engine
	logger *slog.Logger
}

func NewAdminHandler(users repository.UserRepository, keys repository.APIKeyRepository, engine *gobiz.Engine, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, keys: keys, engine: engine, logger: logger}
}

// newAPIKey mints the plaintext key material. The pk_ prefix makes leaked
// keys greppable.
func newAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "pk_" + hex.EncodeToString(buf), nil
}

type createUserRequest struct {
	UserID  string `json:"userId"`
	KeyName string `json:"keyName"`
}

type keyView struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Revoked    bool       `json:"revoked"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toKeyView(k *domain.APIKey) keyView {
	return keyView{
		ID:         k.ID,
		Name:       k.Name,
		Revoked:    !k.Active(),
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
	}
}

// CreateUser registers a user and issues their first API key. The plaintext
// key appears in this response only; the database keeps the digest.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	// An empty body is fine; every field has a default.
	_ = validator.DecodeAndValidate(r, &req)

	userID := req.UserID
	if userID == "" {
		userID = uuid.NewString()
	}
	keyName := req.KeyName
	if keyName == "" {
		keyName = "default"
	}

	if err := h.users.Ensure(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	plaintext, err := newAPIKey()
	if err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}
	key := &domain.APIKey{UserID: userID, KeyHash: hashKey(plaintext), Name: keyName}
	if err := h.keys.Create(r.Context(), key); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.logger.InfoContext(r.Context(), "user created",
		slog.String("user_id", userID),
		slog.Int64("key_id", key.ID),
	)
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: map[string]any{
		"userId": userID,
		"apiKey": plaintext,
		"keyId":  key.ID,
	}})
}

type userView struct {
	ID             string    `json:"id"`
	MerchantID     string    `json:"merchantId,omitempty"`
	HasCredentials bool      `json:"hasCredentials"`
	ActiveKeys     int       `json:"activeKeys"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ListUsers returns every registered user with their active key count.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		keys, err := h.keys.List(r.Context(), u.ID)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		active := 0
		for _, k := range keys {
			if k.Active() {
				active++
			}
		}
		views = append(views, userView{
			ID:             u.ID,
			MerchantID:     u.MerchantID,
			HasCredentials: u.HasCredentials(),
			ActiveKeys:     active,
			CreatedAt:      u.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: views})
}

type createKeyRequest struct {
	Name string `json:"name"`
}

// CreateKey issues an additional API key for an existing user.
func (h *AdminHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, err := h.users.Get(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req createKeyRequest
	_ = validator.DecodeAndValidate(r, &req)
	if req.Name == "" {
		req.Name = "default"
	}

	plaintext, err := newAPIKey()
	if err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}
	key := &domain.APIKey{UserID: userID, KeyHash: hashKey(plaintext), Name: req.Name}
	if err := h.keys.Create(r.Context(), key); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: map[string]any{
		"userId": userID,
		"apiKey": plaintext,
		"keyId":  key.ID,
	}})
}

// ListKeys returns a user's keys, digests omitted.
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	keys, err := h.keys.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	views := make([]keyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, toKeyView(k))
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: views})
}

// RevokeKey disables an API key. Cached auth entries age out within the
// cache TTL.
func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "keyID"), 10, 64)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("key id must be an integer"), h.logger)
		return
	}

	if err := h.keys.Revoke(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.logger.InfoContext(r.Context(), "api key revoked", slog.Int64("key_id", id))
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]bool{"ok": true}})
}

// ForceLogout clears a user's vendor session and stored credentials.
func (h *AdminHandler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.engine.Logout(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]bool{"ok": true}})
}

// DeleteUser logs the user out and removes them, keys included.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.engine.Logout(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := h.users.Delete(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.logger.InfoContext(r.Context(), "user deleted", slog.String("user_id", userID))
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]bool{"ok": true}})
}
