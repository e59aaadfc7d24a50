package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/adiwena/gobiz-bridge/internal/gobiz"
	apperrors "github.com/adiwena/gobiz-bridge/pkg/errors"
	"github.com/adiwena/gobiz-bridge/pkg/httputil"
	"github.com/adiwena/gobiz-bridge/pkg/middleware"
	"github.com/adiwena/gobiz-bridge/pkg/validator"
)

// SessionHandler serves the authenticated session surface: status, login
// flows, and merchant resolution.
type SessionHandler struct {
	engine *gobiz.Engine
	logger *slog.Logger
}

func NewSessionHandler(engine *gobiz.Engine, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{engine: engine, logger: logger}
}

// mapVendorError translates engine failures into the API error taxonomy.
// Rejected auth flows surface as 401s; everything else the vendor did wrong
// is an upstream error.
func mapVendorError(err error) error {
	var flowErr *gobiz.AuthFlowError
	if errors.As(err, &flowErr) {
		switch flowErr.Status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.Unauthorized(fmt.Sprintf("vendor rejected %s (status %d)", flowErr.Flow, flowErr.Status))
		default:
			return apperrors.Upstream(flowErr.Error())
		}
	}
	if errors.Is(err, gobiz.ErrNoRefreshToken) {
		return apperrors.Unauthorized("no vendor session; log in first")
	}
	if errors.Is(err, gobiz.ErrMerchantNotFound) {
		return &apperrors.AppError{
			Code:    "MERCHANT_NOT_FOUND",
			Message: "no merchant found for this account",
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		}
	}
	var httpErr *gobiz.HTTPError
	if errors.As(err, &httpErr) {
		return apperrors.Upstream(httpErr.Error())
	}
	return err
}

// Me reports the caller's session status.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.engine.Status(userID)})
}

type emailLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthEmail performs the email/password login flow against the vendor.
func (h *SessionHandler) AuthEmail(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req emailLoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.engine.LoginWithEmail(r.Context(), userID, req.Email, req.Password); err != nil {
		httputil.WriteError(w, r, mapVendorError(err), h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.engine.Status(userID)})
}

type otpRequestRequest struct {
	Phone       string `json:"phone" validate:"required"`
	CountryCode string `json:"countryCode"`
}

// OTPRequest asks the vendor to send a login OTP. The response body is the
// vendor payload carrying the otp_token needed by the verify step.
func (h *SessionHandler) OTPRequest(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req otpRequestRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	data, err := h.engine.RequestOTP(r.Context(), userID, req.Phone, req.CountryCode)
	if err != nil {
		httputil.WriteError(w, r, mapVendorError(err), h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: json.RawMessage(data)})
}

type otpVerifyRequest struct {
	OTP      string `json:"otp" validate:"required"`
	OTPToken string `json:"otpToken" validate:"required"`
}

// OTPVerify exchanges an OTP for a vendor session.
func (h *SessionHandler) OTPVerify(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req otpVerifyRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.engine.VerifyOTP(r.Context(), userID, req.OTP, req.OTPToken); err != nil {
		httputil.WriteError(w, r, mapVendorError(err), h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.engine.Status(userID)})
}

// Merchant resolves and returns the caller's merchant id.
func (h *SessionHandler) Merchant(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	merchantID, err := h.engine.MerchantID(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, mapVendorError(err), h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"merchantId": merchantID}})
}

// Logout clears the vendor session and stored credentials.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	if err := h.engine.Logout(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]bool{"ok": true}})
}
