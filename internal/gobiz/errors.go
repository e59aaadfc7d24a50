package gobiz

import (
	"errors"
	"fmt"
)

// ErrNoRefreshToken is returned when a refresh is attempted for a session
// that holds no refresh token.
var ErrNoRefreshToken = errors.New("no refresh token")

// ErrMerchantNotFound is returned when the merchant search yields no hits.
var ErrMerchantNotFound = errors.New("merchant not found")

// AuthFlowError reports a failed auth flow against the vendor's identity
// endpoints, carrying the flow name and the HTTP status the vendor returned.
type AuthFlowError struct {
	Flow   string // "refresh", "login", "otp_request", "otp_verify"
	Status int
}

func (e *AuthFlowError) Error() string {
	return fmt.Sprintf("%s failed: vendor returned status %d", e.Flow, e.Status)
}

// maxErrorBodyLen bounds how much of a vendor error body is kept. Vendor
// errors can embed whole HTML pages.
const maxErrorBodyLen = 300

// HTTPError reports a non-2xx response from an authenticated vendor call.
// Body is truncated to maxErrorBodyLen.
type HTTPError struct {
	Status int
	Body   string
}

func newHTTPError(status int, body []byte) *HTTPError {
	s := string(body)
	if len(s) > maxErrorBodyLen {
		s = s[:maxErrorBodyLen]
	}
	return &HTTPError{Status: status, Body: s}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("vendor returned status %d: %s", e.Status, e.Body)
}
