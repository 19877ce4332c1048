package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInternalServer         = errors.New("Internal server error")
	ErrClient                 = errors.New("Bad request")
	ErrNotLoggedIn            = errors.New("Unauthorized access")
	ErrNotFound               = errors.New("Resource not found")
	ErrPaymentExpired         = errors.New("Payment for this transaction has expired")
	ErrIPNSignatureMismatch   = errors.New("IPN signature verification failed")
	ErrIPNMerchantMismatch    = errors.New("IPN merchant id does not match the configured merchant")
	ErrIPNTransactionMismatch = errors.New("IPN correlation value does not match the addressed transaction")
)

// UpstreamError is returned when the payment provider answers with a non-"ok"
// error string, or when the call to it fails outright. It is never retried
// automatically; the message is surfaced to the admin or buyer as the
// failure reason.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("payment provider error: %s", e.Message)
}

// ConfigurationInvalidError is raised when a settings self-test fails. It
// blocks saving the candidate settings.
type ConfigurationInvalidError struct {
	Message string
	Code    int
}

func (e *ConfigurationInvalidError) Error() string {
	return fmt.Sprintf("gateway configuration invalid: %s", e.Message)
}

// InternalInvariantError marks a code path that should be unreachable, such
// as the provider returning neither a success nor an error. It indicates a
// provider contract change and should alert operators.
type InternalInvariantError struct {
	Op string
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated in %s: provider returned neither success nor error", e.Op)
}

var errorMap = map[error]int{
	ErrInternalServer:         http.StatusInternalServerError,
	ErrClient:                 http.StatusBadRequest,
	ErrNotLoggedIn:            http.StatusUnauthorized,
	ErrNotFound:               http.StatusNotFound,
	ErrPaymentExpired:         http.StatusForbidden,
	ErrIPNSignatureMismatch:   http.StatusUnauthorized,
	ErrIPNMerchantMismatch:    http.StatusUnauthorized,
	ErrIPNTransactionMismatch: http.StatusUnauthorized,
}

func GetErrorStatusCode(err error) int {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return http.StatusBadGateway
	}

	var config *ConfigurationInvalidError
	if errors.As(err, &config) {
		return http.StatusBadRequest
	}

	var invariant *InternalInvariantError
	if errors.As(err, &invariant) {
		return http.StatusInternalServerError
	}

	errStatusCode, ok := errorMap[err]
	if !ok {
		errStatusCode = http.StatusInternalServerError
	}
	return errStatusCode
}
