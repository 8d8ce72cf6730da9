package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON             = "INVALID_JSON"
	ErrCodeValidationFailed        = "VALIDATION_FAILED"
	ErrCodeCartEmpty               = "CART_EMPTY"
	ErrCodeInvalidCart             = "INVALID_CART"
	ErrCodeInsufficientStock       = "INSUFFICIENT_STOCK"
	ErrCodeReservationTimeout      = "RESERVATION_TIMEOUT"
	ErrCodeServiceUnavailable      = "SERVICE_UNAVAILABLE"
	ErrCodeCheckoutInProgress      = "CHECKOUT_IN_PROGRESS"
	ErrCodeOrderNotFound           = "ORDER_NOT_FOUND"
	ErrCodeInvalidStatus           = "INVALID_STATUS"
	ErrCodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	ErrCodeUnauthorised            = "UNAUTHORIZED"
	ErrCodeNotFound                = "NOT_FOUND"
	ErrCodeInternalError           = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so a variant built with
// WithMessage still satisfies errors.Is against the package sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of the error with a more specific message.
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: message,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrCartEmpty               = NewDomainError(ErrCodeCartEmpty, "Cart is empty")
	ErrInvalidCart             = NewDomainError(ErrCodeInvalidCart, "Cart contains an invalid line")
	ErrInsufficientStock       = NewDomainError(ErrCodeInsufficientStock, "Insufficient stock")
	ErrReservationTimeout      = NewDomainError(ErrCodeReservationTimeout, "Stock reservation timed out")
	ErrServiceUnavailable      = NewDomainError(ErrCodeServiceUnavailable, "A dependent service is unavailable")
	ErrCheckoutInProgress      = NewDomainError(ErrCodeCheckoutInProgress, "A checkout is already in progress for this user")
	ErrOrderNotFound           = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrInvalidStatus           = NewDomainError(ErrCodeInvalidStatus, "Unknown order status")
	ErrInvalidStatusTransition = NewDomainError(ErrCodeInvalidStatusTransition, "Order status transition is not allowed")
)
