package apperrors

import (
	"errors"
	"net/http"
)

var (
	ErrValidation          = errors.New("invalid request")
	ErrQuotaExceeded       = errors.New("ticket quota exceeded")
	ErrMaxPerUserExceeded  = errors.New("per-user purchase limit exceeded")
	ErrSaleWindowClosed    = errors.New("category is not on sale")
	ErrCartExpired         = errors.New("cart has expired")
	ErrPriceMismatch       = errors.New("authorized amount does not match server price")
	ErrPaymentNotConfirmed = errors.New("payment has not been confirmed")
	ErrTicketAlreadyUsed   = errors.New("ticket already used")
	ErrTicketCancelled     = errors.New("ticket has been cancelled")
	ErrTicketNotSold       = errors.New("ticket is not in a scannable state")
	ErrZoneAccessDenied    = errors.New("ticket category has no access to this zone")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrPromoNotApplicable  = errors.New("promo code not applicable")
)

// HTTPStatus maps a service error to the status code the API surfaces.
// Unknown errors are treated as infrastructure failures.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrCartExpired),
		errors.Is(err, ErrPromoNotApplicable),
		errors.Is(err, ErrPaymentNotConfirmed):
		return http.StatusBadRequest
	case errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrMaxPerUserExceeded),
		errors.Is(err, ErrSaleWindowClosed),
		errors.Is(err, ErrPriceMismatch),
		errors.Is(err, ErrTicketAlreadyUsed),
		errors.Is(err, ErrTicketCancelled),
		errors.Is(err, ErrTicketNotSold),
		errors.Is(err, ErrZoneAccessDenied):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
