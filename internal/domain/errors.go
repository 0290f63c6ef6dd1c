package domain

import "net/http"

// Error is a coded error surfaced to API callers. Code is stable across
// releases; HTTPStatus is the transport mapping the controller uses.
type Error struct {
	Code       string
	HTTPStatus int
	Message    string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

var (
	ErrValidation = &Error{Code: "VALIDATION_ERROR", HTTPStatus: http.StatusBadRequest,
		Message: "request is malformed or out of range"}
	ErrInvalidItems = &Error{Code: "INVALID_ITEMS", HTTPStatus: http.StatusBadRequest,
		Message: "order items are missing or exceed limits"}
	ErrProductNotFound = &Error{Code: "PRODUCT_NOT_FOUND", HTTPStatus: http.StatusBadRequest,
		Message: "a referenced product does not exist or is unavailable"}
	ErrTotalLimit = &Error{Code: "TOTAL_LIMIT", HTTPStatus: http.StatusBadRequest,
		Message: "order total exceeds the allowed maximum"}
	ErrInvalidStatus = &Error{Code: "INVALID_STATUS", HTTPStatus: http.StatusBadRequest,
		Message: "unrecognized order status"}
	ErrInvalidTransition = &Error{Code: "INVALID_TRANSITION", HTTPStatus: http.StatusConflict,
		Message: "the status graph does not permit this transition"}
	ErrForbiddenTransition = &Error{Code: "FORBIDDEN_TRANSITION", HTTPStatus: http.StatusForbidden,
		Message: "the acting role is not authorized for this transition"}
	ErrOrderNotFound = &Error{Code: "ORDER_NOT_FOUND", HTTPStatus: http.StatusNotFound,
		Message: "order not found"}
	ErrTableNotFound = &Error{Code: "TABLE_NOT_FOUND", HTTPStatus: http.StatusNotFound,
		Message: "table not found"}
	ErrActiveOrderExists = &Error{Code: "ACTIVE_ORDER_EXISTS", HTTPStatus: http.StatusConflict,
		Message: "an active order already exists for this table"}
	ErrCannotArchiveStatus = &Error{Code: "CANNOT_ARCHIVE_STATUS", HTTPStatus: http.StatusConflict,
		Message: "only pending orders can be cancelled"}
	ErrSystemInactive = &Error{Code: "SYSTEM_INACTIVE", HTTPStatus: http.StatusLocked,
		Message: "ordering is currently disabled for this account"}
)
