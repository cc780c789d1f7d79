// Package httpx provides HTTP response utilities.
package httpx

import "net/http"

// Machine-readable error identifiers shared by every module's handlers.
const (
	TypeInvalidArgument   = "INVALID_ARGUMENT"
	TypeNotFound          = "NOT_FOUND"
	TypeInsufficientStock = "INSUFFICIENT_STOCK"
	TypeInsufficientFunds = "INSUFFICIENT_FUNDS"
	TypeInvalidState      = "INVALID_STATE"
	TypeConflict          = "CONFLICT"
	TypeStorage           = "STORAGE"
)

var statusByType = map[string]int{
	TypeInvalidArgument:   http.StatusBadRequest,
	TypeNotFound:          http.StatusNotFound,
	TypeInsufficientStock: http.StatusUnprocessableEntity,
	TypeInsufficientFunds: http.StatusUnprocessableEntity,
	TypeInvalidState:      http.StatusConflict,
	TypeConflict:          http.StatusConflict,
	TypeStorage:           http.StatusInternalServerError,
}

var titleByType = map[string]string{
	TypeInvalidArgument:   "Invalid Argument",
	TypeNotFound:          "Not Found",
	TypeInsufficientStock: "Insufficient Stock",
	TypeInsufficientFunds: "Insufficient Funds",
	TypeInvalidState:      "Invalid State",
	TypeConflict:          "Conflict",
	TypeStorage:           "Storage Failure",
}

// RespondType writes the problem response for an error identifier.
func RespondType(w http.ResponseWriter, errType, detail string) {
	status, ok := statusByType[errType]
	if !ok {
		status = http.StatusInternalServerError
	}
	title, ok := titleByType[errType]
	if !ok {
		title = http.StatusText(status)
	}
	if errType == TypeStorage {
		// Do not leak driver internals to API clients.
		detail = ""
	}
	Problem(w, status, errType, title, detail)
}
