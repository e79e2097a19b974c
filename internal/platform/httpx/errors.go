// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/bitlabstudio/account-keeping/internal/fx"
	"github.com/bitlabstudio/account-keeping/internal/ledger"
)

// ErrBadRequest marks malformed request input.
var ErrBadRequest = errors.New("bad request")

// RespondError maps ledger and rate errors to RFC7807 responses.
func RespondError(w http.ResponseWriter, err error) {
	var validation *ledger.ValidationError
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrInvoiceNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrPayeeNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrDuplicateSlug), errors.Is(err, ledger.ErrInvoiceAlreadyPaid):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &validation),
		errors.Is(err, ledger.ErrInvalidAmountConfiguration),
		errors.Is(err, ledger.ErrInvalidEntryType),
		errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, fx.ErrRateNotFound):
		Problem(w, http.StatusUnprocessableEntity, "Missing Exchange Rate", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
