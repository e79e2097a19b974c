package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitlabstudio/account-keeping/internal/fx"
	"github.com/bitlabstudio/account-keeping/internal/ledger"
)

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("load: %w", ledger.ErrInvoiceNotFound), http.StatusNotFound},
		{"already paid", ledger.ErrInvoiceAlreadyPaid, http.StatusConflict},
		{"validation", &ledger.ValidationError{Fields: map[string]string{"name": "required"}}, http.StatusBadRequest},
		{"amounts", &ledger.InvalidAmountConfigurationError{Field: "vat", Reason: "out of range"}, http.StatusBadRequest},
		{"bad request", fmt.Errorf("%w: month", ErrBadRequest), http.StatusBadRequest},
		{"rate", &fx.RateNotFoundError{Pair: fx.NewPair("USD", "EUR")}, http.StatusUnprocessableEntity},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.status, body.Status)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("dial tcp 10.0.0.1:5432: refused"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Detail)
}
