package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitlabstudio/account-keeping/internal/ledger"
	"github.com/bitlabstudio/account-keeping/internal/report"
	_ "github.com/bitlabstudio/account-keeping/testing"
)

func setupSQLiteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BASE_CURRENCY", "EUR")
	t.Setenv("LEDGER_STORE", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLIRateRoundTrip(t *testing.T) {
	setupSQLiteEnv(t)

	out, err := runCLI(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "sqlite schema at version")

	out, err = runCLI(t, "fx", "set", "usd", "eur", "2024-01-05", "0.9")
	require.NoError(t, err)
	require.Contains(t, out, "stored USDEUR 0.9 on 2024-01-05")

	out, err = runCLI(t, "fx", "rate", "USD", "--as-of", "2024-02-20", "--json")
	require.NoError(t, err)
	var resolved rateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &resolved))
	require.Equal(t, "USDEUR", resolved.Pair)
	require.Equal(t, "0.9", resolved.Value.String())

	_, err = runCLI(t, "fx", "rate", "USD", "--as-of", "2023-12-31")
	require.Error(t, err)

	_, err = runCLI(t, "fx", "validate", "--period", "2024-01", "--currency", "USD")
	require.NoError(t, err)

	_, err = runCLI(t, "fx", "validate", "--period", "2024-01", "--currency", "GBP")
	var exit *ExitError
	require.ErrorAs(t, err, &exit)
	require.Equal(t, 10, exit.Code)
}

func TestCLIReportsOnEmptyLedger(t *testing.T) {
	setupSQLiteEnv(t)
	_, err := runCLI(t, "migrate")
	require.NoError(t, err)

	out, err := runCLI(t, "report", "month", "2024-01", "--json")
	require.NoError(t, err)
	var accounts report.AccountsReport
	require.NoError(t, json.Unmarshal([]byte(out), &accounts))
	require.Equal(t, "January 2024", accounts.Label)
	require.Equal(t, "EUR", accounts.BaseCurrency)
	require.Empty(t, accounts.Accounts)

	out, err = runCLI(t, "report", "year", "2023")
	require.NoError(t, err)
	require.Contains(t, out, "2023 (EUR), 12 month(s) elapsed")
	require.Contains(t, out, "Average")

	out, err = runCLI(t, "audit", "missing-pdf")
	require.NoError(t, err)
	require.Contains(t, out, "Invoice")

	_, err = runCLI(t, "invoice", "balance", "99")
	require.ErrorIs(t, err, ledger.ErrInvoiceNotFound)
}

func TestCLIArgumentErrors(t *testing.T) {
	setupSQLiteEnv(t)

	_, err := runCLI(t, "report", "month", "2024/01")
	require.ErrorIs(t, err, report.ErrInvalidWindow)

	_, err = runCLI(t, "report", "year", "0")
	require.Error(t, err)

	_, err = runCLI(t, "invoice", "balance", "abc")
	require.Error(t, err)

	_, err = runCLI(t, "fx", "set", "USD", "EUR", "yesterday", "1")
	require.Error(t, err)
}

func TestNewJobsCLIRequiresRedis(t *testing.T) {
	_, err := NewJobsCLI("")
	require.Error(t, err)
}
