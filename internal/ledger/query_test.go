package ledger

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransactionQueryPlaceholders(t *testing.T) {
	filter := TransactionFilter{
		AccountID:  7,
		From:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		InvoiceIDs: []int64{3, 4},
	}
	sql, args := transactionQuery(postgresDialect, filter)
	require.Contains(t, sql, "account_id = $1")
	require.Contains(t, sql, "transaction_date >= $2")
	require.Contains(t, sql, "transaction_date < $3")
	require.Contains(t, sql, "parent_id IS NULL")
	require.Contains(t, sql, "invoice_id IN ($4, $5)")
	require.Len(t, args, 5)

	sql, args = transactionQuery(sqliteDialect, filter)
	require.Contains(t, sql, "invoice_id IN (?, ?)")
	require.Equal(t, "2024-01-01", args[1])
}

func TestOutstandingInvoiceQuery(t *testing.T) {
	sql, args := outstandingInvoiceQuery(postgresDialect, time.Time{})
	require.Contains(t, sql, "payment_date IS NULL")
	require.Empty(t, args)

	sql, args = outstandingInvoiceQuery(postgresDialect, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.Contains(t, sql, "invoice_date < $1")
	require.Contains(t, sql, "payment_date >= $2")
	require.Len(t, args, 2)
}

func TestQueriesBindOneArgPerPlaceholder(t *testing.T) {
	asOf := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	filter := TransactionFilter{AccountID: 7, From: asOf.AddDate(0, -1, 0), To: asOf, InvoiceIDs: []int64{3, 4}}

	cases := map[string]func(dialect) (string, []any){
		"outstanding":  func(d dialect) (string, []any) { return outstandingInvoiceQuery(d, asOf) },
		"issued":       func(d dialect) (string, []any) { return issuedInvoiceQuery(d, asOf.AddDate(0, -1, 0), asOf) },
		"transactions": func(d dialect) (string, []any) { return transactionQuery(d, filter) },
		"numbers":      func(d dialect) (string, []any) { return invoiceNumbersQuery(d, []string{"A-1", "A-2"}) },
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			sql, args := build(sqliteDialect)
			require.Equal(t, len(args), strings.Count(sql, "?"), sql)

			sql, args = build(postgresDialect)
			require.Contains(t, sql, "$"+strconv.Itoa(len(args)))
			require.NotContains(t, sql, "$"+strconv.Itoa(len(args)+1))
		})
	}

	_, args := outstandingInvoiceQuery(sqliteDialect, asOf)
	require.Equal(t, []any{"2024-03-01", "2024-03-01"}, args)
}
