package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransactionNormalize(t *testing.T) {
	tx := Transaction{
		Type:    Withdrawal,
		Amounts: Amounts{Currency: " eur ", AmountNet: d("50"), VAT: d("19")},
	}
	require.NoError(t, tx.Normalize())
	require.Equal(t, "EUR", tx.Currency)
	require.True(t, tx.AmountGross.Equal(d("59.50")))
	require.True(t, tx.ValueNet.Equal(d("-50")))
	require.True(t, tx.ValueGross.Equal(d("-59.50")))

	// A second pass with both amounts set leaves them alone.
	tx.VAT = d("7")
	require.NoError(t, tx.Normalize())
	require.True(t, tx.AmountGross.Equal(d("59.50")))
}

func TestNormalizeRejectsUnknownType(t *testing.T) {
	inv := Invoice{Type: "x", Amounts: Amounts{Currency: "EUR", AmountNet: d("1")}}
	require.ErrorIs(t, inv.Normalize(), ErrInvalidEntryType)
}

func TestParseEntryType(t *testing.T) {
	typ, err := ParseEntryType("Withdrawal")
	require.NoError(t, err)
	require.Equal(t, Withdrawal, typ)
	typ, err = ParseEntryType("d")
	require.NoError(t, err)
	require.Equal(t, Deposit, typ)
	_, err = ParseEntryType("refund")
	require.ErrorIs(t, err, ErrInvalidEntryType)
}

func TestInvoiceLabelAndPaid(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	inv := Invoice{Type: Deposit, Date: date}
	require.Equal(t, "2024-01-15 - deposit", inv.Label())
	inv.Number = "INV-7"
	require.Equal(t, "INV-7", inv.Label())

	paid := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	inv.PaymentDate = &paid
	require.False(t, inv.Paid(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, inv.Paid(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDescribeTransaction(t *testing.T) {
	tx := Transaction{}
	require.Equal(t, "n/a", DescribeTransaction(tx, nil, nil))

	children := []Transaction{{Description: "hosting"}, {Description: ""}, {Description: "domain"}}
	require.Equal(t, "hosting,\ndomain", DescribeTransaction(tx, nil, children))

	inv := &Invoice{Description: "March retainer"}
	require.Equal(t, "March retainer", DescribeTransaction(tx, inv, children))

	tx.Description = "Own text"
	require.Equal(t, "Own text", DescribeTransaction(tx, inv, children))
}

func TestValidate(t *testing.T) {
	err := Validate(Account{Name: "Main", Slug: "main", Currency: "XYZ"})
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "iso4217", vErr.Fields["Account.Currency"])

	require.NoError(t, Validate(Account{Name: "Main", Slug: "main", Currency: "EUR"}))
	require.True(t, ValidCurrency("usd"))
	require.False(t, ValidCurrency("EURO"))
}
