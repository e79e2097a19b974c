package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType distinguishes money leaving an account from money arriving.
type EntryType string

const (
	Withdrawal EntryType = "w"
	Deposit    EntryType = "d"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return t == Withdrawal || t == Deposit
}

func (t EntryType) String() string {
	switch t {
	case Withdrawal:
		return "withdrawal"
	case Deposit:
		return "deposit"
	default:
		return string(t)
	}
}

// ParseEntryType accepts the stored code or the long name.
func ParseEntryType(raw string) (EntryType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "w", "withdrawal":
		return Withdrawal, nil
	case "d", "deposit":
		return Deposit, nil
	}
	return "", ErrInvalidEntryType
}

// Account holds transactions in a single currency.
type Account struct {
	ID            int64
	Name          string `validate:"required,max=128"`
	Slug          string `validate:"required,max=128"`
	Currency      string `validate:"required,iso4217"`
	InitialAmount decimal.Decimal
	Active        bool
}

// Payee is the counterparty of a transaction.
type Payee struct {
	ID   int64
	Name string `validate:"required,max=256"`
}

// Category groups transactions for reporting.
type Category struct {
	ID   int64
	Name string `validate:"required,max=256"`
}

// Amounts carries the monetary fields shared by invoices and transactions.
// A zero AmountNet or AmountGross is treated as "not supplied".
type Amounts struct {
	Currency    string `validate:"required,iso4217"`
	AmountNet   decimal.Decimal
	VAT         decimal.Decimal
	AmountGross decimal.Decimal
	ValueNet    decimal.Decimal
	ValueGross  decimal.Decimal
}

func (a *Amounts) normalize(t EntryType) error {
	if !t.Valid() {
		return ErrInvalidEntryType
	}
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	net, gross, err := DeriveNetGross(a.AmountNet, a.AmountGross, a.VAT)
	if err != nil {
		return err
	}
	a.AmountNet = net
	a.AmountGross = gross
	a.ValueNet = DeriveValue(net, t)
	a.ValueGross = DeriveValue(gross, t)
	return nil
}

// Invoice is a billable document that exists independently of accounts.
type Invoice struct {
	ID          int64
	Type        EntryType
	Date        time.Time `validate:"required"`
	Number      string    `validate:"max=256"`
	Description string
	Amounts
	PaymentDate *time.Time
	PDF         string `validate:"max=512"`
}

// Normalize derives the missing amount and the signed values. It must run
// before the invoice is persisted. Once both net and gross are set, later
// calls keep them as they are, so a changed VAT rate needs one of the two
// amounts cleared first.
func (i *Invoice) Normalize() error {
	i.Number = strings.TrimSpace(i.Number)
	return i.Amounts.normalize(i.Type)
}

// Paid reports whether the invoice was settled on or before asOf.
func (i Invoice) Paid(asOf time.Time) bool {
	return i.PaymentDate != nil && i.PaymentDate.Before(asOf)
}

// Label is the human handle for an invoice: its number, or date and type.
func (i Invoice) Label() string {
	if i.Number != "" {
		return i.Number
	}
	return i.Date.Format("2006-01-02") + " - " + i.Type.String()
}

// Transaction is a single ledger entry. Transactions with a parent are the
// parts of a split entry and never count as ledger lines of their own.
type Transaction struct {
	ID            int64
	AccountID     int64 `validate:"required"`
	ParentID      *int64
	Type          EntryType
	Date          time.Time `validate:"required"`
	Description   string
	InvoiceNumber string `validate:"max=256"`
	InvoiceID     *int64
	PayeeID       int64 `validate:"required"`
	CategoryID    int64 `validate:"required"`
	Amounts
}

// Normalize derives the missing amount and the signed values. The same
// caveat as Invoice.Normalize applies.
func (t *Transaction) Normalize() error {
	t.InvoiceNumber = strings.TrimSpace(t.InvoiceNumber)
	return t.Amounts.normalize(t.Type)
}

// IsRoot reports whether the transaction has no parent.
func (t Transaction) IsRoot() bool {
	return t.ParentID == nil
}

// DescribeTransaction picks the text shown for a transaction: its own
// description, then its invoice's, then the descriptions of its children.
func DescribeTransaction(tx Transaction, invoice *Invoice, children []Transaction) string {
	if d := strings.TrimSpace(tx.Description); d != "" {
		return d
	}
	if invoice != nil && strings.TrimSpace(invoice.Description) != "" {
		return strings.TrimSpace(invoice.Description)
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		if d := strings.TrimSpace(child.Description); d != "" {
			parts = append(parts, d)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ",\n")
	}
	return "n/a"
}

// PayeeTotal is the summed gross value of an account's root transactions for
// one payee.
type PayeeTotal struct {
	PayeeID   int64
	PayeeName string
	Total     decimal.Decimal
}
