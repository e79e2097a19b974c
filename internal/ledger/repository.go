package ledger

import (
	"context"
	"time"
)

// Scope selects transactions by their position in a split.
type Scope int

const (
	// ScopeRoots selects transactions without a parent, the ledger lines
	// that count toward balances.
	ScopeRoots Scope = iota
	// ScopeChildren selects the parts of split transactions.
	ScopeChildren
	// ScopeAll applies no parent predicate.
	ScopeAll
)

// TransactionFilter narrows transaction queries. Zero values disable a predicate.
type TransactionFilter struct {
	AccountID  int64
	From       time.Time // inclusive
	To         time.Time // exclusive
	Scope      Scope
	ParentID   int64
	InvoiceIDs []int64
}

// Reader is the read-only query surface the reporting engine depends on.
type Reader interface {
	ActiveAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	// OutstandingInvoices returns invoices issued before asOf that were not
	// paid before asOf. A zero asOf returns invoices without a payment date.
	OutstandingInvoices(ctx context.Context, asOf time.Time) ([]Invoice, error)
	// IssuedInvoices returns invoices dated in [from, to).
	IssuedInvoices(ctx context.Context, from, to time.Time) ([]Invoice, error)
	// CurrenciesInUse lists the distinct currency codes of accounts and invoices.
	CurrenciesInUse(ctx context.Context) ([]string, error)
}

// Repository is the full persistence contract of the ledger.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	InvoicesWithoutPDF(ctx context.Context) ([]Invoice, error)
	// TransactionsWithoutInvoice returns transactions that have neither an
	// invoice nor children.
	TransactionsWithoutInvoice(ctx context.Context) ([]Transaction, error)
	TotalsByPayee(ctx context.Context, accountID int64) ([]PayeeTotal, error)
	PayeeInvoices(ctx context.Context, payeeID int64) ([]Invoice, error)
	// InvoiceNumbersWithTransactions returns the subset of numbers whose
	// invoice has at least one transaction.
	InvoiceNumbersWithTransactions(ctx context.Context, numbers []string) ([]string, error)
}

// TxRepository holds the write operations available inside a unit of work.
type TxRepository interface {
	CreateAccount(ctx context.Context, account Account) (int64, error)
	CreatePayee(ctx context.Context, payee Payee) (int64, error)
	CreateCategory(ctx context.Context, category Category) (int64, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	InsertInvoice(ctx context.Context, invoice Invoice) (int64, error)
	UpdateInvoice(ctx context.Context, invoice Invoice) error
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, tx Transaction) error
	SetInvoicePaymentDate(ctx context.Context, invoiceID int64, date time.Time) error
}
