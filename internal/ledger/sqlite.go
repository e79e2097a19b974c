package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLiteRepository stores the ledger in a single SQLite file. Dates are kept
// as ISO text and amounts as decimal text so comparisons and sums stay exact.
type SQLiteRepository struct {
	db *sql.DB
	sqliteQueries
}

var (
	_ Repository   = (*SQLiteRepository)(nil)
	_ TxRepository = (*sqliteTxRepository)(nil)
)

// NewSQLiteRepository constructs a repository on top of db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, sqliteQueries: sqliteQueries{q: db}}
}

// WithTx runs fn inside a database transaction.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(ctx, &sqliteTxRepository{sqliteQueries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit tx: %w", err)
	}
	return nil
}

type sqliteTxRepository struct {
	sqliteQueries
}

type sqliteQueries struct {
	q sqlQuerier
}

func (r sqliteQueries) ActiveAccounts(ctx context.Context) ([]Account, error) {
	return r.accounts(ctx, "SELECT "+accountColumns+" FROM accounts WHERE active = 1 ORDER BY name, id")
}

func (r sqliteQueries) GetAccount(ctx context.Context, id int64) (Account, error) {
	list, err := r.accounts(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	if err != nil {
		return Account{}, err
	}
	if len(list) == 0 {
		return Account{}, ErrAccountNotFound
	}
	return list[0], nil
}

func (r sqliteQueries) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	query, args := transactionQuery(sqliteDialect, filter)
	return r.transactions(ctx, query, args...)
}

func (r sqliteQueries) OutstandingInvoices(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	query, args := outstandingInvoiceQuery(sqliteDialect, asOf)
	return r.invoices(ctx, query, args...)
}

func (r sqliteQueries) IssuedInvoices(ctx context.Context, from, to time.Time) ([]Invoice, error) {
	query, args := issuedInvoiceQuery(sqliteDialect, from, to)
	return r.invoices(ctx, query, args...)
}

func (r sqliteQueries) CurrenciesInUse(ctx context.Context) ([]string, error) {
	return r.strings(ctx, currenciesInUseQuery)
}

func (r sqliteQueries) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	list, err := r.invoices(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE id = ?", id)
	if err != nil {
		return Invoice{}, err
	}
	if len(list) == 0 {
		return Invoice{}, ErrInvoiceNotFound
	}
	return list[0], nil
}

func (r sqliteQueries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	list, err := r.transactions(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	if err != nil {
		return Transaction{}, err
	}
	if len(list) == 0 {
		return Transaction{}, ErrTransactionNotFound
	}
	return list[0], nil
}

func (r sqliteQueries) InvoicesWithoutPDF(ctx context.Context) ([]Invoice, error) {
	return r.invoices(ctx, withoutPDFQuery)
}

func (r sqliteQueries) TransactionsWithoutInvoice(ctx context.Context) ([]Transaction, error) {
	return r.transactions(ctx, withoutInvoiceQuery)
}

func (r sqliteQueries) TotalsByPayee(ctx context.Context, accountID int64) ([]PayeeTotal, error) {
	rows, err := r.q.QueryContext(ctx, fmt.Sprintf(totalsByPayeeQuery, "?"), accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	acc := payeeAccumulator{}
	for rows.Next() {
		var (
			id    int64
			name  string
			value decimal.Decimal
		)
		if err := rows.Scan(&id, &name, &value); err != nil {
			return nil, err
		}
		acc.add(id, name, value)
	}
	return acc.totals, rows.Err()
}

func (r sqliteQueries) PayeeInvoices(ctx context.Context, payeeID int64) ([]Invoice, error) {
	return r.invoices(ctx, fmt.Sprintf(payeeInvoicesQuery, "?"), payeeID)
}

func (r sqliteQueries) InvoiceNumbersWithTransactions(ctx context.Context, numbers []string) ([]string, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	query, args := invoiceNumbersQuery(sqliteDialect, numbers)
	return r.strings(ctx, query, args...)
}

func (r sqliteQueries) CreateAccount(ctx context.Context, a Account) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO accounts (name, slug, currency, initial_amount, active)
VALUES (?, ?, ?, ?, ?)`, a.Name, a.Slug, a.Currency, a.InitialAmount, a.Active)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, ErrDuplicateSlug
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (r sqliteQueries) CreatePayee(ctx context.Context, p Payee) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO payees (name) VALUES (?)`, p.Name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r sqliteQueries) CreateCategory(ctx context.Context, c Category) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, c.Name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r sqliteQueries) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO invoices (invoice_type, invoice_date, invoice_number, description,
currency, amount_net, vat, amount_gross, value_net, value_gross, payment_date, pdf)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(inv.Type), inv.Date.Format(dateLayout), inv.Number, inv.Description, inv.Currency,
		inv.AmountNet, inv.VAT, inv.AmountGross, inv.ValueNet, inv.ValueGross, nullDate(inv.PaymentDate), inv.PDF)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r sqliteQueries) UpdateInvoice(ctx context.Context, inv Invoice) error {
	res, err := r.q.ExecContext(ctx, `UPDATE invoices SET invoice_type = ?, invoice_date = ?, invoice_number = ?,
description = ?, currency = ?, amount_net = ?, vat = ?, amount_gross = ?, value_net = ?, value_gross = ?,
payment_date = ?, pdf = ? WHERE id = ?`,
		string(inv.Type), inv.Date.Format(dateLayout), inv.Number, inv.Description, inv.Currency,
		inv.AmountNet, inv.VAT, inv.AmountGross, inv.ValueNet, inv.ValueGross, nullDate(inv.PaymentDate), inv.PDF, inv.ID)
	return affected(res, err, ErrInvoiceNotFound)
}

func (r sqliteQueries) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	res, err := r.q.ExecContext(ctx, `INSERT INTO transactions (account_id, parent_id, transaction_type,
transaction_date, description, invoice_number, invoice_id, payee_id, category_id, currency, amount_net, vat,
amount_gross, value_net, value_gross)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.AccountID, t.ParentID, string(t.Type), t.Date.Format(dateLayout), t.Description, t.InvoiceNumber,
		t.InvoiceID, t.PayeeID, t.CategoryID, t.Currency, t.AmountNet, t.VAT, t.AmountGross, t.ValueNet, t.ValueGross)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r sqliteQueries) UpdateTransaction(ctx context.Context, t Transaction) error {
	res, err := r.q.ExecContext(ctx, `UPDATE transactions SET account_id = ?, parent_id = ?, transaction_type = ?,
transaction_date = ?, description = ?, invoice_number = ?, invoice_id = ?, payee_id = ?, category_id = ?,
currency = ?, amount_net = ?, vat = ?, amount_gross = ?, value_net = ?, value_gross = ? WHERE id = ?`,
		t.AccountID, t.ParentID, string(t.Type), t.Date.Format(dateLayout), t.Description, t.InvoiceNumber,
		t.InvoiceID, t.PayeeID, t.CategoryID, t.Currency, t.AmountNet, t.VAT, t.AmountGross, t.ValueNet,
		t.ValueGross, t.ID)
	return affected(res, err, ErrTransactionNotFound)
}

func (r sqliteQueries) SetInvoicePaymentDate(ctx context.Context, invoiceID int64, date time.Time) error {
	res, err := r.q.ExecContext(ctx, `UPDATE invoices SET payment_date = ? WHERE id = ?`, date.Format(dateLayout), invoiceID)
	return affected(res, err, ErrInvoiceNotFound)
}

func (r sqliteQueries) accounts(ctx context.Context, query string, args ...any) ([]Account, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Slug, &a.Currency, &a.InitialAmount, &a.Active); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r sqliteQueries) invoices(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		var (
			inv     Invoice
			typ     string
			date    string
			payment sql.NullString
		)
		if err := rows.Scan(&inv.ID, &typ, &date, &inv.Number, &inv.Description, &inv.Currency,
			&inv.AmountNet, &inv.VAT, &inv.AmountGross, &inv.ValueNet, &inv.ValueGross, &payment, &inv.PDF); err != nil {
			return nil, err
		}
		inv.Type = EntryType(typ)
		if inv.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("ledger: invoice %d date: %w", inv.ID, err)
		}
		if payment.Valid {
			paid, err := time.Parse(dateLayout, payment.String)
			if err != nil {
				return nil, fmt.Errorf("ledger: invoice %d payment date: %w", inv.ID, err)
			}
			inv.PaymentDate = &paid
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r sqliteQueries) transactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var (
			t    Transaction
			typ  string
			date string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.ParentID, &typ, &date, &t.Description, &t.InvoiceNumber,
			&t.InvoiceID, &t.PayeeID, &t.CategoryID, &t.Currency, &t.AmountNet, &t.VAT, &t.AmountGross,
			&t.ValueNet, &t.ValueGross); err != nil {
			return nil, err
		}
		t.Type = EntryType(typ)
		if t.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("ledger: transaction %d date: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r sqliteQueries) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func affected(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
