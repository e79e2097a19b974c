package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores the ledger in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
	pgQueries
}

var (
	_ Repository   = (*PostgresRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

// NewPostgresRepository constructs a repository on top of pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, pgQueries: pgQueries{q: pool}}
}

// WithTx runs fn in a repeatable-read transaction.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, &pgTxRepository{pgQueries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit tx: %w", err)
	}
	return nil
}

type pgTxRepository struct {
	pgQueries
}

// pgQueries implements the statements shared by the pool and a transaction.
type pgQueries struct {
	q pgQuerier
}

func (r pgQueries) ActiveAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.q.Query(ctx, "SELECT "+accountColumns+" FROM accounts WHERE active ORDER BY name, id")
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

func (r pgQueries) GetAccount(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := r.q.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id).
		Scan(&a.ID, &a.Name, &a.Slug, &a.Currency, &a.InitialAmount, &a.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return a, err
}

func (r pgQueries) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	sql, args := transactionQuery(postgresDialect, filter)
	return r.transactions(ctx, sql, args...)
}

func (r pgQueries) OutstandingInvoices(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	sql, args := outstandingInvoiceQuery(postgresDialect, asOf)
	return r.invoices(ctx, sql, args...)
}

func (r pgQueries) IssuedInvoices(ctx context.Context, from, to time.Time) ([]Invoice, error) {
	sql, args := issuedInvoiceQuery(postgresDialect, from, to)
	return r.invoices(ctx, sql, args...)
}

func (r pgQueries) CurrenciesInUse(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, currenciesInUseQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

func (r pgQueries) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	list, err := r.invoices(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE id = $1", id)
	if err != nil {
		return Invoice{}, err
	}
	if len(list) == 0 {
		return Invoice{}, ErrInvoiceNotFound
	}
	return list[0], nil
}

func (r pgQueries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	list, err := r.transactions(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id)
	if err != nil {
		return Transaction{}, err
	}
	if len(list) == 0 {
		return Transaction{}, ErrTransactionNotFound
	}
	return list[0], nil
}

func (r pgQueries) InvoicesWithoutPDF(ctx context.Context) ([]Invoice, error) {
	return r.invoices(ctx, withoutPDFQuery)
}

func (r pgQueries) TransactionsWithoutInvoice(ctx context.Context) ([]Transaction, error) {
	return r.transactions(ctx, withoutInvoiceQuery)
}

func (r pgQueries) TotalsByPayee(ctx context.Context, accountID int64) ([]PayeeTotal, error) {
	rows, err := r.q.Query(ctx, fmt.Sprintf(totalsByPayeeQuery, "$1"), accountID)
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

func (r pgQueries) PayeeInvoices(ctx context.Context, payeeID int64) ([]Invoice, error) {
	return r.invoices(ctx, fmt.Sprintf(payeeInvoicesQuery, "$1"), payeeID)
}

func (r pgQueries) InvoiceNumbersWithTransactions(ctx context.Context, numbers []string) ([]string, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	sql, args := invoiceNumbersQuery(postgresDialect, numbers)
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r pgQueries) CreateAccount(ctx context.Context, a Account) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO accounts (name, slug, currency, initial_amount, active)
VALUES ($1, $2, $3, $4, $5) RETURNING id`, a.Name, a.Slug, a.Currency, a.InitialAmount, a.Active).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateSlug
		}
		return 0, err
	}
	return id, nil
}

func (r pgQueries) CreatePayee(ctx context.Context, p Payee) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO payees (name) VALUES ($1) RETURNING id`, p.Name).Scan(&id)
	return id, err
}

func (r pgQueries) CreateCategory(ctx context.Context, c Category) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`, c.Name).Scan(&id)
	return id, err
}

func (r pgQueries) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO invoices (invoice_type, invoice_date, invoice_number, description, currency,
amount_net, vat, amount_gross, value_net, value_gross, payment_date, pdf)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		string(inv.Type), inv.Date, inv.Number, inv.Description, inv.Currency,
		inv.AmountNet, inv.VAT, inv.AmountGross, inv.ValueNet, inv.ValueGross, inv.PaymentDate, inv.PDF).Scan(&id)
	return id, err
}

func (r pgQueries) UpdateInvoice(ctx context.Context, inv Invoice) error {
	tag, err := r.q.Exec(ctx, `UPDATE invoices SET invoice_type = $2, invoice_date = $3, invoice_number = $4,
description = $5, currency = $6, amount_net = $7, vat = $8, amount_gross = $9, value_net = $10,
value_gross = $11, payment_date = $12, pdf = $13 WHERE id = $1`,
		inv.ID, string(inv.Type), inv.Date, inv.Number, inv.Description, inv.Currency,
		inv.AmountNet, inv.VAT, inv.AmountGross, inv.ValueNet, inv.ValueGross, inv.PaymentDate, inv.PDF)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r pgQueries) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO transactions (account_id, parent_id, transaction_type, transaction_date,
description, invoice_number, invoice_id, payee_id, category_id, currency, amount_net, vat, amount_gross,
value_net, value_gross)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`,
		t.AccountID, t.ParentID, string(t.Type), t.Date, t.Description, t.InvoiceNumber, t.InvoiceID,
		t.PayeeID, t.CategoryID, t.Currency, t.AmountNet, t.VAT, t.AmountGross, t.ValueNet, t.ValueGross).Scan(&id)
	return id, err
}

func (r pgQueries) UpdateTransaction(ctx context.Context, t Transaction) error {
	tag, err := r.q.Exec(ctx, `UPDATE transactions SET account_id = $2, parent_id = $3, transaction_type = $4,
transaction_date = $5, description = $6, invoice_number = $7, invoice_id = $8, payee_id = $9,
category_id = $10, currency = $11, amount_net = $12, vat = $13, amount_gross = $14, value_net = $15,
value_gross = $16 WHERE id = $1`,
		t.ID, t.AccountID, t.ParentID, string(t.Type), t.Date, t.Description, t.InvoiceNumber, t.InvoiceID,
		t.PayeeID, t.CategoryID, t.Currency, t.AmountNet, t.VAT, t.AmountGross, t.ValueNet, t.ValueGross)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r pgQueries) SetInvoicePaymentDate(ctx context.Context, invoiceID int64, date time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE invoices SET payment_date = $2 WHERE id = $1`, invoiceID, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r pgQueries) invoices(ctx context.Context, sql string, args ...any) ([]Invoice, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		var (
			inv Invoice
			typ string
		)
		if err := rows.Scan(&inv.ID, &typ, &inv.Date, &inv.Number, &inv.Description, &inv.Currency,
			&inv.AmountNet, &inv.VAT, &inv.AmountGross, &inv.ValueNet, &inv.ValueGross, &inv.PaymentDate, &inv.PDF); err != nil {
			return nil, err
		}
		inv.Type = EntryType(typ)
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r pgQueries) transactions(ctx context.Context, sql string, args ...any) ([]Transaction, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var (
			t   Transaction
			typ string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.ParentID, &typ, &t.Date, &t.Description, &t.InvoiceNumber,
			&t.InvoiceID, &t.PayeeID, &t.CategoryID, &t.Currency, &t.AmountNet, &t.VAT, &t.AmountGross,
			&t.ValueNet, &t.ValueGross); err != nil {
			return nil, err
		}
		t.Type = EntryType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

// payeeAccumulator sums ordered (payee, value) rows.
type payeeAccumulator struct {
	totals []PayeeTotal
}

func (a *payeeAccumulator) add(id int64, name string, value decimal.Decimal) {
	if n := len(a.totals); n > 0 && a.totals[n-1].PayeeID == id {
		a.totals[n-1].Total = a.totals[n-1].Total.Add(value)
		return
	}
	a.totals = append(a.totals, PayeeTotal{PayeeID: id, PayeeName: name, Total: value})
}
