package ledger

import (
	"strconv"
	"strings"
	"time"
)

const (
	accountColumns     = `id, name, slug, currency, initial_amount, active`
	invoiceColumns     = `id, invoice_type, invoice_date, invoice_number, description, currency, amount_net, vat, amount_gross, value_net, value_gross, payment_date, pdf`
	transactionColumns = `id, account_id, parent_id, transaction_type, transaction_date, description, invoice_number, invoice_id, payee_id, category_id, currency, amount_net, vat, amount_gross, value_net, value_gross`
)

// dialect captures the differences between the SQL stores.
type dialect struct {
	placeholder func(n int) string
	date        func(t time.Time) any
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	date:        func(t time.Time) any { return t },
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	date:        func(t time.Time) any { return t.Format(dateLayout) },
}

const dateLayout = "2006-01-02"

type queryBuilder struct {
	d     dialect
	where []string
	args  []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

func (b *queryBuilder) cond(format string, v any) {
	b.where = append(b.where, strings.Replace(format, "?", b.arg(v), 1))
}

func (b *queryBuilder) clause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func transactionQuery(d dialect, filter TransactionFilter) (string, []any) {
	b := &queryBuilder{d: d}
	if filter.AccountID != 0 {
		b.cond("account_id = ?", filter.AccountID)
	}
	if !filter.From.IsZero() {
		b.cond("transaction_date >= ?", d.date(filter.From))
	}
	if !filter.To.IsZero() {
		b.cond("transaction_date < ?", d.date(filter.To))
	}
	switch filter.Scope {
	case ScopeRoots:
		b.where = append(b.where, "parent_id IS NULL")
	case ScopeChildren:
		b.where = append(b.where, "parent_id IS NOT NULL")
	}
	if filter.ParentID != 0 {
		b.cond("parent_id = ?", filter.ParentID)
	}
	if len(filter.InvoiceIDs) > 0 {
		marks := make([]string, len(filter.InvoiceIDs))
		for i, id := range filter.InvoiceIDs {
			marks[i] = b.arg(id)
		}
		b.where = append(b.where, "invoice_id IN ("+strings.Join(marks, ", ")+")")
	}
	return "SELECT " + transactionColumns + " FROM transactions" + b.clause() +
		" ORDER BY transaction_date DESC, id DESC", b.args
}

func outstandingInvoiceQuery(d dialect, asOf time.Time) (string, []any) {
	b := &queryBuilder{d: d}
	if asOf.IsZero() {
		b.where = append(b.where, "payment_date IS NULL")
	} else {
		at := d.date(asOf)
		b.cond("invoice_date < ?", at)
		b.cond("(payment_date IS NULL OR payment_date >= ?)", at)
	}
	return "SELECT " + invoiceColumns + " FROM invoices" + b.clause() +
		" ORDER BY invoice_date DESC, id DESC", b.args
}

func issuedInvoiceQuery(d dialect, from, to time.Time) (string, []any) {
	b := &queryBuilder{d: d}
	if !from.IsZero() {
		b.cond("invoice_date >= ?", d.date(from))
	}
	if !to.IsZero() {
		b.cond("invoice_date < ?", d.date(to))
	}
	return "SELECT " + invoiceColumns + " FROM invoices" + b.clause() +
		" ORDER BY invoice_date DESC, id DESC", b.args
}

func invoiceNumbersQuery(d dialect, numbers []string) (string, []any) {
	b := &queryBuilder{d: d}
	marks := make([]string, len(numbers))
	for i, n := range numbers {
		marks[i] = b.arg(n)
	}
	return `SELECT DISTINCT i.invoice_number FROM invoices i
JOIN transactions t ON t.invoice_id = i.id
WHERE i.invoice_number IN (` + strings.Join(marks, ", ") + `) ORDER BY i.invoice_number`, b.args
}

const (
	currenciesInUseQuery = `SELECT currency FROM accounts UNION SELECT currency FROM invoices ORDER BY 1`

	withoutPDFQuery = "SELECT " + invoiceColumns + " FROM invoices WHERE pdf = '' ORDER BY invoice_date DESC, id DESC"

	withoutInvoiceQuery = "SELECT " + transactionColumns + ` FROM transactions t
WHERE t.invoice_id IS NULL
AND NOT EXISTS (SELECT 1 FROM transactions c WHERE c.parent_id = t.id)
ORDER BY t.transaction_date DESC, t.id DESC`

	payeeInvoicesQuery = "SELECT " + invoiceColumns + ` FROM invoices
WHERE id IN (SELECT invoice_id FROM transactions WHERE payee_id = %s AND invoice_id IS NOT NULL)
ORDER BY invoice_date DESC, id DESC`

	totalsByPayeeQuery = `SELECT p.id, p.name, t.value_gross FROM transactions t
JOIN payees p ON p.id = t.payee_id
WHERE t.account_id = %s AND t.parent_id IS NULL
ORDER BY p.name, p.id`
)
