// Package ledgertest provides an in-memory ledger and rate history for tests.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitlabstudio/account-keeping/internal/fx"
	"github.com/bitlabstudio/account-keeping/internal/ledger"
)

// Store keeps ledger entities and rates in maps. WithTx works on a copy and
// swaps it in only when fn succeeds.
type Store struct {
	mu   sync.RWMutex
	data *data

	// FailOn makes the named write operation return the error.
	FailOn map[string]error
}

type data struct {
	accounts     map[int64]ledger.Account
	payees       map[int64]ledger.Payee
	categories   map[int64]ledger.Category
	invoices     map[int64]ledger.Invoice
	transactions map[int64]ledger.Transaction
	rates        []fx.Rate
	nextID       int64
}

var (
	_ ledger.Repository = (*Store)(nil)
	_ fx.History        = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{data: &data{
		accounts:     make(map[int64]ledger.Account),
		payees:       make(map[int64]ledger.Payee),
		categories:   make(map[int64]ledger.Category),
		invoices:     make(map[int64]ledger.Invoice),
		transactions: make(map[int64]ledger.Transaction),
	}}
}

func (d *data) clone() *data {
	out := &data{
		accounts:     make(map[int64]ledger.Account, len(d.accounts)),
		payees:       make(map[int64]ledger.Payee, len(d.payees)),
		categories:   make(map[int64]ledger.Category, len(d.categories)),
		invoices:     make(map[int64]ledger.Invoice, len(d.invoices)),
		transactions: make(map[int64]ledger.Transaction, len(d.transactions)),
		rates:        append([]fx.Rate(nil), d.rates...),
		nextID:       d.nextID,
	}
	for k, v := range d.accounts {
		out.accounts[k] = v
	}
	for k, v := range d.payees {
		out.payees[k] = v
	}
	for k, v := range d.categories {
		out.categories[k] = v
	}
	for k, v := range d.invoices {
		out.invoices[k] = v
	}
	for k, v := range d.transactions {
		out.transactions[k] = v
	}
	return out
}

// AddAccount stores an account directly and returns it with its ID.
func (s *Store) AddAccount(a ledger.Account) ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.nextID++
	a.ID = s.data.nextID
	s.data.accounts[a.ID] = a
	return a
}

// AddInvoice normalizes and stores an invoice, panicking on invalid amounts.
func (s *Store) AddInvoice(inv ledger.Invoice) ledger.Invoice {
	if err := inv.Normalize(); err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.nextID++
	inv.ID = s.data.nextID
	s.data.invoices[inv.ID] = inv
	return inv
}

// AddTransaction normalizes and stores a transaction, panicking on invalid amounts.
func (s *Store) AddTransaction(t ledger.Transaction) ledger.Transaction {
	if err := t.Normalize(); err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.nextID++
	t.ID = s.data.nextID
	s.data.transactions[t.ID] = t
	return t
}

// AddRate appends a rate to the history.
func (s *Store) AddRate(from, to string, date time.Time, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.rates = append(s.data.rates, fx.Rate{
		Pair:  fx.NewPair(from, to),
		Date:  date,
		Value: decimal.RequireFromString(value),
	})
}

// Invoice returns the stored invoice with id.
func (s *Store) Invoice(id int64) (ledger.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.data.invoices[id]
	return inv, ok
}

// TransactionCount returns the number of stored transactions.
func (s *Store) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.transactions)
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(ctx, &txRepo{store: s, data: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) ActiveAccounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Account
	for _, a := range s.data.accounts {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (s *Store) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invoiceSet := make(map[int64]struct{}, len(f.InvoiceIDs))
	for _, id := range f.InvoiceIDs {
		invoiceSet[id] = struct{}{}
	}
	var out []ledger.Transaction
	for _, t := range s.data.transactions {
		if f.AccountID != 0 && t.AccountID != f.AccountID {
			continue
		}
		if !f.From.IsZero() && t.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !t.Date.Before(f.To) {
			continue
		}
		switch f.Scope {
		case ledger.ScopeRoots:
			if t.ParentID != nil {
				continue
			}
		case ledger.ScopeChildren:
			if t.ParentID == nil {
				continue
			}
		}
		if f.ParentID != 0 && (t.ParentID == nil || *t.ParentID != f.ParentID) {
			continue
		}
		if len(invoiceSet) > 0 {
			if t.InvoiceID == nil {
				continue
			}
			if _, ok := invoiceSet[*t.InvoiceID]; !ok {
				continue
			}
		}
		out = append(out, t)
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) OutstandingInvoices(ctx context.Context, asOf time.Time) ([]ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Invoice
	for _, inv := range s.data.invoices {
		if asOf.IsZero() {
			if inv.PaymentDate == nil {
				out = append(out, inv)
			}
			continue
		}
		if inv.Date.Before(asOf) && (inv.PaymentDate == nil || !inv.PaymentDate.Before(asOf)) {
			out = append(out, inv)
		}
	}
	sortInvoices(out)
	return out, nil
}

func (s *Store) IssuedInvoices(ctx context.Context, from, to time.Time) ([]ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Invoice
	for _, inv := range s.data.invoices {
		if !from.IsZero() && inv.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !inv.Date.Before(to) {
			continue
		}
		out = append(out, inv)
	}
	sortInvoices(out)
	return out, nil
}

func (s *Store) CurrenciesInUse(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := make(map[string]struct{})
	for _, a := range s.data.accounts {
		set[a.Currency] = struct{}{}
	}
	for _, inv := range s.data.invoices {
		set[inv.Currency] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.getInvoice(id)
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.getTransaction(id)
}

func (s *Store) InvoicesWithoutPDF(ctx context.Context) ([]ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Invoice
	for _, inv := range s.data.invoices {
		if inv.PDF == "" {
			out = append(out, inv)
		}
	}
	sortInvoices(out)
	return out, nil
}

func (s *Store) TransactionsWithoutInvoice(ctx context.Context) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parents := make(map[int64]struct{})
	for _, t := range s.data.transactions {
		if t.ParentID != nil {
			parents[*t.ParentID] = struct{}{}
		}
	}
	var out []ledger.Transaction
	for _, t := range s.data.transactions {
		if t.InvoiceID != nil {
			continue
		}
		if _, ok := parents[t.ID]; ok {
			continue
		}
		out = append(out, t)
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) TotalsByPayee(ctx context.Context, accountID int64) ([]ledger.PayeeTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byPayee := make(map[int64]decimal.Decimal)
	for _, t := range s.data.transactions {
		if t.AccountID != accountID || t.ParentID != nil {
			continue
		}
		byPayee[t.PayeeID] = byPayee[t.PayeeID].Add(t.ValueGross)
	}
	out := make([]ledger.PayeeTotal, 0, len(byPayee))
	for id, total := range byPayee {
		out = append(out, ledger.PayeeTotal{PayeeID: id, PayeeName: s.data.payees[id].Name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PayeeName == out[j].PayeeName {
			return out[i].PayeeID < out[j].PayeeID
		}
		return out[i].PayeeName < out[j].PayeeName
	})
	return out, nil
}

func (s *Store) PayeeInvoices(ctx context.Context, payeeID int64) ([]ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	var out []ledger.Invoice
	for _, t := range s.data.transactions {
		if t.PayeeID != payeeID || t.InvoiceID == nil {
			continue
		}
		if _, ok := seen[*t.InvoiceID]; ok {
			continue
		}
		if inv, ok := s.data.invoices[*t.InvoiceID]; ok {
			seen[inv.ID] = struct{}{}
			out = append(out, inv)
		}
	}
	sortInvoices(out)
	return out, nil
}

func (s *Store) InvoiceNumbersWithTransactions(ctx context.Context, numbers []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		wanted[n] = struct{}{}
	}
	found := make(map[string]struct{})
	for _, t := range s.data.transactions {
		if t.InvoiceID == nil {
			continue
		}
		inv, ok := s.data.invoices[*t.InvoiceID]
		if !ok {
			continue
		}
		if _, ok := wanted[inv.Number]; ok {
			found[inv.Number] = struct{}{}
		}
	}
	out := make([]string, 0, len(found))
	for n := range found {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) RateInMonth(ctx context.Context, pair fx.Pair, month time.Time) (fx.Rate, bool, error) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return s.latest(pair, func(r fx.Rate) bool {
		return !r.Date.Before(start) && r.Date.Before(end)
	})
}

func (s *Store) LatestRate(ctx context.Context, pair fx.Pair, asOf time.Time) (fx.Rate, bool, error) {
	return s.latest(pair, func(r fx.Rate) bool {
		return asOf.IsZero() || !r.Date.After(asOf)
	})
}

// SaveRate stores rate, replacing an entry for the same pair and date.
func (s *Store) SaveRate(ctx context.Context, rate fx.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.data.rates {
		if r.Pair == rate.Pair && r.Date.Equal(rate.Date) {
			s.data.rates[i] = rate
			return nil
		}
	}
	s.data.rates = append(s.data.rates, rate)
	return nil
}

func (s *Store) latest(pair fx.Pair, keep func(fx.Rate) bool) (fx.Rate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  fx.Rate
		found bool
	)
	for _, r := range s.data.rates {
		if r.Pair != pair || !keep(r) {
			continue
		}
		if !found || r.Date.After(best.Date) {
			best, found = r, true
		}
	}
	return best, found, nil
}

type txRepo struct {
	store *Store
	data  *data
}

func (t *txRepo) fail(op string) error {
	return t.store.FailOn[op]
}

func (t *txRepo) CreateAccount(ctx context.Context, a ledger.Account) (int64, error) {
	if err := t.fail("CreateAccount"); err != nil {
		return 0, err
	}
	for _, existing := range t.data.accounts {
		if existing.Slug == a.Slug {
			return 0, ledger.ErrDuplicateSlug
		}
	}
	t.data.nextID++
	a.ID = t.data.nextID
	t.data.accounts[a.ID] = a
	return a.ID, nil
}

func (t *txRepo) CreatePayee(ctx context.Context, p ledger.Payee) (int64, error) {
	t.data.nextID++
	p.ID = t.data.nextID
	t.data.payees[p.ID] = p
	return p.ID, nil
}

func (t *txRepo) CreateCategory(ctx context.Context, c ledger.Category) (int64, error) {
	t.data.nextID++
	c.ID = t.data.nextID
	t.data.categories[c.ID] = c
	return c.ID, nil
}

func (t *txRepo) GetInvoice(ctx context.Context, id int64) (ledger.Invoice, error) {
	return t.data.getInvoice(id)
}

func (t *txRepo) GetTransaction(ctx context.Context, id int64) (ledger.Transaction, error) {
	return t.data.getTransaction(id)
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv ledger.Invoice) (int64, error) {
	if err := t.fail("InsertInvoice"); err != nil {
		return 0, err
	}
	t.data.nextID++
	inv.ID = t.data.nextID
	t.data.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (t *txRepo) UpdateInvoice(ctx context.Context, inv ledger.Invoice) error {
	if _, ok := t.data.invoices[inv.ID]; !ok {
		return ledger.ErrInvoiceNotFound
	}
	t.data.invoices[inv.ID] = inv
	return nil
}

func (t *txRepo) InsertTransaction(ctx context.Context, tx ledger.Transaction) (int64, error) {
	if err := t.fail("InsertTransaction"); err != nil {
		return 0, err
	}
	t.data.nextID++
	tx.ID = t.data.nextID
	t.data.transactions[tx.ID] = tx
	return tx.ID, nil
}

func (t *txRepo) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	if _, ok := t.data.transactions[tx.ID]; !ok {
		return ledger.ErrTransactionNotFound
	}
	t.data.transactions[tx.ID] = tx
	return nil
}

func (t *txRepo) SetInvoicePaymentDate(ctx context.Context, invoiceID int64, date time.Time) error {
	if err := t.fail("SetInvoicePaymentDate"); err != nil {
		return err
	}
	inv, ok := t.data.invoices[invoiceID]
	if !ok {
		return ledger.ErrInvoiceNotFound
	}
	inv.PaymentDate = &date
	t.data.invoices[invoiceID] = inv
	return nil
}

func (d *data) getInvoice(id int64) (ledger.Invoice, error) {
	inv, ok := d.invoices[id]
	if !ok {
		return ledger.Invoice{}, ledger.ErrInvoiceNotFound
	}
	return inv, nil
}

func (d *data) getTransaction(id int64) (ledger.Transaction, error) {
	tx, ok := d.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return tx, nil
}

func sortInvoices(list []ledger.Invoice) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Date.Equal(list[j].Date) {
			return list[i].ID > list[j].ID
		}
		return list[i].Date.After(list[j].Date)
	})
}

func sortTransactions(list []ledger.Transaction) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Date.Equal(list[j].Date) {
			return list[i].ID > list[j].ID
		}
		return list[i].Date.After(list[j].Date)
	})
}
