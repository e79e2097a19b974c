package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Invalidator is notified after a successful write so cached reports can be
// discarded.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ServiceOptions configures Service.
type ServiceOptions struct {
	// StrictAmounts rejects entries whose supplied net and gross disagree
	// with the VAT rate.
	StrictAmounts bool
	Invalidator   Invalidator
	Logger        *slog.Logger
}

// Service runs ledger write commands inside units of work.
type Service struct {
	repo   Repository
	opts   ServiceOptions
	logger *slog.Logger
}

// NewService constructs the ledger service.
func NewService(repo Repository, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, opts: opts, logger: logger}
}

// CreateAccount validates and stores a new account.
func (s *Service) CreateAccount(ctx context.Context, account Account) (Account, error) {
	account.Currency = strings.ToUpper(strings.TrimSpace(account.Currency))
	account.Slug = strings.TrimSpace(account.Slug)
	account.InitialAmount = account.InitialAmount.Round(AmountPlaces)
	if err := Validate(account); err != nil {
		return Account{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateAccount(ctx, account)
		if err != nil {
			return err
		}
		account.ID = id
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.invalidate(ctx)
	return account, nil
}

// CreatePayee stores a payee.
func (s *Service) CreatePayee(ctx context.Context, payee Payee) (Payee, error) {
	payee.Name = strings.TrimSpace(payee.Name)
	if err := Validate(payee); err != nil {
		return Payee{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreatePayee(ctx, payee)
		payee.ID = id
		return err
	})
	return payee, err
}

// CreateCategory stores a category.
func (s *Service) CreateCategory(ctx context.Context, category Category) (Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if err := Validate(category); err != nil {
		return Category{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateCategory(ctx, category)
		category.ID = id
		return err
	})
	return category, err
}

// SaveInvoice normalizes and inserts or updates an invoice.
func (s *Service) SaveInvoice(ctx context.Context, invoice Invoice) (Invoice, error) {
	if err := s.prepareInvoice(&invoice); err != nil {
		return Invoice{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if invoice.ID == 0 {
			id, err := tx.InsertInvoice(ctx, invoice)
			invoice.ID = id
			return err
		}
		return tx.UpdateInvoice(ctx, invoice)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidate(ctx)
	return invoice, nil
}

// SaveTransaction normalizes and inserts or updates a transaction. It never
// touches the linked invoice; use PayInvoiceWithTransaction for that.
func (s *Service) SaveTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	if err := s.prepareTransaction(&txn); err != nil {
		return Transaction{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return s.storeTransaction(ctx, tx, &txn)
	})
	if err != nil {
		return Transaction{}, err
	}
	s.invalidate(ctx)
	return txn, nil
}

// PayInvoiceWithTransaction links txn to the invoice, stores it and sets the
// invoice payment date to the transaction date. Both writes commit together.
func (s *Service) PayInvoiceWithTransaction(ctx context.Context, invoiceID int64, txn Transaction) (Transaction, Invoice, error) {
	if invoiceID == 0 {
		return Transaction{}, Invoice{}, ErrInvoiceNotFound
	}
	txn.InvoiceID = &invoiceID
	if err := s.prepareTransaction(&txn); err != nil {
		return Transaction{}, Invoice{}, err
	}
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		invoice, err = tx.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.PaymentDate != nil {
			return fmt.Errorf("%w: %s paid on %s", ErrInvoiceAlreadyPaid, invoice.Label(), invoice.PaymentDate.Format("2006-01-02"))
		}
		if txn.InvoiceNumber == "" {
			txn.InvoiceNumber = invoice.Number
		}
		if err := s.storeTransaction(ctx, tx, &txn); err != nil {
			return err
		}
		paid := dateOnly(txn.Date)
		if err := tx.SetInvoicePaymentDate(ctx, invoiceID, paid); err != nil {
			return err
		}
		invoice.PaymentDate = &paid
		return nil
	})
	if err != nil {
		return Transaction{}, Invoice{}, err
	}
	s.logger.Info("invoice paid", slog.Int64("invoice_id", invoiceID), slog.Int64("transaction_id", txn.ID))
	s.invalidate(ctx)
	return txn, invoice, nil
}

// InvoicesWithoutPDF lists invoices that have no document attached.
func (s *Service) InvoicesWithoutPDF(ctx context.Context) ([]Invoice, error) {
	return s.repo.InvoicesWithoutPDF(ctx)
}

// TransactionsWithoutInvoice lists unsplit transactions lacking an invoice.
func (s *Service) TransactionsWithoutInvoice(ctx context.Context) ([]Transaction, error) {
	return s.repo.TransactionsWithoutInvoice(ctx)
}

// TotalsByPayee sums an account's root transactions per payee.
func (s *Service) TotalsByPayee(ctx context.Context, accountID int64) ([]PayeeTotal, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.TotalsByPayee(ctx, accountID)
}

// PayeeInvoices lists the invoices reached through a payee's transactions.
func (s *Service) PayeeInvoices(ctx context.Context, payeeID int64) ([]Invoice, error) {
	return s.repo.PayeeInvoices(ctx, payeeID)
}

// Describe returns the display text of a transaction.
func (s *Service) Describe(ctx context.Context, id int64) (string, error) {
	txn, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return "", err
	}
	var invoice *Invoice
	if txn.InvoiceID != nil {
		inv, err := s.repo.GetInvoice(ctx, *txn.InvoiceID)
		if err != nil && !errors.Is(err, ErrInvoiceNotFound) {
			return "", err
		}
		if err == nil {
			invoice = &inv
		}
	}
	children, err := s.repo.ListTransactions(ctx, TransactionFilter{Scope: ScopeChildren, ParentID: id})
	if err != nil {
		return "", err
	}
	return DescribeTransaction(txn, invoice, children), nil
}

// SplitInvoices returns the invoices linked to the children of a split
// transaction.
func (s *Service) SplitInvoices(ctx context.Context, id int64) ([]Invoice, error) {
	children, err := s.repo.ListTransactions(ctx, TransactionFilter{Scope: ScopeChildren, ParentID: id})
	if err != nil {
		return nil, err
	}
	var out []Invoice
	seen := make(map[int64]struct{})
	for _, child := range children {
		if child.InvoiceID == nil {
			continue
		}
		if _, ok := seen[*child.InvoiceID]; ok {
			continue
		}
		seen[*child.InvoiceID] = struct{}{}
		inv, err := s.repo.GetInvoice(ctx, *child.InvoiceID)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *Service) prepareInvoice(invoice *Invoice) error {
	if err := s.checkSupplied(invoice.Amounts); err != nil {
		return err
	}
	if err := invoice.Normalize(); err != nil {
		return err
	}
	invoice.Date = dateOnly(invoice.Date)
	if invoice.PaymentDate != nil {
		paid := dateOnly(*invoice.PaymentDate)
		invoice.PaymentDate = &paid
	}
	return Validate(*invoice)
}

func (s *Service) prepareTransaction(txn *Transaction) error {
	if err := s.checkSupplied(txn.Amounts); err != nil {
		return err
	}
	if err := txn.Normalize(); err != nil {
		return err
	}
	txn.Date = dateOnly(txn.Date)
	return Validate(*txn)
}

func (s *Service) checkSupplied(a Amounts) error {
	if !s.opts.StrictAmounts || a.AmountNet.IsZero() || a.AmountGross.IsZero() {
		return nil
	}
	if !ConsistentAmounts(a.AmountNet, a.AmountGross, a.VAT) {
		return &InvalidAmountConfigurationError{
			Field:  "amount_gross",
			Reason: fmt.Sprintf("%s does not match net %s at %s%% VAT", a.AmountGross, a.AmountNet, a.VAT),
		}
	}
	return nil
}

func (s *Service) storeTransaction(ctx context.Context, tx TxRepository, txn *Transaction) error {
	if txn.ParentID != nil {
		parent, err := tx.GetTransaction(ctx, *txn.ParentID)
		if err != nil {
			return fmt.Errorf("ledger: parent transaction: %w", err)
		}
		if parent.ParentID != nil {
			return fmt.Errorf("ledger: transaction %d is already a split part", parent.ID)
		}
	}
	if txn.ID == 0 {
		id, err := tx.InsertTransaction(ctx, *txn)
		if err != nil {
			return err
		}
		txn.ID = id
		return nil
	}
	return tx.UpdateTransaction(ctx, *txn)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.opts.Invalidator == nil {
		return
	}
	if err := s.opts.Invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("report cache invalidation failed", slog.Any("error", err))
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
