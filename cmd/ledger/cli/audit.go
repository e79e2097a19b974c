package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bitlabstudio/account-keeping/internal/ledger"
	"github.com/bitlabstudio/account-keeping/internal/report"
)

func newAuditCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Bookkeeping checks and per-payee lookups",
	}

	invoices := func(load func(*cobra.Command, *ledger.Service, []string) ([]ledger.Invoice, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			engine, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()
			list, err := load(cmd, engine.Ledger, args)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			return renderInvoices(cmd.OutOrStdout(), list)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "missing-pdf",
			Short: "Invoices without an attached document",
			Args:  cobra.NoArgs,
			RunE: invoices(func(cmd *cobra.Command, svc *ledger.Service, _ []string) ([]ledger.Invoice, error) {
				return svc.InvoicesWithoutPDF(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "payee-invoices PAYEE_ID",
			Short: "Invoices reached through a payee's transactions",
			Args:  cobra.ExactArgs(1),
			RunE: invoices(func(cmd *cobra.Command, svc *ledger.Service, args []string) ([]ledger.Invoice, error) {
				id, err := parseID(args[0], "payee")
				if err != nil {
					return nil, err
				}
				return svc.PayeeInvoices(cmd.Context(), id)
			}),
		},
		&cobra.Command{
			Use:   "unlinked",
			Short: "Transactions with neither an invoice nor split parts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				engine, err := opts.open(cmd)
				if err != nil {
					return err
				}
				defer engine.Close()
				list, err := engine.Ledger.TransactionsWithoutInvoice(cmd.Context())
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				return renderTransactions(cmd.OutOrStdout(), list)
			},
		},
		&cobra.Command{
			Use:   "payees ACCOUNT_ID",
			Short: "Totals of an account's transactions per payee",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "account")
				if err != nil {
					return err
				}
				engine, err := opts.open(cmd)
				if err != nil {
					return err
				}
				defer engine.Close()
				totals, err := engine.Ledger.TotalsByPayee(cmd.Context(), id)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), totals)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "Payee\tTotal")
				for _, total := range totals {
					fmt.Fprintf(tw, "%s\t%s\n", total.PayeeName, report.FormatAmount(total.Total))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "describe TRANSACTION_ID",
			Short: "Display text of a transaction and the invoices of its split parts",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0], "transaction")
				if err != nil {
					return err
				}
				engine, err := opts.open(cmd)
				if err != nil {
					return err
				}
				defer engine.Close()
				text, err := engine.Ledger.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				split, err := engine.Ledger.SplitInvoices(cmd.Context(), id)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), struct {
						Description string           `json:"description"`
						Invoices    []ledger.Invoice `json:"invoices"`
					}{text, split})
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				if len(split) == 0 {
					return nil
				}
				return renderInvoices(cmd.OutOrStdout(), split)
			},
		},
	)
	return cmd
}

func renderInvoices(out io.Writer, list []ledger.Invoice) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tInvoice\tDate\tType\tCurrency\tGross\tPaid")
	for _, inv := range list {
		paid := "-"
		if inv.PaymentDate != nil {
			paid = inv.PaymentDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.ID, inv.Label(), inv.Date.Format("2006-01-02"), inv.Type, inv.Currency, report.FormatAmount(inv.AmountGross), paid)
	}
	return tw.Flush()
}

func renderTransactions(out io.Writer, list []ledger.Transaction) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAccount\tDate\tType\tCurrency\tGross\tDescription")
	for _, txn := range list {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			txn.ID, txn.AccountID, txn.Date.Format("2006-01-02"), txn.Type, txn.Currency, report.FormatAmount(txn.AmountGross), txn.Description)
	}
	return tw.Flush()
}
