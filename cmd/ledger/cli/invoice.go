package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bitlabstudio/account-keeping/internal/ledger"
	"github.com/bitlabstudio/account-keeping/internal/report"
)

type payFlags struct {
	account     int64
	payee       int64
	category    int64
	date        string
	gross       string
	net         string
	vat         string
	description string
}

func newInvoiceCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Invoice payments and balances",
	}

	var flags payFlags
	payCmd := &cobra.Command{
		Use:   "pay INVOICE_ID",
		Short: "Record the payment of an invoice as a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}
			date, err := parseDate(flags.date)
			if err != nil {
				return err
			}
			amounts, err := flags.amounts()
			if err != nil {
				return err
			}
			engine, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			invoice, err := engine.Repository.GetInvoice(cmd.Context(), id)
			if err != nil {
				return err
			}
			account, err := engine.Repository.GetAccount(cmd.Context(), flags.account)
			if err != nil {
				return err
			}
			amounts.Currency = account.Currency
			txn, invoice, err := engine.Ledger.PayInvoiceWithTransaction(cmd.Context(), id, ledger.Transaction{
				AccountID:   account.ID,
				Type:        invoice.Type,
				Date:        date,
				Description: flags.description,
				PayeeID:     flags.payee,
				CategoryID:  flags.category,
				Amounts:     amounts,
			})
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), struct {
					Transaction ledger.Transaction `json:"transaction"`
					Invoice     ledger.Invoice     `json:"invoice"`
				}{txn, invoice})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "invoice %s paid on %s by transaction %d\n",
				invoice.Label(), invoice.PaymentDate.Format("2006-01-02"), txn.ID)
			return err
		},
	}
	payCmd.Flags().Int64Var(&flags.account, "account", 0, "account the payment was booked on")
	payCmd.Flags().Int64Var(&flags.payee, "payee", 0, "payee of the transaction")
	payCmd.Flags().Int64Var(&flags.category, "category", 0, "category of the transaction")
	payCmd.Flags().StringVar(&flags.date, "date", "", "payment date (YYYY-MM-DD)")
	payCmd.Flags().StringVar(&flags.gross, "gross", "", "gross amount in the account currency")
	payCmd.Flags().StringVar(&flags.net, "net", "", "net amount in the account currency")
	payCmd.Flags().StringVar(&flags.vat, "vat", "0", "VAT rate in percent")
	payCmd.Flags().StringVar(&flags.description, "description", "", "transaction description")
	for _, name := range []string{"account", "payee", "category", "date"} {
		_ = payCmd.MarkFlagRequired(name)
	}

	balanceCmd := &cobra.Command{
		Use:   "balance INVOICE_ID",
		Short: "Invoice amount minus linked transactions, in the invoice currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}
			engine, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			balance, err := engine.Reports.InvoiceBalance(cmd.Context(), id)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), struct {
					InvoiceID int64           `json:"invoice_id"`
					Balance   decimal.Decimal `json:"balance"`
				}{id, balance})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.FormatAmount(balance))
			return err
		},
	}

	unpaidCmd := &cobra.Command{
		Use:   "unpaid-elsewhere",
		Short: "Invoices freckle lists as unpaid that already have ledger transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			checker, err := engine.Checker(cmd.Context())
			if err != nil {
				return err
			}
			result, err := checker.UnpaidInvoicesWithTransactions(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), struct {
					Unavailable bool   `json:"unavailable"`
					Error       string `json:"error,omitempty"`
					Invoices    any    `json:"invoices"`
				}{result.Unavailable, errString(result.Err), result.Invoices})
			}
			out := cmd.OutOrStdout()
			if result.Unavailable {
				_, err = fmt.Fprintf(out, "freckle lookup unavailable: %v\n", result.Err)
				return err
			}
			if len(result.Invoices) == 0 {
				_, err = fmt.Fprintln(out, "No mismatches.")
				return err
			}
			for _, inv := range result.Invoices {
				fmt.Fprintf(out, " - %s (freckle #%d, %s)\n", inv.Number, inv.ID, inv.InvoiceDate)
			}
			return nil
		},
	}

	cmd.AddCommand(payCmd, balanceCmd, unpaidCmd)
	return cmd
}

func (f payFlags) amounts() (ledger.Amounts, error) {
	var a ledger.Amounts
	var err error
	parse := func(raw, name string) decimal.Decimal {
		if raw == "" || err != nil {
			return decimal.Zero
		}
		v, perr := decimal.NewFromString(raw)
		if perr != nil {
			err = fmt.Errorf("invalid --%s %q", name, raw)
		}
		return v
	}
	a.AmountGross = parse(f.gross, "gross")
	a.AmountNet = parse(f.net, "net")
	a.VAT = parse(f.vat, "vat")
	return a, err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
