package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bitlabstudio/account-keeping/internal/report"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print account and year reports in the base currency",
	}

	accounts := func(window func(args []string) (report.Window, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			w, err := window(args)
			if err != nil {
				return err
			}
			engine, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			rep, err := engine.Reports.Accounts(cmd.Context(), w)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			return renderAccounts(cmd.OutOrStdout(), rep)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "month [YYYY-MM]",
			Short: "Accounts report for one month, the current month by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: accounts(func(args []string) (report.Window, error) {
				if len(args) == 0 {
					return report.MonthOf(time.Now().UTC()), nil
				}
				return report.ParseMonth(args[0])
			}),
		},
		&cobra.Command{
			Use:   "ytd [YYYY]",
			Short: "Accounts report from January 1st to today",
			Args:  cobra.MaximumNArgs(1),
			RunE: accounts(func(args []string) (report.Window, error) {
				now := time.Now().UTC()
				year, err := yearArg(args, now)
				if err != nil {
					return nil, err
				}
				return report.NewYearToDate(year, now), nil
			}),
		},
		&cobra.Command{
			Use:   "all-time",
			Short: "Accounts report over the whole ledger at latest rates",
			Args:  cobra.NoArgs,
			RunE: accounts(func([]string) (report.Window, error) {
				return report.AllTime{}, nil
			}),
		},
		&cobra.Command{
			Use:   "year [YYYY]",
			Short: "Monthly income, expenses, balance and equity for a year",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				year, err := yearArg(args, time.Now().UTC())
				if err != nil {
					return err
				}
				engine, err := opts.open(cmd)
				if err != nil {
					return err
				}
				defer engine.Close()

				series, err := engine.Reports.Year(cmd.Context(), year)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), series)
				}
				return renderYear(cmd.OutOrStdout(), series)
			},
		},
	)
	return cmd
}

func yearArg(args []string, now time.Time) (int, error) {
	if len(args) == 0 {
		return now.Year(), nil
	}
	year, err := strconv.Atoi(args[0])
	if err != nil || year < 1 || year > 9999 {
		return 0, fmt.Errorf("invalid year %q", args[0])
	}
	return year, nil
}

func renderAccounts(out io.Writer, rep report.AccountsReport) error {
	fmt.Fprintf(out, "%s (%s)\n\n", rep.Label, rep.BaseCurrency)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Account\tCurrency\tRate\tBalance\tIncome\tExpenses\tNet %s\t\n", rep.BaseCurrency)
	for _, row := range rep.Accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			row.Account.Name,
			row.Account.Currency,
			row.Rate.String(),
			report.FormatAmount(row.Balance),
			report.FormatAmount(row.Sums.IncomeGross),
			report.FormatAmount(row.Sums.ExpensesGross),
			report.FormatAmount(row.SumsBase.Gross),
		)
	}
	fmt.Fprintf(tw, "Total\t\t\t\t%s\t%s\t%s\t\n",
		report.FormatAmount(rep.Totals.IncomeGross),
		report.FormatAmount(rep.Totals.ExpensesGross),
		report.FormatAmount(rep.Totals.Gross),
	)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nOutstanding invoices: %d\n\n", len(rep.Outstanding))
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Currency\tInvoices\tRate\tIncome\tExpenses\tProfit\tProfit %s\t\n", rep.BaseCurrency)
	for _, c := range rep.OutstandingByCurrency {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			c.Currency,
			c.InvoiceCount,
			rateText(c.Rate),
			report.FormatAmount(c.Income),
			report.FormatAmount(c.Expenses),
			report.FormatAmount(c.Profit),
			report.FormatAmount(c.ProfitBase),
		)
	}
	fmt.Fprintf(tw, "Total\t\t\t%s\t%s\t%s\t\t\n",
		report.FormatAmount(rep.OutstandingTotals.IncomeGross),
		report.FormatAmount(rep.OutstandingTotals.ExpensesGross),
		report.FormatAmount(rep.OutstandingTotals.AmountGross),
	)
	return tw.Flush()
}

func rateText(rate *decimal.Decimal) string {
	if rate == nil {
		return "-"
	}
	return rate.String()
}

func renderYear(out io.Writer, series report.YearSeries) error {
	fmt.Fprintf(out, "%d (%s), %d month(s) elapsed\n\n", series.Year, series.BaseCurrency, series.MonthsElapsed)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Month\tIncome\tExpenses\tProfit\tNew invoices\tOutstanding\tBalance\tEquity\t")
	row := func(label string, p report.MonthPoint) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			label,
			report.FormatAmount(p.Income),
			report.FormatAmount(p.Expenses),
			report.FormatAmount(p.Profit),
			report.FormatAmount(p.NewInvoices),
			report.FormatAmount(p.Outstanding),
			report.FormatAmount(p.Balance),
			report.FormatAmount(p.Equity),
		)
	}
	for _, p := range series.Months {
		row(p.Month.Format("Jan"), p)
	}
	row("Total", series.Totals)
	row("Average", series.Averages)
	return tw.Flush()
}
