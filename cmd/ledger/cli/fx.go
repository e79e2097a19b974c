package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bitlabstudio/account-keeping/internal/fx"
)

type rateOutput struct {
	Pair  string          `json:"pair"`
	AsOf  string          `json:"as_of,omitempty"`
	Value decimal.Decimal `json:"value"`
}

func newFXCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fx",
		Short: "Inspect and maintain exchange rates",
	}

	var asOf string
	rateCmd := &cobra.Command{
		Use:   "rate CURRENCY",
		Short: "Resolve the rate from CURRENCY into the base currency",
		Long: `Resolve the rate from CURRENCY into the base currency. With --as-of the
rate of that month is used, falling back to the latest earlier rate;
without it the latest stored rate is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			code := strings.ToUpper(strings.TrimSpace(args[0]))
			out := rateOutput{Pair: fx.NewPair(code, engine.Rates.Base()).String()}
			if asOf == "" {
				out.Value, err = engine.Rates.Latest(cmd.Context(), code)
			} else {
				var day time.Time
				if day, err = parseDate(asOf); err != nil {
					return err
				}
				out.AsOf = day.Format("2006-01-02")
				out.Value, err = engine.Rates.Resolve(cmd.Context(), code, day)
			}
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", out.Pair, out.Value.String())
			return err
		},
	}
	rateCmd.Flags().StringVar(&asOf, "as-of", "", "date to resolve at (YYYY-MM-DD)")

	setCmd := &cobra.Command{
		Use:   "set FROM TO DATE VALUE",
		Short: "Store the rate converting one unit of FROM into TO on DATE",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDate(args[2])
			if err != nil {
				return err
			}
			value, err := decimal.NewFromString(strings.TrimSpace(args[3]))
			if err != nil {
				return fmt.Errorf("invalid rate %q", args[3])
			}
			engine, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			rate := fx.Rate{Pair: fx.NewPair(args[0], args[1]), Date: day, Value: value}
			if err := engine.SaveRate(cmd.Context(), rate); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored %s %s on %s\n", rate.Pair, value.String(), day.Format("2006-01-02"))
			return err
		},
	}

	validateOpts := FXValidateOptions{}
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every currency has a rate for a month (exit 10 on gaps)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			validator := &FXValidator{
				History:   engine.History(),
				Ledger:    engine.Repository,
				Base:      engine.Rates.Base(),
				Catalogue: engine.Currencies,
			}
			run := validateOpts
			run.JSONOutput = opts.jsonOut
			run.Stdout = cmd.OutOrStdout()
			run.Stderr = cmd.ErrOrStderr()
			if code := validator.ValidateCommand(cmd.Context(), run); code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	validateCmd.Flags().StringVar(&validateOpts.Period, "period", time.Now().UTC().Format("2006-01"), "month to check (YYYY-MM)")
	validateCmd.Flags().StringSliceVar(&validateOpts.Currencies, "currency", nil, "check only these currencies")

	cmd.AddCommand(rateCmd, setCmd, validateCmd)
	return cmd
}
