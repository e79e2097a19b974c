package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitlabstudio/account-keeping/internal/fx"
)

// CurrencyLister reports the currencies stored in the ledger.
type CurrencyLister interface {
	CurrenciesInUse(ctx context.Context) ([]string, error)
}

// FXValidator checks rate coverage for the ledger's currencies.
type FXValidator struct {
	History   fx.History
	Ledger    CurrencyLister
	Base      string
	Catalogue []string
}

// FXValidateOptions defines available flags for the fx validate command.
type FXValidateOptions struct {
	Period string
	// Currencies replaces the catalogue and ledger currencies when set.
	Currencies []string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// FXValidateSummary describes the JSON response for fx validate.
type FXValidateSummary struct {
	OK        bool                       `json:"ok"`
	Period    string                     `json:"period"`
	Base      string                     `json:"base"`
	Gaps      []FXValidationGap          `json:"gaps"`
	Available []FXValidationAvailability `json:"available"`
}

// FXValidationGap is a pair without a rate in the period.
type FXValidationGap struct {
	Pair string `json:"pair"`
	// FallbackDate is the date of the earlier rate reports will use, if any.
	FallbackDate string `json:"fallback_date,omitempty"`
}

// FXValidationAvailability reports a rate found inside the period.
type FXValidationAvailability struct {
	Pair  string          `json:"pair"`
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// ValidateCommand executes the fx validate workflow and prints the outcome.
// It returns 0 when every pair has a rate in the period, 10 when gaps exist
// and 1 on errors.
func (v *FXValidator) ValidateCommand(ctx context.Context, opts FXValidateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	period, err := time.Parse("2006-01", strings.TrimSpace(opts.Period))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "fx validate: invalid period %q (expected YYYY-MM)\n", opts.Period)
		return 1
	}
	currencies := opts.Currencies
	if len(currencies) == 0 {
		inUse, err := v.Ledger.CurrenciesInUse(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "fx validate: %v\n", err)
			return 1
		}
		currencies = append(append([]string{}, v.Catalogue...), inUse...)
	}
	result, err := fx.Validate(ctx, v.History, v.Base, period, currencies)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "fx validate: %v\n", err)
		return 1
	}
	summary := buildValidateSummary(strings.ToUpper(v.Base), result)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "fx validate: encode json: %v\n", err)
			return 1
		}
	} else {
		renderValidateHuman(opts.Stdout, summary, result.Checked)
	}
	if !summary.OK {
		return 10
	}
	return 0
}

func buildValidateSummary(base string, result fx.Result) FXValidateSummary {
	gaps := make([]FXValidationGap, 0, len(result.Gaps))
	for _, gap := range result.Gaps {
		entry := FXValidationGap{Pair: gap.Pair.String()}
		if gap.CarryForward != nil {
			entry.FallbackDate = gap.CarryForward.Date.Format("2006-01-02")
		}
		gaps = append(gaps, entry)
	}
	available := make([]FXValidationAvailability, 0, len(result.Available))
	for pair, rate := range result.Available {
		available = append(available, FXValidationAvailability{Pair: pair, Date: rate.Date.Format("2006-01-02"), Value: rate.Value})
	}
	sort.Slice(available, func(i, j int) bool { return available[i].Pair < available[j].Pair })
	return FXValidateSummary{
		OK:        len(gaps) == 0,
		Period:    result.Period.Format("2006-01"),
		Base:      base,
		Gaps:      gaps,
		Available: available,
	}
}

func renderValidateHuman(out io.Writer, summary FXValidateSummary, checked int) {
	_, _ = fmt.Fprintf(out, "FX validation into %s for %s: %d pair(s) checked\n", summary.Base, summary.Period, checked)
	if summary.OK {
		_, _ = fmt.Fprintln(out, "All required FX rates are present.")
	} else {
		_, _ = fmt.Fprintf(out, "%d gap(s) detected:\n", len(summary.Gaps))
		for _, gap := range summary.Gaps {
			if gap.FallbackDate == "" {
				_, _ = fmt.Fprintf(out, " - %s missing, no earlier rate\n", gap.Pair)
				continue
			}
			_, _ = fmt.Fprintf(out, " - %s missing, carried forward from %s\n", gap.Pair, gap.FallbackDate)
		}
	}
	for _, rate := range summary.Available {
		_, _ = fmt.Fprintf(out, " - %s %s (%s)\n", rate.Pair, rate.Value.String(), rate.Date)
	}
}
