package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/bitlabstudio/account-keeping/internal/ledger"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders v with grouped thousands and two decimals, dropping
// the decimals for whole amounts: 1234.5 prints as "1,234.50", 1000 as "1,000".
func FormatAmount(v decimal.Decimal) string {
	v = v.Round(ledger.AmountPlaces)
	if v.Equal(v.Truncate(0)) {
		return amountPrinter.Sprint(number.Decimal(v.IntPart()))
	}
	f, _ := v.Float64()
	return amountPrinter.Sprint(number.Decimal(f,
		number.MinFractionDigits(ledger.AmountPlaces),
		number.MaxFractionDigits(ledger.AmountPlaces)))
}
