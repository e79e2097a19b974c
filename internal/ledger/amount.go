package ledger

import (
	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of decimal places money is stored with.
const AmountPlaces = 2

var (
	hundred = decimal.NewFromInt(100)
	// maxVAT matches the numeric(4,2) column the rate is stored in.
	maxVAT = decimal.RequireFromString("99.99")
	// consistencyTolerance is the largest gap accepted between a supplied
	// gross and the gross derived from net and VAT.
	consistencyTolerance = decimal.RequireFromString("0.01")
)

// VATFactor returns 1 + vat/100.
func VATFactor(vat decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(vat.Div(hundred))
}

// DeriveNetGross fills in whichever of net and gross is missing (zero) from
// the other and the VAT percentage. When both are supplied they are returned
// unchanged; when neither is, both stay zero. Derived amounts are rounded to
// AmountPlaces.
func DeriveNetGross(net, gross, vat decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if err := checkVAT(vat); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if net.IsNegative() {
		return decimal.Zero, decimal.Zero, &InvalidAmountConfigurationError{Field: "amount_net", Reason: "must not be negative"}
	}
	if gross.IsNegative() {
		return decimal.Zero, decimal.Zero, &InvalidAmountConfigurationError{Field: "amount_gross", Reason: "must not be negative"}
	}
	switch {
	case !net.IsZero() && gross.IsZero():
		if vat.IsZero() {
			return net, net, nil
		}
		return net, net.Mul(VATFactor(vat)).Round(AmountPlaces), nil
	case net.IsZero() && !gross.IsZero():
		if vat.IsZero() {
			return gross, gross, nil
		}
		return gross.Div(VATFactor(vat)).Round(AmountPlaces), gross, nil
	default:
		return net, gross, nil
	}
}

// DeriveValue signs amount by entry type: withdrawals are negative.
func DeriveValue(amount decimal.Decimal, t EntryType) decimal.Decimal {
	if t == Withdrawal {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

// ConsistentAmounts reports whether gross matches net and vat within one cent.
func ConsistentAmounts(net, gross, vat decimal.Decimal) bool {
	expected := net.Mul(VATFactor(vat)).Round(AmountPlaces)
	return expected.Sub(gross).Abs().LessThanOrEqual(consistencyTolerance)
}

func checkVAT(vat decimal.Decimal) error {
	if vat.IsNegative() {
		return &InvalidAmountConfigurationError{Field: "vat", Reason: "must not be negative"}
	}
	if vat.GreaterThan(maxVAT) {
		return &InvalidAmountConfigurationError{Field: "vat", Reason: "must be below 100"}
	}
	return nil
}
