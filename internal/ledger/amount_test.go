package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeriveNetGross(t *testing.T) {
	cases := []struct {
		name      string
		net       string
		gross     string
		vat       string
		wantNet   string
		wantGross string
	}{
		{name: "gross from net", net: "100", gross: "0", vat: "19", wantNet: "100", wantGross: "119.00"},
		{name: "zero vat is identity", net: "100", gross: "0", vat: "0", wantNet: "100", wantGross: "100"},
		{name: "net from gross", net: "0", gross: "119", vat: "19", wantNet: "100.00", wantGross: "119"},
		{name: "net from gross rounds", net: "0", gross: "10", vat: "19", wantNet: "8.40", wantGross: "10"},
		{name: "both kept", net: "100", gross: "150", vat: "19", wantNet: "100", wantGross: "150"},
		{name: "neither", net: "0", gross: "0", vat: "19", wantNet: "0", wantGross: "0"},
		{name: "fractional vat", net: "49.99", gross: "0", vat: "7.5", wantNet: "49.99", wantGross: "53.74"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			net, gross, err := DeriveNetGross(d(tc.net), d(tc.gross), d(tc.vat))
			require.NoError(t, err)
			require.True(t, net.Equal(d(tc.wantNet)), "net %s", net)
			require.True(t, gross.Equal(d(tc.wantGross)), "gross %s", gross)
		})
	}
}

func TestDeriveNetGrossRoundTrip(t *testing.T) {
	for _, vat := range []string{"0", "7", "7.5", "16", "19", "20"} {
		for _, net := range []string{"0.01", "1", "9.99", "100", "1234.56", "99999.99"} {
			_, gross, err := DeriveNetGross(d(net), decimal.Zero, d(vat))
			require.NoError(t, err)
			back, _, err := DeriveNetGross(decimal.Zero, gross, d(vat))
			require.NoError(t, err)
			_, again, err := DeriveNetGross(back, decimal.Zero, d(vat))
			require.NoError(t, err)
			require.True(t, again.Equal(gross), "net %s vat %s: gross %s then %s", net, vat, gross, again)
		}
	}
}

func TestDeriveNetGrossRejectsBadVAT(t *testing.T) {
	_, _, err := DeriveNetGross(d("100"), decimal.Zero, d("-1"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidAmountConfiguration))
	var cfgErr *InvalidAmountConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, "vat", cfgErr.Field)

	_, _, err = DeriveNetGross(d("100"), decimal.Zero, d("100"))
	require.ErrorIs(t, err, ErrInvalidAmountConfiguration)

	_, _, err = DeriveNetGross(d("-5"), decimal.Zero, d("19"))
	require.ErrorIs(t, err, ErrInvalidAmountConfiguration)
}

func TestDeriveValue(t *testing.T) {
	for _, amount := range []string{"0", "0.01", "50", "1234.56"} {
		w := DeriveValue(d(amount), Withdrawal)
		dep := DeriveValue(d(amount), Deposit)
		require.True(t, w.Abs().Equal(d(amount)))
		require.True(t, dep.Equal(d(amount)))
		if !d(amount).IsZero() {
			require.True(t, w.IsNegative())
		}
	}
	require.True(t, DeriveValue(d("50"), Withdrawal).Equal(d("-50")))
}

func TestConsistentAmounts(t *testing.T) {
	require.True(t, ConsistentAmounts(d("100"), d("119"), d("19")))
	require.True(t, ConsistentAmounts(d("8.40"), d("10"), d("19")))
	require.False(t, ConsistentAmounts(d("100"), d("150"), d("19")))
}
