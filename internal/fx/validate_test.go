package fx

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestValidate_AllRatesAvailable(t *testing.T) {
	history := &fakeHistory{}
	history.add("USD", "EUR", day(2025, time.August, 3), "0.92")
	period := time.Date(2025, 8, 7, 12, 0, 0, 0, time.UTC)

	res, err := Validate(context.Background(), history, "eur", period, []string{"usd", "EUR", "USD"})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(res.Gaps) != 0 {
		t.Fatalf("expected no gaps, got %+v", res.Gaps)
	}
	if res.Checked != 1 {
		t.Fatalf("expected 1 pair checked, got %d", res.Checked)
	}
	if got := res.Available["USDEUR"].Value.String(); got != "0.92" {
		t.Fatalf("unexpected rate stored: %s", got)
	}
	if !res.Period.Equal(day(2025, time.August, 1)) {
		t.Fatalf("unexpected period %s", res.Period)
	}
}

func TestValidate_GapWithCarryForward(t *testing.T) {
	history := &fakeHistory{}
	history.add("USD", "EUR", day(2025, time.June, 30), "0.90")
	res, err := Validate(context.Background(), history, "EUR", day(2025, time.August, 1), []string{"USD", "CHF"})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(res.Gaps) != 2 {
		t.Fatalf("expected two gaps, got %d", len(res.Gaps))
	}
	chf, usd := res.Gaps[0], res.Gaps[1]
	if chf.Pair != NewPair("CHF", "EUR") || chf.CarryForward != nil {
		t.Fatalf("unexpected CHF gap %+v", chf)
	}
	if usd.CarryForward == nil || usd.CarryForward.Value.String() != "0.9" {
		t.Fatalf("expected USD to carry June forward, got %+v", usd)
	}
	if !res.Blocking() {
		t.Fatalf("expected CHF gap to block")
	}
}

func TestValidate_CarryForwardOnlyIsNotBlocking(t *testing.T) {
	history := &fakeHistory{}
	history.add("USD", "EUR", day(2025, time.June, 30), "0.90")
	res, err := Validate(context.Background(), history, "EUR", day(2025, time.August, 1), []string{"USD"})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(res.Gaps) != 1 || res.Blocking() {
		t.Fatalf("expected a single non-blocking gap, got %+v", res.Gaps)
	}
}

func TestValidate_ProviderError(t *testing.T) {
	history := &fakeHistory{err: errors.New("boom")}
	_, err := Validate(context.Background(), history, "EUR", day(2025, time.August, 1), []string{"USD"})
	if err == nil {
		t.Fatalf("expected error from history")
	}
}

func TestValidate_RequiresInput(t *testing.T) {
	if _, err := Validate(context.Background(), nil, "EUR", day(2025, time.August, 1), nil); err == nil {
		t.Fatalf("expected error for nil history")
	}
	if _, err := Validate(context.Background(), &fakeHistory{}, "EUR", time.Time{}, nil); err == nil {
		t.Fatalf("expected error for zero period")
	}
	if _, err := Validate(context.Background(), &fakeHistory{}, "EUR", day(2025, time.August, 1), []string{" "}); err == nil {
		t.Fatalf("expected error for blank currency")
	}
}
