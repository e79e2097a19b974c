// Command seed fills an empty ledger with a small two-currency demo book.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitlabstudio/account-keeping/internal/app"
	"github.com/bitlabstudio/account-keeping/internal/fx"
	"github.com/bitlabstudio/account-keeping/internal/ledger"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig(os.Getenv("ENV_FILE"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	engine, err := app.Open(ctx, cfg, app.EngineOptions{Logger: app.NewLoggerTo(cfg, os.Stderr), Migrate: true})
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer engine.Close()

	fmt.Println("→ Seeding rates...")
	if err := seedRates(ctx, engine, cfg.BaseCurrency); err != nil {
		log.Fatalf("seed rates: %v", err)
	}
	fmt.Println("→ Seeding ledger...")
	if err := seedLedger(ctx, engine.Ledger, cfg.BaseCurrency); err != nil {
		log.Fatalf("seed ledger: %v", err)
	}
	fmt.Println("✓ Seed complete")
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// foreign is the second currency of the demo book.
func foreign(base string) string {
	if base == "USD" {
		return "EUR"
	}
	return "USD"
}

func seedRates(ctx context.Context, engine *app.Engine, base string) error {
	pair := fx.NewPair(foreign(base), base)
	year := time.Now().UTC().Year()
	values := []string{"0.91", "0.92", "0.90", "0.93", "0.94", "0.92"}
	for i, v := range values {
		rate := fx.Rate{Pair: pair, Date: day(year, time.Month(i+1), 1), Value: amount(v)}
		if err := engine.SaveRate(ctx, rate); err != nil {
			return err
		}
	}
	return nil
}

func seedLedger(ctx context.Context, svc *ledger.Service, base string) error {
	year := time.Now().UTC().Year()
	bank, err := svc.CreateAccount(ctx, ledger.Account{Name: "Bank", Slug: "bank", Currency: base, InitialAmount: amount("2500"), Active: true})
	if err != nil {
		return err
	}
	card, err := svc.CreateAccount(ctx, ledger.Account{Name: "Card", Slug: "card", Currency: foreign(base), Active: true})
	if err != nil {
		return err
	}
	client, err := svc.CreatePayee(ctx, ledger.Payee{Name: "Client Ltd"})
	if err != nil {
		return err
	}
	hosting, err := svc.CreatePayee(ctx, ledger.Payee{Name: "Hosting Inc"})
	if err != nil {
		return err
	}
	sales, err := svc.CreateCategory(ctx, ledger.Category{Name: "Sales"})
	if err != nil {
		return err
	}
	infra, err := svc.CreateCategory(ctx, ledger.Category{Name: "Infrastructure"})
	if err != nil {
		return err
	}

	for m := time.January; m <= time.March; m++ {
		invoice, err := svc.SaveInvoice(ctx, ledger.Invoice{
			Type:    ledger.Deposit,
			Date:    day(year, m, 5),
			Number:  fmt.Sprintf("INV-%d-%02d", year, m),
			Amounts: ledger.Amounts{Currency: base, AmountNet: amount("1000"), VAT: amount("19")},
		})
		if err != nil {
			return err
		}
		// The March invoice stays open.
		if m < time.March {
			if _, _, err := svc.PayInvoiceWithTransaction(ctx, invoice.ID, ledger.Transaction{
				AccountID:  bank.ID,
				Type:       ledger.Deposit,
				Date:       day(year, m, 20),
				PayeeID:    client.ID,
				CategoryID: sales.ID,
				Amounts:    ledger.Amounts{Currency: base, AmountGross: amount("1190"), VAT: amount("19")},
			}); err != nil {
				return err
			}
		}
		if _, err := svc.SaveTransaction(ctx, ledger.Transaction{
			AccountID:   card.ID,
			Type:        ledger.Withdrawal,
			Date:        day(year, m, 12),
			Description: "Servers",
			PayeeID:     hosting.ID,
			CategoryID:  infra.ID,
			Amounts:     ledger.Amounts{Currency: card.Currency, AmountGross: amount("49.99")},
		}); err != nil {
			return err
		}
	}
	return nil
}
