package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// Buy followed by a sell of the same amount at an unchanged price restores
// balance and holding exactly.
func TestProperty_BuySellRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		holding := rapid.Int64Range(1, 10_000).Draw(rt, "holding")
		amt := rapid.Int64Range(1, 1_000).Draw(rt, "amt")
		balance := rapid.Float64Range(-1e10, 1e10).Draw(rt, "balance")
		price := rapid.Float64Range(1e-6, 1e6).Draw(rt, "price")

		e := newEnv(t, fixedPrices{"AAPL": price}, DefaultPolicy())
		e.seed(t, 1, map[string]int64{"AAPL": holding}, balance)
		ctx := context.Background()

		if ok, err := e.svc.Buy(ctx, 1, "AAPL", amt); err != nil || !ok {
			rt.Fatalf("Buy = %v, %v", ok, err)
		}
		if ok, err := e.svc.Sell(ctx, 1, "AAPL", amt); err != nil || !ok {
			rt.Fatalf("Sell = %v, %v", ok, err)
		}

		p, err := e.store.Get(ctx, 1)
		if err != nil {
			rt.Fatalf("Get: %v", err)
		}
		if !p.Balance.Equal(decimal.NewFromFloat(balance)) {
			rt.Fatalf("balance %v after round trip, want %v", p.Balance, balance)
		}
		if p.Holdings["AAPL"] != holding {
			rt.Fatalf("holding %d after round trip, want %d", p.Holdings["AAPL"], holding)
		}
		if len(p.History) != 2 {
			rt.Fatalf("Expected 2 history entries, got %d", len(p.History))
		}
	})
}

// A sell on a missing or non-positive holding never succeeds and never writes.
func TestProperty_SellWithoutHoldingRejected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		holding := rapid.Int64Range(-100, 0).Draw(rt, "holding")
		amt := rapid.Int64Range(1, 100).Draw(rt, "amt")
		absent := rapid.Bool().Draw(rt, "absent")

		e := newEnv(t, fixedPrices{"AAPL": 10}, Policy{AllowOversell: true, AllowNegativeBalance: true})
		holdings := map[string]int64{"AAPL": holding}
		if absent {
			holdings = map[string]int64{"MSFT": 1}
		}
		e.seed(t, 1, holdings, 0)
		before := string(e.raw(t, 1))

		ok, err := e.svc.Sell(context.Background(), 1, "AAPL", amt)
		if err != nil || ok {
			rt.Fatalf("Sell = %v, %v; want false, nil", ok, err)
		}
		if after := string(e.raw(t, 1)); after != before {
			rt.Fatalf("record changed: %s -> %s", before, after)
		}
	})
}
