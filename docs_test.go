package stabledebt_test

import (
	"context"
	"log"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	stabledebt "github.com/0xAtharva/stabledebt"
	"github.com/0xAtharva/stabledebt/store/memory"
	"github.com/0xAtharva/stabledebt/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		asset := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")

		// Initialize the ledger
		l := stabledebt.New(store, asset,
			stabledebt.WithLogger(slog.Default()),
			stabledebt.WithJournalConfig(100, 5*time.Second),
		)

		// Start the engine
		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		borrower := common.HexToAddress("0x0000000000000000000000000000000000000b0b")

		// Borrow 1000 wad at 5% APR (expressed in ray)
		amount := new(big.Int).Mul(big.NewInt(1000), types.Wad)
		rate := new(big.Int).Div(types.Ray, big.NewInt(20))

		res, err := l.Mint(ctx, borrower, borrower, amount, rate)
		if err != nil {
			t.Fatal(err)
		}
		if res.FirstBorrow {
			log.Printf("first borrow, total supply now %s\n", res.NewTotalSupply.String())
		}

		// Current debt including accrued interest
		balance, err := l.BalanceOf(ctx, borrower)
		if err != nil {
			t.Fatal(err)
		}

		// Repay half of it
		half := new(big.Int).Div(balance, big.NewInt(2))
		if _, err := l.Burn(ctx, borrower, half); err != nil {
			t.Fatal(err)
		}

		avgRate, err := l.AverageStableRate(ctx)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("average stable rate: %s\n", avgRate.String())
	})

	// Test ray math examples
	t.Run("RayMathExamples", func(t *testing.T) {
		// Units
		_ = types.Wad // 1e18, token amounts
		_ = types.Ray // 1e27, interest rates

		// Fixed-point arithmetic, half-up rounding
		rate := new(big.Int).Div(types.Ray, big.NewInt(10)) // 10%
		_ = types.RayMul(rate, types.Ray)                   // rate
		_ = types.RayDiv(rate, types.Ray)                   // rate

		// Unit conversion
		amount := new(big.Int).Mul(big.NewInt(5), types.Wad)
		_ = types.WadToRay(amount)
		_ = types.RayToWad(types.WadToRay(amount)) // round trip

		// Compounded balance over one hour
		from := time.Unix(1_700_000_000, 0)
		to := from.Add(time.Hour)
		_ = types.CompoundBalance(amount, rate, from, to)
	})
}
