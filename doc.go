// Package stabledebt provides a stable-rate debt accounting engine for Go
// applications.
//
// It is designed as a library, not a service. Import it directly into your
// Go application and embed it wherever debt positions need to be tracked.
// It provides:
//
//   - Per-user debt positions compounding at the rate fixed when borrowed
//   - A principal-weighted average rate over the aggregate supply
//   - Interest accrual via a closed-form cubic approximation, integer-only
//   - An asynchronous event journal with batched persistence
//   - Cross-chain balance reconciliation
//   - Pluggable incentives and lifecycle hooks
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/0xAtharva/stabledebt"
//	    "github.com/0xAtharva/stabledebt/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create ledger for one underlying asset
//	l := stabledebt.New(store, assetAddress)
//
//	// Start the ledger (migrates and begins background workers)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Mint issues debt at a fixed yearly rate; the borrower's rate becomes the
// principal-weighted mean of their old rate and the new one:
//
//	res, err := l.Mint(ctx, caller, borrower, amount, rate)
//	if res.FirstBorrow {
//	    // borrower had no debt before this mint
//	}
//
// Burn repays debt, settling accrued interest first:
//
//	res, err := l.Burn(ctx, borrower, amount)
//
// Balances compound continuously and are computed on read:
//
//	balance, err := l.BalanceOf(ctx, borrower)
//	total, err := l.TotalSupply(ctx)
//
// # Precision
//
// All amounts are wads (18-decimal fixed point) and all rates are rays
// (27-decimal fixed point), held in big.Int. Every calculation is integer
// arithmetic with half-up rounding; no floating point is used anywhere.
//
// # TypeID
//
// Journaled events use TypeID for globally unique, type-safe identifiers:
//
//	mint_01h2xcejqtf2nbrexx3vqjhp41  // Mint event
//	burn_01h2xcejqtf2nbrexx3vqjhp41  // Burn event
//	sync_01h455vb4pex5vsknk084sn02q  // Cross-chain sync event
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of the journal.
package stabledebt
