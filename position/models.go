package position

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xAtharva/stabledebt/types"
)

// Position is one user's stable-rate debt against a single underlying asset.
// Principal is the wad amount owed at LastUpdated; interest since then is
// implied by Rate and computed on read.
type Position struct {
	types.Entity
	Asset       common.Address `json:"asset"`
	User        common.Address `json:"user"`
	Principal   *big.Int       `json:"principal"`    // wad
	Rate        *big.Int       `json:"rate"`         // ray, fixed when borrowed
	LastUpdated time.Time      `json:"last_updated"` // last accrual checkpoint
}

// BalanceAt returns the debt compounded at the position's own rate from
// LastUpdated up to the given instant, in wad.
func (p *Position) BalanceAt(at time.Time) *big.Int {
	return types.CompoundBalance(p.Principal, p.Rate, p.LastUpdated, at)
}

// Clone returns a deep copy. big.Int fields are never shared between the
// copy and the original.
func (p *Position) Clone() *Position {
	out := *p
	out.Principal = new(big.Int).Set(p.Principal)
	out.Rate = new(big.Int).Set(p.Rate)
	return &out
}
