package event

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xAtharva/stabledebt/id"
)

type Kind string

const (
	KindMint Kind = "mint"
	KindBurn Kind = "burn"
	KindSync Kind = "sync"
)

// Event is one journaled debt operation. Mint and burn events carry the
// full accrual snapshot; sync events carry only the amount and the
// resulting supply.
type Event struct {
	ID              id.ID          `json:"id"`
	Asset           common.Address `json:"asset"`
	Kind            Kind           `json:"kind"`
	Caller          common.Address `json:"caller"`
	OnBehalfOf      common.Address `json:"on_behalf_of"`
	Amount          *big.Int       `json:"amount"`                     // wad
	CurrentBalance  *big.Int       `json:"current_balance,omitempty"`  // wad, before the operation
	BalanceIncrease *big.Int       `json:"balance_increase,omitempty"` // wad, interest accrued
	Rate            *big.Int       `json:"rate,omitempty"`             // ray, user rate after a mint
	AvgRate         *big.Int       `json:"avg_rate"`                   // ray
	NewTotalSupply  *big.Int       `json:"new_total_supply"`           // wad
	Timestamp       time.Time      `json:"timestamp"`
}

// Clone returns a deep copy. Nil big.Int fields stay nil.
func (e *Event) Clone() *Event {
	out := *e
	out.Amount = cloneBig(e.Amount)
	out.CurrentBalance = cloneBig(e.CurrentBalance)
	out.BalanceIncrease = cloneBig(e.BalanceIncrease)
	out.Rate = cloneBig(e.Rate)
	out.AvgRate = cloneBig(e.AvgRate)
	out.NewTotalSupply = cloneBig(e.NewTotalSupply)
	return &out
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
