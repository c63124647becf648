package supply

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xAtharva/stabledebt/types"
)

// Supply is the aggregate stable debt issued against one underlying asset.
// TotalPrincipal is the wad supply at LastUpdated; AvgRate is the
// principal-weighted average of all open position rates.
type Supply struct {
	types.Entity
	Asset          common.Address `json:"asset"`
	TotalPrincipal *big.Int       `json:"total_principal"` // wad
	AvgRate        *big.Int       `json:"avg_rate"`        // ray
	LastUpdated    time.Time      `json:"last_updated"`
}

// TotalAt returns the total supply compounded at the average rate from
// LastUpdated up to the given instant, in wad.
func (s *Supply) TotalAt(at time.Time) *big.Int {
	return types.CompoundBalance(s.TotalPrincipal, s.AvgRate, s.LastUpdated, at)
}

// Clone returns a deep copy. big.Int fields are never shared between the
// copy and the original.
func (s *Supply) Clone() *Supply {
	out := *s
	out.TotalPrincipal = new(big.Int).Set(s.TotalPrincipal)
	out.AvgRate = new(big.Int).Set(s.AvgRate)
	return &out
}
