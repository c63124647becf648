package postgres

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/0xAtharva/stabledebt/event"
	"github.com/0xAtharva/stabledebt/id"
	"github.com/0xAtharva/stabledebt/position"
	"github.com/0xAtharva/stabledebt/supply"
	"github.com/0xAtharva/stabledebt/types"
)

// Amounts and rates are persisted as decimal strings so they survive any
// big.Int magnitude without loss.

// ==================== Position models ====================

type positionModel struct {
	grove.BaseModel `grove:"table:stabledebt_positions"`

	ID          string    `grove:"id,pk"` // asset:user
	Asset       string    `grove:"asset"`
	User        string    `grove:"user_address"`
	Principal   string    `grove:"principal"`
	Rate        string    `grove:"rate"`
	LastUpdated time.Time `grove:"last_updated"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func positionKey(asset, user common.Address) string {
	return asset.Hex() + ":" + user.Hex()
}

func toPositionModel(p *position.Position) *positionModel {
	return &positionModel{
		ID:          positionKey(p.Asset, p.User),
		Asset:       p.Asset.Hex(),
		User:        p.User.Hex(),
		Principal:   p.Principal.String(),
		Rate:        p.Rate.String(),
		LastUpdated: p.LastUpdated,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPositionModel(m *positionModel) (*position.Position, error) {
	principal, err := parseBig(m.Principal)
	if err != nil {
		return nil, err
	}
	rate, err := parseBig(m.Rate)
	if err != nil {
		return nil, err
	}

	return &position.Position{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Asset:       common.HexToAddress(m.Asset),
		User:        common.HexToAddress(m.User),
		Principal:   principal,
		Rate:        rate,
		LastUpdated: m.LastUpdated,
	}, nil
}

// ==================== Supply models ====================

type supplyModel struct {
	grove.BaseModel `grove:"table:stabledebt_supply"`

	Asset          string    `grove:"asset,pk"`
	TotalPrincipal string    `grove:"total_principal"`
	AvgRate        string    `grove:"avg_rate"`
	LastUpdated    time.Time `grove:"last_updated"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toSupplyModel(s *supply.Supply) *supplyModel {
	return &supplyModel{
		Asset:          s.Asset.Hex(),
		TotalPrincipal: s.TotalPrincipal.String(),
		AvgRate:        s.AvgRate.String(),
		LastUpdated:    s.LastUpdated,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func fromSupplyModel(m *supplyModel) (*supply.Supply, error) {
	total, err := parseBig(m.TotalPrincipal)
	if err != nil {
		return nil, err
	}
	avgRate, err := parseBig(m.AvgRate)
	if err != nil {
		return nil, err
	}

	return &supply.Supply{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Asset:          common.HexToAddress(m.Asset),
		TotalPrincipal: total,
		AvgRate:        avgRate,
		LastUpdated:    m.LastUpdated,
	}, nil
}

// ==================== Event models ====================

type eventModel struct {
	grove.BaseModel `grove:"table:stabledebt_events"`

	ID              string    `grove:"id,pk"`
	Asset           string    `grove:"asset"`
	Kind            string    `grove:"kind"`
	Caller          string    `grove:"caller"`
	OnBehalfOf      string    `grove:"on_behalf_of"`
	Amount          string    `grove:"amount"`
	CurrentBalance  string    `grove:"current_balance"`
	BalanceIncrease string    `grove:"balance_increase"`
	Rate            string    `grove:"rate"`
	AvgRate         string    `grove:"avg_rate"`
	NewTotalSupply  string    `grove:"new_total_supply"`
	Timestamp       time.Time `grove:"timestamp"`
	CreatedAt       time.Time `grove:"created_at"`
}

func toEventModel(e *event.Event) *eventModel {
	return &eventModel{
		ID:              e.ID.String(),
		Asset:           e.Asset.Hex(),
		Kind:            string(e.Kind),
		Caller:          e.Caller.Hex(),
		OnBehalfOf:      e.OnBehalfOf.Hex(),
		Amount:          formatBig(e.Amount),
		CurrentBalance:  formatBig(e.CurrentBalance),
		BalanceIncrease: formatBig(e.BalanceIncrease),
		Rate:            formatBig(e.Rate),
		AvgRate:         formatBig(e.AvgRate),
		NewTotalSupply:  formatBig(e.NewTotalSupply),
		Timestamp:       e.Timestamp,
		CreatedAt:       time.Now().UTC(),
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseAny(m.ID)
	if err != nil {
		return nil, err
	}

	fields := [6]*big.Int{}
	for i, s := range []string{m.Amount, m.CurrentBalance, m.BalanceIncrease, m.Rate, m.AvgRate, m.NewTotalSupply} {
		fields[i], err = parseBigOptional(s)
		if err != nil {
			return nil, err
		}
	}

	return &event.Event{
		ID:              evtID,
		Asset:           common.HexToAddress(m.Asset),
		Kind:            event.Kind(m.Kind),
		Caller:          common.HexToAddress(m.Caller),
		OnBehalfOf:      common.HexToAddress(m.OnBehalfOf),
		Amount:          fields[0],
		CurrentBalance:  fields[1],
		BalanceIncrease: fields[2],
		Rate:            fields[3],
		AvgRate:         fields[4],
		NewTotalSupply:  fields[5],
		Timestamp:       m.Timestamp,
	}, nil
}

// ==================== Helpers ====================

// formatBig renders a value as a decimal string, empty for nil.
func formatBig(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// parseBig parses a required decimal string.
func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("stabledebt/postgres: invalid big integer %q", s)
	}
	return v, nil
}

// parseBigOptional parses a decimal string, mapping empty to nil.
func parseBigOptional(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseBig(s)
}
