// Package incentives defines the hook reward distributors implement to
// track user debt balances.
package incentives

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Controller receives a notification after every balance-changing
// operation, before interest from the operation itself is applied.
// The ledger calls HandleAction inline and logs failures without
// rolling back the operation.
type Controller interface {
	HandleAction(ctx context.Context, user common.Address, totalSupply, userBalance *big.Int) error
}

// ControllerFunc adapts a plain function to the Controller interface.
type ControllerFunc func(ctx context.Context, user common.Address, totalSupply, userBalance *big.Int) error

func (f ControllerFunc) HandleAction(ctx context.Context, user common.Address, totalSupply, userBalance *big.Int) error {
	return f(ctx, user, totalSupply, userBalance)
}

// Noop is a Controller that ignores every notification.
var Noop Controller = ControllerFunc(func(context.Context, common.Address, *big.Int, *big.Int) error {
	return nil
})
