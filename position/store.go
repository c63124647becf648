package position

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Store interface {
	Get(ctx context.Context, asset, user common.Address) (*Position, error)
	Put(ctx context.Context, p *Position) error
	Delete(ctx context.Context, asset, user common.Address) error
	List(ctx context.Context, asset common.Address, opts ListOpts) ([]*Position, error)
}

type ListOpts struct {
	Limit  int
	Offset int
}
