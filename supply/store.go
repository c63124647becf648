package supply

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Store interface {
	Get(ctx context.Context, asset common.Address) (*Supply, error)
	Put(ctx context.Context, s *Supply) error
}
