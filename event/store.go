package event

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Store interface {
	AppendBatch(ctx context.Context, events []*Event) error
	Query(ctx context.Context, asset common.Address, opts QueryOpts) ([]*Event, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type QueryOpts struct {
	Kind   Kind
	User   *common.Address
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}
