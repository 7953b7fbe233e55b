package usecase

import (
	"context"

	"github.com/timothysaatum/election-system/internal/core/port"
)

// withinTransaction runs fn through the transactor when one is configured.
// Services constructed without a transactor, such as in tests against
// in-memory fakes, fall through to a plain call.
func withinTransaction(ctx context.Context, tx port.Transactor, fn func(ctx context.Context) error) error {
	if tx == nil {
		return fn(ctx)
	}
	return tx.WithinTransaction(ctx, fn)
}
