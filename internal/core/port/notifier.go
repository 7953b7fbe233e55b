package port

import (
	"context"

	"github.com/timothysaatum/election-system/internal/core/domain"
)

// Notifier delivers issued token codes to voters over external channels.
// Delivery is best-effort and happens off the issuance critical path.
type Notifier interface {
	NotifyTokenIssued(ctx context.Context, voter domain.Voter, code string) error
}
