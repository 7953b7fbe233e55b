package port

import "context"

// Transactor runs a function inside a storage transaction. Repository calls
// made with the context passed to fn join that transaction, so a service can
// make writes across several repositories land or roll back together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
