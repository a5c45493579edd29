package ports

import (
	"context"

	"finviz/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionStore persists transactions. Every implementation returns
	// failures as *core.StorageError.
	TransactionStore interface {
		// Insert stores a new transaction and assigns its id.
		Insert(ctx context.Context, t core.NewTransaction) (core.Transaction, error)
		// ListByDateDesc returns all transactions, newest date first. Equal
		// dates keep insertion order.
		ListByDateDesc(ctx context.Context) ([]core.Transaction, error)
		// Get returns core.ErrNotFound for unknown ids.
		Get(ctx context.Context, id string) (core.Transaction, error)
		// UpdateByID merges the supplied patch fields into the record.
		UpdateByID(ctx context.Context, id string, p core.Patch) (core.UpdateResult, error)
		// DeleteByID is idempotent.
		DeleteByID(ctx context.Context, id string) error
		Close() error
	}

	// Notifier publishes an invalidation after a successful mutation.
	Notifier interface {
		Notify(ctx context.Context, inv core.Invalidation) error
	}
)
