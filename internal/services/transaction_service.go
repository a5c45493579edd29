package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"finviz/internal/core"
	"finviz/internal/ports"
)

// TransactionService is a thin pass-through over the store. Every successful
// mutation is followed by exactly one invalidation per notifier.
type TransactionService struct {
	store     ports.TransactionStore
	notifiers []ports.Notifier
}

func NewTransactionService(store ports.TransactionStore, notifiers ...ports.Notifier) *TransactionService {
	active := make([]ports.Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &TransactionService{store: store, notifiers: active}
}

// Create stores a validated transaction.
func (s *TransactionService) Create(ctx context.Context, t core.NewTransaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.Insert(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.publish(ctx, core.NewInvalidation(core.OpCreated, created.ID))
	return created, nil
}

// List returns every transaction, newest date first.
func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.store.ListByDateDesc(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Get returns core.ErrNotFound for unknown ids.
func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

// Update merges the patch into the stored record. A NotFound outcome is not
// an error and publishes nothing.
func (s *TransactionService) Update(ctx context.Context, id string, p core.Patch) (core.UpdateResult, error) {
	if err := p.Validate(); err != nil {
		return core.UpdateResult{}, err
	}

	res, err := s.store.UpdateByID(ctx, id, p)
	if err != nil {
		return core.UpdateResult{}, fmt.Errorf("update transaction %s: %w", id, err)
	}

	if res.Found() {
		s.publish(ctx, core.NewInvalidation(core.OpUpdated, id))
	}
	return res, nil
}

// Delete removes the record if present. Deleting an unknown id succeeds.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}

	s.publish(ctx, core.NewInvalidation(core.OpDeleted, id))
	return nil
}

// Ping reports store health when the store supports it.
func (s *TransactionService) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// publish never fails the request: the mutation already happened.
func (s *TransactionService) publish(ctx context.Context, inv core.Invalidation) {
	if len(s.notifiers) == 0 {
		slog.DebugContext(ctx, "No notifiers configured, skipping invalidation", "op", inv.Op)
		return
	}
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, inv); err != nil {
			slog.ErrorContext(ctx, "Failed to publish invalidation",
				"op", inv.Op,
				"id", inv.ID,
				"error", err)
		}
	}
}

// Close closes the store and every notifier holding a connection.
func (s *TransactionService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	for _, n := range s.notifiers {
		if c, ok := n.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("notifier: %w", err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}
