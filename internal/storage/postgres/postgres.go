package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finviz/internal/core"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const tableTransactions = "transactions"

// Columns are read back as text so decimals and dates round-trip exactly.
var selectColumns = []string{
	"id::text",
	"amount::text",
	"description",
	"to_char(date, 'YYYY-MM-DD')",
}

// Repository stores transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

// NewRepository connects to dsn, pings and migrates the schema.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateSchema(dsn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	slog.InfoContext(ctx, "PostgreSQL connection established",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"schema_version", version)

	return &Repository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Ping checks the pool.
func (r *Repository) Ping(ctx context.Context) error {
	return core.WrapStorage("ping", r.pool.Ping(ctx))
}

// Insert implements ports.TransactionStore
func (r *Repository) Insert(ctx context.Context, t core.NewTransaction) (core.Transaction, error) {
	tx := t.Build(uuid.NewString())

	query, args, err := r.qb.Insert(tableTransactions).
		Columns("id", "amount", "description", "date").
		Values(tx.ID, tx.Amount.String(), tx.Description, tx.Date.String()).
		ToSql()
	if err != nil {
		return core.Transaction{}, core.WrapStorage("insert", fmt.Errorf("build insert: %w", err))
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return core.Transaction{}, core.WrapStorage("insert", fmt.Errorf("insert transaction: %w", err))
	}

	slog.InfoContext(ctx, "Transaction saved to PostgreSQL", "id", tx.ID, "amount", tx.Amount.String())
	return tx, nil
}

// ListByDateDesc implements ports.TransactionStore
func (r *Repository) ListByDateDesc(ctx context.Context) ([]core.Transaction, error) {
	query, args, err := r.qb.Select(selectColumns...).
		From(tableTransactions).
		OrderBy("date DESC", "seq ASC").
		ToSql()
	if err != nil {
		return nil, core.WrapStorage("list", fmt.Errorf("build list: %w", err))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, core.WrapStorage("list", fmt.Errorf("query transactions: %w", err))
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, core.WrapStorage("list", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapStorage("list", fmt.Errorf("iterate transactions: %w", err))
	}
	return out, nil
}

// Get implements ports.TransactionStore
func (r *Repository) Get(ctx context.Context, id string) (core.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return core.Transaction{}, core.ErrNotFound
	}

	query, args, err := r.qb.Select(selectColumns...).
		From(tableTransactions).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return core.Transaction{}, core.WrapStorage("get", fmt.Errorf("build get: %w", err))
	}

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, core.WrapStorage("get", err)
	}
	return t, nil
}

// UpdateByID implements ports.TransactionStore with a single
// UPDATE ... RETURNING statement.
func (r *Repository) UpdateByID(ctx context.Context, id string, p core.Patch) (core.UpdateResult, error) {
	if _, err := uuid.Parse(id); err != nil {
		return core.NotFoundResult(), nil
	}
	if p.IsEmpty() {
		t, err := r.Get(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundResult(), nil
		}
		if err != nil {
			return core.UpdateResult{}, err
		}
		return core.UpdatedResult(t), nil
	}

	b := r.qb.Update(tableTransactions).Set("updated_at", sq.Expr("now()"))
	if p.Amount != nil {
		b = b.Set("amount", p.Amount.String())
	}
	if p.Description != nil {
		b = b.Set("description", *p.Description)
	}
	if p.Date != nil {
		b = b.Set("date", p.Date.String())
	}

	query, args, err := b.Where(sq.Eq{"id": id}).
		Suffix("RETURNING id::text, amount::text, description, to_char(date, 'YYYY-MM-DD')").
		ToSql()
	if err != nil {
		return core.UpdateResult{}, core.WrapStorage("update", fmt.Errorf("build update: %w", err))
	}

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NotFoundResult(), nil
	}
	if err != nil {
		return core.UpdateResult{}, core.WrapStorage("update", fmt.Errorf("update transaction %s: %w", id, err))
	}
	return core.UpdatedResult(t), nil
}

// DeleteByID implements ports.TransactionStore
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}

	query, args, err := r.qb.Delete(tableTransactions).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return core.WrapStorage("delete", fmt.Errorf("build delete: %w", err))
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return core.WrapStorage("delete", fmt.Errorf("delete transaction %s: %w", id, err))
	}
	return nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t            core.Transaction
		amount, date string
	)
	if err := row.Scan(&t.ID, &amount, &t.Description, &date); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scan transaction: %w", err)
	}

	a, err := decimal.NewFromString(amount)
	if err != nil {
		return t, fmt.Errorf("parse amount %q of %s: %w", amount, t.ID, err)
	}
	t.Amount = a

	d, err := core.ParseDate(date)
	if err != nil {
		return t, fmt.Errorf("parse date %q of %s: %w", date, t.ID, err)
	}
	t.Date = d
	return t, nil
}
