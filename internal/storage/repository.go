package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"finviz/internal/core"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const tableTransactions = "transactions"

var transactionColumns = []string{"id", "amount", "description", "date"}

type SQLiteRepository struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	slog.Info("SQLite database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return core.WrapStorage("ping", r.db.PingContext(ctx))
}

// Insert implements ports.TransactionStore
func (r *SQLiteRepository) Insert(ctx context.Context, t core.NewTransaction) (core.Transaction, error) {
	tx := t.Build(uuid.NewString())

	query, args, err := r.qb.Insert(tableTransactions).
		Columns(transactionColumns...).
		Values(tx.ID, tx.Amount.String(), tx.Description, tx.Date.String()).
		ToSql()
	if err != nil {
		return core.Transaction{}, core.WrapStorage("insert", fmt.Errorf("build insert: %w", err))
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return core.Transaction{}, core.WrapStorage("insert", fmt.Errorf("insert transaction: %w", err))
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"description", tx.Description,
		"amount", tx.Amount.String(),
		"date", tx.Date.String())

	return tx, nil
}

// ListByDateDesc implements ports.TransactionStore
func (r *SQLiteRepository) ListByDateDesc(ctx context.Context) ([]core.Transaction, error) {
	query, args, err := r.qb.Select(transactionColumns...).
		From(tableTransactions).
		OrderBy("date DESC", "seq ASC").
		ToSql()
	if err != nil {
		return nil, core.WrapStorage("list", fmt.Errorf("build list: %w", err))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
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
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	query, args, err := r.qb.Select(transactionColumns...).
		From(tableTransactions).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return core.Transaction{}, core.WrapStorage("get", fmt.Errorf("build get: %w", err))
	}

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, core.WrapStorage("get", err)
	}
	return t, nil
}

// UpdateByID implements ports.TransactionStore. Only supplied fields are
// written; the row is re-read afterwards so the result reflects storage.
func (r *SQLiteRepository) UpdateByID(ctx context.Context, id string, p core.Patch) (core.UpdateResult, error) {
	if !p.IsEmpty() {
		set := map[string]any{
			"updated_at": sq.Expr("strftime('%Y-%m-%dT%H:%M:%fZ', 'now')"),
		}
		if p.Amount != nil {
			set["amount"] = p.Amount.String()
		}
		if p.Description != nil {
			set["description"] = *p.Description
		}
		if p.Date != nil {
			set["date"] = p.Date.String()
		}

		query, args, err := r.qb.Update(tableTransactions).
			SetMap(set).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return core.UpdateResult{}, core.WrapStorage("update", fmt.Errorf("build update: %w", err))
		}

		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return core.UpdateResult{}, core.WrapStorage("update", fmt.Errorf("update transaction %s: %w", id, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return core.UpdateResult{}, core.WrapStorage("update", fmt.Errorf("rows affected: %w", err))
		}
		if n == 0 {
			return core.NotFoundResult(), nil
		}
	}

	t, err := r.Get(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.NotFoundResult(), nil
	}
	if err != nil {
		return core.UpdateResult{}, err
	}

	slog.InfoContext(ctx, "Transaction updated in SQLite", "id", id)
	return core.UpdatedResult(t), nil
}

// DeleteByID implements ports.TransactionStore
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	query, args, err := r.qb.Delete(tableTransactions).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return core.WrapStorage("delete", fmt.Errorf("build delete: %w", err))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.WrapStorage("delete", fmt.Errorf("delete transaction %s: %w", id, err))
	}

	if n, _ := res.RowsAffected(); n > 0 {
		slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t              core.Transaction
		amount, dateTx string
	)
	if err := row.Scan(&t.ID, &amount, &t.Description, &dateTx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scan transaction: %w", err)
	}

	a, err := decimal.NewFromString(amount)
	if err != nil {
		return t, fmt.Errorf("parse amount %q of %s: %w", amount, t.ID, err)
	}
	t.Amount = a

	d, err := core.ParseDate(dateTx)
	if err != nil {
		return t, fmt.Errorf("parse date %q of %s: %w", dateTx, t.ID, err)
	}
	t.Date = d

	return t, nil
}
