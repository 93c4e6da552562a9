// Package postgres implements storage.Store against PostgreSQL via
// database/sql and github.com/lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/solward/flywheel/internal/storage"
)

// BaseStore provides common PostgreSQL operations embedded by every
// entity-specific repository in this package to reduce boilerplate.
type BaseStore struct {
	db        *sql.DB
	tableName string
}

// NewBaseStore creates a new BaseStore for the given table.
func NewBaseStore(db *sql.DB, tableName string) *BaseStore {
	return &BaseStore{db: db, tableName: tableName}
}

// DB returns the underlying database connection.
func (s *BaseStore) DB() *sql.DB { return s.db }

// TableName returns the table name.
func (s *BaseStore) TableName() string { return s.tableName }

// Querier returns the transaction active on ctx, or the pooled *sql.DB.
func (s *BaseStore) Querier(ctx context.Context) storage.Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

type txKey struct{}

// TxFromContext extracts a transaction from context, if one is active.
func TxFromContext(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// ContextWithTx returns a context carrying the given transaction.
func ContextWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// BeginTx starts a new transaction and attaches it to the returned context.
func (s *BaseStore) BeginTx(ctx context.Context) (context.Context, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctx, fmt.Errorf("begin transaction: %w", err)
	}
	return ContextWithTx(ctx, tx), nil
}

// CommitTx commits the transaction active on ctx.
func (s *BaseStore) CommitTx(ctx context.Context) error {
	tx := TxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}
	return tx.Commit()
}

// RollbackTx rolls back the transaction active on ctx, if any.
func (s *BaseStore) RollbackTx(ctx context.Context) error {
	tx := TxFromContext(ctx)
	if tx == nil {
		return nil
	}
	return tx.Rollback()
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error. Used for every multi-row invariant write: ActivatePending,
// AdvanceCycle, ReactivateSuspended.
func (s *BaseStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(txCtx); err != nil {
		_ = s.RollbackTx(txCtx)
		return err
	}
	return s.CommitTx(txCtx)
}

func (s *BaseStore) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.Querier(ctx).ExecContext(ctx, query, args...)
}

func (s *BaseStore) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.Querier(ctx).QueryContext(ctx, query, args...)
}

func (s *BaseStore) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.Querier(ctx).QueryRowContext(ctx, query, args...)
}

// Exists checks if a record exists by id.
func (s *BaseStore) Exists(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", s.tableName)
	var exists bool
	err := s.QueryRowContext(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}
	return exists, nil
}

// NullTimeToPtr converts sql.NullTime to *time.Time.
func NullTimeToPtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// PtrToNullTime converts *time.Time to sql.NullTime.
func PtrToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// SelectBuilder helps build parameterised SELECT queries.
type SelectBuilder struct {
	table      string
	columns    []string
	conditions []string
	args       []any
	orderBy    []string
	limit      int
	argIndex   int
}

// NewSelectBuilder creates a new SelectBuilder over table.
func NewSelectBuilder(table string) *SelectBuilder {
	return &SelectBuilder{table: table, argIndex: 1}
}

func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder { b.columns = cols; return b }

func (b *SelectBuilder) WhereEq(column string, value any) *SelectBuilder {
	b.conditions = append(b.conditions, fmt.Sprintf("%s = $%d", column, b.argIndex))
	b.args = append(b.args, value)
	b.argIndex++
	return b
}

func (b *SelectBuilder) OrderBy(column string, desc bool) *SelectBuilder {
	order := "ASC"
	if desc {
		order = "DESC"
	}
	b.orderBy = append(b.orderBy, fmt.Sprintf("%s %s", column, order))
	return b
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder { b.limit = n; return b }

// Build returns the final SQL and its positional arguments.
func (b *SelectBuilder) Build() (string, []any) {
	cols := "*"
	if len(b.columns) > 0 {
		cols = strings.Join(b.columns, ", ")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", cols, b.table)
	if len(b.conditions) > 0 {
		query += " WHERE " + strings.Join(b.conditions, " AND ")
	}
	if len(b.orderBy) > 0 {
		query += " ORDER BY " + strings.Join(b.orderBy, ", ")
	}
	if b.limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", b.limit)
	}
	return query, b.args
}
