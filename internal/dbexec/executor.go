// Package dbexec provides database execution abstractions: pooled, pinned
// connection and transaction executors behind one interface, plus the
// per-engine stored procedure call adapter.
package dbexec

import (
	"context"
	"database/sql"
)

// Rows abstracts sql.Rows to allow wrapped cleanup behavior. NextResultSet
// is part of the surface because stored procedures can return several sets.
type Rows interface {
	Next() bool
	NextResultSet() bool
	Columns() ([]string, error)
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts SQL execution so callers can run against a pool,
// a pinned connection, or an open transaction interchangeably.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StandardExecutor executes queries directly against a pooled database
// handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor that runs queries directly against
// the database.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

func (e *StandardExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.ExecContext(ctx, query, args...)
}

// TxExecutor executes queries inside an open transaction. Everything runs on
// the transaction's connection, so session state such as last-insert
// identity readback is coherent across statements.
type TxExecutor struct {
	tx *sql.Tx
}

// NewTxExecutor creates an executor bound to a transaction.
func NewTxExecutor(tx *sql.Tx) *TxExecutor {
	return &TxExecutor{tx: tx}
}

func (e *TxExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.tx == nil {
		return nil, sql.ErrTxDone
	}
	return e.tx.QueryContext(ctx, query, args...)
}

func (e *TxExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.tx == nil {
		return nil, sql.ErrTxDone
	}
	return e.tx.ExecContext(ctx, query, args...)
}

// ConnExecutor executes queries on one pinned connection. Stored procedure
// calls that read session variables back need this; a pool could hand the
// follow-up query to a different connection.
type ConnExecutor struct {
	conn *sql.Conn
}

// NewConnExecutor creates an executor bound to a single connection. The
// caller keeps ownership of the connection and closes it when done.
func NewConnExecutor(conn *sql.Conn) *ConnExecutor {
	return &ConnExecutor{conn: conn}
}

func (e *ConnExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.conn == nil {
		return nil, sql.ErrConnDone
	}
	return e.conn.QueryContext(ctx, query, args...)
}

func (e *ConnExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.conn == nil {
		return nil, sql.ErrConnDone
	}
	return e.conn.ExecContext(ctx, query, args...)
}
