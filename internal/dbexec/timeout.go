package dbexec

import (
	"context"
	"database/sql"
	"time"
)

// WithTimeout bounds every statement issued through the wrapped executor with
// its own deadline. The driver cancels the in-flight statement when the
// deadline passes, so a slow query fails instead of holding its connection.
// A non-positive timeout returns the executor unchanged.
func WithTimeout(inner QueryExecutor, timeout time.Duration) QueryExecutor {
	if timeout <= 0 {
		return inner
	}
	return &timeoutExecutor{inner: inner, timeout: timeout}
}

type timeoutExecutor struct {
	inner   QueryExecutor
	timeout time.Duration
}

func (e *timeoutExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	// The deadline has to survive until the caller finishes reading rows;
	// canceling on return would abort the result stream mid-scan.
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	rows, err := e.inner.QueryContext(ctx, query, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelingRows{Rows: rows, cancel: cancel}, nil
}

func (e *timeoutExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.inner.ExecContext(ctx, query, args...)
}

// cancelingRows releases the statement deadline when the row stream closes.
type cancelingRows struct {
	Rows
	cancel context.CancelFunc
}

func (r *cancelingRows) Close() error {
	err := r.Rows.Close()
	r.cancel()
	return err
}
