package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dhima/dbclient/internal/logging"
	"go.uber.org/zap"
)

// Operation names carried by statement errors and log lines.
const (
	OpInsert = "insert"
	OpSelect = "select"
	OpUpdate = "update"
	OpRemove = "remove"
)

// ExecResult is the outcome of an update or remove.
type ExecResult struct {
	RowsAffected int64 `json:"rows_affected"`
}

type execMode int

const (
	modeExec execMode = iota
	modeQuery
)

// statement is a prepared, bound and executed statement. Exactly one of
// result and rows is set, depending on the mode it was executed in.
type statement struct {
	stmt   *sql.Stmt
	result sql.Result
	rows   *sql.Rows
}

func (s *statement) close() error {
	var rowsErr error
	if s.rows != nil {
		rowsErr = s.rows.Close()
	}
	if err := s.stmt.Close(); err != nil {
		return err
	}
	return rowsErr
}

// Insert runs an INSERT and returns the id the database assigned to the new row.
func (c *Client) Insert(ctx context.Context, query string, params ...Param) (int64, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	start := time.Now()
	st, err := c.executeStatement(ctx, OpInsert, query, params, modeExec)
	if err != nil {
		return 0, err
	}
	defer c.release(OpInsert, st)

	id, err := st.result.LastInsertId()
	if err != nil {
		return 0, &ExecutionError{Op: OpInsert, Query: query, Err: fmt.Errorf("last insert id: %w", err)}
	}

	c.logStatement(OpInsert, query, start, zap.Int64("last_insert_id", id))
	return id, nil
}

// Select runs a query and reads the entire result set into memory.
// An empty result set yields an empty slice.
func (c *Client) Select(ctx context.Context, query string, params ...Param) ([]Row, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	st, err := c.executeStatement(ctx, OpSelect, query, params, modeQuery)
	if err != nil {
		return nil, err
	}
	defer c.release(OpSelect, st)

	rows, err := scanRows(st.rows)
	if err != nil {
		return nil, &ExecutionError{Op: OpSelect, Query: query, Err: fmt.Errorf("fetch rows: %w", err)}
	}

	c.logStatement(OpSelect, query, start, zap.Int("rows", len(rows)))
	return rows, nil
}

// Update runs an UPDATE and reports how many rows it changed.
func (c *Client) Update(ctx context.Context, query string, params ...Param) (ExecResult, error) {
	return c.exec(ctx, OpUpdate, query, params)
}

// Remove runs a DELETE and reports how many rows it removed. Like Update it
// does not inspect the statement type.
func (c *Client) Remove(ctx context.Context, query string, params ...Param) (ExecResult, error) {
	return c.exec(ctx, OpRemove, query, params)
}

func (c *Client) exec(ctx context.Context, op, query string, params []Param) (ExecResult, error) {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return ExecResult{}, err
	}
	defer release()

	start := time.Now()
	st, err := c.executeStatement(ctx, op, query, params, modeExec)
	if err != nil {
		return ExecResult{}, err
	}
	defer c.release(op, st)

	affected, err := st.result.RowsAffected()
	if err != nil {
		return ExecResult{}, &ExecutionError{Op: op, Query: query, Err: fmt.Errorf("rows affected: %w", err)}
	}

	c.logStatement(op, query, start, zap.Int64("rows_affected", affected))
	return ExecResult{RowsAffected: affected}, nil
}

// executeStatement prepares query, binds params and executes it on the
// pinned connection. On success the caller owns the returned statement and
// must close it; on failure it has already been closed.
func (c *Client) executeStatement(ctx context.Context, op, query string, params []Param, mode execMode) (*statement, error) {
	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, &PrepareError{Op: op, Query: query, Err: err}
	}

	st := &statement{stmt: stmt}

	args, err := bindArgs(query, params, c.countParams)
	if err != nil {
		c.release(op, st)
		return nil, &BindError{Op: op, Query: query, Err: err}
	}

	switch mode {
	case modeQuery:
		st.rows, err = stmt.QueryContext(ctx, args...)
	default:
		st.result, err = stmt.ExecContext(ctx, args...)
	}
	if err != nil {
		c.release(op, st)
		if isArgCountError(err) {
			return nil, &BindError{Op: op, Query: query, Err: fmt.Errorf("%w: %v", ErrParamCount, err)}
		}
		return nil, &ExecutionError{Op: op, Query: query, Err: err}
	}

	return st, nil
}

// bindArgs checks params against the query's placeholders when count is set
// and converts them to driver values.
func bindArgs(query string, params []Param, count placeholderCounter) ([]any, error) {
	if count != nil {
		if want := count(query); want != len(params) {
			return nil, fmt.Errorf("%w: query has %d placeholders, got %d params", ErrParamCount, want, len(params))
		}
	}

	args := make([]any, len(params))
	for i, p := range params {
		value, err := p.driverValue()
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i+1, err)
		}
		args[i] = value
	}
	return args, nil
}

// isArgCountError reports whether err is database/sql or the sqlite driver
// rejecting the number of arguments for a statement.
func isArgCountError(err error) bool {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "sql: expected ") && strings.Contains(msg, " arguments, got "):
		return true
	case strings.Contains(msg, "missing argument with index "), strings.Contains(msg, "missing named argument "):
		return true
	}
	return false
}

func (c *Client) release(op string, st *statement) {
	if err := st.close(); err != nil {
		c.logger.Warn("failed to close statement", logging.Op(op), zap.Error(err))
	}
}

func (c *Client) logStatement(op, query string, start time.Time, fields ...zap.Field) {
	fields = append(fields,
		logging.Op(op),
		logging.Query(query),
		zap.Duration("duration", time.Since(start)),
	)
	c.logger.Debug("statement executed", fields...)
}
