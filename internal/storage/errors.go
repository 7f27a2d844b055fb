package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrClientClosed is returned by every operation once Close has been called.
	ErrClientClosed = errors.New("database client is closed")

	// ErrParamCount is returned when the number of params differs from the
	// number of placeholders in the query.
	ErrParamCount = errors.New("parameter count does not match placeholder count")

	// ErrTypeTagMismatch is returned by Bind when the type string and the
	// value list have different lengths.
	ErrTypeTagMismatch = errors.New("type tag count does not match value count")

	// ErrUnknownKind is returned for a type tag outside i, d, s, b.
	ErrUnknownKind = errors.New("unknown parameter kind")

	// ErrInvalidParam is returned when a value cannot be bound as its declared kind.
	ErrInvalidParam = errors.New("invalid parameter value")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// ConnectionError reports that the connection could not be established.
// It is always fatal: no client is returned alongside it.
type ConnectionError struct {
	Host     string
	Database string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to database %q on %q: %v", e.Database, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PrepareError reports that the driver rejected the query at prepare time.
type PrepareError struct {
	Op    string
	Query string
	Err   error
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("%s: unable to prepare statement: %s: %v", e.Op, e.Query, e.Err)
}

func (e *PrepareError) Unwrap() error { return e.Err }

// BindError reports params that could not be bound to the prepared statement.
type BindError struct {
	Op    string
	Query string
	Err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%s: unable to bind parameters: %s: %v", e.Op, e.Query, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ExecutionError reports a failure while executing a bound statement or
// reading its results.
type ExecutionError struct {
	Op    string
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: statement execution failed: %s: %v", e.Op, e.Query, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsConnectionFatal reports whether err means the connection is unusable and
// the client should be closed and rebuilt. Prepare, bind and ordinary
// execution errors are per-query and return false.
func IsConnectionFatal(err error) bool {
	if err == nil {
		return false
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}

	return errors.Is(err, ErrClientClosed) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone)
}

// MySQLErrorNumber extracts the server error number from err, if any.
func MySQLErrorNumber(err error) (uint16, bool) {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number, true
	}
	return 0, false
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	number, ok := MySQLErrorNumber(err)
	return ok && number == mysqlDuplicateEntry
}
