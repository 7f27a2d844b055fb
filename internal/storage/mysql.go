package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dhima/dbclient/internal/logging"
	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	// DriverMySQL selects go-sql-driver/mysql.
	DriverMySQL = "mysql"
	// DriverSQLite selects modernc.org/sqlite; Options.Database is the file path.
	DriverSQLite = "sqlite"
)

// Local development defaults. Never rely on these outside a dev machine.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 3306
	DefaultDatabase = "databaseName"
	DefaultUsername = "userName"
	DefaultPassword = ""
)

// Options describe how to reach the database.
type Options struct {
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// ConnectTimeout bounds dialing and the initial ping. Zero means no bound.
	ConnectTimeout time.Duration
	// StatementTimeout bounds every operation. Zero means no bound.
	StatementTimeout time.Duration
}

// DefaultOptions returns the local development credentials.
func DefaultOptions() Options {
	return Options{
		Driver:   DriverMySQL,
		Host:     DefaultHost,
		Port:     DefaultPort,
		Database: DefaultDatabase,
		Username: DefaultUsername,
		Password: DefaultPassword,
	}
}

// DataSource returns the driver name and DSN for the options.
func (o Options) DataSource() (string, string, error) {
	switch o.Driver {
	case "", DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = o.Username
		cfg.Passwd = o.Password
		cfg.Net = "tcp"
		cfg.Addr = o.Host
		if o.Port > 0 {
			cfg.Addr = net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
		}
		cfg.DBName = o.Database
		cfg.ParseTime = true
		cfg.Timeout = o.ConnectTimeout
		return DriverMySQL, cfg.FormatDSN(), nil
	case DriverSQLite:
		if o.Database == "" {
			return "", "", errors.New("sqlite requires a database path")
		}
		return DriverSQLite, o.Database, nil
	default:
		return "", "", fmt.Errorf("unsupported driver %q", o.Driver)
	}
}

// connection is the part of *sql.Conn the client relies on.
type connection interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Client owns a single database connection and runs prepared statements on
// it. Operations are serialised; a Client is safe for concurrent use but
// never runs two statements at once.
type Client struct {
	// sem holds one token while an operation owns the connection.
	sem    chan struct{}
	db     *sql.DB
	conn   connection
	closed bool

	logger           logging.Logger
	statementTimeout time.Duration
	countParams      placeholderCounter
}

// Option configures a Client built by New.
type Option func(*Client)

// WithStatementTimeout bounds every operation by d.
func WithStatementTimeout(d time.Duration) Option {
	return func(c *Client) { c.statementTimeout = d }
}

// withPlaceholderCounter replaces the client-side parameter count check.
// A nil counter leaves the check to database/sql.
func withPlaceholderCounter(count placeholderCounter) Option {
	return func(c *Client) { c.countParams = count }
}

// Open connects using opts. On any failure everything opened so far is
// released and a *ConnectionError is returned.
func Open(ctx context.Context, opts Options, logger logging.Logger) (*Client, error) {
	driverName, dsn, err := opts.DataSource()
	if err != nil {
		return nil, &ConnectionError{Host: opts.Host, Database: opts.Database, Err: err}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &ConnectionError{Host: opts.Host, Database: opts.Database, Err: err}
	}

	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	client, err := New(ctx, db, logger,
		WithStatementTimeout(opts.StatementTimeout),
		withPlaceholderCounter(placeholderCounterFor(driverName)),
	)
	if err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			connErr.Host = opts.Host
			connErr.Database = opts.Database
		}
		return nil, err
	}

	logger.Info("database connection established",
		zap.String("driver", driverName),
		zap.String("host", opts.Host),
		zap.String("database", opts.Database),
	)
	return client, nil
}

// New pins one connection out of db and verifies it. The client takes
// ownership of db and closes it on failure or on Close. Parameter counts are
// checked with MySQL placeholder rules unless Open picked a driver-specific
// check.
func New(ctx context.Context, db *sql.DB, logger logging.Logger, options ...Option) (*Client, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Err: fmt.Errorf("acquire connection: %w", err)}
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, &ConnectionError{Err: fmt.Errorf("ping: %w", err)}
	}

	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	client := &Client{
		sem:         make(chan struct{}, 1),
		db:          db,
		conn:        conn,
		logger:      logger.With(zap.String("component", "storage")),
		countParams: countPlaceholders,
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// Ping checks that the pinned connection is still alive.
func (c *Client) Ping(ctx context.Context) error {
	ctx, release, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := c.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases the connection, waiting for a running operation to finish.
// It is safe to call more than once. Closing a nil client returns
// ErrClientClosed.
func (c *Client) Close() error {
	if c == nil {
		return ErrClientClosed
	}
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	if c.closed {
		return nil
	}
	c.closed = true

	return errors.Join(c.conn.Close(), c.db.Close())
}

// acquire takes the connection for one operation and applies the statement
// timeout. It gives up when ctx is done before the connection frees up.
// release must be called exactly once.
func (c *Client) acquire(ctx context.Context) (context.Context, func(), error) {
	if c == nil {
		return nil, nil, ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("wait for connection: %w", err)
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("wait for connection: %w", ctx.Err())
	}
	unlock := func() { <-c.sem }

	if c.closed {
		unlock()
		return nil, nil, ErrClientClosed
	}

	if c.statementTimeout <= 0 {
		return ctx, unlock, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.statementTimeout)
	return ctx, func() {
		cancel()
		unlock()
	}, nil
}
