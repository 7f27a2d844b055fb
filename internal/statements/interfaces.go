package statements

import (
	"context"

	"github.com/dhima/dbclient/internal/storage"
	"github.com/dhima/dbclient/platform/events"
)

// StatementStore is the database client surface the service needs.
type StatementStore interface {
	Insert(ctx context.Context, query string, params ...storage.Param) (int64, error)
	Select(ctx context.Context, query string, params ...storage.Param) ([]storage.Row, error)
	Update(ctx context.Context, query string, params ...storage.Param) (storage.ExecResult, error)
	Remove(ctx context.Context, query string, params ...storage.Param) (storage.ExecResult, error)
	Ping(ctx context.Context) error
}

// AuditPublisher abstracts the Kafka publisher for testability.
type AuditPublisher interface {
	Publish(ctx context.Context, event events.StatementEvent) error
}
