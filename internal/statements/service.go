package statements

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dhima/dbclient/internal/logging"
	"github.com/dhima/dbclient/internal/storage"
	"github.com/dhima/dbclient/pkg/clock"
	"github.com/dhima/dbclient/platform/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request is one statement to run.
type Request struct {
	Query     string
	Params    []storage.Param
	RequestID string
}

// OpStats counts outcomes for one verb.
type OpStats struct {
	Succeeded int64         `json:"succeeded"`
	Failed    int64         `json:"failed"`
	TotalTime time.Duration `json:"total_time_ns"`
}

// Stats is a snapshot of per-verb counters plus audit publishing failures.
type Stats struct {
	Operations    map[string]OpStats `json:"operations"`
	AuditFailures int64              `json:"audit_failures"`
}

// Service runs statements through the database client, keeps counters and
// emits audit events for mutations.
type Service struct {
	store     StatementStore
	publisher AuditPublisher
	logger    logging.Logger
	clock     clock.Clock

	mu            sync.Mutex
	ops           map[string]OpStats
	auditFailures int64
}

// NewService creates a Service using the real clock.
func NewService(store StatementStore, publisher AuditPublisher, logger logging.Logger) *Service {
	return NewServiceWithClock(store, publisher, logger, clock.RealClock{})
}

// NewServiceWithClock creates a Service with an injected clock.
func NewServiceWithClock(store StatementStore, publisher AuditPublisher, logger logging.Logger, clk clock.Clock) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "statements")),
		clock:     clk,
		ops:       make(map[string]OpStats),
	}
}

// Insert runs an INSERT and returns the new row's id.
func (s *Service) Insert(ctx context.Context, req Request) (int64, error) {
	start := s.clock.Now()
	id, err := s.store.Insert(ctx, req.Query, req.Params...)
	s.record(storage.OpInsert, req, start, err)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}

	s.publish(ctx, storage.OpInsert, req, &id, 1)
	return id, nil
}

// Select runs a query and returns every row.
func (s *Service) Select(ctx context.Context, req Request) ([]storage.Row, error) {
	start := s.clock.Now()
	rows, err := s.store.Select(ctx, req.Query, req.Params...)
	s.record(storage.OpSelect, req, start, err)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return rows, nil
}

// Update runs an UPDATE and returns the affected-row count.
func (s *Service) Update(ctx context.Context, req Request) (storage.ExecResult, error) {
	start := s.clock.Now()
	result, err := s.store.Update(ctx, req.Query, req.Params...)
	s.record(storage.OpUpdate, req, start, err)
	if err != nil {
		return storage.ExecResult{}, fmt.Errorf("update: %w", err)
	}

	s.publish(ctx, storage.OpUpdate, req, nil, result.RowsAffected)
	return result, nil
}

// Remove runs a DELETE and returns the affected-row count.
func (s *Service) Remove(ctx context.Context, req Request) (storage.ExecResult, error) {
	start := s.clock.Now()
	result, err := s.store.Remove(ctx, req.Query, req.Params...)
	s.record(storage.OpRemove, req, start, err)
	if err != nil {
		return storage.ExecResult{}, fmt.Errorf("remove: %w", err)
	}

	s.publish(ctx, storage.OpRemove, req, nil, result.RowsAffected)
	return result, nil
}

// Ping checks the underlying connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Stats returns a copy of the counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make(map[string]OpStats, len(s.ops))
	for op, st := range s.ops {
		ops[op] = st
	}
	return Stats{Operations: ops, AuditFailures: s.auditFailures}
}

func (s *Service) record(op string, req Request, start time.Time, err error) {
	elapsed := clock.Since(s.clock, start)

	s.mu.Lock()
	st := s.ops[op]
	st.TotalTime += elapsed
	if err != nil {
		st.Failed++
	} else {
		st.Succeeded++
	}
	s.ops[op] = st
	s.mu.Unlock()

	if err == nil {
		return
	}

	fields := []zap.Field{
		logging.Op(op),
		logging.Query(req.Query),
		logging.RequestID(req.RequestID),
		zap.String("stage", Stage(err)),
		zap.Error(err),
	}
	if storage.IsConnectionFatal(err) {
		s.logger.Error("statement failed, connection unusable", fields...)
		return
	}
	s.logger.Warn("statement failed", fields...)
}

// publish emits the audit event for a completed mutation. The statement has
// already run, so a publish failure is logged and counted, never returned.
func (s *Service) publish(ctx context.Context, op string, req Request, lastInsertID *int64, affected int64) {
	event := events.StatementEvent{
		EventID:      uuid.New().String(),
		Operation:    op,
		Query:        req.Query,
		ParamTypes:   storage.Types(req.Params),
		LastInsertID: lastInsertID,
		RowsAffected: affected,
		RequestID:    req.RequestID,
		ExecutedAt:   s.clock.Now(),
	}

	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.mu.Lock()
		s.auditFailures++
		s.mu.Unlock()

		s.logger.Warn("failed to publish statement event",
			zap.String("event_id", event.EventID),
			logging.Op(op),
			logging.RequestID(req.RequestID),
			zap.Error(err),
		)
	}
}

// Stage names the point at which a statement failed.
func Stage(err error) string {
	var (
		connErr    *storage.ConnectionError
		prepareErr *storage.PrepareError
		bindErr    *storage.BindError
		execErr    *storage.ExecutionError
	)
	switch {
	case errors.As(err, &connErr), errors.Is(err, storage.ErrClientClosed):
		return "connection"
	case errors.As(err, &prepareErr):
		return "prepare"
	case errors.As(err, &bindErr):
		return "bind"
	case errors.As(err, &execErr):
		return "execute"
	default:
		return "unknown"
	}
}
