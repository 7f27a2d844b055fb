package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dhima/dbclient/internal/logging"
	"github.com/dhima/dbclient/pkg/clock"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// pingTimeout bounds a single keepalive ping.
const pingTimeout = 5 * time.Second

// Status is the outcome of the most recent keepalive ping.
type Status struct {
	LastPingAt          time.Time     `json:"last_ping_at"`
	LastLatency         time.Duration `json:"last_latency_ns"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}

// Healthy reports whether the last ping succeeded.
func (s Status) Healthy() bool {
	return s.ConsecutiveFailures == 0
}

// Engine pings the database connection on a cron schedule so idle
// connections are not dropped by the server, and records the result. It
// never reconnects.
type Engine struct {
	spec   string
	pinger Pinger
	logger logging.Logger
	clock  clock.Clock

	cron *cron.Cron

	mu     sync.RWMutex
	status Status
}

// NewEngine validates spec ("@every 30s", "*/5 * * * *", ...) and builds an
// engine that pings with pinger.
func NewEngine(spec string, pinger Pinger, logger logging.Logger) (*Engine, error) {
	return NewEngineWithClock(spec, pinger, logger, clock.RealClock{})
}

// NewEngineWithClock is NewEngine with an injected clock.
func NewEngineWithClock(spec string, pinger Pinger, logger logging.Logger, clk clock.Clock) (*Engine, error) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid keepalive schedule %q: %w", spec, err)
	}

	e := &Engine{
		spec:   spec,
		pinger: pinger,
		logger: logger.With(zap.String("component", "keepalive")),
		clock:  clk,
		cron:   cron.New(cron.WithParser(parser)),
	}
	return e, nil
}

// Start schedules the keepalive job. The job runs until Stop.
func (e *Engine) Start() error {
	if _, err := e.cron.AddFunc(e.spec, func() { e.runOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule keepalive: %w", err)
	}
	e.cron.Start()
	e.logger.Info("keepalive scheduled", zap.String("schedule", e.spec))
	return nil
}

// Stop halts scheduling and waits for a running ping to finish or ctx to end.
func (e *Engine) Stop(ctx context.Context) error {
	done := e.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the result of the most recent ping.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

func (e *Engine) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := e.clock.Now()
	err := e.pinger.Ping(ctx)
	latency := clock.Since(e.clock, start)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.status.LastPingAt = start
	e.status.LastLatency = latency
	if err != nil {
		e.status.ConsecutiveFailures++
		e.status.LastError = err.Error()
		e.logger.Error("keepalive ping failed",
			zap.Error(err),
			zap.Int("consecutive_failures", e.status.ConsecutiveFailures),
		)
		return
	}

	if e.status.ConsecutiveFailures > 0 {
		e.logger.Info("keepalive ping recovered",
			zap.Int("previous_failures", e.status.ConsecutiveFailures))
	}
	e.status.ConsecutiveFailures = 0
	e.status.LastError = ""
	e.logger.Debug("keepalive ping ok", zap.Duration("latency", latency))
}
