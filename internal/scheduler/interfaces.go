package scheduler

import "context"

// Pinger is the connection the engine keeps alive.
type Pinger interface {
	Ping(ctx context.Context) error
}
