package clock

import (
	"sync"
	"time"
)

// Clock abstracts time retrieval so statement timing and audit timestamps
// are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the real current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct{ t time.Time }

func NewFixed(t time.Time) FixedClock { return FixedClock{t: t} }

func (f FixedClock) Now() time.Time { return f.t }

// StepClock advances by a fixed step on every call to Now, starting at start.
type StepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func NewStep(start time.Time, step time.Duration) *StepClock {
	return &StepClock{next: start, step: step}
}

func (s *StepClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.next
	s.next = s.next.Add(s.step)
	return now
}

// Since is time.Since measured on c.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start)
}
