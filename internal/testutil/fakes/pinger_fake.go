package fakes

import (
	"context"
	"sync"
)

// FakePinger returns Err from every Ping and counts calls.
type FakePinger struct {
	mu    sync.Mutex
	Err   error
	calls int
}

func (f *FakePinger) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.Err
}

// SetErr changes the error returned by subsequent pings.
func (f *FakePinger) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// Calls reports how many pings were made.
func (f *FakePinger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
