package fakes

import (
	"context"
	"sync"

	"github.com/dhima/dbclient/internal/storage"
)

// StatementCall records one call made against FakeStatementStore.
type StatementCall struct {
	Op     string
	Query  string
	Params []storage.Param
}

// FakeStatementStore returns canned results and records every call.
// Err, when set, is returned by every statement method.
type FakeStatementStore struct {
	mu sync.Mutex

	InsertID int64
	Rows     []storage.Row
	Result   storage.ExecResult
	Err      error
	PingErr  error

	Calls []StatementCall
}

func (f *FakeStatementStore) Insert(_ context.Context, query string, params ...storage.Param) (int64, error) {
	if err := f.record(storage.OpInsert, query, params); err != nil {
		return 0, err
	}
	return f.InsertID, nil
}

func (f *FakeStatementStore) Select(_ context.Context, query string, params ...storage.Param) ([]storage.Row, error) {
	if err := f.record(storage.OpSelect, query, params); err != nil {
		return nil, err
	}
	if f.Rows == nil {
		return []storage.Row{}, nil
	}
	return f.Rows, nil
}

func (f *FakeStatementStore) Update(_ context.Context, query string, params ...storage.Param) (storage.ExecResult, error) {
	if err := f.record(storage.OpUpdate, query, params); err != nil {
		return storage.ExecResult{}, err
	}
	return f.Result, nil
}

func (f *FakeStatementStore) Remove(_ context.Context, query string, params ...storage.Param) (storage.ExecResult, error) {
	if err := f.record(storage.OpRemove, query, params); err != nil {
		return storage.ExecResult{}, err
	}
	return f.Result, nil
}

func (f *FakeStatementStore) Ping(_ context.Context) error {
	return f.PingErr
}

// LastCall returns the most recent call, if any.
func (f *FakeStatementStore) LastCall() (StatementCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return StatementCall{}, false
	}
	return f.Calls[len(f.Calls)-1], true
}

func (f *FakeStatementStore) record(op, query string, params []storage.Param) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, StatementCall{Op: op, Query: query, Params: params})
	return f.Err
}
