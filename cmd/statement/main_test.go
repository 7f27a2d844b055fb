package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/dhima/dbclient/internal/logging"
	"github.com/dhima/dbclient/internal/statements"
	"github.com/dhima/dbclient/internal/storage"
	"github.com/dhima/dbclient/internal/testutil/fakes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValues_WhenTaggedArgs_ThenConvertsPerKind(t *testing.T) {
	// Act
	params, err := parseValues("idsbs", []string{"42", "2.5", "Alice", "AQID", `\N`})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []storage.Param{
		storage.Int(42),
		storage.Double(2.5),
		storage.String("Alice"),
		storage.Blob([]byte{1, 2, 3}),
		storage.Null(storage.KindString),
	}, params)
}

func TestParseValues_WhenValueDoesNotParse_ThenReturnsError(t *testing.T) {
	tests := []struct {
		name  string
		types string
		args  []string
	}{
		{name: "integer", types: "i", args: []string{"forty"}},
		{name: "double", types: "d", args: []string{"1.2.3"}},
		{name: "blob", types: "b", args: []string{"%%%"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseValues(tt.types, tt.args)
			assert.ErrorContains(t, err, "value 1")
		})
	}
}

func TestParseValues_WhenCountsDiffer_ThenReturnsMismatch(t *testing.T) {
	_, err := parseValues("i", []string{"1", "2"})
	assert.ErrorIs(t, err, storage.ErrTypeTagMismatch)
}

func TestExecute_WhenInsert_ThenPrintsID(t *testing.T) {
	// Arrange
	svc := statements.NewService(&fakes.FakeStatementStore{InsertID: 5}, nil, logging.NewNoOpLogger())
	var out bytes.Buffer

	// Act
	err := execute(context.Background(), svc, storage.OpInsert, statements.Request{Query: "INSERT INTO t VALUES (1)"}, &out)

	// Assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":5}`, out.String())
}

func TestExecute_WhenSelect_ThenPrintsRowsInColumnOrder(t *testing.T) {
	// Arrange
	rows := []storage.Row{{{Name: "name", Value: "Bob"}, {Name: "id", Value: int64(1)}}}
	svc := statements.NewService(&fakes.FakeStatementStore{Rows: rows}, nil, logging.NewNoOpLogger())
	var out bytes.Buffer

	// Act
	err := execute(context.Background(), svc, storage.OpSelect, statements.Request{Query: "SELECT name, id FROM t"}, &out)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"name\": \"Bob\",\n    \"id\": 1\n  }\n]\n", out.String())
}

func TestExecute_WhenVerbUnknown_ThenReturnsError(t *testing.T) {
	svc := statements.NewService(&fakes.FakeStatementStore{}, nil, logging.NewNoOpLogger())

	err := execute(context.Background(), svc, "upsert", statements.Request{Query: "x"}, &bytes.Buffer{})

	assert.EqualError(t, err, `unknown verb "upsert"`)
}

func TestRun_WhenQueryMissing_ThenReturnsError(t *testing.T) {
	err := run(storage.OpSelect, "", "", nil, 0, logging.NewNoOpLogger(), &bytes.Buffer{})

	assert.EqualError(t, err, "-query is required")
}
