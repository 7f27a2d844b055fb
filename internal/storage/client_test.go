package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dhima/dbclient/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createPeople = `CREATE TABLE t (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	score REAL,
	avatar BLOB
)`

func newSQLiteClient(t *testing.T) *Client {
	t.Helper()

	client, err := Open(context.Background(), Options{Driver: DriverSQLite, Database: ":memory:"}, logging.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Update(context.Background(), createPeople)
	require.NoError(t, err)
	return client
}

func TestInsert_WhenEmptyAutoIncrementTable_ThenReturnsOne(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)
	params, err := Bind("s", "Alice")
	require.NoError(t, err)

	// Act
	id, err := client.Insert(context.Background(), "INSERT INTO t (name) VALUES (?)", params...)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestInsert_WhenCalledSequentially_ThenIDsStrictlyIncrease(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)
	names := []string{"a", "b", "c", "d", "e"}

	// Act
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, err := client.Insert(context.Background(), "INSERT INTO t (name) VALUES (?)", String(name))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Assert
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
}

func TestSelect_WhenRowExists_ThenReturnsRowWithColumnsInOrder(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)
	_, err := client.Insert(context.Background(), "INSERT INTO t (name) VALUES (?)", String("Alice"))
	require.NoError(t, err)
	params, err := Bind("i", 1)
	require.NoError(t, err)

	// Act
	rows, err := client.Select(context.Background(), "SELECT id, name FROM t WHERE id = ?", params...)

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"id", "name"}, rows[0].Columns())
	assert.Equal(t, map[string]any{"id": int64(1), "name": "Alice"}, rows[0].Map())
}

func TestSelect_WhenProjectionReordered_ThenPreservesProjectionOrder(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)
	_, err := client.Insert(context.Background(), "INSERT INTO t (name) VALUES (?)", String("Alice"))
	require.NoError(t, err)

	// Act
	rows, err := client.Select(context.Background(), "SELECT name AS who, id FROM t")

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"who", "id"}, rows[0].Columns())
}

func TestSelect_WhenNoRows_ThenReturnsEmptySlice(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)

	// Act
	rows, err := client.Select(context.Background(), "SELECT id, name FROM t WHERE id = ?", Int(42))

	// Assert
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestUpdate_WhenRowMatches_ThenSelectSeesNewValue(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newSQLiteClient(t)
	_, err := client.Insert(ctx, "INSERT INTO t (name) VALUES (?)", String("Alice"))
	require.NoError(t, err)
	params, err := Bind("si", "Bob", 1)
	require.NoError(t, err)

	// Act
	result, err := client.Update(ctx, "UPDATE t SET name = ? WHERE id = ?", params...)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RowsAffected)

	rows, err := client.Select(ctx, "SELECT id, name FROM t WHERE id = ?", Int(1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "Bob"}, rows[0].Map())
}

func TestUpdate_WhenNoRowMatches_ThenReportsZeroAffected(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)

	// Act
	result, err := client.Update(context.Background(), "UPDATE t SET name = ? WHERE id = ?", String("Bob"), Int(99))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.RowsAffected)
}

func TestRemove_WhenRowsMatch_ThenReportsAffectedAndRowsAreGone(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newSQLiteClient(t)
	for _, name := range []string{"a", "b", "c"} {
		_, err := client.Insert(ctx, "INSERT INTO t (name) VALUES (?)", String(name))
		require.NoError(t, err)
	}

	// Act
	result, err := client.Remove(ctx, "DELETE FROM t WHERE id > ?", Int(1))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RowsAffected)

	rows, err := client.Select(ctx, "SELECT id FROM t")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSelect_WhenMalformedSQL_ThenReturnsPrepareError(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)

	// Act
	rows, err := client.Select(context.Background(), "SELEKT * FROM t")

	// Assert
	require.Error(t, err)
	assert.Nil(t, rows)

	var prepareErr *PrepareError
	require.ErrorAs(t, err, &prepareErr)
	assert.Equal(t, OpSelect, prepareErr.Op)
	assert.Equal(t, "SELEKT * FROM t", prepareErr.Query)
	assert.Contains(t, err.Error(), "unable to prepare statement: SELEKT * FROM t")
	assert.False(t, IsConnectionFatal(err))
}

func TestInsert_WhenTooManyParams_ThenReturnsBindErrorWithoutInserting(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newSQLiteClient(t)

	// Act
	_, err := client.Insert(ctx, "INSERT INTO t (name) VALUES (?)", String("Alice"), String("extra"))

	// Assert
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.ErrorIs(t, err, ErrParamCount)

	rows, err := client.Select(ctx, "SELECT id FROM t")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpdate_WhenTooFewParams_ThenReturnsBindError(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)

	// Act
	_, err := client.Update(context.Background(), "UPDATE t SET name = ? WHERE id = ?", String("Bob"))

	// Assert
	assert.ErrorIs(t, err, ErrParamCount)
}

func TestSelect_WhenNumberedParamReused_ThenBindsOneValueTwice(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)

	// Act
	rows, err := client.Select(context.Background(), "SELECT ?1 AS a, ?1 AS b", Int(7))

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 1)
	a, _ := rows[0].Get("a")
	b, _ := rows[0].Get("b")
	assert.Equal(t, int64(7), a)
	assert.Equal(t, int64(7), b)
}

func TestSelect_WhenNamedParamGivenPositionally_ThenReturnsBindError(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)

	// Act
	_, err := client.Select(context.Background(), "SELECT :a AS a", Int(7))

	// Assert
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.ErrorIs(t, err, ErrParamCount)
	assert.NotErrorIs(t, err, ErrClientClosed)
}

func TestInsert_WhenValueDoesNotMatchKind_ThenReturnsBindError(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)

	// Act
	_, err := client.Insert(context.Background(), "INSERT INTO t (name, score) VALUES (?, ?)", String("Alice"), Param{Kind: KindDouble, Value: "high"})

	// Assert
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.ErrorIs(t, err, ErrInvalidParam)
	assert.Contains(t, err.Error(), "param 2")
}

func TestInsert_WhenUniqueConstraintViolated_ThenReturnsExecutionError(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newSQLiteClient(t)
	_, err := client.Insert(ctx, "INSERT INTO t (name) VALUES (?)", String("Alice"))
	require.NoError(t, err)

	// Act
	_, err = client.Insert(ctx, "INSERT INTO t (name) VALUES (?)", String("Alice"))

	// Assert
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, OpInsert, execErr.Op)
	assert.False(t, IsConnectionFatal(err))
}

func TestSelect_WhenBlobAndNullColumns_ThenKeepsBytesAndNil(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newSQLiteClient(t)
	avatar := []byte{0x00, 0xff, 0x10}
	_, err := client.Insert(ctx, "INSERT INTO t (name, score, avatar) VALUES (?, ?, ?)", String("Alice"), Null(KindDouble), Blob(avatar))
	require.NoError(t, err)

	// Act
	rows, err := client.Select(ctx, "SELECT score, avatar FROM t")

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 1)
	score, ok := rows[0].Get("score")
	assert.True(t, ok)
	assert.Nil(t, score)
	got, ok := rows[0].Get("avatar")
	assert.True(t, ok)
	assert.Equal(t, avatar, got)
}

func TestClient_WhenUsedConcurrently_ThenSerialisesStatements(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newSQLiteClient(t)
	const workers = 20

	// Act
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := client.Insert(ctx, "INSERT INTO t (name, score) VALUES (?, ?)", String(fmt.Sprintf("worker-%d", n)), Double(float64(n)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	// Assert
	for err := range errs {
		assert.NoError(t, err)
	}
	rows, err := client.Select(ctx, "SELECT COUNT(*) AS n FROM t")
	require.NoError(t, err)
	n, _ := rows[0].Get("n")
	assert.Equal(t, int64(workers), n)
}

func TestClose_WhenCalled_ThenSubsequentCallsFailWithoutPanic(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newSQLiteClient(t)

	// Act
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	// Assert
	_, err := client.Insert(ctx, "INSERT INTO t (name) VALUES (?)", String("Alice"))
	assert.ErrorIs(t, err, ErrClientClosed)
	_, err = client.Select(ctx, "SELECT id FROM t")
	assert.ErrorIs(t, err, ErrClientClosed)
	_, err = client.Update(ctx, "UPDATE t SET name = ?", String("x"))
	assert.ErrorIs(t, err, ErrClientClosed)
	_, err = client.Remove(ctx, "DELETE FROM t")
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.ErrorIs(t, client.Ping(ctx), ErrClientClosed)
	assert.True(t, IsConnectionFatal(err))
}

func TestPing_WhenConnectionOpen_ThenSucceeds(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)

	// Act & Assert
	assert.NoError(t, client.Ping(context.Background()))
}

func TestOpen_WhenServerUnreachable_ThenReturnsConnectionError(t *testing.T) {
	// Arrange
	opts := DefaultOptions()
	opts.Host = "127.0.0.1"
	opts.Port = 1
	opts.Username = "wrong"
	opts.Password = "wrong"
	opts.ConnectTimeout = 2 * time.Second

	// Act
	client, err := Open(context.Background(), opts, logging.NewNoOpLogger())

	// Assert
	assert.Nil(t, client)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "127.0.0.1", connErr.Host)
	assert.Equal(t, DefaultDatabase, connErr.Database)
	assert.True(t, IsConnectionFatal(err))
}

func TestOpen_WhenDriverUnsupported_ThenReturnsConnectionError(t *testing.T) {
	// Act
	client, err := Open(context.Background(), Options{Driver: "oracle"}, logging.NewNoOpLogger())

	// Assert
	assert.Nil(t, client)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestOpen_WhenFailed_ThenReturnedClientRejectsEveryCall(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client, err := Open(ctx, Options{Driver: "nope"}, logging.NewNoOpLogger())
	require.Error(t, err)

	// Act & Assert
	assert.NotPanics(t, func() {
		_, err := client.Insert(ctx, "INSERT INTO t (name) VALUES (?)", String("Alice"))
		assert.ErrorIs(t, err, ErrClientClosed)
		_, err = client.Select(ctx, "SELECT id FROM t")
		assert.ErrorIs(t, err, ErrClientClosed)
		_, err = client.Update(ctx, "UPDATE t SET name = ?", String("x"))
		assert.ErrorIs(t, err, ErrClientClosed)
		_, err = client.Remove(ctx, "DELETE FROM t")
		assert.ErrorIs(t, err, ErrClientClosed)
		assert.ErrorIs(t, client.Ping(ctx), ErrClientClosed)
		assert.ErrorIs(t, client.Close(), ErrClientClosed)
	})
}

func TestSelect_WhenConnectionBusyPastDeadline_ThenReturnsContextError(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)
	_, release, err := client.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Act
	start := time.Now()
	_, err = client.Select(ctx, "SELECT 1")

	// Assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPing_WhenContextAlreadyCancelled_ThenDoesNotWaitForConnection(t *testing.T) {
	// Arrange
	client := newSQLiteClient(t)
	_, release, err := client.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	err = client.Ping(ctx)

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_WhenContextCancelled_ThenReturnsConnectionError(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	client, err := Open(ctx, Options{Driver: DriverSQLite, Database: ":memory:"}, logging.NewNoOpLogger())

	// Assert
	assert.Nil(t, client)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDataSource_WhenMySQL_ThenFormatsDSN(t *testing.T) {
	// Arrange
	opts := Options{Host: "db.internal", Port: 3307, Database: "shop", Username: "app", Password: "secret", ConnectTimeout: 3 * time.Second}

	// Act
	driverName, dsn, err := opts.DataSource()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, DriverMySQL, driverName)
	assert.Contains(t, dsn, "app:secret@tcp(db.internal:3307)/shop")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "timeout=3s")
}

func TestDataSource_WhenSQLiteWithoutPath_ThenReturnsError(t *testing.T) {
	// Act
	_, _, err := Options{Driver: DriverSQLite}.DataSource()

	// Assert
	assert.Error(t, err)
}
