package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStorage runs the shared contract against a backend
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyToken, "tok-1"))
	require.NoError(t, s.Set(ctx, KeyUser, `{"id":"u1"}`))
	require.NoError(t, s.Set(ctx, KeyToken, "tok-2"))

	v, ok, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", v)

	require.NoError(t, s.Delete(ctx, KeyToken, KeyRefreshToken))
	_, ok, err = s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = s.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"u1"}`, v)

	require.NoError(t, s.Delete(ctx, Keys()...))
	_, ok, err = s.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s, err := NewFileStorage(path)
	require.NoError(t, err)

	exerciseStorage(t, s)

	// the last delete removes the file
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileStorage_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := NewFileStorage(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(context.Background(), KeyToken, "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStorage_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	s, err := NewFileStorage(path)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = s.Get(ctx, KeyToken)
	assert.Error(t, err)

	// writes replace the broken file
	require.NoError(t, s.Set(ctx, KeyToken, "tok"))
	v, ok, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestFileStorage_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := NewFileStorage(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 16)
	require.NoError(t, s.Watch(ctx, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	// a second handle stands in for another process
	other, err := NewFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, other.Set(context.Background(), KeyToken, "tok"))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestRedisStorage(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := NewRedisStorage(context.Background(), "redis://"+mr.Addr(), "test:session")
	require.NoError(t, err)
	defer s.Close()

	exerciseStorage(t, s)
	require.NoError(t, s.Ping(context.Background()))
}

func TestRedisStorage_Prefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStorageFromClient(client, "")
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), KeyToken, "tok"))

	v, err := mr.Get("tutoria:session:" + KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}

func TestRedisStorage_Unreachable(t *testing.T) {
	_, err := NewRedisStorage(context.Background(), "redis://127.0.0.1:1", "")
	assert.Error(t, err)

	_, err = NewRedisStorage(context.Background(), "not a url", "")
	assert.Error(t, err)
}

func TestSQLiteStorage(t *testing.T) {
	s, err := NewSQLiteStorage(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()

	exerciseStorage(t, s)
	require.NoError(t, s.Ping(context.Background()))
}

func TestSQLiteStorage_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	s, err := NewSQLiteStorage(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyToken, "tok"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStorage(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestSQLiteStorage_Errors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS session_kv").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := NewSQLiteStorageFromDB(context.Background(), db)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT value FROM session_kv").
		WithArgs(KeyToken).
		WillReturnError(errors.New("disk I/O error"))
	_, _, err = s.Get(context.Background(), KeyToken)
	assert.ErrorContains(t, err, "disk I/O error")

	mock.ExpectExec("INSERT INTO session_kv").
		WithArgs(KeyToken, "tok").
		WillReturnError(errors.New("database is locked"))
	err = s.Set(context.Background(), KeyToken, "tok")
	assert.ErrorContains(t, err, "database is locked")

	mock.ExpectExec("DELETE FROM session_kv").
		WithArgs(KeyUser).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM session_kv").
		WithArgs(KeyToken).
		WillReturnError(errors.New("readonly database"))
	err = s.Delete(context.Background(), KeyUser, KeyToken)
	assert.ErrorContains(t, err, "readonly database")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStorage_CreateTableFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS session_kv").WillReturnError(errors.New("permission denied"))
	_, err = NewSQLiteStorageFromDB(context.Background(), db)
	assert.ErrorContains(t, err, "failed to create session table")
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStorage(ctx, StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = OpenStorage(ctx, StorageConfig{Path: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, s)

	s, err = OpenStorage(ctx, StorageConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)
	s.Close()

	_, err = OpenStorage(ctx, StorageConfig{Driver: "etcd"})
	assert.ErrorContains(t, err, "unknown session storage driver")
}
