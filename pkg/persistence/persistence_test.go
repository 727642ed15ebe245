package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/clinicaccess/pkg/config"
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

var snapshotTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEnforcer() *rbac.Enforcer {
	return rbac.NewEnforcer(rbac.WithClock(func() time.Time { return snapshotTime }))
}

// clinicState builds one group holding one role with one member
func clinicState(t *testing.T) *rbac.Enforcer {
	t.Helper()
	e := newTestEnforcer()

	perms := rbac.EmptyMatrix()
	perms.Set(rbac.ModulePatients, rbac.VerbRead, true)
	_, err := e.CreateRole(rbac.RoleInput{ID: "vet", Title: "Veterinarian", Permissions: perms})
	require.NoError(t, err)
	_, err = e.CreateUser(rbac.UserInput{ID: "u1", FirstName: "Ana", LastName: "Diaz"})
	require.NoError(t, err)
	_, err = e.SaveGroup(rbac.GroupInput{
		ID:            "clinical",
		Name:          "Clinical",
		RoleIDs:       []rbac.RoleID{"vet"},
		MemberUserIDs: []rbac.UserID{"u1"},
	})
	require.NoError(t, err)
	return e
}

func setupMockDB(t *testing.T) (*PostgresSnapshotter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresSnapshotter(db), mock
}

func TestPostgresSnapshotter_EnsureSchema(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS access_snapshots")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.EnsureSchema(context.Background()))

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS access_snapshots")).
		WillReturnError(errors.New("permission denied"))
	err := store.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotter_SaveAndLoad(t *testing.T) {
	store, mock := setupMockDB(t)
	ctx := context.Background()
	snap := clinicState(t).Snapshot()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO access_snapshots (taken_at, version, payload)")).
		WithArgs(snapshotTime, rbac.SnapshotVersion, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, store.Save(ctx, snap))

	saved, err := encodeSnapshot(snap)
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM access_snapshots ORDER BY id DESC LIMIT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(saved))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, rbac.SnapshotVersion, loaded.Version)
	require.Len(t, loaded.Groups, 1)
	assert.Equal(t, []rbac.RoleID{"vet"}, loaded.Groups[0].RoleIDs)

	restored := newTestEnforcer()
	require.NoError(t, restored.Restore(*loaded))
	perms, err := restored.ComputeEffectiveUserPermissions("u1")
	require.NoError(t, err)
	assert.True(t, perms.Get(rbac.ModulePatients, rbac.VerbRead))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotter_LoadEmpty(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectQuery("SELECT payload FROM access_snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	snap, err := store.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSnapshotter_Errors(t *testing.T) {
	store, mock := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO access_snapshots").WillReturnError(errors.New("connection reset"))
	err := store.Save(ctx, newTestEnforcer().Snapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert snapshot")

	mock.ExpectQuery("SELECT payload FROM access_snapshots").WillReturnError(errors.New("connection reset"))
	_, err = store.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query snapshot")

	mock.ExpectQuery("SELECT payload FROM access_snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte("{not json")))
	_, err = store.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal snapshot")

	mock.ExpectPing()
	assert.NoError(t, store.Ping(ctx))
	assert.Equal(t, "postgres", store.Backend())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func setupRedis(t *testing.T) (*RedisSnapshotter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := OpenRedis(context.Background(), "redis://"+mr.Addr(), 0, "clinic-access:snapshot")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisSnapshotter_SaveAndLoad(t *testing.T) {
	store, mr := setupRedis(t)
	ctx := context.Background()

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap, "empty key loads as nil")

	require.NoError(t, store.Save(ctx, clinicState(t).Snapshot()))
	assert.True(t, mr.Exists("clinic-access:snapshot"))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.Roles, 1)
	assert.Len(t, loaded.Users, 1)
	assert.True(t, loaded.TakenAt.Equal(snapshotTime))

	// A second save replaces the first
	require.NoError(t, store.Save(ctx, newTestEnforcer().Snapshot()))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Roles)

	assert.NoError(t, store.Ping(ctx))
	assert.Equal(t, "redis", store.Backend())
}

func TestRedisSnapshotter_Errors(t *testing.T) {
	store, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("clinic-access:snapshot", "{not json"))
	_, err := store.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal snapshot")

	mr.Close()
	assert.Error(t, store.Save(ctx, newTestEnforcer().Snapshot()))
	assert.Error(t, store.Ping(ctx))
}

func TestOpenRedis_Failures(t *testing.T) {
	_, err := OpenRedis(context.Background(), "invalid://url", 0, "k")
	assert.Error(t, err)

	_, err = OpenRedis(context.Background(), "redis://127.0.0.1:1", 0, "k")
	assert.Error(t, err)
}

func TestNewRedisSnapshotter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisSnapshotter(client, "custom")
	defer store.Close()

	require.NoError(t, store.Save(context.Background(), newTestEnforcer().Snapshot()))
	assert.True(t, mr.Exists("custom"))
}

func TestOpen(t *testing.T) {
	store, err := Open(context.Background(), config.PersistenceConfig{Backend: config.BackendMemory})
	assert.NoError(t, err)
	assert.Nil(t, store)

	_, err = Open(context.Background(), config.PersistenceConfig{Backend: "sqlite"})
	assert.EqualError(t, err, "unknown persistence backend: sqlite")

	mr := miniredis.RunT(t)
	store, err = Open(context.Background(), config.PersistenceConfig{
		Backend:  config.BackendRedis,
		RedisURL: "redis://" + mr.Addr(),
		RedisKey: "snap",
	})
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "redis", store.Backend())
}
