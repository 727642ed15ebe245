package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/clinicaccess/pkg/config"
	"github.com/platinummonkey/clinicaccess/pkg/observability"
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

type stubStore struct {
	snap *rbac.Snapshot
}

func (s *stubStore) Save(ctx context.Context, snap rbac.Snapshot) error {
	s.snap = &snap
	return nil
}

func (s *stubStore) Load(ctx context.Context) (*rbac.Snapshot, error) { return s.snap, nil }
func (s *stubStore) Ping(ctx context.Context) error                   { return nil }
func (s *stubStore) Backend() string                                  { return "stub" }
func (s *stubStore) Close() error                                     { return nil }

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
}

func TestInitialState_BuiltInRoles(t *testing.T) {
	e := rbac.NewEnforcer()

	require.NoError(t, initialState(context.Background(), e, nil, config.SeedConfig{}, testLogger()))
	assert.Len(t, e.ListRoles(), len(rbac.BuiltInRoles()))
}

func TestInitialState_SeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  - id: vet\n    title: Veterinarian\n"), 0o600))

	e := rbac.NewEnforcer()
	require.NoError(t, initialState(context.Background(), e, &stubStore{}, config.SeedConfig{Path: path}, testLogger()))

	roles := e.ListRoles()
	require.Len(t, roles, 1)
	assert.Equal(t, rbac.RoleID("vet"), roles[0].ID)

	err := initialState(context.Background(), rbac.NewEnforcer(), nil, config.SeedConfig{Path: path + ".missing"}, testLogger())
	assert.Error(t, err)
}

func TestInitialState_PrefersSnapshot(t *testing.T) {
	source := rbac.NewEnforcer()
	_, err := source.CreateRole(rbac.RoleInput{ID: "receptionist", Title: "Receptionist"})
	require.NoError(t, err)
	snap := source.Snapshot()

	e := rbac.NewEnforcer()
	err = initialState(context.Background(), e, &stubStore{snap: &snap}, config.SeedConfig{Path: "/does/not/matter.yaml"}, testLogger())
	require.NoError(t, err)

	roles := e.ListRoles()
	require.Len(t, roles, 1)
	assert.Equal(t, "Receptionist", roles[0].Title)
}

func TestOpenAudit(t *testing.T) {
	logger, err := openAudit(config.AuditConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, logger.Close())

	path := filepath.Join(t.TempDir(), "audit", "audit.log")
	logger, err = openAudit(config.AuditConfig{Enabled: true, Path: path})
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
	assert.FileExists(t, path)
}
